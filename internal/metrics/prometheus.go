package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReadingsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_readings_accepted_total",
			Help: "Readings appended to the durable queue",
		},
		[]string{"sensor_type"},
	)

	ReadingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_readings_rejected_total",
			Help: "Acquisition cycles that produced no reading",
		},
		[]string{"reason"},
	)

	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_alerts_raised_total",
			Help: "Threshold alerts appended to the durable queue",
		},
		[]string{"sensor_type"},
	)

	SyncBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_sync_batches_total",
			Help: "Sync batch attempts by stream and outcome",
		},
		[]string{"stream", "status"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_sync_batch_duration_seconds",
			Help:    "Duration of one remote insert",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	PendingRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edge_pending_records",
			Help: "Unsynced records per local stream",
		},
		[]string{"stream"},
	)

	RecordsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_history_pruned_total",
			Help: "Synced historical readings removed by retention",
		},
	)

	ActiveTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edge_acquisition_tasks",
			Help: "Running per-device acquisition tasks",
		},
	)

	CatalogDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edge_catalog_devices",
			Help: "Devices in the current catalog snapshot",
		},
	)

	CommandsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_commands_forwarded_total",
			Help: "Actuator commands written to the device",
		},
		[]string{"source", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_http_requests_total",
			Help: "Status API requests",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ReadingsAccepted,
		ReadingsRejected,
		AlertsRaised,
		SyncBatches,
		SyncDuration,
		PendingRecords,
		RecordsPruned,
		ActiveTasks,
		CatalogDevices,
		CommandsForwarded,
		HTTPRequests,
	)
}

// GinMiddleware counts requests by matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ObserveSync records one batch attempt.
func ObserveSync(stream, status string, d time.Duration) {
	SyncBatches.WithLabelValues(stream, status).Inc()
	SyncDuration.WithLabelValues(stream).Observe(d.Seconds())
}
