package handlers

import (
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services     *service.Service
	log          *logger.Logger
	pushInterval time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithPushInterval sets the default /ws status push period.
func WithPushInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 && d <= maxInterval {
			h.pushInterval = d
		}
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log, pushInterval: defaultInterval}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// status push over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/status", h.getStatus)
		api.GET("/devices", h.listDevices)
		api.POST("/catalog/refresh", h.refreshCatalog)
		api.POST("/sync", h.triggerSync)
		h.registerSyncRunRoutes(api)
	}
}

func (h *Handler) registerSyncRunRoutes(api *gin.RouterGroup) {
	runs := api.Group("/sync/runs")
	{
		runs.GET("", h.getSyncRuns)
	}
}
