package remote

import (
	"context"
	"fmt"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"github.com/go-resty/resty/v2"
)

type batchRequest struct {
	Collection string    `json:"collection"`
	SensorData []any     `json:"sensor_data"`
	Timestamp  time.Time `json:"timestamp"`
}

// HTTPTransport posts each batch to a backend endpoint such as
// /api/sensor-data/batch. Any 2xx answer counts as stored.
type HTTPTransport struct {
	url  string
	http *resty.Client
	log  *logger.Logger
}

func NewHTTPTransport(url string, timeout time.Duration, log *logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		url: url,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		log: log,
	}
}

func (h *HTTPTransport) InsertMany(ctx context.Context, collection string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}

	resp, err := h.http.R().
		SetContext(ctx).
		SetBody(batchRequest{Collection: collection, SensorData: docs, Timestamp: time.Now().UTC()}).
		Post(h.url)
	if err != nil {
		return models.WrapTransport("POST batch", err)
	}
	if resp.IsError() {
		return fmt.Errorf("POST batch to %s: %w: status %d", collection, models.ErrRemoteRejected, resp.StatusCode())
	}
	h.log.Debugw("http_batch_accepted", "collection", collection, "count", len(docs), "status", resp.StatusCode())
	return nil
}

func (h *HTTPTransport) Close(context.Context) error { return nil }
