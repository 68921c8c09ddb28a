package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_PostsBatch(t *testing.T) {
	var got struct {
		Collection string            `json:"collection"`
		SensorData []json.RawMessage `json:"sensor_data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sensor-data/batch", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	h := NewHTTPTransport(srv.URL+"/api/sensor-data/batch", time.Second, logger.Nop())
	docs := []any{
		models.ReadingDocument{UID: "a", ID: 1, SensorCode: "tmp/1", Value: 21.5},
		models.ReadingDocument{UID: "b", ID: 2, SensorCode: "phh/1", Value: 7},
	}
	require.NoError(t, h.InsertMany(context.Background(), "sensor_readings", docs))

	assert.Equal(t, "sensor_readings", got.Collection)
	assert.Len(t, got.SensorData, 2)
}

func TestHTTPTransport_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad batch", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	h := NewHTTPTransport(srv.URL, time.Second, logger.Nop())
	err := h.InsertMany(context.Background(), "alerts", []any{models.AlertDocument{UID: "x"}})
	require.ErrorIs(t, err, models.ErrRemoteRejected)
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := NewHTTPTransport(url, time.Second, logger.Nop())
	err := h.InsertMany(context.Background(), "alerts", []any{models.AlertDocument{UID: "x"}})
	require.ErrorIs(t, err, models.ErrTransport)
}

func TestHTTPTransport_EmptyBatchIsNoop(t *testing.T) {
	h := NewHTTPTransport("http://127.0.0.1:1", time.Second, logger.Nop())
	require.NoError(t, h.InsertMany(context.Background(), "alerts", nil))
}
