package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tank_edge/internal/models"
	"tank_edge/internal/service"
)

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
}

func TestStatusHandlers_GetStatusAndDevices(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	mon := &mockMonitoring{status: service.NodeStatus{
		NodeUUID:        "node-1",
		GeneratedAt:     now,
		CatalogDevices:  1,
		SerialConnected: true,
		Tasks:           []service.TaskStatus{{Code: "tmp/1", Name: "Water temp", Active: true, IntervalSeconds: 5}},
		Sync:            service.SyncState{Phase: service.PhaseIdle, PendingReadings: 3},
	}}
	cat := &mockCatalog{devices: []models.DeviceDescriptor{
		{ID: 1, TankID: 10, Code: "tmp/1", Name: "Water temp", ReadingIntervalSeconds: 5},
	}}
	r := newTestRouter(&service.Service{Monitoring: mon, Catalog: cat})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st service.NodeStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.NodeUUID != "node-1" || !st.SerialConnected || len(st.Tasks) != 1 || st.Sync.PendingReadings != 3 {
		t.Fatalf("unexpected status: %+v", st)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("devices status=%d", w.Code)
	}
	var out struct {
		Count   int                       `json:"count"`
		Devices []models.DeviceDescriptor `json:"devices"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 1 || out.Devices[0].Code != "tmp/1" || out.Devices[0].TankID != 10 {
		t.Fatalf("unexpected devices: %+v", out)
	}
}

func TestTriggerSync_Accepted(t *testing.T) {
	syn := &mockSynchronizer{}
	r := newTestRouter(&service.Service{Synchronizer: syn})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if syn.triggered != 1 {
		t.Fatalf("expected one trigger, got %d", syn.triggered)
	}
}

func TestRefreshCatalog(t *testing.T) {
	cat := &mockCatalog{devices: []models.DeviceDescriptor{{ID: 1, TankID: 1, Code: "phh/1"}}}
	r := newTestRouter(&service.Service{Catalog: cat})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Status != statusRefreshed || out.Count != 1 || cat.refreshCalls != 1 {
		t.Fatalf("unexpected refresh response: %+v calls=%d", out, cat.refreshCalls)
	}

	// Registry failure → 502, catalog unchanged
	cat.refreshErr = errors.New("registry down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/refresh", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if len(cat.All()) != 1 {
		t.Fatalf("catalog should be unchanged")
	}
}
