package handlers

import (
	"context"
	"sync"

	"tank_edge/internal/models"
	"tank_edge/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockCatalog struct {
	devices      []models.DeviceDescriptor
	refreshErr   error
	refreshCalls int
}

func (m *mockCatalog) Refresh(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func (m *mockCatalog) Lookup(code string) (models.DeviceDescriptor, bool) {
	for _, d := range m.devices {
		if d.Code == code {
			return d, true
		}
	}
	return models.DeviceDescriptor{}, false
}

func (m *mockCatalog) All() []models.DeviceDescriptor {
	return m.devices
}

type mockMonitoring struct {
	mu     sync.Mutex
	status service.NodeStatus
	calls  int
}

func (m *mockMonitoring) GetStatus() service.NodeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.status
}

type mockSynchronizer struct {
	triggered int
}

func (m *mockSynchronizer) Trigger() {
	m.triggered++
}

type mockJournal struct {
	resp       []models.SyncRun
	err        error
	lastFilter service.RunFilter
}

func (m *mockJournal) List(ctx context.Context, f service.RunFilter) ([]models.SyncRun, error) {
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
