package service

import (
	"time"

	"tank_edge/internal/models"
)

type taskLister interface {
	Tasks() []TaskStatus
}

type syncStater interface {
	State() SyncState
}

type deviceLister interface {
	All() []models.DeviceDescriptor
}

// ConnectionProbe reports whether the device link is up.
type ConnectionProbe interface {
	Connected() bool
}

// MonitoringService assembles the node status from the running components.
type MonitoringService struct {
	nodeUUID string
	catalog  deviceLister
	tasks    taskLister
	sync     syncStater
	link     ConnectionProbe
	now      func() time.Time
}

func NewMonitoringService(nodeUUID string, catalog deviceLister, tasks taskLister, sync syncStater, link ConnectionProbe) *MonitoringService {
	return &MonitoringService{
		nodeUUID: nodeUUID,
		catalog:  catalog,
		tasks:    tasks,
		sync:     sync,
		link:     link,
		now:      time.Now,
	}
}

// GetStatus returns a point-in-time snapshot. Tasks is never nil.
func (s *MonitoringService) GetStatus() NodeStatus {
	tasks := s.tasks.Tasks()
	if tasks == nil {
		tasks = []TaskStatus{}
	}
	st := NodeStatus{
		NodeUUID:       s.nodeUUID,
		GeneratedAt:    s.now().UTC(),
		CatalogDevices: len(s.catalog.All()),
		Tasks:          tasks,
		Sync:           s.sync.State(),
	}
	if s.link != nil {
		st.SerialConnected = s.link.Connected()
	}
	return st
}
