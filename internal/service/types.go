package service

import "time"

// RunFilter narrows the sync journal listing.
type RunFilter struct {
	From   time.Time
	To     time.Time
	Stream string
	Limit  int
}

// TaskStatus is the live state of one acquisition task.
type TaskStatus struct {
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	TankID          uint32    `json:"tankId"`
	DeviceID        uint32    `json:"deviceId"`
	IntervalSeconds float64   `json:"intervalSeconds"`
	Active          bool      `json:"active"`
	Reads           uint64    `json:"reads"`
	Failures        uint64    `json:"failures"`
	LastReadAt      time.Time `json:"lastReadAt"`
	LastValue       *float64  `json:"lastValue,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
}

// Sync phases.
const (
	PhaseIdle         = "IDLE"
	PhaseSyncAlerts   = "SYNC_ALERTS"
	PhaseSyncReadings = "SYNC_READINGS"
	PhasePrune        = "PRUNE"
)

// SyncState describes the sync manager and the local backlog.
type SyncState struct {
	Phase           string    `json:"phase"`
	LastCycleAt     time.Time `json:"lastCycleAt"`
	LastSuccessAt   time.Time `json:"lastSuccessAt"`
	LastError       string    `json:"lastError,omitempty"`
	PendingReadings int       `json:"pendingReadings"`
	PendingAlerts   int       `json:"pendingAlerts"`
	HistoryTotal    int       `json:"historyTotal"`
	HistoryUnsynced int       `json:"historyUnsynced"`
}

// NodeStatus is the snapshot served by the status API and pushed over /ws.
type NodeStatus struct {
	NodeUUID        string       `json:"nodeUuid"`
	GeneratedAt     time.Time    `json:"generatedAt"`
	CatalogDevices  int          `json:"catalogDevices"`
	SerialConnected bool         `json:"serialConnected"`
	Tasks           []TaskStatus `json:"tasks"`
	Sync            SyncState    `json:"sync"`
}
