package models

import "time"

// SyncRun is one journaled batch delivery attempt.
type SyncRun struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Stream    string        `json:"stream"` // READINGS | ALERTS
	BatchSize int           `json:"batch_size"`
	Status    string        `json:"status"` // OK | FAILED
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

const (
	SyncStatusOK     = "OK"
	SyncStatusFailed = "FAILED"

	StreamReadings = "READINGS"
	StreamAlerts   = "ALERTS"
)
