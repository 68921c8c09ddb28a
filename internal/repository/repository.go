package repository

import (
	"context"
	"database/sql"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"
)

// Local file names under the storage directory.
const (
	PendingReadingsFile = "pending_readings"
	PendingAlertsFile   = "pending_alerts"
	HistoryReadingsFile = "history_readings"
	DevicesFile         = "devices"
	UserConfigsFile     = "user_configs"
)

// Queue is the durable queue contract for one record kind.
type Queue[T any] interface {
	Append(rec T) (T, error)
	ListUnsynced() []T
	MarkSynced(ids []uint64) (int, error)
	MarkSyncedUIDs(uids []string) (int, error)
	Prune(cutoff time.Time) (int, error)
	PurgeSynced() (int, error)
	Stats() (total, unsynced int)
}

// SnapshotStore persists a wholesale-replaced list.
type SnapshotStore[T any] interface {
	Load() ([]T, error)
	Save(items []T) error
}

type JournalRepo interface {
	Append(ctx context.Context, run models.SyncRun) error
	List(ctx context.Context, from, to time.Time, stream string, limit int) ([]models.SyncRun, error)
}

type Repository struct {
	Readings    Queue[models.SensorReading] // pending readings
	History     Queue[models.SensorReading] // historical readings
	Alerts      Queue[models.Alert]         // pending alerts
	Devices     SnapshotStore[models.DeviceDescriptor]
	UserConfigs SnapshotStore[models.ConfigRule]
	Journal     JournalRepo
}

// NewRepository opens every stream under dir. The journal lives in db.
func NewRepository(dir string, db *sql.DB, log *logger.Logger) (*Repository, error) {
	readings, err := OpenStream[models.SensorReading](dir, PendingReadingsFile, log)
	if err != nil {
		return nil, err
	}
	history, err := OpenStream[models.SensorReading](dir, HistoryReadingsFile, log)
	if err != nil {
		return nil, err
	}
	alerts, err := OpenStream[models.Alert](dir, PendingAlertsFile, log)
	if err != nil {
		return nil, err
	}
	devices, err := NewSnapshot[models.DeviceDescriptor](dir, DevicesFile)
	if err != nil {
		return nil, err
	}
	userConfigs, err := NewSnapshot[models.ConfigRule](dir, UserConfigsFile)
	if err != nil {
		return nil, err
	}

	return &Repository{
		Readings:    readings,
		History:     history,
		Alerts:      alerts,
		Devices:     devices,
		UserConfigs: userConfigs,
		Journal:     NewJournalSQLite(db),
	}, nil
}
