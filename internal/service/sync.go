package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/models"
	"tank_edge/internal/remote"
	"tank_edge/internal/repository"
)

const journalTimeout = 5 * time.Second

type SyncSettings struct {
	Period             time.Duration
	Retention          time.Duration
	ReadingsCollection string
	AlertsCollection   string
}

// SyncManager drains the pending streams to the remote store. One cycle
// walks IDLE -> SYNC_ALERTS -> SYNC_READINGS -> PRUNE -> IDLE. Only ids
// that were part of a confirmed batch are ever marked synced.
type SyncManager struct {
	readings repository.Queue[models.SensorReading]
	history  repository.Queue[models.SensorReading]
	alerts   repository.Queue[models.Alert]
	journal  repository.JournalRepo
	remote   remote.Transport
	settings SyncSettings
	log      *logger.Logger
	now      func() time.Time

	trigger chan struct{}
	cycleMu sync.Mutex

	stateMu       sync.RWMutex
	phase         string
	lastCycleAt   time.Time
	lastSuccessAt time.Time
	lastErr       string
}

func NewSyncManager(repos *repository.Repository, transport remote.Transport, settings SyncSettings, log *logger.Logger) *SyncManager {
	return &SyncManager{
		readings: repos.Readings,
		history:  repos.History,
		alerts:   repos.Alerts,
		journal:  repos.Journal,
		remote:   transport,
		settings: settings,
		log:      log,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		phase:    PhaseIdle,
	}
}

// Run syncs at startup, then every period or on Trigger, until ctx is done.
func (m *SyncManager) Run(ctx context.Context) {
	_ = m.RunCycle(ctx)

	t := time.NewTicker(m.settings.Period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-m.trigger:
		}
		_ = m.RunCycle(ctx)
	}
}

// Trigger requests an immediate cycle. Requests coalesce.
func (m *SyncManager) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// RunCycle performs one full cycle. A failed stream does not prevent the
// other stream or the prune step from running.
func (m *SyncManager) RunCycle(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	m.setPhase(PhaseSyncAlerts)
	_, alertsErr := syncStream(ctx, m, models.StreamAlerts, m.settings.AlertsCollection, m.alerts,
		func(a models.Alert) any { return a.Document() }, nil)

	m.setPhase(PhaseSyncReadings)
	_, readingsErr := syncStream(ctx, m, models.StreamReadings, m.settings.ReadingsCollection, m.readings,
		func(r models.SensorReading) any { return r.Document() },
		func(uids []string) error {
			_, err := m.history.MarkSyncedUIDs(uids)
			return err
		})

	m.setPhase(PhasePrune)
	m.prune()

	err := errors.Join(alertsErr, readingsErr)
	m.finishCycle(err)
	m.updateGauges()
	return err
}

// syncStream sends every unsynced record of q as one batch. onDelivered
// runs with the batch's uids after the ids are marked.
func syncStream[T any, P interface {
	*T
	GetID() uint64
	GetUID() string
}](
	ctx context.Context,
	m *SyncManager,
	stream, collection string,
	q repository.Queue[T],
	toDoc func(T) any,
	onDelivered func(uids []string) error,
) (int, error) {
	pending := q.ListUnsynced()
	if len(pending) == 0 {
		return 0, nil
	}

	docs := make([]any, 0, len(pending))
	ids := make([]uint64, 0, len(pending))
	uids := make([]string, 0, len(pending))
	for i := range pending {
		p := P(&pending[i])
		docs = append(docs, toDoc(pending[i]))
		ids = append(ids, p.GetID())
		uids = append(uids, p.GetUID())
	}

	started := m.now().UTC()
	begin := time.Now()
	err := m.remote.InsertMany(ctx, collection, docs)
	elapsed := time.Since(begin)

	run := models.SyncRun{StartedAt: started, Stream: stream, BatchSize: len(docs), Duration: elapsed}
	if err != nil {
		run.Status = models.SyncStatusFailed
		run.Error = err.Error()
		m.record(ctx, run)
		m.log.Warnw("sync_batch_failed", "stream", stream, "batch_size", len(docs), "err", err)
		return 0, fmt.Errorf("sync %s: %w", stream, err)
	}

	run.Status = models.SyncStatusOK
	m.record(ctx, run)

	marked, err := q.MarkSynced(ids)
	if err != nil {
		m.log.Errorw("sync_mark_failed", "stream", stream, "batch_size", len(ids), "err", err)
		return 0, fmt.Errorf("mark %s synced: %w", stream, err)
	}
	if onDelivered != nil {
		if err := onDelivered(uids); err != nil {
			m.log.Errorw("sync_mirror_failed", "stream", stream, "err", err)
		}
	}
	if _, err := q.PurgeSynced(); err != nil {
		m.log.Errorw("sync_purge_failed", "stream", stream, "err", err)
	}

	m.log.Infow("sync_batch_ok", "stream", stream, "batch_size", len(docs), "marked", marked, "duration", elapsed.String())
	return marked, nil
}

func (m *SyncManager) prune() {
	cutoff := m.now().Add(-m.settings.Retention)
	removed, err := m.history.Prune(cutoff)
	if err != nil {
		m.log.Errorw("history_prune_failed", "err", err)
		return
	}
	if removed > 0 {
		metrics.RecordsPruned.Add(float64(removed))
		m.log.Infow("history_pruned", "removed", removed, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
}

func (m *SyncManager) record(ctx context.Context, run models.SyncRun) {
	metrics.ObserveSync(run.Stream, run.Status, run.Duration)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := m.journal.Append(ctx, run); err != nil {
		m.log.Errorw("sync_journal_failed", "stream", run.Stream, "err", err)
	}
}

func (m *SyncManager) setPhase(p string) {
	m.stateMu.Lock()
	m.phase = p
	m.stateMu.Unlock()
}

func (m *SyncManager) finishCycle(err error) {
	now := m.now().UTC()
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.phase = PhaseIdle
	m.lastCycleAt = now
	if err != nil {
		m.lastErr = err.Error()
		return
	}
	m.lastErr = ""
	m.lastSuccessAt = now
}

func (m *SyncManager) updateGauges() {
	_, pr := m.readings.Stats()
	_, pa := m.alerts.Stats()
	metrics.PendingRecords.WithLabelValues(models.StreamReadings).Set(float64(pr))
	metrics.PendingRecords.WithLabelValues(models.StreamAlerts).Set(float64(pa))
}

// State reports the current phase and backlog sizes.
func (m *SyncManager) State() SyncState {
	m.stateMu.RLock()
	st := SyncState{
		Phase:         m.phase,
		LastCycleAt:   m.lastCycleAt,
		LastSuccessAt: m.lastSuccessAt,
		LastError:     m.lastErr,
	}
	m.stateMu.RUnlock()

	_, st.PendingReadings = m.readings.Stats()
	_, st.PendingAlerts = m.alerts.Stats()
	st.HistoryTotal, st.HistoryUnsynced = m.history.Stats()
	return st
}
