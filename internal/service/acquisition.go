package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/models"
	"tank_edge/internal/repository"
	"tank_edge/internal/source"

	"github.com/google/uuid"
)

const defaultUnit = "N/A"

// DeviceLookup resolves a sensor code against the current catalog.
type DeviceLookup interface {
	Lookup(code string) (models.DeviceDescriptor, bool)
	All() []models.DeviceDescriptor
}

// task is one device's periodic reader. The device pointer is swapped on
// catalog changes; alive turns false once the device is removed.
type task struct {
	code   string
	device atomic.Pointer[models.DeviceDescriptor]
	alive  atomic.Bool
	stop   chan struct{}
	done   chan struct{}

	mu         sync.Mutex
	reads      uint64
	failures   uint64
	lastReadAt time.Time
	lastValue  *float64
	lastErr    string
}

func (t *task) recordSuccess(at time.Time, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads++
	t.lastReadAt = at
	t.lastValue = &v
	t.lastErr = ""
}

func (t *task) recordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	t.lastErr = err.Error()
}

func (t *task) status() TaskStatus {
	d := t.device.Load()
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TaskStatus{
		Code:            t.code,
		Name:            d.DisplayName(),
		TankID:          d.TankID,
		DeviceID:        d.ID,
		IntervalSeconds: d.Interval().Seconds(),
		Active:          t.alive.Load(),
		Reads:           t.reads,
		Failures:        t.failures,
		LastReadAt:      t.lastReadAt,
		LastError:       t.lastErr,
	}
	if t.lastValue != nil {
		v := *t.lastValue
		st.LastValue = &v
	}
	return st
}

// Scheduler keeps exactly one task per catalog device.
type Scheduler struct {
	catalog     DeviceLookup
	source      source.Source
	readings    repository.Queue[models.SensorReading]
	history     repository.Queue[models.SensorReading]
	alerts      repository.Queue[models.Alert]
	rules       models.ThresholdTable
	units       map[string]string
	readTimeout time.Duration
	log         *logger.Logger
	now         func() time.Time

	mu    sync.Mutex
	ctx   context.Context
	tasks map[string]*task
	wg    sync.WaitGroup
}

func NewScheduler(
	catalog DeviceLookup,
	src source.Source,
	repos *repository.Repository,
	rules models.ThresholdTable,
	units map[string]string,
	readTimeout time.Duration,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		catalog:     catalog,
		source:      src,
		readings:    repos.Readings,
		history:     repos.History,
		alerts:      repos.Alerts,
		rules:       rules,
		units:       units,
		readTimeout: readTimeout,
		log:         log,
		now:         time.Now,
		tasks:       make(map[string]*task),
	}
}

// Run starts a task for every catalog device and blocks until ctx is done,
// then waits for all tasks to exit.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.Sync(s.catalog.All())
	s.log.Infow("scheduler_started", "tasks", len(s.Tasks()))

	<-ctx.Done()

	s.mu.Lock()
	for code, t := range s.tasks {
		t.alive.Store(false)
		close(t.stop)
		delete(s.tasks, code)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Infow("scheduler_stopped")
}

// Sync reconciles running tasks with devices: removed devices' tasks stop
// after their current cycle, new devices get a task, and interval changes
// apply from the next sleep.
func (s *Scheduler) Sync(devices []models.DeviceDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}

	want := make(map[string]models.DeviceDescriptor, len(devices))
	for _, d := range devices {
		want[d.Code] = d
	}

	for code, t := range s.tasks {
		if _, ok := want[code]; ok {
			continue
		}
		t.alive.Store(false)
		close(t.stop)
		delete(s.tasks, code)
		s.log.Infow("task_stopped", "code", code)
	}

	for code, d := range want {
		d := d
		if t, ok := s.tasks[code]; ok {
			prev := t.device.Load()
			t.device.Store(&d)
			if prev.Interval() != d.Interval() {
				s.log.Infow("task_interval_changed", "code", code, "from", prev.Interval().String(), "to", d.Interval().String())
			}
			continue
		}

		t := &task{code: code, stop: make(chan struct{}), done: make(chan struct{})}
		t.device.Store(&d)
		t.alive.Store(true)
		s.tasks[code] = t
		s.wg.Add(1)
		go s.runTask(s.ctx, t)
		s.log.Infow("task_started", "code", code, "interval", d.Interval().String())
	}
}

// Tasks reports the running tasks, sorted by code.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	list := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		list = append(list, t)
	}
	s.mu.Unlock()

	out := make([]TaskStatus, 0, len(list))
	for _, t := range list {
		out = append(out, t.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Scheduler) runTask(ctx context.Context, t *task) {
	defer s.wg.Done()
	defer close(t.done)

	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()

	for {
		if !t.alive.Load() || ctx.Err() != nil {
			return
		}

		s.cycle(ctx, t)

		if !t.alive.Load() {
			return
		}
		timer := time.NewTimer(t.device.Load().Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle performs one read. Shutdown does not interrupt it; the read has
// its own timeout.
func (s *Scheduler) cycle(ctx context.Context, t *task) {
	dev := t.device.Load()

	readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.readTimeout)
	line, err := s.source.ReadLine(readCtx, dev.Code)
	cancel()
	if err != nil {
		s.reject(t, "transport", err)
		return
	}

	if err := s.ingest(t, line); err != nil {
		s.reject(t, rejectReason(err), err)
	}
}

// ingest validates one raw line and appends the reading, plus an alert when
// a threshold is breached.
func (s *Scheduler) ingest(t *task, line string) error {
	code, value, err := ParseLine(line)
	if err != nil {
		return err
	}
	dev, ok := s.catalog.Lookup(code)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownSensor, code)
	}

	rec := models.SensorReading{
		UID:        uuid.NewString(),
		TankID:     dev.TankID,
		DeviceID:   dev.ID,
		SensorCode: code,
		Value:      value,
		Unit:       s.unitFor(code),
		Timestamp:  s.now().UTC(),
	}
	stored, err := s.readings.Append(rec)
	if err != nil {
		s.log.Errorw("reading_store_failed", "code", code, "err", err)
		return err
	}
	if _, err := s.history.Append(rec); err != nil {
		s.log.Errorw("history_store_failed", "code", code, "uid", rec.UID, "err", err)
	}

	t.recordSuccess(stored.Timestamp, value)
	metrics.ReadingsAccepted.WithLabelValues(models.SensorType(code)).Inc()
	s.log.Infow("reading_stored", "code", code, "id", stored.ID, "value", value, "unit", stored.Unit)

	alert, raised := Evaluate(code, dev.DisplayName(), value, s.rules)
	if !raised {
		return nil
	}
	alert.UID = uuid.NewString()
	alert.ReadingUID = stored.UID
	alert.TankID = stored.TankID
	alert.DeviceID = stored.DeviceID
	alert.Timestamp = stored.Timestamp

	storedAlert, err := s.alerts.Append(alert)
	if err != nil {
		s.log.Errorw("alert_store_failed", "code", code, "reading_uid", stored.UID, "err", err)
		return nil
	}
	metrics.AlertsRaised.WithLabelValues(models.SensorType(code)).Inc()
	s.log.Warnw("alert_raised", "code", code, "id", storedAlert.ID, "message", storedAlert.Message)
	return nil
}

func (s *Scheduler) reject(t *task, reason string, err error) {
	t.recordFailure(err)
	metrics.ReadingsRejected.WithLabelValues(reason).Inc()
	s.log.Warnw("reading_rejected", "code", t.code, "reason", reason, "err", err)
}

func (s *Scheduler) unitFor(code string) string {
	if u, ok := s.units[models.SensorType(code)]; ok && u != "" {
		return u
	}
	return defaultUnit
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrParse):
		return "parse"
	case errors.Is(err, models.ErrUnknownSensor):
		return "unknown_sensor"
	default:
		return "storage"
	}
}
