package service

import (
	"context"
	"sync"
	"testing"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"
	"tank_edge/internal/repository"
)

func newTestRepos(t *testing.T) (*repository.Repository, *fakeJournalRepo) {
	t.Helper()
	dir := t.TempDir()
	log := logger.Nop()

	readings, err := repository.OpenStream[models.SensorReading](dir, repository.PendingReadingsFile, log)
	if err != nil {
		t.Fatalf("open readings: %v", err)
	}
	history, err := repository.OpenStream[models.SensorReading](dir, repository.HistoryReadingsFile, log)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	alerts, err := repository.OpenStream[models.Alert](dir, repository.PendingAlertsFile, log)
	if err != nil {
		t.Fatalf("open alerts: %v", err)
	}
	devices, err := repository.NewSnapshot[models.DeviceDescriptor](dir, repository.DevicesFile)
	if err != nil {
		t.Fatalf("open devices: %v", err)
	}
	userConfigs, err := repository.NewSnapshot[models.ConfigRule](dir, repository.UserConfigsFile)
	if err != nil {
		t.Fatalf("open user configs: %v", err)
	}

	journal := &fakeJournalRepo{}
	return &repository.Repository{
		Readings:    readings,
		History:     history,
		Alerts:      alerts,
		Devices:     devices,
		UserConfigs: userConfigs,
		Journal:     journal,
	}, journal
}

// staticCatalog is a mutable in-memory DeviceLookup.
type staticCatalog struct {
	mu      sync.Mutex
	devices []models.DeviceDescriptor
}

func newStaticCatalog(devices ...models.DeviceDescriptor) *staticCatalog {
	return &staticCatalog{devices: devices}
}

func (c *staticCatalog) set(devices ...models.DeviceDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = devices
}

func (c *staticCatalog) Lookup(code string) (models.DeviceDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.devices {
		if d.Code == code {
			return d, true
		}
	}
	return models.DeviceDescriptor{}, false
}

func (c *staticCatalog) All() []models.DeviceDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.DeviceDescriptor, len(c.devices))
	copy(out, c.devices)
	return out
}

type transportCall struct {
	collection string
	docs       []any
}

// fakeTransport records batches; hook runs inside InsertMany before it returns.
type fakeTransport struct {
	mu    sync.Mutex
	calls []transportCall
	err   error
	hook  func(collection string)
}

func (f *fakeTransport) InsertMany(ctx context.Context, collection string, docs []any) error {
	f.mu.Lock()
	f.calls = append(f.calls, transportCall{collection: collection, docs: docs})
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(collection)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) Close(context.Context) error { return nil }

func (f *fakeTransport) callsFor(collection string) []transportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transportCall
	for _, c := range f.calls {
		if c.collection == collection {
			out = append(out, c)
		}
	}
	return out
}

type recordingSink struct {
	mu   sync.Mutex
	cmds []string
	err  error
}

func (s *recordingSink) WriteCommand(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *recordingSink) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cmds))
	copy(out, s.cmds)
	return out
}
