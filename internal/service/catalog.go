package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/metrics"
	"tank_edge/internal/models"
	"tank_edge/internal/repository"
)

// DeviceFetcher is the registry side of the catalog.
type DeviceFetcher interface {
	FetchDevices(ctx context.Context) ([]models.DeviceDescriptor, error)
}

type catalogSnapshot struct {
	byCode map[string]models.DeviceDescriptor
	list   []models.DeviceDescriptor // sorted by code
}

func newCatalogSnapshot(devices []models.DeviceDescriptor) *catalogSnapshot {
	s := &catalogSnapshot{
		byCode: make(map[string]models.DeviceDescriptor, len(devices)),
		list:   make([]models.DeviceDescriptor, 0, len(devices)),
	}
	for _, d := range devices {
		if _, dup := s.byCode[d.Code]; dup {
			continue
		}
		s.byCode[d.Code] = d
		s.list = append(s.list, d)
	}
	sort.Slice(s.list, func(i, j int) bool { return s.list[i].Code < s.list[j].Code })
	return s
}

// CatalogService holds the device snapshot. Readers never lock; Refresh
// swaps the whole snapshot after its on-disk mirror has been written.
type CatalogService struct {
	fetcher DeviceFetcher
	store   repository.SnapshotStore[models.DeviceDescriptor]
	timeout time.Duration
	log     *logger.Logger

	snap atomic.Pointer[catalogSnapshot]

	mu   sync.Mutex // serializes refreshes and subscriber calls
	subs []func([]models.DeviceDescriptor)
}

// NewCatalogService starts from the last mirrored snapshot, if any.
func NewCatalogService(fetcher DeviceFetcher, store repository.SnapshotStore[models.DeviceDescriptor], timeout time.Duration, log *logger.Logger) *CatalogService {
	c := &CatalogService{fetcher: fetcher, store: store, timeout: timeout, log: log}

	devices, err := store.Load()
	if err != nil {
		log.Errorw("catalog_snapshot_unreadable", "err", err)
		devices = nil
	}
	c.snap.Store(newCatalogSnapshot(devices))
	metrics.CatalogDevices.Set(float64(len(devices)))
	log.Infow("catalog_loaded", "devices", len(devices))
	return c
}

// Subscribe registers fn to receive every new snapshot after a successful refresh.
func (c *CatalogService) Subscribe(fn func([]models.DeviceDescriptor)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Refresh fetches the registry. On any failure the previous snapshot stays.
func (c *CatalogService) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	devices, err := c.fetcher.FetchDevices(ctx)
	if err != nil {
		c.log.Warnw("catalog_refresh_failed", "err", err)
		return fmt.Errorf("fetch devices: %w", err)
	}

	next := newCatalogSnapshot(devices)
	if err := c.store.Save(next.list); err != nil {
		c.log.Errorw("catalog_persist_failed", "err", err)
		return fmt.Errorf("persist devices: %w", err)
	}
	c.snap.Store(next)
	metrics.CatalogDevices.Set(float64(len(next.list)))
	c.log.Infow("catalog_refreshed", "devices", len(next.list))

	for _, fn := range c.subs {
		fn(c.All())
	}
	return nil
}

func (c *CatalogService) Lookup(code string) (models.DeviceDescriptor, bool) {
	d, ok := c.snap.Load().byCode[code]
	return d, ok
}

// All returns a copy of the current snapshot, sorted by code.
func (c *CatalogService) All() []models.DeviceDescriptor {
	list := c.snap.Load().list
	out := make([]models.DeviceDescriptor, len(list))
	copy(out, list)
	return out
}

// Run refreshes immediately and then every period until ctx is cancelled.
func (c *CatalogService) Run(ctx context.Context, period time.Duration) {
	_ = c.Refresh(ctx)

	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = c.Refresh(ctx)
		}
	}
}
