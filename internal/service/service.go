package service

import (
	"context"
	"sync"
	"time"

	"tank_edge/internal/logger"
	"tank_edge/internal/models"
	"tank_edge/internal/remote"
	"tank_edge/internal/repository"
	"tank_edge/internal/source"
)

// Catalog exposes the device snapshot and manual refresh.
type Catalog interface {
	Refresh(ctx context.Context) error
	Lookup(code string) (models.DeviceDescriptor, bool)
	All() []models.DeviceDescriptor
}

// Monitoring exposes the node status (tasks, sync phase, backlog).
type Monitoring interface {
	GetStatus() NodeStatus
}

// Synchronizer lets callers request an immediate sync cycle.
type Synchronizer interface {
	Trigger()
}

// Journal exposes the sync batch history with filtering.
type Journal interface {
	List(ctx context.Context, f RunFilter) ([]models.SyncRun, error)
}

// Registry is the device registry and user configuration API.
type Registry interface {
	DeviceFetcher
	RuleFetcher
}

// Settings carries the periods and timeouts of the background loops.
type Settings struct {
	NodeUUID        string
	ReadTimeout     time.Duration
	RegistryTimeout time.Duration
	CatalogRefresh  time.Duration
	ConfigRulesPoll time.Duration
	ActuatorCheck   time.Duration
	Sync            SyncSettings
	Thresholds      models.ThresholdTable
	Units           map[string]string
}

// Deps are the I/O adapters built in main.
type Deps struct {
	Repos    *repository.Repository
	Registry Registry
	Source   source.Source
	Commands source.CommandWriter
	Link     ConnectionProbe
	Remote   remote.Transport
}

type Service struct {
	Catalog
	Monitoring
	Synchronizer
	Journal

	settings  Settings
	catalog   *CatalogService
	scheduler *Scheduler
	sync      *SyncManager
	actuators *ActuatorService
	log       *logger.Logger
}

// NewService wires the adapters into the acquisition and sync pipeline.
func NewService(deps Deps, settings Settings, log *logger.Logger) *Service {
	catalog := NewCatalogService(deps.Registry, deps.Repos.Devices, settings.RegistryTimeout, log.Named("catalog"))
	scheduler := NewScheduler(catalog, deps.Source, deps.Repos, settings.Thresholds, settings.Units, settings.ReadTimeout, log.Named("acquisition"))
	syncer := NewSyncManager(deps.Repos, deps.Remote, settings.Sync, log.Named("sync"))
	actuators := NewActuatorService(deps.Registry, deps.Repos.UserConfigs, deps.Commands, settings.RegistryTimeout, log.Named("actuators"))

	catalog.Subscribe(scheduler.Sync)

	return &Service{
		Catalog:      catalog,
		Monitoring:   NewMonitoringService(settings.NodeUUID, catalog, scheduler, syncer, deps.Link),
		Synchronizer: syncer,
		Journal:      NewJournalService(deps.Repos.Journal),
		settings:     settings,
		catalog:      catalog,
		scheduler:    scheduler,
		sync:         syncer,
		actuators:    actuators,
		log:          log,
	}
}

// Run starts every background loop and blocks until ctx is cancelled and
// all of them have returned.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	start := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			s.log.Infow("loop_stopped", "loop", name)
		}()
	}

	start("scheduler", func() { s.scheduler.Run(ctx) })
	start("catalog", func() { s.catalog.Run(ctx, s.settings.CatalogRefresh) })
	start("sync", func() { s.sync.Run(ctx) })
	start("actuators", func() { s.actuators.Run(ctx, s.settings.ConfigRulesPoll, s.settings.ActuatorCheck) })

	wg.Wait()
}
