package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tank_edge/internal/config"
	"tank_edge/internal/handlers"
	"tank_edge/internal/logger"
	"tank_edge/internal/mqtt"
	"tank_edge/internal/registry"
	"tank_edge/internal/remote"
	"tank_edge/internal/repository"
	"tank_edge/internal/repository/db"
	"tank_edge/internal/server"
	"tank_edge/internal/service"
	"tank_edge/internal/source"
)

const (
	configDir       = "configs"
	shutdownTimeout = 10 * time.Second
)

func main() {
	// load .env + configs/config.yml
	cfg, err := config.Load(configDir)
	if err != nil {
		logger.New(logger.InfoLevel, logger.ConsoleFormat).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	// open journal DB
	journalDB, err := db.InitDB(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.Storage.DBPath)
	}
	defer func() {
		if cerr := journalDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos, err := repository.NewRepository(cfg.Storage.Dir, journalDB, log.Named("storage"))
	if err != nil {
		log.Fatalw("failed to open storage", "err", err, "dir", cfg.Storage.Dir)
	}

	// wire adapters
	serialSource := source.NewSerialSource(source.SerialOpener(cfg.Serial.Port, cfg.Serial.BaudRate), log.Named("serial"))
	transport := newTransport(cfg, log)
	services := service.NewService(service.Deps{
		Repos:    repos,
		Registry: registry.NewClient(cfg.Registry.BaseURL, cfg.Node.UUID, cfg.Registry.Timeout, log.Named("registry")),
		Source:   serialSource,
		Commands: serialSource,
		Link:     serialSource,
		Remote:   transport,
	}, settingsFrom(cfg), log)
	apiHandler := handlers.NewHandler(services, log.Named("http"), handlers.WithPushInterval(cfg.Status.PushPeriod))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	goRun(serialSource.Run)
	goRun(services.Run)
	if cfg.MQTT.Broker != "" {
		listener := mqtt.NewListener(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTTTopic(), serialSource, log.Named("mqtt"))
		goRun(listener.Run)
	} else {
		log.Infow("mqtt_disabled", "reason", "mqtt.broker not set")
	}

	// start HTTP server
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	log.Infow("node_started", "node_uuid", cfg.Node.UUID, "remote", cfg.Remote.Kind, "addr", srv.Addr())

	// graceful shutdown
	waitForShutdown(cancel, &wg, srv, transport, log)
}

func newTransport(cfg *config.Config, log *logger.Logger) remote.Transport {
	if cfg.Remote.Kind == config.RemoteHTTP {
		return remote.NewHTTPTransport(cfg.Remote.HTTPURL, cfg.Remote.Timeout, log.Named("remote"))
	}
	return remote.NewMongoTransport(cfg.Remote.MongoURI, cfg.Remote.Database, cfg.Remote.Timeout, log.Named("remote"))
}

func settingsFrom(cfg *config.Config) service.Settings {
	return service.Settings{
		NodeUUID:        cfg.Node.UUID,
		ReadTimeout:     cfg.Serial.ReadTimeout,
		RegistryTimeout: cfg.Registry.Timeout,
		CatalogRefresh:  cfg.Registry.RefreshPeriod,
		ConfigRulesPoll: cfg.Registry.ConfigRulesPoll,
		ActuatorCheck:   cfg.Actuators.Period,
		Sync: service.SyncSettings{
			Period:             cfg.Sync.Period,
			Retention:          cfg.Sync.Retention,
			ReadingsCollection: cfg.Remote.ReadingsCollection,
			AlertsCollection:   cfg.Remote.AlertsCollection,
		},
		Thresholds: cfg.ThresholdTable(),
		Units:      cfg.Units,
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, wg *sync.WaitGroup, srv *server.Server, transport remote.Transport, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down node...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warnw("tasks_did_not_stop_in_time", "timeout", shutdownTimeout)
	}

	// allow in-flight requests to complete
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	if err := transport.Close(ctx); err != nil {
		log.Errorw("remote_close_failed", "err", err)
	}
}
