// Package internal assembles the citewatch server from its parts.
package internal

import (
	"fmt"
	"time"

	"github.com/karloscodes/cartridge"

	"citewatch/internal/config"
	"citewatch/internal/content"
	"citewatch/internal/database"
	"citewatch/internal/events"
	"citewatch/internal/jobs"
	"citewatch/internal/pkg/broker"
	"citewatch/internal/pkg/geoip"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Application wraps cartridge.Application with the citewatch DB manager.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
}

// NewApp creates an application from the global configuration.
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig wires storage, maintenance jobs, the optional Kafka
// publisher and the routes.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)
	geoip.InitLogger(logger)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	routeOpts := RouteOptions{Config: cfg, Version: Version}

	if cfg.ContentMapPath != "" {
		directory, err := content.LoadFile(cfg.ContentMapPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load content map: %w", err)
		}
		routeOpts.Content = directory
	}

	scheduler := jobs.NewScheduler(logger).
		Every(24*time.Hour, jobs.NewGeoLiteUpdaterJob(jobs.GeoLiteOptions{
			LicenseKey: cfg.GeoLiteLicenseKey,
			Edition:    cfg.GeoLiteEdition,
			Path:       cfg.GeoDBPath,
			Reload:     geoip.ReloadGeoDB,
			Logger:     logger,
		}))
	// Events are kept forever unless an operator opts into retention
	if retention := jobs.NewRetentionJob(events.NewGormStore(dbManager, logger), cfg.RetentionDays, logger); retention.Enabled() {
		scheduler.Every(24*time.Hour, retention)
	}
	workers := []cartridge.BackgroundWorker{scheduler}
	if cfg.BrokerEnabled() {
		producer := broker.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		workers = append(workers, producer)
		routeOpts.Publisher = broker.NewEventPublisher(producer)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    MountRoutes(routeOpts),
		BackgroundWorkers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}
