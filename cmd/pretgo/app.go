package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"pretgo/internal/api"
	"pretgo/internal/config"
	"pretgo/internal/database"
	"pretgo/internal/events"
	"pretgo/internal/logging"
	"pretgo/internal/service"
	"pretgo/internal/worker"

	"github.com/rs/zerolog"
)

// app is what every command shares: configuration, logger, database and the
// services built on top of them.
type app struct {
	cfg    *config.Config
	base   *zerolog.Logger
	logger *zerolog.Logger
	closer io.Closer
	db     *database.DB
	bus    *events.EventBus
	layout database.ArchiveLayout
	svc    api.Services
}

func openApp(component string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	base, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(base, component)

	loc, err := cfg.App.Location()
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("load timezone %q: %w", cfg.App.Timezone, err)
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(base, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		closeQuietly(closer)
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		base:   base,
		logger: logger,
		closer: closer,
		db:     db,
		bus:    events.NewEventBus(),
		layout: archiveLayout(cfg),
	}

	svcLogger := logging.Component(base, "service")
	settings := service.NewSettingsService(db, a.layout.RecoveryFile, svcLogger)
	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Labels.MaxRetries,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
	}
	a.svc = api.Services{
		Loans:     service.NewLoanService(db, db, settings, a.bus, loc, svcLogger),
		People:    service.NewPersonService(db, svcLogger),
		Inventory: service.NewInventoryService(db, db, a.layout.UploadsDir, svcLogger),
		Settings:  settings,
		Alerts:    service.NewAlertService(db, settings, loc, svcLogger),
		Labels:    service.NewLabelService(db, db, retry, svcLogger).WithTimeout(cfg.Labels.Timeout),
	}
	return a, nil
}

// archiveLayout maps the storage directories onto the backup archive. The
// recovery code file sits next to the database.
func archiveLayout(cfg *config.Config) database.ArchiveLayout {
	return database.ArchiveLayout{
		UploadsDir:   filepath.Join(cfg.Storage.UploadsDir, "materiel"),
		DocumentsDir: cfg.Storage.DocumentsDir,
		RecoveryFile: filepath.Join(filepath.Dir(cfg.Database.Path), database.ArchiveRecoveryFile),
	}
}

// scanFunc adapts the alert service to the alert worker.
func (a *app) scanFunc() worker.ScanFunc {
	return func(ctx context.Context) (worker.LoanCounts, error) {
		report, err := a.svc.Alerts.Scan(ctx)
		if err != nil {
			return worker.LoanCounts{}, err
		}
		return worker.LoanCounts{Active: report.Active, Overdue: len(report.Alerts)}, nil
	}
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("close database")
	}
	closeQuietly(a.closer)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
