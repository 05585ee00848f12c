// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/api"
	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/config"
	"github.com/ParagE404/fiscal-flow-sub001/internal/database"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
	"github.com/ParagE404/fiscal-flow-sub001/internal/supervisor"
	"github.com/ParagE404/fiscal-flow-sub001/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "fiscalflow",
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("FiscalFlow exited with an error")
	}
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("audit_store", cfg.Audit.Store).
		Str("quarantine_store", cfg.Quarantine.Store).
		Bool("dry_run", cfg.Sync.DryRun).
		Msg("Starting FiscalFlow")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer database.CloseWithLog(db, "database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer app.close()

	tree, err := supervisor.NewSupervisorTree(slog.New(logging.NewSlogHandler()), supervisor.TreeConfig{})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(audit.NewSweeper(app.recorder, cfg.Audit.Retention, cfg.Audit.SweepInterval))
	tree.AddMonitoringService(services.NewLifecycleService("source-health-monitor",
		sources.NewMonitor(app.sources, cfg.Health.CheckInterval, cfg.Health.ProbeOnStartup)))
	if app.bus != nil {
		tree.AddMonitoringService(newNotificationLogService(app.bus))
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(api.Deps{
			Syncer:    app.syncer,
			Selector:  app.selector,
			Integrity: app.integrity,
			Recorder:  app.recorder,
			Sources:   app.sources,
		})
		mwCfg := api.DefaultMiddlewareConfig()
		mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
		mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
		mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow

		server := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           handler.Router(mwCfg),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.Timeout,
			// Sync requests wait on providers, so writes get the fetch timeout on top.
			WriteTimeout: cfg.Server.Timeout + cfg.Sync.FetchTimeout,
			IdleTimeout:  120 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("Admin HTTP server enabled")
	} else {
		logging.Info().Msg("Admin HTTP server disabled (HTTP_ENABLED=false)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("FiscalFlow stopped gracefully")
	return nil
}
