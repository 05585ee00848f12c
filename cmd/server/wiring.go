// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ParagE404/fiscal-flow-sub001/internal/anomaly"
	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/config"
	"github.com/ParagE404/fiscal-flow-sub001/internal/database"
	"github.com/ParagE404/fiscal-flow-sub001/internal/integrity"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
	"github.com/ParagE404/fiscal-flow-sub001/internal/providers"
	"github.com/ParagE404/fiscal-flow-sub001/internal/recovery"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
	"github.com/ParagE404/fiscal-flow-sub001/internal/sources"
	"github.com/ParagE404/fiscal-flow-sub001/internal/store"
	"github.com/ParagE404/fiscal-flow-sub001/internal/syncer"
	"github.com/ParagE404/fiscal-flow-sub001/internal/validation"
)

// app holds the wired components that outlive initialization.
type app struct {
	sources   *sources.Registry
	selector  *recovery.Selector
	integrity *integrity.Orchestrator
	recorder  *audit.Recorder
	syncer    *syncer.Service
	bus       *notify.BusNotifier

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func (a *app) onClose(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		database.CloseWithLog(a.closers[i].c, a.closers[i].name)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *database.DB) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	investments := store.NewDuckDBStore(db.Conn())
	if err := investments.CreateTables(ctx); err != nil {
		return nil, fmt.Errorf("create investment tables: %w", err)
	}

	recorder, err := initAudit(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	a.recorder = recorder

	notifier := a.initNotifier(cfg)

	provRegistry, err := initProviders(cfg)
	if err != nil {
		return nil, err
	}

	breakers := resilience.NewBreakerRegistry(resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	})
	a.sources = sources.NewRegistry(sources.Config{
		CheckInterval:  cfg.Health.CheckInterval,
		ProbeTimeout:   cfg.Health.ProbeTimeout,
		UnhealthyAfter: cfg.Health.UnhealthyAfter,
	}, cfg.Health.Fallbacks, breakers, sources.WithProber(provRegistry))
	for _, name := range enabledSources(cfg) {
		sc := cfg.Sources[name]
		a.sources.Register(name, sources.RateLimit{RequestsPerMinute: sc.RequestsPerMinute, Burst: sc.Burst})
	}

	queue, err := a.initInterventionQueue(cfg)
	if err != nil {
		return nil, err
	}
	a.selector = recovery.NewSelector(
		recovery.NewEscalator(escalationConfig(cfg), a.sources),
		queue,
		recovery.WithNotifier(notifier),
		recovery.WithMaxBackoff(cfg.Escalation.MaxBackoff),
	)

	quarantine, err := a.initQuarantine(cfg)
	if err != nil {
		return nil, err
	}
	a.integrity = integrity.NewOrchestrator(
		validation.NewEngine(validation.Config{
			MutualFundChangePct:   cfg.Validation.MutualFundChangePct,
			StockChangePct:        cfg.Validation.StockChangePct,
			EPFChangePct:          cfg.Validation.EPFChangePct,
			SIPChangePct:          cfg.Validation.SIPChangePct,
			EPFWageCeiling:        cfg.Validation.EPFWageCeiling,
			EPFContributionRate:   cfg.Validation.EPFContributionRate,
			ContributionTolerance: cfg.Validation.ContributionTolerance,
		}),
		anomaly.NewDefaultEngine(anomalyConfig(cfg)),
		investments,
		quarantine,
		recorder,
		integrity.WithNotifier(notifier),
		integrity.WithHistoryLimit(cfg.Anomaly.HistoryLimit),
		integrity.WithAdminUserID(cfg.Notifications.AdminUserID),
	)

	retry := resilience.DefaultRetryConfig()
	retry.Name = "provider_fetch"
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.BaseDelay = cfg.Retry.BaseDelay
	retry.MaxDelay = cfg.Retry.MaxDelay
	retry.BackoffFactor = cfg.Retry.BackoffFactor
	retry.Jitter = cfg.Retry.Jitter

	syncCfg := syncer.DefaultConfig()
	syncCfg.MaxFallbacks = cfg.Sync.MaxFallbacks
	syncCfg.FetchTimeout = cfg.Sync.FetchTimeout
	syncCfg.Retry = retry
	syncCfg.DryRun = cfg.Sync.DryRun

	a.syncer = syncer.NewService(syncer.Deps{
		Providers: provRegistry,
		Sources:   a.sources,
		Selector:  a.selector,
		Integrity: a.integrity,
		Store:     investments,
		Recorder:  recorder,
		Notifier:  notifier,
	}, syncCfg)

	ok = true
	return a, nil
}

func initAudit(ctx context.Context, cfg *config.Config, db *database.DB) (*audit.Recorder, error) {
	if cfg.Audit.Store != "duckdb" {
		logging.Info().Msg("Audit trail kept in memory")
		return audit.NewRecorder(audit.NewMemoryStore(0)), nil
	}
	st := audit.NewDuckDBStore(db.Conn())
	if err := st.CreateTable(ctx); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	logging.Info().Msg("Audit trail stored in DuckDB")
	return audit.NewRecorder(st), nil
}

// initNotifier fans notifications out to every configured channel.
func (a *app) initNotifier(cfg *config.Config) notify.Notifier {
	var channels []notify.Channel
	if cfg.Notifications.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.Notifications.WebhookURL,
			Timeout: cfg.Notifications.WebhookTimeout,
		}))
		logging.Info().Str("url", cfg.Notifications.WebhookURL).Msg("Webhook notifier registered")
	}
	if cfg.Notifications.BusEnabled {
		a.bus = notify.NewBusNotifier(0)
		a.onClose("notification bus", a.bus)
		channels = append(channels, a.bus)
	}
	if len(channels) == 0 {
		logging.Info().Msg("No notification channels configured")
		return notify.Nop{}
	}
	return notify.NewMulti(channels...)
}

func initProviders(cfg *config.Config) (*providers.Registry, error) {
	reg := providers.NewRegistry()
	names := enabledSources(cfg)
	if len(names) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	for _, name := range names {
		sc := cfg.Sources[name]
		reg.Register(providers.NewHTTPJSONProvider(name, providers.HTTPJSONConfig{
			BaseURL:   sc.BaseURL,
			HealthURL: sc.HealthURL,
			APIKey:    sc.APIKey,
			BatchSize: cfg.Sync.BatchSize,
			Timeout:   cfg.Sync.FetchTimeout,
			Limits: providers.RateLimits{
				RequestsPerMinute: sc.RequestsPerMinute,
				Burst:             sc.Burst,
			},
		}, nil))
	}
	logging.Info().Strs("sources", names).Msg("Providers registered")
	return reg, nil
}

func (a *app) initInterventionQueue(cfg *config.Config) (*recovery.InterventionQueue, error) {
	if cfg.Escalation.StorePath == "" {
		return recovery.NewInterventionQueue(cfg.Escalation.QueueCap, nil)
	}
	kv, err := database.OpenBadger(cfg.Escalation.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open intervention store: %w", err)
	}
	a.onClose("intervention store", kv)
	queue, err := recovery.NewInterventionQueue(cfg.Escalation.QueueCap, recovery.NewBadgerInterventionStore(kv))
	if err != nil {
		return nil, fmt.Errorf("load intervention queue: %w", err)
	}
	return queue, nil
}

func (a *app) initQuarantine(cfg *config.Config) (integrity.QuarantineStore, error) {
	if cfg.Quarantine.Store != "badger" {
		return integrity.NewMemoryQuarantineStore(), nil
	}
	kv, err := database.OpenBadger(cfg.Quarantine.Path)
	if err != nil {
		return nil, fmt.Errorf("open quarantine store: %w", err)
	}
	a.onClose("quarantine store", kv)
	return integrity.NewBadgerQuarantineStore(kv), nil
}

func enabledSources(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Sources))
	for name, sc := range cfg.Sources {
		if sc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func escalationConfig(cfg *config.Config) recovery.EscalationConfig {
	critical := make([]models.InvestmentType, 0, len(cfg.Escalation.CriticalTypes))
	for _, t := range cfg.Escalation.CriticalTypes {
		critical = append(critical, models.InvestmentType(t))
	}
	return recovery.EscalationConfig{
		ConsecutiveFailures: cfg.Escalation.ConsecutiveFailures,
		HourlyErrors:        cfg.Escalation.HourlyErrors,
		CriticalTypes:       critical,
		CriticalAttempt:     cfg.Escalation.CriticalAttempt,
		MinHealthyRatio:     cfg.Escalation.MinHealthyRatio,
	}
}

func anomalyConfig(cfg *config.Config) anomaly.Config {
	out := anomaly.Config{
		ExtremeChangePct:    make(map[models.InvestmentType]float64, len(cfg.Anomaly.ExtremeChangePct)),
		VolatilityLimit:     make(map[models.InvestmentType]float64, len(cfg.Anomaly.VolatilityLimit)),
		ZScoreMedium:        cfg.Anomaly.ZScoreMedium,
		ZScoreHigh:          cfg.Anomaly.ZScoreHigh,
		MinZScorePoints:     cfg.Anomaly.MinZScorePoints,
		MinVolatilityPoints: cfg.Anomaly.MinVolatilityPoints,
		HistoryLimit:        cfg.Anomaly.HistoryLimit,
	}
	for t, v := range cfg.Anomaly.ExtremeChangePct {
		out.ExtremeChangePct[models.InvestmentType(t)] = v
	}
	for t, v := range cfg.Anomaly.VolatilityLimit {
		out.VolatilityLimit[models.InvestmentType(t)] = v
	}
	return out
}
