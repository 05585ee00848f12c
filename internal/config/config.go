// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables (in that order of precedence, lowest first).
//
// Configuration Categories:
//
//  1. Synchronization:
//     - Sync: batch behavior and fallback depth
//     - Retry / Breaker: resilience primitives applied to every provider call
//     - Health: source liveness probing and the fallback graph
//     - Sources: per-provider endpoints and rate limits
//
//  2. Data integrity:
//     - Escalation: thresholds that promote failures to operator interventions
//     - Validation / Anomaly: per-investment-type limits
//     - Quarantine: where held-back records are kept
//     - Audit: trail storage and retention
//
//  3. Infrastructure:
//     - Database, Server, Notifications, Logging
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Sync          SyncConfig              `koanf:"sync"`
	Retry         RetryConfig             `koanf:"retry"`
	Breaker       BreakerConfig           `koanf:"breaker"`
	Health        HealthConfig            `koanf:"health"`
	Sources       map[string]SourceConfig `koanf:"sources"`
	Escalation    EscalationConfig        `koanf:"escalation"`
	Validation    ValidationConfig        `koanf:"validation"`
	Anomaly       AnomalyConfig           `koanf:"anomaly"`
	Quarantine    QuarantineConfig        `koanf:"quarantine"`
	Audit         AuditConfig             `koanf:"audit"`
	Database      DatabaseConfig          `koanf:"database"`
	Server        ServerConfig            `koanf:"server"`
	Notifications NotificationsConfig     `koanf:"notifications"`
	Logging       LoggingConfig           `koanf:"logging"`
}

// SyncConfig holds per-invocation sync settings.
type SyncConfig struct {
	MaxFallbacks int           `koanf:"max_fallbacks"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"` // Upper bound on one provider call
	BatchSize    int           `koanf:"batch_size"`    // Identifiers per provider request
	DryRun       bool          `koanf:"dry_run"`       // Process everything but never persist
}

// RetryConfig holds the default retry policy for provider calls.
type RetryConfig struct {
	MaxAttempts   int           `koanf:"max_attempts"`
	BaseDelay     time.Duration `koanf:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay"`
	BackoffFactor float64       `koanf:"backoff_factor"`
	Jitter        bool          `koanf:"jitter"`
}

// BreakerConfig holds the per-source circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	SuccessThreshold int           `koanf:"success_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// HealthConfig holds source health probing settings.
//
// Fallbacks maps a primary source to its ordered alternates. A source with
// no entry (or an empty list) has no alternates.
type HealthConfig struct {
	CheckInterval  time.Duration       `koanf:"check_interval"`
	ProbeTimeout   time.Duration       `koanf:"probe_timeout"`
	UnhealthyAfter int                 `koanf:"unhealthy_after"`
	ProbeOnStartup bool                `koanf:"probe_on_startup"`
	Fallbacks      map[string][]string `koanf:"fallbacks"`
}

// SourceConfig describes one upstream provider.
type SourceConfig struct {
	Enabled           bool   `koanf:"enabled"`
	BaseURL           string `koanf:"base_url"`
	HealthURL         string `koanf:"health_url"` // Target of the HEAD liveness probe; defaults to BaseURL
	APIKey            string `koanf:"api_key"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`
	Burst             int    `koanf:"burst"`
}

// EscalationConfig holds the any-of escalation thresholds.
type EscalationConfig struct {
	ConsecutiveFailures int           `koanf:"consecutive_failures"`
	HourlyErrors        int           `koanf:"hourly_errors"`
	CriticalTypes       []string      `koanf:"critical_types"`
	CriticalAttempt     int           `koanf:"critical_attempt"`
	MinHealthyRatio     float64       `koanf:"min_healthy_ratio"`
	MaxBackoff          time.Duration `koanf:"max_backoff"`
	QueueCap            int           `koanf:"queue_cap"`
	StorePath           string        `koanf:"store_path"` // Badger directory for the intervention queue; empty keeps it in memory
}

// ValidationConfig holds change-magnitude and regulatory limits, in percent.
type ValidationConfig struct {
	MutualFundChangePct   float64 `koanf:"mutual_fund_change_pct"`
	StockChangePct        float64 `koanf:"stock_change_pct"`
	EPFChangePct          float64 `koanf:"epf_change_pct"`
	SIPChangePct          float64 `koanf:"sip_change_pct"`
	EPFWageCeiling        float64 `koanf:"epf_wage_ceiling"`       // Monthly statutory wage ceiling
	EPFContributionRate   float64 `koanf:"epf_contribution_rate"`  // Employee share of wages, percent
	ContributionTolerance float64 `koanf:"contribution_tolerance"` // Allowed deviation from 1:1 matching, percent
}

// AnomalyConfig holds statistical detection thresholds.
type AnomalyConfig struct {
	ExtremeChangePct    map[string]float64 `koanf:"extreme_change_pct"` // Keyed by investment type
	VolatilityLimit     map[string]float64 `koanf:"volatility_limit"`   // Max stddev of returns, keyed by investment type
	ZScoreMedium        float64            `koanf:"zscore_medium"`
	ZScoreHigh          float64            `koanf:"zscore_high"`
	MinZScorePoints     int                `koanf:"min_zscore_points"`
	MinVolatilityPoints int                `koanf:"min_volatility_points"`
	HistoryLimit        int                `koanf:"history_limit"`
}

// QuarantineConfig selects the quarantine backend.
type QuarantineConfig struct {
	Store string `koanf:"store"` // memory or badger
	Path  string `koanf:"path"`
}

// AuditConfig holds audit trail storage and retention.
type AuditConfig struct {
	Store         string        `koanf:"store"` // memory or duckdb
	Retention     time.Duration `koanf:"retention"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// DatabaseConfig holds DuckDB settings shared by the investment and audit stores.
type DatabaseConfig struct {
	Path      string `koanf:"path"` // Empty or ":memory:" keeps the database in memory
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// NotificationsConfig holds outbound notification settings.
type NotificationsConfig struct {
	WebhookURL     string        `koanf:"webhook_url"`
	WebhookTimeout time.Duration `koanf:"webhook_timeout"`
	BusEnabled     bool          `koanf:"bus_enabled"`
	AdminUserID    string        `koanf:"admin_user_id"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
