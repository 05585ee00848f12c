// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fiscalflow/config.yaml",
	"/etc/fiscalflow/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Source identifiers known out of the box.
const (
	SourceYahooFinance = "yahoo_finance"
	SourceNSE          = "nse"
	SourceBSE          = "bse"
	SourceAMFI         = "amfi"
	SourceMFAPI        = "mfapi"
	SourceEPFO         = "epfo"
)

// defaultConfig returns a Config struct with all default values.
// These are applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			MaxFallbacks: 2,
			FetchTimeout: 30 * time.Second,
			BatchSize:    50,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelay:     time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
			Jitter:        true,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			ResetTimeout:     60 * time.Second,
		},
		Health: HealthConfig{
			CheckInterval:  5 * time.Minute,
			ProbeTimeout:   5 * time.Second,
			UnhealthyAfter: 3,
			ProbeOnStartup: true,
			Fallbacks: map[string][]string{
				SourceYahooFinance: {SourceNSE, SourceBSE},
				SourceNSE:          {SourceYahooFinance, SourceBSE},
				SourceBSE:          {SourceNSE, SourceYahooFinance},
				SourceAMFI:         {SourceMFAPI},
				SourceMFAPI:        {SourceAMFI},
				SourceEPFO:         {},
			},
		},
		Sources: map[string]SourceConfig{
			SourceYahooFinance: {Enabled: true, BaseURL: "https://query1.finance.yahoo.com", RequestsPerMinute: 100, Burst: 10},
			SourceNSE:          {Enabled: true, BaseURL: "https://www.nseindia.com", RequestsPerMinute: 60, Burst: 5},
			SourceBSE:          {Enabled: true, BaseURL: "https://api.bseindia.com", RequestsPerMinute: 60, Burst: 5},
			SourceAMFI:         {Enabled: true, BaseURL: "https://www.amfiindia.com", RequestsPerMinute: 30, Burst: 2},
			SourceMFAPI:        {Enabled: true, BaseURL: "https://api.mfapi.in", RequestsPerMinute: 60, Burst: 5},
			SourceEPFO:         {Enabled: true, BaseURL: "https://passbook.epfindia.gov.in", RequestsPerMinute: 10, Burst: 1},
		},
		Escalation: EscalationConfig{
			ConsecutiveFailures: 3,
			HourlyErrors:        5,
			CriticalTypes:       []string{"epf"},
			CriticalAttempt:     2,
			MinHealthyRatio:     0.5,
			MaxBackoff:          300 * time.Second,
			QueueCap:            50,
		},
		Validation: ValidationConfig{
			MutualFundChangePct:   10,
			StockChangePct:        20,
			EPFChangePct:          15,
			SIPChangePct:          10,
			EPFWageCeiling:        15000,
			EPFContributionRate:   12,
			ContributionTolerance: 5,
		},
		Anomaly: AnomalyConfig{
			ExtremeChangePct: map[string]float64{
				"mutual_fund": 25,
				"stock":       50,
				"epf":         30,
				"sip":         25,
			},
			VolatilityLimit: map[string]float64{
				"mutual_fund": 0.05,
				"stock":       0.15,
				"epf":         0.10,
				"sip":         0.05,
			},
			ZScoreMedium:        2,
			ZScoreHigh:          3,
			MinZScorePoints:     3,
			MinVolatilityPoints: 5,
			HistoryLimit:        30,
		},
		Quarantine: QuarantineConfig{
			Store: "memory",
			Path:  "/data/quarantine",
		},
		Audit: AuditConfig{
			Store:         "memory",
			Retention:     365 * 24 * time.Hour,
			SweepInterval: 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:      "",
			MaxMemory: "1GB",
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8088,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Notifications: NotificationsConfig{
			WebhookTimeout: 10 * time.Second,
			BusEnabled:     true,
			AdminUserID:    "admin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file
//  3. Environment Variables: override any mapped setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := expandMapDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SYNC_MAX_FALLBACKS -> sync.max_fallbacks
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandMapDefaults re-keys map settings whose values are not structs. The
// structs provider loads those as one opaque leaf, so a config file naming a
// single entry would replace the whole map. Keyed per entry, a file or env
// value overrides only the entries it names.
func expandMapDefaults(k *koanf.Koanf, def *Config) error {
	entries := map[string]map[string]any{
		"health.fallbacks":           anyValues(def.Health.Fallbacks),
		"anomaly.extreme_change_pct": anyValues(def.Anomaly.ExtremeChangePct),
		"anomaly.volatility_limit":   anyValues(def.Anomaly.VolatilityLimit),
	}
	for path, values := range entries {
		k.Delete(path)
		for name, v := range values {
			if err := k.Set(path+"."+name, v); err != nil {
				return fmt.Errorf("set %s.%s: %w", path, name, err)
			}
		}
	}
	return nil
}

func anyValues[V any](m map[string]V) map[string]any {
	out := make(map[string]any, len(m))
	for name, v := range m {
		out[name] = v
	}
	return out
}

// findConfigFile returns the first config file found, or "" when there is none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"escalation.critical_types",
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"sync_max_fallbacks": "sync.max_fallbacks",
	"sync_fetch_timeout": "sync.fetch_timeout",
	"sync_batch_size":    "sync.batch_size",
	"sync_dry_run":       "sync.dry_run",

	"retry_max_attempts":   "retry.max_attempts",
	"retry_base_delay":     "retry.base_delay",
	"retry_max_delay":      "retry.max_delay",
	"retry_backoff_factor": "retry.backoff_factor",
	"retry_jitter":         "retry.jitter",

	"breaker_failure_threshold": "breaker.failure_threshold",
	"breaker_success_threshold": "breaker.success_threshold",
	"breaker_reset_timeout":     "breaker.reset_timeout",

	"health_check_interval":   "health.check_interval",
	"health_probe_timeout":    "health.probe_timeout",
	"health_unhealthy_after":  "health.unhealthy_after",
	"health_probe_on_startup": "health.probe_on_startup",

	"escalation_consecutive_failures": "escalation.consecutive_failures",
	"escalation_hourly_errors":        "escalation.hourly_errors",
	"escalation_critical_types":       "escalation.critical_types",
	"escalation_critical_attempt":     "escalation.critical_attempt",
	"escalation_min_healthy_ratio":    "escalation.min_healthy_ratio",
	"escalation_max_backoff":          "escalation.max_backoff",
	"escalation_queue_cap":            "escalation.queue_cap",
	"intervention_store_path":         "escalation.store_path",

	"quarantine_store": "quarantine.store",
	"quarantine_path":  "quarantine.path",

	"audit_store":          "audit.store",
	"audit_retention":      "audit.retention",
	"audit_sweep_interval": "audit.sweep_interval",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"http_enabled":      "server.enabled",
	"http_port":         "server.port",
	"http_host":         "server.host",
	"http_timeout":      "server.timeout",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",
	"cors_origins":      "server.cors_origins",

	"notify_webhook_url":     "notifications.webhook_url",
	"notify_webhook_timeout": "notifications.webhook_timeout",
	"notify_bus_enabled":     "notifications.bus_enabled",
	"notify_admin_user_id":   "notifications.admin_user_id",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Per-source settings follow SOURCE_<NAME>_<FIELD>, for example
// SOURCE_AMFI_BASE_URL -> sources.amfi.base_url.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if rest, ok := strings.CutPrefix(key, "source_"); ok {
		return sourceEnvPath(rest)
	}
	return ""
}

var sourceFields = []string{"requests_per_minute", "health_url", "base_url", "api_key", "enabled", "burst"}

// sourceEnvPath maps "<name>_<field>" onto sources.<name>.<field>. Source
// names may themselves contain underscores, so the field is matched by suffix.
func sourceEnvPath(rest string) string {
	for _, field := range sourceFields {
		if name, ok := strings.CutSuffix(rest, "_"+field); ok && name != "" {
			return "sources." + name + "." + field
		}
	}
	return ""
}
