// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("Breaker.FailureThreshold = %d, want 5", cfg.Breaker.FailureThreshold)
	}
	if cfg.Breaker.ResetTimeout != 60*time.Second {
		t.Errorf("Breaker.ResetTimeout = %v, want 60s", cfg.Breaker.ResetTimeout)
	}
	if cfg.Health.CheckInterval != 5*time.Minute {
		t.Errorf("Health.CheckInterval = %v, want 5m", cfg.Health.CheckInterval)
	}
	if cfg.Escalation.QueueCap != 50 {
		t.Errorf("Escalation.QueueCap = %d, want 50", cfg.Escalation.QueueCap)
	}
	if cfg.Audit.Retention != 365*24*time.Hour {
		t.Errorf("Audit.Retention = %v, want 365 days", cfg.Audit.Retention)
	}
	if got := cfg.Health.Fallbacks[SourceYahooFinance]; len(got) != 2 || got[0] != SourceNSE {
		t.Errorf("yahoo_finance fallbacks = %v, want [nse bse]", got)
	}
	if got := cfg.Health.Fallbacks[SourceEPFO]; len(got) != 0 {
		t.Errorf("epfo should have no fallbacks, got %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("BREAKER_RESET_TIMEOUT", "90s")
	t.Setenv("ESCALATION_CRITICAL_TYPES", "epf, stock")
	t.Setenv("SOURCE_YAHOO_FINANCE_BASE_URL", "https://quotes.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Retry.MaxAttempts != 7 {
		t.Errorf("Retry.MaxAttempts = %d, want 7", cfg.Retry.MaxAttempts)
	}
	if cfg.Breaker.ResetTimeout != 90*time.Second {
		t.Errorf("Breaker.ResetTimeout = %v, want 90s", cfg.Breaker.ResetTimeout)
	}
	if len(cfg.Escalation.CriticalTypes) != 2 || cfg.Escalation.CriticalTypes[1] != "stock" {
		t.Errorf("Escalation.CriticalTypes = %v, want [epf stock]", cfg.Escalation.CriticalTypes)
	}
	if got := cfg.Sources[SourceYahooFinance].BaseURL; got != "https://quotes.example.com" {
		t.Errorf("yahoo_finance base_url = %q", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
retry:
  max_attempts: 4
health:
  fallbacks:
    yahoo_finance: [bse]
anomaly:
  extreme_change_pct:
    stock: 40
audit:
  store: duckdb
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
	if got := cfg.Health.Fallbacks[SourceYahooFinance]; len(got) != 1 || got[0] != SourceBSE {
		t.Errorf("yahoo_finance fallbacks = %v, want [bse]", got)
	}
	if got := cfg.Health.Fallbacks[SourceAMFI]; len(got) != 1 {
		t.Errorf("amfi fallbacks should keep defaults, got %v", got)
	}
	if cfg.Audit.Store != "duckdb" {
		t.Errorf("Audit.Store = %q, want duckdb", cfg.Audit.Store)
	}
	if got := cfg.Anomaly.ExtremeChangePct["stock"]; got != 40 {
		t.Errorf("stock extreme change = %v, want 40", got)
	}
	if got := cfg.Anomaly.ExtremeChangePct["mutual_fund"]; got != 25 {
		t.Errorf("mutual_fund extreme change should keep default 25, got %v", got)
	}
	if got := cfg.Anomaly.VolatilityLimit["epf"]; got != 0.10 {
		t.Errorf("epf volatility limit should keep default 0.10, got %v", got)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
		{"max below base", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "RETRY_MAX_DELAY"},
		{"unknown fallback", func(c *Config) { c.Health.Fallbacks["nse"] = []string{"nasdaq"} }, "unknown source"},
		{"self fallback", func(c *Config) { c.Health.Fallbacks["nse"] = []string{"nse"} }, "lists itself"},
		{"bad ratio", func(c *Config) { c.Escalation.MinHealthyRatio = 1.5 }, "MIN_HEALTHY_RATIO"},
		{"badger without path", func(c *Config) { c.Quarantine.Store = "badger"; c.Quarantine.Path = "" }, "QUARANTINE_PATH"},
		{"bad audit store", func(c *Config) { c.Audit.Store = "postgres" }, "AUDIT_STORE"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad source url", func(c *Config) {
			c.Sources["nse"] = SourceConfig{Enabled: true, BaseURL: "ftp://nse"}
		}, "sources.nse.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"RETRY_BASE_DELAY":                         "retry.base_delay",
		"SOURCE_AMFI_BASE_URL":                     "sources.amfi.base_url",
		"SOURCE_YAHOO_FINANCE_REQUESTS_PER_MINUTE": "sources.yahoo_finance.requests_per_minute",
		"SOURCE_NSE_HEALTH_URL":                    "sources.nse.health_url",
		"HOME":                                     "",
		"SOURCE_":                                  "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
