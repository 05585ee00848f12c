// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package config

import (
	"fmt"
	"net/url"
	"sort"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateResilience(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateEscalation(); err != nil {
		return err
	}
	if err := c.validateStores(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateResilience validates retry and breaker settings
func (c *Config) validateResilience() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("RETRY_MAX_DELAY (%v) must not be less than RETRY_BASE_DELAY (%v)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("RETRY_BACKOFF_FACTOR must be >= 1, got %v", c.Retry.BackoffFactor)
	}
	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker thresholds must be at least 1")
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("BREAKER_RESET_TIMEOUT must be positive")
	}
	if c.Sync.MaxFallbacks < 0 {
		return fmt.Errorf("SYNC_MAX_FALLBACKS must not be negative")
	}
	if c.Health.CheckInterval <= 0 || c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health check interval and probe timeout must be positive")
	}
	return nil
}

// validateSources checks source URLs and that the fallback graph only names known sources
func (c *Config) validateSources() error {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := c.Sources[name]
		if !src.Enabled {
			continue
		}
		if src.BaseURL != "" {
			if err := validateHTTPURL(src.BaseURL); err != nil {
				return fmt.Errorf("sources.%s.base_url is invalid: %w", name, err)
			}
		}
		if src.RequestsPerMinute < 0 {
			return fmt.Errorf("sources.%s.requests_per_minute must not be negative", name)
		}
	}

	for primary, alternates := range c.Health.Fallbacks {
		for _, alt := range alternates {
			if alt == primary {
				return fmt.Errorf("health.fallbacks.%s lists itself as a fallback", primary)
			}
			if _, ok := c.Sources[alt]; !ok {
				return fmt.Errorf("health.fallbacks.%s references unknown source %q", primary, alt)
			}
		}
	}
	return nil
}

// validateEscalation validates escalation thresholds
func (c *Config) validateEscalation() error {
	e := c.Escalation
	if e.ConsecutiveFailures < 1 || e.HourlyErrors < 1 {
		return fmt.Errorf("escalation failure thresholds must be at least 1")
	}
	if e.MinHealthyRatio < 0 || e.MinHealthyRatio > 1 {
		return fmt.Errorf("ESCALATION_MIN_HEALTHY_RATIO must be between 0 and 1, got %v", e.MinHealthyRatio)
	}
	if e.QueueCap < 1 {
		return fmt.Errorf("ESCALATION_QUEUE_CAP must be at least 1")
	}
	return nil
}

// validateStores validates quarantine and audit backends
func (c *Config) validateStores() error {
	switch c.Quarantine.Store {
	case "memory":
	case "badger":
		if c.Quarantine.Path == "" {
			return fmt.Errorf("QUARANTINE_PATH is required when QUARANTINE_STORE=badger")
		}
	default:
		return fmt.Errorf("QUARANTINE_STORE must be one of: memory, badger")
	}

	switch c.Audit.Store {
	case "memory", "duckdb":
	default:
		return fmt.Errorf("AUDIT_STORE must be one of: memory, duckdb")
	}
	if c.Audit.Retention <= 0 {
		return fmt.Errorf("AUDIT_RETENTION must be positive")
	}
	return nil
}

// validateServer validates the admin HTTP server settings
func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Notifications.WebhookURL != "" {
		if err := validateHTTPURL(c.Notifications.WebhookURL); err != nil {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL is invalid: %w", err)
		}
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
