// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package resilience provides the circuit breaker and retry executor that
// guard every call to an upstream data provider.
//
// Breaker implements a CLOSED/OPEN/HALF_OPEN state machine whose OPEN to
// HALF_OPEN transition happens on the next call after the reset timeout
// (never on a timer), and whose CLOSED failure counter decays by one on each
// success. BreakerRegistry hands out one breaker per resource.
//
// WithRetry runs an operation with bounded attempts and exponential backoff:
//
//	err := resilience.WithRetry(ctx, fetch, resilience.RetryConfig{
//	    MaxAttempts:   3,
//	    BaseDelay:     time.Second,
//	    MaxDelay:      30 * time.Second,
//	    BackoffFactor: 2,
//	    Jitter:        true,
//	    Breaker:       registry.Get("amfi"),
//	})
//
// State transitions are logged and exported through the circuit_breaker_*
// Prometheus families.
package resilience
