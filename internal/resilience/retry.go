// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
)

// MinRetryDelay is the floor applied to every computed delay.
const MinRetryDelay = 100 * time.Millisecond

// RetryConfig configures WithRetry.
type RetryConfig struct {
	// Name labels log lines and metrics.
	Name string

	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool

	// RetryPredicate decides whether an error is worth another attempt.
	// Nil uses DefaultRetryPredicate.
	RetryPredicate func(error) bool

	// OnRetry is called before each backoff sleep. It is best-effort:
	// its error and any panic are swallowed.
	OnRetry func(attempt int, err error, delay time.Duration) error

	// Breaker, when set, guards every attempt.
	Breaker *Breaker

	// Sleep waits between attempts. Nil uses a timer that honors ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns 3 attempts with 1s base delay doubling up to 30s, jittered.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Name:          "default",
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2,
		Jitter:        true,
	}
}

// BackoffDelay returns min(base * factor^(attempt-1), max) for a 1-based attempt,
// before jitter and flooring.
func (c RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(c.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// DelayFor returns the delay to wait after the given failed attempt: the
// backoff delay, with up to ±10% uniform jitter when enabled, floored at
// MinRetryDelay.
func (c RetryConfig) DelayFor(attempt int) time.Duration {
	d := c.BackoffDelay(attempt)
	if c.Jitter {
		spread := float64(d) * 0.1
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < MinRetryDelay {
		d = MinRetryDelay
	}
	return d
}

// WithRetry runs op up to MaxAttempts times.
//
// Before each attempt an attached breaker may reject the call, which aborts
// immediately with a *CircuitOpenError. A failure stops the loop when the
// predicate rejects it or when it was the last attempt; the last error is
// returned unchanged.
func WithRetry(ctx context.Context, op func(context.Context) error, cfg RetryConfig) error {
	_, err := WithRetryValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, cfg)
	return err
}

// WithRetryValue is WithRetry for operations that return a value.
func WithRetryValue[T any](ctx context.Context, op func(context.Context) (T, error), cfg RetryConfig) (T, error) {
	var zero T
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	shouldRetry := cfg.RetryPredicate
	if shouldRetry == nil {
		shouldRetry = DefaultRetryPredicate
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		var result T
		run := func(ctx context.Context) error {
			var err error
			result, err = op(ctx)
			return err
		}

		var err error
		if cfg.Breaker != nil {
			err = cfg.Breaker.Execute(ctx, run)
			if errors.Is(err, ErrCircuitOpen) {
				return zero, err
			}
		} else {
			err = run(ctx)
		}
		if err == nil {
			return result, nil
		}

		if attempt >= maxAttempts || !shouldRetry(err) {
			metrics.RetryExhausted.WithLabelValues(name).Inc()
			return zero, err
		}

		delay := cfg.DelayFor(attempt)
		logging.Ctx(ctx).Warn().Err(err).Str("operation", name).Int("attempt", attempt).Int("max_attempts", maxAttempts).Dur("delay", delay).Msg("Retry attempt")
		notifyRetry(cfg.OnRetry, attempt, err, delay)
		metrics.RetryAttempts.WithLabelValues(name).Inc()

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func notifyRetry(fn func(int, error, time.Duration) error, attempt int, err error, delay time.Duration) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Warn().Interface("panic", r).Msg("OnRetry callback panicked")
		}
	}()
	if cbErr := fn(attempt, err, delay); cbErr != nil {
		logging.Debug().Err(cbErr).Msg("OnRetry callback failed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var nonRetryablePatterns = []string{"invalid", "malformed", "validation", "bad request"}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"host unreachable",
	"network is unreachable",
	"timeout",
	"timed out",
	"econnrefused",
	"enotfound",
	"etimedout",
	"econnreset",
}

// DefaultRetryPredicate treats connection-refused, host-unreachable and
// timeout failures as retryable, along with HTTP 5xx, 429 and 408. Other 4xx
// responses and messages indicating malformed or invalid input are not.
func DefaultRetryPredicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500:
			return true
		case httpErr.StatusCode == 429, httpErr.StatusCode == 408:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
