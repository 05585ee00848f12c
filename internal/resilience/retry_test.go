// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"
)

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestBackoffDelay_Deterministic(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := cfg.DelayFor(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}

	uncapped := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	for i, w := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := uncapped.DelayFor(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestDelayFor_JitterAndFloor(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2, Jitter: true}
	for i := 0; i < 200; i++ {
		d := cfg.DelayFor(1)
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±10%%", d)
		}
	}

	tiny := RetryConfig{BaseDelay: 10 * time.Millisecond, BackoffFactor: 1}
	if got := tiny.DelayFor(1); got != MinRetryDelay {
		t.Errorf("expected floor %v, got %v", MinRetryDelay, got)
	}
}

func TestWithRetry_RetriesThenSucceeds(t *testing.T) {
	sleeper := &recordingSleep{}
	var retries []int
	calls := 0

	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	}, RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Sleep:         sleeper.Sleep,
		OnRetry: func(attempt int, _ error, _ time.Duration) error {
			retries = append(retries, attempt)
			return errors.New("callback errors are ignored")
		},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != time.Second || sleeper.delays[1] != 2*time.Second {
		t.Errorf("unexpected delays %v", sleeper.delays)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("unexpected OnRetry attempts %v", retries)
	}
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return &HTTPError{StatusCode: http.StatusUnauthorized}
	}, RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Sleep: (&recordingSleep{}).Sleep})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 401 {
		t.Fatalf("expected the 401 error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestWithRetry_ReturnsLastErrorAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("attempt %d: connection refused", calls)
	}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: (&recordingSleep{}).Sleep})

	if err == nil || err.Error() != "attempt 3: connection refused" {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestWithRetry_OnRetryPanicSwallowed(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("timeout")
		}
		return nil
	}, RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Sleep:       (&recordingSleep{}).Sleep,
		OnRetry:     func(int, error, time.Duration) error { panic("boom") },
	})
	if err != nil {
		t.Fatalf("expected success despite panicking callback, got %v", err)
	}
}

func TestWithRetry_BreakerOpenAbortsImmediately(t *testing.T) {
	b := NewBreaker("retry-breaker", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}, RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Breaker: b, Sleep: (&recordingSleep{}).Sleep})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before the breaker opened, got %d", calls)
	}
}

func TestWithRetry_ContextCanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	}, RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryValue(t *testing.T) {
	calls := 0
	v, err := WithRetryValue(context.Background(), func(context.Context) (float64, error) {
		calls++
		if calls == 1 {
			return 0, &HTTPError{StatusCode: http.StatusTooManyRequests}
		}
		return 42.5, nil
	}, RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Sleep: (&recordingSleep{}).Sleep})
	if err != nil || v != 42.5 {
		t.Fatalf("expected 42.5, got %v (%v)", v, err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestDefaultRetryPredicate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 503}), true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"408", &HTTPError{StatusCode: 408}, true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"401", &HTTPError{StatusCode: 401}, false},
		{"econnrefused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "nse.example"}, true},
		{"net timeout", timeoutErr{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"timeout message", errors.New("request timed out"), true},
		{"malformed", errors.New("malformed response body"), false},
		{"invalid", errors.New("invalid scheme code"), false},
		{"unknown", errors.New("something odd"), false},
		{"circuit open", &CircuitOpenError{Name: "x"}, false},
	}

	for _, tt := range tests {
		if got := DefaultRetryPredicate(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	if got := ParseRetryAfter("60", now); got != time.Minute {
		t.Errorf("expected 60s, got %v", got)
	}
	if got := ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now); got != 90*time.Second {
		t.Errorf("expected 90s from date, got %v", got)
	}
	for _, v := range []string{"", "-5", "soon", now.Add(-time.Minute).Format(http.TimeFormat)} {
		if got := ParseRetryAfter(v, now); got != 0 {
			t.Errorf("ParseRetryAfter(%q): expected 0, got %v", v, got)
		}
	}
}
