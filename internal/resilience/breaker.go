// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError identifies which breaker rejected the call.
type CircuitOpenError struct {
	Name string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// Is reports ErrCircuitOpen equivalence.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// State is the breaker state. The numeric values match the
// circuit_breaker_state gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	ResetTimeout     time.Duration `json:"reset_timeout"`
}

// DefaultBreakerConfig returns the default thresholds: open after 5 failures,
// close after 2 half-open successes, probe again after 60s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     60 * time.Second,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	return c
}

// BreakerSnapshot is a copy of a breaker's state.
type BreakerSnapshot struct {
	Name        string        `json:"name"`
	State       string        `json:"state"`
	Failures    int           `json:"failures"`
	Successes   int           `json:"successes"`
	LastFailure time.Time     `json:"last_failure,omitempty"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
	Config      BreakerConfig `json:"config"`
}

// Breaker is a three-state circuit breaker guarding one resource.
//
// CLOSED: calls pass; a success decrements the failure counter (never below
// zero) and a failure increments it. Reaching FailureThreshold opens the breaker.
//
// OPEN: calls are rejected until ResetTimeout has elapsed since the last
// failure. The first call after that moves the breaker to HALF_OPEN and runs.
//
// HALF_OPEN: SuccessThreshold successes close the breaker; any failure reopens it.
//
// The transition out of OPEN happens on the next call, never on a timer.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	onStateChange func(name string, from, to State)

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	lastSuccess time.Time
}

// BreakerOption customizes a Breaker.
type BreakerOption func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithStateChangeHook registers a callback invoked (outside the lock) after
// every state transition.
func WithStateChangeHook(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) { b.onStateChange = fn }
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(StateClosed))
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	return b
}

// Name returns the resource name.
func (b *Breaker) Name() string { return b.name }

// Config returns the effective thresholds.
func (b *Breaker) Config() BreakerConfig { return b.cfg }

// Execute runs fn if the breaker allows it and records the outcome.
// A rejected call returns a *CircuitOpenError without running fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Allow reports whether a call may proceed, moving OPEN to HALF_OPEN when the
// reset timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			b.mu.Unlock()
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return &CircuitOpenError{Name: b.name}
		}
		b.successes = 0
		from := b.setState(StateHalfOpen)
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return nil
	}
	b.mu.Unlock()
	return nil
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.lastSuccess = b.now()
	transitioned := false
	var from State

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			from = b.setState(StateClosed)
			transitioned = true
		}
	case StateClosed:
		if b.failures > 0 {
			b.failures--
		}
	}
	failures := b.failures
	b.mu.Unlock()

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(failures))
	if transitioned {
		b.notify(from, StateClosed)
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	b.lastFailure = b.now()
	transitioned := false
	var from State

	switch b.state {
	case StateHalfOpen:
		b.successes = 0
		from = b.setState(StateOpen)
		transitioned = true
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			from = b.setState(StateOpen)
			transitioned = true
		}
	case StateOpen:
		// A call admitted before the breaker opened; only the timestamp moves.
	}
	failures := b.failures
	b.mu.Unlock()

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(failures))
	if transitioned {
		if from == StateClosed {
			logging.Warn().Str("breaker", b.name).Int("failures", failures).Msg("[CIRCUIT BREAKER] Opening circuit")
		}
		b.notify(from, StateOpen)
	}
}

// Reset forces the breaker CLOSED with all counters zeroed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.failures = 0
	b.successes = 0
	from := b.setState(StateClosed)
	b.mu.Unlock()

	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

// State returns the current state. It does not advance OPEN to HALF_OPEN;
// only a call does that.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the breaker's counters and state.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:        b.name,
		State:       b.state.String(),
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
		LastSuccess: b.lastSuccess,
		Config:      b.cfg,
	}
}

// setState must be called with mu held. It returns the previous state.
func (b *Breaker) setState(to State) State {
	from := b.state
	b.state = to
	return from
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	logging.Info().Str("breaker", b.name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(to))
	metrics.CircuitBreakerTransitions.WithLabelValues(b.name, from.String(), to.String()).Inc()
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// BreakerRegistry owns one breaker per resource key.
type BreakerRegistry struct {
	cfg  BreakerConfig
	opts []BreakerOption

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerRegistry creates a registry whose breakers share cfg and opts.
func NewBreakerRegistry(cfg BreakerConfig, opts ...BreakerOption) *BreakerRegistry {
	return &BreakerRegistry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, r.cfg, r.opts...)
	r.breakers[name] = b
	return b
}

// Snapshots returns the state of every breaker created so far.
func (r *BreakerRegistry) Snapshots() map[string]BreakerSnapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerSnapshot, len(breakers))
	for _, b := range breakers {
		out[b.name] = b.Snapshot()
	}
	return out
}
