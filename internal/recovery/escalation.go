// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/cache"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// EscalationReason names one escalation condition.
type EscalationReason string

const (
	ReasonAttemptsExceeded    EscalationReason = "attempts_exceeded"
	ReasonConsecutiveFailures EscalationReason = "consecutive_failures"
	ReasonHourlyErrors        EscalationReason = "hourly_errors"
	ReasonCriticalType        EscalationReason = "critical_investment_type"
	ReasonSourceHealth        EscalationReason = "source_health"
)

// HealthRatio reports the fraction of tracked sources currently healthy.
// *sources.Registry satisfies it.
type HealthRatio interface {
	HealthyRatio() float64
}

// EscalationConfig holds the any-of escalation thresholds.
type EscalationConfig struct {
	ConsecutiveFailures int
	HourlyErrors        int
	CriticalTypes       []models.InvestmentType
	CriticalAttempt     int
	MinHealthyRatio     float64
}

// DefaultEscalationConfig returns 3 consecutive failures, 5 errors per hour,
// EPF critical from attempt 2 and a 50% healthy-source floor.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		ConsecutiveFailures: 3,
		HourlyErrors:        5,
		CriticalTypes:       []models.InvestmentType{models.InvestmentEPF},
		CriticalAttempt:     2,
		MinHealthyRatio:     0.5,
	}
}

// EscalationDecision is the outcome of ShouldEscalate.
type EscalationDecision struct {
	Escalate bool
	Reasons  []EscalationReason
	Details  []string
}

// Message joins the human-readable details.
func (d EscalationDecision) Message() string {
	return strings.Join(d.Details, "; ")
}

// Escalator tracks failure counters per (user, investment type) and decides
// when a failure must be promoted to a human.
type Escalator struct {
	cfg    EscalationConfig
	health HealthRatio

	mu          sync.Mutex
	consecutive map[string]int
	hourly      *cache.SlidingWindowStore
}

// NewEscalator creates an escalator. health may be nil, which disables the
// healthy-source condition.
func NewEscalator(cfg EscalationConfig, health HealthRatio) *Escalator {
	return NewEscalatorWithClock(cfg, health, time.Now)
}

// NewEscalatorWithClock is NewEscalator with an injectable clock for the hourly window.
func NewEscalatorWithClock(cfg EscalationConfig, health HealthRatio, now func() time.Time) *Escalator {
	return &Escalator{
		cfg:         cfg,
		health:      health,
		consecutive: make(map[string]int),
		hourly:      cache.NewSlidingWindowStoreWithClock(time.Hour, 12, 10000, now),
	}
}

func counterKey(userID string, t models.InvestmentType) string {
	return userID + "|" + string(t)
}

// RecordOutcome updates the counters of (user, investment type). A success
// resets the consecutive-failure run; a failure extends it and counts toward
// the hourly window.
func (e *Escalator) RecordOutcome(userID string, t models.InvestmentType, success bool) {
	key := counterKey(userID, t)
	e.mu.Lock()
	if success {
		delete(e.consecutive, key)
	} else {
		e.consecutive[key]++
	}
	e.mu.Unlock()

	if !success {
		e.hourly.Increment(key)
	}
}

// ConsecutiveFailures returns the current failure run of (user, investment type).
func (e *Escalator) ConsecutiveFailures(userID string, t models.InvestmentType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consecutive[counterKey(userID, t)]
}

// HourlyErrors returns the failures of (user, investment type) in the last hour.
func (e *Escalator) HourlyErrors(userID string, t models.InvestmentType) int {
	return int(e.hourly.Count(counterKey(userID, t)))
}

// ShouldEscalate evaluates every condition and escalates when any holds.
func (e *Escalator) ShouldEscalate(op OperationContext, strategy Strategy) EscalationDecision {
	var d EscalationDecision
	add := func(r EscalationReason, format string, args ...any) {
		d.Reasons = append(d.Reasons, r)
		d.Details = append(d.Details, fmt.Sprintf(format, args...))
	}

	if op.Attempt > strategy.EscalateAfter {
		add(ReasonAttemptsExceeded, "attempt %d exceeds escalation threshold %d", op.Attempt, strategy.EscalateAfter)
	}
	if n := e.ConsecutiveFailures(op.UserID, op.InvestmentType); e.cfg.ConsecutiveFailures > 0 && n >= e.cfg.ConsecutiveFailures {
		add(ReasonConsecutiveFailures, "%d consecutive failures", n)
	}
	if n := e.HourlyErrors(op.UserID, op.InvestmentType); e.cfg.HourlyErrors > 0 && n >= e.cfg.HourlyErrors {
		add(ReasonHourlyErrors, "%d errors in the last hour", n)
	}
	if slices.Contains(e.cfg.CriticalTypes, op.InvestmentType) && e.cfg.CriticalAttempt > 0 && op.Attempt >= e.cfg.CriticalAttempt {
		add(ReasonCriticalType, "critical investment type %s failed at attempt %d", op.InvestmentType, op.Attempt)
	}
	if e.health != nil {
		if ratio := e.health.HealthyRatio(); ratio < e.cfg.MinHealthyRatio {
			add(ReasonSourceHealth, "only %.0f%% of sources healthy", ratio*100)
		}
	}

	d.Escalate = len(d.Reasons) > 0
	return d
}
