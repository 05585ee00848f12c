// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
	"github.com/ParagE404/fiscal-flow-sub001/internal/resilience"
)

type fixedRatio float64

func (r fixedRatio) HealthyRatio() float64 { return float64(r) }

type notifications struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (n *notifications) Notify(_ context.Context, p notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, p.Kind)
	return nil
}

func (n *notifications) has(kind notify.Kind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func newTestSelector(t *testing.T, ratio float64) (*Selector, *notifications) {
	t.Helper()
	queue, err := NewInterventionQueue(DefaultQueueCap, nil)
	if err != nil {
		t.Fatalf("NewInterventionQueue: %v", err)
	}
	n := &notifications{}
	return NewSelector(NewEscalator(DefaultEscalationConfig(), fixedRatio(ratio)), queue, WithNotifier(n)), n
}

func stockOp(attempt int) OperationContext {
	return OperationContext{UserID: "u1", InvestmentType: models.InvestmentStock, Source: "yahoo_finance", Attempt: attempt}
}

func TestSelect_RateLimitUsesRetryAfter(t *testing.T) {
	s, _ := newTestSelector(t, 1)
	syncErr := Classify(&resilience.HTTPError{StatusCode: 429, RetryAfter: 60 * time.Second})

	action := s.Select(context.Background(), syncErr, stockOp(1))
	if action.Kind != models.ActionDelay {
		t.Fatalf("expected delay, got %s", action.Kind)
	}
	if action.Delay.Milliseconds() != 60000 {
		t.Errorf("expected 60000ms, got %d", action.Delay.Milliseconds())
	}
}

func TestSelect_RateLimitWithoutRetryAfterUsesBaseDelay(t *testing.T) {
	s, _ := newTestSelector(t, 1)
	action := s.Select(context.Background(), Classify(&resilience.HTTPError{StatusCode: 429}), stockOp(1))
	if action.Kind != models.ActionDelay || action.Delay != 60*time.Second {
		t.Errorf("expected 60s delay, got %s %v", action.Kind, action.Delay)
	}
}

func TestSelect_RetryBackoff(t *testing.T) {
	s, _ := newTestSelector(t, 1)
	syncErr := models.SyncError{Kind: models.ErrorNetwork, Message: "connection refused"}

	for attempt, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second} {
		action := s.Select(context.Background(), syncErr, stockOp(attempt))
		if action.Kind != models.ActionRetry || action.Delay != want {
			t.Errorf("attempt %d: expected retry after %v, got %s after %v", attempt, want, action.Kind, action.Delay)
		}
	}

	op := stockOp(3)
	op.HasFallback, op.AvailableFallback = true, "nse"
	action := s.Select(context.Background(), syncErr, op)
	if action.Kind != models.ActionFallbackSource || action.FallbackSource != "nse" {
		t.Errorf("expected fallback to nse once attempts are exhausted, got %+v", action)
	}

	action = s.Select(context.Background(), syncErr, stockOp(3))
	if action.Kind != models.ActionSkipRecord {
		t.Errorf("expected skip without a fallback, got %s", action.Kind)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second}, {2, 2 * time.Second}, {3, 4 * time.Second}, {9, 256 * time.Second}, {10, 300 * time.Second}, {40, 300 * time.Second},
	}
	for _, tt := range tests {
		if got := BackoffDelay(time.Second, tt.attempt, DefaultMaxBackoff); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestSelect_ServiceUnavailable(t *testing.T) {
	s, _ := newTestSelector(t, 1)
	syncErr := models.SyncError{Kind: models.ErrorServiceUnavailable}

	op := stockOp(1)
	op.HasFallback, op.AvailableFallback = true, "bse"
	if a := s.Select(context.Background(), syncErr, op); a.Kind != models.ActionFallbackSource || a.FallbackSource != "bse" {
		t.Errorf("expected fallback to bse, got %+v", a)
	}
	if a := s.Select(context.Background(), syncErr, stockOp(1)); a.Kind != models.ActionRetry || a.Delay != 5*time.Second {
		t.Errorf("expected retry after 5s, got %+v", a)
	}
	if a := s.Select(context.Background(), syncErr, stockOp(2)); a.Kind != models.ActionSkipRecord {
		t.Errorf("expected skip once attempts run out, got %+v", a)
	}
}

func TestSelect_SkipAndParseStrategies(t *testing.T) {
	s, _ := newTestSelector(t, 1)
	ctx := context.Background()

	for _, kind := range []models.ErrorKind{models.ErrorDataValidationFailed, models.ErrorNotFound, models.ErrorDataNotFound} {
		if a := s.Select(ctx, models.SyncError{Kind: kind}, stockOp(1)); a.Kind != models.ActionSkipRecord {
			t.Errorf("%s: expected skip_record, got %s", kind, a.Kind)
		}
	}

	op := stockOp(1)
	op.HasFallback, op.AvailableFallback = true, "nse"
	if a := s.Select(ctx, models.SyncError{Kind: models.ErrorDataParsingFailed}, op); a.Kind != models.ActionFallbackSource {
		t.Errorf("expected parse failure to try a fallback, got %s", a.Kind)
	}
	if a := s.Select(ctx, models.SyncError{Kind: models.ErrorDataParsingFailed}, stockOp(1)); a.Kind != models.ActionSkipRecord {
		t.Errorf("expected parse failure without fallback to skip, got %s", a.Kind)
	}
}

func TestSelect_CredentialFailureQueuesIntervention(t *testing.T) {
	s, n := newTestSelector(t, 1)
	syncErr := Classify(&resilience.HTTPError{StatusCode: 401})
	op := OperationContext{UserID: "u1", InvestmentType: models.InvestmentMutualFund, Source: "amfi", Attempt: 1}

	s.Escalator().RecordOutcome(op.UserID, op.InvestmentType, false)
	action := s.Select(context.Background(), syncErr, op)
	if action.Kind != models.ActionManualIntervention {
		t.Fatalf("expected manual_intervention, got %s", action.Kind)
	}
	if action.Escalated {
		t.Error("expected a first credential failure not to be escalated")
	}

	pending := s.Queue().Pending("u1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending intervention, got %d", len(pending))
	}
	if pending[0].Type != models.InterventionCredentialUpdate {
		t.Errorf("expected credential_update, got %s", pending[0].Type)
	}
	if pending[0].ID != action.InterventionID {
		t.Errorf("expected action to reference intervention %s, got %s", pending[0].ID, action.InterventionID)
	}
	if !n.has(notify.KindCredentialIssue) {
		t.Errorf("expected credential_issue notification, got %v", n.kinds)
	}
}

func TestSelect_EscalatesPastThreshold(t *testing.T) {
	s, n := newTestSelector(t, 1)
	action := s.Select(context.Background(), models.SyncError{Kind: models.ErrorNetwork, Message: "connection refused"}, stockOp(5))

	if action.Kind != models.ActionManualIntervention || !action.Escalated {
		t.Fatalf("expected escalated manual_intervention, got %+v", action)
	}
	pending := s.Queue().Pending("u1")
	if len(pending) != 1 || !pending[0].Escalated {
		t.Fatalf("expected one escalated intervention, got %+v", pending)
	}
	if len(pending[0].Reasons) != 1 || pending[0].Reasons[0] != string(ReasonAttemptsExceeded) {
		t.Errorf("expected attempts_exceeded reason, got %v", pending[0].Reasons)
	}
	if !n.has(notify.KindManualIntervention) {
		t.Error("expected manual_intervention notification")
	}
	if s.IsDisabled("u1", models.InvestmentStock) {
		t.Error("expected non-critical escalation to leave sync enabled")
	}
}

func TestSelect_CriticalEscalationDisablesSync(t *testing.T) {
	s, n := newTestSelector(t, 1)
	op := OperationContext{UserID: "u2", InvestmentType: models.InvestmentEPF, Source: "epfo", Attempt: 2}

	action := s.Select(context.Background(), models.SyncError{Kind: models.ErrorCredential}, op)
	if action.Kind != models.ActionDisableSync || !action.Escalated {
		t.Fatalf("expected escalated disable_sync, got %+v", action)
	}
	if !s.IsDisabled("u2", models.InvestmentEPF) {
		t.Fatal("expected sync disabled for u2/epf")
	}
	if !n.has(notify.KindSyncDisabled) {
		t.Error("expected sync_disabled notification")
	}

	pending := s.Queue().Pending("u2")
	reasons := map[string]bool{}
	for _, r := range pending[0].Reasons {
		reasons[r] = true
	}
	if !reasons[string(ReasonAttemptsExceeded)] || !reasons[string(ReasonCriticalType)] {
		t.Errorf("expected both attempts and critical-type reasons, got %v", pending[0].Reasons)
	}

	if _, err := s.Resolve("u2", pending[0].ID, "password updated"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.IsDisabled("u2", models.InvestmentEPF) {
		t.Error("expected resolving the intervention to re-enable sync")
	}
}

func TestShouldEscalate_Conditions(t *testing.T) {
	strategy := StrategyFor(models.ErrorNetwork)

	t.Run("consecutive failures", func(t *testing.T) {
		e := NewEscalator(DefaultEscalationConfig(), nil)
		for i := 0; i < 3; i++ {
			e.RecordOutcome("u1", models.InvestmentStock, false)
		}
		d := e.ShouldEscalate(stockOp(1), strategy)
		if !d.Escalate || d.Reasons[0] != ReasonConsecutiveFailures {
			t.Errorf("expected consecutive-failure escalation, got %+v", d)
		}
		e.RecordOutcome("u1", models.InvestmentStock, true)
		if e.ConsecutiveFailures("u1", models.InvestmentStock) != 0 {
			t.Error("expected success to reset the run")
		}
	})

	t.Run("hourly errors", func(t *testing.T) {
		now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		e := NewEscalatorWithClock(DefaultEscalationConfig(), nil, clock)
		for i := 0; i < 5; i++ {
			e.RecordOutcome("u1", models.InvestmentStock, false)
			e.RecordOutcome("u1", models.InvestmentStock, true)
		}
		d := e.ShouldEscalate(stockOp(1), strategy)
		if !d.Escalate || d.Reasons[0] != ReasonHourlyErrors {
			t.Errorf("expected hourly escalation, got %+v", d)
		}
		now = now.Add(2 * time.Hour)
		if d := e.ShouldEscalate(stockOp(1), strategy); d.Escalate {
			t.Errorf("expected hourly window to expire, got %+v", d)
		}
	})

	t.Run("critical type", func(t *testing.T) {
		e := NewEscalator(DefaultEscalationConfig(), nil)
		op := OperationContext{UserID: "u1", InvestmentType: models.InvestmentEPF, Attempt: 1}
		if d := e.ShouldEscalate(op, strategy); d.Escalate {
			t.Errorf("expected EPF attempt 1 not to escalate, got %+v", d)
		}
		op.Attempt = 2
		if d := e.ShouldEscalate(op, strategy); !d.Escalate || d.Reasons[0] != ReasonCriticalType {
			t.Errorf("expected EPF attempt 2 to escalate, got %+v", d)
		}
	})

	t.Run("source health", func(t *testing.T) {
		e := NewEscalator(DefaultEscalationConfig(), fixedRatio(0.4))
		d := e.ShouldEscalate(stockOp(1), strategy)
		if !d.Escalate || d.Reasons[0] != ReasonSourceHealth {
			t.Errorf("expected source-health escalation, got %+v", d)
		}
		if interventionTypeFor(models.ErrorNetwork, d.Reasons) != models.InterventionSourceOutage {
			t.Error("expected source_outage intervention type")
		}
	})

	t.Run("nothing holds", func(t *testing.T) {
		e := NewEscalator(DefaultEscalationConfig(), fixedRatio(0.5))
		if d := e.ShouldEscalate(stockOp(3), strategy); d.Escalate {
			t.Errorf("expected no escalation at the threshold, got %+v", d)
		}
	})
}

func TestStrategyFor_CoversTaxonomy(t *testing.T) {
	for _, kind := range models.ErrorKinds {
		s := StrategyFor(kind)
		if s.Name == "" || s.EscalateAfter < 1 || s.FallbackAction == "" {
			t.Errorf("%s: incomplete strategy %+v", kind, s)
		}
		if kind.Structural() && (s.Name != StrategyManualIntervention || s.MaxAttempts != 0) {
			t.Errorf("%s: expected manual intervention with zero attempts, got %+v", kind, s)
		}
	}
	if StrategyFor("BOGUS") != StrategyFor(models.ErrorUnknown) {
		t.Error("expected unknown kinds to use the UNKNOWN_ERROR strategy")
	}
}
