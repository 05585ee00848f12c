// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
)

// DefaultMaxBackoff caps the delay returned for retry decisions.
const DefaultMaxBackoff = 300 * time.Second

// OperationContext describes the operation that failed.
type OperationContext struct {
	UserID         string
	InvestmentType models.InvestmentType
	Source         string

	// Attempt is the 1-based number of the attempt that just failed.
	Attempt int

	HasFallback       bool
	AvailableFallback string
}

// Selector turns a classified error into a recovery action.
type Selector struct {
	escalator  *Escalator
	queue      *InterventionQueue
	notifier   notify.Notifier
	maxBackoff time.Duration

	mu       sync.RWMutex
	disabled map[string]string // user|type -> intervention ID
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithNotifier sets where escalations and interventions are announced.
func WithNotifier(n notify.Notifier) SelectorOption {
	return func(s *Selector) { s.notifier = n }
}

// WithMaxBackoff overrides the retry delay cap.
func WithMaxBackoff(d time.Duration) SelectorOption {
	return func(s *Selector) {
		if d > 0 {
			s.maxBackoff = d
		}
	}
}

// NewSelector creates a selector.
func NewSelector(escalator *Escalator, queue *InterventionQueue, opts ...SelectorOption) *Selector {
	s := &Selector{
		escalator:  escalator,
		queue:      queue,
		notifier:   notify.Nop{},
		maxBackoff: DefaultMaxBackoff,
		disabled:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Escalator returns the escalator the selector consults.
func (s *Selector) Escalator() *Escalator { return s.escalator }

// Queue returns the intervention queue.
func (s *Selector) Queue() *InterventionQueue { return s.queue }

// Select decides how to recover from syncErr. Escalation is checked first;
// otherwise the kind's static strategy applies.
func (s *Selector) Select(ctx context.Context, syncErr models.SyncError, op OperationContext) models.RecoveryAction {
	kind := syncErr.Kind
	if !kind.Valid() {
		kind = models.ErrorUnknown
	}
	strategy := StrategyFor(kind)

	if decision := s.escalator.ShouldEscalate(op, strategy); decision.Escalate {
		return s.escalate(ctx, syncErr, kind, op, decision)
	}

	action := s.applyStrategy(ctx, syncErr, kind, strategy, op)
	metrics.RecoveryActions.WithLabelValues(string(kind), string(action.Kind)).Inc()
	logging.Ctx(ctx).Debug().
		Str("error_type", string(kind)).
		Str("strategy", string(strategy.Name)).
		Str("action", string(action.Kind)).
		Int("attempt", op.Attempt).
		Msg("Recovery action selected")
	return action
}

func (s *Selector) applyStrategy(ctx context.Context, syncErr models.SyncError, kind models.ErrorKind, strategy Strategy, op OperationContext) models.RecoveryAction {
	switch strategy.Name {
	case StrategyRetryWithBackoff:
		if op.Attempt >= strategy.MaxAttempts {
			return s.fallbackAction(ctx, syncErr, kind, strategy, op, "retry attempts exhausted")
		}
		return models.RecoveryAction{
			Kind:   models.ActionRetry,
			Delay:  BackoffDelay(strategy.BaseDelay, op.Attempt, s.maxBackoff),
			Reason: fmt.Sprintf("retrying after %s (attempt %d of %d)", kind, op.Attempt, strategy.MaxAttempts),
		}

	case StrategyDelayAndRetry:
		if op.Attempt >= strategy.MaxAttempts {
			return s.fallbackAction(ctx, syncErr, kind, strategy, op, "rate limit persisted across retries")
		}
		delay := strategy.BaseDelay
		reason := "rate limited, waiting the default interval"
		if secs, ok := syncErr.RetryAfterSeconds(); ok {
			delay = time.Duration(secs) * time.Second
			reason = fmt.Sprintf("rate limited, provider asked to retry after %ds", secs)
		}
		if delay > s.maxBackoff {
			delay = s.maxBackoff
		}
		return models.RecoveryAction{Kind: models.ActionDelay, Delay: delay, Reason: reason}

	case StrategyFallbackWithRetry:
		if fb, ok := availableFallback(op); ok {
			return models.RecoveryAction{Kind: models.ActionFallbackSource, FallbackSource: fb, Reason: fmt.Sprintf("%s unavailable, switching to %s", op.Source, fb)}
		}
		if op.Attempt < strategy.MaxAttempts {
			return models.RecoveryAction{
				Kind:   models.ActionRetry,
				Delay:  BackoffDelay(strategy.BaseDelay, op.Attempt, s.maxBackoff),
				Reason: "service unavailable and no fallback source, retrying",
			}
		}
		return s.fallbackAction(ctx, syncErr, kind, strategy, op, "service unavailable and no fallback source")

	case StrategyFallbackWithSkip:
		if fb, ok := availableFallback(op); ok {
			return models.RecoveryAction{Kind: models.ActionFallbackSource, FallbackSource: fb, Reason: fmt.Sprintf("unreadable data from %s, trying %s", op.Source, fb)}
		}
		return models.RecoveryAction{Kind: models.ActionSkipRecord, Reason: "unreadable data and no fallback source"}

	case StrategySkipAndContinue:
		return models.RecoveryAction{Kind: models.ActionSkipRecord, Reason: fmt.Sprintf("skipping record after %s", kind)}

	case StrategyManualIntervention:
		iv := s.enqueue(ctx, syncErr, kind, op, false, nil)
		return models.RecoveryAction{
			Kind:           models.ActionManualIntervention,
			Reason:         fmt.Sprintf("%s requires operator action", kind),
			InterventionID: iv.ID,
		}
	}
	return models.RecoveryAction{Kind: models.ActionSkipRecord, Reason: "no strategy"}
}

// fallbackAction applies the strategy's fallback when the strategy itself
// cannot resolve the error.
func (s *Selector) fallbackAction(ctx context.Context, syncErr models.SyncError, kind models.ErrorKind, strategy Strategy, op OperationContext, why string) models.RecoveryAction {
	switch strategy.FallbackAction {
	case models.ActionFallbackSource:
		if fb, ok := availableFallback(op); ok {
			return models.RecoveryAction{Kind: models.ActionFallbackSource, FallbackSource: fb, Reason: why + ", switching to " + fb}
		}
		return models.RecoveryAction{Kind: models.ActionSkipRecord, Reason: why + " and no fallback source"}
	case models.ActionManualIntervention:
		iv := s.enqueue(ctx, syncErr, kind, op, false, nil)
		return models.RecoveryAction{Kind: models.ActionManualIntervention, Reason: why, InterventionID: iv.ID}
	case models.ActionDisableSync:
		iv := s.enqueue(ctx, syncErr, kind, op, false, nil)
		s.disable(ctx, op, iv, why)
		return models.RecoveryAction{Kind: models.ActionDisableSync, Reason: why, InterventionID: iv.ID}
	}
	return models.RecoveryAction{Kind: models.ActionSkipRecord, Reason: why}
}

// escalate queues an escalated intervention. Critical kinds disable sync;
// everything else asks for manual intervention. Every condition that held is
// recorded on the intervention.
func (s *Selector) escalate(ctx context.Context, syncErr models.SyncError, kind models.ErrorKind, op OperationContext, d EscalationDecision) models.RecoveryAction {
	iv := s.enqueue(ctx, syncErr, kind, op, true, d.Reasons)
	for _, r := range d.Reasons {
		metrics.Escalations.WithLabelValues(string(r)).Inc()
	}
	logging.Ctx(ctx).Warn().
		Str("error_type", string(kind)).
		Str("investment_type", string(op.InvestmentType)).
		Int("attempt", op.Attempt).
		Str("reasons", d.Message()).
		Msg("Escalating sync failure")

	action := models.RecoveryAction{
		Kind:           models.ActionManualIntervention,
		Reason:         "escalated: " + d.Message(),
		Escalated:      true,
		InterventionID: iv.ID,
	}
	if IsCritical(kind) {
		action.Kind = models.ActionDisableSync
		s.disable(ctx, op, iv, action.Reason)
	}
	metrics.RecoveryActions.WithLabelValues(string(kind), string(action.Kind)).Inc()
	return action
}

func (s *Selector) enqueue(ctx context.Context, syncErr models.SyncError, kind models.ErrorKind, op OperationContext, escalated bool, reasons []EscalationReason) models.Intervention {
	reasonStrings := make([]string, len(reasons))
	for i, r := range reasons {
		reasonStrings[i] = string(r)
	}
	iv := s.queue.Add(models.Intervention{
		UserID:         op.UserID,
		ErrorKind:      kind,
		Type:           interventionTypeFor(kind, reasons),
		InvestmentType: op.InvestmentType,
		Source:         op.Source,
		Message:        syncErr.Message,
		Escalated:      escalated,
		Reasons:        reasonStrings,
		Attempt:        op.Attempt,
	})

	notifyKind := notify.KindManualIntervention
	if !escalated && (kind == models.ErrorAuthenticationFailed || kind == models.ErrorCredential) {
		notifyKind = notify.KindCredentialIssue
	}
	notify.Send(ctx, s.notifier, notify.NewPayload(notifyKind, op.UserID, map[string]any{
		"intervention_id":   iv.ID,
		"intervention_type": string(iv.Type),
		"error_type":        string(kind),
		"investment_type":   string(op.InvestmentType),
		"escalated":         escalated,
		"reasons":           reasonStrings,
	}))
	return iv
}

func (s *Selector) disable(ctx context.Context, op OperationContext, iv models.Intervention, reason string) {
	s.mu.Lock()
	s.disabled[counterKey(op.UserID, op.InvestmentType)] = iv.ID
	s.mu.Unlock()

	logging.Ctx(ctx).Warn().Str("investment_type", string(op.InvestmentType)).Str("intervention_id", iv.ID).Msg("Sync disabled pending operator action")
	notify.Send(ctx, s.notifier, notify.NewPayload(notify.KindSyncDisabled, op.UserID, map[string]any{
		"investment_type": string(op.InvestmentType),
		"intervention_id": iv.ID,
		"reason":          reason,
	}))
}

// IsDisabled reports whether sync is disabled for (user, investment type).
func (s *Selector) IsDisabled(userID string, t models.InvestmentType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.disabled[counterKey(userID, t)]
	return ok
}

// Enable lifts a disable_sync decision.
func (s *Selector) Enable(userID string, t models.InvestmentType) {
	s.mu.Lock()
	delete(s.disabled, counterKey(userID, t))
	s.mu.Unlock()
}

// Resolve resolves an intervention and re-enables sync when that
// intervention is what disabled it.
func (s *Selector) Resolve(userID, id, resolution string) (models.Intervention, error) {
	iv, err := s.queue.Resolve(userID, id, resolution)
	if err != nil {
		return iv, err
	}
	key := counterKey(userID, iv.InvestmentType)
	s.mu.Lock()
	if s.disabled[key] == id {
		delete(s.disabled, key)
	}
	s.mu.Unlock()
	s.escalator.RecordOutcome(userID, iv.InvestmentType, true)
	return iv, nil
}

func availableFallback(op OperationContext) (string, bool) {
	if op.HasFallback && op.AvailableFallback != "" && op.AvailableFallback != op.Source {
		return op.AvailableFallback, true
	}
	return "", false
}
