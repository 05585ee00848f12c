// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// StrategyName identifies how a class of errors is recovered.
type StrategyName string

const (
	StrategyRetryWithBackoff   StrategyName = "retry_with_backoff"
	StrategyDelayAndRetry      StrategyName = "delay_and_retry"
	StrategyFallbackWithRetry  StrategyName = "fallback_with_retry"
	StrategySkipAndContinue    StrategyName = "skip_and_continue"
	StrategyFallbackWithSkip   StrategyName = "fallback_with_skip"
	StrategyManualIntervention StrategyName = "manual_intervention"
)

// Strategy is the static recovery policy of one error kind.
type Strategy struct {
	Name        StrategyName
	MaxAttempts int
	BaseDelay   time.Duration

	// EscalateAfter is the attempt count beyond which the error is escalated.
	EscalateAfter int

	// FallbackAction applies when the strategy itself cannot resolve the
	// error, e.g. attempts are exhausted or no alternate source exists.
	FallbackAction models.ActionKind
}

var strategies = map[models.ErrorKind]Strategy{
	models.ErrorNetwork:              {StrategyRetryWithBackoff, 3, time.Second, 3, models.ActionFallbackSource},
	models.ErrorNetworkTimeout:       {StrategyRetryWithBackoff, 3, 2 * time.Second, 3, models.ActionFallbackSource},
	models.ErrorRateLimitExceeded:    {StrategyDelayAndRetry, 3, 60 * time.Second, 3, models.ActionFallbackSource},
	models.ErrorServiceUnavailable:   {StrategyFallbackWithRetry, 2, 5 * time.Second, 2, models.ActionSkipRecord},
	models.ErrorAuthenticationFailed: {StrategyManualIntervention, 0, 0, 1, models.ActionDisableSync},
	models.ErrorAuthorizationFailed:  {StrategyManualIntervention, 0, 0, 1, models.ActionDisableSync},
	models.ErrorCredential:           {StrategyManualIntervention, 0, 0, 1, models.ActionDisableSync},
	models.ErrorConfiguration:        {StrategyManualIntervention, 0, 0, 1, models.ActionDisableSync},
	models.ErrorDataValidationFailed: {StrategySkipAndContinue, 0, 0, 5, models.ActionSkipRecord},
	models.ErrorDataParsingFailed:    {StrategyFallbackWithSkip, 1, 0, 3, models.ActionSkipRecord},
	models.ErrorDatabase:             {StrategyRetryWithBackoff, 3, time.Second, 3, models.ActionManualIntervention},
	models.ErrorNotFound:             {StrategySkipAndContinue, 0, 0, 5, models.ActionSkipRecord},
	models.ErrorDataNotFound:         {StrategySkipAndContinue, 0, 0, 5, models.ActionSkipRecord},
	models.ErrorUnknown:              {StrategyRetryWithBackoff, 2, time.Second, 2, models.ActionManualIntervention},
}

// StrategyFor returns the strategy of kind. Kinds outside the taxonomy use
// the UNKNOWN_ERROR strategy.
func StrategyFor(kind models.ErrorKind) Strategy {
	if s, ok := strategies[kind]; ok {
		return s
	}
	return strategies[models.ErrorUnknown]
}

// criticalKinds disable sync when escalated.
var criticalKinds = map[models.ErrorKind]bool{
	models.ErrorAuthenticationFailed: true,
	models.ErrorCredential:           true,
	models.ErrorConfiguration:        true,
}

// IsCritical reports whether an escalated error of kind disables sync.
func IsCritical(kind models.ErrorKind) bool {
	return criticalKinds[kind]
}

// interventionTypeFor picks what an operator is asked to do.
func interventionTypeFor(kind models.ErrorKind, reasons []EscalationReason) models.InterventionType {
	switch kind {
	case models.ErrorAuthenticationFailed, models.ErrorCredential:
		return models.InterventionCredentialUpdate
	case models.ErrorAuthorizationFailed:
		return models.InterventionPermissionReview
	case models.ErrorConfiguration:
		return models.InterventionConfigurationFix
	case models.ErrorDataValidationFailed, models.ErrorDataParsingFailed:
		return models.InterventionDataReview
	}
	for _, r := range reasons {
		if r == ReasonSourceHealth {
			return models.InterventionSourceOutage
		}
	}
	return models.InterventionInvestigateErrors
}

// BackoffDelay returns min(base * 2^(attempt-1), limit) for a 1-based attempt.
func BackoffDelay(base time.Duration, attempt int, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if limit > 0 && d >= limit {
			return limit
		}
		d *= 2
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
