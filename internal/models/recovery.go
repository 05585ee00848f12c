// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ActionKind is the kind of a recovery decision.
type ActionKind string

const (
	ActionRetry              ActionKind = "retry"
	ActionDelay              ActionKind = "delay"
	ActionFallbackSource     ActionKind = "fallback_source"
	ActionSkipRecord         ActionKind = "skip_record"
	ActionDisableSync        ActionKind = "disable_sync"
	ActionManualIntervention ActionKind = "manual_intervention"
)

// RecoveryAction is one decision returned by the recovery selector.
// Exactly one Kind is set per decision.
type RecoveryAction struct {
	Kind           ActionKind    `json:"action"`
	Delay          time.Duration `json:"-"`
	FallbackSource string        `json:"fallback_source,omitempty"`
	Reason         string        `json:"reason"`
	Escalated      bool          `json:"escalated"`
	InterventionID string        `json:"intervention_id,omitempty"`
}

// MarshalJSON renders Delay in milliseconds.
func (a RecoveryAction) MarshalJSON() ([]byte, error) {
	type alias RecoveryAction
	return json.Marshal(struct {
		alias
		DelayMS int64 `json:"delay_ms,omitempty"`
	}{alias: alias(a), DelayMS: a.Delay.Milliseconds()})
}

// InterventionStatus is the lifecycle state of an intervention.
type InterventionStatus string

const (
	InterventionPending  InterventionStatus = "pending"
	InterventionResolved InterventionStatus = "resolved"
)

// InterventionType describes what an operator is asked to do.
type InterventionType string

const (
	InterventionCredentialUpdate  InterventionType = "credential_update"
	InterventionPermissionReview  InterventionType = "permission_review"
	InterventionConfigurationFix  InterventionType = "configuration_fix"
	InterventionDataReview        InterventionType = "data_review"
	InterventionSourceOutage      InterventionType = "source_outage"
	InterventionInvestigateErrors InterventionType = "investigate_errors"
)

// Intervention is an item queued for human action.
type Intervention struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	Status         InterventionStatus `json:"status"`
	ErrorKind      ErrorKind          `json:"error_type"`
	Type           InterventionType   `json:"intervention_type"`
	InvestmentType InvestmentType     `json:"investment_type,omitempty"`
	Source         string             `json:"source,omitempty"`
	Message        string             `json:"message"`
	Escalated      bool               `json:"escalated"`
	Reasons        []string           `json:"reasons,omitempty"` // Escalation conditions that held
	Attempt        int                `json:"attempt"`
	CreatedAt      time.Time          `json:"created_at"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
	Resolution     string             `json:"resolution,omitempty"`
}
