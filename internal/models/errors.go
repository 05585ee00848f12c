// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import "fmt"

// ErrorKind is the closed taxonomy of sync failures.
type ErrorKind string

const (
	ErrorNetwork              ErrorKind = "NETWORK_ERROR"
	ErrorNetworkTimeout       ErrorKind = "NETWORK_TIMEOUT"
	ErrorAuthenticationFailed ErrorKind = "AUTHENTICATION_FAILED"
	ErrorAuthorizationFailed  ErrorKind = "AUTHORIZATION_FAILED"
	ErrorRateLimitExceeded    ErrorKind = "RATE_LIMIT_EXCEEDED"
	ErrorServiceUnavailable   ErrorKind = "SERVICE_UNAVAILABLE"
	ErrorDatabase             ErrorKind = "DATABASE_ERROR"
	ErrorDataValidationFailed ErrorKind = "DATA_VALIDATION_FAILED"
	ErrorDataParsingFailed    ErrorKind = "DATA_PARSING_FAILED"
	ErrorConfiguration        ErrorKind = "CONFIGURATION_ERROR"
	ErrorCredential           ErrorKind = "CREDENTIAL_ERROR"
	ErrorNotFound             ErrorKind = "NOT_FOUND"
	ErrorDataNotFound         ErrorKind = "DATA_NOT_FOUND"
	ErrorUnknown              ErrorKind = "UNKNOWN_ERROR"
)

// ErrorKinds lists the full taxonomy.
var ErrorKinds = []ErrorKind{
	ErrorNetwork,
	ErrorNetworkTimeout,
	ErrorAuthenticationFailed,
	ErrorAuthorizationFailed,
	ErrorRateLimitExceeded,
	ErrorServiceUnavailable,
	ErrorDatabase,
	ErrorDataValidationFailed,
	ErrorDataParsingFailed,
	ErrorConfiguration,
	ErrorCredential,
	ErrorNotFound,
	ErrorDataNotFound,
	ErrorUnknown,
}

// Valid reports whether k belongs to the taxonomy.
func (k ErrorKind) Valid() bool {
	for _, known := range ErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Transient reports whether the kind is recovered locally through retry or fallback.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorNetwork, ErrorNetworkTimeout, ErrorRateLimitExceeded, ErrorServiceUnavailable:
		return true
	}
	return false
}

// Structural reports whether the kind must never be retried automatically.
func (k ErrorKind) Structural() bool {
	switch k {
	case ErrorAuthenticationFailed, ErrorAuthorizationFailed, ErrorCredential, ErrorConfiguration:
		return true
	}
	return false
}

// SyncError is a failure classified into the taxonomy. It implements error so
// it can travel through ordinary error returns and be recovered with errors.As.
type SyncError struct {
	Kind         ErrorKind      `json:"type"`
	Message      string         `json:"message"`
	Code         string         `json:"code,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Source       string         `json:"source,omitempty"`
	InvestmentID string         `json:"investment_id,omitempty"`
}

// NewSyncError creates a SyncError; an unknown kind is coerced to UNKNOWN_ERROR.
func NewSyncError(kind ErrorKind, message string) *SyncError {
	if !kind.Valid() {
		kind = ErrorUnknown
	}
	return &SyncError{Kind: kind, Message: message}
}

func (e *SyncError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithDetail returns e after setting one detail entry.
func (e *SyncError) WithDetail(key string, value any) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// RetryAfterSeconds returns the provider-supplied retry-after hint, if any.
func (e *SyncError) RetryAfterSeconds() (int, bool) {
	if e == nil || e.Details == nil {
		return 0, false
	}
	switch v := e.Details["retry_after"].(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	}
	return 0, false
}
