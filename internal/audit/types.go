// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// Type represents the category of an audit entry.
type Type string

// Audit entry types.
const (
	TypeSyncStarted     Type = "sync_started"
	TypeSyncCompleted   Type = "sync_completed"
	TypeSyncFailed      Type = "sync_failed"
	TypeDataUpdated     Type = "data_updated"
	TypeValidation      Type = "validation"
	TypeAnomalyDetected Type = "anomaly_detected"
	TypeQuarantine      Type = "quarantine"
	TypeManualOverride  Type = "manual_override"
	TypeConfigChanged   Type = "config_changed"
)

// AllTypes lists every known audit type in a stable order.
var AllTypes = []Type{
	TypeSyncStarted,
	TypeSyncCompleted,
	TypeSyncFailed,
	TypeDataUpdated,
	TypeValidation,
	TypeAnomalyDetected,
	TypeQuarantine,
	TypeManualOverride,
	TypeConfigChanged,
}

// Valid reports whether t is a known audit type.
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entry is one append-only audit record.
type Entry struct {
	ID             string                `json:"id"`
	UserID         string                `json:"userId"`
	AuditType      Type                  `json:"auditType"`
	InvestmentType models.InvestmentType `json:"investmentType,omitempty"`
	InvestmentID   string                `json:"investmentId,omitempty"`
	Source         string                `json:"source,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	Details        map[string]any        `json:"details"`
	DataHash       string                `json:"dataHash,omitempty"`
	IPAddress      string                `json:"ipAddress,omitempty"`
	UserAgent      string                `json:"userAgent,omitempty"`
	CorrelationID  string                `json:"correlationId,omitempty"`
}

// Filter defines criteria for querying audit entries.
// Results are newest first unless Ascending is set.
type Filter struct {
	UserID         string                `json:"user_id,omitempty"`
	Types          []Type                `json:"types,omitempty"`
	InvestmentType models.InvestmentType `json:"investment_type,omitempty"`
	InvestmentID   string                `json:"investment_id,omitempty"`
	Source         string                `json:"source,omitempty"`
	Start          *time.Time            `json:"start,omitempty"`
	End            *time.Time            `json:"end,omitempty"`
	Limit          int                   `json:"limit,omitempty"`
	Offset         int                   `json:"offset,omitempty"`
	Ascending      bool                  `json:"ascending,omitempty"`
}

// DefaultFilter returns a filter with the default page size.
func DefaultFilter() Filter {
	return Filter{Limit: 100}
}

// Store defines the interface for audit entry persistence.
type Store interface {
	// Save appends an entry.
	Save(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id string) (*Entry, error)

	// Query retrieves entries matching the filter.
	Query(ctx context.Context, filter Filter) ([]Entry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Delete removes entries older than the given time.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// ErrEntryNotFound is returned by Get when no entry has the requested ID.
var ErrEntryNotFound = errors.New("audit entry not found")

// Statistics summarizes the entries matching a filter.
type Statistics struct {
	TotalEntries     int64            `json:"total_entries"`
	TotalSyncs       int64            `json:"total_syncs"`
	SuccessfulSyncs  int64            `json:"successful_syncs"`
	FailedSyncs      int64            `json:"failed_syncs"`
	SuccessRate      float64          `json:"success_rate"` // Percentage of finished syncs that succeeded
	AverageDuration  float64          `json:"average_duration_ms"`
	ByInvestmentType map[string]int64 `json:"by_investment_type"` // Finished syncs per investment type
	BySource         map[string]int64 `json:"by_source"`          // Finished syncs per source
	ByAuditType      map[string]int64 `json:"by_audit_type"`
	OldestEntry      *time.Time       `json:"oldest_entry,omitempty"`
	NewestEntry      *time.Time       `json:"newest_entry,omitempty"`
}

// Format selects an export encoding.
type Format string

// Export formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses an export format name, defaulting to JSON for "".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")
