// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// DefaultRetention is how long entries are kept when no retention is configured.
const DefaultRetention = 365 * 24 * time.Hour

// Recorder appends audit entries and serves the read paths over a Store.
// Appends are synchronous, so entries written by one caller keep their order.
type Recorder struct {
	store Store
	now   func() time.Time
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Recorder) Store() Store { return r.store }

// Record stamps and appends one entry. The ID, timestamp, correlation ID and
// request metadata are filled in when empty. Details are normalized to plain
// JSON values and hashed.
func (r *Recorder) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if !entry.AuditType.Valid() {
		return fmt.Errorf("unknown audit type %q", entry.AuditType)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}
	if entry.UserID == "" {
		entry.UserID = logging.UserIDFromContext(ctx)
	}
	if info := RequestInfoFromContext(ctx); info.IPAddress != "" || info.UserAgent != "" {
		if entry.IPAddress == "" {
			entry.IPAddress = info.IPAddress
		}
		if entry.UserAgent == "" {
			entry.UserAgent = info.UserAgent
		}
	}

	details, canonical, err := normalizeDetails(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	entry.Details = details
	entry.DataHash = hashBytes(canonical)

	if err := r.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s audit entry: %w", entry.AuditType, err)
	}

	metrics.AuditEntries.WithLabelValues(string(entry.AuditType)).Inc()
	logging.Ctx(ctx).Debug().
		Str("audit_type", string(entry.AuditType)).
		Str("user_id", entry.UserID).
		Str("investment_id", entry.InvestmentID).
		Msg("Audit entry recorded")
	return nil
}

// SyncStarted records the start of a sync invocation.
func (r *Recorder) SyncStarted(ctx context.Context, userID string, opts models.SyncOptions) error {
	return r.Record(ctx, &Entry{
		UserID:         userID,
		AuditType:      TypeSyncStarted,
		InvestmentType: opts.InvestmentType,
		Source:         opts.Source,
		Details: map[string]any{
			"force":       opts.Force,
			"dry_run":     opts.DryRun,
			"no_fallback": opts.NoFallback,
		},
	})
}

// SyncCompleted records a sync invocation that finished without errors.
func (r *Recorder) SyncCompleted(ctx context.Context, userID string, result *models.SyncResult) error {
	return r.Record(ctx, syncEntry(userID, TypeSyncCompleted, result, nil))
}

// SyncFailed records a sync invocation that finished with errors. cause may be
// nil when the failure is fully described by the result.
func (r *Recorder) SyncFailed(ctx context.Context, userID string, result *models.SyncResult, cause error) error {
	return r.Record(ctx, syncEntry(userID, TypeSyncFailed, result, cause))
}

// SyncFinished records completion or failure depending on the result.
func (r *Recorder) SyncFinished(ctx context.Context, userID string, result *models.SyncResult) error {
	if result != nil && result.Success {
		return r.SyncCompleted(ctx, userID, result)
	}
	return r.SyncFailed(ctx, userID, result, nil)
}

func syncEntry(userID string, t Type, result *models.SyncResult, cause error) *Entry {
	e := &Entry{UserID: userID, AuditType: t, Details: map[string]any{}}
	if result != nil {
		e.InvestmentType = models.InvestmentType(result.InvestmentType)
		e.Source = result.Source
		e.Details["success"] = result.Success
		e.Details["records_processed"] = result.RecordsProcessed
		e.Details["records_updated"] = result.RecordsUpdated
		e.Details["duration_ms"] = result.DurationMS
		e.Details["warnings"] = result.Warnings
		if len(result.Errors) > 0 {
			e.Details["errors"] = result.Errors
		}
	}
	if cause != nil {
		e.Details["error"] = cause.Error()
	}
	return e
}

// DataUpdated records a committed change to an investment. before may be nil
// for a first write.
func (r *Recorder) DataUpdated(ctx context.Context, before, after *models.Record) error {
	if after == nil {
		return fmt.Errorf("updated record cannot be nil")
	}
	diff := models.Diff(before, after)
	details := map[string]any{
		"after":   after.Fields,
		"changes": diff,
		"fields":  models.ChangedFields(diff),
		"as_of":   after.AsOf,
	}
	if before != nil {
		details["before"] = before.Fields
	}
	return r.Record(ctx, &Entry{
		UserID:         after.UserID,
		AuditType:      TypeDataUpdated,
		InvestmentType: after.Type,
		InvestmentID:   after.InvestmentID,
		Source:         after.Source,
		Details:        details,
	})
}

// ValidationPerformed records the verdict of the validation engine.
func (r *Recorder) ValidationPerformed(ctx context.Context, record *models.Record, result *models.ValidationResult) error {
	if record == nil || result == nil {
		return fmt.Errorf("record and validation result are required")
	}
	return r.Record(ctx, &Entry{
		UserID:         record.UserID,
		AuditType:      TypeValidation,
		InvestmentType: record.Type,
		InvestmentID:   record.InvestmentID,
		Source:         record.Source,
		Details: map[string]any{
			"is_valid": result.IsValid,
			"errors":   result.Errors,
			"warnings": result.Warnings,
			"flags":    result.Flags,
		},
	})
}

// AnomalyDetected records the anomalies found for a record.
func (r *Recorder) AnomalyDetected(ctx context.Context, record *models.Record, result *models.AnomalyResult) error {
	if record == nil || result == nil {
		return fmt.Errorf("record and anomaly result are required")
	}
	return r.Record(ctx, &Entry{
		UserID:         record.UserID,
		AuditType:      TypeAnomalyDetected,
		InvestmentType: record.Type,
		InvestmentID:   record.InvestmentID,
		Source:         record.Source,
		Details: map[string]any{
			"severity":          result.Severity,
			"quarantine":        result.Quarantine,
			"quarantine_reason": result.QuarantineReason,
			"anomalies":         result.Anomalies,
			"recommendations":   result.Recommendations,
		},
	})
}

// Quarantined records that a record was held back for review.
func (r *Recorder) Quarantined(ctx context.Context, q *models.QuarantineRecord) error {
	if q == nil {
		return fmt.Errorf("quarantine record cannot be nil")
	}
	return r.Record(ctx, &Entry{
		UserID:         q.UserID,
		AuditType:      TypeQuarantine,
		InvestmentType: q.InvestmentType,
		InvestmentID:   q.InvestmentID,
		Source:         q.Source,
		Details: map[string]any{
			"quarantine_id":   q.ID,
			"reason":          q.Reason,
			"severity":        q.Severity,
			"review_required": q.ReviewRequired,
			"auto_release":    q.AutoRelease,
			"data":            q.Data,
		},
	})
}

// ManualOverride records an operator action such as a quarantine release or
// an intervention resolution.
func (r *Recorder) ManualOverride(ctx context.Context, entry Override) error {
	details := map[string]any{
		"operator": entry.Operator,
		"action":   entry.Action,
	}
	for k, v := range entry.Details {
		details[k] = v
	}
	return r.Record(ctx, &Entry{
		UserID:         entry.UserID,
		AuditType:      TypeManualOverride,
		InvestmentType: entry.InvestmentType,
		InvestmentID:   entry.InvestmentID,
		Details:        details,
	})
}

// Override describes a manual operator action.
type Override struct {
	UserID         string
	InvestmentType models.InvestmentType
	InvestmentID   string
	Operator       string
	Action         string
	Details        map[string]any
}

// ConfigChanged records a runtime configuration change.
func (r *Recorder) ConfigChanged(ctx context.Context, userID, key string, oldValue, newValue any) error {
	return r.Record(ctx, &Entry{
		UserID:    userID,
		AuditType: TypeConfigChanged,
		Details: map[string]any{
			"key": key,
			"old": oldValue,
			"new": newValue,
		},
	})
}

// Query returns entries matching the filter, newest first by default.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return r.store.Query(ctx, filter)
}

// Count returns the number of entries matching the filter.
func (r *Recorder) Count(ctx context.Context, filter Filter) (int64, error) {
	return r.store.Count(ctx, filter)
}

// Get returns one entry by ID.
func (r *Recorder) Get(ctx context.Context, id string) (*Entry, error) {
	return r.store.Get(ctx, id)
}

// History returns the audit trail of one investment, newest first.
func (r *Recorder) History(ctx context.Context, investmentID string, limit int) ([]Entry, error) {
	if investmentID == "" {
		return nil, fmt.Errorf("investment ID is required")
	}
	return r.store.Query(ctx, Filter{InvestmentID: investmentID, Limit: limit})
}

// Statistics summarizes every entry matching the filter. Limit and Offset are ignored.
func (r *Recorder) Statistics(ctx context.Context, filter Filter) (*Statistics, error) {
	filter.Limit = 0
	filter.Offset = 0
	filter.Ascending = true

	entries, err := r.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for statistics: %w", err)
	}
	return computeStatistics(entries), nil
}

func computeStatistics(entries []Entry) *Statistics {
	stats := &Statistics{
		TotalEntries:     int64(len(entries)),
		ByInvestmentType: make(map[string]int64),
		BySource:         make(map[string]int64),
		ByAuditType:      make(map[string]int64),
	}

	var totalDuration float64
	var timed int64
	for i := range entries {
		e := &entries[i]
		stats.ByAuditType[string(e.AuditType)]++

		if stats.OldestEntry == nil || e.Timestamp.Before(*stats.OldestEntry) {
			t := e.Timestamp
			stats.OldestEntry = &t
		}
		if stats.NewestEntry == nil || e.Timestamp.After(*stats.NewestEntry) {
			t := e.Timestamp
			stats.NewestEntry = &t
		}

		switch e.AuditType {
		case TypeSyncCompleted:
			stats.SuccessfulSyncs++
		case TypeSyncFailed:
			stats.FailedSyncs++
		default:
			continue
		}

		if e.InvestmentType != "" {
			stats.ByInvestmentType[string(e.InvestmentType)]++
		}
		if e.Source != "" {
			stats.BySource[e.Source]++
		}
		if d, ok := e.Details["duration_ms"].(float64); ok {
			totalDuration += d
			timed++
		}
	}

	stats.TotalSyncs = stats.SuccessfulSyncs + stats.FailedSyncs
	if stats.TotalSyncs > 0 {
		stats.SuccessRate = float64(stats.SuccessfulSyncs) / float64(stats.TotalSyncs) * 100
	}
	if timed > 0 {
		stats.AverageDuration = totalDuration / float64(timed)
	}
	return stats
}

// Export renders every entry matching the filter in the requested format.
func (r *Recorder) Export(ctx context.Context, filter Filter, format Format) ([]byte, error) {
	exporter, err := exporterFor(format)
	if err != nil {
		return nil, err
	}
	entries, err := r.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for export: %w", err)
	}
	return exporter.Export(entries)
}

// Sweep deletes entries older than the retention horizon and returns how many
// were removed.
func (r *Recorder) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	horizon := r.now().Add(-retention)
	deleted, err := r.store.Delete(ctx, horizon)
	if err != nil {
		return 0, fmt.Errorf("audit retention sweep failed: %w", err)
	}
	metrics.AuditSweepDeleted.Add(float64(deleted))
	return deleted, nil
}

// Verify reports whether the entry's details still match its data hash.
func Verify(entry *Entry) bool {
	if entry == nil || entry.DataHash == "" {
		return false
	}
	_, canonical, err := normalizeDetails(entry.Details)
	if err != nil {
		return false
	}
	return hashBytes(canonical) == entry.DataHash
}
