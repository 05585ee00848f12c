// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package integrity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ParagE404/fiscal-flow-sub001/internal/audit"
	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
	"github.com/ParagE404/fiscal-flow-sub001/internal/notify"
	"github.com/ParagE404/fiscal-flow-sub001/internal/store"
)

// DefaultHistoryLimit is how many past values are handed to anomaly detection.
const DefaultHistoryLimit = 30

var errNoStore = errors.New("no investment store configured")

// ActionQuarantineRelease is the manual override action recorded on release.
const ActionQuarantineRelease = "quarantine_release"

// Validator checks a record against its rule set.
type Validator interface {
	Validate(record, current *models.Record) *models.ValidationResult
}

// Detector finds anomalies in a record relative to its current value and history.
type Detector interface {
	Detect(ctx context.Context, record, current *models.Record, history []models.Record) (*models.AnomalyResult, error)
}

// CheckRequest is one incoming record to gate.
type CheckRequest struct {
	UserID string
	Record *models.Record
	// Current is the persisted value the record would replace. When nil it is
	// loaded from the investment store.
	Current *models.Record
	Source  string
}

// CheckResult is the verdict of the integrity gate.
type CheckResult struct {
	CanProceed bool                     `json:"can_proceed"`
	Validation *models.ValidationResult `json:"validation"`
	Anomalies  *models.AnomalyResult    `json:"anomalies,omitempty"`
	Quarantine *models.QuarantineRecord `json:"quarantine,omitempty"`
	Warnings   []string                 `json:"warnings"`
}

// UpdateResult is the outcome of ValidateAndProcessUpdate.
type UpdateResult struct {
	Check     *CheckResult                  `json:"check"`
	Committed bool                          `json:"committed"`
	DryRun    bool                          `json:"dry_run"`
	Changes   map[string]models.FieldChange `json:"changes,omitempty"`
}

// Orchestrator chains validation, anomaly detection, quarantine and audit
// in front of every investment write.
type Orchestrator struct {
	validator  Validator
	detector   Detector
	store      store.InvestmentStore
	quarantine QuarantineStore
	recorder   *audit.Recorder
	notifier   notify.Notifier

	now          func() time.Time
	historyLimit int
	adminUserID  string

	releaseMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where quarantine alerts and override notices are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithClock overrides the clock used to stamp quarantine records.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithHistoryLimit caps how many past values are loaded for detection.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// WithAdminUserID sets the recipient of high severity quarantine alerts.
func WithAdminUserID(id string) Option {
	return func(o *Orchestrator) { o.adminUserID = id }
}

// NewOrchestrator wires the integrity gate. recorder may be nil to disable auditing.
func NewOrchestrator(v Validator, d Detector, st store.InvestmentStore, q QuarantineStore, recorder *audit.Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validator:    v,
		detector:     d,
		store:        st,
		quarantine:   q,
		recorder:     recorder,
		notifier:     notify.Nop{},
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		adminUserID:  "admin",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Quarantine returns the quarantine store.
func (o *Orchestrator) Quarantine() QuarantineStore { return o.quarantine }

// PerformIntegrityCheck validates req.Record, runs anomaly detection against
// its history and quarantines it when detection asks for it. Nothing is
// written to the investment store.
func (o *Orchestrator) PerformIntegrityCheck(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	if req.Record == nil {
		return nil, errors.New("integrity check requires a record")
	}
	record := req.Record.Clone()
	if record.UserID == "" {
		record.UserID = req.UserID
	}
	if req.Source != "" {
		record.Source = req.Source
	}

	res := &CheckResult{Warnings: []string{}}
	log := logging.Ctx(ctx).With().
		Str("investment_id", record.InvestmentID).
		Str("investment_type", string(record.Type)).
		Logger()

	current := req.Current
	if current == nil {
		loaded, err := o.loadCurrent(ctx, record.InvestmentID)
		if err != nil {
			return nil, err
		}
		current = loaded
	}

	res.Validation = o.validator.Validate(&record, current)
	o.audit(ctx, res, "validation", func() error {
		return o.recorder.ValidationPerformed(ctx, &record, res.Validation)
	})
	if !res.Validation.IsValid {
		log.Info().Strs("errors", res.Validation.Errors).Msg("Record failed validation")
		return res, nil
	}
	res.Warnings = append(res.Warnings, res.Validation.Warnings...)

	var history []models.Record
	if o.store != nil {
		h, err := o.store.History(ctx, record.InvestmentID, o.historyLimit)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("history unavailable: %v", err))
			log.Warn().Err(err).Msg("Anomaly detection running without history")
		}
		history = h
	}

	anomalies, err := o.detector.Detect(ctx, &record, current, history)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("anomaly detection incomplete: %v", err))
		log.Warn().Err(err).Msg("Anomaly detector reported errors")
	}
	res.Anomalies = anomalies
	if anomalies != nil && anomalies.HasAnomalies {
		o.audit(ctx, res, "anomaly", func() error {
			return o.recorder.AnomalyDetected(ctx, &record, anomalies)
		})
	}

	if anomalies != nil && anomalies.Quarantine {
		q, err := o.quarantineRecord(ctx, record, anomalies, res)
		if err != nil {
			return res, err
		}
		res.Quarantine = q
		log.Warn().
			Str("quarantine_id", q.ID).
			Str("severity", string(q.Severity)).
			Str("reason", q.Reason).
			Msg("Record quarantined")
		return res, nil
	}

	res.CanProceed = true
	return res, nil
}

// ValidateAndProcessUpdate gates req.Record and commits it through the
// investment store when the gate passes and dryRun is false.
func (o *Orchestrator) ValidateAndProcessUpdate(ctx context.Context, req CheckRequest, dryRun bool) (*UpdateResult, error) {
	if req.Record == nil {
		return nil, errors.New("update requires a record")
	}
	current := req.Current
	if current == nil {
		loaded, err := o.loadCurrent(ctx, req.Record.InvestmentID)
		if err != nil {
			return nil, err
		}
		current = loaded
		req.Current = loaded
	}

	check, err := o.PerformIntegrityCheck(ctx, req)
	out := &UpdateResult{Check: check, DryRun: dryRun}
	if err != nil || !check.CanProceed {
		return out, err
	}

	record := req.Record.Clone()
	if record.UserID == "" {
		record.UserID = req.UserID
	}
	if req.Source != "" {
		record.Source = req.Source
	}
	out.Changes = models.Diff(current, &record)
	if dryRun {
		return out, nil
	}

	if o.store == nil {
		return out, errNoStore
	}
	if err := o.store.Update(ctx, &record); err != nil {
		return out, fmt.Errorf("commit %s: %w", record.InvestmentID, err)
	}
	out.Committed = true
	o.audit(ctx, check, "data update", func() error {
		return o.recorder.DataUpdated(ctx, current, &record)
	})
	return out, nil
}

// Release lets an operator clear a quarantined record. When apply is true the
// held value is committed to the investment store first.
func (o *Orchestrator) Release(ctx context.Context, id, operator, note string, apply bool) (*models.QuarantineRelease, error) {
	if strings.TrimSpace(operator) == "" {
		return nil, errors.New("release requires an operator")
	}

	o.releaseMu.Lock()
	defer o.releaseMu.Unlock()

	entry, err := o.quarantine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Released() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReleased, id)
	}
	rec := entry.Record

	if apply {
		if o.store == nil {
			return nil, errNoStore
		}
		current, err := o.loadCurrent(ctx, rec.InvestmentID)
		if err != nil {
			return nil, err
		}
		data := rec.Data.Clone()
		if err := o.store.Update(ctx, &data); err != nil {
			return nil, fmt.Errorf("apply quarantined record %s: %w", id, err)
		}
		o.audit(ctx, nil, "data update", func() error {
			return o.recorder.DataUpdated(ctx, current, &data)
		})
	}

	release := models.QuarantineRelease{
		QuarantineID: id,
		Operator:     operator,
		Note:         note,
		Applied:      apply,
		ReleasedAt:   o.now().UTC(),
	}
	if err := o.quarantine.MarkReleased(ctx, release); err != nil {
		return nil, err
	}

	o.audit(ctx, nil, "manual override", func() error {
		return o.recorder.ManualOverride(ctx, audit.Override{
			UserID:         rec.UserID,
			InvestmentType: rec.InvestmentType,
			InvestmentID:   rec.InvestmentID,
			Operator:       operator,
			Action:         ActionQuarantineRelease,
			Details: map[string]any{
				"quarantine_id": id,
				"note":          note,
				"applied":       apply,
			},
		})
	})
	notify.Send(ctx, o.notifier, notify.NewPayload(notify.KindManualOverride, rec.UserID, map[string]any{
		"action":        ActionQuarantineRelease,
		"quarantine_id": id,
		"investment_id": rec.InvestmentID,
		"operator":      operator,
		"applied":       apply,
	}))

	logging.Ctx(ctx).Info().
		Str("quarantine_id", id).
		Str("operator", operator).
		Bool("applied", apply).
		Msg("Quarantined record released")
	return &release, nil
}

func (o *Orchestrator) quarantineRecord(ctx context.Context, record models.Record, anomalies *models.AnomalyResult, res *CheckResult) (*models.QuarantineRecord, error) {
	q := &models.QuarantineRecord{
		ID:             uuid.New().String(),
		UserID:         record.UserID,
		InvestmentID:   record.InvestmentID,
		InvestmentType: record.Type,
		Source:         record.Source,
		Data:           record.Clone(),
		Reason:         anomalies.QuarantineReason,
		Severity:       anomalies.Severity,
		Anomalies:      append([]models.Anomaly(nil), anomalies.Anomalies...),
		ReviewRequired: true,
		CreatedAt:      o.now().UTC(),
	}
	if err := o.quarantine.Save(ctx, q); err != nil {
		return nil, fmt.Errorf("quarantine %s: %w", record.InvestmentID, err)
	}
	metrics.QuarantinedRecords.WithLabelValues(string(q.InvestmentType), string(q.Severity)).Inc()

	o.audit(ctx, res, "quarantine", func() error {
		return o.recorder.Quarantined(ctx, q)
	})

	if q.Severity == models.SeverityHigh {
		notify.Send(ctx, o.notifier, notify.NewPayload(notify.KindQuarantineAlert, o.adminUserID, map[string]any{
			"quarantine_id":   q.ID,
			"user_id":         q.UserID,
			"investment_id":   q.InvestmentID,
			"investment_type": string(q.InvestmentType),
			"severity":        string(q.Severity),
			"reason":          q.Reason,
		}))
	}
	return q, nil
}

func (o *Orchestrator) loadCurrent(ctx context.Context, investmentID string) (*models.Record, error) {
	if o.store == nil {
		return nil, nil
	}
	current, err := o.store.Find(ctx, investmentID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load current %s: %w", investmentID, err)
	}
	return current, nil
}

// audit runs write when a recorder is configured. An audit failure never
// blocks the data path; it is logged and surfaced as a warning.
func (o *Orchestrator) audit(ctx context.Context, res *CheckResult, what string, write func() error) {
	if o.recorder == nil {
		return
	}
	if err := write(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("audit", what).Msg("Audit entry not recorded")
		if res != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s audit failed: %v", what, err))
		}
	}
}
