// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package anomaly

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// ThresholdDetector flags a change from the persisted value that exceeds the
// extreme limit of the investment type. A breach is high severity and
// quarantines the record.
type ThresholdDetector struct {
	limits  map[models.InvestmentType]float64
	enabled atomic.Bool
}

// NewThresholdDetector creates a threshold detector with per-type limits in percent.
func NewThresholdDetector(limits map[models.InvestmentType]float64) *ThresholdDetector {
	d := &ThresholdDetector{limits: limits}
	d.enabled.Store(true)
	return d
}

// Type implements Detector.
func (d *ThresholdDetector) Type() DetectorType { return DetectorThreshold }

// Enabled implements Detector.
func (d *ThresholdDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *ThresholdDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Check implements Detector.
func (d *ThresholdDetector) Check(_ context.Context, in *Input) ([]models.Anomaly, error) {
	if in.Current == nil {
		return nil, nil
	}
	limit, ok := d.limits[in.Record.Type]
	if !ok || limit <= 0 {
		return nil, nil
	}

	prev, next, ok := primaryPair(in.Record, in.Current)
	if !ok {
		return nil, nil
	}
	pct := changePct(prev, next)
	if pct <= limit {
		return nil, nil
	}

	field := models.PrimaryField(in.Record.Type)
	return []models.Anomaly{{
		Type:       TypeExtremeChange,
		Field:      field,
		Severity:   models.SeverityHigh,
		Message:    fmt.Sprintf("%s changed by %.2f%% from %.4g to %.4g, beyond the %.0f%% limit", field, pct, prev, next, limit),
		Value:      next,
		Reference:  prev,
		Score:      pct,
		Quarantine: true,
	}}, nil
}

// primaryPair returns the previous and incoming primary values. Fund NAVs
// fall back to current_value/units when no explicit NAV is present.
func primaryPair(record, current *models.Record) (prev, next float64, ok bool) {
	switch record.Type {
	case models.InvestmentMutualFund, models.InvestmentSIP:
		if prev, ok = current.ReferenceNAV(); !ok {
			return 0, 0, false
		}
		next, ok = record.ReferenceNAV()
		return prev, next, ok
	}
	prev, okPrev := current.PrimaryValue()
	next, okNext := record.PrimaryValue()
	return prev, next, okPrev && okNext && prev > 0
}
