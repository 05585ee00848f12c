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

// StructuralDetector flags records whose shape is legal but unusual.
type StructuralDetector struct {
	enabled atomic.Bool
}

// NewStructuralDetector creates a structural detector.
func NewStructuralDetector() *StructuralDetector {
	d := &StructuralDetector{}
	d.enabled.Store(true)
	return d
}

// Type implements Detector.
func (d *StructuralDetector) Type() DetectorType { return DetectorStructural }

// Enabled implements Detector.
func (d *StructuralDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *StructuralDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Check implements Detector.
func (d *StructuralDetector) Check(_ context.Context, in *Input) ([]models.Anomaly, error) {
	r := in.Record
	var out []models.Anomaly

	switch r.Type {
	case models.InvestmentStock:
		if volume, ok := r.Field(models.FieldVolume); ok && volume <= 0 && r.Status == models.StatusSuspended {
			out = append(out, models.Anomaly{
				Type:     TypeTradingSuspended,
				Field:    models.FieldVolume,
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("%s reports no volume and is marked suspended", r.Identifier),
				Value:    volume,
			})
		}

	case models.InvestmentEPF:
		if in.Current == nil {
			break
		}
		prev, okPrev := in.Current.Field(models.FieldBalance)
		next, okNext := r.Field(models.FieldBalance)
		if okPrev && okNext && next < prev {
			out = append(out, models.Anomaly{
				Type:      TypeBalanceDecrease,
				Field:     models.FieldBalance,
				Severity:  models.SeverityMedium,
				Message:   fmt.Sprintf("EPF balance decreased from %.2f to %.2f", prev, next),
				Value:     next,
				Reference: prev,
			})
		}

	case models.InvestmentMutualFund:
		if in.Current == nil {
			break
		}
		prevUnits, ok1 := in.Current.Field(models.FieldUnits)
		nextUnits, ok2 := r.Field(models.FieldUnits)
		prevValue, ok3 := in.Current.Field(models.FieldCurrentValue)
		nextValue, ok4 := r.Field(models.FieldCurrentValue)
		if ok1 && ok2 && ok3 && ok4 && prevUnits != nextUnits && prevValue == nextValue {
			out = append(out, models.Anomaly{
				Type:      TypeUnitsValueMismatch,
				Field:     models.FieldUnits,
				Severity:  models.SeverityLow,
				Message:   fmt.Sprintf("units changed from %.4f to %.4f while value stayed at %.2f", prevUnits, nextUnits, nextValue),
				Value:     nextUnits,
				Reference: prevUnits,
			})
		}
	}
	return out, nil
}
