// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package anomaly

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// ZScoreDetector compares the incoming primary value with the mean and
// standard deviation of history.
type ZScoreDetector struct {
	medium    float64
	high      float64
	minPoints int
	enabled   atomic.Bool
}

// NewZScoreDetector creates a z-score detector. |z| above medium is medium
// severity; above high is high severity and quarantines.
func NewZScoreDetector(medium, high float64, minPoints int) *ZScoreDetector {
	d := &ZScoreDetector{medium: medium, high: high, minPoints: minPoints}
	d.enabled.Store(true)
	return d
}

// Type implements Detector.
func (d *ZScoreDetector) Type() DetectorType { return DetectorZScore }

// Enabled implements Detector.
func (d *ZScoreDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *ZScoreDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Check implements Detector.
func (d *ZScoreDetector) Check(_ context.Context, in *Input) ([]models.Anomaly, error) {
	values := series(in.History, in.Record.Type)
	if len(values) < d.minPoints {
		return nil, nil
	}
	value, ok := in.Record.PrimaryValue()
	if !ok {
		return nil, nil
	}

	m, sd := mean(values), stddev(values)
	if sd == 0 {
		// Flat history: no spread to score against. Large jumps are the threshold detector's job.
		return nil, nil
	}
	z := (value - m) / sd
	abs := math.Abs(z)

	var severity models.Severity
	switch {
	case abs > d.high:
		severity = models.SeverityHigh
	case abs > d.medium:
		severity = models.SeverityMedium
	default:
		return nil, nil
	}

	field := models.PrimaryField(in.Record.Type)
	return []models.Anomaly{{
		Type:       TypeStatisticalOutlier,
		Field:      field,
		Severity:   severity,
		Message:    fmt.Sprintf("%s %.4g is %.1f standard deviations from the %d-point mean %.4g", field, value, abs, len(values), m),
		Value:      value,
		Reference:  m,
		Score:      z,
		Quarantine: severity == models.SeverityHigh,
	}}, nil
}
