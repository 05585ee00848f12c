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

// spikeSigma is how many return standard deviations the last step may deviate.
const spikeSigma = 3

// VolatilityDetector inspects the step returns of history. A series whose
// return stddev exceeds the type limit is medium severity; an incoming step
// that deviates more than three sigma from the mean return is high.
type VolatilityDetector struct {
	limits    map[models.InvestmentType]float64
	minPoints int
	enabled   atomic.Bool
}

// NewVolatilityDetector creates a volatility detector.
func NewVolatilityDetector(limits map[models.InvestmentType]float64, minPoints int) *VolatilityDetector {
	d := &VolatilityDetector{limits: limits, minPoints: minPoints}
	d.enabled.Store(true)
	return d
}

// Type implements Detector.
func (d *VolatilityDetector) Type() DetectorType { return DetectorVolatility }

// Enabled implements Detector.
func (d *VolatilityDetector) Enabled() bool { return d.enabled.Load() }

// SetEnabled toggles the detector.
func (d *VolatilityDetector) SetEnabled(enabled bool) { d.enabled.Store(enabled) }

// Check implements Detector.
func (d *VolatilityDetector) Check(_ context.Context, in *Input) ([]models.Anomaly, error) {
	values := series(in.History, in.Record.Type)
	if len(values) < d.minPoints {
		return nil, nil
	}
	rets := returns(values)
	if len(rets) == 0 {
		return nil, nil
	}

	var out []models.Anomaly
	field := models.PrimaryField(in.Record.Type)
	sd := stddev(rets)

	if limit, ok := d.limits[in.Record.Type]; ok && limit > 0 && sd > limit {
		out = append(out, models.Anomaly{
			Type:      TypeHighVolatility,
			Field:     field,
			Severity:  models.SeverityMedium,
			Message:   fmt.Sprintf("%s return volatility %.4f exceeds limit %.4f", field, sd, limit),
			Value:     sd,
			Reference: limit,
			Score:     sd,
		})
	}

	value, ok := in.Record.PrimaryValue()
	last := values[len(values)-1]
	if ok && sd > 0 && last > 0 {
		step := value/last - 1
		deviation := math.Abs(step - mean(rets))
		if deviation > spikeSigma*sd {
			out = append(out, models.Anomaly{
				Type:      TypeVolatilitySpike,
				Field:     field,
				Severity:  models.SeverityHigh,
				Message:   fmt.Sprintf("%s step return %.2f%% deviates %.1f sigma from recent returns", field, step*100, deviation/sd),
				Value:     value,
				Reference: last,
				Score:     deviation / sd,
			})
		}
	}
	return out, nil
}
