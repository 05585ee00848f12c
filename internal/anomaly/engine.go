// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package anomaly

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// NoActionRequired is the recommendation of a clean result.
const NoActionRequired = "No action required"

// Engine runs registered detectors in registration order and folds their
// findings into one models.AnomalyResult.
type Engine struct {
	historyLimit int

	mu        sync.RWMutex
	detectors []Detector
	enabled   bool

	statsMu sync.Mutex
	stats   EngineMetrics
}

// EngineMetrics tracks detection engine activity.
type EngineMetrics struct {
	RecordsChecked   int64
	AnomaliesFound   int64
	Quarantined      int64
	DetectionErrors  int64
	LastProcessedAt  time.Time
	DetectorFindings map[DetectorType]int64
}

// NewEngine creates an empty engine. Register detectors with RegisterDetector.
func NewEngine(historyLimit int) *Engine {
	return &Engine{
		historyLimit: historyLimit,
		enabled:      true,
		stats:        EngineMetrics{DetectorFindings: make(map[DetectorType]int64)},
	}
}

// NewDefaultEngine creates an engine with the threshold, z-score, volatility
// and structural detectors configured from cfg.
func NewDefaultEngine(cfg Config) *Engine {
	e := NewEngine(cfg.HistoryLimit)
	e.RegisterDetector(NewThresholdDetector(cfg.ExtremeChangePct))
	e.RegisterDetector(NewZScoreDetector(cfg.ZScoreMedium, cfg.ZScoreHigh, cfg.MinZScorePoints))
	e.RegisterDetector(NewVolatilityDetector(cfg.VolatilityLimit, cfg.MinVolatilityPoints))
	e.RegisterDetector(NewStructuralDetector())
	return e
}

// RegisterDetector adds a detector, replacing any detector of the same type in place.
func (e *Engine) RegisterDetector(detector Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, d := range e.detectors {
		if d.Type() == detector.Type() {
			e.detectors[i] = detector
			return
		}
	}
	e.detectors = append(e.detectors, detector)
	logging.Debug().Str("detector", string(detector.Type())).Msg("registered anomaly detector")
}

// GetDetector returns the detector of the given type.
func (e *Engine) GetDetector(t DetectorType) (Detector, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, d := range e.detectors {
		if d.Type() == t {
			return d, true
		}
	}
	return nil, false
}

// SetEnabled enables or disables the whole engine. A disabled engine reports clean results.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

func (e *Engine) enabledDetectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.enabled {
		return nil
	}
	out := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		if d.Enabled() {
			out = append(out, d)
		}
	}
	return out
}

// Detect evaluates record against current and history. It never mutates its
// inputs and returns the same result for the same inputs. A detector error is
// returned alongside the findings of the other detectors.
func (e *Engine) Detect(ctx context.Context, record, current *models.Record, history []models.Record) (*models.AnomalyResult, error) {
	res := models.NewAnomalyResult()
	if record == nil {
		res.Recommend(NoActionRequired)
		return res, errors.New("anomaly: record is nil")
	}

	in := &Input{
		Record:  record,
		Current: current,
		History: normalizeHistory(history, e.historyLimit),
	}

	var errs []error
	for _, d := range e.enabledDetectors() {
		found, err := d.Check(ctx, in)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Type(), err))
			continue
		}
		for _, a := range found {
			res.Add(a)
			metrics.AnomaliesDetected.WithLabelValues(string(d.Type()), string(a.Severity)).Inc()
		}
		e.recordFindings(d.Type(), len(found))
	}

	for _, a := range res.Anomalies {
		res.Recommend(recommendationFor(a.Type))
	}
	if res.Quarantine {
		res.Recommend("Review the quarantined record before releasing it")
	}
	if len(res.Recommendations) == 0 {
		res.Recommend(NoActionRequired)
	}

	e.finish(res, len(errs))
	return res, errors.Join(errs...)
}

func recommendationFor(anomalyType string) string {
	switch anomalyType {
	case TypeExtremeChange:
		return "Verify the value against an alternate source before accepting it"
	case TypeStatisticalOutlier:
		return "Compare the value with recent history from the provider"
	case TypeHighVolatility:
		return "Monitor upcoming syncs for continued volatility"
	case TypeVolatilitySpike:
		return "Confirm the latest price movement with a second source"
	case TypeTradingSuspended:
		return "Confirm the trading status with the exchange"
	case TypeBalanceDecrease:
		return "Check the EPF passbook for withdrawals or corrections"
	case TypeUnitsValueMismatch:
		return "Check for pending unit allocations or redemptions"
	}
	return "Review the record manually"
}

func (e *Engine) recordFindings(t DetectorType, n int) {
	if n == 0 {
		return
	}
	e.statsMu.Lock()
	e.stats.DetectorFindings[t] += int64(n)
	e.statsMu.Unlock()
}

func (e *Engine) finish(res *models.AnomalyResult, errCount int) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.RecordsChecked++
	e.stats.AnomaliesFound += int64(len(res.Anomalies))
	if res.Quarantine {
		e.stats.Quarantined++
	}
	e.stats.DetectionErrors += int64(errCount)
	e.stats.LastProcessedAt = time.Now()
}

// Metrics returns a snapshot of engine activity.
func (e *Engine) Metrics() EngineMetrics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	findings := make(map[DetectorType]int64, len(e.stats.DetectorFindings))
	for k, v := range e.stats.DetectorFindings {
		findings[k] = v
	}
	out := e.stats
	out.DetectorFindings = findings
	return out
}
