// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package anomaly

import (
	"context"
	"sort"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// DetectorType identifies a detector.
type DetectorType string

const (
	// DetectorThreshold flags changes beyond a per-type extreme limit.
	DetectorThreshold DetectorType = "threshold"

	// DetectorZScore flags values far from the historical mean.
	DetectorZScore DetectorType = "zscore"

	// DetectorVolatility flags unstable return series and outlier steps.
	DetectorVolatility DetectorType = "volatility"

	// DetectorStructural flags shapes that are legal but suspicious.
	DetectorStructural DetectorType = "structural"
)

// Anomaly types reported in models.Anomaly.Type.
const (
	TypeExtremeChange      = "extreme_change"
	TypeStatisticalOutlier = "statistical_outlier"
	TypeHighVolatility     = "high_volatility"
	TypeVolatilitySpike    = "volatility_spike"
	TypeTradingSuspended   = "trading_suspended"
	TypeBalanceDecrease    = "balance_decrease"
	TypeUnitsValueMismatch = "units_value_mismatch"
)

// Input is what every detector sees. History is ordered oldest first and
// never includes Record itself.
type Input struct {
	Record  *models.Record
	Current *models.Record
	History []models.Record
}

// Detector is one anomaly rule.
type Detector interface {
	Type() DetectorType
	Enabled() bool
	Check(ctx context.Context, in *Input) ([]models.Anomaly, error)
}

// Config holds detection thresholds.
type Config struct {
	// ExtremeChangePct is the change, in percent, that counts as extreme.
	ExtremeChangePct map[models.InvestmentType]float64

	// VolatilityLimit is the maximum standard deviation of step returns.
	VolatilityLimit map[models.InvestmentType]float64

	ZScoreMedium        float64
	ZScoreHigh          float64
	MinZScorePoints     int
	MinVolatilityPoints int

	// HistoryLimit caps how many past records are considered.
	HistoryLimit int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ExtremeChangePct: map[models.InvestmentType]float64{
			models.InvestmentMutualFund: 25,
			models.InvestmentStock:      50,
			models.InvestmentEPF:        30,
			models.InvestmentSIP:        25,
		},
		VolatilityLimit: map[models.InvestmentType]float64{
			models.InvestmentMutualFund: 0.05,
			models.InvestmentStock:      0.15,
			models.InvestmentEPF:        0.10,
			models.InvestmentSIP:        0.05,
		},
		ZScoreMedium:        2,
		ZScoreHigh:          3,
		MinZScorePoints:     3,
		MinVolatilityPoints: 5,
		HistoryLimit:        30,
	}
}

// series returns the primary values of the in-range history, oldest first.
func series(history []models.Record, t models.InvestmentType) []float64 {
	field := models.PrimaryField(t)
	out := make([]float64, 0, len(history))
	for i := range history {
		if v, ok := history[i].Field(field); ok && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// normalizeHistory orders history oldest first and keeps the newest limit entries.
func normalizeHistory(history []models.Record, limit int) []models.Record {
	out := append([]models.Record(nil), history...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AsOf.Before(out[j].AsOf) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
