// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package anomaly

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func navRecord(nav float64) *models.Record {
	return &models.Record{InvestmentID: "mf-1", Type: models.InvestmentMutualFund, Identifier: "119551", Fields: map[string]float64{models.FieldNAV: nav}, AsOf: base}
}

func history(t models.InvestmentType, values ...float64) []models.Record {
	field := models.PrimaryField(t)
	out := make([]models.Record, len(values))
	for i, v := range values {
		out[i] = models.Record{Type: t, Fields: map[string]float64{field: v}, AsOf: base.AddDate(0, 0, -len(values)+i)}
	}
	return out
}

func singleDetectorEngine(d Detector) *Engine {
	e := NewEngine(30)
	e.RegisterDetector(d)
	return e
}

func TestDetect_NAVDoublingQuarantines(t *testing.T) {
	e := NewDefaultEngine(DefaultConfig())

	res, err := e.Detect(context.Background(), navRecord(20), navRecord(10), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !res.HasAnomalies || res.Severity != models.SeverityHigh {
		t.Fatalf("expected high severity anomaly, got %+v", res)
	}
	if !res.Quarantine || res.QuarantineReason == "" {
		t.Errorf("expected quarantine with a reason, got %+v", res)
	}
	if res.Anomalies[0].Type != TypeExtremeChange || res.Anomalies[0].Score != 100 {
		t.Errorf("expected 100%% extreme change, got %+v", res.Anomalies[0])
	}
}

func TestDetect_CleanRecordRecommendsNothing(t *testing.T) {
	e := NewDefaultEngine(DefaultConfig())

	res, err := e.Detect(context.Background(), navRecord(10.05), navRecord(10), history(models.InvestmentMutualFund, 10, 10.1, 9.9, 10, 10.05))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.HasAnomalies || res.Quarantine || res.Severity != models.SeverityNone {
		t.Errorf("expected clean result, got %+v", res)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0] != NoActionRequired {
		t.Errorf("expected default recommendation, got %v", res.Recommendations)
	}
}

func TestThreshold_DerivedReferenceNAV(t *testing.T) {
	d := NewThresholdDetector(DefaultConfig().ExtremeChangePct)
	current := &models.Record{Type: models.InvestmentMutualFund, Fields: map[string]float64{models.FieldCurrentValue: 1000, models.FieldUnits: 100}}

	found, _ := d.Check(context.Background(), &Input{Record: navRecord(13), Current: current})
	if len(found) != 1 || found[0].Reference != 10 {
		t.Fatalf("expected breach against derived NAV 10, got %+v", found)
	}
	found, _ = d.Check(context.Background(), &Input{Record: navRecord(12), Current: current})
	if len(found) != 0 {
		t.Errorf("expected 20%% change within the 25%% limit, got %+v", found)
	}
	found, _ = d.Check(context.Background(), &Input{Record: navRecord(12)})
	if len(found) != 0 {
		t.Errorf("expected no finding without a current value, got %+v", found)
	}
}

func TestZScore(t *testing.T) {
	hist := history(models.InvestmentMutualFund, 10, 10.2, 9.8, 10.1, 9.9) // mean 10, sd ~0.1414
	tests := []struct {
		name       string
		nav        float64
		want       models.Severity
		quarantine bool
	}{
		{"within band", 10.1, models.SeverityNone, false},
		{"medium", 10.35, models.SeverityMedium, false},
		{"high", 10.5, models.SeverityHigh, true},
		{"high below mean", 9.5, models.SeverityHigh, true},
	}
	e := singleDetectorEngine(NewZScoreDetector(2, 3, 3))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Detect(context.Background(), navRecord(tt.nav), nil, hist)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if res.Severity != tt.want {
				t.Errorf("expected severity %q, got %q", tt.want, res.Severity)
			}
			if res.Quarantine != tt.quarantine {
				t.Errorf("expected quarantine %v, got %v", tt.quarantine, res.Quarantine)
			}
		})
	}
}

func TestZScore_NeedsEnoughHistory(t *testing.T) {
	d := NewZScoreDetector(2, 3, 3)
	found, _ := d.Check(context.Background(), &Input{Record: navRecord(50), History: history(models.InvestmentMutualFund, 10, 10.1)})
	if len(found) != 0 {
		t.Errorf("expected no finding with two points, got %+v", found)
	}
	found, _ = d.Check(context.Background(), &Input{Record: navRecord(50), History: history(models.InvestmentMutualFund, 10, 10, 10)})
	if len(found) != 0 {
		t.Errorf("expected flat history to be skipped, got %+v", found)
	}
}

func TestVolatility(t *testing.T) {
	d := NewVolatilityDetector(DefaultConfig().VolatilityLimit, 5)
	stock := func(price float64) *models.Record {
		return &models.Record{Type: models.InvestmentStock, Identifier: "TCS", Fields: map[string]float64{models.FieldPrice: price}}
	}

	t.Run("unstable series", func(t *testing.T) {
		found, _ := d.Check(context.Background(), &Input{Record: stock(85), History: history(models.InvestmentStock, 100, 130, 90, 140, 80)})
		if len(found) == 0 || found[0].Type != TypeHighVolatility || found[0].Severity != models.SeverityMedium {
			t.Errorf("expected medium high_volatility, got %+v", found)
		}
	})

	t.Run("spike on calm series", func(t *testing.T) {
		found, _ := d.Check(context.Background(), &Input{Record: stock(130), History: history(models.InvestmentStock, 100, 101, 100, 101, 100, 101)})
		if len(found) != 1 || found[0].Type != TypeVolatilitySpike || found[0].Severity != models.SeverityHigh {
			t.Errorf("expected a single high volatility_spike, got %+v", found)
		}
	})

	t.Run("calm step", func(t *testing.T) {
		found, _ := d.Check(context.Background(), &Input{Record: stock(100), History: history(models.InvestmentStock, 100, 101, 100, 101, 100, 101)})
		if len(found) != 0 {
			t.Errorf("expected no findings, got %+v", found)
		}
	})

	t.Run("too few points", func(t *testing.T) {
		found, _ := d.Check(context.Background(), &Input{Record: stock(500), History: history(models.InvestmentStock, 100, 101, 100, 101)})
		if len(found) != 0 {
			t.Errorf("expected no findings, got %+v", found)
		}
	})
}

func TestStructural(t *testing.T) {
	d := NewStructuralDetector()
	ctx := context.Background()

	suspended := &models.Record{Type: models.InvestmentStock, Identifier: "YESBANK", Status: models.StatusSuspended, Fields: map[string]float64{models.FieldPrice: 20, models.FieldVolume: 0}}
	if found, _ := d.Check(ctx, &Input{Record: suspended}); len(found) != 1 || found[0].Severity != models.SeverityMedium {
		t.Errorf("expected medium suspension finding, got %+v", found)
	}

	active := &models.Record{Type: models.InvestmentStock, Identifier: "YESBANK", Fields: map[string]float64{models.FieldPrice: 20, models.FieldVolume: 0}}
	if found, _ := d.Check(ctx, &Input{Record: active}); len(found) != 0 {
		t.Errorf("expected no finding without suspended status, got %+v", found)
	}

	epfPrev := &models.Record{Type: models.InvestmentEPF, Fields: map[string]float64{models.FieldBalance: 100000}}
	epfNext := &models.Record{Type: models.InvestmentEPF, Fields: map[string]float64{models.FieldBalance: 95000}}
	if found, _ := d.Check(ctx, &Input{Record: epfNext, Current: epfPrev}); len(found) != 1 || found[0].Type != TypeBalanceDecrease {
		t.Errorf("expected balance_decrease, got %+v", found)
	}

	mfPrev := &models.Record{Type: models.InvestmentMutualFund, Fields: map[string]float64{models.FieldUnits: 100, models.FieldCurrentValue: 1000}}
	mfNext := &models.Record{Type: models.InvestmentMutualFund, Fields: map[string]float64{models.FieldUnits: 110, models.FieldCurrentValue: 1000}}
	if found, _ := d.Check(ctx, &Input{Record: mfNext, Current: mfPrev}); len(found) != 1 || found[0].Severity != models.SeverityLow {
		t.Errorf("expected low units_value_mismatch, got %+v", found)
	}
}

func TestDetect_IdempotentAndDoesNotMutateHistory(t *testing.T) {
	e := NewDefaultEngine(DefaultConfig())
	hist := history(models.InvestmentMutualFund, 10, 10.2, 9.8, 10.1, 9.9)
	hist[0], hist[4] = hist[4], hist[0]
	snapshot := append([]models.Record(nil), hist...)

	first, _ := e.Detect(context.Background(), navRecord(14), navRecord(10), hist)
	second, _ := e.Detect(context.Background(), navRecord(14), navRecord(10), hist)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if !reflect.DeepEqual(hist, snapshot) {
		t.Error("expected history slice to be left untouched")
	}
}

type failingDetector struct{}

func (failingDetector) Type() DetectorType { return "failing" }
func (failingDetector) Enabled() bool      { return true }
func (failingDetector) Check(context.Context, *Input) ([]models.Anomaly, error) {
	return nil, errors.New("boom")
}

func TestDetect_DetectorErrorKeepsOtherFindings(t *testing.T) {
	e := NewDefaultEngine(DefaultConfig())
	e.RegisterDetector(failingDetector{})

	res, err := e.Detect(context.Background(), navRecord(20), navRecord(10), nil)
	if err == nil {
		t.Fatal("expected detector error")
	}
	if !res.Quarantine {
		t.Error("expected threshold finding despite the failing detector")
	}
	if m := e.Metrics(); m.DetectionErrors != 1 || m.Quarantined != 1 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestEngine_DisabledDetector(t *testing.T) {
	e := NewDefaultEngine(DefaultConfig())
	d, ok := e.GetDetector(DetectorThreshold)
	if !ok {
		t.Fatal("expected threshold detector to be registered")
	}
	d.(*ThresholdDetector).SetEnabled(false)

	res, _ := e.Detect(context.Background(), navRecord(20), navRecord(10), nil)
	if res.Quarantine {
		t.Errorf("expected no quarantine with the threshold detector disabled, got %+v", res)
	}
}
