// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/metrics"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// Warning flags attached to ValidationResult.Flags.
const (
	FlagSignificantNAVChange     = "significant_nav_change"
	FlagSignificantPriceChange   = "significant_price_change"
	FlagSignificantBalanceChange = "significant_balance_change"
	FlagBalanceDecrease          = "balance_decrease"
	FlagContributionCeiling      = "contribution_ceiling"
	FlagContributionMismatch     = "contribution_mismatch"
)

// Config holds change-magnitude and regulatory limits. Percentages are in percent.
type Config struct {
	MutualFundChangePct   float64
	StockChangePct        float64
	EPFChangePct          float64
	SIPChangePct          float64
	EPFWageCeiling        float64
	EPFContributionRate   float64
	ContributionTolerance float64
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MutualFundChangePct:   10,
		StockChangePct:        20,
		EPFChangePct:          15,
		SIPChangePct:          10,
		EPFWageCeiling:        15000,
		EPFContributionRate:   12,
		ContributionTolerance: 5,
	}
}

// Identity structs carry the per-type identifier format rules.
type mutualFundIdentity struct {
	Identifier string `validate:"required,amfi_code|isin"`
}

type stockIdentity struct {
	Identifier string `validate:"required,ticker"`
}

type epfIdentity struct {
	Identifier string `validate:"required,uan"`
}

type sipIdentity struct {
	Identifier string `validate:"required,amfi_code"`
}

// Engine applies the per-investment-type rule sets. Validate is a pure
// function of its inputs and the clock.
type Engine struct {
	cfg Config
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for the future-date check.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a validation engine. Zero limits fall back to DefaultConfig values.
func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MutualFundChangePct <= 0 {
		cfg.MutualFundChangePct = def.MutualFundChangePct
	}
	if cfg.StockChangePct <= 0 {
		cfg.StockChangePct = def.StockChangePct
	}
	if cfg.EPFChangePct <= 0 {
		cfg.EPFChangePct = def.EPFChangePct
	}
	if cfg.SIPChangePct <= 0 {
		cfg.SIPChangePct = def.SIPChangePct
	}
	if cfg.EPFWageCeiling <= 0 {
		cfg.EPFWageCeiling = def.EPFWageCeiling
	}
	if cfg.EPFContributionRate <= 0 {
		cfg.EPFContributionRate = def.EPFContributionRate
	}
	if cfg.ContributionTolerance < 0 {
		cfg.ContributionTolerance = def.ContributionTolerance
	}

	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks record against the rules of its investment type. current
// is the persisted value the record would replace and may be nil.
func (e *Engine) Validate(record, current *models.Record) *models.ValidationResult {
	res := models.NewValidationResult()
	if record == nil {
		res.AddError("record is missing")
		return res
	}

	switch record.Type {
	case models.InvestmentMutualFund:
		e.validateMutualFund(res, record, current)
	case models.InvestmentStock:
		e.validateStock(res, record, current)
	case models.InvestmentEPF:
		e.validateEPF(res, record, current)
	case models.InvestmentSIP:
		e.validateSIP(res, record, current)
	default:
		res.AddError(fmt.Sprintf("unsupported investment type %q", record.Type))
	}

	metrics.RecordValidation(string(record.Type), res.IsValid)
	return res
}

func (e *Engine) validateMutualFund(res *models.ValidationResult, r, current *models.Record) {
	requirePositive(res, r, models.FieldNAV, "NAV")
	e.checkDate(res, r)
	checkIdentity(res, &mutualFundIdentity{Identifier: r.Identifier})
	if units, ok := r.Field(models.FieldUnits); ok && units < 0 {
		res.AddError(fmt.Sprintf("units must not be negative, got %v", units))
	}

	if nav, ok := r.Field(models.FieldNAV); ok && nav > 0 && current != nil {
		if ref, ok := current.ReferenceNAV(); ok {
			checkChange(res, "NAV", ref, nav, e.cfg.MutualFundChangePct, FlagSignificantNAVChange)
		}
	}
}

func (e *Engine) validateStock(res *models.ValidationResult, r, current *models.Record) {
	requirePositive(res, r, models.FieldPrice, "price")
	e.checkDate(res, r)
	checkIdentity(res, &stockIdentity{Identifier: r.Identifier})
	if volume, ok := r.Field(models.FieldVolume); ok && volume < 0 {
		res.AddError(fmt.Sprintf("volume must not be negative, got %v", volume))
	}
	if qty, ok := r.Field(models.FieldQuantity); ok && qty < 0 {
		res.AddError(fmt.Sprintf("quantity must not be negative, got %v", qty))
	}

	price, ok := r.Field(models.FieldPrice)
	if ok && price > 0 && current != nil {
		if prev, ok := current.Field(models.FieldPrice); ok && prev > 0 {
			checkChange(res, "price", prev, price, e.cfg.StockChangePct, FlagSignificantPriceChange)
		}
	}
}

func (e *Engine) validateEPF(res *models.ValidationResult, r, current *models.Record) {
	requirePositive(res, r, models.FieldBalance, "balance")
	e.checkDate(res, r)
	checkIdentity(res, &epfIdentity{Identifier: r.Identifier})

	employee, hasEmployee := r.Field(models.FieldEmployeeContribution)
	employer, hasEmployer := r.Field(models.FieldEmployerContribution)
	pension, _ := r.Field(models.FieldPensionContribution)

	if hasEmployee {
		ceiling := e.cfg.EPFWageCeiling * e.cfg.EPFContributionRate / 100
		if limit := ceiling * (1 + e.cfg.ContributionTolerance/100); employee > limit {
			res.AddWarning(fmt.Sprintf("employee contribution %.2f exceeds statutory ceiling %.2f", employee, ceiling), FlagContributionCeiling)
		}
	}
	if hasEmployee && hasEmployer && employee > 0 {
		// Employer share is split between EPF and EPS; together they match the employee share.
		ratio := (employer + pension) / employee
		if math.Abs(ratio-1) > e.cfg.ContributionTolerance/100 {
			res.AddWarning(fmt.Sprintf("employer contribution %.2f does not match employee contribution %.2f", employer+pension, employee), FlagContributionMismatch)
		}
	}

	balance, ok := r.Field(models.FieldBalance)
	if !ok || balance <= 0 || current == nil {
		return
	}
	prev, ok := current.Field(models.FieldBalance)
	if !ok || prev <= 0 {
		return
	}
	if balance < prev {
		res.AddWarning(fmt.Sprintf("balance decreased from %.2f to %.2f", prev, balance), FlagBalanceDecrease)
	}
	checkChange(res, "balance", prev, balance, e.cfg.EPFChangePct, FlagSignificantBalanceChange)
}

func (e *Engine) validateSIP(res *models.ValidationResult, r, current *models.Record) {
	requirePositive(res, r, models.FieldAmount, "SIP amount")
	requirePositive(res, r, models.FieldNAV, "NAV")
	e.checkDate(res, r)
	checkIdentity(res, &sipIdentity{Identifier: r.Identifier})

	if nav, ok := r.Field(models.FieldNAV); ok && nav > 0 && current != nil {
		if prev, ok := current.Field(models.FieldNAV); ok && prev > 0 {
			checkChange(res, "NAV", prev, nav, e.cfg.SIPChangePct, FlagSignificantNAVChange)
		}
	}
}

func (e *Engine) checkDate(res *models.ValidationResult, r *models.Record) {
	if r.AsOf.IsZero() {
		res.AddError("as-of date is missing")
		return
	}
	if r.AsOf.After(e.now()) {
		res.AddError(fmt.Sprintf("as-of date %s is in the future", r.AsOf.Format(time.RFC3339)))
	}
}

func requirePositive(res *models.ValidationResult, r *models.Record, field, label string) {
	v, ok := r.Field(field)
	if !ok {
		res.AddError(label + " is missing")
		return
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		res.AddError(fmt.Sprintf("%s must be positive, got %v", label, v))
	}
}

func checkIdentity(res *models.ValidationResult, identity interface{}) {
	if verr := ValidateStruct(identity); verr != nil {
		for _, fe := range verr.Errors() {
			res.AddError(fe.Message)
		}
	}
}

// checkChange warns when the relative change from prev to next exceeds limitPct.
func checkChange(res *models.ValidationResult, label string, prev, next, limitPct float64, flag string) {
	if pct := ChangePercent(prev, next); pct > limitPct {
		res.AddWarning(fmt.Sprintf("%s changed by %.2f%% (limit %.0f%%)", label, pct, limitPct), flag)
	}
}

// ChangePercent returns the absolute relative change from prev to next in
// percent, or 0 when prev is not positive.
func ChangePercent(prev, next float64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Abs(next-prev) / prev * 100
}
