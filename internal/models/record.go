// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import (
	"fmt"
	"sort"
	"time"
)

// InvestmentType identifies the kind of holding a record belongs to.
type InvestmentType string

const (
	InvestmentMutualFund InvestmentType = "mutual_fund"
	InvestmentStock      InvestmentType = "stock"
	InvestmentEPF        InvestmentType = "epf"
	InvestmentSIP        InvestmentType = "sip"
)

// InvestmentTypes lists every supported investment type.
var InvestmentTypes = []InvestmentType{
	InvestmentMutualFund,
	InvestmentStock,
	InvestmentEPF,
	InvestmentSIP,
}

// Valid reports whether t is a supported investment type.
func (t InvestmentType) Valid() bool {
	switch t {
	case InvestmentMutualFund, InvestmentStock, InvestmentEPF, InvestmentSIP:
		return true
	}
	return false
}

// ParseInvestmentType converts a string into an InvestmentType.
func ParseInvestmentType(s string) (InvestmentType, error) {
	t := InvestmentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown investment type %q", s)
	}
	return t, nil
}

// Record field names.
const (
	FieldNAV                  = "nav"
	FieldCurrentValue         = "current_value"
	FieldUnits                = "units"
	FieldPrice                = "price"
	FieldVolume               = "volume"
	FieldQuantity             = "quantity"
	FieldBalance              = "balance"
	FieldEmployeeContribution = "employee_contribution"
	FieldEmployerContribution = "employer_contribution"
	FieldPensionContribution  = "pension_contribution"
	FieldAmount               = "amount"
)

// StatusSuspended marks a security whose trading has been halted.
const StatusSuspended = "suspended"

// PrimaryField returns the field that carries the headline value for t:
// NAV for funds and SIPs, price for stocks and balance for EPF accounts.
func PrimaryField(t InvestmentType) string {
	switch t {
	case InvestmentStock:
		return FieldPrice
	case InvestmentEPF:
		return FieldBalance
	default:
		return FieldNAV
	}
}

// Record is one standardized investment value, either as fetched from a
// provider or as currently persisted.
type Record struct {
	InvestmentID string             `json:"investment_id"`
	UserID       string             `json:"user_id"`
	Type         InvestmentType     `json:"investment_type"`
	Identifier   string             `json:"identifier"` // ISIN, AMFI scheme code, ticker or UAN
	Fields       map[string]float64 `json:"fields"`
	Status       string             `json:"status,omitempty"`
	AsOf         time.Time          `json:"as_of"`
	Source       string             `json:"source,omitempty"`
}

// Field returns a named numeric field and whether it is present.
func (r *Record) Field(name string) (float64, bool) {
	if r == nil || r.Fields == nil {
		return 0, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// PrimaryValue returns the headline value for the record's type.
func (r *Record) PrimaryValue() (float64, bool) {
	if r == nil {
		return 0, false
	}
	return r.Field(PrimaryField(r.Type))
}

// ReferenceNAV returns the per-unit value of a fund holding. An explicit NAV
// wins; otherwise it is derived as current value divided by units.
func (r *Record) ReferenceNAV() (float64, bool) {
	if nav, ok := r.Field(FieldNAV); ok && nav > 0 {
		return nav, true
	}
	value, okValue := r.Field(FieldCurrentValue)
	units, okUnits := r.Field(FieldUnits)
	if okValue && okUnits && units > 0 {
		return value / units, true
	}
	return 0, false
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]float64, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// FieldChange describes how one field moved between two versions of a record.
// Old is nil for added fields and New is nil for removed ones.
type FieldChange struct {
	Old *float64 `json:"old"`
	New *float64 `json:"new"`
}

// Diff returns the field-level changes from before to after. A nil before
// yields every field of after as added.
func Diff(before, after *Record) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	var prev map[string]float64
	if before != nil {
		prev = before.Fields
	}
	var next map[string]float64
	if after != nil {
		next = after.Fields
	}

	for name, nv := range next {
		if ov, ok := prev[name]; ok {
			if ov != nv {
				changes[name] = FieldChange{Old: &ov, New: &nv}
			}
			continue
		}
		changes[name] = FieldChange{New: &nv}
	}
	for name, ov := range prev {
		if _, ok := next[name]; !ok {
			changes[name] = FieldChange{Old: &ov}
		}
	}
	return changes
}

// ChangedFields returns the sorted names of the fields in a diff.
func ChangedFields(diff map[string]FieldChange) []string {
	names := make([]string, 0, len(diff))
	for name := range diff {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
