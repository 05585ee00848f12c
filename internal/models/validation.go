// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

// ValidationResult is the outcome of rule checks on one record.
// IsValid is false iff at least one hard error is present.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Flags    []string `json:"flags"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Flags:    []string{},
	}
}

// AddError records a hard error.
func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
	v.IsValid = false
}

// AddWarning records a soft warning, optionally tagged with a flag.
func (v *ValidationResult) AddWarning(msg, flag string) {
	v.Warnings = append(v.Warnings, msg)
	if flag != "" && !v.HasFlag(flag) {
		v.Flags = append(v.Flags, flag)
	}
}

// HasFlag reports whether the flag was raised.
func (v *ValidationResult) HasFlag(flag string) bool {
	for _, f := range v.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
