// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package validation checks incoming investment records before they may
// replace persisted values.
//
// # Overview
//
// Two layers are provided:
//   - Format checks through a singleton go-playground/validator instance with
//     custom tags: isin (ISO 6166 with Luhn check digit), uan (12 digits),
//     amfi_code (5-6 digits), ticker (A-Z0-9.&-, 1-20 chars) and investment_type.
//   - Engine, which applies the per-investment-type rule sets (positivity,
//     future dates, identifier format, change magnitude, EPF contribution rules).
//
// Errors make a record invalid. Warnings never do; each warning may carry a
// flag (significant_nav_change, balance_decrease, ...) that downstream
// anomaly detection and auditing can key on.
//
// # Usage
//
//	engine := validation.NewEngine(validation.DefaultConfig())
//	res := engine.Validate(&incoming, current)
//	if !res.IsValid {
//	    // reject, record res.Errors
//	}
//
// Admin API request bodies reuse the same validator:
//
//	type ResolveRequest struct {
//	    Resolution string `validate:"required,max=500"`
//	}
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    ...
//	}
package validation
