// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// IsISIN reports whether s is a well-formed ISIN: two-letter country prefix,
// nine alphanumerics and a Luhn check digit computed over the letter-expanded string.
func IsISIN(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	for i := 2; i < 11; i++ {
		if !isUpperAlnum(s[i]) {
			return false
		}
	}
	if s[11] < '0' || s[11] > '9' {
		return false
	}

	// Letters expand to two digits (A=10 ... Z=35).
	digits := make([]byte, 0, 24)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			v := int(c-'A') + 10
			digits = append(digits, byte('0'+v/10), byte('0'+v%10))
			continue
		}
		digits = append(digits, c)
	}
	return luhnValid(digits)
}

func luhnValid(digits []byte) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// IsUAN reports whether s is a 12-digit EPF Universal Account Number.
func IsUAN(s string) bool {
	return len(s) == 12 && allDigits(s)
}

// IsAMFICode reports whether s is a 5 or 6 digit AMFI scheme code.
func IsAMFICode(s string) bool {
	return (len(s) == 5 || len(s) == 6) && allDigits(s)
}

// IsTicker reports whether s looks like an NSE/BSE/Yahoo ticker: 1-20 of
// A-Z, 0-9, '.', '&' and '-'. Exchange suffixes such as ".NS" are allowed.
func IsTicker(s string) bool {
	if len(s) == 0 || len(s) > 20 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isUpperAlnum(c) && c != '.' && c != '&' && c != '-' {
			return false
		}
	}
	return true
}

func validateInvestmentType(fl validator.FieldLevel) bool {
	return models.InvestmentType(fl.Field().String()).Valid()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isUpperAlnum(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
