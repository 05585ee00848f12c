// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

func TestIsISIN(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"US0378331005", true},
		{"INE002A01018", true},
		{"INF209K01VA3", true},
		{"AU0000XVGZA3", true},
		{"US0378331006", false}, // bad check digit
		{"us0378331005", false},
		{"US037833100", false},
		{"1S0378331005", false},
		{"INE002A0101X", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsISIN(tt.in); got != tt.want {
			t.Errorf("IsISIN(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIdentifierFormats(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"uan valid", IsUAN, "100200300400", true},
		{"uan short", IsUAN, "10020030040", false},
		{"uan letters", IsUAN, "10020030040A", false},
		{"amfi 6 digits", IsAMFICode, "119551", true},
		{"amfi 5 digits", IsAMFICode, "10012", true},
		{"amfi 4 digits", IsAMFICode, "1001", false},
		{"amfi 7 digits", IsAMFICode, "1195510", false},
		{"ticker plain", IsTicker, "RELIANCE", true},
		{"ticker suffix", IsTicker, "TCS.NS", true},
		{"ticker ampersand", IsTicker, "M&M", true},
		{"ticker dash", IsTicker, "BAJAJ-AUTO", true},
		{"ticker lowercase", IsTicker, "reliance", false},
		{"ticker empty", IsTicker, "", false},
		{"ticker too long", IsTicker, strings.Repeat("A", 21), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("expected %v for %q, got %v", tt.want, tt.in, got)
			}
		})
	}
}

type resolveRequest struct {
	Resolution string `validate:"required,max=20"`
	Type       string `validate:"omitempty,investment_type"`
	ISIN       string `validate:"omitempty,isin"`
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(&resolveRequest{Resolution: "fixed", Type: "epf", ISIN: "INE002A01018"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	err := ValidateStruct(&resolveRequest{Type: "crypto", ISIN: "INE002A01019"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(err.Errors()), err)
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", apiErr.Code)
	}
	for _, want := range []string{"Resolution is required", "Type must be one of", "ISIN must be a valid 12-character ISIN"} {
		if !strings.Contains(apiErr.Message, want) {
			t.Errorf("expected message to contain %q, got %q", want, apiErr.Message)
		}
	}
}

func TestValidateStruct_SingleErrorDetails(t *testing.T) {
	err := ValidateStruct(&resolveRequest{Resolution: strings.Repeat("x", 21)})
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Message != "Resolution must be at most 20 characters" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details["tag"] != "max" {
		t.Errorf("expected tag max, got %v", apiErr.Details["tag"])
	}
}

type jsonNamedRequest struct {
	InvestmentType string `json:"investment_type" validate:"required,investment_type"`
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	err := ValidateStruct(&jsonNamedRequest{InvestmentType: "bonds"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := err.Errors()[0].Field; got != "investment_type" {
		t.Errorf("expected json field name, got %q", got)
	}
	if got := err.ToAPIError().Message; got != "investment_type must be one of: mutual_fund, stock, epf, sip" {
		t.Errorf("unexpected message %q", got)
	}
}
