// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name.
	ErrUnknownProvider = errors.New("provider not configured")

	// ErrInvalidData is returned by TransformData when a raw record cannot be used.
	ErrInvalidData = errors.New("invalid provider data")
)

// RawRecord is one value as delivered by a provider, keyed by the
// instrument identifier (ISIN, AMFI code, ticker or UAN).
type RawRecord struct {
	Identifier string             `json:"identifier"`
	Fields     map[string]float64 `json:"fields"`
	Status     string             `json:"status,omitempty"`
	AsOf       time.Time          `json:"as_of"`
}

// FetchOptions narrows a fetch.
type FetchOptions struct {
	InvestmentType models.InvestmentType
	UserID         string
}

// RateLimits is the request budget a provider publishes.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// Provider is one upstream source of investment values.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	FetchData(ctx context.Context, identifiers []string, opts FetchOptions) ([]RawRecord, error)
	ValidateData(records []RawRecord) bool
	TransformData(records []RawRecord) ([]models.Record, error)
	RateLimits() RateLimits
}

// CheckRawRecord reports why r cannot be transformed, or nil.
func CheckRawRecord(r RawRecord) error {
	if strings.TrimSpace(r.Identifier) == "" {
		return fmt.Errorf("%w: record without identifier", ErrInvalidData)
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: %s has no fields", ErrInvalidData, r.Identifier)
	}
	for name, v := range r.Fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s field %s is not a finite number", ErrInvalidData, r.Identifier, name)
		}
	}
	return nil
}

// ValidateRaw reports whether every record passes CheckRawRecord.
func ValidateRaw(records []RawRecord) bool {
	for _, r := range records {
		if CheckRawRecord(r) != nil {
			return false
		}
	}
	return true
}

// TransformRaw converts raw records into models.Record values stamped with
// source. Investment and user IDs are left to the caller, which knows which
// holding each identifier belongs to.
func TransformRaw(source string, records []RawRecord) ([]models.Record, error) {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if err := CheckRawRecord(r); err != nil {
			return nil, err
		}
		fields := make(map[string]float64, len(r.Fields))
		for k, v := range r.Fields {
			fields[strings.ToLower(k)] = v
		}
		out = append(out, models.Record{
			Identifier: strings.TrimSpace(r.Identifier),
			Fields:     fields,
			Status:     r.Status,
			AsOf:       r.AsOf.UTC(),
			Source:     source,
		})
	}
	return out, nil
}
