// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// Source names of the built-in primaries.
const (
	SourceYahooFinance = "yahoo_finance"
	SourceAMFI         = "amfi"
	SourceEPFO         = "epfo"
)

// DefaultPrimaries maps each investment type to the source tried first.
func DefaultPrimaries() map[models.InvestmentType]string {
	return map[models.InvestmentType]string{
		models.InvestmentMutualFund: SourceAMFI,
		models.InvestmentSIP:        SourceAMFI,
		models.InvestmentStock:      SourceYahooFinance,
		models.InvestmentEPF:        SourceEPFO,
	}
}

// Registry maps source names to provider implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primaries map[models.InvestmentType]string
}

// NewRegistry creates a registry with the default primaries.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		primaries: DefaultPrimaries(),
	}
}

// Register adds or replaces the provider under p.Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// SetPrimary sets the first source tried for an investment type.
func (r *Registry) SetPrimary(t models.InvestmentType, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primaries[t] = source
}

// Primary returns the first source tried for t.
func (r *Registry) Primary(t models.InvestmentType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.primaries[t]
	return source, ok
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch runs the full provider pipeline for one source: fetch, validate and
// transform.
func (r *Registry) Fetch(ctx context.Context, source string, identifiers []string, opts FetchOptions) ([]models.Record, error) {
	p, err := r.Get(source)
	if err != nil {
		return nil, err
	}
	raw, err := p.FetchData(ctx, identifiers, opts)
	if err != nil {
		return nil, err
	}
	if !p.ValidateData(raw) {
		return nil, fmt.Errorf("%w: %s returned records that failed validation", ErrInvalidData, source)
	}
	records, err := p.TransformData(raw)
	if err != nil {
		return nil, fmt.Errorf("transform %s data: %w", source, err)
	}
	return records, nil
}

// Probe reports whether the provider registered under source is available.
// It satisfies sources.Prober.
func (r *Registry) Probe(ctx context.Context, source string) error {
	p, err := r.Get(source)
	if err != nil {
		return err
	}
	if !p.IsAvailable(ctx) {
		return fmt.Errorf("provider %s is not available", source)
	}
	return nil
}
