// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// MemoryStore implements InvestmentStore in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	current    map[string]models.Record
	history    map[string][]models.Record // oldest first
	maxHistory int
}

// NewMemoryStore creates an in-memory store keeping at most maxHistory past
// values per investment (unbounded when non-positive).
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		current:    make(map[string]models.Record),
		history:    make(map[string][]models.Record),
		maxHistory: maxHistory,
	}
}

// Find implements InvestmentStore.
func (s *MemoryStore) Find(_ context.Context, investmentID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.current[investmentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, investmentID)
	}
	out := rec.Clone()
	return &out, nil
}

// Update implements InvestmentStore.
func (s *MemoryStore) Update(_ context.Context, record *models.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current[record.InvestmentID] = record.Clone()

	h := append(s.history[record.InvestmentID], record.Clone())
	if s.maxHistory > 0 && len(h) > s.maxHistory {
		h = append(h[:0:0], h[len(h)-s.maxHistory:]...)
	}
	s.history[record.InvestmentID] = h
	return nil
}

// Seed writes a current record without adding it to the history.
func (s *MemoryStore) Seed(record models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[record.InvestmentID] = record.Clone()
}

// ListByUser implements InvestmentStore. Records are ordered by investment ID.
func (s *MemoryStore) ListByUser(_ context.Context, userID string, t models.InvestmentType) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Record{}
	for _, rec := range s.current {
		if rec.UserID != userID {
			continue
		}
		if t != "" && rec.Type != t {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvestmentID < out[j].InvestmentID })
	return out, nil
}

// History implements InvestmentStore.
func (s *MemoryStore) History(_ context.Context, investmentID string, limit int) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[investmentID]
	out := make([]models.Record, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out = append(out, h[i].Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of investments with a current record.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}
