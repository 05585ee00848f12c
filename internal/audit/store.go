// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	entries []Entry
	mu      sync.RWMutex
	maxLen  int
}

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &MemoryStore{
		entries: make([]Entry, 0, min(maxLen, 1024)),
		maxLen:  maxLen,
	}
}

// Save appends an audit entry.
func (s *MemoryStore) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce max length by removing the oldest 10%
	if len(s.entries) >= s.maxLen {
		removeCount := max(s.maxLen/10, 1)
		s.entries = append(s.entries[:0:0], s.entries[removeCount:]...)
	}

	s.entries = append(s.entries, cloneEntry(entry))
	return nil
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.entries {
		if s.entries[i].ID == id {
			entry := cloneEntry(&s.entries[i])
			return &entry, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Query retrieves entries matching the filter.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Entry{}
	skipped := 0

	n := len(s.entries)
	for step := 0; step < n; step++ {
		i := n - 1 - step // recent-first
		if filter.Ascending {
			i = step
		}
		entry := &s.entries[i]

		if !matchesFilter(entry, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}

		results = append(results, cloneEntry(entry))

		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// matchesFilter returns true if the entry matches all filter criteria.
func matchesFilter(entry *Entry, filter *Filter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if entry.AuditType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.UserID != "" && entry.UserID != filter.UserID {
		return false
	}
	if filter.InvestmentType != "" && entry.InvestmentType != filter.InvestmentType {
		return false
	}
	if filter.InvestmentID != "" && entry.InvestmentID != filter.InvestmentID {
		return false
	}
	if filter.Source != "" && entry.Source != filter.Source {
		return false
	}

	// Time range filter
	if filter.Start != nil && entry.Timestamp.Before(*filter.Start) {
		return false
	}
	if filter.End != nil && entry.Timestamp.After(*filter.End) {
		return false
	}

	return true
}

// Count returns the number of entries matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.entries {
		if matchesFilter(&s.entries[i], &filter) {
			count++
		}
	}

	return count, nil
}

// Delete removes entries older than the given time.
func (s *MemoryStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Entry, 0, len(s.entries))
	var deleted int64

	for idx := range s.entries {
		if s.entries[idx].Timestamp.Before(olderThan) {
			deleted++
		} else {
			kept = append(kept, s.entries[idx])
		}
	}

	s.entries = kept
	return deleted, nil
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cloneEntry copies an entry so callers cannot mutate stored details.
func cloneEntry(e *Entry) Entry {
	out := *e
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return out
}
