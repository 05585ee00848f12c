// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package integrity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

var (
	// ErrQuarantineNotFound is returned when no quarantined record has the requested ID.
	ErrQuarantineNotFound = errors.New("quarantined record not found")

	// ErrAlreadyReleased is returned when releasing a record a second time.
	ErrAlreadyReleased = errors.New("quarantined record already released")
)

// QuarantineEntry pairs an immutable quarantined record with its release, if any.
type QuarantineEntry struct {
	Record  models.QuarantineRecord   `json:"record"`
	Release *models.QuarantineRelease `json:"release,omitempty"`
}

// Released reports whether the entry has been released.
func (e QuarantineEntry) Released() bool { return e.Release != nil }

// QuarantineFilter selects quarantine entries.
type QuarantineFilter struct {
	UserID          string
	IncludeReleased bool
}

// QuarantineStore holds quarantined records. Records are never modified after
// Save; a release is stored next to the record.
type QuarantineStore interface {
	Save(ctx context.Context, rec *models.QuarantineRecord) error
	Get(ctx context.Context, id string) (*QuarantineEntry, error)
	List(ctx context.Context, filter QuarantineFilter) ([]QuarantineEntry, error)
	MarkReleased(ctx context.Context, release models.QuarantineRelease) error
}

// MemoryQuarantineStore implements QuarantineStore in process memory.
type MemoryQuarantineStore struct {
	mu       sync.RWMutex
	records  map[string]models.QuarantineRecord
	releases map[string]models.QuarantineRelease
}

// NewMemoryQuarantineStore creates an empty in-memory quarantine store.
func NewMemoryQuarantineStore() *MemoryQuarantineStore {
	return &MemoryQuarantineStore{
		records:  make(map[string]models.QuarantineRecord),
		releases: make(map[string]models.QuarantineRelease),
	}
}

// Save implements QuarantineStore.
func (s *MemoryQuarantineStore) Save(_ context.Context, rec *models.QuarantineRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("quarantine record must have an ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("quarantine record %s already exists", rec.ID)
	}
	s.records[rec.ID] = cloneQuarantine(rec)
	return nil
}

// Get implements QuarantineStore.
func (s *MemoryQuarantineStore) Get(_ context.Context, id string) (*QuarantineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuarantineNotFound, id)
	}
	entry := s.entryLocked(rec)
	return &entry, nil
}

// List implements QuarantineStore. Entries are newest first.
func (s *MemoryQuarantineStore) List(_ context.Context, filter QuarantineFilter) ([]QuarantineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []QuarantineEntry{}
	for _, rec := range s.records {
		if !matchesQuarantine(rec, filter, s.isReleasedLocked(rec.ID)) {
			continue
		}
		out = append(out, s.entryLocked(rec))
	}
	sortEntries(out)
	return out, nil
}

// MarkReleased implements QuarantineStore.
func (s *MemoryQuarantineStore) MarkReleased(_ context.Context, release models.QuarantineRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[release.QuarantineID]; !ok {
		return fmt.Errorf("%w: %s", ErrQuarantineNotFound, release.QuarantineID)
	}
	if _, done := s.releases[release.QuarantineID]; done {
		return fmt.Errorf("%w: %s", ErrAlreadyReleased, release.QuarantineID)
	}
	s.releases[release.QuarantineID] = release
	return nil
}

func (s *MemoryQuarantineStore) isReleasedLocked(id string) bool {
	_, ok := s.releases[id]
	return ok
}

func (s *MemoryQuarantineStore) entryLocked(rec models.QuarantineRecord) QuarantineEntry {
	entry := QuarantineEntry{Record: cloneQuarantine(&rec)}
	if rel, ok := s.releases[rec.ID]; ok {
		entry.Release = &rel
	}
	return entry
}

func matchesQuarantine(rec models.QuarantineRecord, filter QuarantineFilter, released bool) bool {
	if filter.UserID != "" && rec.UserID != filter.UserID {
		return false
	}
	if released && !filter.IncludeReleased {
		return false
	}
	return true
}

func sortEntries(entries []QuarantineEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Record, entries[j].Record
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func cloneQuarantine(rec *models.QuarantineRecord) models.QuarantineRecord {
	out := *rec
	out.Data = rec.Data.Clone()
	out.Anomalies = append([]models.Anomaly(nil), rec.Anomalies...)
	return out
}
