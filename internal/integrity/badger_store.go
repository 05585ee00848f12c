// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package integrity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

const (
	quarantineKeyPrefix = "quarantine:"
	releaseKeyPrefix    = "quarantine_release:"
)

// BadgerQuarantineStore persists quarantined records in BadgerDB. The record
// and its release live under separate keys so the record bytes are written once.
type BadgerQuarantineStore struct {
	db *badger.DB
}

// NewBadgerQuarantineStore wraps an open BadgerDB.
func NewBadgerQuarantineStore(db *badger.DB) *BadgerQuarantineStore {
	return &BadgerQuarantineStore{db: db}
}

// Save implements QuarantineStore.
func (s *BadgerQuarantineStore) Save(_ context.Context, rec *models.QuarantineRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("quarantine record must have an ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal quarantine record: %w", err)
	}
	key := []byte(quarantineKeyPrefix + rec.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("quarantine record %s already exists", rec.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check quarantine record: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set quarantine record: %w", err)
		}
		return nil
	})
}

// Get implements QuarantineStore.
func (s *BadgerQuarantineStore) Get(_ context.Context, id string) (*QuarantineEntry, error) {
	var entry *QuarantineEntry
	err := s.db.View(func(txn *badger.Txn) error {
		var rec models.QuarantineRecord
		found, err := getJSON(txn, quarantineKeyPrefix+id, &rec)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrQuarantineNotFound, id)
		}
		entry = &QuarantineEntry{Record: rec}
		var rel models.QuarantineRelease
		found, err = getJSON(txn, releaseKeyPrefix+id, &rel)
		if err != nil {
			return err
		}
		if found {
			entry.Release = &rel
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List implements QuarantineStore. Entries are newest first.
func (s *BadgerQuarantineStore) List(_ context.Context, filter QuarantineFilter) ([]QuarantineEntry, error) {
	out := []QuarantineEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		releases, err := loadReleases(txn)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(quarantineKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec models.QuarantineRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode quarantine record %s: %w", item.Key(), err)
			}
			rel, released := releases[rec.ID]
			if !matchesQuarantine(rec, filter, released) {
				continue
			}
			entry := QuarantineEntry{Record: rec}
			if released {
				entry.Release = &rel
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list quarantine records: %w", err)
	}
	sortEntries(out)
	return out, nil
}

// MarkReleased implements QuarantineStore.
func (s *BadgerQuarantineStore) MarkReleased(_ context.Context, release models.QuarantineRelease) error {
	data, err := json.Marshal(release)
	if err != nil {
		return fmt.Errorf("marshal quarantine release: %w", err)
	}
	id := release.QuarantineID
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(quarantineKeyPrefix + id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrQuarantineNotFound, id)
			}
			return fmt.Errorf("check quarantine record: %w", err)
		}
		relKey := []byte(releaseKeyPrefix + id)
		if _, err := txn.Get(relKey); err == nil {
			return fmt.Errorf("%w: %s", ErrAlreadyReleased, id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check quarantine release: %w", err)
		}
		if err := txn.Set(relKey, data); err != nil {
			return fmt.Errorf("set quarantine release: %w", err)
		}
		return nil
	})
}

func loadReleases(txn *badger.Txn) (map[string]models.QuarantineRelease, error) {
	out := make(map[string]models.QuarantineRelease)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(releaseKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		id := strings.TrimPrefix(string(item.Key()), releaseKeyPrefix)
		var rel models.QuarantineRelease
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rel)
		}); err != nil {
			return nil, fmt.Errorf("decode quarantine release %s: %w", id, err)
		}
		out[id] = rel
	}
	return out, nil
}

func getJSON(txn *badger.Txn, key string, v any) (bool, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	}); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
