// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package recovery

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

const interventionKeyPrefix = "intervention_queue:"

// BadgerInterventionStore keeps one JSON document per user queue.
type BadgerInterventionStore struct {
	db *badger.DB
}

// NewBadgerInterventionStore wraps an open BadgerDB.
func NewBadgerInterventionStore(db *badger.DB) *BadgerInterventionStore {
	return &BadgerInterventionStore{db: db}
}

// Save replaces the stored queue of userID.
func (s *BadgerInterventionStore) Save(userID string, items []models.Intervention) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal interventions: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(interventionKeyPrefix+userID), data); err != nil {
			return fmt.Errorf("set interventions: %w", err)
		}
		return nil
	})
}

// LoadAll reads every stored queue.
func (s *BadgerInterventionStore) LoadAll() (map[string][]models.Intervention, error) {
	out := make(map[string][]models.Intervention)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(interventionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			userID := strings.TrimPrefix(string(item.Key()), interventionKeyPrefix)
			err := item.Value(func(val []byte) error {
				var items []models.Intervention
				if err := json.Unmarshal(val, &items); err != nil {
					return err
				}
				out[userID] = items
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode interventions for %s: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load interventions: %w", err)
	}
	return out, nil
}
