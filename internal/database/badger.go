// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package database

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
)

// OpenBadger opens a BadgerDB key-value store at path, creating the directory
// if needed. An empty path opens an in-memory store.
func OpenBadger(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create BadgerDB directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
		opts.SyncWrites = true
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("BadgerDB opened")
	return db, nil
}
