// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

//go:build integration

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ParagE404/fiscal-flow-sub001/internal/config"
)

func TestNew_InMemory(t *testing.T) {
	db, err := New(&config.DatabaseConfig{Threads: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer CloseWithLog(db, "database")

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	var n int
	if err := db.Conn().QueryRowContext(ctx, "SELECT 41 + 1").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
	if err := db.Checkpoint(ctx); err != nil {
		t.Errorf("expected in-memory checkpoint to be a no-op, got %v", err)
	}
}

func TestNew_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "ff.duckdb")
	db, err := New(&config.DatabaseConfig{Path: path, Threads: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := db.Conn().ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
