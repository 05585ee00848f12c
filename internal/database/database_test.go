// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package database

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/ParagE404/fiscal-flow-sub001/internal/config"
)

func TestIsMemory(t *testing.T) {
	tests := map[string]bool{
		"":                        true,
		":memory:":                true,
		"/data/fiscalflow.duckdb": false,
	}
	for path, want := range tests {
		if got := IsMemory(path); got != want {
			t.Errorf("IsMemory(%q): expected %v, got %v", path, want, got)
		}
	}
}

func TestConnectionString(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		dsn := connectionString(&config.DatabaseConfig{Path: "/data/ff.duckdb", MaxMemory: "2GB", Threads: 4})
		path, query, ok := strings.Cut(dsn, "?")
		if !ok || path != "/data/ff.duckdb" {
			t.Fatalf("unexpected DSN %q", dsn)
		}
		params, err := url.ParseQuery(query)
		if err != nil {
			t.Fatalf("parse DSN params: %v", err)
		}
		if params.Get("threads") != "4" || params.Get("max_memory") != "2GB" || params.Get("access_mode") != "read_write" {
			t.Errorf("unexpected params %v", params)
		}
	})

	t.Run("memory", func(t *testing.T) {
		dsn := connectionString(&config.DatabaseConfig{Path: ":memory:"})
		if !strings.HasPrefix(dsn, "?") {
			t.Errorf("expected an in-memory DSN, got %q", dsn)
		}
		if strings.Contains(dsn, "max_memory") {
			t.Errorf("expected no max_memory when unset, got %q", dsn)
		}
	})
}

func TestOpenBadger_InMemory(t *testing.T) {
	db, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer CloseWithLog(db, "badger")

	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if string(v) != "v" {
				return errors.New("unexpected value " + string(v))
			}
			return nil
		})
	})
	if err != nil {
		t.Errorf("View: %v", err)
	}
}

func TestOpenBadger_OnDisk(t *testing.T) {
	dir := t.TempDir() + "/nested/quarantine"
	db, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

type failingCloser struct{ closed bool }

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("close failed")
}

func TestCloseWithLog(t *testing.T) {
	CloseWithLog(nil, "nothing")

	c := &failingCloser{}
	CloseWithLog(c, "test")
	if !c.closed {
		t.Error("expected Close to be called")
	}
}
