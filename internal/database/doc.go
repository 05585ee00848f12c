// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package database opens FiscalFlow's embedded stores.

  - New opens DuckDB (duckdb-go/v2). One *DB is shared by the investment
    store and, when AUDIT_STORE=duckdb, the audit trail. Each of those
    packages owns its own tables; this package only manages the connection:
    DSN tuning, pool sizing, CHECKPOINT and Close.
  - OpenBadger opens a BadgerDB key-value store for the intervention queue
    and the quarantine. An empty path gives an in-memory store.

Usage:

	db, err := database.New(&cfg.Database)
	if err != nil {
	    return err
	}
	defer database.CloseWithLog(db, "database")

	investments := store.NewDuckDBStore(db.Conn())
*/
package database
