// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package audit records the append-only trail of everything the sync core does
// to investment data.
//
// # Overview
//
// Every sync invocation, validation verdict, anomaly finding, quarantine,
// committed update and operator action becomes one Entry. Entries are written
// synchronously so the order within an invocation is preserved, and each
// carries a SHA-256 hash of its canonical details for tamper evidence.
//
// # Entry Types
//
//   - sync_started, sync_completed, sync_failed: sync invocation lifecycle
//   - validation: validation engine verdicts
//   - anomaly_detected: anomaly findings for a record
//   - quarantine: a record held back for review
//   - data_updated: a committed change, with before/after and a field diff
//   - manual_override: quarantine releases and intervention resolutions
//   - config_changed: runtime configuration changes
//
// # Storage Backends
//
// MemoryStore keeps entries in process memory for development and tests.
// DuckDBStore persists them to the sync_audit_log table:
//
//	store := audit.NewDuckDBStore(db)
//	if err := store.CreateTable(ctx); err != nil {
//	    return err
//	}
//	recorder := audit.NewRecorder(store)
//
// # Read Paths
//
//	entries, _ := recorder.Query(ctx, audit.Filter{UserID: "u1", Limit: 50})
//	trail, _ := recorder.History(ctx, "inv-42", 100)
//	stats, _ := recorder.Statistics(ctx, audit.Filter{})
//	csv, _ := recorder.Export(ctx, audit.Filter{}, audit.FormatCSV)
//
// # Retention
//
// Sweeper is a suture service that deletes entries older than the retention
// horizon (365 days by default) once a day.
package audit
