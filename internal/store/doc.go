// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package store persists investment records for the sync core.
//
// InvestmentStore is the boundary the integrity orchestrator commits through
// and the anomaly detector reads history from. MemoryStore serves tests and
// development; DuckDBStore keeps the current value in the investments table
// and every committed value in investment_history.
package store
