// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package models defines the data structures shared across the sync core.

Model Categories:

1. Records:
  - Record: one standardized investment value as produced by a provider
  - InvestmentType: mutual_fund, stock, epf, sip

2. Outcomes:
  - SyncResult: outcome of one sync invocation (success iff no errors)
  - SyncError: a failure classified into the closed ErrorKind taxonomy
  - ValidationResult, AnomalyResult: integrity gate verdicts

3. Recovery:
  - RecoveryAction: one decision of the recovery selector
  - Intervention: an item queued for operator action
  - QuarantineRecord: a held-back record pending review

4. Health:
  - SourceHealth: per-provider liveness snapshot

Result types are plain values; nothing in this package holds locks or performs I/O.
*/
package models
