// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package integrity gates every incoming investment value before it can change
persisted state.

The Orchestrator runs a fixed pipeline for each record:

 1. Validate the record against its investment type rules (internal/validation)
 2. Record the verdict in the audit trail; stop when the record is invalid
 3. Load recent history and run anomaly detection (internal/anomaly)
 4. Quarantine the record when detection asks for it, alerting the admin on
    high severity findings
 5. Commit through the investment store exactly once (ValidateAndProcessUpdate)

Quarantined records are immutable. An operator clears one with Release, which
may commit the held value and always leaves a manual override audit entry.

Quarantine storage:

  - MemoryQuarantineStore: process memory, for tests and single-run tools
  - BadgerQuarantineStore: BadgerDB, one key per record and one per release

Usage:

	orch := integrity.NewOrchestrator(validator, detector, investments,
		integrity.NewBadgerQuarantineStore(db), recorder,
		integrity.WithNotifier(notifier))

	out, err := orch.ValidateAndProcessUpdate(ctx, integrity.CheckRequest{
		UserID: userID,
		Record: &record,
		Source: "amfi",
	}, false)
*/
package integrity
