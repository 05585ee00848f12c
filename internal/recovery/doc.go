// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package recovery classifies sync failures and decides how to recover from them.

Classify maps any error onto the closed models.ErrorKind taxonomy. Each kind
has a static Strategy (retry with backoff, delay and retry, fallback with
retry, fallback with skip, skip and continue, manual intervention) with an
escalation threshold and a fallback action.

Selector.Select first asks the Escalator whether the failure must go to a
human. Escalation fires when any of these holds:

  - the attempt number exceeds the strategy's EscalateAfter
  - 3 consecutive failures for the (user, investment type)
  - 5 failures for the (user, investment type) within the last hour
  - a critical investment type (EPF) failed at attempt 2 or later
  - fewer than half of the tracked sources are healthy

An escalation always queues an Intervention listing every condition that
held. Authentication, credential and configuration errors then disable sync
for the (user, investment type) until the intervention is resolved; all
other kinds return manual_intervention.

InterventionQueue keeps at most 50 interventions per user, dropping the
oldest, and can persist to BadgerDB.
*/
package recovery
