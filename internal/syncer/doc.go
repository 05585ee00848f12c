// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package syncer runs sync invocations: it resolves a user's investments,
fetches fresh values through the source fallback chain, lets the recovery
selector decide what to do when every source fails, and gates each fetched
value through the integrity orchestrator before it is committed.

Investment types sync in parallel (bounded by Config.Concurrency) while
invocations for one user are serialized. Per-record failures never abort an
invocation; they are collected in the returned models.SyncResult.

Usage:

	svc := syncer.NewService(syncer.Deps{
	    Providers: providerRegistry,
	    Sources:   sourceRegistry,
	    Selector:  selector,
	    Integrity: orchestrator,
	    Store:     investments,
	    Recorder:  recorder,
	    Notifier:  notifier,
	}, syncer.DefaultConfig())

	result, err := svc.Sync(ctx, userID, models.SyncOptions{InvestmentType: models.InvestmentMutualFund})
*/
package syncer
