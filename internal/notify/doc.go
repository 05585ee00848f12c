// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package notify carries structured notifications out of the sync core.
//
// Channels:
//   - WebhookNotifier: HTTP POST, guarded by a gobreaker circuit breaker
//   - BusNotifier: in-process Watermill Go-channel pub/sub
//
// Multi fans a payload out to several channels. Send is the fire-and-log
// helper used on sync paths, where a delivery failure must never fail the sync.
package notify
