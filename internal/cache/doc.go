// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Package cache provides small thread-safe in-memory structures.

  - Cache: key/value with TTL expiry, used for read-heavy API responses
    such as audit statistics.
  - SlidingWindowStore: per-key event counts over a trailing window, used
    for the hourly error frequency that drives escalation.

Both accept an injectable clock so tests do not sleep.
*/
package cache
