// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package logging provides centralized zerolog-based structured logging.
//
// JSON output is the default; console output is available for development.
// Every sync invocation carries a correlation ID in its context so that the
// breaker, retry, fallback, integrity and audit log lines of one run can be
// joined together.
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Str("source", "amfi").Msg("Fetching NAVs")
//
// Always terminate log chains with .Msg() or .Send().
//
// The SlogHandler adapter lets slog consumers (sutureslog in the supervisor
// tree) write through zerolog.
package logging
