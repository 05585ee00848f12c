// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

/*
Command server runs FiscalFlow: the investment sync core, its admin HTTP API
and the background loops that keep source health and the audit trail current.

# Startup

The server initializes components in the following order:

 1. Configuration: defaults, optional config.yaml, then environment (Koanf v2)
 2. Logging: zerolog, configured from LOG_LEVEL / LOG_FORMAT / LOG_CALLER
 3. DuckDB: investment records, and the audit trail when AUDIT_STORE=duckdb
 4. BadgerDB (optional): intervention queue and quarantine persistence
 5. Providers: one HTTP JSON provider per enabled source, with its rate limit
 6. Recovery: escalator, intervention queue and strategy selector
 7. Integrity: validation engine, anomaly engine and quarantine
 8. Sync service
 9. Supervisor tree: audit sweeper, source health monitor, notification
    log and the admin HTTP server

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service (the HTTP server drains for up to 10s), then stores are closed and
DuckDB is checkpointed.

# Example

	export DUCKDB_PATH=/data/fiscalflow.duckdb
	export AUDIT_STORE=duckdb
	export QUARANTINE_STORE=badger
	export QUARANTINE_PATH=/data/quarantine
	export SOURCE_AMFI_BASE_URL=https://quotes.internal/amfi
	export NOTIFY_WEBHOOK_URL=https://hooks.internal/fiscalflow
	./fiscalflow
*/
package main
