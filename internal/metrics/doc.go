// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

// Package metrics exposes Prometheus instrumentation for the sync core.
//
// Metric families:
//
//   - fiscalflow_sync_*: invocation duration, processed/updated records, classified errors
//   - circuit_breaker_*: per-source breaker state, requests and transitions
//   - fiscalflow_retry_*: retried and exhausted attempts
//   - fiscalflow_source_*: health, uptime score, probes and fallbacks
//   - fiscalflow_recovery_actions_total, fiscalflow_escalations_total, fiscalflow_interventions_pending
//   - fiscalflow_validation_results_total, fiscalflow_anomalies_detected_total, fiscalflow_quarantined_records_total
//   - fiscalflow_audit_*: entries and retention deletions
//   - fiscalflow_notifications_total, fiscalflow_api_*
//
// All collectors are registered with the default registry through promauto
// and served by promhttp.Handler() on /metrics.
package metrics
