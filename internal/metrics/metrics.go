// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiscalflow_sync_duration_seconds",
			Help:    "Duration of sync invocations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"investment_type"},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_sync_records_processed_total",
			Help: "Total number of records processed by sync",
		},
		[]string{"investment_type"},
	)

	SyncRecordsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_sync_records_updated_total",
			Help: "Total number of records persisted by sync",
		},
		[]string{"investment_type"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_sync_errors_total",
			Help: "Total number of classified sync errors",
		},
		[]string{"error_type"},
	)

	SyncInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_sync_invocations_total",
			Help: "Total number of sync invocations by outcome",
		},
		[]string{"investment_type", "result"}, // result: "success", "failure"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current failure counter of the breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Retry Metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_retry_attempts_total",
			Help: "Total number of retried attempts",
		},
		[]string{"operation"},
	)

	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_retry_exhausted_total",
			Help: "Total number of operations that failed after their last attempt",
		},
		[]string{"operation"},
	)

	// Source Health Metrics
	SourceHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fiscalflow_source_healthy",
			Help: "Whether a data source is healthy (1) or not (0)",
		},
		[]string{"source"},
	)

	SourceUptimeScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fiscalflow_source_uptime_score",
			Help: "Rolling uptime score of a data source (0-100)",
		},
		[]string{"source"},
	)

	SourceProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_source_probes_total",
			Help: "Total number of liveness probes",
		},
		[]string{"source", "result"},
	)

	SourceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_source_fallbacks_total",
			Help: "Total number of substitutions of one source by another",
		},
		[]string{"from", "to"},
	)

	// Recovery Metrics
	RecoveryActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_recovery_actions_total",
			Help: "Total number of recovery decisions by action",
		},
		[]string{"error_type", "action"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_escalations_total",
			Help: "Total number of escalations by triggering condition",
		},
		[]string{"reason"},
	)

	InterventionsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fiscalflow_interventions_pending",
			Help: "Current number of pending interventions across all users",
		},
	)

	// Integrity Metrics
	ValidationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_validation_results_total",
			Help: "Total number of record validations by outcome",
		},
		[]string{"investment_type", "result"}, // result: "valid", "invalid"
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"detector", "severity"},
	)

	QuarantinedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_quarantined_records_total",
			Help: "Total number of records placed in quarantine",
		},
		[]string{"investment_type", "severity"},
	)

	// Audit Metrics
	AuditEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_audit_entries_total",
			Help: "Total number of audit entries recorded",
		},
		[]string{"audit_type"},
	)

	AuditSweepDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fiscalflow_audit_sweep_deleted_total",
			Help: "Total number of audit entries removed by retention sweeps",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_notifications_total",
			Help: "Total number of notifications by channel and outcome",
		},
		[]string{"channel", "kind", "result"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscalflow_api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiscalflow_api_request_duration_seconds",
			Help:    "Duration of admin API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordSyncOperation records the outcome of one sync invocation.
func RecordSyncOperation(investmentType string, duration time.Duration, processed, updated int, success bool) {
	if investmentType == "" {
		investmentType = "all"
	}
	SyncDuration.WithLabelValues(investmentType).Observe(duration.Seconds())
	SyncRecordsProcessed.WithLabelValues(investmentType).Add(float64(processed))
	SyncRecordsUpdated.WithLabelValues(investmentType).Add(float64(updated))
	result := "success"
	if !success {
		result = "failure"
	}
	SyncInvocations.WithLabelValues(investmentType, result).Inc()
}

// RecordSyncError counts one classified error.
func RecordSyncError(errorType string) {
	SyncErrors.WithLabelValues(errorType).Inc()
}

// RecordSourceHealth publishes the health of one source.
func RecordSourceHealth(source string, healthy bool, uptime float64) {
	v := 0.0
	if healthy {
		v = 1
	}
	SourceHealthy.WithLabelValues(source).Set(v)
	SourceUptimeScore.WithLabelValues(source).Set(uptime)
}

// RecordProbe counts one liveness probe.
func RecordProbe(source string, ok bool) {
	result := "up"
	if !ok {
		result = "down"
	}
	SourceProbes.WithLabelValues(source, result).Inc()
}

// RecordValidation counts one validation verdict.
func RecordValidation(investmentType string, valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	ValidationResults.WithLabelValues(investmentType, result).Inc()
}

// RecordNotification counts one notification attempt.
func RecordNotification(channel, kind string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationsSent.WithLabelValues(channel, kind, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
