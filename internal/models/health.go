// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import "time"

// SourceHealth is a point-in-time view of one provider's liveness.
type SourceHealth struct {
	Source              string    `json:"source"`
	IsHealthy           bool      `json:"is_healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastCheck           time.Time `json:"last_check"`
	UptimeScore         float64   `json:"uptime_score"` // 0-100
	BreakerState        string    `json:"breaker_state,omitempty"`
}
