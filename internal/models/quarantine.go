// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import "time"

// QuarantineRecord is a held-back record pending review. It is immutable once
// created; release is recorded separately as a QuarantineRelease.
type QuarantineRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	InvestmentID   string         `json:"investment_id"`
	InvestmentType InvestmentType `json:"investment_type"`
	Source         string         `json:"source,omitempty"`
	Data           Record         `json:"data"`
	Reason         string         `json:"reason"`
	Severity       Severity       `json:"severity"`
	Anomalies      []Anomaly      `json:"anomalies"`
	ReviewRequired bool           `json:"review_required"`
	AutoRelease    bool           `json:"auto_release"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QuarantineRelease records the operator action that released a quarantined record.
type QuarantineRelease struct {
	QuarantineID string    `json:"quarantine_id"`
	Operator     string    `json:"operator"`
	Note         string    `json:"note,omitempty"`
	Applied      bool      `json:"applied"` // Whether the held value was committed on release
	ReleasedAt   time.Time `json:"released_at"`
}
