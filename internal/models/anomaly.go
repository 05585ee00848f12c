// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

// Severity ranks how suspicious an anomaly is.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// MaxSeverity returns the worse of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Anomaly is one suspicious observation about a record.
type Anomaly struct {
	Type       string   `json:"type"`
	Field      string   `json:"field,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Value      float64  `json:"value"`
	Reference  float64  `json:"reference,omitempty"`
	Score      float64  `json:"score,omitempty"` // Percent change, z-score or volatility depending on Type
	Quarantine bool     `json:"quarantine"`
}

// AnomalyResult aggregates the anomalies found for one record.
// Quarantine implies HasAnomalies and Severity is the max across Anomalies.
type AnomalyResult struct {
	HasAnomalies     bool      `json:"has_anomalies"`
	Severity         Severity  `json:"severity"`
	Quarantine       bool      `json:"quarantine"`
	QuarantineReason string    `json:"quarantine_reason,omitempty"`
	Anomalies        []Anomaly `json:"anomalies"`
	Recommendations  []string  `json:"recommendations"`
}

// NewAnomalyResult returns an empty result.
func NewAnomalyResult() *AnomalyResult {
	return &AnomalyResult{
		Anomalies:       []Anomaly{},
		Recommendations: []string{},
	}
}

// Add folds one anomaly into the result. The first quarantining anomaly
// provides the quarantine reason.
func (r *AnomalyResult) Add(a Anomaly) {
	r.Anomalies = append(r.Anomalies, a)
	r.HasAnomalies = true
	r.Severity = MaxSeverity(r.Severity, a.Severity)
	if a.Quarantine {
		if !r.Quarantine {
			r.QuarantineReason = a.Message
		}
		r.Quarantine = true
	}
}

// Recommend appends a recommendation unless it is already present.
func (r *AnomalyResult) Recommend(text string) {
	for _, existing := range r.Recommendations {
		if existing == text {
			return
		}
	}
	r.Recommendations = append(r.Recommendations, text)
}
