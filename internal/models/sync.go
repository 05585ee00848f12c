// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package models

import "time"

// SyncOptions are the options recognized by Sync and SyncSingle.
type SyncOptions struct {
	Force          bool           `json:"force"`       // Sync even if the user's sync is disabled
	DryRun         bool           `json:"dry_run"`     // Run every check but never persist
	Source         string         `json:"source"`      // Override the primary source
	NoFallback     bool           `json:"no_fallback"` // Never substitute another source
	InvestmentType InvestmentType `json:"investment_type,omitempty"`
}

// SyncResult is the outcome of one sync invocation.
type SyncResult struct {
	Success          bool          `json:"success"`
	InvestmentType   string        `json:"investment_type,omitempty"`
	RecordsProcessed int           `json:"records_processed"`
	RecordsUpdated   int           `json:"records_updated"`
	Errors           []SyncError   `json:"errors"`
	Warnings         []string      `json:"warnings"`
	Duration         time.Duration `json:"-"`
	DurationMS       int64         `json:"duration_ms"`
	Source           string        `json:"source,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
}

// NewSyncResult starts a result at the given time.
func NewSyncResult(startedAt time.Time) *SyncResult {
	return &SyncResult{
		Success:   true,
		Errors:    []SyncError{},
		Warnings:  []string{},
		StartedAt: startedAt,
	}
}

// AddError appends a classified error and marks the result failed.
func (r *SyncResult) AddError(e SyncError) {
	r.Errors = append(r.Errors, e)
	r.Success = false
}

// AddWarning appends a warning.
func (r *SyncResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finalize stamps the duration and derives Success from the error list.
func (r *SyncResult) Finalize(now time.Time) {
	d := now.Sub(r.StartedAt)
	if d < 0 {
		d = 0
	}
	r.Duration = d
	r.DurationMS = d.Milliseconds()
	r.Success = len(r.Errors) == 0
}

// Merge folds another result into r, keeping errors and warnings in order.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.RecordsProcessed += other.RecordsProcessed
	r.RecordsUpdated += other.RecordsUpdated
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	if r.Source == "" {
		r.Source = other.Source
	}
	r.Success = len(r.Errors) == 0
}
