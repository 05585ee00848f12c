// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package store

import (
	"context"
	"errors"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// ErrRecordNotFound is returned when no investment has the requested ID.
var ErrRecordNotFound = errors.New("investment record not found")

// InvestmentStore persists the current value of each investment and the
// history of values it has held.
type InvestmentStore interface {
	// Find returns the current record of an investment.
	Find(ctx context.Context, investmentID string) (*models.Record, error)

	// Update writes record as the current value, inserting it if the
	// investment is new, and appends it to the investment's history.
	Update(ctx context.Context, record *models.Record) error

	// ListByUser returns a user's investments, optionally of one type.
	// An empty type lists every investment.
	ListByUser(ctx context.Context, userID string, t models.InvestmentType) ([]models.Record, error)

	// History returns up to limit past values, newest first. A non-positive
	// limit returns the whole history.
	History(ctx context.Context, investmentID string, limit int) ([]models.Record, error)
}

func validateRecord(record *models.Record) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if record.InvestmentID == "" {
		return errors.New("record has no investment ID")
	}
	if record.UserID == "" {
		return errors.New("record has no user ID")
	}
	return nil
}
