// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

// DuckDBStore implements InvestmentStore on DuckDB.
type DuckDBStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writers; DuckDB allows one writer transaction at a time
}

// NewDuckDBStore creates a store on db. Call CreateTables before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTables creates the investment tables if they don't exist.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS investments (
			investment_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			investment_type TEXT NOT NULL,
			identifier TEXT NOT NULL DEFAULT '',
			fields JSON NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			as_of TIMESTAMPTZ,
			source TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE SEQUENCE IF NOT EXISTS investment_history_seq START 1;

		CREATE TABLE IF NOT EXISTS investment_history (
			seq BIGINT PRIMARY KEY DEFAULT nextval('investment_history_seq'),
			investment_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			investment_type TEXT NOT NULL,
			identifier TEXT NOT NULL DEFAULT '',
			fields JSON NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			as_of TIMESTAMPTZ,
			source TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_investment_history_id ON investment_history(investment_id)
	`

	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Investment tables created/verified")
	return nil
}

// Find implements InvestmentStore.
func (s *DuckDBStore) Find(ctx context.Context, investmentID string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT investment_id, user_id, investment_type, identifier,
			CAST(fields AS VARCHAR), status, as_of, source
		FROM investments WHERE investment_id = ?`, investmentID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, investmentID)
		}
		return nil, fmt.Errorf("failed to find investment %s: %w", investmentID, err)
	}
	return rec, nil
}

// Update implements InvestmentStore. The current row and the history row
// are written in one transaction.
func (s *DuckDBStore) Update(ctx context.Context, record *models.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	asOf := nullTime(record.AsOf)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO investments (
			investment_id, user_id, investment_type, identifier, fields, status, as_of, source, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (investment_id) DO UPDATE SET
			user_id = excluded.user_id,
			investment_type = excluded.investment_type,
			identifier = excluded.identifier,
			fields = excluded.fields,
			status = excluded.status,
			as_of = excluded.as_of,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		record.InvestmentID, record.UserID, string(record.Type), record.Identifier,
		string(fields), record.Status, asOf, record.Source, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert investment %s: %w", record.InvestmentID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO investment_history (
			investment_id, user_id, investment_type, identifier, fields, status, as_of, source, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.InvestmentID, record.UserID, string(record.Type), record.Identifier,
		string(fields), record.Status, asOf, record.Source, now,
	)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", record.InvestmentID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit investment update: %w", err)
	}
	return nil
}

// ListByUser implements InvestmentStore.
func (s *DuckDBStore) ListByUser(ctx context.Context, userID string, t models.InvestmentType) ([]models.Record, error) {
	query := `
		SELECT investment_id, user_id, investment_type, identifier,
			CAST(fields AS VARCHAR), status, as_of, source
		FROM investments WHERE user_id = ?`
	args := []interface{}{userID}
	if t != "" {
		query += " AND investment_type = ?"
		args = append(args, string(t))
	}
	query += " ORDER BY investment_id"

	return s.queryRecords(ctx, query, args...)
}

// History implements InvestmentStore.
func (s *DuckDBStore) History(ctx context.Context, investmentID string, limit int) ([]models.Record, error) {
	query := `
		SELECT investment_id, user_id, investment_type, identifier,
			CAST(fields AS VARCHAR), status, as_of, source
		FROM investment_history WHERE investment_id = ?
		ORDER BY seq DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryRecords(ctx, query, investmentID)
}

func (s *DuckDBStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments: %w", err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec     models.Record
		invType string
		fields  string
		asOf    sql.NullTime
	)
	if err := row.Scan(&rec.InvestmentID, &rec.UserID, &invType, &rec.Identifier, &fields, &rec.Status, &asOf, &rec.Source); err != nil {
		return nil, err
	}
	rec.Type = models.InvestmentType(invType)
	rec.Fields = map[string]float64{}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("invalid fields JSON for %s: %w", rec.InvestmentID, err)
		}
	}
	if asOf.Valid {
		rec.AsOf = asOf.Time
	}
	return &rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
