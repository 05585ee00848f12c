// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

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

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a new DuckDB-backed audit store.
// Call CreateTable before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{
		db: db,
	}
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// CreateTable creates the sync_audit_log table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE SEQUENCE IF NOT EXISTS sync_audit_log_seq START 1;

		CREATE TABLE IF NOT EXISTS sync_audit_log (
			id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('sync_audit_log_seq'),
			user_id TEXT NOT NULL,
			audit_type TEXT NOT NULL,
			investment_type TEXT NOT NULL DEFAULT '',
			investment_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			details JSON,
			data_hash TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_sync_audit_timestamp ON sync_audit_log(timestamp);
		CREATE INDEX IF NOT EXISTS idx_sync_audit_user ON sync_audit_log(user_id);
		CREATE INDEX IF NOT EXISTS idx_sync_audit_investment ON sync_audit_log(investment_id);
	`

	// Split and execute each statement
	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Sync audit log table created/verified")
	return nil
}

// Save appends an audit entry to DuckDB.
func (s *DuckDBStore) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	details, err := marshalDetails(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_audit_log (
			id, user_id, audit_type, investment_type, investment_id, source,
			timestamp, details, data_hash, ip_address, user_agent, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.UserID,
		string(entry.AuditType),
		string(entry.InvestmentType),
		entry.InvestmentID,
		entry.Source,
		entry.Timestamp.UTC(),
		details,
		entry.DataHash,
		entry.IPAddress,
		entry.UserAgent,
		entry.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	return nil
}

// marshalDetails converts details to a string for the DuckDB JSON column.
func marshalDetails(details map[string]any) (string, error) {
	if details == nil {
		return "{}", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Get retrieves an entry by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	var data scannedEntry
	if err := row.Scan(data.scanDestinations()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}

	return data.toEntry(), nil
}

// Query retrieves entries matching the filter.
func (s *DuckDBStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var data scannedEntry
		if err := rows.Scan(data.scanDestinations()...); err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit entry row")
			continue
		}
		entries = append(entries, *data.toEntry())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// Delete removes entries older than the given time.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM sync_audit_log WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old audit entries")
	}

	return count, nil
}

// selectColumns casts the JSON column to VARCHAR for scanning.
const selectColumns = `
	SELECT
		id, user_id, audit_type, investment_type, investment_id, source,
		timestamp, CAST(details AS VARCHAR) AS details,
		data_hash, ip_address, user_agent, correlation_id
	FROM sync_audit_log`

// buildQuery constructs the SQL query based on the filter.
func buildQuery(filter Filter, countOnly bool) (string, []interface{}) {
	conditions, args := buildFilterConditions(filter)

	query := selectColumns
	if countOnly {
		query = "SELECT COUNT(*) FROM sync_audit_log"
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !countOnly {
		query = appendOrderAndLimit(query, filter)
	}

	return query, args
}

// buildFilterConditions builds WHERE clause conditions from a Filter.
func buildFilterConditions(filter Filter) ([]string, []interface{}) {
	var args []interface{}
	var conditions []string

	if cond := buildSliceCondition("audit_type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	conditions, args = appendStringCondition(conditions, args, "user_id", filter.UserID)
	conditions, args = appendStringCondition(conditions, args, "investment_type", string(filter.InvestmentType))
	conditions, args = appendStringCondition(conditions, args, "investment_id", filter.InvestmentID)
	conditions, args = appendStringCondition(conditions, args, "source", filter.Source)

	if filter.Start != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.End.UTC())
	}

	return conditions, args
}

// appendStringCondition adds a string equality condition if value is non-empty.
func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

// appendOrderAndLimit adds ORDER BY, LIMIT, and OFFSET clauses.
// seq breaks ties between entries written within the same instant.
func appendOrderAndLimit(query string, filter Filter) string {
	if filter.Ascending {
		query += " ORDER BY timestamp ASC, seq ASC"
	} else {
		query += " ORDER BY timestamp DESC, seq DESC"
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query
}

// scannedEntry holds raw scanned values from the database.
type scannedEntry struct {
	entry          Entry
	auditType      string
	investmentType string
	details        sql.NullString
}

// scanDestinations returns pointers to all fields for scanning.
func (d *scannedEntry) scanDestinations() []interface{} {
	return []interface{}{
		&d.entry.ID,
		&d.entry.UserID,
		&d.auditType,
		&d.investmentType,
		&d.entry.InvestmentID,
		&d.entry.Source,
		&d.entry.Timestamp,
		&d.details,
		&d.entry.DataHash,
		&d.entry.IPAddress,
		&d.entry.UserAgent,
		&d.entry.CorrelationID,
	}
}

// toEntry converts scanned data to a fully populated Entry.
func (d *scannedEntry) toEntry() *Entry {
	d.entry.AuditType = Type(d.auditType)
	d.entry.InvestmentType = models.InvestmentType(d.investmentType)
	d.entry.Details = map[string]any{}
	if d.details.Valid && d.details.String != "" {
		if err := json.Unmarshal([]byte(d.details.String), &d.entry.Details); err != nil {
			logging.Debug().Err(err).Str("id", d.entry.ID).Msg("Failed to parse audit details JSON")
		}
	}
	return &d.entry
}
