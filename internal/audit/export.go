// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Exporter renders entries in one export format.
type Exporter interface {
	Export(entries []Entry) ([]byte, error)
	ContentType() string
}

// ExporterFor returns the exporter for a format.
func ExporterFor(format Format) (Exporter, error) {
	return exporterFor(format)
}

func exporterFor(format Format) (Exporter, error) {
	switch format {
	case "", FormatJSON:
		return JSONExporter{}, nil
	case FormatCSV:
		return CSVExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// JSONExporter exports entries as an indented JSON array.
type JSONExporter struct{}

// Export exports entries to JSON format.
func (JSONExporter) Export(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ContentType implements Exporter.
func (JSONExporter) ContentType() string { return "application/json" }

// CSVHeader is the header row written by CSVExporter.
var CSVHeader = []string{
	"id", "timestamp", "user_id", "audit_type", "investment_type", "investment_id",
	"source", "data_hash", "ip_address", "user_agent", "details",
}

// CSVExporter exports entries as CSV with details as a JSON column.
type CSVExporter struct{}

// Export exports entries to CSV format.
func (CSVExporter) Export(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		details, err := marshalDetails(e.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode details of %s: %w", e.ID, err)
		}
		row := []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.UserID,
			string(e.AuditType),
			string(e.InvestmentType),
			e.InvestmentID,
			e.Source,
			e.DataHash,
			e.IPAddress,
			e.UserAgent,
			details,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType implements Exporter.
func (CSVExporter) ContentType() string { return "text/csv" }
