// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/ParagE404/fiscal-flow-sub001/internal/logging"
	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestRecorder(t *testing.T) (*Recorder, *MemoryStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(1000)
	return NewRecorder(store, WithClock(clock.Now)), store, clock
}

func navRecord(nav float64) *models.Record {
	return &models.Record{
		InvestmentID: "inv-1",
		UserID:       "user-1",
		Type:         models.InvestmentMutualFund,
		Identifier:   "INF209K01VA3",
		Fields:       map[string]float64{models.FieldNAV: nav},
		AsOf:         time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Source:       "amfi",
	}
}

func syncResult(t models.InvestmentType, source string, durationMS int64, success bool) *models.SyncResult {
	r := models.NewSyncResult(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	r.InvestmentType = string(t)
	r.Source = source
	r.DurationMS = durationMS
	r.RecordsProcessed = 3
	if !success {
		r.AddError(*models.NewSyncError(models.ErrorServiceUnavailable, "upstream down"))
	}
	return r
}

func TestRecorder_RecordStampsEntry(t *testing.T) {
	rec, store, clock := newTestRecorder(t)

	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	ctx = ContextWithRequestInfo(ctx, RequestInfo{IPAddress: "10.0.0.7", UserAgent: "cli/1.0"})

	result := models.NewValidationResult()
	result.AddWarning("NAV moved 12%", "significant_nav_change")
	if err := rec.ValidationPerformed(ctx, navRecord(11.2), result); err != nil {
		t.Fatalf("ValidationPerformed failed: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 entry in store, got %d", store.Len())
	}
	entries, err := rec.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	e := entries[0]

	if e.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if !e.Timestamp.Equal(clock.now) {
		t.Errorf("expected timestamp %v, got %v", clock.now, e.Timestamp)
	}
	if e.AuditType != TypeValidation {
		t.Errorf("expected type %s, got %s", TypeValidation, e.AuditType)
	}
	if e.UserID != "user-1" || e.InvestmentID != "inv-1" || e.Source != "amfi" {
		t.Errorf("unexpected identity fields: %+v", e)
	}
	if e.CorrelationID != "corr-1" {
		t.Errorf("expected correlation ID corr-1, got %q", e.CorrelationID)
	}
	if e.IPAddress != "10.0.0.7" || e.UserAgent != "cli/1.0" {
		t.Errorf("expected request metadata, got ip=%q ua=%q", e.IPAddress, e.UserAgent)
	}
	if e.Details["is_valid"] != true {
		t.Errorf("expected is_valid true, got %v", e.Details["is_valid"])
	}
	if !Verify(&e) {
		t.Error("expected stored entry to verify against its hash")
	}
}

func TestRecorder_RejectsUnknownType(t *testing.T) {
	rec, store, _ := newTestRecorder(t)

	err := rec.Record(context.Background(), &Entry{AuditType: "login"})
	if err == nil {
		t.Fatal("expected error for unknown audit type")
	}
	if store.Len() != 0 {
		t.Errorf("expected nothing stored, got %d", store.Len())
	}
}

func TestRecorder_PreservesAppendOrder(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	ctx := context.Background()

	record := navRecord(10)
	if err := rec.SyncStarted(ctx, "user-1", models.SyncOptions{InvestmentType: models.InvestmentMutualFund}); err != nil {
		t.Fatal(err)
	}
	if err := rec.ValidationPerformed(ctx, record, models.NewValidationResult()); err != nil {
		t.Fatal(err)
	}
	if err := rec.DataUpdated(ctx, nil, record); err != nil {
		t.Fatal(err)
	}
	if err := rec.SyncCompleted(ctx, "user-1", syncResult(models.InvestmentMutualFund, "amfi", 120, true)); err != nil {
		t.Fatal(err)
	}

	entries, err := rec.Query(ctx, Filter{Ascending: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []Type{TypeSyncStarted, TypeValidation, TypeDataUpdated, TypeSyncCompleted}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].AuditType != w {
			t.Errorf("entry %d: expected %s, got %s", i, w, entries[i].AuditType)
		}
	}

	newest, err := rec.Query(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 1 || newest[0].AuditType != TypeSyncCompleted {
		t.Errorf("expected newest entry to be sync_completed, got %+v", newest)
	}
}

func TestRecorder_DataUpdatedDiff(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	ctx := context.Background()

	if err := rec.DataUpdated(ctx, navRecord(10), navRecord(11)); err != nil {
		t.Fatalf("DataUpdated failed: %v", err)
	}

	trail, err := rec.History(ctx, "inv-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(trail))
	}
	changes, ok := trail[0].Details["changes"].(map[string]any)
	if !ok {
		t.Fatalf("expected changes map, got %T", trail[0].Details["changes"])
	}
	nav, ok := changes["nav"].(map[string]any)
	if !ok {
		t.Fatalf("expected nav change, got %v", changes)
	}
	if nav["old"] != 10.0 || nav["new"] != 11.0 {
		t.Errorf("expected nav 10 -> 11, got %v -> %v", nav["old"], nav["new"])
	}
	fields, _ := trail[0].Details["fields"].([]any) //nolint:errcheck // checked below
	if len(fields) != 1 || fields[0] != "nav" {
		t.Errorf("expected fields [nav], got %v", trail[0].Details["fields"])
	}
}

func TestRecorder_History_RequiresID(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	if _, err := rec.History(context.Background(), "", 10); err == nil {
		t.Error("expected error for empty investment ID")
	}
}

func TestRecorder_QueryFilters(t *testing.T) {
	rec, _, clock := newTestRecorder(t)
	ctx := context.Background()

	start := clock.now
	for i := 0; i < 5; i++ {
		user := "user-1"
		if i%2 == 1 {
			user = "user-2"
		}
		if err := rec.SyncStarted(ctx, user, models.SyncOptions{InvestmentType: models.InvestmentStock, Source: "nse"}); err != nil {
			t.Fatal(err)
		}
		clock.now = clock.now.Add(time.Minute)
	}
	if err := rec.ConfigChanged(ctx, "admin", "sources.nse.enabled", true, false); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 6},
		{"by user", Filter{UserID: "user-1"}, 3},
		{"by type", Filter{Types: []Type{TypeConfigChanged}}, 1},
		{"by source", Filter{Source: "nse"}, 5},
		{"by investment type", Filter{InvestmentType: models.InvestmentStock}, 5},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 4}, 2},
		{"time range", Filter{Start: ptrTime(start.Add(time.Minute)), End: ptrTime(start.Add(3 * time.Minute))}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := rec.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(entries))
			}
			count, err := rec.Count(ctx, Filter{UserID: tt.filter.UserID, Types: tt.filter.Types})
			if err != nil {
				t.Fatalf("count failed: %v", err)
			}
			if count < int64(len(entries)) {
				t.Errorf("count %d below page size %d", count, len(entries))
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestRecorder_Statistics(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	ctx := context.Background()

	mustRecord(t, rec.SyncCompleted(ctx, "user-1", syncResult(models.InvestmentMutualFund, "amfi", 100, true)))
	mustRecord(t, rec.SyncCompleted(ctx, "user-1", syncResult(models.InvestmentMutualFund, "amfi", 300, true)))
	mustRecord(t, rec.SyncFailed(ctx, "user-1", syncResult(models.InvestmentStock, "yahoo_finance", 200, false), errors.New("all sources failed")))
	mustRecord(t, rec.ValidationPerformed(ctx, navRecord(10), models.NewValidationResult()))

	stats, err := rec.Statistics(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}

	if stats.TotalEntries != 4 {
		t.Errorf("expected 4 entries, got %d", stats.TotalEntries)
	}
	if stats.TotalSyncs != 3 || stats.SuccessfulSyncs != 2 || stats.FailedSyncs != 1 {
		t.Errorf("expected 3 syncs (2 ok, 1 failed), got %d (%d, %d)", stats.TotalSyncs, stats.SuccessfulSyncs, stats.FailedSyncs)
	}
	if math.Abs(stats.SuccessRate-200.0/3.0) > 1e-9 {
		t.Errorf("expected success rate 66.67, got %v", stats.SuccessRate)
	}
	if stats.AverageDuration != 200 {
		t.Errorf("expected average duration 200ms, got %v", stats.AverageDuration)
	}
	if stats.ByInvestmentType["mutual_fund"] != 2 || stats.ByInvestmentType["stock"] != 1 {
		t.Errorf("unexpected by-type counts: %v", stats.ByInvestmentType)
	}
	if stats.BySource["amfi"] != 2 || stats.BySource["yahoo_finance"] != 1 {
		t.Errorf("unexpected by-source counts: %v", stats.BySource)
	}
	if stats.ByAuditType[string(TypeValidation)] != 1 || stats.ByAuditType[string(TypeSyncCompleted)] != 2 {
		t.Errorf("unexpected by-audit-type counts: %v", stats.ByAuditType)
	}
}

func TestRecorder_StatisticsEmpty(t *testing.T) {
	rec, _, _ := newTestRecorder(t)

	stats, err := rec.Statistics(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSyncs != 0 || stats.SuccessRate != 0 || stats.OldestEntry != nil {
		t.Errorf("expected empty statistics, got %+v", stats)
	}
}

func mustRecord(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
}

func TestRecorder_Export(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	ctx := context.Background()

	mustRecord(t, rec.DataUpdated(ctx, navRecord(10), navRecord(10.5)))
	mustRecord(t, rec.ManualOverride(ctx, Override{
		UserID:       "user-1",
		InvestmentID: "inv-1",
		Operator:     "ops@example.com",
		Action:       "quarantine_release",
		Details:      map[string]any{"note": "confirmed with, \"fund house\""},
	}))

	t.Run("csv", func(t *testing.T) {
		out, err := rec.Export(ctx, Filter{}, FormatCSV)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
		if err != nil {
			t.Fatalf("exported CSV does not parse: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header and 2 rows, got %d rows", len(rows))
		}
		if rows[0][0] != "id" || rows[0][len(rows[0])-1] != "details" {
			t.Errorf("unexpected header: %v", rows[0])
		}
		if rows[1][3] != string(TypeManualOverride) {
			t.Errorf("expected newest row to be manual_override, got %s", rows[1][3])
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := rec.Export(ctx, Filter{}, FormatJSON)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		var entries []Entry
		if err := json.Unmarshal(out, &entries); err != nil {
			t.Fatalf("exported JSON does not parse: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if !bytes.Contains(out, []byte(`"auditType"`)) || !bytes.Contains(out, []byte(`"investmentId"`)) {
			t.Error("expected camelCase audit field names in export")
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := rec.Export(ctx, Filter{}, Format("xml"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestRecorder_Sweep(t *testing.T) {
	rec, store, clock := newTestRecorder(t)
	ctx := context.Background()

	mustRecord(t, rec.ConfigChanged(ctx, "admin", "retry.max_attempts", 3, 4))
	clock.now = clock.now.Add(400 * 24 * time.Hour)
	mustRecord(t, rec.ConfigChanged(ctx, "admin", "retry.max_attempts", 4, 5))

	deleted, err := rec.Sweep(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted entry, got %d", deleted)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", store.Len())
	}
}

func TestSweeper_ServeSweepsAndStops(t *testing.T) {
	rec, store, clock := newTestRecorder(t)
	mustRecord(t, rec.ConfigChanged(context.Background(), "admin", "k", 1, 2))
	clock.now = clock.now.Add(48 * time.Hour)

	sweeper := NewSweeper(rec, 24*time.Hour, time.Hour)
	if sweeper.String() != "audit-retention-sweeper" {
		t.Errorf("unexpected service name %q", sweeper.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sweeper.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expected expired entry to be swept, %d left", store.Len())
	}
}

func TestDataHash(t *testing.T) {
	type payload struct {
		B int `json:"b"`
		A int `json:"a"`
	}

	fromMap, err := DataHash(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	fromStruct, err := DataHash(payload{B: 2, A: 1})
	if err != nil {
		t.Fatal(err)
	}
	if fromMap != fromStruct {
		t.Errorf("expected key order not to matter: %s vs %s", fromMap, fromStruct)
	}
	if len(fromMap) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(fromMap))
	}

	other, err := DataHash(map[string]any{"a": 1, "b": 3})
	if err != nil {
		t.Fatal(err)
	}
	if other == fromMap {
		t.Error("expected different content to hash differently")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	ctx := context.Background()

	mustRecord(t, rec.DataUpdated(ctx, navRecord(10), navRecord(10.4)))
	entries, err := rec.Query(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	e := entries[0]
	if !Verify(&e) {
		t.Fatal("expected untouched entry to verify")
	}

	e.Details["after"] = map[string]any{"nav": 99.0}
	if Verify(&e) {
		t.Error("expected tampered entry to fail verification")
	}
}

func TestMemoryStore_MaxLen(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 11; i++ {
		e := &Entry{ID: string(rune('a' + i)), AuditType: TypeValidation, Timestamp: base.Add(time.Duration(i) * time.Second)}
		if err := store.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if store.Len() != 10 {
		t.Errorf("expected 10 entries, got %d", store.Len())
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected oldest entry to be dropped, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); err != nil {
		t.Errorf("expected newest entry to be kept, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	if err := store.Save(ctx, &Entry{ID: "x", AuditType: TypeValidation, Details: map[string]any{"k": "v"}}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	got.Details["k"] = "changed"

	again, err := store.Get(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if again.Details["k"] != "v" {
		t.Errorf("expected stored details to be unchanged, got %v", again.Details["k"])
	}
}

func TestRequestInfoFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/audit", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			req.Header.Set("User-Agent", "test-agent")

			info := RequestInfoFromRequest(req)
			if info.IPAddress != tt.want {
				t.Errorf("expected IP %q, got %q", tt.want, info.IPAddress)
			}
			if info.UserAgent != "test-agent" {
				t.Errorf("expected user agent test-agent, got %q", info.UserAgent)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("expected json default, got %q (%v)", f, err)
	}
	if f, err := ParseFormat("csv"); err != nil || f != FormatCSV {
		t.Errorf("expected csv, got %q (%v)", f, err)
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
