// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ParagE404/fiscal-flow-sub001/internal/models"
)

func fundRecord(id string, nav float64) *models.Record {
	return &models.Record{
		InvestmentID: id,
		UserID:       "user-1",
		Type:         models.InvestmentMutualFund,
		Identifier:   "INF209K01VA3",
		Fields:       map[string]float64{models.FieldNAV: nav},
		AsOf:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_FindMissing(t *testing.T) {
	s := NewMemoryStore(0)
	_, err := s.Find(context.Background(), "nope")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateAndHistory(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	for _, nav := range []float64{10, 10.1, 10.2, 10.3} {
		if err := s.Update(ctx, fundRecord("inv-1", nav)); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	current, err := s.Find(ctx, "inv-1")
	if err != nil {
		t.Fatal(err)
	}
	if nav, _ := current.Field(models.FieldNAV); nav != 10.3 {
		t.Errorf("expected current NAV 10.3, got %v", nav)
	}

	history, err := s.History(ctx, "inv-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	want := []float64{10.3, 10.2, 10.1}
	for i, w := range want {
		if got := history[i].Fields[models.FieldNAV]; got != w {
			t.Errorf("history[%d]: expected %v, got %v", i, w, got)
		}
	}

	limited, err := s.History(ctx, "inv-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].Fields[models.FieldNAV] != 10.3 {
		t.Errorf("expected only the newest value, got %+v", limited)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	rec := fundRecord("inv-1", 10)
	if err := s.Update(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Fields[models.FieldNAV] = 99

	got, err := s.Find(ctx, "inv-1")
	if err != nil {
		t.Fatal(err)
	}
	got.Fields[models.FieldNAV] = 42

	again, err := s.Find(ctx, "inv-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Fields[models.FieldNAV] != 10 {
		t.Errorf("expected stored NAV 10, got %v", again.Fields[models.FieldNAV])
	}
}

func TestMemoryStore_ListByUser(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	stock := &models.Record{InvestmentID: "inv-0", UserID: "user-1", Type: models.InvestmentStock, Fields: map[string]float64{"price": 100}}
	other := fundRecord("inv-9", 10)
	other.UserID = "user-2"
	for _, r := range []*models.Record{fundRecord("inv-2", 10), fundRecord("inv-1", 11), stock, other} {
		if err := s.Update(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListByUser(ctx, "user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].InvestmentID != "inv-0" || all[2].InvestmentID != "inv-2" {
		t.Errorf("unexpected listing: %+v", all)
	}

	funds, err := s.ListByUser(ctx, "user-1", models.InvestmentMutualFund)
	if err != nil {
		t.Fatal(err)
	}
	if len(funds) != 2 {
		t.Errorf("expected 2 mutual funds, got %d", len(funds))
	}
}

func TestMemoryStore_RejectsIncompleteRecords(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	if err := s.Update(ctx, nil); err == nil {
		t.Error("expected error for nil record")
	}
	if err := s.Update(ctx, &models.Record{UserID: "u"}); err == nil {
		t.Error("expected error for missing investment ID")
	}
	if err := s.Update(ctx, &models.Record{InvestmentID: "i"}); err == nil {
		t.Error("expected error for missing user ID")
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Update(ctx, fundRecord("inv-1", float64(i*100+j))) //nolint:errcheck // valid record
			}
		}(i)
	}
	wg.Wait()

	history, err := s.History(ctx, "inv-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 400 {
		t.Errorf("expected 400 history entries, got %d", len(history))
	}
}
