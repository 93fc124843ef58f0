package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/infrastructure/storage"
)

func newTestSQLite(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteUpsertDeduplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: 1000, ItemID: 1, Qty: 2, Unit: 500, SaleID: "S1"},
			{T: 1100, ItemID: 2, Qty: 1, Unit: 300},
		},
	}

	result, err := repo.Upsert(ctx, "Stormrage", "Brewbelly", buckets)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if result.Accepted != 2 || result.Duplicates != 0 {
		t.Fatalf("expected 2 accepted / 0 duplicates, got %+v", result)
	}

	result, err = repo.Upsert(ctx, "Stormrage", "Brewbelly", buckets)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if result.Accepted != 0 || result.Duplicates != 2 {
		t.Fatalf("expected 0 accepted / 2 duplicates, got %+v", result)
	}
}

func TestSQLiteDedupScopedByOwnerAndKind(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	ev := model.LedgerEvent{T: 1000, ItemID: 1, Qty: 1, Unit: 100}

	// Same event under a different kind, character or realm is a new row.
	cases := []struct {
		realm, character, kind string
	}{
		{"Stormrage", "Brewbelly", model.KindSales},
		{"Stormrage", "Brewbelly", model.KindBuys},
		{"Stormrage", "Maraxxia", model.KindSales},
		{"Area-52", "Brewbelly", model.KindSales},
	}
	for _, c := range cases {
		result, err := repo.Upsert(ctx, c.realm, c.character, model.EventBuckets{c.kind: {ev}})
		if err != nil {
			t.Fatalf("upsert failed for %+v: %v", c, err)
		}
		if result.Accepted != 1 {
			t.Errorf("expected new row for %+v, got %+v", c, result)
		}
	}
}

func TestSQLiteQueryWindowAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: 3000, ItemID: 3, Qty: 1, Unit: 30},
			{T: 1000, ItemID: 1, Qty: 1, Unit: 10},
			{T: 2000, ItemID: 2, Qty: 1, Unit: 20},
		},
	}
	if _, err := repo.Upsert(ctx, "Stormrage", "Brewbelly", buckets); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	events, err := repo.Query(ctx, "Stormrage", "Brewbelly", model.KindSales, 2000)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events with t >= 2000, got %d", len(events))
	}
	if events[0].T != 2000 || events[1].T != 3000 {
		t.Errorf("expected ascending t order, got %v", events)
	}

	// Events persist full field sets.
	if events[0].ItemID != 2 || events[0].Unit != 20 {
		t.Errorf("unexpected event fields: %+v", events[0])
	}
}

func TestSQLiteSaleIDIdentityWins(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	// Two rows with the same sale id but different timestamps are the
	// same logical event: the add-on sometimes rewrites t on re-export.
	first := model.LedgerEvent{T: 1000, ItemID: 1, Qty: 1, Unit: 100, SaleID: "S1"}
	second := model.LedgerEvent{T: 1005, ItemID: 1, Qty: 1, Unit: 100, SaleID: "S1"}

	if _, err := repo.Upsert(ctx, "Stormrage", "Brewbelly", model.EventBuckets{model.KindSales: {first}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	result, err := repo.Upsert(ctx, "Stormrage", "Brewbelly", model.EventBuckets{model.KindSales: {second}})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if result.Duplicates != 1 {
		t.Errorf("expected sale id collision to dedup, got %+v", result)
	}
}

func TestSQLiteReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)

	buckets := model.EventBuckets{model.KindSales: {{T: 1000, ItemID: 1, Qty: 1, Unit: 10}}}
	if _, err := repo.Upsert(ctx, "Stormrage", "Brewbelly", buckets); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	events, err := repo.Query(ctx, "Stormrage", "Brewbelly", model.KindSales, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty store after reset, got %d events", len(events))
	}
}
