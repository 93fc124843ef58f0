package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
	"ahLedgerApp/internal/domain/service"
	"ahLedgerApp/internal/infrastructure/cache"
	"ahLedgerApp/internal/infrastructure/storage"
	"ahLedgerApp/internal/metrics"
)

func newTestService(statsTTL, awaitingTTL time.Duration) (*service.LedgerService, *metrics.Recorder) {
	rec := metrics.NewRecorder(metrics.OpStats, metrics.OpAwaiting)
	svc := service.NewLedgerService(storage.NewMemoryRepository(), cache.NewMemoryCache(), rec, service.Options{
		GraceMin:    120,
		CutRate:     0.05,
		StatsTTL:    statsTTL,
		AwaitingTTL: awaitingTTL,
	})
	return svc, rec
}

func TestIngestIdempotence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: now - 600, ItemID: 100, Qty: 1, Unit: 5000, SaleID: "S1"},
			{T: now - 300, ItemID: 101, Qty: 2, Unit: 250},
		},
		model.KindPayouts: {
			{T: now - 100, ItemID: 100, Qty: 1, Gross: 5000, Cut: 250, Net: 4750, SaleID: "S1"},
		},
	}

	first, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 512)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.Accepted != 3 || first.Duplicates != 0 {
		t.Fatalf("expected 3 accepted / 0 duplicates, got %+v", first)
	}

	statsBefore, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	awaitingBefore, err := svc.Awaiting(ctx, "Stormrage", "Brewbelly", 60, 100, 0)
	if err != nil {
		t.Fatalf("awaiting failed: %v", err)
	}

	// Re-upload of identical data is never an error and a complete no-op.
	second, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 512)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second.Accepted != 0 || second.Duplicates != 3 {
		t.Fatalf("expected 0 accepted / 3 duplicates, got %+v", second)
	}

	statsAfter, _ := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if statsAfter != statsBefore {
		t.Errorf("stats changed after duplicate upload: %+v vs %+v", statsBefore, statsAfter)
	}
	awaitingAfter, _ := svc.Awaiting(ctx, "Stormrage", "Brewbelly", 60, 100, 0)
	if awaitingAfter.Count != awaitingBefore.Count {
		t.Errorf("awaiting count changed after duplicate upload: %d vs %d", awaitingBefore.Count, awaitingAfter.Count)
	}
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)

	_, err := svc.IngestBatch(ctx, "", "Brewbelly", model.EventBuckets{model.KindSales: {}}, 0)
	if !errors.Is(err, repository.ErrValidation) {
		t.Errorf("expected validation error for empty realm, got %v", err)
	}
	_, err = svc.IngestBatch(ctx, "Stormrage", "", model.EventBuckets{model.KindSales: {}}, 0)
	if !errors.Is(err, repository.ErrValidation) {
		t.Errorf("expected validation error for empty character, got %v", err)
	}
	_, err = svc.IngestBatch(ctx, "Stormrage", "Brewbelly", model.EventBuckets{}, 0)
	if !errors.Is(err, repository.ErrValidation) {
		t.Errorf("expected validation error for no recognizable kind, got %v", err)
	}
}

func TestIngestDropsZeroQtyRows(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: now, ItemID: 1, Qty: 0, Unit: 100},
			{T: now, ItemID: 2, Qty: 1, Unit: 100},
		},
	}
	result, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 128)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("expected dropped row to be excluded from accepted, got %d", result.Accepted)
	}

	_, events, _ := rec.Uploads()
	if events != 1 {
		t.Errorf("expected upload metric to count 1 event, got %d", events)
	}
}

func TestStatsWindowing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: now - 2*3600, ItemID: 1, Qty: 1, Unit: 1000},    // inside the 24h window
			{T: now - 30*3600, ItemID: 2, Qty: 1, Unit: 700000}, // outside it
		},
	}
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 256); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	totals, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if totals.SalesCount != 1 || totals.Gross != 1000 {
		t.Errorf("expected only the in-window sale, got %+v", totals)
	}
}

func TestAwaitingConcreteScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: now - 50*60, ItemID: 3001, Qty: 1, Unit: 1000},
			{T: now - 40*60, ItemID: 3002, Qty: 2, Unit: 200, SaleID: "S-MATCH"},
		},
		model.KindPayouts: {
			{T: now - 20*60, ItemID: 3002, Qty: 2, Gross: 400, Cut: 20, Net: 380, SaleID: "S-MATCH"},
		},
	}
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 256); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	page, err := svc.Awaiting(ctx, "Stormrage", "Brewbelly", 60, 100, 0)
	if err != nil {
		t.Fatalf("awaiting failed: %v", err)
	}
	if page.Count != 1 {
		t.Fatalf("expected count 1, got %d", page.Count)
	}
	if page.Items[0].ItemID != 3001 || page.Items[0].Gross != 1000 {
		t.Errorf("unexpected awaiting item: %+v", page.Items[0])
	}
}

func TestAwaitingPaginationPastEnd(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {
			{T: now - 600, ItemID: 1, Qty: 1, Unit: 100},
			{T: now - 500, ItemID: 2, Qty: 1, Unit: 100},
		},
	}
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 256); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	page, err := svc.Awaiting(ctx, "Stormrage", "Brewbelly", 60, 10, 5)
	if err != nil {
		t.Fatalf("awaiting failed: %v", err)
	}
	if page.Count != 2 {
		t.Errorf("expected count 2 regardless of offset, got %d", page.Count)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected empty items for offset past the end, got %v", page.Items)
	}
}

func TestCacheHitMissCounters(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(100*time.Millisecond, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindSales: {{T: now - 600, ItemID: 1, Qty: 1, Unit: 100}},
	}
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 128); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	// First query: one miss, one backend read.
	if _, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	op := rec.Op(metrics.OpStats)
	if op.Requests != 1 || op.CacheMisses != 1 || op.CacheHits != 0 || op.BackendReads != 1 {
		t.Fatalf("unexpected counters after first query: %+v", op)
	}

	// Immediate repeat: one hit, no additional backend read.
	if _, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	op = rec.Op(metrics.OpStats)
	if op.CacheHits != 1 || op.BackendReads != 1 {
		t.Fatalf("unexpected counters after repeat query: %+v", op)
	}

	// After the TTL elapses the next query misses and reads the backend again.
	time.Sleep(150 * time.Millisecond)
	if _, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	op = rec.Op(metrics.OpStats)
	if op.CacheMisses != 2 || op.BackendReads != 2 {
		t.Fatalf("unexpected counters after TTL expiry: %+v", op)
	}
}

func TestCachedResultServedWithinTTL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", model.EventBuckets{
		model.KindSales: {{T: now - 600, ItemID: 1, Qty: 1, Unit: 100}},
	}, 128); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	before, _ := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)

	// A write does not invalidate the cache: the stale result is served
	// until the TTL elapses.
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", model.EventBuckets{
		model.KindSales: {{T: now - 300, ItemID: 2, Qty: 1, Unit: 900}},
	}, 128); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	after, _ := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if after != before {
		t.Errorf("expected bounded-staleness cached result, got %+v vs %+v", before, after)
	}
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) Upsert(context.Context, string, string, model.EventBuckets) (model.UploadResult, error) {
	return model.UploadResult{}, fmt.Errorf("%w: connection refused", repository.ErrStorageUnavailable)
}

func (failingStore) Query(context.Context, string, string, string, int64) ([]model.LedgerEvent, error) {
	return nil, fmt.Errorf("%w: connection refused", repository.ErrStorageUnavailable)
}

func (failingStore) Close() error { return nil }

func TestStorageUnavailableIsFatal(t *testing.T) {
	ctx := context.Background()
	rec := metrics.NewRecorder(metrics.OpStats, metrics.OpAwaiting)
	svc := service.NewLedgerService(failingStore{}, cache.NewMemoryCache(), rec, service.Options{})
	now := time.Now().Unix()

	_, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", model.EventBuckets{
		model.KindSales: {{T: now, ItemID: 1, Qty: 1, Unit: 100}},
	}, 64)
	if !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Errorf("expected storage unavailable on ingest, got %v", err)
	}

	_, err = svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Errorf("expected storage unavailable on stats, got %v", err)
	}

	_, err = svc.Awaiting(ctx, "Stormrage", "Brewbelly", 60, 10, 0)
	if !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Errorf("expected storage unavailable on awaiting, got %v", err)
	}
}

func TestPayoutFallbackThroughService(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Minute, time.Minute)
	now := time.Now().Unix()

	buckets := model.EventBuckets{
		model.KindPayouts: {
			{T: now - 600, ItemID: 1, Qty: 1, Gross: 400, Cut: 20, Net: 380, SaleID: "P1"},
			{T: now - 500, ItemID: 2, Qty: 1, Gross: 600, Cut: 30, Net: 570, SaleID: "P2"},
		},
	}
	if _, err := svc.IngestBatch(ctx, "Stormrage", "Brewbelly", buckets, 256); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	totals, err := svc.Stats(ctx, "Stormrage", "Brewbelly", 24)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if totals.SalesCount != 2 || totals.Gross != 1000 || totals.AHCut != 50 || totals.Net != 950 {
		t.Errorf("unexpected payout fallback totals: %+v", totals)
	}
}
