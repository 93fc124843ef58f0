package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
	"ahLedgerApp/internal/domain/useCases"
	"ahLedgerApp/internal/metrics"
)

// Options tunes the ledger service. Zero values fall back to defaults.
type Options struct {
	GraceMin    int           // payout correlation tolerance beyond the query window
	CutRate     float64       // default auction-house cut fraction
	StatsTTL    time.Duration // cache TTL for the stats operation
	AwaitingTTL time.Duration // cache TTL for the awaiting operation
	Now         func() time.Time
}

const (
	defaultGraceMin = 120
	defaultCutRate  = 0.05
	defaultTTL      = 60 * time.Second
)

// LedgerService is the core ingestion and query service. It deduplicates
// uploads into the event store, reconciles sales against payouts, computes
// windowed totals, and memoizes query results in a TTL cache. All work is
// synchronous relative to the triggering request; there are no background
// workers or timers here.
type LedgerService struct {
	store repository.EventStore
	cache repository.QueryCache
	rec   *metrics.Recorder
	opts  Options
	now   func() time.Time
}

// NewLedgerService wires the service with its storage, cache and metrics
// dependencies. cache may be nil, in which case every query reads the
// backend.
func NewLedgerService(store repository.EventStore, cache repository.QueryCache, rec *metrics.Recorder, opts Options) *LedgerService {
	if opts.GraceMin <= 0 {
		opts.GraceMin = defaultGraceMin
	}
	if opts.CutRate <= 0 {
		opts.CutRate = defaultCutRate
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = defaultTTL
	}
	if opts.AwaitingTTL <= 0 {
		opts.AwaitingTTL = defaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &LedgerService{
		store: store,
		cache: cache,
		rec:   rec,
		opts:  opts,
		now:   now,
	}
}

// IngestBatch validates and upserts one (realm, character) bucket set.
// Events with qty <= 0 are dropped silently rather than failing the batch;
// the add-on occasionally emits partial rows and keeping the rest of the
// batch beats rejecting it wholesale. Re-uploading identical data is never
// an error: every already-seen event is skipped as a duplicate.
func (s *LedgerService) IngestBatch(ctx context.Context, realm, character string, buckets model.EventBuckets, payloadBytes int) (model.UploadResult, error) {
	if realm == "" || character == "" {
		return model.UploadResult{}, fmt.Errorf("%w: empty realm or character", repository.ErrValidation)
	}
	if len(buckets) == 0 {
		return model.UploadResult{}, fmt.Errorf("%w: no recognizable event kind", repository.ErrValidation)
	}

	clean := make(model.EventBuckets, len(buckets))
	for kind, events := range buckets {
		kept := make([]model.LedgerEvent, 0, len(events))
		for _, ev := range events {
			if ev.Qty <= 0 {
				continue
			}
			kept = append(kept, ev)
		}
		clean[kind] = kept
	}

	result, err := s.store.Upsert(ctx, realm, character, clean)
	if err != nil {
		return model.UploadResult{}, err
	}
	s.rec.Upload(result.Accepted, payloadBytes)
	return result, nil
}

// Stats computes {salesCount, gross, ahCut, net} for the trailing sinceHours
// window, answering from the query cache when a fresh entry exists.
func (s *LedgerService) Stats(ctx context.Context, realm, character string, sinceHours int) (model.Totals, error) {
	s.rec.Request(metrics.OpStats)

	key, err := queryKey(metrics.OpStats, realm, character, map[string]int{"sinceHours": sinceHours})
	if err != nil {
		return model.Totals{}, err
	}
	var totals model.Totals
	if s.probeCache(ctx, metrics.OpStats, key, &totals) {
		return totals, nil
	}

	since := s.now().Unix() - int64(sinceHours)*3600
	sales, err := s.store.Query(ctx, realm, character, model.KindSales, since)
	if err != nil {
		return model.Totals{}, err
	}
	payouts, err := s.store.Query(ctx, realm, character, model.KindPayouts, since)
	if err != nil {
		return model.Totals{}, err
	}

	totals = AggregateTotals(sales, payouts, s.opts.CutRate)
	s.storeCache(ctx, key, totals, s.opts.StatsTTL)
	return totals, nil
}

// Awaiting computes the awaiting-payout set for the trailing windowMin
// window and returns the (limit, offset) slice of it plus the total count.
// Payouts are fetched over a window widened by the grace tolerance so
// payouts posting slightly later than their triggering sale still match.
func (s *LedgerService) Awaiting(ctx context.Context, realm, character string, windowMin, limit, offset int) (model.AwaitingPage, error) {
	s.rec.Request(metrics.OpAwaiting)

	key, err := queryKey(metrics.OpAwaiting, realm, character, map[string]int{
		"windowMin": windowMin,
		"limit":     limit,
		"offset":    offset,
	})
	if err != nil {
		return model.AwaitingPage{}, err
	}
	var page model.AwaitingPage
	if s.probeCache(ctx, metrics.OpAwaiting, key, &page) {
		return page, nil
	}

	now := s.now().Unix()
	graceSec := int64(s.opts.GraceMin) * 60
	sales, err := s.store.Query(ctx, realm, character, model.KindSales, now-int64(windowMin)*60)
	if err != nil {
		return model.AwaitingPage{}, err
	}
	payouts, err := s.store.Query(ctx, realm, character, model.KindPayouts, now-int64(windowMin)*60-graceSec)
	if err != nil {
		return model.AwaitingPage{}, err
	}

	awaiting := ReconcileAwaiting(sales, payouts, graceSec)
	page = model.AwaitingPage{
		Count: len(awaiting),
		Items: SliceAwaiting(awaiting, limit, offset),
	}
	s.storeCache(ctx, key, page, s.opts.AwaitingTTL)
	return page, nil
}

// probeCache reports whether key held a fresh entry and, if so, decodes it
// into out. Counts the hit or miss plus the backend read that a miss implies.
// Cache failures are logged and degrade to a miss; only the event store is
// allowed to fail a query.
func (s *LedgerService) probeCache(ctx context.Context, op, key string, out interface{}) bool {
	if s.cache == nil {
		s.rec.CacheMiss(op)
		s.rec.BackendRead(op)
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("cache get failed for %s: %v", op, err)
		ok = false
	}
	if ok {
		if err := json.Unmarshal(data, out); err != nil {
			log.Printf("cache entry corrupt for %s: %v", op, err)
			ok = false
		}
	}
	if ok {
		s.rec.CacheHit(op)
		return true
	}
	s.rec.CacheMiss(op)
	s.rec.BackendRead(op)
	return false
}

func (s *LedgerService) storeCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache marshal failed: %v", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Printf("cache set failed: %v", err)
	}
}

// Ensure interface compliance
var _ useCases.LedgerService = (*LedgerService)(nil)
