// Package repository defines all the repository interfaces used by domain services.
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations.
package repository

import (
	"ahLedgerApp/internal/domain/model"
	"context"
	"time"
)

// EventStore defines the interface for durable, idempotent ledger event storage.
// The backend engine is chosen once at startup; domain services never know
// which engine sits behind this interface.
type EventStore interface {
	// Upsert inserts every event of every kind in the buckets, skipping any
	// event whose (realm, character, kind, dedup key) has already been seen.
	// Racing inserts of the same key must never error and must never produce
	// a duplicate row. Returns accepted vs. duplicate-skipped counts.
	Upsert(ctx context.Context, realm, character string, buckets model.EventBuckets) (model.UploadResult, error)

	// Query returns events of the given kind with t >= sinceT, ordered by
	// t ascending.
	Query(ctx context.Context, realm, character, kind string, sinceT int64) ([]model.LedgerEvent, error)

	// Close releases the underlying backend connection.
	Close() error
}

// QueryCache defines the interface for TTL-bound memoization of computed
// query results. Entries expire lazily; a write never invalidates them.
type QueryCache interface {
	// Get returns the stored value for key if it is younger than its TTL.
	// The second return reports whether this was a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL, stamped at now.
	// Last write wins when two misses race.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
