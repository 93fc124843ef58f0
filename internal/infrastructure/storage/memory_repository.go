package storage

import (
	"context"
	"sort"
	"sync"

	"ahLedgerApp/internal/domain/model"
	"ahLedgerApp/internal/domain/repository"
)

type bucketKey struct {
	realm     string
	character string
	kind      string
}

// MemoryRepository is an in-process EventStore used for tests and local
// development. Same idempotence contract as the durable engines, no
// durability across restarts.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[bucketKey]map[string]model.LedgerEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[bucketKey]map[string]model.LedgerEvent)}
}

var _ repository.EventStore = (*MemoryRepository)(nil)

func (r *MemoryRepository) Upsert(_ context.Context, realm, character string, buckets model.EventBuckets) (model.UploadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result model.UploadResult
	for kind, events := range buckets {
		key := bucketKey{realm, character, kind}
		rows, ok := r.events[key]
		if !ok {
			rows = make(map[string]model.LedgerEvent)
			r.events[key] = rows
		}
		for _, ev := range events {
			id := ev.DedupKey()
			if _, seen := rows[id]; seen {
				result.Duplicates++
				continue
			}
			rows[id] = ev
			result.Accepted++
		}
	}
	return result, nil
}

func (r *MemoryRepository) Query(_ context.Context, realm, character, kind string, sinceT int64) ([]model.LedgerEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.events[bucketKey{realm, character, kind}]
	out := make([]model.LedgerEvent, 0, len(rows))
	for _, ev := range rows {
		if ev.T >= sinceT {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out, nil
}

// Reset drops every stored event. Used by the debug reset endpoint.
func (r *MemoryRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[bucketKey]map[string]model.LedgerEvent)
}

func (r *MemoryRepository) Close() error { return nil }
