// Package cache provides QueryCache implementations: a restart-scoped
// in-process TTL cache and a Redis-backed variant for shared deployments.
package cache

import (
	"context"
	"sync"
	"time"

	"ahLedgerApp/internal/domain/repository"
)

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

// MemoryCache is the default QueryCache: entries live in process memory,
// expire lazily on the next access after their TTL, and are never
// invalidated by a write. Safe for concurrent get/set; when two misses race
// to store the same key, last write wins.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var _ repository.QueryCache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(entry.createdAt) >= entry.ttl {
		// Stale entries are evicted on access rather than by a sweeper.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.createdAt.Equal(entry.createdAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, createdAt: c.now(), ttl: ttl}
	c.mu.Unlock()
	return nil
}
