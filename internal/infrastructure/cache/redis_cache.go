package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ahLedgerApp/internal/domain/repository"
)

// RedisCache implements the QueryCache interface using Redis as the backend.
// TTL expiry is delegated to Redis itself via SET ... EX. Useful when
// several service instances should share one cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client}
}

var _ repository.QueryCache = (*RedisCache)(nil)

// redisKey hashes the canonical query key; canonical keys carry the full
// parameter serialization and get long.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "query:" + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
