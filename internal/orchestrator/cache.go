package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bookingsync/internal/constants"
)

// ProcessedCache is the fast-path terminal-outcome set. It is an
// optimization over the authoritative label query, so losing it is safe:
// the mailbox SEARCH already excludes labeled messages.
type ProcessedCache interface {
	MarkProcessed(ctx context.Context, key string) error
	IsProcessed(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context) (int, error)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = constants.DefaultProcessedTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) MarkProcessed(ctx context.Context, key string) error {
	_, err := c.client.SetNX(ctx, constants.CacheKeyPrefixProcessed+key, time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis SetNX failed: %w", err)
	}
	return nil
}

func (c *RedisCache) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, constants.CacheKeyPrefixProcessed+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis Exists failed: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCache) Size(ctx context.Context) (int, error) {
	iter := c.client.Scan(ctx, 0, constants.CacheKeyPrefixProcessed+"*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return count, nil
}

// MemoryCache backs the processed set when Redis is disabled. Entries expire
// lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	ttl     time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = constants.DefaultProcessedTTL
	}
	return &MemoryCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

func (c *MemoryCache) MarkProcessed(_ context.Context, key string) error {
	c.mu.Lock()
	c.entries[key] = time.Now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) IsProcessed(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	expiry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if time.Now().After(expiry) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Size(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}
