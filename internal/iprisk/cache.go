package iprisk

import (
	"context"
	"sync"
	"time"

	pkgredis "github.com/kelmah/review-verification/pkg/redis"
)

// Cache stores lookup results by IP
type Cache interface {
	Get(ctx context.Context, ip string) (*IPInfo, bool)
	Set(ctx context.Context, ip string, info *IPInfo) error
	// Sweep evicts expired entries and returns how many were removed
	Sweep(ctx context.Context) int
}

type memoryEntry struct {
	info      IPInfo
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. Concurrent writers for the same
// IP simply overwrite each other.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, time.Now)
}

// NewMemoryCacheWithClock is NewMemoryCache with an injectable clock
func NewMemoryCacheWithClock(ttl time.Duration, now func() time.Time) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get implements Cache
func (c *MemoryCache) Get(_ context.Context, ip string) (*IPInfo, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	info := entry.info
	return &info, true
}

// Set implements Cache
func (c *MemoryCache) Set(_ context.Context, ip string, info *IPInfo) error {
	c.mu.Lock()
	c.entries[ip] = memoryEntry{info: *info, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Sweep implements Cache
func (c *MemoryCache) Sweep(_ context.Context) int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	defer c.mu.Unlock()
	for ip, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

const redisKeyPrefix = "iprisk:"

// RedisCache shares lookup results between instances. Redis expires the
// keys itself, so Sweep has nothing to do.
type RedisCache struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *pkgredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get implements Cache. Redis errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, ip string) (*IPInfo, bool) {
	var info IPInfo
	if err := c.client.GetJSON(ctx, redisKeyPrefix+ip, &info); err != nil {
		return nil, false
	}
	return &info, true
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, ip string, info *IPInfo) error {
	return c.client.SetJSON(ctx, redisKeyPrefix+ip, info, c.ttl)
}

// Sweep implements Cache
func (c *RedisCache) Sweep(context.Context) int {
	return 0
}
