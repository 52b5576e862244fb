package iprisk

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	pkgredis "github.com/kelmah/review-verification/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCacheWithClock(24*time.Hour, clock.Now)

	require.NoError(t, cache.Set(ctx, "41.66.0.1", &IPInfo{Country: "Ghana", City: "Accra"}))

	got, ok := cache.Get(ctx, "41.66.0.1")
	require.True(t, ok)
	assert.Equal(t, "Ghana", got.Country)

	clock.Advance(23 * time.Hour)
	_, ok = cache.Get(ctx, "41.66.0.1")
	assert.True(t, ok)

	clock.Advance(time.Hour)
	_, ok = cache.Get(ctx, "41.66.0.1")
	assert.False(t, ok, "entry must expire after exactly the TTL")
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Hour)
	require.NoError(t, cache.Set(ctx, "1.1.1.1", &IPInfo{Country: "Ghana"}))

	got, _ := cache.Get(ctx, "1.1.1.1")
	got.Country = "Togo"

	again, _ := cache.Get(ctx, "1.1.1.1")
	assert.Equal(t, "Ghana", again.Country)
}

func TestMemoryCache_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewMemoryCacheWithClock(time.Hour, clock.Now)

	require.NoError(t, cache.Set(ctx, "1.1.1.1", &IPInfo{}))
	clock.Advance(30 * time.Minute)
	require.NoError(t, cache.Set(ctx, "2.2.2.2", &IPInfo{}))
	clock.Advance(40 * time.Minute)

	assert.Equal(t, 1, cache.Sweep(ctx))
	assert.Equal(t, 1, cache.Len())

	_, ok := cache.Get(ctx, "2.2.2.2")
	assert.True(t, ok)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(&pkgredis.Client{Client: db}, 24*time.Hour)

	info := &IPInfo{Country: "Ghana", City: "Kumasi", Proxy: true}
	data, err := json.Marshal(info)
	require.NoError(t, err)

	mock.ExpectSet("iprisk:41.66.0.1", data, 24*time.Hour).SetVal("OK")
	mock.ExpectGet("iprisk:41.66.0.1").SetVal(string(data))

	require.NoError(t, cache.Set(ctx, "41.66.0.1", info))
	got, ok := cache.Get(ctx, "41.66.0.1")

	require.True(t, ok)
	assert.Equal(t, info, got)
	assert.Equal(t, 0, cache.Sweep(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(&pkgredis.Client{Client: db}, time.Hour)

	mock.ExpectGet("iprisk:8.8.8.8").RedisNil()

	_, ok := cache.Get(context.Background(), "8.8.8.8")
	assert.False(t, ok)
}
