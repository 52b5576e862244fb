package iprisk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelmah/review-verification/pkg/logger"
	"github.com/kelmah/review-verification/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	logger.SetForTesting(zap.NewNop())
}

type stubProvider struct {
	calls atomic.Int32
	info  *IPInfo
	err   error
	delay time.Duration
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	info := *p.info
	return &info, nil
}

func TestService_Lookup_CachesResult(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{Country: "Ghana", Proxy: true}}
	svc := NewService(true, provider, NewMemoryCache(time.Hour), nil, time.Second)

	first, err := svc.Lookup(context.Background(), "41.66.0.1")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "41.66.0.1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Proxy)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestService_Lookup_ShortCircuits(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{Country: "Ghana"}}
	svc := NewService(true, provider, nil, nil, time.Second)

	for _, ip := range []string{"", "127.0.0.1", "::1", "not-an-ip"} {
		info, err := svc.Lookup(context.Background(), ip)
		require.NoError(t, err)
		assert.Equal(t, Default(), info, ip)
	}
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestService_Lookup_Disabled(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{Country: "Ghana"}}
	svc := NewService(false, provider, nil, nil, time.Second)

	info, err := svc.Lookup(context.Background(), "41.66.0.1")

	require.NoError(t, err)
	assert.Equal(t, Default(), info)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestService_Lookup_ProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	cache := NewMemoryCache(time.Hour)
	svc := NewService(true, provider, cache, nil, time.Second)

	info, err := svc.Lookup(context.Background(), "41.66.0.1")

	assert.Error(t, err)
	assert.Equal(t, Default(), info)
	assert.Equal(t, 0, cache.Len(), "failures are not cached")
}

func TestService_Lookup_Timeout(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{}, delay: time.Second}
	svc := NewService(true, provider, nil, nil, 20*time.Millisecond)

	_, err := svc.Lookup(context.Background(), "41.66.0.1")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Lookup_BreakerOpens(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "iprisk-test",
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, resilience.GracefulDegradation("iprisk-test"))
	svc := NewService(true, provider, nil, breaker, time.Second)

	for i := 0; i < 2; i++ {
		_, err := svc.Lookup(context.Background(), "41.66.0.1")
		require.Error(t, err)
	}

	info, err := svc.Lookup(context.Background(), "41.66.0.1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, Default(), info)
	assert.Equal(t, int32(2), provider.calls.Load())
}

func TestService_Lookup_DeduplicatesConcurrentCalls(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{Country: "Ghana"}, delay: 50 * time.Millisecond}
	svc := NewService(true, provider, nil, nil, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := svc.Lookup(context.Background(), "41.66.0.1")
			assert.NoError(t, err)
			assert.Equal(t, "Ghana", info.Country)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestService_Lookup_SharedFetchSurvivesCallerCancel(t *testing.T) {
	provider := &stubProvider{info: &IPInfo{Country: "Ghana"}, delay: 100 * time.Millisecond}
	cache := NewMemoryCache(time.Hour)
	svc := NewService(true, provider, cache, nil, time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Lookup(firstCtx, "41.66.0.1")
		firstDone <- err
	}()

	// Let the first caller start the fetch before the second joins it.
	require.Eventually(t, func() bool { return provider.calls.Load() == 1 }, time.Second, time.Millisecond)

	secondDone := make(chan *IPInfo, 1)
	go func() {
		info, err := svc.Lookup(context.Background(), "41.66.0.1")
		assert.NoError(t, err)
		secondDone <- info
	}()

	time.Sleep(10 * time.Millisecond)
	cancelFirst()

	info := <-secondDone
	assert.Equal(t, "Ghana", info.Country)
	assert.NoError(t, <-firstDone)
	assert.Equal(t, int32(1), provider.calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestService_StartSweeper(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock.Now()
	}
	cache := NewMemoryCacheWithClock(time.Hour, now)
	require.NoError(t, cache.Set(context.Background(), "1.1.1.1", &IPInfo{}))

	mu.Lock()
	clock.Advance(2 * time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewService(false, nil, cache, nil, 0)
	svc.StartSweeper(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestIsMismatch(t *testing.T) {
	assert.False(t, IsMismatch("", &IPInfo{Country: "Ghana"}))
	assert.False(t, IsMismatch("Ghana", &IPInfo{}))
	assert.False(t, IsMismatch("Ghana", nil))
	assert.False(t, IsMismatch("ghana", &IPInfo{Country: "Ghana"}))
	assert.True(t, IsMismatch("Ghana", &IPInfo{Country: "Nigeria"}))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Ghana", CountryName("GH"))
	assert.Equal(t, "Nigeria", CountryName("ng"))
	assert.Empty(t, CountryName(""))
	assert.Empty(t, CountryName("Ghana"))
	assert.Empty(t, CountryName("ZZ"))
}

func TestIsMismatch_MatchesNameOrCode(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		info   *IPInfo
		want   bool
	}{
		{"name against code only", "Ghana", &IPInfo{CountryCode: "GH"}, false},
		{"other name against code only", "Nigeria", &IPInfo{CountryCode: "GH"}, true},
		{"name against name and code", "Ghana", &IPInfo{Country: "Ghana", CountryCode: "GH"}, false},
		{"code against name and code", "gh", &IPInfo{Country: "Ghana", CountryCode: "GH"}, false},
		{"code only resolved", "GH", &IPInfo{CountryCode: "GH"}, false},
		{"different code", "NG", &IPInfo{Country: "Ghana", CountryCode: "GH"}, true},
		{"different name", "Nigeria", &IPInfo{Country: "Ghana", CountryCode: "GH"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMismatch(tt.stored, tt.info))
		})
	}
}
