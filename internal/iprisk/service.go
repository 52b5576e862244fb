package iprisk

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/kelmah/review-verification/pkg/logger"
	"github.com/kelmah/review-verification/pkg/resilience"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service resolves client IPs to location and anonymity data
type Service struct {
	enabled  bool
	provider GeoProvider
	cache    Cache
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	group    singleflight.Group
}

// NewService creates an IP risk service. A disabled service never calls
// the provider; provider and breaker may then be nil.
func NewService(enabled bool, provider GeoProvider, cache Cache, breaker *resilience.CircuitBreaker, timeout time.Duration) *Service {
	if cache == nil {
		cache = NewMemoryCache(24 * time.Hour)
	}
	return &Service{
		enabled:  enabled && provider != nil,
		provider: provider,
		cache:    cache,
		breaker:  breaker,
		timeout:  timeout,
	}
}

// Lookup returns the IP info for ip. Loopback, unparsable and empty
// addresses resolve to Default without a lookup. On provider failure the
// error is returned alongside Default so callers can degrade.
func (s *Service) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	ip = strings.TrimSpace(ip)
	if !s.enabled || skipLookup(ip) {
		return Default(), nil
	}

	if info, ok := s.cache.Get(ctx, ip); ok {
		return info, nil
	}

	// The shared fetch must not die with whichever caller happened to start
	// it; fetch applies its own timeout.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(ip, func() (interface{}, error) {
		if info, ok := s.cache.Get(shared, ip); ok {
			return info, nil
		}
		info, err := s.fetch(shared, ip)
		if err != nil {
			return nil, err
		}
		if cacheErr := s.cache.Set(shared, ip, info); cacheErr != nil {
			logger.WithContext(shared).Warn("Failed to cache IP info", zap.String("ip", ip), zap.Error(cacheErr))
		}
		return info, nil
	})
	if err != nil {
		return Default(), err
	}

	info := *v.(*IPInfo)
	return &info, nil
}

func (s *Service) fetch(ctx context.Context, ip string) (*IPInfo, error) {
	op := func(ctx context.Context) (interface{}, error) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		return s.provider.Lookup(ctx, ip)
	}

	var (
		result interface{}
		err    error
	)
	if s.breaker != nil {
		result, err = s.breaker.Execute(ctx, op)
	} else {
		result, err = op(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result.(*IPInfo), nil
}

// StartSweeper evicts expired cache entries every interval until ctx is done
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.cache.Sweep(ctx); removed > 0 {
					logger.Debug("Swept expired IP info entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func skipLookup(ip string) bool {
	if ip == "" {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed == nil || parsed.IsLoopback()
}

// IsMismatch reports whether the reviewer's stored country and the country
// resolved from the IP are both known and differ. The stored value may be a
// country name or an ISO code; matching either one counts as the same country.
func IsMismatch(storedCountry string, info *IPInfo) bool {
	if info == nil {
		return false
	}
	stored := strings.TrimSpace(storedCountry)
	name := strings.TrimSpace(info.Country)
	code := strings.TrimSpace(info.CountryCode)
	if name == "" {
		name = CountryName(code)
	}
	if stored == "" || (name == "" && code == "") {
		return false
	}
	if name != "" && strings.EqualFold(stored, name) {
		return false
	}
	if code != "" && strings.EqualFold(stored, code) {
		return false
	}
	return true
}
