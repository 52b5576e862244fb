package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kelmah/review-verification/pkg/config"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testError         = errors.New("test error")
	retryableError    = errors.New("retryable error")
	nonRetryableError = errors.New("non-retryable error")
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	attemptCount := 0
	result, err := Retry(context.Background(), testRetryConfig(), func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	config := testRetryConfig()
	config.InitialBackoff = time.Millisecond
	config.MaxBackoff = 5 * time.Millisecond
	attemptCount := 0

	result, err := Retry(context.Background(), config, func(ctx context.Context) (interface{}, error) {
		attemptCount++
		if attemptCount < 3 {
			return nil, testError
		}
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, attemptCount)
}

func TestRetry_FailureAfterMaxAttempts(t *testing.T) {
	config := testRetryConfig()
	config.InitialBackoff = time.Millisecond
	attemptCount := 0

	result, err := Retry(context.Background(), config, func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return nil, testError
	})

	assert.Equal(t, testError, err)
	assert.Nil(t, result)
	assert.Equal(t, 3, attemptCount)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := testRetryConfig()
	config.InitialBackoff = time.Second
	config.EnableJitter = false
	attemptCount := 0

	_, err := Retry(ctx, config, func(ctx context.Context) (interface{}, error) {
		attemptCount++
		cancel()
		return nil, testError
	})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_NonRetryableError(t *testing.T) {
	config := testRetryConfig()
	config.RetryableErrors = []error{retryableError}
	attemptCount := 0

	_, err := Retry(context.Background(), config, func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return nil, nonRetryableError
	})

	assert.Equal(t, nonRetryableError, err)
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_CircuitOpenNotRetried(t *testing.T) {
	attemptCount := 0
	_, err := Retry(context.Background(), testRetryConfig(), func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return nil, ErrCircuitOpen
	})

	assert.Equal(t, ErrCircuitOpen, err)
	assert.Equal(t, 1, attemptCount)
}

func TestRetry_ZeroMaxAttempts(t *testing.T) {
	config := testRetryConfig()
	config.MaxAttempts = 0
	attemptCount := 0

	result, err := Retry(context.Background(), config, func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return "success", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, attemptCount)
}

func TestCalculateBackoff_ExponentialGrowth(t *testing.T) {
	config := RetryConfig{
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	assert.Equal(t, time.Second, calculateBackoff(1, config))
	assert.Equal(t, 4*time.Second, calculateBackoff(3, config))
	assert.Equal(t, 30*time.Second, calculateBackoff(10, config))
}

func TestAddJitter_Bounds(t *testing.T) {
	for i := 0; i < 10; i++ {
		j := addJitter(10 * time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.LessOrEqual(t, j, 10*time.Second)
	}
	assert.Equal(t, time.Duration(0), addJitter(0))
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	assert.False(t, IsRetryableHTTPStatus(200))
	assert.False(t, IsRetryableHTTPStatus(404))
	assert.True(t, IsRetryableHTTPStatus(429))
	assert.True(t, IsRetryableHTTPStatus(503))
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-open",
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, nil)

	fail := func(ctx context.Context) (interface{}, error) { return nil, testError }

	_, err := breaker.Execute(context.Background(), fail)
	assert.Equal(t, testError, err)
	_, err = breaker.Execute(context.Background(), fail)
	assert.Equal(t, testError, err)

	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	calls := 0
	_, err = breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return "ok", nil
	})
	assert.Equal(t, ErrCircuitOpen, err)
	assert.Equal(t, 0, calls, "open breaker must not call the operation")
}

func TestCircuitBreaker_GracefulDegradationFallback(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-degrade",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, GracefulDegradation("geo"))

	_, _ = breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, testError
	})
	_, err := breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})

	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestQuickRetryConfig(t *testing.T) {
	config := QuickRetryConfig()

	assert.Equal(t, 2, config.MaxAttempts)
	assert.LessOrEqual(t, calculateBackoff(5, config), config.MaxBackoff)
}

func TestBuildSettings_Defaults(t *testing.T) {
	s := BuildSettings("x", 0, 0, 0, 0)

	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, uint32(5), s.FailureThreshold)
	assert.Equal(t, uint32(1), s.SuccessThreshold)
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig("nlp", config.BreakerConfig{IntervalSeconds: 10, TimeoutSeconds: 5, FailureThreshold: 3, SuccessThreshold: 2})

	assert.Equal(t, "nlp", s.Name)
	assert.Equal(t, 10*time.Second, s.Interval)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, uint32(3), s.FailureThreshold)
	assert.Equal(t, uint32(2), s.SuccessThreshold)
}
