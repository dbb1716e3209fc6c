package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtrack/github-activity-tracker/internal/monitoring"
)

func newFallbackLimiter(config Config) *RateLimiter {
	redisClient := &RedisClient{enabled: false}
	return NewRateLimiter(redisClient, config, monitoring.NewMetrics())
}

func TestRateLimiterFallbackMode(t *testing.T) {
	config := Config{
		IPLimitPerMin:   5,
		BurstMultiplier: 1,
	}

	limiter := newFallbackLimiter(config)
	defer limiter.Close()

	ctx := context.Background()

	// Burst capacity is max(limit*multiplier, 5) = 5, so the first 5
	// requests pass and the 6th is blocked.
	for i := 0; i < 5; i++ {
		result, err := limiter.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestRateLimiterIndependentIPs(t *testing.T) {
	config := Config{
		IPLimitPerMin:   3,
		BurstMultiplier: 1,
	}

	limiter := newFallbackLimiter(config)
	defer limiter.Close()

	ctx := context.Background()

	// Exhaust one IP's allowance (burst floor is 5).
	for i := 0; i < 5; i++ {
		_, err := limiter.AllowIP(ctx, "10.0.0.1")
		require.NoError(t, err)
	}
	result, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// A different IP is unaffected.
	result, err = limiter.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimiterStats(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	defer limiter.Close()

	_, err := limiter.AllowIP(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.Equal(t, 1, stats["fallback_limiters"].(int))
	assert.Equal(t, 60, stats["ip_limit_per_min"].(int))
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter := newFallbackLimiter(DefaultConfig())
	defer limiter.Close()

	ctx := context.Background()

	done := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func(n int) {
			for j := 0; j < 10; j++ {
				_, err := limiter.AllowIP(ctx, fmt.Sprintf("10.0.0.%d", n%5))
				assert.NoError(t, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 50; i++ {
		<-done
	}
}

func TestIPRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := Config{
		IPLimitPerMin:   5,
		BurstMultiplier: 1,
	}
	limiter := newFallbackLimiter(config)
	defer limiter.Close()

	r := gin.New()
	r.Use(limiter.IPRateLimitMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// The first 5 requests pass with rate limit headers.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	}

	// The 6th is rejected with a Retry-After hint.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
