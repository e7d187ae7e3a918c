package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitedEngine(limiter RateLimiter, cfg RateLimitConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(RateLimit(limiter, cfg))
	engine.GET("/api/v1/demo", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func doGet(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestTokenBucketLimiter_BurstThenThrottle(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 3, 0)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("client")
		require.True(t, allowed, "request %d within burst must pass", i)
	}

	allowed, info := limiter.Allow("client")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 3, info.Limit)
	assert.False(t, info.ResetAt.IsZero())
}

func TestTokenBucketLimiter_RefillsOverTime(t *testing.T) {
	// 100 tokens/s so a short sleep refills the bucket.
	limiter := NewTokenBucketLimiter(100, 1, 0)

	allowed, _ := limiter.Allow("client")
	require.True(t, allowed)
	allowed, _ = limiter.Allow("client")
	require.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _ = limiter.Allow("client")
	assert.True(t, allowed, "bucket should refill after waiting")
}

func TestTokenBucketLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, 0)

	allowed, _ := limiter.Allow("a")
	require.True(t, allowed)
	allowed, _ = limiter.Allow("a")
	require.False(t, allowed)

	allowed, _ = limiter.Allow("b")
	assert.True(t, allowed, "key b must not share key a's bucket")
	assert.Equal(t, 2, limiter.BucketCount())
}

func TestTokenBucketLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewTokenBucketLimiter(1, 1, time.Minute)
	limiter.Stop()
	assert.NotPanics(t, func() { limiter.Stop() })
}

func TestRateLimit_SetsHeadersAndRejects(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	cfg := DefaultRateLimitConfig()
	engine := newRateLimitedEngine(limiter, cfg)

	first := doGet(engine, "/api/v1/demo")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	second := doGet(engine, "/api/v1/demo")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "COMMON_007")
	assert.Contains(t, second.Body.String(), "rate limit exceeded")
}

func TestRateLimit_SkipPathsBypassLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	cfg := DefaultRateLimitConfig()
	engine := newRateLimitedEngine(limiter, cfg)

	// Exhaust the bucket on the limited route.
	doGet(engine, "/api/v1/demo")
	require.Equal(t, http.StatusTooManyRequests, doGet(engine, "/api/v1/demo").Code)

	for i := 0; i < 5; i++ {
		rec := doGet(engine, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code, "health probe %d must bypass rate limiting", i)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 1, 0)
	cfg := RateLimitConfig{
		KeyFunc: func(c *gin.Context) string { return c.GetHeader("X-API-Client") },
	}
	engine := newRateLimitedEngine(limiter, cfg)

	get := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/demo", nil)
		req.Header.Set("X-API-Client", client)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get("alpha"))
	assert.Equal(t, http.StatusTooManyRequests, get("alpha"))
	assert.Equal(t, http.StatusOK, get("beta"))
}
