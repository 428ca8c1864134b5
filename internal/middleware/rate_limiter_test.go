package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mycloud/config"
	"mycloud/internal/middleware"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerIP(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/d/token", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001").Code)

	limited := call("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000").Code)
}

func TestRateLimiter_IgnoresForwardedHeaders(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/d/token", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("2.2.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, call("3.3.3.3"))
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, IdleTTL: 60}).
		WithClock(func() time.Time { return now })

	for i := 0; i < 50; i++ {
		limiter.Allow(fmt.Sprintf("10.1.0.%d", i))
	}
	assert.Equal(t, 50, limiter.Len())
	assert.False(t, limiter.Allow("10.1.0.1"))

	now = now.Add(30 * time.Second)
	limiter.Allow("10.2.0.1")
	assert.Equal(t, 51, limiter.Len())

	now = now.Add(45 * time.Second)
	assert.True(t, limiter.Allow("10.1.0.1"), "забытый ip получает новый bucket")
	assert.Equal(t, 2, limiter.Len())
}
