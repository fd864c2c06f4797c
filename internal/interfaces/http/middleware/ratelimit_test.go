package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasla/backend/internal/interfaces/http/dto"
)

func newLimitedRouter(t *testing.T, limiter *RateLimiter, keyFn ...func(*gin.Context) string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(limiter, keyFn...))
	r.GET("/api/v1/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimiterAllow(t *testing.T) {
	t.Run("grants up to the limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("mrc-11"), "request %d", i+1)
		}
		assert.False(t, limiter.Allow("mrc-11"))
	})

	t.Run("buckets are independent per key", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("mrc-11"))
		assert.False(t, limiter.Allow("mrc-11"))
		assert.True(t, limiter.Allow("mrc-22"))
	})

	t.Run("window rollover refills the bucket", func(t *testing.T) {
		limiter := NewRateLimiter(1, 20*time.Millisecond)
		defer limiter.Stop()

		assert.True(t, limiter.Allow("mrc-11"))
		assert.False(t, limiter.Allow("mrc-11"))

		time.Sleep(30 * time.Millisecond)
		assert.True(t, limiter.Allow("mrc-11"))
	})
}

func TestRateLimiterRemaining(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)
	defer limiter.Stop()

	assert.Equal(t, 5, limiter.Remaining("mrc-11"), "untouched key reports full limit")

	limiter.Allow("mrc-11")
	limiter.Allow("mrc-11")
	assert.Equal(t, 3, limiter.Remaining("mrc-11"))
}

func TestRateLimiterRemainingAfterRollover(t *testing.T) {
	limiter := NewRateLimiter(2, 20*time.Millisecond)
	defer limiter.Stop()

	limiter.Allow("mrc-11")
	limiter.Allow("mrc-11")
	assert.Equal(t, 0, limiter.Remaining("mrc-11"))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, limiter.Remaining("mrc-11"))
}

func TestRateLimiterConcurrentCallers(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute)
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("mrc-11") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed, "exactly the limit may pass in one window")
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	assert.NotPanics(t, func() {
		limiter.Stop()
		limiter.Stop()
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("passes requests under the limit with headers", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)
		defer limiter.Stop()
		r := newLimitedRouter(t, limiter)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("rejects over-limit requests with the error envelope", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()
		r := newLimitedRouter(t, limiter)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		var body dto.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
		assert.Equal(t, dto.ErrCodeRateLimited, body.Error.Code)
	})

	t.Run("merchant header scopes the bucket", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()
		r := newLimitedRouter(t, limiter)

		first := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		first.Header.Set("X-Merchant-ID", "mrc-11")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, first)
		assert.Equal(t, http.StatusOK, rec.Code)

		// Same merchant is out of tokens.
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, first)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		// A different merchant from the same IP still gets through.
		other := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		other.Header.Set("X-Merchant-ID", "mrc-22")
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, other)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom key extractor", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		defer limiter.Stop()
		byInstance := func(c *gin.Context) string {
			return c.GetHeader("X-Instance-ID")
		}
		r := newLimitedRouter(t, limiter, byInstance)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		req.Header.Set("X-Instance-ID", "wa-main-01")

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}
