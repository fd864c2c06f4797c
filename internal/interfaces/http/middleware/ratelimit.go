package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasla/backend/internal/interfaces/http/dto"
)

// RateLimiter is an in-memory fixed-window limiter. Each caller gets a
// bucket of tokens that refills when its window rolls over.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    int
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	remaining   int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
// and starts a background sweeper for idle buckets.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop terminates the background sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// sweep drops buckets that have sat idle for two full windows.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(2 * rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, b := range rl.buckets {
				if now.Sub(b.windowStart) > 2*rl.window {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow consumes a token for key, reporting whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.buckets[key] = &bucket{remaining: rl.limit - 1, windowStart: now}
		return true
	}
	if b.remaining > 0 {
		b.remaining--
		return true
	}
	return false
}

// Remaining reports how many requests key has left in its current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || time.Since(b.windowStart) >= rl.window {
		return rl.limit
	}
	return b.remaining
}

// callerKey scopes the limit per merchant when the header is present,
// otherwise per client IP.
func callerKey(c *gin.Context) string {
	key := c.ClientIP()
	if merchantID := c.GetHeader("X-Merchant-ID"); merchantID != "" {
		key = merchantID + ":" + key
	}
	return key
}

// RateLimit returns middleware that enforces the limiter. A custom key
// extractor may be supplied; by default requests are keyed by merchant
// and client IP.
func RateLimit(limiter *RateLimiter, keyFn ...func(*gin.Context) string) gin.HandlerFunc {
	extract := callerKey
	if len(keyFn) > 0 && keyFn[0] != nil {
		extract = keyFn[0]
	}

	return func(c *gin.Context) {
		key := extract(c)
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
