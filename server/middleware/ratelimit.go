package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/streamfetch/errors"
)

// HeaderListenerID names the bridge listener a request is made for.
const HeaderListenerID = "X-Listener-ID"

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	// per key. Zero disables rate limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	// KeyFunc extracts the rate limit key from a request. Defaults to
	// ListenerKey.
	KeyFunc func(*gin.Context) string `yaml:"-" mapstructure:"-"`
}

// Enabled reports whether a limit is configured.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerMinute > 0
}

// RateLimit returns a Gin middleware that applies per-key sliding-window
// rate limiting. Stale keys are swept until ctx ends.
func RateLimit(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ListenerKey
	}

	rl := newSlidingWindow(cfg.RequestsPerMinute, time.Minute)
	go rl.cleanup(ctx, 5*time.Minute)

	return func(c *gin.Context) {
		key := cfg.KeyFunc(c)
		if !rl.allow(key, time.Now()) {
			appErr := apperrors.RateLimited(key)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}

// ListenerKey keys requests by bridge listener, falling back to client IP.
func ListenerKey(c *gin.Context) string {
	if id := c.GetHeader(HeaderListenerID); id != "" {
		return "listener:" + id
	}
	return c.ClientIP()
}

type slidingWindow struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{requests: make(map[string][]time.Time), limit: limit, window: window}
}

func (rl *slidingWindow) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := filterByTime(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func (rl *slidingWindow) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := now.Add(-rl.window)
	for key, times := range rl.requests {
		valid := filterByTime(times, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func (rl *slidingWindow) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	var result []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
