package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window, per-key request counter held in memory.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

// NewRateLimiter allows max requests per key in each window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*rateLimitEntry),
	}
}

// Allow counts one request for key. When the key is over its limit it
// returns false and how long until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.windowStart) >= l.window {
		l.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, 0
	}
	entry.count++
	if entry.count > l.max {
		return false, entry.windowStart.Add(l.window).Sub(now)
	}
	return true, 0
}

// sweep drops entries whose window ended long ago.
func (l *RateLimiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) > l.window*2 {
			delete(l.entries, key)
		}
	}
}

// RateLimit returns middleware that limits requests per client IP to
// maxRequests within window. Over the limit, requests fail with 429 and a
// Retry-After header.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	limiter := NewRateLimiter(maxRequests, window)

	go func() {
		for {
			time.Sleep(time.Minute)
			limiter.sweep()
		}
	}()

	return limiter.Middleware()
}

// Middleware exposes the limiter as echo middleware keyed by c.RealIP().
func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retry := l.Allow(c.RealIP())
			if !ok {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many attempts. Please try again later.")
			}
			return next(c)
		}
	}
}
