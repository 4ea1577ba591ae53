package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP returns the client address as seen through the forum's reverse
// proxy: first hop of X-Forwarded-For, then X-Real-Ip, then RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ActorKey keys rate limiting by the forum user when identified,
// falling back to the client IP.
func ActorKey(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	return "ip:" + RealIP(r)
}

// bucket counts requests inside one fixed window.
type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window in-memory limiter. Award submissions
// share one instance across handlers.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*bucket
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*bucket)}
}

// Allow records one request for key and reports whether it fits within
// limit for the window. The first request after a key's window lapses
// starts a fresh window.
func (rl *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b := rl.entries[key]
	if b == nil || now.After(b.resetAt) {
		rl.entries[key] = &bucket{count: 1, resetAt: now.Add(window)}
		return true
	}
	b.count++
	return b.count <= limit
}

// Cleanup drops buckets whose window has lapsed, so one-off actors do
// not accumulate forever. Called periodically from main.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.entries {
		if now.After(b.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// RateLimit rejects requests over the limit with 429.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r), limit, window) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
