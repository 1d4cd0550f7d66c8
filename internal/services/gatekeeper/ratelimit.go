package gatekeeper

import (
	"context"
	"sync"
	"time"
)

// rateWindow is the sliding-window span for the per-(provider, client IP)
// webhook rate limit.
const rateWindow = 60 * time.Second

// maxRateKeys caps the number of tracked (provider, client IP) keys so an
// attacker rotating source addresses cannot grow the map without bound.
const maxRateKeys = 10000

// RateLimiter admits or rejects one webhook request for a rate key.
// Implementations: in-process sliding window (default) and a Redis
// sorted-set window for multi-instance deployments.
type RateLimiter interface {
	// Allow reports whether the request at now is within the per-minute cap
	// for key. An admitted request is counted against the window.
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// slidingWindow tracks one key's admission timestamps (unix seconds)
type slidingWindow struct {
	entries    []int64
	lastAccess time.Time
}

// MemoryRateLimiter is the in-process sliding-window limiter. Windows are
// per instance; in multi-instance deployments the cap becomes a per-instance
// quota.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
}

// NewMemoryRateLimiter creates an in-process limiter with the given
// per-minute cap
func NewMemoryRateLimiter(perMinute int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*slidingWindow),
		limit:   perMinute,
	}
}

// Allow trims entries older than the window, rejects at the cap and records
// the admission otherwise.
func (l *MemoryRateLimiter) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[key]
	if !ok {
		if len(l.windows) >= maxRateKeys {
			l.evictOldest()
		}
		window = &slidingWindow{}
		l.windows[key] = window
	}
	window.lastAccess = now

	cutoff := now.Add(-rateWindow).Unix()
	trimmed := window.entries[:0]
	for _, ts := range window.entries {
		if ts > cutoff {
			trimmed = append(trimmed, ts)
		}
	}
	window.entries = trimmed

	if len(window.entries) >= l.limit {
		return false, nil
	}
	window.entries = append(window.entries, now.Unix())
	return true, nil
}

// evictOldest drops the least recently touched key. Caller holds the lock.
func (l *MemoryRateLimiter) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
		first      = true
	)
	for key, window := range l.windows {
		if first || window.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = window.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(l.windows, oldestKey)
	}
}
