package session

import (
	"sync"
	"time"
)

// RateLimiter silently drops messages arriving faster than a minimum
// interval per user. Entries are evicted by Sweep so the map stays bounded.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastSeen map[int64]time.Time
	now      func() time.Time
}

// NewRateLimiter creates a limiter with the given minimum interval between
// accepted messages. A zero or negative interval accepts everything.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		lastSeen: make(map[int64]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a message from the user may be processed now, and
// records the acceptance time when it may. Messages separated by exactly the
// interval are accepted.
func (r *RateLimiter) Allow(userID int64) bool {
	if r.interval <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.lastSeen[userID]; ok && now.Sub(last) < r.interval {
		return false
	}
	r.lastSeen[userID] = now
	return true
}

// Sweep drops entries older than maxAge and returns how many were removed.
func (r *RateLimiter) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for userID, last := range r.lastSeen {
		if last.Before(cutoff) {
			delete(r.lastSeen, userID)
			removed++
		}
	}
	return removed
}
