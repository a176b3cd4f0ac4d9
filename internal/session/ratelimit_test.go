package session

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base

	r := NewRateLimiter(2 * time.Second)
	r.now = func() time.Time { return current }

	if !r.Allow(1) {
		t.Fatal("first message should be accepted")
	}

	current = base.Add(time.Second)
	if r.Allow(1) {
		t.Error("message inside the interval should be dropped")
	}

	// Exactly the interval after the last accepted message.
	current = base.Add(2 * time.Second)
	if !r.Allow(1) {
		t.Error("message exactly at the interval boundary should be accepted")
	}

	// A different user is tracked independently.
	if !r.Allow(2) {
		t.Error("first message from another user should be accepted")
	}
}

func TestRateLimiterDropDoesNotResetWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base

	r := NewRateLimiter(2 * time.Second)
	r.now = func() time.Time { return current }

	r.Allow(1)

	current = base.Add(1500 * time.Millisecond)
	if r.Allow(1) {
		t.Fatal("message inside the interval should be dropped")
	}

	// The drop must not push the window forward: 2s after the accepted
	// message the user may speak again.
	current = base.Add(2 * time.Second)
	if !r.Allow(1) {
		t.Error("window was reset by a dropped message")
	}
}

func TestRateLimiterZeroInterval(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(0)
	for i := 0; i < 5; i++ {
		if !r.Allow(1) {
			t.Fatal("zero interval must accept everything")
		}
	}
}

func TestRateLimiterSweep(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base

	r := NewRateLimiter(2 * time.Second)
	r.now = func() time.Time { return current }

	r.Allow(1)
	current = base.Add(10 * time.Minute)
	r.Allow(2)

	current = base.Add(20 * time.Minute)
	if removed := r.Sweep(15 * time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, ok := r.lastSeen[1]; ok {
		t.Error("user 1 should have been evicted")
	}
	if _, ok := r.lastSeen[2]; !ok {
		t.Error("user 2 should still be tracked")
	}
}
