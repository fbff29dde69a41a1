package realtime

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	t0 := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !rl.Allow(t0.Add(time.Duration(i) * 100 * time.Millisecond)) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(t0.Add(500 * time.Millisecond)) {
		t.Fatalf("fourth event inside the window must be denied")
	}
	// The first event leaves the window at t0+1s.
	if !rl.Allow(t0.Add(time.Second)) {
		t.Fatalf("event after the oldest expired should be allowed")
	}
	if rl.Allow(t0.Add(time.Second + 50*time.Millisecond)) {
		t.Fatalf("window is full again")
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if len(rl.ring) != rateLimitEvents || rl.window != rateLimitWindow {
		t.Fatalf("unexpected defaults: %d %v", len(rl.ring), rl.window)
	}
}
