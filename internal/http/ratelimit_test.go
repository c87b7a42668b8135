package http

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsBurstThenBlocks(t *testing.T) {
	rl := newRateLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("4th request within the minute should be blocked")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other clients must have their own bucket")
	}
	if rl.activeClients() != 2 {
		t.Errorf("activeClients() = %d, want 2", rl.activeClients())
	}
}

func TestRateLimiter_CleanupStaleEntries(t *testing.T) {
	rl := newRateLimiter(10)
	defer rl.stop()

	rl.allow("10.0.0.1")
	if removed := rl.cleanupStaleEntries(time.Now().Add(-time.Minute)); removed != 0 {
		t.Errorf("fresh entry removed: %d", removed)
	}
	if removed := rl.cleanupStaleEntries(time.Now().Add(time.Minute)); removed != 1 {
		t.Errorf("stale entry not removed: %d", removed)
	}
	if rl.activeClients() != 0 {
		t.Errorf("activeClients() = %d, want 0", rl.activeClients())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1)
	rl.stop()
	rl.stop()
}
