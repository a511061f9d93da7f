package messenger

import (
	"testing"
	"time"
)

func TestNextDelayGrowsAndCaps(t *testing.T) {
	r := &reconnector{
		baseDelay:   time.Second,
		maxDelay:    10 * time.Second,
		maxAttempts: 0,
	}

	prev := time.Duration(0)
	for i := 0; i < 6; i++ {
		d := r.nextDelay()
		if d < prev && d != r.maxDelay {
			t.Fatalf("attempt %d delay %v shrank below %v before hitting the cap", i, d, prev)
		}
		if d > r.maxDelay {
			t.Fatalf("attempt %d delay %v exceeds cap %v", i, d, r.maxDelay)
		}
		prev = d
	}
	// By the sixth attempt the exponential part alone is 32s, so the
	// cap must be in force.
	if d := r.nextDelay(); d != r.maxDelay {
		t.Fatalf("delay after many attempts = %v, want cap %v", d, r.maxDelay)
	}
}

func TestShouldReconnectBudget(t *testing.T) {
	r := &reconnector{baseDelay: time.Millisecond, maxDelay: time.Second, maxAttempts: 3}

	for i := 0; i < 3; i++ {
		if !r.shouldReconnect() {
			t.Fatalf("budget exhausted after %d attempts, want 3", i)
		}
		r.nextDelay()
	}
	if r.shouldReconnect() {
		t.Fatalf("reconnect allowed past the attempt budget")
	}
}

func TestUnlimitedAttempts(t *testing.T) {
	r := &reconnector{baseDelay: time.Millisecond, maxDelay: time.Second}
	for i := 0; i < 50; i++ {
		r.nextDelay()
	}
	if !r.shouldReconnect() {
		t.Fatalf("zero maxAttempts should never exhaust")
	}
}

func TestAttemptsResetAfterStableConnection(t *testing.T) {
	r := &reconnector{baseDelay: time.Second, maxDelay: time.Minute, maxAttempts: 5}
	for i := 0; i < 5; i++ {
		r.nextDelay()
	}
	if r.shouldReconnect() {
		t.Fatalf("budget not exhausted")
	}

	// A connection that stayed up long enough restores the budget.
	r.connectedAt = time.Now().Add(-2 * time.Minute)
	r.nextDelay()
	if !r.shouldReconnect() {
		t.Fatalf("stable connection did not reset the attempt counter")
	}
}
