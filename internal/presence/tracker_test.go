package presence

import (
	"testing"
	"time"
)

func TestUnknownIdentityIsOffline(t *testing.T) {
	tr := NewTracker()
	s := tr.Status("never-seen")
	if s.IsOnline {
		t.Fatalf("unknown identity reported online")
	}
	if !s.LastSeen.IsZero() {
		t.Fatalf("unknown identity has LastSeen %v", s.LastSeen)
	}
}

func TestTransitions(t *testing.T) {
	tr := NewTracker()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)

	tr.Connected("alice", t0)
	if s := tr.Status("alice"); !s.IsOnline {
		t.Fatalf("alice offline after connect")
	}

	tr.Disconnected("alice", t1)
	s := tr.Status("alice")
	if s.IsOnline {
		t.Fatalf("alice online after disconnect")
	}
	if !s.LastSeen.Equal(t1) {
		t.Fatalf("LastSeen = %v, want %v", s.LastSeen, t1)
	}

	// Reconnect keeps the old LastSeen until the next disconnect.
	tr.Connected("alice", t1.Add(time.Minute))
	s = tr.Status("alice")
	if !s.IsOnline {
		t.Fatalf("alice offline after reconnect")
	}
	if !s.LastSeen.Equal(t1) {
		t.Fatalf("reconnect changed LastSeen to %v", s.LastSeen)
	}
}

func TestOnlineCount(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Connected("a", now)
	tr.Connected("b", now)
	tr.Connected("c", now)
	tr.Disconnected("b", now)

	if n := tr.OnlineCount(); n != 2 {
		t.Fatalf("OnlineCount = %d, want 2", n)
	}
}
