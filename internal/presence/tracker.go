// Package presence derives online/offline state from connection
// registry mutations. It carries no transport details, so display and
// API layers can query it without reaching into the registry.
package presence

import (
	"sync"
	"time"
)

// Status is the observable presence of one identity. Identities the
// tracker has never seen report offline with a zero LastSeen.
type Status struct {
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// Tracker is a registry.Listener: Offline --(register)--> Online
// --(unregister)--> Offline, with LastSeen stamped on every transition
// to Offline.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]Status
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]Status)}
}

// Connected marks identity online.
func (t *Tracker) Connected(identity string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.states[identity]
	s.IsOnline = true
	t.states[identity] = s
}

// Disconnected marks identity offline and stamps LastSeen.
func (t *Tracker) Disconnected(identity string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[identity] = Status{IsOnline: false, LastSeen: at}
}

// Status reports the presence of identity.
func (t *Tracker) Status(identity string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[identity]
}

// OnlineCount returns the number of identities currently online.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, s := range t.states {
		if s.IsOnline {
			n++
		}
	}
	return n
}
