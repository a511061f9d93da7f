// Package registry tracks which identity owns which live transport
// handle. It is the single source of truth for "who is reachable right
// now" on the relay.
package registry

import (
	"sync"
	"time"
)

// Conn is the minimal transport handle the registry deals in. Sessions
// implement it; nothing here depends on the underlying transport.
type Conn interface {
	// Send delivers one raw frame. It must return promptly; slow or
	// dead peers surface as an error, not a stall.
	Send(data []byte) error
	// Close tears the connection down with a reason.
	Close(reason string) error
}

// Listener is notified after every successful registry mutation.
// The presence tracker implements it.
type Listener interface {
	Connected(identity string, at time.Time)
	Disconnected(identity string, at time.Time)
}

type entry struct {
	conn        Conn
	connectedAt time.Time
}

// Registry maps an identity to exactly one live connection. A new
// connection for the same identity supersedes the previous handle.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]entry
	listener Listener
}

// New creates an empty registry. listener may be nil.
func New(listener Listener) *Registry {
	return &Registry{
		entries:  make(map[string]entry),
		listener: listener,
	}
}

// Register stores conn as the live handle for identity, replacing any
// prior handle. The superseded handle is returned so the caller can
// close it. Registering the same handle twice is a no-op with no
// superseded handle.
//
// The listener is notified under the registry lock. Notifications
// therefore arrive in mutation order, so presence can never report
// offline for an identity the registry still holds.
func (r *Registry) Register(identity string, conn Conn) (superseded Conn) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.entries[identity]
	if had && prev.conn == conn {
		return nil
	}
	r.entries[identity] = entry{conn: conn, connectedAt: now}

	if r.listener != nil {
		r.listener.Connected(identity, now)
	}
	if had {
		return prev.conn
	}
	return nil
}

// Unregister removes the entry for identity only if conn is the handle
// currently stored. This keeps a stale connection's close event from
// evicting a newer connection during a rapid reconnect. Reports whether
// an entry was removed.
func (r *Registry) Unregister(identity string, conn Conn) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[identity]
	if !ok || cur.conn != conn {
		return false
	}
	delete(r.entries, identity)

	if r.listener != nil {
		r.listener.Disconnected(identity, now)
	}
	return true
}

// Lookup returns the live handle for identity, if any.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
