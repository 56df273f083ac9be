// Package registry holds the in-memory mapping from device identifier to its
// active transport connection. It is the only state shared across connection
// goroutines; every method is a pure map operation, no I/O happens under the
// lock.
package registry

import "sync"

// Conn is a live device transport handle. The registry treats it as an opaque
// identity: it never reads from the connection and never closes it, the
// transport layer owns that.
type Conn interface {
	Close() error
}

type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register inserts or replaces the mapping for deviceID. A prior connection
// for the same device becomes orphaned; its eventual close must not evict the
// replacement (see Remove).
func (r *Registry) Register(deviceID string, conn Conn) {
	r.mu.Lock()
	r.conns[deviceID] = conn
	r.mu.Unlock()
}

func (r *Registry) Lookup(deviceID string) (Conn, bool) {
	r.mu.RLock()
	c, ok := r.conns[deviceID]
	r.mu.RUnlock()
	return c, ok
}

// Remove deletes the mapping only while conn is still the current entry, so a
// stale connection's terminal cleanup is a no-op once the device has
// re-registered on a new connection. Idempotent.
func (r *Registry) Remove(deviceID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[deviceID]; ok && cur == conn {
		delete(r.conns, deviceID)
		return true
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
