package server

import (
	"sync"
	"sync/atomic"
)

// connState tracks where a connection is in its lifecycle.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosing
	stateClosed
)

// registry owns the id→connection map. It is mutated by the accept loop and
// by connection actors and read by facade calls from the host thread, so all
// access goes through one mutex. The id allocator is monotonic for the life
// of the registry and never reset, even across stop/start, so a stale id held
// by the host can never address a newer peer.
type registry struct {
	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]*conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[uint64]*conn)}
}

// allocate returns the next connection id, starting at 1.
func (r *registry) allocate() uint64 {
	return r.nextID.Add(1)
}

func (r *registry) insert(c *conn) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

func (r *registry) get(id uint64) (*conn, bool) {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	return c, ok
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

func (r *registry) count() int {
	r.mu.Lock()
	n := len(r.conns)
	r.mu.Unlock()
	return n
}

// snapshot returns the live connections at one instant. Callers must not hold
// the registry lock while acting on them.
func (r *registry) snapshot() []*conn {
	r.mu.Lock()
	out := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.Unlock()
	return out
}
