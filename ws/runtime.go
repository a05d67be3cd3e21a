// Package ws exposes the handle-based facade of tickws. A Runtime owns a
// table of servers addressed by opaque handles and validates every handle on
// every call, so a stale handle yields tickws.ErrInvalidHandle instead of a
// dangling reference into the engine.
package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/luciancaetano/tickws"
	"github.com/luciancaetano/tickws/internal/server"
)

// Handle is an opaque caller-held reference to one server instance.
type Handle uint64

// Runtime is the explicit lifecycle object bridging the host's synchronous
// world and the engine. Create one per embedding, tear it down with Close.
// All methods are safe from the host thread and never block on network I/O;
// Poll must only be called from the single thread that logically owns the
// handle.
type Runtime struct {
	mu      sync.Mutex
	servers map[Handle]*server.Server
	next    Handle
	closed  bool
}

// NewRuntime returns an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{servers: make(map[Handle]*server.Server)}
}

// Create validates cfg, loads TLS material and allocates a handle. The
// listening socket is not bound until Start.
func (rt *Runtime) Create(cfg tickws.Config) (Handle, error) {
	srv, err := server.New(cfg)
	if err != nil {
		return 0, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return 0, fmt.Errorf("%w: runtime is closed", tickws.ErrRuntime)
	}
	rt.next++
	h := rt.next
	rt.servers[h] = srv
	return h, nil
}

func (rt *Runtime) lookup(h Handle) (*server.Server, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	srv, ok := rt.servers[h]
	if !ok {
		return nil, fmt.Errorf("%w: unknown server handle %d", tickws.ErrInvalidHandle, h)
	}
	return srv, nil
}

// Start binds the server's listening socket and launches its accept loop.
func (rt *Runtime) Start(h Handle) error {
	srv, err := rt.lookup(h)
	if err != nil {
		return err
	}
	return srv.Start()
}

// Stop shuts the server down gracefully. The handle stays valid and can be
// started again.
func (rt *Runtime) Stop(h Handle) error {
	srv, err := rt.lookup(h)
	if err != nil {
		return err
	}
	return srv.Stop()
}

// Destroy stops the server if it is running and invalidates the handle. Any
// later use of the handle returns tickws.ErrInvalidHandle.
func (rt *Runtime) Destroy(h Handle) error {
	rt.mu.Lock()
	srv, ok := rt.servers[h]
	if ok {
		delete(rt.servers, h)
	}
	rt.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown server handle %d", tickws.ErrInvalidHandle, h)
	}
	if err := srv.Stop(); err != nil && !isNotRunning(err) {
		return err
	}
	return nil
}

// Poll dequeues at most one pending event. ok is false when the queue is
// empty; the host should stop draining for this tick.
func (rt *Runtime) Poll(h Handle) (ev tickws.Event, ok bool, err error) {
	srv, err := rt.lookup(h)
	if err != nil {
		return tickws.Event{}, false, err
	}
	ev, ok = srv.Poll()
	return ev, ok, nil
}

// Send queues one binary message for a connection. The payload is copied
// before Send returns; the caller keeps ownership of data.
func (rt *Runtime) Send(h Handle, connection uint64, data []byte) error {
	srv, err := rt.lookup(h)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return srv.Send(connection, buf)
}

// SendText queues one text message for a connection.
func (rt *Runtime) SendText(h Handle, connection uint64, text string) error {
	srv, err := rt.lookup(h)
	if err != nil {
		return err
	}
	return srv.SendText(connection, text)
}

// Disconnect requests a graceful close of one connection; the
// ClientDisconnected event follows asynchronously.
func (rt *Runtime) Disconnect(h Handle, connection uint64) error {
	srv, err := rt.lookup(h)
	if err != nil {
		return err
	}
	return srv.Disconnect(connection)
}

// Port returns the bound port, or 0 when the server is not running.
func (rt *Runtime) Port(h Handle) (uint16, error) {
	srv, err := rt.lookup(h)
	if err != nil {
		return 0, err
	}
	return srv.Port(), nil
}

// ConnectionCount returns a recent snapshot of the live connection count.
func (rt *Runtime) ConnectionCount(h Handle) (int, error) {
	srv, err := rt.lookup(h)
	if err != nil {
		return 0, err
	}
	return srv.ConnectionCount(), nil
}

// Info returns a human-readable "address:port" summary.
func (rt *Runtime) Info(h Handle) (string, error) {
	srv, err := rt.lookup(h)
	if err != nil {
		return "", err
	}
	return srv.Info(), nil
}

// Close destroys every remaining handle and marks the runtime unusable.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	servers := rt.servers
	rt.servers = make(map[Handle]*server.Server)
	rt.closed = true
	rt.mu.Unlock()

	for _, srv := range servers {
		if err := srv.Stop(); err != nil && !isNotRunning(err) {
			return err
		}
	}
	return nil
}

func isNotRunning(err error) bool {
	return errors.Is(err, tickws.ErrNotRunning)
}

// AllOrigins returns a CheckOrigin function that allows all origins. Fine for
// non-browser hosts; do not use when serving browsers in production.
func AllOrigins() func(r *http.Request) bool {
	return func(*http.Request) bool { return true }
}
