// Package tickws provides an embeddable WebSocket server for hosts that poll once per frame.
//
// The library targets callers that live in a strictly single-threaded world
// (game engines, plugin ABIs, embedded scripting VMs) where the host loop runs
// at a fixed tick rate, must never block on network I/O, and must never be
// called back into from a foreign goroutine. All networking runs on internal
// goroutines; the host observes it exclusively by draining a bounded event
// queue from its own thread, once per tick.
//
// # Architecture
//
// Each server is addressed through an opaque Handle managed by a Runtime
// (see the ws subpackage). The Runtime validates every handle on every call,
// so a stale or destroyed handle yields ErrInvalidHandle instead of undefined
// behavior. Inside, a server owns one accept loop and one connection actor
// per accepted socket. Actors translate wire frames into events and drain a
// per-connection command channel fed by the host's Send/SendText/Disconnect
// calls.
//
// There are no callbacks. Connection, disconnection, inbound messages and
// connection-scoped errors all arrive as Event values from Poll.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/tickws"
//	    "github.com/luciancaetano/tickws/ws"
//	)
//
//	rt := ws.NewRuntime()
//	defer rt.Close()
//
//	h, err := rt.Create(tickws.Config{
//	    BindAddress:  "127.0.0.1",
//	    Port:         0, // ephemeral, read back with rt.Port(h)
//	    Subprotocols: []string{"mcp", "chat"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Start(h); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Inside the host's frame loop:
//	for {
//	    ev, ok, err := rt.Poll(h)
//	    if err != nil || !ok {
//	        break
//	    }
//	    switch ev.Type {
//	    case tickws.EventMessageReceived:
//	        rt.Send(h, ev.Connection, ev.Data) // echo
//	    case tickws.EventClientDisconnected:
//	        // forget ev.Connection
//	    }
//	}
//
// # Lifecycle
//
// A handle moves through Created → Running → Stopped → Destroyed. Start is
// valid from Created or Stopped and binds the listening socket (resolving an
// ephemeral port when Port is 0). Stop cancels the accept loop and gives
// every live connection a bounded grace period to complete a close handshake;
// stragglers are aborted and reported as Error events. Destroy implies Stop
// and invalidates the handle permanently. Connection ids are 64-bit and
// monotonically increasing for the life of the server value; they are never
// reused, even across a Stop/Start cycle, so a stale id held by the host can
// never silently address a new peer.
//
// # Ordering
//
// Events for one connection are observed in the order that connection
// produced them, and every accepted connection yields exactly one
// EventClientConnected followed eventually by exactly one
// EventClientDisconnected. No ordering is promised across different
// connections. Commands submitted for one connection are written to the wire
// in submission order.
//
// # Subprotocols
//
// Negotiation is strict: when the server is configured with a non-empty
// subprotocol list, the first configured name the client also offered is
// selected; a client that offers none of the configured names is rejected
// during the handshake and no events are emitted for it.
//
// # TLS
//
// Set TLSCertPath and TLSKeyPath to PEM files to serve wss. Setting only one
// of the two is rejected at Create with ErrInvalidParam; unreadable or
// invalid material is rejected with ErrTLS. TLS is never silently downgraded
// to plaintext.
//
// # Rate Limiting
//
// Each connection carries an optional token-bucket limiter for inbound
// messages (DefaultRateLimit: 100 msgs/s, burst 200). A peer that exceeds it
// is closed with close code 1008 (Policy Violation) after an Error event.
//
// # Logging
//
// The library is silent by default. Supply a *zap.Logger in Config to get
// structured logs tagged with a per-server instance id.
package tickws
