package e2e_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/tickws"
	"github.com/luciancaetano/tickws/ws"
)

// Helper function to create a WebSocket dialer
func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
}

// startServer creates and starts a server on an ephemeral port and returns
// the runtime, the handle and the ws:// URL to dial.
func startServer(t *testing.T, cfg tickws.Config) (*ws.Runtime, ws.Handle, string) {
	t.Helper()

	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}

	rt := ws.NewRuntime()
	h, err := rt.Create(cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := rt.Start(h); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	port, err := rt.Port(h)
	if err != nil {
		t.Fatalf("Port() error = %v", err)
	}
	if port == 0 {
		t.Fatal("Port() = 0 after Start")
	}

	return rt, h, fmt.Sprintf("ws://%s:%d/", cfg.BindAddress, port)
}

// nextEvent polls until one event arrives or the timeout passes.
func nextEvent(t *testing.T, rt *ws.Runtime, h ws.Handle, timeout time.Duration) (tickws.Event, bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ev, ok, err := rt.Poll(h)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if ok {
			return ev, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return tickws.Event{}, false
}

// mustEvent waits for the next event and asserts its type.
func mustEvent(t *testing.T, rt *ws.Runtime, h ws.Handle, want tickws.EventType) tickws.Event {
	t.Helper()

	ev, ok := nextEvent(t, rt, h, 5*time.Second)
	if !ok {
		t.Fatalf("timed out waiting for %v event", want)
	}
	if ev.Type != want {
		t.Fatalf("event type = %v, want %v", ev.Type, want)
	}
	return ev
}

// assertNoEvent asserts the queue stays empty for the given window.
func assertNoEvent(t *testing.T, rt *ws.Runtime, h ws.Handle, window time.Duration) {
	t.Helper()

	if ev, ok := nextEvent(t, rt, h, window); ok {
		t.Fatalf("unexpected %v event for connection %d", ev.Type, ev.Connection)
	}
}

// closeGracefully performs the client half of the close handshake, waiting
// for the server's close reply (or a short timeout) before dropping TCP.
func closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	conn.Close()
}
