package e2e_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/tickws"
)

// TestSendOrderFIFO tests that the peer observes frames in submission order.
func TestSendOrderFIFO(t *testing.T) {
	t.Parallel()

	rt, h, url := startServer(t, tickws.Config{})

	conn, _, err := newDialer().Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer closeGracefully(conn)

	id := mustEvent(t, rt, h, tickws.EventClientConnected).Connection

	const n = 100
	for i := 0; i < n; i++ {
		if err := rt.Send(h, id, []byte(fmt.Sprintf("msg-%03d", i))); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < n; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() %d error = %v", i, err)
		}
		if want := fmt.Sprintf("msg-%03d", i); string(data) != want {
			t.Fatalf("frame %d = %q, want %q", i, data, want)
		}
	}
}

// TestReceiveOrderFIFO tests per-connection event ordering toward the host.
func TestReceiveOrderFIFO(t *testing.T) {
	t.Parallel()

	rt, h, url := startServer(t, tickws.Config{})

	conn, _, err := newDialer().Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer closeGracefully(conn)

	id := mustEvent(t, rt, h, tickws.EventClientConnected).Connection

	const n = 100
	for i := 0; i < n; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte(fmt.Sprintf("in-%03d", i))); err != nil {
			t.Fatalf("WriteMessage(%d) error = %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		ev := mustEvent(t, rt, h, tickws.EventMessageReceived)
		if ev.Connection != id {
			t.Fatalf("event %d connection = %d, want %d", i, ev.Connection, id)
		}
		if want := fmt.Sprintf("in-%03d", i); string(ev.Data) != want {
			t.Fatalf("event %d data = %q, want %q", i, ev.Data, want)
		}
	}
}

// TestConnectedPrecedesDisconnected tests the exactly-once pairing for many
// short-lived connections.
func TestConnectedPrecedesDisconnected(t *testing.T) {
	t.Parallel()

	rt, h, url := startServer(t, tickws.Config{})

	const clients = 10
	for i := 0; i < clients; i++ {
		conn, _, err := newDialer().Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() %d error = %v", i, err)
		}
		closeGracefully(conn)
	}

	connected := make(map[uint64]int)
	disconnected := make(map[uint64]int)
	deadline := time.Now().Add(10 * time.Second)
	for len(disconnected) < clients && time.Now().Before(deadline) {
		ev, ok := nextEvent(t, rt, h, time.Second)
		if !ok {
			continue
		}
		switch ev.Type {
		case tickws.EventClientConnected:
			connected[ev.Connection]++
		case tickws.EventClientDisconnected:
			if connected[ev.Connection] == 0 {
				t.Fatalf("connection %d disconnected before connecting", ev.Connection)
			}
			disconnected[ev.Connection]++
		}
	}

	if len(connected) != clients || len(disconnected) != clients {
		t.Fatalf("saw %d connects and %d disconnects, want %d of each",
			len(connected), len(disconnected), clients)
	}
	for id, n := range connected {
		if n != 1 {
			t.Errorf("connection %d produced %d ClientConnected events, want 1", id, n)
		}
	}
	for id, n := range disconnected {
		if n != 1 {
			t.Errorf("connection %d produced %d ClientDisconnected events, want 1", id, n)
		}
	}
}
