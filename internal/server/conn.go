package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/tickws"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a peer may stay silent before it is presumed dead.
	pongWait = 60 * time.Second
	// pingPeriod is the keepalive interval; must be under pongWait.
	pingPeriod = 54 * time.Second
	// maxMessageSize caps one inbound message.
	maxMessageSize = 10 * 1024 * 1024
	// commandQueueSize bounds the per-connection host→wire queue.
	commandQueueSize = 256
)

type commandKind int

const (
	cmdBinary commandKind = iota
	cmdText
	cmdClose
)

// command is one host request addressed to this connection.
type command struct {
	kind commandKind
	data []byte
}

// conn is the actor owning one accepted socket. The read pump and write pump
// run on their own goroutines; the host reaches the actor only through the
// command queue.
type conn struct {
	id          uint64
	ws          *websocket.Conn
	remoteAddr  string
	subprotocol string

	commands  chan command
	closeReq  chan struct{}
	closeOnce sync.Once

	state          atomic.Int32
	closeInitiated atomic.Bool

	limiter *rate.Limiter
	events  *eventQueue
	log     *zap.Logger

	causeMu    sync.Mutex
	writeCause error
}

func newConn(id uint64, ws *websocket.Conn, rl *tickws.RateLimit, events *eventQueue, log *zap.Logger) *conn {
	var limiter *rate.Limiter
	if rl != nil && rl.Enabled {
		limiter = rate.NewLimiter(rl.MessagesPerSecond, rl.Burst)
	}
	c := &conn{
		id:          id,
		ws:          ws,
		remoteAddr:  ws.RemoteAddr().String(),
		subprotocol: ws.Subprotocol(),
		commands:    make(chan command, commandQueueSize),
		closeReq:    make(chan struct{}),
		limiter:     limiter,
		events:      events,
		log: log.With(
			zap.Uint64("connection_id", id),
			zap.String("remote_addr", ws.RemoteAddr().String()),
		),
	}
	c.state.Store(int32(stateConnecting))
	return c
}

func (c *conn) setState(s connState) { c.state.Store(int32(s)) }

func (c *conn) getState() connState { return connState(c.state.Load()) }

// enqueueSend accepts one outbound message from the host thread without
// blocking. Acceptance only means the command is queued; a later write
// failure surfaces as an EventError.
func (c *conn) enqueueSend(data []byte, text bool) error {
	if c.getState() != stateOpen {
		return tickws.ErrConnectionClosed
	}
	kind := cmdBinary
	if text {
		kind = cmdText
	}
	select {
	case c.commands <- command{kind: kind, data: data}:
		return nil
	default:
		return tickws.ErrSendFailed
	}
}

// requestClose asks the actor to perform a graceful close after the commands
// already queued have been written.
func (c *conn) requestClose() {
	c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing))
	select {
	case c.commands <- command{kind: cmdClose}:
	default:
		// Queue full; skip the pending writes and close directly.
		c.signalClose()
	}
}

func (c *conn) signalClose() {
	c.closeOnce.Do(func() { close(c.closeReq) })
}

func (c *conn) setWriteCause(err error) {
	c.causeMu.Lock()
	if c.writeCause == nil {
		c.writeCause = err
	}
	c.causeMu.Unlock()
}

func (c *conn) getWriteCause() error {
	c.causeMu.Lock()
	defer c.causeMu.Unlock()
	return c.writeCause
}

// run drives the connection to completion and returns the failure that ended
// it, or nil for a clean close. Exactly one of the callers' terminal events
// follows, never emitted from here.
func (c *conn) run(ctx context.Context) error {
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(ctx)
	}()

	cause := c.readPump(ctx)

	c.signalClose()
	<-writeDone
	c.ws.Close()
	c.setState(stateClosed)

	if cause == nil {
		cause = c.getWriteCause()
	}
	return cause
}

// readPump translates inbound frames into events until the connection ends.
// It returns the read failure distinct from a clean close, or nil.
func (c *conn) readPump(ctx context.Context) error {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.isCleanClose(ctx, err) {
				return nil
			}
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Warn("rate limit exceeded")
			c.events.push(ctx, tickws.Event{
				Type:       tickws.EventError,
				Connection: c.id,
				Error:      "rate limit exceeded",
			})
			c.sendClose(websocket.ClosePolicyViolation, "rate limit exceeded")
			return nil
		}

		switch mt {
		case websocket.TextMessage, websocket.BinaryMessage:
			c.events.push(ctx, tickws.Event{
				Type:       tickws.EventMessageReceived,
				Connection: c.id,
				Data:       data,
				Text:       mt == websocket.TextMessage,
			})
		}
	}
}

// isCleanClose reports whether a read error is an expected end of the
// connection rather than a fault worth an EventError.
func (c *conn) isCleanClose(ctx context.Context, err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	// The socket was torn down by our own close path or by shutdown.
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	if c.closeInitiated.Load() || ctx.Err() != nil {
		return true
	}
	return false
}

// writePump serializes all wire writes: queued commands, keepalive pings and
// close frames. It owns the socket teardown so the read pump always unblocks.
func (c *conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case cmd := <-c.commands:
			if cmd.kind == cmdClose {
				c.sendClose(websocket.CloseNormalClosure, "")
				return
			}
			mt := websocket.BinaryMessage
			if cmd.kind == cmdText {
				mt = websocket.TextMessage
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(mt, cmd.data); err != nil {
				c.setWriteCause(err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setWriteCause(err)
				return
			}

		case <-c.closeReq:
			c.sendClose(websocket.CloseNormalClosure, "")
			return

		case <-ctx.Done():
			c.sendClose(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// sendClose performs the outgoing half of the close handshake. Only the
// first caller writes a frame; the peer must see exactly one close code.
func (c *conn) sendClose(code int, reason string) {
	if !c.closeInitiated.CompareAndSwap(false, true) {
		return
	}
	c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing))
	msg := websocket.FormatCloseMessage(code, reason)
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
