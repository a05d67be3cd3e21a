package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luciancaetano/tickws"
)

// shutdownGrace bounds how long Stop waits for connection actors to finish a
// close handshake before aborting them.
const shutdownGrace = 5 * time.Second

// Server supervises one listener and its connection actors. All methods are
// safe to call from the host thread; none of them block on network I/O.
type Server struct {
	cfg      tickws.Config
	log      *zap.Logger
	tlsConf  *tls.Config
	events   *eventQueue
	reg      *registry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	running bool
	httpSrv *http.Server
	cancel  context.CancelFunc
	actors  *actorGate

	port atomic.Uint32
}

// actorGate tracks live connection actors. The mutex orders enter against
// shut, so once Stop has shut the gate no new actor can slip past its wait.
type actorGate struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// enter registers one actor; it fails once the gate is shut.
func (g *actorGate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *actorGate) leave() { g.wg.Done() }

// shut refuses further actors. Already-entered actors are unaffected; wait
// for them with wait.
func (g *actorGate) shut() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

func (g *actorGate) wait() {
	g.wg.Wait()
}

// New validates cfg and loads TLS material eagerly so configuration failures
// surface synchronously, before any socket is bound.
func New(cfg tickws.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = tickws.DefaultRateLimit()
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("server_id", uuid.NewString()))

	var tlsConf *tls.Config
	if cfg.TLSCertPath != "" {
		var err error
		if tlsConf, err = loadTLSConfig(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
			return nil, err
		}
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Server{
		cfg:     cfg,
		log:     log,
		tlsConf: tlsConf,
		events:  newEventQueue(),
		reg:     newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    cfg.Subprotocols,
			CheckOrigin:     checkOrigin,
		},
	}, nil
}

// Start binds the listening socket and launches the accept loop. The bound
// port is readable through Port once Start returns.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return tickws.ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(int(s.cfg.Port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", tickws.ErrBindFailed, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if s.tlsConf != nil {
		ln = tls.NewListener(ln, s.tlsConf)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gate := &actorGate{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleUpgrade(ctx, gate, w, r)
	})
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("serve failed", zap.Error(err))
		}
	}()

	s.httpSrv = srv
	s.cancel = cancel
	s.actors = gate
	s.port.Store(uint32(port))
	s.running = true

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// handleUpgrade is the per-socket half of the accept loop: subprotocol
// negotiation, upgrade, registration and actor spawn. Failures here are
// isolated to the one handshake.
func (s *Server) handleUpgrade(ctx context.Context, gate *actorGate, w http.ResponseWriter, r *http.Request) {
	if ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	if len(s.cfg.Subprotocols) > 0 {
		if selectSubprotocol(s.cfg.Subprotocols, websocket.Subprotocols(r)) == "" {
			s.log.Debug("handshake rejected: no acceptable subprotocol",
				zap.Strings("offered", websocket.Subprotocols(r)))
			http.Error(w, "no acceptable subprotocol", http.StatusBadRequest)
			return
		}
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		s.log.Debug("handshake failed", zap.Error(err))
		return
	}

	// Shutdown raced the handshake; the gate refuses new actors once Stop
	// has begun waiting. Drop the socket before it becomes observable.
	if !gate.enter() {
		wsConn.Close()
		return
	}

	id := s.reg.allocate()

	// The connection exists for the host only once its connect event is
	// queued. If the host stalls past the grace period with a full queue,
	// drop the socket unannounced instead, exactly like a rejected
	// handshake, so no orphan disconnect can ever surface.
	if !s.events.pushTerminal(tickws.Event{
		Type:       tickws.EventClientConnected,
		Connection: id,
	}, shutdownGrace) {
		s.log.Warn("event queue full, rejecting connection",
			zap.Uint64("connection_id", id))
		wsConn.Close()
		gate.leave()
		return
	}

	c := newConn(id, wsConn, s.cfg.RateLimit, s.events, s.log)
	c.setState(stateOpen)
	s.reg.insert(c)
	s.log.Info("client connected",
		zap.Uint64("connection_id", id),
		zap.String("remote_addr", c.remoteAddr),
		zap.String("subprotocol", c.subprotocol))

	go func() {
		defer gate.leave()
		s.runConn(ctx, c)
	}()
}

// selectSubprotocol returns the first configured name the client offered,
// or "" when there is no overlap.
func selectSubprotocol(configured, offered []string) string {
	for _, want := range configured {
		for _, got := range offered {
			if want == got {
				return want
			}
		}
	}
	return ""
}

// runConn waits for the actor to terminate, then emits the terminal events
// and drops the connection from the registry. The entry is removed only after
// the disconnect event is enqueued, never before.
func (s *Server) runConn(ctx context.Context, c *conn) {
	cause := c.run(ctx)

	if cause != nil {
		s.log.Error("connection error",
			zap.Uint64("connection_id", c.id), zap.Error(cause))
		s.events.pushTerminal(tickws.Event{
			Type:       tickws.EventError,
			Connection: c.id,
			Error:      cause.Error(),
		}, shutdownGrace)
	}

	if !s.events.pushTerminal(tickws.Event{
		Type:       tickws.EventClientDisconnected,
		Connection: c.id,
	}, shutdownGrace) {
		s.log.Warn("event queue full, disconnect event dropped",
			zap.Uint64("connection_id", c.id))
	}
	s.reg.remove(c.id)

	s.log.Info("client disconnected", zap.Uint64("connection_id", c.id))
}

// Stop cancels the accept loop, runs the close handshake on every live
// connection and waits up to the grace period before aborting stragglers.
// The server can be started again afterwards; connection ids keep counting
// from where they stopped.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return tickws.ErrNotRunning
	}
	s.running = false
	cancel := s.cancel
	srv := s.httpSrv
	gate := s.actors
	s.mu.Unlock()

	s.log.Info("server stopping")

	gate.shut()
	cancel()
	srv.Close()

	done := make(chan struct{})
	go func() {
		gate.wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		for _, c := range s.reg.snapshot() {
			s.log.Warn("aborting connection: shutdown grace period exceeded",
				zap.Uint64("connection_id", c.id))
			s.events.pushTerminal(tickws.Event{
				Type:       tickws.EventError,
				Connection: c.id,
				Error:      "connection aborted: shutdown grace period exceeded",
			}, time.Second)
			c.ws.Close()
		}
		select {
		case <-done:
		case <-time.After(shutdownGrace):
			s.log.Error("connection actors leaked past forced abort")
		}
	}

	s.port.Store(0)
	return nil
}

// Running reports whether the server currently accepts connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Poll dequeues at most one pending event without blocking.
func (s *Server) Poll() (tickws.Event, bool) {
	return s.events.tryPop()
}

// Send queues one binary message for a connection.
func (s *Server) Send(id uint64, data []byte) error {
	return s.send(id, data, false)
}

// SendText queues one text message for a connection.
func (s *Server) SendText(id uint64, text string) error {
	return s.send(id, []byte(text), true)
}

func (s *Server) send(id uint64, data []byte, text bool) error {
	c, ok := s.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection %d", tickws.ErrInvalidHandle, id)
	}
	return c.enqueueSend(data, text)
}

// Disconnect requests a graceful close; the ClientDisconnected event follows
// asynchronously.
func (s *Server) Disconnect(id uint64) error {
	c, ok := s.reg.get(id)
	if !ok {
		return fmt.Errorf("%w: unknown connection %d", tickws.ErrInvalidHandle, id)
	}
	c.requestClose()
	return nil
}

// Port returns the bound port, or 0 when the server is not running.
func (s *Server) Port() uint16 {
	return uint16(s.port.Load())
}

// ConnectionCount returns the number of live connections. The value is a
// snapshot; actors mutate it concurrently.
func (s *Server) ConnectionCount() int {
	return s.reg.count()
}

// Info returns a human-readable "address:port" summary.
func (s *Server) Info() string {
	return fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.Port())
}
