package tickws

import "errors"

// Sentinel errors returned by Runtime and server operations. Callers should
// match with errors.Is; most are returned wrapped with extra detail.
var (
	// ErrInvalidHandle is returned when a handle is unknown or destroyed,
	// or when a connection id does not address a live connection.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrInvalidParam is returned when a configuration value is rejected
	// at Create.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrAlreadyRunning is returned by Start on a server that is running.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrNotRunning is returned by Stop on a server that is not running.
	ErrNotRunning = errors.New("server not running")

	// ErrBindFailed is returned by Start when the listening socket cannot
	// be bound.
	ErrBindFailed = errors.New("bind failed")

	// ErrTLS is returned when TLS certificate or key material cannot be
	// loaded or is invalid.
	ErrTLS = errors.New("tls configuration error")

	// ErrRuntime is returned for internal runtime failures, such as
	// operating on a closed Runtime.
	ErrRuntime = errors.New("runtime error")

	// ErrSendFailed is returned when a command cannot be accepted because
	// the connection's outbound queue is full. Write failures after
	// acceptance surface asynchronously as EventError.
	ErrSendFailed = errors.New("send failed")

	// ErrConnectionClosed is returned when a command addresses a
	// connection that is closing or already closed.
	ErrConnectionClosed = errors.New("connection closed")
)
