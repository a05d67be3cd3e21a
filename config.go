package tickws

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config describes one server instance. It is copied at Create and immutable
// afterwards.
type Config struct {
	// BindAddress is the local interface to listen on, e.g. "127.0.0.1".
	BindAddress string

	// Port is the TCP port to listen on; 0 requests an ephemeral port
	// assigned by the OS and readable after Start.
	Port uint16

	// Subprotocols is the ordered list of accepted WebSocket
	// subprotocols. When non-empty, negotiation is strict: a client that
	// offers none of these names is rejected during the handshake.
	Subprotocols []string

	// TLSCertPath and TLSKeyPath point to PEM-encoded certificate and
	// private key material. Both must be set, or neither.
	TLSCertPath string
	TLSKeyPath  string

	// RateLimit configures per-connection inbound message rate limiting.
	// Nil applies DefaultRateLimit.
	RateLimit *RateLimit

	// CheckOrigin validates the Origin header of handshake requests.
	// Nil allows all origins, which is appropriate for non-browser hosts;
	// set a policy when serving browsers.
	CheckOrigin func(r *http.Request) bool

	// Logger receives structured logs. Nil keeps the server silent.
	Logger *zap.Logger
}

// Validate rejects malformed configuration with ErrInvalidParam. TLS material
// is only checked for co-presence here; loadability is checked at Create.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BindAddress) == "" {
		return fmt.Errorf("%w: bind address is empty", ErrInvalidParam)
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return fmt.Errorf("%w: tls certificate and key paths must both be set", ErrInvalidParam)
	}
	for _, p := range c.Subprotocols {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty subprotocol name", ErrInvalidParam)
		}
	}
	return nil
}

// RateLimit defines the per-connection inbound message budget.
type RateLimit struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimit returns the default rate limit configuration.
// Allows 100 messages per second with burst of 200.
func DefaultRateLimit() *RateLimit {
	return &RateLimit{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled.
func NoRateLimit() *RateLimit {
	return &RateLimit{
		Enabled: false,
	}
}

// SplitSubprotocols parses the comma-separated subprotocol form used by
// embedding ABIs ("mcp, chat") into a list, trimming whitespace and dropping
// empty entries.
func SplitSubprotocols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
