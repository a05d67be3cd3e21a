package server

import (
	"crypto/tls"
	"fmt"

	"github.com/luciancaetano/tickws"
)

// loadTLSConfig reads PEM certificate and key material. Failures are wrapped
// in ErrTLS so Create reports them synchronously, never falling back to
// plaintext.
func loadTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tickws.ErrTLS, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
