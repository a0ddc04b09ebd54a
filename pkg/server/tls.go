package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

// TLSConfig enables HTTPS on the admin server.
type TLSConfig struct {
	// CertFile is the PEM-encoded certificate.
	CertFile string

	// KeyFile is the PEM-encoded private key.
	KeyFile string

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string
}

// ToTLSConfig loads the key pair and builds a crypto/tls configuration.
func (c *TLSConfig) ToTLSConfig() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil, errors.New("cert_file and key_file are both required for TLS")
	}

	minVersion, err := parseTLSVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	if cert.Leaf != nil && time.Now().After(cert.Leaf.NotAfter) {
		return nil, fmt.Errorf("certificate expired on %s", cert.Leaf.NotAfter.Format(time.RFC3339))
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q: must be '1.2' or '1.3'", v)
	}
}
