package policy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// AuthMode selects how connections authenticate to the cluster.
type AuthMode int

const (
	// AuthNone skips authentication entirely.
	AuthNone AuthMode = iota
	// AuthInternal sends the user with a bcrypt-hashed password.
	AuthInternal
	// AuthExternal is for LDAP-style servers; TLS is required because
	// the cleartext password crosses the session once.
	AuthExternal
	// AuthPKI binds identity to the client TLS certificate; no
	// password flows.
	AuthPKI
)

// ClientPolicy configures the cluster-wide behavior of a client.
type ClientPolicy struct {
	User     string
	Password string
	AuthMode AuthMode

	// Timeout bounds initial connection and node-validation requests.
	Timeout time.Duration

	// IdleTimeout retires pooled connections that sat unused this long.
	IdleTimeout time.Duration

	// TendInterval is the cluster refresh period.
	TendInterval time.Duration

	MaxConnsPerNode  int
	ConnPoolsPerNode int

	// MaxFailedTends retires a node after this many consecutive
	// unreachable tend cycles.
	MaxFailedTends int

	// UseServicesAlternate reads services-alternate instead of
	// services for peer discovery.
	UseServicesAlternate bool

	// ClusterName, when set, rejects nodes reporting a different name.
	ClusterName string

	// IPMap translates node-announced addresses, for NAT setups.
	IPMap map[string]string

	// RackIDs enables rack-aware reads together with
	// Replica = ReplicaPreferRack.
	RackIDs []int

	// TLS enables TLS when non-nil. Use LoadTLS to build one from
	// certificate files.
	TLS *tls.Config
}

// NewClientPolicy returns production defaults.
func NewClientPolicy() *ClientPolicy {
	return &ClientPolicy{
		Timeout:          30 * time.Second,
		IdleTimeout:      55 * time.Second,
		TendInterval:     1 * time.Second,
		MaxConnsPerNode:  100,
		ConnPoolsPerNode: 1,
		MaxFailedTends:   5,
	}
}

// LoadTLS builds a TLS config from certificate files. certFile and
// keyFile may be empty for server-auth-only setups; caFile may be
// empty to trust the system pool.
func LoadTLS(certFile, keyFile, caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("policy: load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("policy: load ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("policy: no certificates in %s", caFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// RequiresAuthentication reports whether connections must log in.
func (p *ClientPolicy) RequiresAuthentication() bool {
	switch p.AuthMode {
	case AuthInternal, AuthExternal:
		return p.User != ""
	case AuthPKI:
		return true
	default:
		return false
	}
}
