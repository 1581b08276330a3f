package cluster

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/phamduclong/aerogo/internal/wire"
)

// ErrConnectionClosed is returned on use after Close.
var ErrConnectionClosed = errors.New("cluster: connection closed")

// Conn is one socket to a node. Not safe for concurrent use; a conn is
// owned by exactly one command between pool Get and Put.
type Conn struct {
	raw      net.Conn
	lastUsed time.Time
	closed   bool
}

// Dial opens a socket, wrapping it in TLS when cfg is non-nil.
func Dial(ctx context.Context, host *Host, cfg *tls.Config, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", host.String())
	if err != nil {
		return nil, fmt.Errorf("cluster: dial %s: %w", host, err)
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	if cfg != nil {
		serverName := host.TLSName
		if serverName == "" {
			serverName = host.Name
		}
		tlsCfg := cfg.Clone()
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = serverName
		}
		tconn := tls.Client(raw, tlsCfg)
		if err := tconn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("cluster: tls handshake with %s: %w", host, err)
		}
		raw = tconn
	}

	return &Conn{raw: raw, lastUsed: time.Now()}, nil
}

// Write sends the whole buffer before the deadline.
func (c *Conn) Write(data []byte, deadline time.Time) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.raw.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if _, err := c.raw.Write(data); err != nil {
		return err
	}
	c.lastUsed = time.Now()
	return nil
}

// ReadProto reads one full protocol frame and returns its message type
// and body.
func (c *Conn) ReadProto(deadline time.Time) (byte, []byte, error) {
	if c.closed {
		return 0, nil, ErrConnectionClosed
	}
	if err := c.raw.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}

	var hdr [wire.ProtoHeaderSize]byte
	if _, err := io.ReadFull(c.raw, hdr[:]); err != nil {
		return 0, nil, err
	}
	msgType, size, err := wire.ParseProtoHeader(hdr[:])
	if err != nil {
		return 0, nil, err
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(c.raw, body); err != nil {
		return 0, nil, err
	}
	c.lastUsed = time.Now()
	return msgType, body, nil
}

// ReadFully fills p from the socket.
func (c *Conn) ReadFully(p []byte, deadline time.Time) error {
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.raw.SetReadDeadline(deadline); err != nil {
		return err
	}
	if _, err := io.ReadFull(c.raw, p); err != nil {
		return err
	}
	c.lastUsed = time.Now()
	return nil
}

// IdleExpired reports whether the conn sat unused longer than timeout.
func (c *Conn) IdleExpired(timeout time.Duration) bool {
	return timeout > 0 && time.Since(c.lastUsed) > timeout
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.raw.Close()
}
