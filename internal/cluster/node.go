package cluster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phamduclong/aerogo/internal/wire"
)

// Node is one discovered cluster member.
type Node struct {
	name    string
	host    *Host
	version wire.Version

	cluster *Cluster
	pool    *connPool
	breaker *Breaker

	active      atomic.Bool
	failedTends atomic.Int32

	partitionGen atomic.Int64
	rebalanceGen atomic.Int64
	peersGen     atomic.Int64

	mu      sync.RWMutex
	aliases []*Host
	racks   map[string]int

	sessionMu      sync.Mutex
	sessionToken   []byte
	sessionExpires time.Time
}

func newNode(c *Cluster, name string, host *Host, version wire.Version) *Node {
	n := &Node{
		name:    name,
		host:    host,
		version: version,
		cluster: c,
		pool:    newConnPool(c.policy.MaxConnsPerNode, c.policy.ConnPoolsPerNode),
		breaker: NewBreaker(5, 10*time.Second),
		racks:   map[string]int{},
	}
	n.active.Store(true)
	n.partitionGen.Store(-1)
	n.peersGen.Store(-1)
	n.rebalanceGen.Store(-1)
	return n
}

func (n *Node) Name() string          { return n.name }
func (n *Node) Host() *Host           { return n.host }
func (n *Node) Version() wire.Version { return n.version }
func (n *Node) String() string        { return fmt.Sprintf("%s %s", n.name, n.host) }

// Active reports whether the node takes traffic.
func (n *Node) Active() bool { return n.active.Load() && n.breaker.Healthy() }

// Healthy is Active without tripping half-open probes.
func (n *Node) Healthy() bool { return n.active.Load() }

func (n *Node) Rack(namespace string) (int, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	id, ok := n.racks[namespace]
	return id, ok
}

func (n *Node) setRack(namespace string, id int) {
	n.mu.Lock()
	n.racks[namespace] = id
	n.mu.Unlock()
}

func (n *Node) addAlias(h *Host) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.aliases {
		if a.Equals(h) {
			return
		}
	}
	n.aliases = append(n.aliases, h)
}

// GetConnection returns a pooled connection, dialing and
// authenticating a fresh one when the pool has capacity.
func (n *Node) GetConnection(ctx context.Context) (*Conn, error) {
	if !n.active.Load() {
		return nil, fmt.Errorf("cluster: node %s retired", n.name)
	}
	conn, err := n.pool.Get(n.cluster.policy.IdleTimeout)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		return conn, nil
	}

	conn, err = n.dial(ctx)
	if err != nil {
		n.pool.DropReservation()
		return nil, err
	}
	return conn, nil
}

func (n *Node) dial(ctx context.Context) (*Conn, error) {
	p := n.cluster.policy
	conn, err := Dial(ctx, n.host, p.TLS, p.Timeout)
	if err != nil {
		return nil, err
	}
	if p.RequiresAuthentication() {
		deadline := time.Now().Add(p.Timeout)
		token := n.session()
		if token == nil {
			token, expires, lerr := login(conn, p, deadline)
			if lerr != nil {
				conn.Close()
				return nil, lerr
			}
			n.setSession(token, expires)
		} else if err := authenticate(conn, p.User, token, deadline); err != nil {
			// Stale session; log in again on this socket.
			token, expires, lerr := login(conn, p, deadline)
			if lerr != nil {
				conn.Close()
				return nil, lerr
			}
			n.setSession(token, expires)
		}
	}
	return conn, nil
}

// PutConnection returns a healthy connection to the pool.
func (n *Node) PutConnection(conn *Conn) {
	if !n.active.Load() {
		n.pool.Discard(conn)
		return
	}
	n.pool.Put(conn)
}

// CloseConnection drops a connection whose stream state is unknown.
func (n *Node) CloseConnection(conn *Conn) {
	n.pool.Discard(conn)
}

// RecordSuccess and RecordFailure feed the node breaker.
func (n *Node) RecordSuccess() { n.breaker.Success() }
func (n *Node) RecordFailure() { n.breaker.Failure() }

// AllowRequest consults the breaker before routing a command here.
func (n *Node) AllowRequest() bool { return n.breaker.Allow() }

// RequestInfo runs info commands over a pooled connection.
func (n *Node) RequestInfo(ctx context.Context, names ...string) (map[string]string, error) {
	conn, err := n.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	m, err := requestInfo(conn, names, time.Now().Add(n.cluster.policy.Timeout))
	if err != nil {
		n.CloseConnection(conn)
		return nil, err
	}
	n.PutConnection(conn)
	return m, nil
}

func (n *Node) session() []byte {
	n.sessionMu.Lock()
	defer n.sessionMu.Unlock()
	if n.sessionToken == nil {
		return nil
	}
	if !n.sessionExpires.IsZero() && time.Now().After(n.sessionExpires) {
		n.sessionToken = nil
		return nil
	}
	return n.sessionToken
}

func (n *Node) setSession(token []byte, expires time.Time) {
	n.sessionMu.Lock()
	n.sessionToken = token
	n.sessionExpires = expires
	n.sessionMu.Unlock()
}

// SweepIdleConnections is called from the tend loop.
func (n *Node) SweepIdleConnections() {
	n.pool.SweepIdle(n.cluster.policy.IdleTimeout)
}

// Retire stops traffic and closes pooled connections.
func (n *Node) Retire() {
	n.active.Store(false)
	n.pool.Close()
}

// requestInfo speaks the info sub-protocol on an open connection.
func requestInfo(conn *Conn, names []string, deadline time.Time) (map[string]string, error) {
	req := wire.BuildInfoRequest(names)
	if err := conn.Write(req, deadline); err != nil {
		return nil, err
	}
	msgType, body, err := conn.ReadProto(deadline)
	if err != nil {
		return nil, err
	}
	if msgType != wire.MsgTypeInfo {
		return nil, fmt.Errorf("cluster: info reply has message type %d", msgType)
	}
	return wire.ParseInfoResponse(body)
}
