package cluster

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoMoreConnections is returned when a node pool is at capacity and
// every conn is checked out.
var ErrNoMoreConnections = errors.New("cluster: connection pool exhausted")

// connPool holds idle connections to one node, split into shards so
// unrelated goroutines do not serialize on one queue.
type connPool struct {
	shards []chan *Conn
	total  atomic.Int32
	max    int32

	mu     sync.Mutex
	next   int
	closed bool
}

func newConnPool(maxConns, shardCount int) *connPool {
	if shardCount < 1 {
		shardCount = 1
	}
	if maxConns < 1 {
		maxConns = 1
	}
	perShard := maxConns / shardCount
	if perShard < 1 {
		perShard = 1
	}
	p := &connPool{
		shards: make([]chan *Conn, shardCount),
		max:    int32(maxConns),
	}
	for i := range p.shards {
		p.shards[i] = make(chan *Conn, perShard)
	}
	return p
}

// Get returns an idle connection, or nil with reserve held when the
// caller should dial a new one. ErrNoMoreConnections means at capacity.
func (p *connPool) Get(idleTimeout time.Duration) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	start := p.next
	p.next = (p.next + 1) % len(p.shards)
	p.mu.Unlock()

	for i := 0; i < len(p.shards); i++ {
		shard := p.shards[(start+i)%len(p.shards)]
		for {
			select {
			case conn := <-shard:
				if conn.IdleExpired(idleTimeout) {
					conn.Close()
					p.total.Add(-1)
					continue
				}
				return conn, nil
			default:
			}
			break
		}
	}

	// Nothing idle; reserve a slot for a fresh dial.
	for {
		n := p.total.Load()
		if n >= p.max {
			return nil, ErrNoMoreConnections
		}
		if p.total.CompareAndSwap(n, n+1) {
			return nil, nil
		}
	}
}

// Put returns a connection to its shard, closing it when the pool is
// full or shut down.
func (p *connPool) Put(conn *Conn) {
	p.mu.Lock()
	closed := p.closed
	shard := p.shards[p.next%len(p.shards)]
	p.mu.Unlock()

	if closed {
		p.Discard(conn)
		return
	}
	select {
	case shard <- conn:
	default:
		p.Discard(conn)
	}
}

// Discard drops a checked-out connection without returning it.
func (p *connPool) Discard(conn *Conn) {
	if conn != nil {
		conn.Close()
	}
	p.total.Add(-1)
}

// DropReservation releases a slot reserved by Get when the dial failed.
func (p *connPool) DropReservation() {
	p.total.Add(-1)
}

// SweepIdle closes connections idle past the timeout.
func (p *connPool) SweepIdle(idleTimeout time.Duration) {
	if idleTimeout <= 0 {
		return
	}
	for _, shard := range p.shards {
		n := len(shard)
		for i := 0; i < n; i++ {
			select {
			case conn := <-shard:
				if conn.IdleExpired(idleTimeout) {
					conn.Close()
					p.total.Add(-1)
					continue
				}
				select {
				case shard <- conn:
				default:
					conn.Close()
					p.total.Add(-1)
				}
			default:
			}
		}
	}
}

// Close drains and closes everything idle. Checked-out conns close on
// Put.
func (p *connPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for _, shard := range p.shards {
	drain:
		for {
			select {
			case conn := <-shard:
				conn.Close()
				p.total.Add(-1)
			default:
				break drain
			}
		}
	}
}

// InUse approximates the number of live connections.
func (p *connPool) InUse() int {
	return int(p.total.Load())
}
