package cluster

import (
	"sync"
	"time"
)

// breakerState tracks whether a node is taking traffic.
type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half_open"
)

// Breaker shields a node that keeps failing commands. After
// failureThreshold consecutive errors the node is skipped for
// openTimeout, then a single probe command decides whether it rejoins.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	openTimeout      time.Duration

	state        breakerState
	failureCount int
	openUntil    time.Time
	probing      bool
}

func NewBreaker(failureThreshold int, openTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if openTimeout <= 0 {
		openTimeout = 10 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		state:            breakerClosed,
	}
}

// Allow reports whether a command may run against the node right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked(time.Now())
	switch b.state {
	case breakerOpen:
		return false
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Success records a completed command.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.state = breakerClosed
	}
	b.failureCount = 0
	b.probing = false
}

// Failure records a failed command and may open the breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.openLocked()
		return
	}
	b.failureCount++
	if b.failureCount >= b.failureThreshold {
		b.openLocked()
	}
}

// Healthy reports whether the breaker is closed.
func (b *Breaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked(time.Now())
	return b.state == breakerClosed
}

func (b *Breaker) refreshLocked(now time.Time) {
	if b.state == breakerOpen && !now.Before(b.openUntil) {
		b.state = breakerHalfOpen
		b.probing = false
	}
}

func (b *Breaker) openLocked() {
	b.state = breakerOpen
	b.openUntil = time.Now().Add(b.openTimeout)
	b.failureCount = 0
	b.probing = false
}
