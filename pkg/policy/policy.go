// Package policy defines the per-command and per-client tuning knobs.
// Specialized policies embed BasePolicy and add their own fields.
package policy

import (
	"math"
	"time"

	"github.com/phamduclong/aerogo/pkg/exp"
)

// ConsistencyLevel selects how many replicas a read consults.
type ConsistencyLevel int

const (
	ConsistencyOne ConsistencyLevel = iota
	ConsistencyAll
)

// Replica selects which copy of a partition a command addresses.
type Replica int

const (
	// ReplicaMaster always routes to the partition master.
	ReplicaMaster Replica = iota
	// ReplicaSequence tries the master first, then replicas in
	// declared order on retryable failure.
	ReplicaSequence
	// ReplicaPreferRack prefers replicas on the client's racks and
	// falls back to Sequence on miss.
	ReplicaPreferRack
)

// maxRetrySleep caps SleepBetweenRetries.
const maxRetrySleep = time.Duration(math.MaxUint32) * time.Millisecond

// BasePolicy carries the fields common to every command.
type BasePolicy struct {
	// TotalTimeout bounds the whole command including retries.
	// Zero means no total limit.
	TotalTimeout time.Duration

	// SocketTimeout bounds a single send or receive.
	SocketTimeout time.Duration

	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// SleepBetweenRetries is the pause before each retry, capped at
	// 2^32-1 milliseconds.
	SleepBetweenRetries time.Duration

	ConsistencyLevel ConsistencyLevel
	Replica          Replica

	// FilterExpression, when set, gates the command server-side.
	FilterExpression *exp.Expression
}

// NewBasePolicy returns the defaults used when a caller passes nil.
func NewBasePolicy() *BasePolicy {
	return &BasePolicy{
		TotalTimeout:        1 * time.Second,
		SocketTimeout:       30 * time.Second,
		MaxRetries:          2,
		SleepBetweenRetries: 1 * time.Millisecond,
		Replica:             ReplicaSequence,
	}
}

// RetrySleep returns the capped sleep between retries.
func (p *BasePolicy) RetrySleep() time.Duration {
	if p.SleepBetweenRetries > maxRetrySleep {
		return maxRetrySleep
	}
	return p.SleepBetweenRetries
}

// Deadline returns the absolute total deadline, or the zero time when
// unbounded.
func (p *BasePolicy) Deadline(now time.Time) time.Time {
	if p.TotalTimeout <= 0 {
		return time.Time{}
	}
	return now.Add(p.TotalTimeout)
}

// Base lets generic command plumbing reach the embedded policy.
func (p *BasePolicy) Base() *BasePolicy { return p }
