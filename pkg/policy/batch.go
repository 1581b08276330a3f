package policy

import "github.com/phamduclong/aerogo/pkg/exp"

// BatchPolicy tunes multi-key commands.
type BatchPolicy struct {
	BasePolicy

	// MaxConcurrentNodes caps parallel per-node sub-batches; zero
	// dispatches to all involved nodes at once.
	MaxConcurrentNodes int

	// AllowInline lets the server run in-memory namespace requests on
	// the service thread.
	AllowInline bool

	// AllowInlineSSD extends AllowInline to SSD namespaces.
	AllowInlineSSD bool

	// RespondAllKeys forces a per-key response even after a hard
	// sub-batch error.
	RespondAllKeys bool
}

func NewBatchPolicy() *BatchPolicy {
	return &BatchPolicy{
		BasePolicy:  *NewBasePolicy(),
		AllowInline: true,
	}
}

// ReadTouchTTL controls whether a batch read resets the record TTL.
// Valid values are DontReset (-1), ServerDefault (0) and percentages
// 1..=100; anything else normalizes to ServerDefault.
type ReadTouchTTL int

const (
	ReadTouchTTLDontReset     ReadTouchTTL = -1
	ReadTouchTTLServerDefault ReadTouchTTL = 0
)

// ReadTouchTTLPercent builds a percentage value.
func ReadTouchTTLPercent(p int) ReadTouchTTL {
	return ReadTouchTTL(p).Normalize()
}

// Normalize maps out-of-range values to ServerDefault.
func (t ReadTouchTTL) Normalize() ReadTouchTTL {
	if t == ReadTouchTTLDontReset {
		return t
	}
	if t >= 1 && t <= 100 {
		return t
	}
	return ReadTouchTTLServerDefault
}

// BatchReadPolicy overrides read attributes per batch record.
type BatchReadPolicy struct {
	FilterExpression *exp.Expression
	ReadTouchTTL     ReadTouchTTL
}

// BatchWritePolicy overrides write attributes per batch record.
type BatchWritePolicy struct {
	FilterExpression   *exp.Expression
	RecordExistsAction RecordExistsAction
	GenerationPolicy   GenerationPolicy
	CommitLevel        CommitLevel
	Generation         uint32
	Expiration         Expiration
	SendKey            bool
	DurableDelete      bool
}

// BatchDeletePolicy overrides delete attributes per batch record.
type BatchDeletePolicy struct {
	FilterExpression *exp.Expression
	GenerationPolicy GenerationPolicy
	CommitLevel      CommitLevel
	Generation       uint32
	SendKey          bool
	DurableDelete    bool
}

// BatchUDFPolicy overrides UDF-apply attributes per batch record.
type BatchUDFPolicy struct {
	FilterExpression *exp.Expression
	CommitLevel      CommitLevel
	Expiration       Expiration
	SendKey          bool
	DurableDelete    bool
}
