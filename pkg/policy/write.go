package policy

// RecordExistsAction dictates how a write treats an existing record.
type RecordExistsAction int

const (
	// Update creates or updates; bins are merged.
	Update RecordExistsAction = iota
	// UpdateOnly fails with KeyNotFoundError when the record is absent.
	UpdateOnly
	// Replace creates or replaces the whole record.
	Replace
	// ReplaceOnly replaces and fails when the record is absent.
	ReplaceOnly
	// CreateOnly fails with KeyExistsError when the record exists.
	CreateOnly
)

// GenerationPolicy enables optimistic concurrency on writes.
type GenerationPolicy int

const (
	GenerationNone GenerationPolicy = iota
	// ExpectGenEqual applies the write only when the server generation
	// equals WritePolicy.Generation.
	ExpectGenEqual
	// ExpectGenGreater applies the write only when the server
	// generation is less than WritePolicy.Generation.
	ExpectGenGreater
)

// CommitLevel selects how many replicas must commit before the server
// replies.
type CommitLevel int

const (
	CommitAll CommitLevel = iota
	CommitMaster
)

// Expiration is the record TTL in seconds, with reserved sentinel
// values; it is a raw u32 on the wire so the sentinels can share the
// numeric space.
type Expiration uint32

const (
	// TTLServerDefault applies the namespace default-ttl.
	TTLServerDefault Expiration = 0
	// TTLNeverExpire keeps the record until deleted.
	TTLNeverExpire Expiration = 0xFFFFFFFF
	// TTLDontUpdate rewrites the record without touching its TTL.
	TTLDontUpdate Expiration = 0xFFFFFFFE
)

// Seconds returns an explicit TTL expiration.
func Seconds(s uint32) Expiration { return Expiration(s) }

// WritePolicy tunes single-record and operate() writes.
type WritePolicy struct {
	BasePolicy

	RecordExistsAction RecordExistsAction
	GenerationPolicy   GenerationPolicy
	CommitLevel        CommitLevel

	// Generation is compared under GenerationPolicy.
	Generation uint32

	Expiration Expiration

	// SendKey stores the user key with the record.
	SendKey bool

	// RespondPerEachOp returns a result for every operation of an
	// operate() call instead of only the last per bin.
	RespondPerEachOp bool

	// DurableDelete leaves a tombstone (enterprise servers).
	DurableDelete bool
}

func NewWritePolicy() *WritePolicy {
	return &WritePolicy{BasePolicy: *NewBasePolicy()}
}

// InfoPolicy tunes info-channel requests.
type InfoPolicy struct {
	Timeout int // milliseconds; zero means the client default
}

func NewInfoPolicy() *InfoPolicy {
	return &InfoPolicy{}
}

// AdminPolicy tunes security-protocol requests.
type AdminPolicy struct {
	Timeout int // milliseconds; zero means the client default
}

func NewAdminPolicy() *AdminPolicy {
	return &AdminPolicy{}
}
