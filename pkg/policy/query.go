package policy

// ExpectedDuration hints the server scheduler about query lifetime.
type ExpectedDuration int

const (
	// DurationLong is for queries returning many records.
	DurationLong ExpectedDuration = iota
	// DurationShort is for queries expected to return few records in
	// under a second; these skip the server query monitor.
	DurationShort
	// DurationLongRelaxAP relaxes read consistency in AP namespaces.
	DurationLongRelaxAP
)

// QueryPolicy tunes queries and partition queries.
type QueryPolicy struct {
	BasePolicy

	// MaxConcurrentNodes caps parallel per-node sub-queries; zero
	// queries all nodes at once.
	MaxConcurrentNodes int

	// RecordQueueSize is the capacity of the recordset channel.
	RecordQueueSize int

	// RecordsPerSecond throttles the stream globally; zero disables.
	RecordsPerSecond int

	// MaxRecords stops the query after approximately this many
	// records; zero returns everything.
	MaxRecords uint64

	ExpectedDuration ExpectedDuration
}

func NewQueryPolicy() *QueryPolicy {
	return &QueryPolicy{
		BasePolicy:         *NewBasePolicy(),
		MaxConcurrentNodes: 0,
		RecordQueueSize:    5000,
	}
}

// ScanPolicy tunes full-namespace scans. Scans are partition queries
// without a secondary-index filter.
type ScanPolicy struct {
	QueryPolicy

	// ScanPercent survives from servers before 4.9 and is ignored by
	// partition scans.
	//
	// Deprecated: use MaxRecords.
	ScanPercent int
}

func NewScanPolicy() *ScanPolicy {
	return &ScanPolicy{QueryPolicy: *NewQueryPolicy(), ScanPercent: 100}
}
