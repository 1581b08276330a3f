package query

import "fmt"

// PartitionCount is fixed by the server.
const PartitionCount = 4096

// PartitionID routes a 20-byte key digest to its partition.
func PartitionID(digest [20]byte) int {
	return (int(digest[0]) | int(digest[1])<<8 | int(digest[2])<<16) % PartitionCount
}

// PartitionStatus tracks one partition across a resumable scan or
// query. Digest and BVal carry the resume cursor the server reported
// last.
type PartitionStatus struct {
	ID     int
	BVal   int64
	Digest [20]byte

	// HasDigest marks that Digest holds a valid cursor.
	HasDigest bool

	// Retry marks the partition as not finished; the next attempt
	// includes it.
	Retry bool

	// Sequence counts replica fallbacks for this partition.
	Sequence int
}

// PartitionFilter selects the partitions of a scan or query and holds
// their per-partition progress between attempts.
type PartitionFilter struct {
	Begin int
	Count int

	// Digest, when set, resumes the first partition after this cursor.
	Digest    [20]byte
	HasDigest bool

	// Partitions is the live status; populated on first use and kept
	// across retries so a caller can resume an interrupted job.
	Partitions []*PartitionStatus

	// Done is set when every selected partition completed.
	Done bool
}

// NewPartitionFilterAll selects every partition.
func NewPartitionFilterAll() *PartitionFilter {
	return &PartitionFilter{Begin: 0, Count: PartitionCount}
}

// NewPartitionFilterByID selects a single partition.
func NewPartitionFilterByID(id int) *PartitionFilter {
	return &PartitionFilter{Begin: id, Count: 1}
}

// NewPartitionFilterByRange selects count partitions starting at begin.
func NewPartitionFilterByRange(begin, count int) *PartitionFilter {
	return &PartitionFilter{Begin: begin, Count: count}
}

// NewPartitionFilterByDigest selects the partition owning the digest
// and resumes after it.
func NewPartitionFilterByDigest(digest [20]byte) *PartitionFilter {
	return &PartitionFilter{
		Begin:     PartitionID(digest),
		Count:     1,
		Digest:    digest,
		HasDigest: true,
	}
}

// Validate checks the selected range.
func (pf *PartitionFilter) Validate() error {
	if pf.Begin < 0 || pf.Begin >= PartitionCount {
		return fmt.Errorf("query: partition begin %d out of range", pf.Begin)
	}
	if pf.Count < 1 || pf.Begin+pf.Count > PartitionCount {
		return fmt.Errorf("query: partition count %d out of range", pf.Count)
	}
	return nil
}

// EnsureStatuses populates Partitions on first use, seeding the first
// partition with the resume digest when present.
func (pf *PartitionFilter) EnsureStatuses() {
	if pf.Partitions != nil {
		return
	}
	pf.Partitions = make([]*PartitionStatus, pf.Count)
	for i := range pf.Partitions {
		pf.Partitions[i] = &PartitionStatus{ID: pf.Begin + i, Retry: true}
	}
	if pf.HasDigest {
		pf.Partitions[0].Digest = pf.Digest
		pf.Partitions[0].HasDigest = true
	}
}

// Pending returns the partitions still marked for retry.
func (pf *PartitionFilter) Pending() []*PartitionStatus {
	var out []*PartitionStatus
	for _, ps := range pf.Partitions {
		if ps.Retry {
			out = append(out, ps)
		}
	}
	return out
}

// MarkAttempt clears retry flags before a round; the response parser
// re-marks the partitions the server did not finish.
func (pf *PartitionFilter) MarkAttempt() {
	for _, ps := range pf.Partitions {
		ps.Retry = false
	}
}

// Finish recomputes Done from the retry flags.
func (pf *PartitionFilter) Finish() {
	for _, ps := range pf.Partitions {
		if ps.Retry {
			pf.Done = false
			return
		}
	}
	pf.Done = true
}
