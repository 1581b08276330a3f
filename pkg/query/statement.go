// Package query holds the client-side description of scans and
// secondary-index queries: the statement, index filters and partition
// selection for resumable partition scans.
package query

import (
	"encoding/binary"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/phamduclong/aerogo/pkg/value"
)

// Statement describes a scan or query. A nil Filter means a full scan
// of the namespace (and set, when given).
type Statement struct {
	Namespace string
	SetName   string

	// IndexName optionally pins the query to a named secondary index.
	IndexName string

	// BinNames limits the returned bins; empty returns all.
	BinNames []string

	Filter *Filter

	// TaskID identifies the job on the server. Zero asks the client to
	// derive one.
	TaskID uint64

	packageName  string
	functionName string
	functionArgs []value.Value
	returnData   bool
}

// NewStatement builds a statement over a namespace and set.
func NewStatement(namespace, set string, bins ...string) *Statement {
	return &Statement{Namespace: namespace, SetName: set, BinNames: bins, returnData: true}
}

// SetAggregateFunction attaches a Lua stream UDF. When returnData is
// false the server runs the aggregation for its side effects only.
func (s *Statement) SetAggregateFunction(packageName, functionName string, args []value.Value, returnData bool) {
	s.packageName = packageName
	s.functionName = functionName
	s.functionArgs = args
	s.returnData = returnData
}

// Aggregation returns the attached stream UDF, if any.
func (s *Statement) Aggregation() (packageName, functionName string, args []value.Value, ok bool) {
	return s.packageName, s.functionName, s.functionArgs, s.packageName != ""
}

// IsScan reports whether the statement has no index predicate.
func (s *Statement) IsScan() bool { return s.Filter == nil }

var taskCounter atomic.Uint64

// PrepareTaskID fills in and returns the server task id. An id already
// set by the caller is kept, so a job can be tracked across retries.
func (s *Statement) PrepareTaskID() uint64 {
	if s.TaskID != 0 {
		return s.TaskID
	}
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[0:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
	binary.LittleEndian.PutUint64(seed[16:24], taskCounter.Add(1))
	copy(seed[24:], s.Namespace)
	id := murmur3.Sum64(seed[:])
	if id == 0 {
		id = 1
	}
	s.TaskID = id
	return id
}
