package aero

import "sync"

// Result is one element of a record stream: a record or a terminal
// error from the node that produced it.
type Result struct {
	Record *Record
	Err    error
}

// Recordset streams scan and query results. Consume Results() until it
// closes; Close() aborts early and unblocks the producers.
type Recordset struct {
	results chan *Result
	done    chan struct{}

	taskID    uint64
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newRecordset(queueSize int, taskID uint64) *Recordset {
	if queueSize <= 0 {
		queueSize = 5000
	}
	return &Recordset{
		results: make(chan *Result, queueSize),
		done:    make(chan struct{}),
		taskID:  taskID,
	}
}

// Results is the stream. It closes when every node finished or the
// recordset was closed.
func (rs *Recordset) Results() <-chan *Result { return rs.results }

// TaskID identifies the job on the server.
func (rs *Recordset) TaskID() uint64 { return rs.taskID }

// Close aborts the stream. Safe to call more than once and
// concurrently with consumption; pending producers drop their output
// and exit.
func (rs *Recordset) Close() {
	rs.closeOnce.Do(func() { close(rs.done) })
}

// IsClosed reports whether Close was called.
func (rs *Recordset) IsClosed() bool {
	select {
	case <-rs.done:
		return true
	default:
		return false
	}
}

// send delivers one result, giving up when the consumer closed the
// recordset.
func (rs *Recordset) send(res *Result) error {
	select {
	case <-rs.done:
		return ErrRecordsetClosed
	case rs.results <- res:
		return nil
	}
}

// sendError is send for terminal node failures.
func (rs *Recordset) sendError(err error) {
	_ = rs.send(&Result{Err: err})
}

// addProducer registers one streaming goroutine; the results channel
// closes after the last one calls producerDone.
func (rs *Recordset) addProducer()  { rs.wg.Add(1) }
func (rs *Recordset) producerDone() { rs.wg.Done() }

// closeWhenDone closes the results channel after all producers exit.
// Called once, after every producer is registered.
func (rs *Recordset) closeWhenDone() {
	go func() {
		rs.wg.Wait()
		close(rs.results)
	}()
}
