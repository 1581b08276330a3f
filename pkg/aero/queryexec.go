package aero

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/query"
	"github.com/phamduclong/aerogo/pkg/value"
)

// ScanAll streams every record of the namespace and set.
func (c *Client) ScanAll(ctx context.Context, p *policy.ScanPolicy, namespace, set string, binNames ...string) (*Recordset, error) {
	return c.ScanPartitions(ctx, p, query.NewPartitionFilterAll(), namespace, set, binNames...)
}

// ScanPartitions streams the selected partitions, resuming from the
// cursors the filter carries.
func (c *Client) ScanPartitions(ctx context.Context, p *policy.ScanPolicy, pf *query.PartitionFilter, namespace, set string, binNames ...string) (*Recordset, error) {
	if p == nil {
		p = c.DefaultScanPolicy
	}
	stmt := query.NewStatement(namespace, set, binNames...)
	return c.queryPartitions(ctx, &p.QueryPolicy, stmt, pf)
}

// Query streams the records matching the statement. A statement with
// no index filter is executed as a scan.
func (c *Client) Query(ctx context.Context, p *policy.QueryPolicy, stmt *query.Statement) (*Recordset, error) {
	return c.QueryPartitions(ctx, p, stmt, query.NewPartitionFilterAll())
}

// QueryPartitions is Query restricted to the filter's partitions; the
// filter's statuses are updated as the stream progresses so an
// interrupted job can be resumed with the same filter.
func (c *Client) QueryPartitions(ctx context.Context, p *policy.QueryPolicy, stmt *query.Statement, pf *query.PartitionFilter) (*Recordset, error) {
	if p == nil {
		p = c.DefaultQueryPolicy
	}
	return c.queryPartitions(ctx, p, stmt, pf)
}

// queryJob is the shared state of one scan or query: the statement,
// partition progress, the stream and the global throttles.
type queryJob struct {
	stmt *query.Statement
	qp   *policy.QueryPolicy
	pf   *query.PartitionFilter
	rs   *Recordset

	// limiter throttles emission across all node streams; nil when
	// RecordsPerSecond is zero.
	limiter *rate.Limiter

	// mu guards the partition statuses and the emitted count.
	mu      sync.Mutex
	emitted uint64
}

func (c *Client) queryPartitions(ctx context.Context, p *policy.QueryPolicy, stmt *query.Statement, pf *query.PartitionFilter) (*Recordset, error) {
	if stmt.Namespace == "" {
		return nil, fmt.Errorf("%w: statement namespace required", ErrInvalidArgument)
	}
	if err := pf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !stmt.IsScan() {
		if err := c.checkFeature("partition query", wire.Version.SupportsPartitionQuery); err != nil {
			return nil, err
		}
	}
	pf.EnsureStatuses()

	taskID := stmt.PrepareTaskID()
	rs := newRecordset(p.RecordQueueSize, taskID)
	job := &queryJob{stmt: stmt, qp: p, pf: pf, rs: rs}
	if p.RecordsPerSecond > 0 {
		job.limiter = rate.NewLimiter(rate.Limit(p.RecordsPerSecond), p.RecordsPerSecond)
	}

	var cancel context.CancelFunc
	if deadline := p.Deadline(time.Now()); !deadline.IsZero() {
		ctx, cancel = context.WithDeadline(ctx, deadline)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	rs.addProducer()
	rs.closeWhenDone()
	go func() {
		defer cancel()
		// Closing here lets the watcher below exit once the job is done.
		defer rs.Close()
		c.runQueryJob(ctx, job)
	}()
	go func() {
		// Abort in-flight node streams when the consumer closes early.
		<-rs.done
		cancel()
	}()
	return rs, nil
}

// runQueryJob drives rounds of per-node sub-queries until every
// partition reports done or the retry budget runs out.
func (c *Client) runQueryJob(ctx context.Context, job *queryJob) {
	defer job.rs.producerDone()

	var lastErr error
	for round := 0; round <= job.qp.MaxRetries; round++ {
		if round > 0 {
			select {
			case <-ctx.Done():
				job.rs.sendError(&TimeoutError{Attempts: round, LastErr: lastErr})
				return
			case <-job.rs.done:
				return
			case <-time.After(job.qp.RetrySleep()):
			}
		}

		groups, groupErr := c.groupByMaster(job.stmt.Namespace, job.pf.Pending())
		if len(groups) == 0 {
			lastErr = groupErr
			continue
		}
		job.pf.MarkAttempt()

		perNode := job.nodeRecordBudgets(len(groups))
		g, gctx := errgroup.WithContext(ctx)
		if job.qp.MaxConcurrentNodes > 0 {
			g.SetLimit(job.qp.MaxConcurrentNodes)
		}
		i := 0
		for node, parts := range groups {
			node, parts, budget := node, parts, perNode[i]
			i++
			g.Go(func() error {
				return c.streamNode(gctx, node, job, parts, budget)
			})
		}
		err := g.Wait()
		job.pf.Finish()

		if job.rs.IsClosed() {
			return
		}
		if job.pf.Done || job.limitReached() {
			job.pf.Done = true
			return
		}
		if err != nil {
			lastErr = err
			logger.Debugw("query round failed", "task_id", job.stmt.TaskID, "round", round, "error", err)
		}
	}
	if lastErr != nil {
		job.rs.sendError(lastErr)
	} else if !job.pf.Done {
		job.rs.sendError(&TimeoutError{Attempts: job.qp.MaxRetries + 1})
	}
}

// groupByMaster buckets the pending partitions under their current
// master nodes. Partitions without a routable master stay marked for
// retry.
func (c *Client) groupByMaster(ns string, pending []*query.PartitionStatus) (map[*cluster.Node][]*query.PartitionStatus, error) {
	groups := make(map[*cluster.Node][]*query.PartitionStatus)
	var lastErr error
	for _, ps := range pending {
		node, err := c.cluster.MasterNode(ns, ps.ID)
		if err != nil {
			lastErr = err
			continue
		}
		groups[node] = append(groups[node], ps)
	}
	return groups, lastErr
}

// nodeRecordBudgets splits the remaining MaxRecords evenly across the
// node sub-queries, remainder to the first ones. All zeros when the
// job is unbounded.
func (job *queryJob) nodeRecordBudgets(nodes int) []uint64 {
	out := make([]uint64, nodes)
	if job.qp.MaxRecords == 0 {
		return out
	}
	job.mu.Lock()
	remaining := uint64(0)
	if job.qp.MaxRecords > job.emitted {
		remaining = job.qp.MaxRecords - job.emitted
	}
	job.mu.Unlock()
	base := remaining / uint64(nodes)
	extra := remaining % uint64(nodes)
	for i := range out {
		out[i] = base
		if uint64(i) < extra {
			out[i]++
		}
	}
	return out
}

func (job *queryJob) limitReached() bool {
	if job.qp.MaxRecords == 0 {
		return false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.emitted >= job.qp.MaxRecords
}

// streamNode runs one sub-query against a node and feeds the recordset
// until the node signals the last message.
func (c *Client) streamNode(ctx context.Context, node *cluster.Node, job *queryJob,
	parts []*query.PartitionStatus, maxRecords uint64) (err error) {

	defer func() {
		if err != nil && err != ErrRecordsetClosed {
			// Nothing conclusive arrived for these partitions; the next
			// round picks them up again.
			job.mu.Lock()
			for _, ps := range parts {
				ps.Retry = true
			}
			job.mu.Unlock()
		}
	}()

	request, err := buildQueryRequest(job, parts, maxRecords)
	if err != nil {
		return err
	}

	if !node.AllowRequest() {
		return fmt.Errorf("aero: node %s temporarily unavailable", node.Name())
	}
	conn, err := node.GetConnection(ctx)
	if err != nil {
		node.RecordFailure()
		return err
	}
	socketTimeout := job.qp.SocketTimeout
	if err := conn.Write(request, time.Now().Add(socketTimeout)); err != nil {
		node.CloseConnection(conn)
		node.RecordFailure()
		return err
	}

	byID := make(map[int]*query.PartitionStatus, len(parts))
	for _, ps := range parts {
		byID[ps.ID] = ps
	}

	for {
		if err := ctx.Err(); err != nil {
			node.CloseConnection(conn)
			return err
		}
		msgType, body, err := conn.ReadProto(time.Now().Add(socketTimeout))
		if err != nil {
			node.CloseConnection(conn)
			node.RecordFailure()
			return err
		}
		if msgType != wire.MsgTypeMessage {
			node.CloseConnection(conn)
			return fmt.Errorf("%w: message type %d", ErrBadResponse, msgType)
		}
		last, err := c.parseStream(ctx, node, job, body, byID)
		if err != nil {
			node.CloseConnection(conn)
			return err
		}
		if last {
			node.PutConnection(conn)
			node.RecordSuccess()
			return nil
		}
	}
}

// parseStream walks the messages of one response frame: records,
// per-partition done markers and the final end-of-stream message.
func (c *Client) parseStream(ctx context.Context, node *cluster.Node, job *queryJob,
	body []byte, byID map[int]*query.PartitionStatus) (last bool, err error) {

	off := 0
	for off < len(body) {
		h, err := wire.ParseMessageHeader(body[off:])
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		off += wire.MessageHeaderSize
		code := ResultCode(h.ResultCode)

		if h.Info3&wire.Info3Last != 0 {
			if code != ResultOK && code != ResultQueryEnd {
				return false, serverError(code, node.Name(), false)
			}
			return true, nil
		}

		if h.Info3&wire.Info3PartitionDone != 0 {
			// The generation slot carries the partition id here.
			pid := int(h.Generation)
			if ps := byID[pid]; ps != nil {
				job.mu.Lock()
				ps.Retry = code != ResultOK
				job.mu.Unlock()
			}
			_, off, err = wire.ParseFields(body, off, int(h.FieldCount))
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
			}
			continue
		}

		if code != ResultOK {
			return false, serverError(code, node.Name(), false)
		}

		fields, next, err := wire.ParseFields(body, off, int(h.FieldCount))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		ops, next, err := wire.ParseOperations(body, next, int(h.OpCount))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		off = next

		rec, bval, perr := job.buildRecord(h, fields, ops)
		if perr != nil {
			return false, perr
		}

		// Advance the resume cursor before emitting, so a consumer that
		// stops mid-stream resumes after the last delivered record.
		if rec.Key != nil {
			digest := rec.Key.Digest()
			if ps := byID[query.PartitionID(digest)]; ps != nil {
				job.mu.Lock()
				ps.Digest = digest
				ps.HasDigest = true
				ps.BVal = bval
				ps.Retry = true
				job.mu.Unlock()
			}
		}

		if job.limiter != nil {
			if err := job.limiter.Wait(ctx); err != nil {
				return false, err
			}
		}
		if err := job.rs.send(&Result{Record: rec}); err != nil {
			return false, err
		}
		job.mu.Lock()
		job.emitted++
		stop := job.qp.MaxRecords > 0 && job.emitted >= job.qp.MaxRecords
		job.mu.Unlock()
		if stop {
			return true, nil
		}
	}
	return false, nil
}

// buildRecord assembles a streamed record from its fields and ops.
func (job *queryJob) buildRecord(h wire.MessageHeader, fields []wire.Field, ops []wire.Operation) (*Record, int64, error) {
	namespace := job.stmt.Namespace
	set := job.stmt.SetName
	var digest [20]byte
	hasDigest := false
	var userKey value.Value = value.NilValue{}
	var bval int64

	for _, f := range fields {
		switch f.Type {
		case wire.FieldNamespace:
			namespace = string(f.Data)
		case wire.FieldTable:
			set = string(f.Data)
		case wire.FieldDigest:
			if len(f.Data) != len(digest) {
				return nil, 0, fmt.Errorf("%w: digest length %d", ErrBadResponse, len(f.Data))
			}
			copy(digest[:], f.Data)
			hasDigest = true
		case wire.FieldKey:
			if len(f.Data) < 1 {
				return nil, 0, fmt.Errorf("%w: empty key field", ErrBadResponse)
			}
			v, err := value.ParseParticle(value.ParticleType(f.Data[0]), f.Data[1:])
			if err != nil {
				return nil, 0, fmt.Errorf("%w: key field: %v", ErrBadResponse, err)
			}
			userKey = v
		case wire.FieldBValArray:
			if len(f.Data) == 8 {
				bval = int64(leUint64(f.Data))
			}
		}
	}
	if !hasDigest {
		return nil, 0, fmt.Errorf("%w: record without digest", ErrBadResponse)
	}

	key := NewKeyWithDigest(namespace, set, digest)
	key.userKey = userKey

	bins := make(map[string]value.Value, len(ops))
	for _, op := range ops {
		v, err := value.ParseParticle(op.Particle, op.Data)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bin %q: %v", ErrBadResponse, op.BinName, err)
		}
		bins[op.BinName] = v
	}
	return &Record{Key: key, Bins: bins, Generation: h.Generation, Expiration: h.Expiration}, bval, nil
}

// buildQueryRequest encodes the sub-query for one node. Partitions
// without a cursor ride in the pid array; resumed ones in the digest
// array (with bvals for index queries).
func buildQueryRequest(job *queryJob, parts []*query.PartitionStatus, maxRecords uint64) ([]byte, error) {
	stmt := job.stmt
	qp := job.qp

	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount := uint16(0)

	wire.WriteFieldString(buf, wire.FieldNamespace, stmt.Namespace)
	fieldCount++
	if stmt.SetName != "" {
		wire.WriteFieldString(buf, wire.FieldTable, stmt.SetName)
		fieldCount++
	}

	if stmt.Filter != nil {
		packed, err := stmt.Filter.Pack()
		if err != nil {
			return nil, err
		}
		wire.WriteFieldHeader(buf, wire.FieldIndexRange, len(packed)+1)
		buf.WriteUint8(1) // range count
		buf.WriteBytes(packed)
		fieldCount++

		if stmt.Filter.CollectionType != query.CollectionDefault {
			wire.WriteFieldHeader(buf, wire.FieldIndexType, 1)
			buf.WriteUint8(byte(stmt.Filter.CollectionType))
			fieldCount++
		}

		// Index queries carry requested bins as a field; scans request
		// them as read operations instead.
		if len(stmt.BinNames) > 0 {
			size := 1
			for _, name := range stmt.BinNames {
				size += 1 + len(name)
			}
			wire.WriteFieldHeader(buf, wire.FieldQueryBinList, size)
			buf.WriteUint8(byte(len(stmt.BinNames)))
			for _, name := range stmt.BinNames {
				buf.WriteUint8(byte(len(name)))
				buf.WriteString(name)
			}
			fieldCount++
		}
	}

	wire.WriteFieldUint64(buf, wire.FieldTaskID, stmt.TaskID)
	fieldCount++

	if qp.SocketTimeout > 0 {
		wire.WriteFieldUint32(buf, wire.FieldSocketTimeout, uint32(qp.SocketTimeout/time.Millisecond))
		fieldCount++
	}
	if maxRecords > 0 {
		wire.WriteFieldUint64(buf, wire.FieldMaxRecords, maxRecords)
		fieldCount++
	}
	if qp.RecordsPerSecond > 0 {
		wire.WriteFieldUint32(buf, wire.FieldRecordsPerSecond, uint32(qp.RecordsPerSecond))
		fieldCount++
	}

	var fresh, resumed []*query.PartitionStatus
	for _, ps := range parts {
		if ps.HasDigest {
			resumed = append(resumed, ps)
		} else {
			fresh = append(fresh, ps)
		}
	}
	if len(fresh) > 0 {
		wire.WriteFieldHeader(buf, wire.FieldPIDArray, 2*len(fresh))
		for _, ps := range fresh {
			// pid array entries are little-endian on the wire
			buf.WriteUint8(byte(ps.ID))
			buf.WriteUint8(byte(ps.ID >> 8))
		}
		fieldCount++
	}
	if len(resumed) > 0 {
		wire.WriteFieldHeader(buf, wire.FieldDigestArray, 20*len(resumed))
		for _, ps := range resumed {
			buf.WriteBytes(ps.Digest[:])
		}
		fieldCount++
		if !stmt.IsScan() {
			wire.WriteFieldHeader(buf, wire.FieldBValArray, 8*len(resumed))
			for _, ps := range resumed {
				writeLEUint64(buf, uint64(ps.BVal))
			}
			fieldCount++
		}
	}

	if qp.FilterExpression != nil {
		packed, err := qp.FilterExpression.Pack()
		if err != nil {
			return nil, err
		}
		wire.WriteFieldBytes(buf, wire.FieldFilterExpression, packed)
		fieldCount++
	}

	if pkg, fn, args, ok := stmt.Aggregation(); ok {
		wire.WriteFieldHeader(buf, wire.FieldUDFOp, 1)
		buf.WriteUint8(1) // stream UDF
		wire.WriteFieldString(buf, wire.FieldUDFPackageName, pkg)
		wire.WriteFieldString(buf, wire.FieldUDFFunction, fn)
		argBytes, err := packValueList(args)
		if err != nil {
			return nil, err
		}
		wire.WriteFieldBytes(buf, wire.FieldUDFArgList, argBytes)
		fieldCount += 4
	}

	opCount := uint16(0)
	if stmt.IsScan() {
		for _, name := range stmt.BinNames {
			wire.WriteOperation(buf, wire.OpRead, value.ParticleNull, name, nil)
			opCount++
		}
	}

	info1 := byte(wire.Info1Read)
	if len(stmt.BinNames) == 0 {
		info1 |= wire.Info1GetAll
	}
	if qp.ExpectedDuration == policy.DurationShort {
		info1 |= wire.Info1ShortQuery
	}
	var info3 byte
	if qp.ExpectedDuration == policy.DurationLongRelaxAP {
		info3 |= wire.Info3SCReadRelax
	}

	wire.EndMessage(buf, wire.MessageHeader{
		Info1:          info1,
		Info3:          info3,
		TransactionTTL: transactionTTL(&qp.BasePolicy),
		FieldCount:     fieldCount,
		OpCount:        opCount,
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// packValueList msgpack-encodes UDF arguments as one list.
func packValueList(args []value.Value) ([]byte, error) {
	return value.PackBytes(value.ListValue(args))
}

func leUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

func writeLEUint64(buf *wire.Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		buf.WriteUint8(byte(v >> (8 * uint(i))))
	}
}
