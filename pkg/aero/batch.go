package aero

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/cdt"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/value"
)

// Per-row message flags in the batch field.
const (
	batchMsgRepeat = 1 << 0
	batchMsgInfo   = 1 << 1
	batchMsgGen    = 1 << 2
	batchMsgTTL    = 1 << 3
)

// BatchRecord is the per-key slot of a batch call. After the call it
// holds the record (reads), the per-key error, and the in-doubt flag
// for writes whose fate is unknown.
type BatchRecord struct {
	Key     *Key
	Record  *Record
	Err     error
	InDoubt bool
}

// BatchRecorder is one entry of a BatchOperate call.
type BatchRecorder interface {
	BatchRec() *BatchRecord

	// isWrite gates in-doubt marking and routing.
	isWrite() bool

	// encode appends the row body after digest and flags byte.
	encode(buf *wire.Buffer) error
}

// BatchRead reads bins, or the header only when both BinNames and Ops
// are empty and ReadAllBins is false.
type BatchRead struct {
	BatchRecord
	Policy      *policy.BatchReadPolicy
	BinNames    []string
	Ops         []*cdt.Operation
	ReadAllBins bool
}

// NewBatchRead reads the named bins, or everything when none given.
func NewBatchRead(key *Key, binNames ...string) *BatchRead {
	return &BatchRead{
		BatchRecord: BatchRecord{Key: key},
		BinNames:    binNames,
		ReadAllBins: len(binNames) == 0,
	}
}

// NewBatchReadHeader reads generation and expiration only.
func NewBatchReadHeader(key *Key) *BatchRead {
	return &BatchRead{BatchRecord: BatchRecord{Key: key}}
}

func (b *BatchRead) BatchRec() *BatchRecord { return &b.BatchRecord }
func (b *BatchRead) isWrite() bool          { return false }

// BatchWrite applies operations to one record.
type BatchWrite struct {
	BatchRecord
	Policy *policy.BatchWritePolicy
	Ops    []*cdt.Operation
}

func NewBatchWrite(p *policy.BatchWritePolicy, key *Key, ops ...*cdt.Operation) *BatchWrite {
	return &BatchWrite{BatchRecord: BatchRecord{Key: key}, Policy: p, Ops: ops}
}

func (b *BatchWrite) BatchRec() *BatchRecord { return &b.BatchRecord }
func (b *BatchWrite) isWrite() bool          { return true }

// BatchDelete removes one record.
type BatchDelete struct {
	BatchRecord
	Policy *policy.BatchDeletePolicy
}

func NewBatchDelete(p *policy.BatchDeletePolicy, key *Key) *BatchDelete {
	return &BatchDelete{BatchRecord: BatchRecord{Key: key}, Policy: p}
}

func (b *BatchDelete) BatchRec() *BatchRecord { return &b.BatchRecord }
func (b *BatchDelete) isWrite() bool          { return true }

// BatchUDF applies a record UDF to one record.
type BatchUDF struct {
	BatchRecord
	Policy       *policy.BatchUDFPolicy
	PackageName  string
	FunctionName string
	FunctionArgs []value.Value
}

func NewBatchUDF(p *policy.BatchUDFPolicy, key *Key, packageName, functionName string, args ...value.Value) *BatchUDF {
	return &BatchUDF{
		BatchRecord:  BatchRecord{Key: key},
		Policy:       p,
		PackageName:  packageName,
		FunctionName: functionName,
		FunctionArgs: args,
	}
}

func (b *BatchUDF) BatchRec() *BatchRecord { return &b.BatchRecord }
func (b *BatchUDF) isWrite() bool          { return true }

// BatchGet reads many records at once. The result slice is aligned
// with keys; missing records are nil entries, not errors.
func (c *Client) BatchGet(ctx context.Context, p *policy.BatchPolicy, keys []*Key, binNames ...string) ([]*Record, error) {
	records := make([]BatchRecorder, len(keys))
	for i, key := range keys {
		records[i] = NewBatchRead(key, binNames...)
	}
	err := c.BatchOperate(ctx, p, records)
	out := make([]*Record, len(keys))
	for i, r := range records {
		out[i] = r.BatchRec().Record
	}
	return out, err
}

// BatchExists reports existence for many keys at once.
func (c *Client) BatchExists(ctx context.Context, p *policy.BatchPolicy, keys []*Key) ([]bool, error) {
	records := make([]BatchRecorder, len(keys))
	for i, key := range keys {
		records[i] = NewBatchReadHeader(key)
	}
	err := c.BatchOperate(ctx, p, records)
	out := make([]bool, len(keys))
	for i, r := range records {
		out[i] = r.BatchRec().Record != nil
	}
	return out, err
}

// BatchOperate runs a mixed batch of reads, writes, deletes and UDF
// applies. Per-key outcomes land in each record's BatchRecord; the
// returned error covers transport-level failures only.
func (c *Client) BatchOperate(ctx context.Context, p *policy.BatchPolicy, records []BatchRecorder) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidArgument)
	}
	if p == nil {
		p = c.DefaultBatchPolicy
	}
	if err := c.checkFeature("batch operate", wire.Version.SupportsBatchAny); err != nil {
		return err
	}

	deadline := p.Deadline(time.Now())
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	groups, err := c.groupBatch(records)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.MaxConcurrentNodes > 0 {
		g.SetLimit(p.MaxConcurrentNodes)
	}
	for node, indexes := range groups {
		node, indexes := node, indexes
		g.Go(func() error {
			return c.batchNode(gctx, node, p, records, indexes)
		})
	}
	return g.Wait()
}

// groupBatch buckets record indexes under the master node of each key.
func (c *Client) groupBatch(records []BatchRecorder) (map[*cluster.Node][]int, error) {
	groups := make(map[*cluster.Node][]int)
	for i, r := range records {
		key := r.BatchRec().Key
		if key == nil {
			return nil, fmt.Errorf("%w: batch record %d has no key", ErrInvalidArgument, i)
		}
		node, err := c.cluster.MasterNode(key.namespace, key.PartitionID())
		if err != nil {
			// Routing failures stay per-key; the rest of the batch
			// still runs.
			r.BatchRec().Err = err
			continue
		}
		groups[node] = append(groups[node], i)
	}
	return groups, nil
}

// batchNode sends one sub-batch and distributes row results back to
// their original slots.
func (c *Client) batchNode(ctx context.Context, node *cluster.Node, p *policy.BatchPolicy,
	records []BatchRecorder, indexes []int) error {

	request, err := buildBatch(p, records, indexes)
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
	socketDeadline := time.Now().Add(p.SocketTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(socketDeadline) {
		socketDeadline = d
	}
	if err := conn.Write(request, socketDeadline); err != nil {
		node.CloseConnection(conn)
		node.RecordFailure()
		c.markInDoubt(records, indexes)
		return err
	}

	for {
		msgType, body, err := conn.ReadProto(socketDeadline)
		if err != nil {
			node.CloseConnection(conn)
			node.RecordFailure()
			c.markInDoubt(records, indexes)
			return err
		}
		if msgType != wire.MsgTypeMessage {
			node.CloseConnection(conn)
			return fmt.Errorf("%w: message type %d", ErrBadResponse, msgType)
		}
		last, err := c.parseBatchFrame(node, body, records)
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

func (c *Client) markInDoubt(records []BatchRecorder, indexes []int) {
	for _, i := range indexes {
		if records[i].isWrite() {
			records[i].BatchRec().InDoubt = true
		}
	}
}

// parseBatchFrame walks the row messages of one response frame. The
// transaction-ttl slot of each row header carries the original batch
// index.
func (c *Client) parseBatchFrame(node *cluster.Node, body []byte, records []BatchRecorder) (bool, error) {
	off := 0
	for off < len(body) {
		h, err := wire.ParseMessageHeader(body[off:])
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		off += wire.MessageHeaderSize
		code := ResultCode(h.ResultCode)

		if h.Info3&wire.Info3Last != 0 {
			if code != ResultOK {
				return false, serverError(code, node.Name(), false)
			}
			return true, nil
		}

		index := int(h.TransactionTTL)
		if index < 0 || index >= len(records) {
			return false, fmt.Errorf("%w: batch index %d out of range", ErrBadResponse, index)
		}
		rec := records[index].BatchRec()

		_, next, err := wire.ParseFields(body, off, int(h.FieldCount))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		ops, next, err := wire.ParseOperations(body, next, int(h.OpCount))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		off = next

		switch code {
		case ResultOK:
			r := &Record{
				Key:        rec.Key,
				Bins:       make(map[string]value.Value, len(ops)),
				Generation: h.Generation,
				Expiration: h.Expiration,
			}
			for _, op := range ops {
				v, err := value.ParseParticle(op.Particle, op.Data)
				if err != nil {
					return false, fmt.Errorf("%w: bin %q: %v", ErrBadResponse, op.BinName, err)
				}
				r.Bins[op.BinName] = v
			}
			rec.Record = r
			rec.Err = nil
			rec.InDoubt = false
		case ResultKeyNotFound:
			rec.Record = nil
			rec.Err = ErrKeyNotFound
			rec.InDoubt = false
		default:
			rec.Err = serverError(code, node.Name(), rec.InDoubt)
		}
	}
	return false, nil
}

// buildBatch encodes one node's sub-batch into a single message whose
// only field is the batch list.
func buildBatch(p *policy.BatchPolicy, records []BatchRecorder, indexes []int) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)

	fieldCount := uint16(1)
	if p.FilterExpression != nil {
		packed, err := p.FilterExpression.Pack()
		if err != nil {
			return nil, err
		}
		wire.WriteFieldBytes(buf, wire.FieldFilterExpression, packed)
		fieldCount++
	}

	// Batch field payload length is patched after the rows are written.
	fieldStart := buf.Len()
	wire.WriteFieldHeader(buf, wire.FieldBatchIndexWithSet, 0)

	buf.WriteUint32(uint32(len(indexes)))
	var flags byte
	if p.AllowInline {
		flags |= 1 << 0
	}
	if p.AllowInlineSSD {
		flags |= 1 << 1
	}
	if p.RespondAllKeys {
		flags |= 1 << 2
	}
	buf.WriteUint8(flags)

	for _, i := range indexes {
		r := records[i]
		key := r.BatchRec().Key
		buf.WriteUint32(uint32(i))
		digest := key.Digest()
		buf.WriteBytes(digest[:])
		if err := r.encode(buf); err != nil {
			return nil, err
		}
	}

	buf.PutUint32At(fieldStart, uint32(buf.Len()-fieldStart-4))

	info1 := byte(wire.Info1Batch)
	wire.EndMessage(buf, wire.MessageHeader{
		Info1:          info1,
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// batchRowHeader writes the per-row attribute block shared by all row
// kinds: flags, the three info bytes, optional generation and ttl,
// then field and op counts.
func batchRowHeader(buf *wire.Buffer, info1, info2, info3 byte, hasGen bool, gen uint32,
	hasTTL bool, ttl uint32, fieldCount, opCount uint16) {

	flags := byte(batchMsgInfo)
	if hasGen {
		flags |= batchMsgGen
	}
	if hasTTL {
		flags |= batchMsgTTL
	}
	buf.WriteUint8(flags)
	buf.WriteUint8(info1)
	buf.WriteUint8(info2)
	buf.WriteUint8(info3)
	if hasGen {
		buf.WriteUint16(uint16(gen))
	}
	if hasTTL {
		buf.WriteUint32(ttl)
	}
	buf.WriteUint16(fieldCount)
	buf.WriteUint16(opCount)
}

// batchRowFields writes the namespace, set and optional per-row fields
// every row carries, returning the count.
func batchRowFields(buf *wire.Buffer, key *Key, filter []byte, sendKey bool) (uint16, error) {
	count := uint16(2)
	wire.WriteFieldString(buf, wire.FieldNamespace, key.namespace)
	wire.WriteFieldString(buf, wire.FieldTable, key.setName)
	if filter != nil {
		wire.WriteFieldBytes(buf, wire.FieldFilterExpression, filter)
		count++
	}
	if sendKey {
		if err := wire.WriteKeyValueField(buf, key.userKey); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

func (b *BatchRead) encode(buf *wire.Buffer) error {
	var filter []byte
	var touchTTL policy.ReadTouchTTL
	if b.Policy != nil {
		if b.Policy.FilterExpression != nil {
			var err error
			filter, err = b.Policy.FilterExpression.Pack()
			if err != nil {
				return err
			}
		}
		touchTTL = b.Policy.ReadTouchTTL.Normalize()
	}

	info1 := byte(wire.Info1Read)
	if b.ReadAllBins {
		info1 |= wire.Info1GetAll
	} else if len(b.BinNames) == 0 && len(b.Ops) == 0 {
		info1 |= wire.Info1NoBinData
	}

	// The row body layout needs counts before fields, so stage the
	// fields in a scratch buffer first.
	scratch := wire.GetBuffer()
	defer scratch.Release()
	fieldCount, err := batchRowFields(scratch, b.Key, filter, false)
	if err != nil {
		return err
	}

	opCount := uint16(len(b.BinNames) + len(b.Ops))
	batchRowHeader(buf, info1, 0, 0, false, 0, touchTTL != 0, uint32(touchTTL), fieldCount, opCount)
	buf.WriteBytes(scratch.Bytes())
	for _, name := range b.BinNames {
		wire.WriteOperation(buf, wire.OpRead, value.ParticleNull, name, nil)
	}
	for _, op := range b.Ops {
		if err := op.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchWrite) encode(buf *wire.Buffer) error {
	wp := policy.WritePolicy{}
	var filter []byte
	sendKey := false
	if b.Policy != nil {
		wp.RecordExistsAction = b.Policy.RecordExistsAction
		wp.GenerationPolicy = b.Policy.GenerationPolicy
		wp.CommitLevel = b.Policy.CommitLevel
		wp.Generation = b.Policy.Generation
		wp.Expiration = b.Policy.Expiration
		wp.DurableDelete = b.Policy.DurableDelete
		sendKey = b.Policy.SendKey
		if b.Policy.FilterExpression != nil {
			var err error
			filter, err = b.Policy.FilterExpression.Pack()
			if err != nil {
				return err
			}
		}
	}
	wp.RespondPerEachOp = true
	info1, info2, info3 := writePolicyFlags(&wp)

	scratch := wire.GetBuffer()
	defer scratch.Release()
	fieldCount, err := batchRowFields(scratch, b.Key, filter, sendKey)
	if err != nil {
		return err
	}

	hasGen := wp.GenerationPolicy != policy.GenerationNone
	batchRowHeader(buf, info1, info2, info3, hasGen, wp.Generation,
		wp.Expiration != 0, uint32(wp.Expiration), fieldCount, uint16(len(b.Ops)))
	buf.WriteBytes(scratch.Bytes())
	for _, op := range b.Ops {
		if err := op.Encode(buf); err != nil {
			return err
		}
	}
	return nil
}

func (b *BatchDelete) encode(buf *wire.Buffer) error {
	wp := policy.WritePolicy{}
	var filter []byte
	sendKey := false
	if b.Policy != nil {
		wp.GenerationPolicy = b.Policy.GenerationPolicy
		wp.CommitLevel = b.Policy.CommitLevel
		wp.Generation = b.Policy.Generation
		wp.DurableDelete = b.Policy.DurableDelete
		sendKey = b.Policy.SendKey
		if b.Policy.FilterExpression != nil {
			var err error
			filter, err = b.Policy.FilterExpression.Pack()
			if err != nil {
				return err
			}
		}
	}
	info1, info2, info3 := writePolicyFlags(&wp)
	info2 |= wire.Info2Delete

	scratch := wire.GetBuffer()
	defer scratch.Release()
	fieldCount, err := batchRowFields(scratch, b.Key, filter, sendKey)
	if err != nil {
		return err
	}

	hasGen := wp.GenerationPolicy != policy.GenerationNone
	batchRowHeader(buf, info1, info2, info3, hasGen, wp.Generation, false, 0, fieldCount, 0)
	buf.WriteBytes(scratch.Bytes())
	return nil
}

func (b *BatchUDF) encode(buf *wire.Buffer) error {
	wp := policy.WritePolicy{}
	var filter []byte
	sendKey := false
	if b.Policy != nil {
		wp.CommitLevel = b.Policy.CommitLevel
		wp.Expiration = b.Policy.Expiration
		wp.DurableDelete = b.Policy.DurableDelete
		sendKey = b.Policy.SendKey
		if b.Policy.FilterExpression != nil {
			var err error
			filter, err = b.Policy.FilterExpression.Pack()
			if err != nil {
				return err
			}
		}
	}
	info1, info2, info3 := writePolicyFlags(&wp)

	scratch := wire.GetBuffer()
	defer scratch.Release()
	fieldCount, err := batchRowFields(scratch, b.Key, filter, sendKey)
	if err != nil {
		return err
	}
	wire.WriteFieldString(scratch, wire.FieldUDFPackageName, b.PackageName)
	wire.WriteFieldString(scratch, wire.FieldUDFFunction, b.FunctionName)
	argBytes, err := packValueList(b.FunctionArgs)
	if err != nil {
		return err
	}
	wire.WriteFieldBytes(scratch, wire.FieldUDFArgList, argBytes)
	fieldCount += 3

	batchRowHeader(buf, info1, info2, info3, false, 0,
		wp.Expiration != 0, uint32(wp.Expiration), fieldCount, 0)
	buf.WriteBytes(scratch.Bytes())
	return nil
}
