package aero

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/cdt"
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/value"
)

// ErrBadResponse marks a reply that does not parse as the protocol
// requires; the connection is dropped.
var ErrBadResponse = errors.New("aero: malformed server response")

type responseHandler func(h wire.MessageHeader, body []byte, node *cluster.Node) error

// execute is the single-record engine: route, send, parse, classify,
// retry. The request bytes are built once; routing advances through
// the replica sequence on each retry.
func (c *Client) execute(ctx context.Context, base *policy.BasePolicy, namespace string,
	pid int, isRead bool, request []byte, handle responseHandler) error {

	deadline := base.Deadline(time.Now())
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	replica := base.Replica
	if !isRead {
		replica = policy.ReplicaMaster
	}

	var lastErr error
	inDoubt := false
	sequence := 0

	for attempt := 0; attempt <= base.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &TimeoutError{Attempts: attempt, InDoubt: inDoubt, LastErr: lastErr}
			case <-time.After(base.RetrySleep()):
			}
		}

		node, err := c.cluster.GetNodeForPartition(namespace, pid, replica, sequence)
		if err != nil {
			lastErr = err
			sequence++
			continue
		}
		if !node.AllowRequest() {
			lastErr = fmt.Errorf("aero: node %s temporarily unavailable", node.Name())
			sequence++
			continue
		}

		err = c.attempt(ctx, node, base, request, isRead, &inDoubt, handle)
		if err == nil {
			node.RecordSuccess()
			return nil
		}
		lastErr = err

		var se *ServerError
		if errors.As(err, &se) {
			// The node answered; only retryable codes go around again.
			node.RecordSuccess()
			if !se.Code.Retryable() {
				return err
			}
		} else if errors.Is(err, cluster.ErrNoMoreConnections) {
			// Pool pressure is not a node fault.
		} else {
			node.RecordFailure()
		}
		sequence++
	}
	return &TimeoutError{Attempts: base.MaxRetries + 1, InDoubt: inDoubt, LastErr: lastErr}
}

func (c *Client) attempt(ctx context.Context, node *cluster.Node, base *policy.BasePolicy,
	request []byte, isRead bool, inDoubt *bool, handle responseHandler) error {

	conn, err := node.GetConnection(ctx)
	if err != nil {
		return err
	}

	socketDeadline := time.Now().Add(base.SocketTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(socketDeadline) {
		socketDeadline = d
	}

	if err := conn.Write(request, socketDeadline); err != nil {
		node.CloseConnection(conn)
		if !isRead {
			*inDoubt = true
		}
		return err
	}
	msgType, body, err := conn.ReadProto(socketDeadline)
	if err != nil {
		node.CloseConnection(conn)
		if !isRead {
			*inDoubt = true
		}
		return err
	}
	node.PutConnection(conn)

	if msgType != wire.MsgTypeMessage {
		return fmt.Errorf("%w: message type %d", ErrBadResponse, msgType)
	}
	h, err := wire.ParseMessageHeader(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if code := ResultCode(h.ResultCode); code != ResultOK {
		return serverError(code, node.Name(), *inDoubt && !isRead)
	}
	return handle(h, body, node)
}

// writeKeyFields appends the routing fields of a key and the optional
// filter expression, returning the field count.
func writeKeyFields(buf *wire.Buffer, key *Key, sendKey bool, filter *exp.Expression) (uint16, error) {
	count := uint16(0)
	if key.namespace != "" {
		wire.WriteFieldString(buf, wire.FieldNamespace, key.namespace)
		count++
	}
	if key.setName != "" {
		wire.WriteFieldString(buf, wire.FieldTable, key.setName)
		count++
	}
	digest := key.digest
	wire.WriteFieldBytes(buf, wire.FieldDigest, digest[:])
	count++

	if sendKey {
		if err := wire.WriteKeyValueField(buf, key.userKey); err != nil {
			return 0, err
		}
		count++
	}
	if filter != nil {
		packed, err := filter.Pack()
		if err != nil {
			return 0, err
		}
		wire.WriteFieldBytes(buf, wire.FieldFilterExpression, packed)
		count++
	}
	return count, nil
}

func writePolicyFlags(p *policy.WritePolicy) (info1, info2, info3 byte) {
	info2 = wire.Info2Write

	switch p.RecordExistsAction {
	case policy.CreateOnly:
		info2 |= wire.Info2CreateOnly
	case policy.UpdateOnly:
		info3 |= wire.Info3UpdateOnly
	case policy.Replace:
		info3 |= wire.Info3CreateOrReplace
	case policy.ReplaceOnly:
		info3 |= wire.Info3ReplaceOnly
	}
	switch p.GenerationPolicy {
	case policy.ExpectGenEqual:
		info2 |= wire.Info2Generation
	case policy.ExpectGenGreater:
		info2 |= wire.Info2GenerationGT
	}
	if p.CommitLevel == policy.CommitMaster {
		info3 |= wire.Info3CommitMaster
	}
	if p.DurableDelete {
		info2 |= wire.Info2DurableDelete
	}
	if p.RespondPerEachOp {
		info2 |= wire.Info2RespondAllOps
	}
	return info1, info2, info3
}

func readFlags(p *policy.BasePolicy, getAll bool) (info1, info3 byte) {
	info1 = wire.Info1Read
	if getAll {
		info1 |= wire.Info1GetAll
	}
	if p.ConsistencyLevel == policy.ConsistencyAll {
		info1 |= wire.Info1ReadModeAPAll
	}
	return info1, info3
}

func transactionTTL(p *policy.BasePolicy) uint32 {
	if p.TotalTimeout <= 0 {
		return 0
	}
	return uint32(p.TotalTimeout / time.Millisecond)
}

// buildGet encodes a read of the named bins, or everything when none
// are given.
func buildGet(key *Key, p *policy.BasePolicy, binNames []string, headerOnly bool) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, false, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	for _, name := range binNames {
		wire.WriteOperation(buf, wire.OpRead, value.ParticleNull, name, nil)
	}

	info1, info3 := readFlags(p, len(binNames) == 0 && !headerOnly)
	if headerOnly {
		info1 |= wire.Info1NoBinData
	}
	wire.EndMessage(buf, wire.MessageHeader{
		Info1:          info1,
		Info3:          info3,
		TransactionTTL: transactionTTL(p),
		FieldCount:     fieldCount,
		OpCount:        uint16(len(binNames)),
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// buildPut encodes a write of the given bins.
func buildPut(key *Key, p *policy.WritePolicy, op wire.OpType, bins []Bin) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, p.SendKey, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	for _, b := range bins {
		payload, err := value.AppendParticle(nil, b.Value)
		if err != nil {
			return nil, err
		}
		wire.WriteOperation(buf, op, b.Value.Type(), b.Name, payload)
	}

	info1, info2, info3 := writePolicyFlags(p)
	wire.EndMessage(buf, wire.MessageHeader{
		Info1:          info1,
		Info2:          info2,
		Info3:          info3,
		Generation:     p.Generation,
		Expiration:     uint32(p.Expiration),
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
		OpCount:        uint16(len(bins)),
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// buildDelete encodes a record delete.
func buildDelete(key *Key, p *policy.WritePolicy) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, false, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	_, info2, info3 := writePolicyFlags(p)
	info2 |= wire.Info2Delete
	wire.EndMessage(buf, wire.MessageHeader{
		Info2:          info2,
		Info3:          info3,
		Generation:     p.Generation,
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// buildTouch encodes a metadata-only rewrite.
func buildTouch(key *Key, p *policy.WritePolicy) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, false, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	wire.WriteOperation(buf, wire.OpTouch, value.ParticleNull, "", nil)

	_, info2, info3 := writePolicyFlags(p)
	wire.EndMessage(buf, wire.MessageHeader{
		Info2:          info2,
		Info3:          info3,
		Generation:     p.Generation,
		Expiration:     uint32(p.Expiration),
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
		OpCount:        1,
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// buildOperate encodes a multi-operation transaction.
func buildOperate(key *Key, p *policy.WritePolicy, ops []*cdt.Operation) ([]byte, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	hasWrite := false
	hasRead := false
	for _, op := range ops {
		switch op.OpType() {
		case wire.OpRead, wire.OpCDTRead, wire.OpBitRead, wire.OpHLLRead,
			wire.OpExpRead, wire.OpReadHeader:
			hasRead = true
		default:
			hasWrite = true
		}
	}

	wire.BeginMessage(buf)
	fieldCount, err := writeKeyFields(buf, key, p.SendKey && hasWrite, p.FilterExpression)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if err := op.Encode(buf); err != nil {
			return nil, err
		}
	}

	var info1, info2, info3 byte
	if hasRead {
		info1, info3 = readFlags(&p.BasePolicy, false)
	}
	if hasWrite {
		_, w2, w3 := writePolicyFlags(p)
		info2 |= w2
		info3 |= w3
	}
	wire.EndMessage(buf, wire.MessageHeader{
		Info1:          info1,
		Info2:          info2,
		Info3:          info3,
		Generation:     p.Generation,
		Expiration:     uint32(p.Expiration),
		TransactionTTL: transactionTTL(&p.BasePolicy),
		FieldCount:     fieldCount,
		OpCount:        uint16(len(ops)),
	})
	return append([]byte(nil), buf.Bytes()...), nil
}

// parseRecord decodes the fields and operations of a message body into
// a record. Repeated bins (respond-per-each-op) collapse into a list.
func parseRecord(key *Key, h wire.MessageHeader, body []byte) (*Record, error) {
	off := wire.MessageHeaderSize
	_, off, err := wire.ParseFields(body, off, int(h.FieldCount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	ops, _, err := wire.ParseOperations(body, off, int(h.OpCount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	rec := &Record{
		Key:        key,
		Bins:       make(map[string]value.Value, len(ops)),
		Generation: h.Generation,
		Expiration: h.Expiration,
	}
	// multi marks bins already holding an aggregate list, so a list
	// returned as a single op result is never mistaken for one.
	var multi map[string]bool
	for _, op := range ops {
		v, err := value.ParseParticle(op.Particle, op.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: bin %q: %v", ErrBadResponse, op.BinName, err)
		}
		prev, ok := rec.Bins[op.BinName]
		switch {
		case !ok:
			rec.Bins[op.BinName] = v
		case multi[op.BinName]:
			rec.Bins[op.BinName] = append(prev.(value.ListValue), v)
		default:
			rec.Bins[op.BinName] = value.ListValue{prev, v}
			if multi == nil {
				multi = make(map[string]bool)
			}
			multi[op.BinName] = true
		}
	}
	return rec, nil
}
