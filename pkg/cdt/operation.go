// Package cdt builds the operation list consumed by operate() calls:
// scalar bin operations plus the server-side list, map, bitwise and
// HyperLogLog collection operations, with optional context paths into
// nested structures.
package cdt

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/value"
)

// Operation is one entry of an operate() call. Construct through the
// package functions; the zero value is not usable.
type Operation struct {
	opType  wire.OpType
	binName string

	// Exactly one of val (scalar ops) or payload (CDT/exp ops) is set.
	val     value.Value
	payload []byte

	headerOnly bool
	err        error
}

// OpType exposes the wire operation class for command encoding.
func (o *Operation) OpType() wire.OpType { return o.opType }

// BinName returns the target bin ("" for record-level operations).
func (o *Operation) BinName() string { return o.binName }

// HeaderOnly reports whether the op reads metadata without bin data.
func (o *Operation) HeaderOnly() bool { return o.headerOnly }

// Encode appends the operation TLV to buf.
func (o *Operation) Encode(buf *wire.Buffer) error {
	if o.err != nil {
		return o.err
	}
	if o.payload != nil {
		wire.WriteOperation(buf, o.opType, value.ParticleBlob, o.binName, o.payload)
		return nil
	}
	if o.val == nil {
		wire.WriteOperation(buf, o.opType, value.ParticleNull, o.binName, nil)
		return nil
	}
	data, err := value.AppendParticle(nil, o.val)
	if err != nil {
		return err
	}
	wire.WriteOperation(buf, o.opType, o.val.Type(), o.binName, data)
	return nil
}

// Scalar operations.

// Get reads all bins of the record.
func Get() *Operation {
	return &Operation{opType: wire.OpRead}
}

// GetBin reads a single bin.
func GetBin(name string) *Operation {
	return &Operation{opType: wire.OpRead, binName: name}
}

// GetHeader reads record metadata (generation, expiration) only.
func GetHeader() *Operation {
	return &Operation{opType: wire.OpReadHeader, headerOnly: true}
}

// Put writes a bin.
func Put(name string, v value.Value) *Operation {
	return &Operation{opType: wire.OpWrite, binName: name, val: v}
}

// Add increments an integer or float bin.
func Add(name string, v value.Value) *Operation {
	return &Operation{opType: wire.OpAdd, binName: name, val: v}
}

// Append appends to a string or blob bin.
func Append(name string, v value.Value) *Operation {
	return &Operation{opType: wire.OpAppend, binName: name, val: v}
}

// Prepend prepends to a string or blob bin.
func Prepend(name string, v value.Value) *Operation {
	return &Operation{opType: wire.OpPrepend, binName: name, val: v}
}

// Delete removes the whole record within an operate() transaction.
func Delete() *Operation {
	return &Operation{opType: wire.OpDelete}
}

// Touch rewrites record metadata, resetting the TTL.
func Touch() *Operation {
	return &Operation{opType: wire.OpTouch}
}

// CTX descends into a nested list or map element before the operation
// applies. Paths are evaluated left to right.
type CTX struct {
	id  int
	val value.Value
}

const (
	ctxListIndex = 0x10
	ctxListRank  = 0x11
	ctxListValue = 0x13
	ctxMapIndex  = 0x20
	ctxMapRank   = 0x21
	ctxMapKey    = 0x22
	ctxMapValue  = 0x23

	// OR'd onto list/map key contexts to create the element when the
	// path does not resolve.
	ctxCreateFlagList = 0x40
	ctxCreateFlagMap  = 0x40
)

func CtxListIndex(index int) CTX { return CTX{id: ctxListIndex, val: value.IntValue(index)} }
func CtxListRank(rank int) CTX   { return CTX{id: ctxListRank, val: value.IntValue(rank)} }
func CtxListValue(v value.Value) CTX {
	return CTX{id: ctxListValue, val: v}
}

// CtxListIndexCreate creates the list element when missing, with the
// given list order and padding behavior.
func CtxListIndexCreate(index int, order ListOrder, pad bool) CTX {
	id := ctxListIndex | ctxCreateFlagList | (int(order) << 1)
	if pad {
		id |= 1 << 1
	}
	return CTX{id: id, val: value.IntValue(index)}
}

func CtxMapIndex(index int) CTX { return CTX{id: ctxMapIndex, val: value.IntValue(index)} }
func CtxMapRank(rank int) CTX   { return CTX{id: ctxMapRank, val: value.IntValue(rank)} }
func CtxMapKey(key value.Value) CTX {
	return CTX{id: ctxMapKey, val: key}
}
func CtxMapValue(v value.Value) CTX {
	return CTX{id: ctxMapValue, val: v}
}

// CtxMapKeyCreate creates the map entry when missing, ordered per the
// given map order.
func CtxMapKeyCreate(key value.Value, order value.MapOrder) CTX {
	return CTX{id: ctxMapKey | ctxCreateFlagMap | (int(order) << 1), val: key}
}

// packCDT serializes a CDT operation: without context an array of
// [op, args...]; with context [0xff, [ctx pairs...], [op, args...]].
// Arguments are values for operate() payloads and expressions inside
// filter trees.
func packCDT(op int, ctx []CTX, args ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if len(ctx) > 0 {
		if err := enc.EncodeArrayLen(3); err != nil {
			return nil, err
		}
		if err := enc.EncodeInt(0xff); err != nil {
			return nil, err
		}
		if err := enc.EncodeArrayLen(len(ctx) * 2); err != nil {
			return nil, err
		}
		for _, c := range ctx {
			if err := enc.EncodeInt(int64(c.id)); err != nil {
				return nil, err
			}
			if err := value.Pack(enc, c.val); err != nil {
				return nil, err
			}
		}
	}

	if err := enc.EncodeArrayLen(len(args) + 1); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(int64(op)); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := packArg(enc, a); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func packArg(enc *msgpack.Encoder, a any) error {
	switch v := a.(type) {
	case value.Value:
		return value.Pack(enc, v)
	case *exp.Expression:
		b, err := v.Pack()
		if err != nil {
			return err
		}
		_, err = enc.Writer().Write(b)
		return err
	default:
		return fmt.Errorf("cdt: cannot pack argument of type %T", a)
	}
}

func cdtOp(opType wire.OpType, binName string, op int, ctx []CTX, args ...value.Value) *Operation {
	anyArgs := make([]any, len(args))
	for i, a := range args {
		anyArgs[i] = a
	}
	payload, err := packCDT(op, ctx, anyArgs...)
	return &Operation{opType: opType, binName: binName, payload: payload, err: err}
}
