package cdt

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/exp"
)

// ExpReadFlags modify ExpRead.
type ExpReadFlags int

const (
	ExpReadDefault    ExpReadFlags = 0
	ExpReadEvalNoFail ExpReadFlags = 16
)

// ExpWriteFlags modify ExpWrite.
type ExpWriteFlags int

const (
	ExpWriteDefault      ExpWriteFlags = 0
	ExpWriteCreateOnly   ExpWriteFlags = 1
	ExpWriteUpdateOnly   ExpWriteFlags = 2
	ExpWriteAllowDelete  ExpWriteFlags = 4
	ExpWritePolicyNoFail ExpWriteFlags = 8
	ExpWriteEvalNoFail   ExpWriteFlags = 16
)

// ExpRead evaluates the expression against the record and returns the
// result under the given pseudo bin name.
func ExpRead(name string, e *exp.Expression, flags ExpReadFlags) *Operation {
	payload, err := packExpOperation(e, int64(flags))
	return &Operation{opType: wire.OpExpRead, binName: name, payload: payload, err: err}
}

// ExpWrite evaluates the expression and stores the result into the bin.
func ExpWrite(bin string, e *exp.Expression, flags ExpWriteFlags) *Operation {
	payload, err := packExpOperation(e, int64(flags))
	return &Operation{opType: wire.OpExpModify, binName: bin, payload: payload, err: err}
}

func packExpOperation(e *exp.Expression, flags int64) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(2); err != nil {
		return nil, err
	}
	b, err := e.Pack()
	if err != nil {
		return nil, err
	}
	if _, err := enc.Writer().Write(b); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(flags); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
