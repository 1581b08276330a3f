// Package exp builds server-side filter expressions. An Expression is
// an immutable AST node; terminal packing happens once per command.
package exp

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phamduclong/aerogo/pkg/value"
)

type expOp int

const (
	opUnknown      expOp = 0
	opEQ           expOp = 1
	opNE           expOp = 2
	opGT           expOp = 3
	opGE           expOp = 4
	opLT           expOp = 5
	opLE           expOp = 6
	opRegex        expOp = 7
	opGeo          expOp = 8
	opAnd          expOp = 16
	opOr           expOp = 17
	opNot          expOp = 18
	opXor          expOp = 19
	opAdd          expOp = 20
	opSub          expOp = 21
	opMul          expOp = 22
	opDiv          expOp = 23
	opPow          expOp = 24
	opLog          expOp = 25
	opMod          expOp = 26
	opAbs          expOp = 27
	opFloor        expOp = 28
	opCeil         expOp = 29
	opToInt        expOp = 30
	opToFloat      expOp = 31
	opIntAnd       expOp = 32
	opIntOr        expOp = 33
	opIntXor       expOp = 34
	opIntNot       expOp = 35
	opIntLShift    expOp = 36
	opIntRShift    expOp = 37
	opIntARShift   expOp = 38
	opIntCount     expOp = 39
	opIntLScan     expOp = 40
	opIntRScan     expOp = 41
	opMin          expOp = 50
	opMax          expOp = 51
	opDigestModulo expOp = 64
	opDeviceSize   expOp = 65
	opLastUpdate   expOp = 66
	opSinceUpdate  expOp = 67
	opVoidTime     expOp = 68
	opTTL          expOp = 69
	opSetName      expOp = 70
	opKeyExists    expOp = 71
	opIsTombstone  expOp = 72
	opMemorySize   expOp = 73
	opRecordSize   expOp = 74
	opKey          expOp = 80
	opBin          expOp = 81
	opBinType      expOp = 82
	opLet          expOp = 120
	opVar          expOp = 122
	opCond         expOp = 123
	opQuoted       expOp = 126
	opCall         expOp = 127
)

// ExpType names the value type an expression leaf evaluates to.
type ExpType int

const (
	TypeNil    ExpType = 0
	TypeBool   ExpType = 1
	TypeInt    ExpType = 2
	TypeString ExpType = 3
	TypeList   ExpType = 4
	TypeMap    ExpType = 5
	TypeBlob   ExpType = 6
	TypeFloat  ExpType = 7
	TypeGeo    ExpType = 8
	TypeHLL    ExpType = 9
)

// RegexFlag modifies regex_compare matching.
type RegexFlag int

const (
	RegexNone     RegexFlag = 0
	RegexExtended RegexFlag = 1
	RegexICase    RegexFlag = 2
	RegexNoSub    RegexFlag = 4
	RegexNewline  RegexFlag = 8
)

// Expression is one node of the filter AST.
type Expression struct {
	cmd    expOp
	val    value.Value
	bin    *Expression
	flags  int64
	module ExpType
	exps   []*Expression

	hasFlags  bool
	hasModule bool
	isLiteral bool
	isDef     bool
	raw       []byte
}

func newOp(cmd expOp, exps ...*Expression) *Expression {
	return &Expression{cmd: cmd, exps: exps}
}

func literal(v value.Value) *Expression {
	return &Expression{isLiteral: true, val: v}
}

// Pack serializes the expression to its wire payload.
func (e *Expression) Pack() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := e.pack(enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Expression) pack(enc *msgpack.Encoder) error {
	if e.isLiteral {
		return packLiteral(enc, e.val)
	}

	if e.isDef {
		// A binding contributes two stream items inside its Let: the
		// name and the bound expression.
		if err := value.Pack(enc, e.val); err != nil {
			return err
		}
		return e.exps[0].pack(enc)
	}

	if e.cmd == opCall {
		// [CALL, return type, module, packed CDT op, bin]
		if err := enc.EncodeArrayLen(5); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.cmd)); err != nil {
			return err
		}
		if err := enc.EncodeInt(e.flags); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.module)); err != nil {
			return err
		}
		if _, err := enc.Writer().Write(e.raw); err != nil {
			return err
		}
		return e.bin.pack(enc)
	}

	if len(e.exps) > 0 {
		// Def bindings flatten into two stream items each.
		items := 1
		for _, sub := range e.exps {
			if sub.isDef {
				items += 2
			} else {
				items++
			}
		}
		if err := enc.EncodeArrayLen(items); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.cmd)); err != nil {
			return err
		}
		for _, sub := range e.exps {
			if err := sub.pack(enc); err != nil {
				return err
			}
		}
		return nil
	}

	switch e.cmd {
	case opRegex:
		// [cmd, flags, pattern, bin]
		if err := enc.EncodeArrayLen(4); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.cmd)); err != nil {
			return err
		}
		if err := enc.EncodeInt(e.flags); err != nil {
			return err
		}
		if err := value.Pack(enc, e.val); err != nil {
			return err
		}
		return e.bin.pack(enc)
	case opBin:
		// [cmd, type, name]
		if err := enc.EncodeArrayLen(3); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.cmd)); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(e.module)); err != nil {
			return err
		}
		return value.Pack(enc, e.val)
	default:
	}

	// Generic leaf: [cmd] plus optional module and value arguments.
	count := 1
	if e.hasModule {
		count++
	}
	if e.val != nil {
		count++
	}
	if err := enc.EncodeArrayLen(count); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(e.cmd)); err != nil {
		return err
	}
	if e.hasModule {
		if err := enc.EncodeInt(int64(e.module)); err != nil {
			return err
		}
	}
	if e.val != nil {
		if err := value.Pack(enc, e.val); err != nil {
			return err
		}
	}
	return nil
}

func packLiteral(enc *msgpack.Encoder, v value.Value) error {
	// List literals must be quoted so the server does not interpret
	// them as nested expressions.
	if list, ok := v.(value.ListValue); ok {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeInt(int64(opQuoted)); err != nil {
			return err
		}
		return value.Pack(enc, list)
	}
	return value.Pack(enc, v)
}
