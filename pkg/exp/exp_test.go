package exp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phamduclong/aerogo/pkg/value"
)

func decodeAll(t *testing.T, raw []byte) interface{} {
	t.Helper()
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	v, err := dec.DecodeInterface()
	require.NoError(t, err)
	return v
}

func TestEqIntBinPacksAsTree(t *testing.T) {
	e := Eq(IntBin("age"), IntVal(30))
	raw, err := e.Pack()
	require.NoError(t, err)

	top, ok := decodeAll(t, raw).([]interface{})
	require.True(t, ok)
	require.Len(t, top, 3)
	assert.EqualValues(t, opEQ, top[0])

	binNode, ok := top[1].([]interface{})
	require.True(t, ok)
	require.Len(t, binNode, 3)
	assert.EqualValues(t, opBin, binNode[0])
	assert.EqualValues(t, TypeInt, binNode[1])
	assert.EqualValues(t, "age", binNode[2])

	assert.EqualValues(t, 30, top[2])
}

func TestLogicalNesting(t *testing.T) {
	e := And(
		Gt(IntBin("a"), IntVal(1)),
		Or(KeyExists(), Not(IsTombstone())),
	)
	raw, err := e.Pack()
	require.NoError(t, err)

	top := decodeAll(t, raw).([]interface{})
	require.Len(t, top, 3)
	assert.EqualValues(t, opAnd, top[0])

	or := top[2].([]interface{})
	assert.EqualValues(t, opOr, or[0])
	not := or[2].([]interface{})
	assert.EqualValues(t, opNot, not[0])
}

func TestRegexPacksFlagsPatternBin(t *testing.T) {
	e := RegexCompare("^a.*", RegexICase, StringBin("name"))
	raw, err := e.Pack()
	require.NoError(t, err)

	top := decodeAll(t, raw).([]interface{})
	require.Len(t, top, 4)
	assert.EqualValues(t, opRegex, top[0])
	assert.EqualValues(t, RegexICase, top[1])
	assert.EqualValues(t, "^a.*", top[2])
}

func TestListLiteralIsQuoted(t *testing.T) {
	e := Eq(ListBin("tags"), ListVal([]value.Value{value.IntValue(1), value.IntValue(2)}))
	raw, err := e.Pack()
	require.NoError(t, err)

	top := decodeAll(t, raw).([]interface{})
	lit := top[2].([]interface{})
	require.Len(t, lit, 2)
	assert.EqualValues(t, opQuoted, lit[0])
}

func TestMapValAcceptsOrderedAndUnordered(t *testing.T) {
	pairs := []value.MapPair{{Key: value.StringValue("k"), Value: value.IntValue(1)}}
	for _, order := range []value.MapOrder{value.MapUnordered, value.MapKeyOrdered} {
		e := Eq(MapBin("m"), MapVal(value.MapValue{Order: order, Pairs: pairs}))
		_, err := e.Pack()
		assert.NoError(t, err, "order %v", order)
	}
}

func TestLetDefVar(t *testing.T) {
	e := Let(
		Def("x", IntBin("a")),
		Gt(Var("x"), IntVal(10)),
	)
	raw, err := e.Pack()
	require.NoError(t, err)

	// let packs [LET, "x", <bin exp>, <body>]: the def flattens into
	// two stream items.
	top := decodeAll(t, raw).([]interface{})
	require.Len(t, top, 4)
	assert.EqualValues(t, opLet, top[0])
	assert.EqualValues(t, "x", top[1])
}

func TestCondArithmetic(t *testing.T) {
	e := Cond(
		Ge(IntBin("n"), IntVal(100)), NumMul(IntBin("n"), IntVal(2)),
		Unknown(),
	)
	raw, err := e.Pack()
	require.NoError(t, err)
	top := decodeAll(t, raw).([]interface{})
	assert.EqualValues(t, opCond, top[0])
}

func TestDeprecatedSizeAliases(t *testing.T) {
	for _, e := range []*Expression{DeviceSize(), MemorySize(), RecordSize()} {
		raw, err := e.Pack()
		require.NoError(t, err)
		top := decodeAll(t, raw).([]interface{})
		require.Len(t, top, 1)
	}
}

func TestDigestModuloCarriesArgument(t *testing.T) {
	raw, err := DigestModulo(3).Pack()
	require.NoError(t, err)
	top := decodeAll(t, raw).([]interface{})
	require.Len(t, top, 2)
	assert.EqualValues(t, opDigestModulo, top[0])
	assert.EqualValues(t, 3, top[1])
}
