package cdt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/value"
)

func decodePayload(t *testing.T, op *Operation) interface{} {
	t.Helper()
	buf := wire.GetBuffer()
	defer buf.Release()
	require.NoError(t, op.Encode(buf))

	parsed, _, err := wire.ParseOperations(buf.Bytes(), 0, 1)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, op.OpType(), parsed[0].Op)
	assert.Equal(t, value.ParticleBlob, parsed[0].Particle)

	dec := msgpack.NewDecoder(bytes.NewReader(parsed[0].Data))
	v, err := dec.DecodeInterface()
	require.NoError(t, err)
	return v
}

func TestListAppendPayload(t *testing.T) {
	op := ListAppend(ListPolicy{Order: ListOrdered, WriteFlags: ListWriteAddUnique},
		"tags", value.StringValue("red"))
	v := decodePayload(t, op)

	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 4)
	assert.EqualValues(t, listOpAppend, arr[0])
	assert.Equal(t, "red", arr[1])
	assert.EqualValues(t, ListOrdered, arr[2])
	assert.EqualValues(t, ListWriteAddUnique, arr[3])
}

func TestListGetByValueRangeWithMarkers(t *testing.T) {
	op := ListGetByValueRange("scores", value.IntValue(10), value.InfinityValue{},
		ListReturnValue)
	buf := wire.GetBuffer()
	defer buf.Release()
	require.NoError(t, op.Encode(buf))
	assert.Equal(t, wire.OpCDTRead, op.OpType())
}

func TestContextWrapsOperation(t *testing.T) {
	op := ListAppend(ListPolicy{}, "nested", value.IntValue(7),
		CtxMapKey(value.StringValue("inner")), CtxListIndex(2))
	v := decodePayload(t, op)

	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 3)
	assert.EqualValues(t, 0xff, arr[0])

	ctx, ok := arr[1].([]interface{})
	require.True(t, ok)
	require.Len(t, ctx, 4)
	assert.EqualValues(t, 0x22, ctx[0])
	assert.Equal(t, "inner", ctx[1])
	assert.EqualValues(t, 0x10, ctx[2])
	assert.EqualValues(t, 2, ctx[3])

	inner, ok := arr[2].([]interface{})
	require.True(t, ok)
	assert.EqualValues(t, listOpAppend, inner[0])
}

func TestMapPutItemsKeepsOrderTag(t *testing.T) {
	entries := value.MapValue{
		Order: value.MapKeyOrdered,
		Pairs: []value.MapPair{
			{Key: value.StringValue("a"), Value: value.IntValue(1)},
			{Key: value.StringValue("b"), Value: value.IntValue(2)},
		},
	}
	op := MapPutItems(MapPolicy{Order: value.MapKeyOrdered}, "m", entries)

	buf := wire.GetBuffer()
	defer buf.Release()
	require.NoError(t, op.Encode(buf))

	parsed, _, err := wire.ParseOperations(buf.Bytes(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, wire.OpCDTModify, parsed[0].Op)

	dec := msgpack.NewDecoder(bytes.NewReader(parsed[0].Data))
	n, err := dec.DecodeArrayLen()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	cmd, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, mapOpPutItems, cmd)

	got, err := value.UnpackOne(dec)
	require.NoError(t, err)
	m, ok := got.(value.MapValue)
	require.True(t, ok)
	assert.Equal(t, value.MapKeyOrdered, m.Order)
}

func TestScalarOps(t *testing.T) {
	buf := wire.GetBuffer()
	defer buf.Release()

	require.NoError(t, Put("name", value.StringValue("ann")).Encode(buf))
	require.NoError(t, Add("hits", value.IntValue(1)).Encode(buf))
	require.NoError(t, GetBin("name").Encode(buf))
	require.NoError(t, Touch().Encode(buf))

	ops, _, err := wire.ParseOperations(buf.Bytes(), 0, 4)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, wire.OpWrite, ops[0].Op)
	assert.Equal(t, value.ParticleString, ops[0].Particle)
	assert.Equal(t, "name", ops[0].BinName)
	assert.Equal(t, wire.OpAdd, ops[1].Op)
	assert.Equal(t, wire.OpRead, ops[2].Op)
	assert.Equal(t, wire.OpTouch, ops[3].Op)
	assert.True(t, GetHeader().HeaderOnly())
}

func TestBitAddFlags(t *testing.T) {
	op := BitAdd(BitPolicy{}, "b", 0, 8, 5, true, BitOverflowWrap)
	v := decodePayload(t, op)

	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 6)
	assert.EqualValues(t, bitOpAdd, arr[0])
	assert.EqualValues(t, int64(BitOverflowWrap)|bitIntFlagSigned, arr[5])
}

func TestHLLAddLayout(t *testing.T) {
	op := HLLAdd(HLLPolicy{WriteFlags: HLLWriteCreateOnly}, "h",
		[]value.Value{value.StringValue("x"), value.StringValue("y")}, 10, 0)
	v := decodePayload(t, op)

	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 5)
	assert.EqualValues(t, hllOpAdd, arr[0])
	assert.EqualValues(t, 10, arr[2])
	assert.EqualValues(t, 0, arr[3])
	assert.EqualValues(t, HLLWriteCreateOnly, arr[4])
}

func TestExpReadPayload(t *testing.T) {
	e := exp.Gt(exp.IntBin("score"), exp.IntVal(100))
	op := ExpRead("matched", e, ExpReadEvalNoFail)

	buf := wire.GetBuffer()
	defer buf.Release()
	require.NoError(t, op.Encode(buf))

	parsed, _, err := wire.ParseOperations(buf.Bytes(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, wire.OpExpRead, parsed[0].Op)
	assert.Equal(t, "matched", parsed[0].BinName)

	dec := msgpack.NewDecoder(bytes.NewReader(parsed[0].Data))
	n, err := dec.DecodeArrayLen()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	tree, err := dec.DecodeInterface()
	require.NoError(t, err)
	assert.IsType(t, []interface{}{}, tree)
	flags, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, ExpReadEvalNoFail, flags)
}

func TestListExpCallShape(t *testing.T) {
	e := ListExpSize(exp.ListBin("tags"))
	b, err := e.Pack()
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeArrayLen()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	cmd, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, 127, cmd)
	rt, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, exp.TypeInt, rt)
	module, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, expModuleList, module)
}

func TestMapExpModifySetsFlag(t *testing.T) {
	e := MapExpClear(exp.MapBin("m"))
	b, err := e.Pack()
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(b))
	_, err = dec.DecodeArrayLen()
	require.NoError(t, err)
	_, err = dec.DecodeInt()
	require.NoError(t, err)
	_, err = dec.DecodeInt()
	require.NoError(t, err)
	module, err := dec.DecodeInt()
	require.NoError(t, err)
	assert.EqualValues(t, expModuleMap|expModifyFlag, module)
}
