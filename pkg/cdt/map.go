package cdt

import (
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/value"
)

// MapWriteFlags modify map write operations.
type MapWriteFlags int

const (
	MapWriteDefault    MapWriteFlags = 0
	MapWriteCreateOnly MapWriteFlags = 1
	MapWriteUpdateOnly MapWriteFlags = 2
	MapWriteNoFail     MapWriteFlags = 4
	MapWritePartial    MapWriteFlags = 8
)

// MapPolicy combines order and write flags for map mutations.
type MapPolicy struct {
	Order      value.MapOrder
	WriteFlags MapWriteFlags
}

// MapReturnType selects what map selection operations return. Base
// types compose with ReturnInverted.
type MapReturnType int

const (
	MapReturnNone         MapReturnType = 0
	MapReturnIndex        MapReturnType = 1
	MapReturnReverseIndex MapReturnType = 2
	MapReturnRank         MapReturnType = 3
	MapReturnReverseRank  MapReturnType = 4
	MapReturnCount        MapReturnType = 5
	MapReturnKey          MapReturnType = 6
	MapReturnValue        MapReturnType = 7
	MapReturnKeyValue     MapReturnType = 8
	MapReturnExists       MapReturnType = 13
	MapReturnUnordered    MapReturnType = 16
	MapReturnOrdered      MapReturnType = 17
)

const (
	mapOpSetPolicy              = 64
	mapOpPut                    = 67
	mapOpPutItems               = 68
	mapOpIncrement              = 73
	mapOpDecrement              = 74
	mapOpClear                  = 75
	mapOpRemoveByKey            = 76
	mapOpRemoveByIndex          = 77
	mapOpRemoveByRank           = 79
	mapOpRemoveByKeyList        = 81
	mapOpRemoveByValue          = 82
	mapOpRemoveByValueList      = 83
	mapOpRemoveByKeyInterval    = 84
	mapOpRemoveByIndexRange     = 85
	mapOpRemoveByValueInterval  = 86
	mapOpRemoveByRankRange      = 87
	mapOpRemoveByKeyRelIndex    = 88
	mapOpRemoveByValueRelRank   = 89
	mapOpSize                   = 96
	mapOpGetByKey               = 97
	mapOpGetByIndex             = 98
	mapOpGetByRank              = 100
	mapOpGetByValue             = 102
	mapOpGetByKeyInterval       = 103
	mapOpGetByIndexRange        = 104
	mapOpGetByValueInterval     = 105
	mapOpGetByRankRange         = 106
	mapOpGetByKeyList           = 107
	mapOpGetByValueList         = 108
	mapOpGetByKeyRelIndexRange  = 109
	mapOpGetByValueRelRankRange = 110
)

func mapRead(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpCDTRead, bin, op, ctx, args...)
}

func mapModify(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpCDTModify, bin, op, ctx, args...)
}

// MapCreate makes an empty map bin (or nested map at ctx) with the
// given order.
func MapCreate(bin string, order value.MapOrder, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpSetPolicy, ctx, value.IntValue(int64(order)))
}

// MapSetPolicy changes the order attribute of an existing map.
func MapSetPolicy(policy MapPolicy, bin string, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpSetPolicy, ctx, value.IntValue(int64(policy.Order)))
}

func MapSize(bin string, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpSize, ctx)
}

func MapPut(policy MapPolicy, bin string, key, v value.Value, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpPut, ctx, key, v,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
}

// MapPutItems writes every entry of the given map.
func MapPutItems(policy MapPolicy, bin string, entries value.MapValue, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpPutItems, ctx, entries,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
}

func MapIncrement(policy MapPolicy, bin string, key, delta value.Value, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpIncrement, ctx, key, delta,
		value.IntValue(int64(policy.Order)))
}

func MapDecrement(policy MapPolicy, bin string, key, delta value.Value, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpDecrement, ctx, key, delta,
		value.IntValue(int64(policy.Order)))
}

func MapClear(bin string, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpClear, ctx)
}

func MapGetByKey(bin string, key value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByKey, ctx, value.IntValue(int64(rt)), key)
}

func MapGetByKeyList(bin string, keys []value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByKeyList, ctx, value.IntValue(int64(rt)), value.ListValue(keys))
}

// MapGetByKeyRange selects entries with keys in [begin, end).
func MapGetByKeyRange(bin string, begin, end value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByKeyInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func MapGetByKeyRelativeIndexRange(bin string, key value.Value, index, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByKeyRelIndexRange, ctx,
		value.IntValue(int64(rt)), key, value.IntValue(index), value.IntValue(count))
}

func MapGetByValue(bin string, v value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByValue, ctx, value.IntValue(int64(rt)), v)
}

func MapGetByValueList(bin string, values []value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByValueList, ctx, value.IntValue(int64(rt)), value.ListValue(values))
}

func MapGetByValueRange(bin string, begin, end value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func MapGetByValueRelativeRankRange(bin string, v value.Value, rank, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByValueRelRankRange, ctx,
		value.IntValue(int64(rt)), v, value.IntValue(rank), value.IntValue(count))
}

func MapGetByIndex(bin string, index int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByIndex, ctx, value.IntValue(int64(rt)), value.IntValue(index))
}

func MapGetByIndexRange(bin string, index, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByIndexRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(index), value.IntValue(count))
}

func MapGetByRank(bin string, rank int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByRank, ctx, value.IntValue(int64(rt)), value.IntValue(rank))
}

func MapGetByRankRange(bin string, rank, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapRead(bin, mapOpGetByRankRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(rank), value.IntValue(count))
}

func MapRemoveByKey(bin string, key value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByKey, ctx, value.IntValue(int64(rt)), key)
}

func MapRemoveByKeyList(bin string, keys []value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByKeyList, ctx, value.IntValue(int64(rt)), value.ListValue(keys))
}

func MapRemoveByKeyRange(bin string, begin, end value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByKeyInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func MapRemoveByKeyRelativeIndexRange(bin string, key value.Value, index, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByKeyRelIndex, ctx,
		value.IntValue(int64(rt)), key, value.IntValue(index), value.IntValue(count))
}

func MapRemoveByValue(bin string, v value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByValue, ctx, value.IntValue(int64(rt)), v)
}

func MapRemoveByValueList(bin string, values []value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByValueList, ctx,
		value.IntValue(int64(rt)), value.ListValue(values))
}

func MapRemoveByValueRange(bin string, begin, end value.Value, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func MapRemoveByValueRelativeRankRange(bin string, v value.Value, rank, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByValueRelRank, ctx,
		value.IntValue(int64(rt)), v, value.IntValue(rank), value.IntValue(count))
}

func MapRemoveByIndex(bin string, index int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByIndex, ctx, value.IntValue(int64(rt)), value.IntValue(index))
}

func MapRemoveByIndexRange(bin string, index, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByIndexRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(index), value.IntValue(count))
}

func MapRemoveByRank(bin string, rank int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByRank, ctx, value.IntValue(int64(rt)), value.IntValue(rank))
}

func MapRemoveByRankRange(bin string, rank, count int, rt MapReturnType, ctx ...CTX) *Operation {
	return mapModify(bin, mapOpRemoveByRankRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(rank), value.IntValue(count))
}
