package cdt

import (
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/value"
)

// ListOrder declares whether a list bin keeps insertion order or stays
// sorted.
type ListOrder int

const (
	ListUnordered ListOrder = 0
	ListOrdered   ListOrder = 1
)

// ListWriteFlags modify list write operations.
type ListWriteFlags int

const (
	ListWriteDefault       ListWriteFlags = 0
	ListWriteAddUnique     ListWriteFlags = 1
	ListWriteInsertBounded ListWriteFlags = 2
	ListWriteNoFail        ListWriteFlags = 4
	ListWritePartial       ListWriteFlags = 8
)

// ListSortFlags modify ListSort.
type ListSortFlags int

const (
	ListSortDefault        ListSortFlags = 0
	ListSortDescending     ListSortFlags = 1
	ListSortDropDuplicates ListSortFlags = 2
)

// ListPolicy combines order and write flags for list mutations.
type ListPolicy struct {
	Order      ListOrder
	WriteFlags ListWriteFlags
}

// ListReturnType selects what list selection operations return. Base
// types compose with ReturnInverted.
type ListReturnType int

const (
	ListReturnNone         ListReturnType = 0
	ListReturnIndex        ListReturnType = 1
	ListReturnReverseIndex ListReturnType = 2
	ListReturnRank         ListReturnType = 3
	ListReturnReverseRank  ListReturnType = 4
	ListReturnCount        ListReturnType = 5
	ListReturnValue        ListReturnType = 7
	ListReturnExists       ListReturnType = 13

	// ReturnInverted selects everything except the matched elements.
	ReturnInverted = 0x10000
)

const (
	listOpSetType                = 0
	listOpAppend                 = 1
	listOpAppendItems            = 2
	listOpInsert                 = 3
	listOpInsertItems            = 4
	listOpPop                    = 5
	listOpPopRange               = 6
	listOpRemove                 = 7
	listOpRemoveRange            = 8
	listOpSet                    = 9
	listOpTrim                   = 10
	listOpClear                  = 11
	listOpIncrement              = 12
	listOpSort                   = 13
	listOpSize                   = 16
	listOpGet                    = 17
	listOpGetRange               = 18
	listOpGetByIndex             = 19
	listOpGetByRank              = 21
	listOpGetByValue             = 22
	listOpGetByValueList         = 23
	listOpGetByIndexRange        = 24
	listOpGetByValueInterval     = 25
	listOpGetByRankRange         = 26
	listOpGetByValueRelRankRange = 27
	listOpRemoveByIndex          = 32
	listOpRemoveByRank           = 34
	listOpRemoveByValue          = 35
	listOpRemoveByValueList      = 36
	listOpRemoveByIndexRange     = 37
	listOpRemoveByValueInterval  = 38
	listOpRemoveByRankRange      = 39
	listOpRemoveByValueRelRank   = 40
)

func listRead(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpCDTRead, bin, op, ctx, args...)
}

func listModify(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpCDTModify, bin, op, ctx, args...)
}

// ListCreate makes an empty list bin (or nested list at ctx) with the
// given order.
func ListCreate(bin string, order ListOrder, pad bool, ctx ...CTX) *Operation {
	flags := int64(0)
	if pad {
		flags = 1 << 1
	}
	return listModify(bin, listOpSetType, ctx, value.IntValue(int64(order)|flags))
}

// ListSetOrder changes the order attribute of an existing list.
func ListSetOrder(bin string, order ListOrder, ctx ...CTX) *Operation {
	return listModify(bin, listOpSetType, ctx, value.IntValue(int64(order)))
}

func ListSize(bin string, ctx ...CTX) *Operation {
	return listRead(bin, listOpSize, ctx)
}

func ListAppend(policy ListPolicy, bin string, v value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpAppend, ctx, v,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
}

func ListAppendItems(policy ListPolicy, bin string, items []value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpAppendItems, ctx, value.ListValue(items),
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
}

func ListInsert(policy ListPolicy, bin string, index int, v value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpInsert, ctx, value.IntValue(index), v,
		value.IntValue(int64(policy.WriteFlags)))
}

func ListInsertItems(policy ListPolicy, bin string, index int, items []value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpInsertItems, ctx, value.IntValue(index),
		value.ListValue(items), value.IntValue(int64(policy.WriteFlags)))
}

func ListIncrement(policy ListPolicy, bin string, index int, delta value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpIncrement, ctx, value.IntValue(index), delta,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
}

func ListSet(bin string, index int, v value.Value, ctx ...CTX) *Operation {
	return listModify(bin, listOpSet, ctx, value.IntValue(index), v)
}

func ListPop(bin string, index int, ctx ...CTX) *Operation {
	return listModify(bin, listOpPop, ctx, value.IntValue(index))
}

func ListPopRange(bin string, index, count int, ctx ...CTX) *Operation {
	return listModify(bin, listOpPopRange, ctx, value.IntValue(index), value.IntValue(count))
}

func ListRemove(bin string, index int, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemove, ctx, value.IntValue(index))
}

func ListRemoveRange(bin string, index, count int, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveRange, ctx, value.IntValue(index), value.IntValue(count))
}

func ListTrim(bin string, index, count int, ctx ...CTX) *Operation {
	return listModify(bin, listOpTrim, ctx, value.IntValue(index), value.IntValue(count))
}

func ListClear(bin string, ctx ...CTX) *Operation {
	return listModify(bin, listOpClear, ctx)
}

func ListSort(bin string, flags ListSortFlags, ctx ...CTX) *Operation {
	return listModify(bin, listOpSort, ctx, value.IntValue(int64(flags)))
}

func ListGet(bin string, index int, ctx ...CTX) *Operation {
	return listRead(bin, listOpGet, ctx, value.IntValue(index))
}

func ListGetRange(bin string, index, count int, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetRange, ctx, value.IntValue(index), value.IntValue(count))
}

func ListGetByIndex(bin string, index int, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByIndex, ctx, value.IntValue(int64(rt)), value.IntValue(index))
}

func ListGetByIndexRange(bin string, index, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByIndexRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(index), value.IntValue(count))
}

func ListGetByRank(bin string, rank int, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByRank, ctx, value.IntValue(int64(rt)), value.IntValue(rank))
}

func ListGetByRankRange(bin string, rank, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByRankRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(rank), value.IntValue(count))
}

func ListGetByValue(bin string, v value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByValue, ctx, value.IntValue(int64(rt)), v)
}

func ListGetByValueList(bin string, values []value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByValueList, ctx, value.IntValue(int64(rt)), value.ListValue(values))
}

// ListGetByValueRange selects values in [begin, end). Infinity and
// Wildcard markers are valid bounds.
func ListGetByValueRange(bin string, begin, end value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func ListGetByValueRelativeRankRange(bin string, v value.Value, rank, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listRead(bin, listOpGetByValueRelRankRange, ctx,
		value.IntValue(int64(rt)), v, value.IntValue(rank), value.IntValue(count))
}

func ListRemoveByIndex(bin string, index int, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByIndex, ctx, value.IntValue(int64(rt)), value.IntValue(index))
}

func ListRemoveByIndexRange(bin string, index, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByIndexRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(index), value.IntValue(count))
}

func ListRemoveByRank(bin string, rank int, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByRank, ctx, value.IntValue(int64(rt)), value.IntValue(rank))
}

func ListRemoveByRankRange(bin string, rank, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByRankRange, ctx,
		value.IntValue(int64(rt)), value.IntValue(rank), value.IntValue(count))
}

func ListRemoveByValue(bin string, v value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByValue, ctx, value.IntValue(int64(rt)), v)
}

func ListRemoveByValueList(bin string, values []value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByValueList, ctx,
		value.IntValue(int64(rt)), value.ListValue(values))
}

func ListRemoveByValueRange(bin string, begin, end value.Value, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
}

func ListRemoveByValueRelativeRankRange(bin string, v value.Value, rank, count int, rt ListReturnType, ctx ...CTX) *Operation {
	return listModify(bin, listOpRemoveByValueRelRank, ctx,
		value.IntValue(int64(rt)), v, value.IntValue(rank), value.IntValue(count))
}
