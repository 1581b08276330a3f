package cdt

import (
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/value"
)

// Expression call modules. The modify flag marks calls that rewrite the
// bin instead of reading it.
const (
	expModuleList = 0
	expModuleMap  = 1

	expModifyFlag = 0x40
)

func listExpRead(valueType exp.ExpType, payload []byte, err error, bin *exp.Expression) *exp.Expression {
	if err != nil {
		return exp.Unknown()
	}
	return exp.NewCall(int64(valueType), expModuleList, payload, bin)
}

func listExpModify(payload []byte, err error, bin *exp.Expression) *exp.Expression {
	if err != nil {
		return exp.Unknown()
	}
	return exp.NewCall(int64(exp.TypeList), expModuleList|expModifyFlag, payload, bin)
}

// returnValueType maps a selection return type onto the expression type
// of the call result.
func returnValueType(rt int) exp.ExpType {
	switch rt &^ ReturnInverted {
	case int(ListReturnIndex), int(ListReturnReverseIndex),
		int(ListReturnRank), int(ListReturnReverseRank):
		return exp.TypeList
	case int(ListReturnCount):
		return exp.TypeInt
	case int(ListReturnExists):
		return exp.TypeBool
	case int(MapReturnKeyValue), int(MapReturnUnordered), int(MapReturnOrdered):
		return exp.TypeMap
	default:
		return exp.TypeList
	}
}

// ListExpSize evaluates to the element count of the list bin.
func ListExpSize(bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpSize, ctx)
	return listExpRead(exp.TypeInt, payload, err, bin)
}

func ListExpGetByIndex(rt ListReturnType, valueType exp.ExpType, index, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByIndex, ctx, value.IntValue(int64(rt)), index)
	return listExpRead(valueType, payload, err, bin)
}

func ListExpGetByIndexRange(rt ListReturnType, index, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByIndexRange, ctx, value.IntValue(int64(rt)), index, count)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpGetByRank(rt ListReturnType, valueType exp.ExpType, rank, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByRank, ctx, value.IntValue(int64(rt)), rank)
	return listExpRead(valueType, payload, err, bin)
}

func ListExpGetByRankRange(rt ListReturnType, rank, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByRankRange, ctx, value.IntValue(int64(rt)), rank, count)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpGetByValue(rt ListReturnType, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByValue, ctx, value.IntValue(int64(rt)), v)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpGetByValueList(rt ListReturnType, values, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByValueList, ctx, value.IntValue(int64(rt)), values)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpGetByValueRange(rt ListReturnType, begin, end, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpGetByValueRelativeRankRange(rt ListReturnType, v, rank, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpGetByValueRelRankRange, ctx, value.IntValue(int64(rt)), v, rank, count)
	return listExpRead(returnValueType(int(rt)), payload, err, bin)
}

func ListExpAppend(policy ListPolicy, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpAppend, ctx, v,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
	return listExpModify(payload, err, bin)
}

func ListExpAppendItems(policy ListPolicy, items, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpAppendItems, ctx, items,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
	return listExpModify(payload, err, bin)
}

func ListExpInsert(policy ListPolicy, index, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpInsert, ctx, index, v, value.IntValue(int64(policy.WriteFlags)))
	return listExpModify(payload, err, bin)
}

func ListExpClear(bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpClear, ctx)
	return listExpModify(payload, err, bin)
}

func ListExpSort(flags ListSortFlags, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpSort, ctx, value.IntValue(int64(flags)))
	return listExpModify(payload, err, bin)
}

func ListExpRemoveByValue(rt ListReturnType, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpRemoveByValue, ctx, value.IntValue(int64(rt)), v)
	return listExpModify(payload, err, bin)
}

func ListExpRemoveByIndex(rt ListReturnType, index, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpRemoveByIndex, ctx, value.IntValue(int64(rt)), index)
	return listExpModify(payload, err, bin)
}

func ListExpRemoveByIndexRange(rt ListReturnType, index, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpRemoveByIndexRange, ctx, value.IntValue(int64(rt)), index, count)
	return listExpModify(payload, err, bin)
}

func ListExpRemoveByRankRange(rt ListReturnType, rank, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(listOpRemoveByRankRange, ctx, value.IntValue(int64(rt)), rank, count)
	return listExpModify(payload, err, bin)
}
