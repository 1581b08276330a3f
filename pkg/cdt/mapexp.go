package cdt

import (
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/value"
)

func mapExpRead(valueType exp.ExpType, payload []byte, err error, bin *exp.Expression) *exp.Expression {
	if err != nil {
		return exp.Unknown()
	}
	return exp.NewCall(int64(valueType), expModuleMap, payload, bin)
}

func mapExpModify(payload []byte, err error, bin *exp.Expression) *exp.Expression {
	if err != nil {
		return exp.Unknown()
	}
	return exp.NewCall(int64(exp.TypeMap), expModuleMap|expModifyFlag, payload, bin)
}

// MapExpSize evaluates to the entry count of the map bin.
func MapExpSize(bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpSize, ctx)
	return mapExpRead(exp.TypeInt, payload, err, bin)
}

func MapExpGetByKey(rt MapReturnType, valueType exp.ExpType, key, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByKey, ctx, value.IntValue(int64(rt)), key)
	return mapExpRead(valueType, payload, err, bin)
}

func MapExpGetByKeyList(rt MapReturnType, keys, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByKeyList, ctx, value.IntValue(int64(rt)), keys)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpGetByKeyRange(rt MapReturnType, begin, end, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByKeyInterval, ctx, value.IntValue(int64(rt)), begin, end)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpGetByValue(rt MapReturnType, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByValue, ctx, value.IntValue(int64(rt)), v)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpGetByValueRange(rt MapReturnType, begin, end, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByValueInterval, ctx, value.IntValue(int64(rt)), begin, end)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpGetByIndex(rt MapReturnType, valueType exp.ExpType, index, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByIndex, ctx, value.IntValue(int64(rt)), index)
	return mapExpRead(valueType, payload, err, bin)
}

func MapExpGetByIndexRange(rt MapReturnType, index, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByIndexRange, ctx, value.IntValue(int64(rt)), index, count)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpGetByRank(rt MapReturnType, valueType exp.ExpType, rank, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByRank, ctx, value.IntValue(int64(rt)), rank)
	return mapExpRead(valueType, payload, err, bin)
}

func MapExpGetByRankRange(rt MapReturnType, rank, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpGetByRankRange, ctx, value.IntValue(int64(rt)), rank, count)
	return mapExpRead(returnValueType(int(rt)), payload, err, bin)
}

func MapExpPut(policy MapPolicy, key, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpPut, ctx, key, v,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
	return mapExpModify(payload, err, bin)
}

func MapExpPutItems(policy MapPolicy, entries, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpPutItems, ctx, entries,
		value.IntValue(int64(policy.Order)), value.IntValue(int64(policy.WriteFlags)))
	return mapExpModify(payload, err, bin)
}

func MapExpIncrement(policy MapPolicy, key, delta, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpIncrement, ctx, key, delta,
		value.IntValue(int64(policy.Order)))
	return mapExpModify(payload, err, bin)
}

func MapExpClear(bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpClear, ctx)
	return mapExpModify(payload, err, bin)
}

func MapExpRemoveByKey(key, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpRemoveByKey, ctx, value.IntValue(int64(MapReturnNone)), key)
	return mapExpModify(payload, err, bin)
}

func MapExpRemoveByKeyList(rt MapReturnType, keys, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpRemoveByKeyList, ctx, value.IntValue(int64(rt)), keys)
	return mapExpModify(payload, err, bin)
}

func MapExpRemoveByValue(rt MapReturnType, v, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpRemoveByValue, ctx, value.IntValue(int64(rt)), v)
	return mapExpModify(payload, err, bin)
}

func MapExpRemoveByIndexRange(rt MapReturnType, index, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpRemoveByIndexRange, ctx, value.IntValue(int64(rt)), index, count)
	return mapExpModify(payload, err, bin)
}

func MapExpRemoveByRankRange(rt MapReturnType, rank, count, bin *exp.Expression, ctx ...CTX) *exp.Expression {
	payload, err := packCDT(mapOpRemoveByRankRange, ctx, value.IntValue(int64(rt)), rank, count)
	return mapExpModify(payload, err, bin)
}
