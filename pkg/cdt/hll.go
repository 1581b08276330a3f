package cdt

import (
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/value"
)

// HLLWriteFlags modify HyperLogLog write operations.
type HLLWriteFlags int

const (
	HLLWriteDefault    HLLWriteFlags = 0
	HLLWriteCreateOnly HLLWriteFlags = 1
	HLLWriteUpdateOnly HLLWriteFlags = 2
	HLLWriteNoFail     HLLWriteFlags = 4
	HLLWriteAllowFold  HLLWriteFlags = 8
)

// HLLPolicy carries the write flags for HyperLogLog mutations.
type HLLPolicy struct {
	WriteFlags HLLWriteFlags
}

const (
	hllOpInit           = 0
	hllOpAdd            = 1
	hllOpSetUnion       = 2
	hllOpRefreshCount   = 3
	hllOpFold           = 4
	hllOpCount          = 50
	hllOpUnion          = 51
	hllOpUnionCount     = 52
	hllOpIntersectCount = 53
	hllOpSimilarity     = 54
	hllOpDescribe       = 55
)

func hllRead(bin string, op int, args ...value.Value) *Operation {
	return cdtOp(wire.OpHLLRead, bin, op, nil, args...)
}

func hllModify(bin string, op int, args ...value.Value) *Operation {
	return cdtOp(wire.OpHLLModify, bin, op, nil, args...)
}

// HLLInit creates an empty HyperLogLog bin. minHashBitCount of zero
// disables the minhash portion; indexBitCount must be in 4..=16.
func HLLInit(policy HLLPolicy, bin string, indexBitCount, minHashBitCount int) *Operation {
	return hllModify(bin, hllOpInit, value.IntValue(indexBitCount),
		value.IntValue(minHashBitCount), value.IntValue(int64(policy.WriteFlags)))
}

// HLLAdd registers items, creating the bin with the given layout when
// missing. Returns the number of registers that changed.
func HLLAdd(policy HLLPolicy, bin string, items []value.Value, indexBitCount, minHashBitCount int) *Operation {
	return hllModify(bin, hllOpAdd, value.ListValue(items),
		value.IntValue(indexBitCount), value.IntValue(minHashBitCount),
		value.IntValue(int64(policy.WriteFlags)))
}

// HLLSetUnion folds the given HLL payloads into the bin.
func HLLSetUnion(policy HLLPolicy, bin string, hlls []value.HLLValue) *Operation {
	return hllModify(bin, hllOpSetUnion, hllList(hlls),
		value.IntValue(int64(policy.WriteFlags)))
}

// HLLRefreshCount recomputes and caches the estimated cardinality.
func HLLRefreshCount(bin string) *Operation {
	return hllModify(bin, hllOpRefreshCount)
}

// HLLFold shrinks the index bit count. Fails unless the bin was built
// without a minhash portion.
func HLLFold(bin string, indexBitCount int) *Operation {
	return hllModify(bin, hllOpFold, value.IntValue(indexBitCount))
}

// HLLGetCount estimates the cardinality of the bin.
func HLLGetCount(bin string) *Operation {
	return hllRead(bin, hllOpCount)
}

// HLLGetUnion returns an HLL merging the bin with the given payloads.
func HLLGetUnion(bin string, hlls []value.HLLValue) *Operation {
	return hllRead(bin, hllOpUnion, hllList(hlls))
}

// HLLGetUnionCount estimates the cardinality of that union.
func HLLGetUnionCount(bin string, hlls []value.HLLValue) *Operation {
	return hllRead(bin, hllOpUnionCount, hllList(hlls))
}

// HLLGetIntersectCount estimates the cardinality of the intersection.
func HLLGetIntersectCount(bin string, hlls []value.HLLValue) *Operation {
	return hllRead(bin, hllOpIntersectCount, hllList(hlls))
}

// HLLGetSimilarity estimates the Jaccard similarity of the bin and the
// given payloads.
func HLLGetSimilarity(bin string, hlls []value.HLLValue) *Operation {
	return hllRead(bin, hllOpSimilarity, hllList(hlls))
}

// HLLDescribe returns [indexBitCount, minHashBitCount].
func HLLDescribe(bin string) *Operation {
	return hllRead(bin, hllOpDescribe)
}

func hllList(hlls []value.HLLValue) value.Value {
	out := make([]value.Value, len(hlls))
	for i, h := range hlls {
		out[i] = h
	}
	return value.ListValue(out)
}
