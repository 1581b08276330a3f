package cdt

import (
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/value"
)

// BitWriteFlags modify blob bitwise write operations.
type BitWriteFlags int

const (
	BitWriteDefault    BitWriteFlags = 0
	BitWriteCreateOnly BitWriteFlags = 1
	BitWriteUpdateOnly BitWriteFlags = 2
	BitWriteNoFail     BitWriteFlags = 4
	BitWritePartial    BitWriteFlags = 8
)

// BitPolicy carries the write flags for bitwise mutations.
type BitPolicy struct {
	WriteFlags BitWriteFlags
}

// BitResizeFlags modify BitResize.
type BitResizeFlags int

const (
	BitResizeDefault    BitResizeFlags = 0
	BitResizeFromFront  BitResizeFlags = 1
	BitResizeGrowOnly   BitResizeFlags = 2
	BitResizeShrinkOnly BitResizeFlags = 4
)

// BitOverflowAction decides what BitAdd and BitSubtract do on integer
// overflow.
type BitOverflowAction int

const (
	BitOverflowFail     BitOverflowAction = 0
	BitOverflowSaturate BitOverflowAction = 2
	BitOverflowWrap     BitOverflowAction = 4
)

const (
	bitOpResize   = 0
	bitOpInsert   = 1
	bitOpRemove   = 2
	bitOpSet      = 3
	bitOpOr       = 4
	bitOpXor      = 5
	bitOpAnd      = 6
	bitOpNot      = 7
	bitOpLShift   = 8
	bitOpRShift   = 9
	bitOpAdd      = 10
	bitOpSubtract = 11
	bitOpSetInt   = 12
	bitOpGet      = 50
	bitOpCount    = 51
	bitOpLScan    = 52
	bitOpRScan    = 53
	bitOpGetInt   = 54

	bitIntFlagSigned = 1
)

func bitRead(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpBitRead, bin, op, ctx, args...)
}

func bitModify(bin string, op int, ctx []CTX, args ...value.Value) *Operation {
	return cdtOp(wire.OpBitModify, bin, op, ctx, args...)
}

// BitResize grows or shrinks the blob to byteSize bytes.
func BitResize(policy BitPolicy, bin string, byteSize int, flags BitResizeFlags, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpResize, ctx, value.IntValue(byteSize),
		value.IntValue(int64(policy.WriteFlags)), value.IntValue(int64(flags)))
}

// BitInsert splices v into the blob at byteOffset.
func BitInsert(policy BitPolicy, bin string, byteOffset int, v []byte, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpInsert, ctx, value.IntValue(byteOffset),
		value.BlobValue(v), value.IntValue(int64(policy.WriteFlags)))
}

// BitRemove cuts byteSize bytes out of the blob at byteOffset.
func BitRemove(policy BitPolicy, bin string, byteOffset, byteSize int, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpRemove, ctx, value.IntValue(byteOffset),
		value.IntValue(byteSize), value.IntValue(int64(policy.WriteFlags)))
}

// BitSet overwrites bitSize bits at bitOffset with v.
func BitSet(policy BitPolicy, bin string, bitOffset, bitSize int, v []byte, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpSet, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BlobValue(v), value.IntValue(int64(policy.WriteFlags)))
}

func BitOr(policy BitPolicy, bin string, bitOffset, bitSize int, v []byte, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpOr, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BlobValue(v), value.IntValue(int64(policy.WriteFlags)))
}

func BitXor(policy BitPolicy, bin string, bitOffset, bitSize int, v []byte, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpXor, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BlobValue(v), value.IntValue(int64(policy.WriteFlags)))
}

func BitAnd(policy BitPolicy, bin string, bitOffset, bitSize int, v []byte, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpAnd, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BlobValue(v), value.IntValue(int64(policy.WriteFlags)))
}

func BitNot(policy BitPolicy, bin string, bitOffset, bitSize int, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpNot, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(int64(policy.WriteFlags)))
}

func BitLShift(policy BitPolicy, bin string, bitOffset, bitSize, shift int, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpLShift, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(shift), value.IntValue(int64(policy.WriteFlags)))
}

func BitRShift(policy BitPolicy, bin string, bitOffset, bitSize, shift int, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpRShift, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(shift), value.IntValue(int64(policy.WriteFlags)))
}

// BitAdd adds delta to the bitSize-bit integer at bitOffset.
func BitAdd(policy BitPolicy, bin string, bitOffset, bitSize int, delta int64, signed bool, action BitOverflowAction, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpAdd, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(delta),
		value.IntValue(int64(policy.WriteFlags)), value.IntValue(bitArithFlags(signed, action)))
}

// BitSubtract subtracts delta from the bitSize-bit integer at bitOffset.
func BitSubtract(policy BitPolicy, bin string, bitOffset, bitSize int, delta int64, signed bool, action BitOverflowAction, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpSubtract, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(delta),
		value.IntValue(int64(policy.WriteFlags)), value.IntValue(bitArithFlags(signed, action)))
}

func bitArithFlags(signed bool, action BitOverflowAction) int64 {
	f := int64(action)
	if signed {
		f |= bitIntFlagSigned
	}
	return f
}

// BitSetInt overwrites the bitSize-bit integer at bitOffset with v.
func BitSetInt(policy BitPolicy, bin string, bitOffset, bitSize int, v int64, ctx ...CTX) *Operation {
	return bitModify(bin, bitOpSetInt, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.IntValue(v), value.IntValue(int64(policy.WriteFlags)))
}

// BitGet reads bitSize bits at bitOffset as a byte slice.
func BitGet(bin string, bitOffset, bitSize int, ctx ...CTX) *Operation {
	return bitRead(bin, bitOpGet, ctx, value.IntValue(bitOffset), value.IntValue(bitSize))
}

// BitCount counts set bits in the range.
func BitCount(bin string, bitOffset, bitSize int, ctx ...CTX) *Operation {
	return bitRead(bin, bitOpCount, ctx, value.IntValue(bitOffset), value.IntValue(bitSize))
}

// BitLScan finds the first bit equal to v, scanning left to right.
func BitLScan(bin string, bitOffset, bitSize int, v bool, ctx ...CTX) *Operation {
	return bitRead(bin, bitOpLScan, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BoolValue(v))
}

// BitRScan finds the first bit equal to v, scanning right to left.
func BitRScan(bin string, bitOffset, bitSize int, v bool, ctx ...CTX) *Operation {
	return bitRead(bin, bitOpRScan, ctx, value.IntValue(bitOffset),
		value.IntValue(bitSize), value.BoolValue(v))
}

// BitGetInt reads the bitSize-bit integer at bitOffset.
func BitGetInt(bin string, bitOffset, bitSize int, signed bool, ctx ...CTX) *Operation {
	if signed {
		return bitRead(bin, bitOpGetInt, ctx, value.IntValue(bitOffset),
			value.IntValue(bitSize), value.IntValue(bitIntFlagSigned))
	}
	return bitRead(bin, bitOpGetInt, ctx, value.IntValue(bitOffset), value.IntValue(bitSize))
}
