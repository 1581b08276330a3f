package exp

import (
	"github.com/phamduclong/aerogo/pkg/value"
)

// Record metadata leaves.

// Key returns the user key of the record, evaluated as the given type.
func Key(t ExpType) *Expression {
	return &Expression{cmd: opKey, module: t, hasModule: true}
}

// KeyExists reports whether the user key was stored with the record.
func KeyExists() *Expression { return &Expression{cmd: opKeyExists} }

// SetName returns the record's set name.
func SetName() *Expression { return &Expression{cmd: opSetName} }

// RecordSize returns the record storage size in bytes. Requires server
// 7.0 or newer.
func RecordSize() *Expression { return &Expression{cmd: opRecordSize} }

// DeviceSize is a deprecated alias retained for callers written against
// pre-7.0 servers.
//
// Deprecated: use RecordSize.
func DeviceSize() *Expression { return &Expression{cmd: opDeviceSize} }

// MemorySize is a deprecated alias retained for callers written against
// pre-7.0 servers.
//
// Deprecated: use RecordSize.
func MemorySize() *Expression { return &Expression{cmd: opMemorySize} }

// LastUpdate returns the record last-update-time in nanoseconds.
func LastUpdate() *Expression { return &Expression{cmd: opLastUpdate} }

// SinceUpdate returns milliseconds since the record was last updated.
func SinceUpdate() *Expression { return &Expression{cmd: opSinceUpdate} }

// VoidTime returns the record expiration epoch in nanoseconds.
func VoidTime() *Expression { return &Expression{cmd: opVoidTime} }

// TTL returns the record time-to-live in seconds.
func TTL() *Expression { return &Expression{cmd: opTTL} }

// IsTombstone reports whether the record is a tombstone.
func IsTombstone() *Expression { return &Expression{cmd: opIsTombstone} }

// DigestModulo returns digest mod m, for partition-style bucketing.
func DigestModulo(m int64) *Expression {
	return &Expression{cmd: opDigestModulo, val: value.IntValue(m)}
}

// Bin leaves.

func bin(name string, t ExpType) *Expression {
	return &Expression{cmd: opBin, module: t, hasModule: true, val: value.StringValue(name)}
}

func IntBin(name string) *Expression    { return bin(name, TypeInt) }
func StringBin(name string) *Expression { return bin(name, TypeString) }
func BlobBin(name string) *Expression   { return bin(name, TypeBlob) }
func FloatBin(name string) *Expression  { return bin(name, TypeFloat) }
func BoolBin(name string) *Expression   { return bin(name, TypeBool) }
func GeoBin(name string) *Expression    { return bin(name, TypeGeo) }
func ListBin(name string) *Expression   { return bin(name, TypeList) }
func MapBin(name string) *Expression    { return bin(name, TypeMap) }
func HLLBin(name string) *Expression    { return bin(name, TypeHLL) }

// BinExists reports whether the named bin is present.
func BinExists(name string) *Expression {
	return Ne(BinType(name), IntVal(0))
}

// BinType returns the particle type id stored in the named bin.
func BinType(name string) *Expression {
	return &Expression{cmd: opBinType, val: value.StringValue(name)}
}

// Literals.

func IntVal(v int64) *Expression          { return literal(value.IntValue(v)) }
func BoolVal(v bool) *Expression          { return literal(value.BoolValue(v)) }
func StringVal(v string) *Expression      { return literal(value.StringValue(v)) }
func FloatVal(v float64) *Expression      { return literal(value.FloatValue(v)) }
func BlobVal(v []byte) *Expression        { return literal(value.BlobValue(v)) }
func GeoVal(v string) *Expression         { return literal(value.GeoJSONValue(v)) }
func Nil() *Expression                    { return literal(value.NilValue{}) }
func ListVal(v []value.Value) *Expression { return literal(value.ListValue(v)) }

// MapVal accepts both ordered and unordered map values.
func MapVal(v value.MapValue) *Expression { return literal(v) }

// Val wraps any already-constructed Value as a literal.
func Val(v value.Value) *Expression { return literal(v) }

// Unknown evaluates to the unknown marker, typically as a Cond fallback.
func Unknown() *Expression { return &Expression{cmd: opUnknown} }

// Logical operators.

func And(exps ...*Expression) *Expression { return newOp(opAnd, exps...) }
func Or(exps ...*Expression) *Expression  { return newOp(opOr, exps...) }
func Xor(exps ...*Expression) *Expression { return newOp(opXor, exps...) }
func Not(e *Expression) *Expression       { return newOp(opNot, e) }

// Comparisons.

func Eq(l, r *Expression) *Expression { return newOp(opEQ, l, r) }
func Ne(l, r *Expression) *Expression { return newOp(opNE, l, r) }
func Gt(l, r *Expression) *Expression { return newOp(opGT, l, r) }
func Ge(l, r *Expression) *Expression { return newOp(opGE, l, r) }
func Lt(l, r *Expression) *Expression { return newOp(opLT, l, r) }
func Le(l, r *Expression) *Expression { return newOp(opLE, l, r) }

// RegexCompare matches a string bin against a POSIX regex.
func RegexCompare(pattern string, flags RegexFlag, bin *Expression) *Expression {
	return &Expression{
		cmd:      opRegex,
		flags:    int64(flags),
		hasFlags: true,
		val:      value.StringValue(pattern),
		bin:      bin,
	}
}

// GeoCompare tests two geo expressions for containment/intersection.
func GeoCompare(left, right *Expression) *Expression {
	return newOp(opGeo, left, right)
}

// Arithmetic.

func NumAdd(exps ...*Expression) *Expression        { return newOp(opAdd, exps...) }
func NumSub(exps ...*Expression) *Expression        { return newOp(opSub, exps...) }
func NumMul(exps ...*Expression) *Expression        { return newOp(opMul, exps...) }
func NumDiv(exps ...*Expression) *Expression        { return newOp(opDiv, exps...) }
func NumPow(base, exponent *Expression) *Expression { return newOp(opPow, base, exponent) }
func NumLog(num, base *Expression) *Expression      { return newOp(opLog, num, base) }
func NumMod(numerator, denominator *Expression) *Expression {
	return newOp(opMod, numerator, denominator)
}
func NumAbs(v *Expression) *Expression   { return newOp(opAbs, v) }
func NumFloor(v *Expression) *Expression { return newOp(opFloor, v) }
func NumCeil(v *Expression) *Expression  { return newOp(opCeil, v) }
func ToInt(v *Expression) *Expression    { return newOp(opToInt, v) }
func ToFloat(v *Expression) *Expression  { return newOp(opToFloat, v) }

// Integer bitwise.

func IntAnd(exps ...*Expression) *Expression      { return newOp(opIntAnd, exps...) }
func IntOr(exps ...*Expression) *Expression       { return newOp(opIntOr, exps...) }
func IntXor(exps ...*Expression) *Expression      { return newOp(opIntXor, exps...) }
func IntNot(e *Expression) *Expression            { return newOp(opIntNot, e) }
func IntLShift(v, shift *Expression) *Expression  { return newOp(opIntLShift, v, shift) }
func IntRShift(v, shift *Expression) *Expression  { return newOp(opIntRShift, v, shift) }
func IntARShift(v, shift *Expression) *Expression { return newOp(opIntARShift, v, shift) }
func IntCount(e *Expression) *Expression          { return newOp(opIntCount, e) }
func IntLScan(v, search *Expression) *Expression  { return newOp(opIntLScan, v, search) }
func IntRScan(v, search *Expression) *Expression  { return newOp(opIntRScan, v, search) }

// Min and Max fold their arguments.

func Min(exps ...*Expression) *Expression { return newOp(opMin, exps...) }
func Max(exps ...*Expression) *Expression { return newOp(opMax, exps...) }

// Cond evaluates (condition, action) pairs in order with a trailing
// default expression.
func Cond(exps ...*Expression) *Expression { return newOp(opCond, exps...) }

// Lexical scoping.

// Let introduces Def bindings followed by the body expression.
func Let(exps ...*Expression) *Expression { return newOp(opLet, exps...) }

// Def binds a name usable through Var inside the surrounding Let.
func Def(name string, val *Expression) *Expression {
	return &Expression{isDef: true, val: value.StringValue(name), exps: []*Expression{val}}
}

// Var references a Def binding.
func Var(name string) *Expression {
	return &Expression{cmd: opVar, val: value.StringValue(name)}
}

// NewCall builds a CDT verb invocation against a bin expression. The
// payload is a pre-packed CDT operation; pkg/cdt is the only caller.
func NewCall(returnType int64, module ExpType, payload []byte, bin *Expression) *Expression {
	return &Expression{
		cmd:    opCall,
		flags:  returnType,
		module: module,
		raw:    payload,
		bin:    bin,
	}
}
