package value

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParticleType is the server-side storage type tag of a bin value.
type ParticleType int

const (
	ParticleNull    ParticleType = 0
	ParticleInteger ParticleType = 1
	ParticleFloat   ParticleType = 2
	ParticleString  ParticleType = 3
	ParticleBlob    ParticleType = 4
	ParticleBool    ParticleType = 17
	ParticleHLL     ParticleType = 18
	ParticleMap     ParticleType = 19
	ParticleList    ParticleType = 20
	ParticleGeoJSON ParticleType = 23
)

// MapOrder declares how the server maintains entries of a map bin.
// The on-wire representation differs per order, so a map value must
// remember the order it was created with.
type MapOrder int

const (
	MapUnordered       MapOrder = 0
	MapKeyOrdered      MapOrder = 1
	MapKeyValueOrdered MapOrder = 3
)

// Value is the tagged sum carried in bins, keys, operations and
// expressions. Implementations are immutable once constructed.
type Value interface {
	// Type returns the Aerospike particle type of the value.
	Type() ParticleType

	// Equal reports semantic equality. Ordered maps compare entry
	// sequences byte-exact; unordered maps compare as sets.
	Equal(other Value) bool

	String() string
}

type NilValue struct{}

func (NilValue) Type() ParticleType { return ParticleNull }
func (NilValue) String() string     { return "<nil>" }
func (NilValue) Equal(other Value) bool {
	_, ok := other.(NilValue)
	return ok
}

type BoolValue bool

func (BoolValue) Type() ParticleType { return ParticleBool }
func (v BoolValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v BoolValue) Equal(other Value) bool {
	o, ok := other.(BoolValue)
	return ok && v == o
}

type IntValue int64

func (IntValue) Type() ParticleType { return ParticleInteger }
func (v IntValue) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v IntValue) Equal(other Value) bool {
	o, ok := other.(IntValue)
	return ok && v == o
}

type FloatValue float64

func (FloatValue) Type() ParticleType { return ParticleFloat }
func (v FloatValue) String() string   { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v FloatValue) Equal(other Value) bool {
	o, ok := other.(FloatValue)
	return ok && v == o
}

type StringValue string

func (StringValue) Type() ParticleType { return ParticleString }
func (v StringValue) String() string   { return string(v) }
func (v StringValue) Equal(other Value) bool {
	o, ok := other.(StringValue)
	return ok && v == o
}

type BlobValue []byte

func (BlobValue) Type() ParticleType { return ParticleBlob }
func (v BlobValue) String() string   { return fmt.Sprintf("%X", []byte(v)) }
func (v BlobValue) Equal(other Value) bool {
	o, ok := other.(BlobValue)
	return ok && bytes.Equal(v, o)
}

// HLLValue is an opaque HyperLogLog registers blob. It keeps its tag
// through round-trips so it never degrades to a plain blob.
type HLLValue []byte

func (HLLValue) Type() ParticleType { return ParticleHLL }
func (v HLLValue) String() string   { return fmt.Sprintf("HLL(%d bytes)", len(v)) }
func (v HLLValue) Equal(other Value) bool {
	o, ok := other.(HLLValue)
	return ok && bytes.Equal(v, o)
}

// GeoJSONValue holds a GeoJSON document as its raw string form.
type GeoJSONValue string

func (GeoJSONValue) Type() ParticleType { return ParticleGeoJSON }
func (v GeoJSONValue) String() string   { return string(v) }
func (v GeoJSONValue) Equal(other Value) bool {
	o, ok := other.(GeoJSONValue)
	return ok && v == o
}

type ListValue []Value

func (ListValue) Type() ParticleType { return ParticleList }
func (v ListValue) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (v ListValue) Equal(other Value) bool {
	o, ok := other.(ListValue)
	if !ok || len(v) != len(o) {
		return false
	}
	for i := range v {
		if !v[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// MapPair is one entry of a map value.
type MapPair struct {
	Key   Value
	Value Value
}

// MapValue preserves both its entries and the order the map was
// declared with. Entry sequence is significant for ordered maps and
// insignificant for unordered ones.
type MapValue struct {
	Order MapOrder
	Pairs []MapPair
}

func (MapValue) Type() ParticleType { return ParticleMap }

func (v MapValue) String() string {
	parts := make([]string, len(v.Pairs))
	for i, p := range v.Pairs {
		parts[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v MapValue) Equal(other Value) bool {
	o, ok := other.(MapValue)
	if !ok || v.Order != o.Order || len(v.Pairs) != len(o.Pairs) {
		return false
	}
	if v.Order == MapUnordered {
		// Set equality: every entry of v must appear in o.
		for _, p := range v.Pairs {
			found := false
			for _, q := range o.Pairs {
				if p.Key.Equal(q.Key) && p.Value.Equal(q.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	for i := range v.Pairs {
		if !v.Pairs[i].Key.Equal(o.Pairs[i].Key) || !v.Pairs[i].Value.Equal(o.Pairs[i].Value) {
			return false
		}
	}
	return true
}

// Get returns the value stored under key, or nil if absent.
func (v MapValue) Get(key Value) Value {
	for _, p := range v.Pairs {
		if p.Key.Equal(key) {
			return p.Value
		}
	}
	return nil
}

// Sorted returns a copy with entries in canonical key order. Used
// before serializing an ordered map so the wire form is byte-stable.
func (v MapValue) Sorted() MapValue {
	pairs := make([]MapPair, len(v.Pairs))
	copy(pairs, v.Pairs)
	sort.SliceStable(pairs, func(i, j int) bool {
		return Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return MapValue{Order: v.Order, Pairs: pairs}
}

// InfinityValue and WildcardValue are range markers only valid inside
// expression and CDT operation contexts; they never land in a bin.
type InfinityValue struct{}

func (InfinityValue) Type() ParticleType { return ParticleNull }
func (InfinityValue) String() string     { return "INF" }
func (InfinityValue) Equal(other Value) bool {
	_, ok := other.(InfinityValue)
	return ok
}

type WildcardValue struct{}

func (WildcardValue) Type() ParticleType { return ParticleNull }
func (WildcardValue) String() string     { return "*" }
func (WildcardValue) Equal(other Value) bool {
	_, ok := other.(WildcardValue)
	return ok
}

// NewValue converts common Go types into a Value. It exists for
// ergonomic bin construction; unsupported types panic early instead of
// failing deep inside command encoding.
func NewValue(v interface{}) Value {
	switch x := v.(type) {
	case nil:
		return NilValue{}
	case Value:
		return x
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(x)
	case int8:
		return IntValue(x)
	case int16:
		return IntValue(x)
	case int32:
		return IntValue(x)
	case int64:
		return IntValue(x)
	case uint:
		return IntValue(x)
	case uint8:
		return IntValue(x)
	case uint16:
		return IntValue(x)
	case uint32:
		return IntValue(x)
	case float32:
		return FloatValue(x)
	case float64:
		return FloatValue(x)
	case string:
		return StringValue(x)
	case []byte:
		return BlobValue(x)
	case []interface{}:
		list := make(ListValue, len(x))
		for i, e := range x {
			list[i] = NewValue(e)
		}
		return list
	case []Value:
		return ListValue(x)
	case map[string]interface{}:
		pairs := make([]MapPair, 0, len(x))
		for k, e := range x {
			pairs = append(pairs, MapPair{Key: StringValue(k), Value: NewValue(e)})
		}
		return MapValue{Order: MapUnordered, Pairs: pairs}
	case map[interface{}]interface{}:
		pairs := make([]MapPair, 0, len(x))
		for k, e := range x {
			pairs = append(pairs, MapPair{Key: NewValue(k), Value: NewValue(e)})
		}
		return MapValue{Order: MapUnordered, Pairs: pairs}
	default:
		panic(fmt.Sprintf("value: unsupported type %T", v))
	}
}

// Compare defines the canonical sort order used for ordered map keys:
// particle type first, then value. Only scalar key types participate;
// composite keys order by their string form.
func Compare(a, b Value) int {
	at, bt := typeRank(a), typeRank(b)
	if at != bt {
		if at < bt {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case IntValue:
		y := b.(IntValue)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case FloatValue:
		y := b.(FloatValue)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case StringValue:
		return strings.Compare(string(x), string(b.(StringValue)))
	case BoolValue:
		y := b.(BoolValue)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	case BlobValue:
		return bytes.Compare(x, b.(BlobValue))
	default:
		return strings.Compare(a.String(), b.String())
	}
}

func typeRank(v Value) int {
	switch v.(type) {
	case NilValue:
		return 0
	case BoolValue:
		return 1
	case IntValue:
		return 2
	case FloatValue:
		return 3
	case StringValue:
		return 4
	case BlobValue:
		return 5
	case ListValue:
		return 6
	case MapValue:
		return 7
	case GeoJSONValue:
		return 8
	case HLLValue:
		return 9
	case InfinityValue:
		return 100
	case WildcardValue:
		return 101
	default:
		return 50
	}
}
