package value

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Nested lists and maps travel as msgpack payloads. Ordered maps carry
// a leading marker entry (an ext header whose type id holds the order
// flags) so the order tag survives a round-trip; the server uses the
// same trick.

// Pack encodes v into the msgpack stream.
func Pack(enc *msgpack.Encoder, v Value) error {
	switch x := v.(type) {
	case NilValue:
		return enc.EncodeNil()
	case BoolValue:
		return enc.EncodeBool(bool(x))
	case IntValue:
		return enc.EncodeInt(int64(x))
	case FloatValue:
		return enc.EncodeFloat64(float64(x))
	case StringValue:
		return enc.EncodeString(string(x))
	case BlobValue:
		return enc.EncodeBytes(x)
	case HLLValue:
		return enc.EncodeBytes(x)
	case GeoJSONValue:
		return enc.EncodeString(string(x))
	case ListValue:
		if err := enc.EncodeArrayLen(len(x)); err != nil {
			return err
		}
		for _, e := range x {
			if err := Pack(enc, e); err != nil {
				return err
			}
		}
		return nil
	case MapValue:
		return packMap(enc, x)
	case InfinityValue:
		return packMarker(enc, extInfinity)
	case WildcardValue:
		return packMarker(enc, extWildcard)
	default:
		return fmt.Errorf("value: cannot pack %T", v)
	}
}

const (
	extOrderedMapBase = 0x01 // ext ids 1 and 3 mirror the MapOrder flags
	extInfinity       = 0x11
	extWildcard       = 0x12
)

func packMarker(enc *msgpack.Encoder, id int8) error {
	return enc.EncodeExtHeader(id, 0)
}

func packMap(enc *msgpack.Encoder, m MapValue) error {
	if m.Order == MapUnordered {
		if err := enc.EncodeMapLen(len(m.Pairs)); err != nil {
			return err
		}
		for _, p := range m.Pairs {
			if err := Pack(enc, p.Key); err != nil {
				return err
			}
			if err := Pack(enc, p.Value); err != nil {
				return err
			}
		}
		return nil
	}

	sorted := m.Sorted()
	if err := enc.EncodeMapLen(len(sorted.Pairs) + 1); err != nil {
		return err
	}
	// Marker entry: ext key carrying the order flags, nil value.
	if err := enc.EncodeExtHeader(int8(m.Order), 0); err != nil {
		return err
	}
	if err := enc.EncodeNil(); err != nil {
		return err
	}
	for _, p := range sorted.Pairs {
		if err := Pack(enc, p.Key); err != nil {
			return err
		}
		if err := Pack(enc, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// PackBytes encodes v to a standalone msgpack payload.
func PackBytes(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := Pack(enc, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendPacked(dst []byte, v Value) ([]byte, error) {
	raw, err := PackBytes(v)
	if err != nil {
		return nil, err
	}
	return append(dst, raw...), nil
}

// Unpack decodes one msgpack value from data.
func Unpack(data []byte) (Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	return UnpackOne(dec)
}

// UnpackOne decodes the next value from the msgpack stream.
func UnpackOne(dec *msgpack.Decoder) (Value, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case code == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return nil, err
		}
		return NilValue{}, nil
	case code == msgpcode.True || code == msgpcode.False:
		b, err := dec.DecodeBool()
		if err != nil {
			return nil, err
		}
		return BoolValue(b), nil
	case code == msgpcode.Float || code == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return nil, err
		}
		return FloatValue(f), nil
	case msgpcode.IsFixedNum(code),
		code == msgpcode.Int8, code == msgpcode.Int16, code == msgpcode.Int32, code == msgpcode.Int64,
		code == msgpcode.Uint8, code == msgpcode.Uint16, code == msgpcode.Uint32, code == msgpcode.Uint64:
		n, err := dec.DecodeInt64()
		if err != nil {
			return nil, err
		}
		return IntValue(n), nil
	case msgpcode.IsString(code):
		s, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		return StringValue(s), nil
	case msgpcode.IsBin(code):
		b, err := dec.DecodeBytes()
		if err != nil {
			return nil, err
		}
		return BlobValue(b), nil
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		list := make(ListValue, 0, n)
		for i := 0; i < n; i++ {
			e, err := UnpackOne(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, e)
		}
		return list, nil
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		return unpackMap(dec)
	case msgpcode.IsExt(code):
		id, n, err := dec.DecodeExtHeader()
		if err != nil {
			return nil, err
		}
		if n != 0 {
			return nil, fmt.Errorf("value: unexpected ext payload of %d bytes", n)
		}
		switch id {
		case extInfinity:
			return InfinityValue{}, nil
		case extWildcard:
			return WildcardValue{}, nil
		default:
			return nil, fmt.Errorf("value: unknown ext marker %d", id)
		}
	default:
		return nil, fmt.Errorf("value: cannot unpack msgpack code 0x%02x", code)
	}
}

func unpackMap(dec *msgpack.Decoder) (Value, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	order := MapUnordered
	pairs := make([]MapPair, 0, n)

	for i := 0; i < n; i++ {
		code, err := dec.PeekCode()
		if err != nil {
			return nil, err
		}
		if i == 0 && msgpcode.IsExt(code) {
			id, extLen, err := dec.DecodeExtHeader()
			if err != nil {
				return nil, err
			}
			if extLen != 0 {
				return nil, fmt.Errorf("value: unexpected map marker payload of %d bytes", extLen)
			}
			switch MapOrder(id) {
			case MapKeyOrdered, MapKeyValueOrdered:
				order = MapOrder(id)
			default:
				return nil, fmt.Errorf("value: unknown map order marker %d", id)
			}
			// Marker value slot is always nil.
			if _, err := UnpackOne(dec); err != nil {
				return nil, err
			}
			continue
		}
		k, err := UnpackOne(dec)
		if err != nil {
			return nil, err
		}
		v, err := UnpackOne(dec)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, MapPair{Key: k, Value: v})
	}
	return MapValue{Order: order, Pairs: pairs}, nil
}
