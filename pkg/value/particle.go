package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

const geoJSONHeaderSize = 3 // 1 flags byte + 2 unused cell-count bytes

// AppendParticle appends the wire payload of v (without any particle
// type byte or length prefix, those belong to the surrounding field or
// operation TLV) and returns the extended slice.
func AppendParticle(dst []byte, v Value) ([]byte, error) {
	switch x := v.(type) {
	case NilValue:
		return dst, nil
	case BoolValue:
		if x {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case IntValue:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(x))
		return append(dst, b[:]...), nil
	case FloatValue:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(x)))
		return append(dst, b[:]...), nil
	case StringValue:
		return append(dst, x...), nil
	case BlobValue:
		return append(dst, x...), nil
	case HLLValue:
		return append(dst, x...), nil
	case GeoJSONValue:
		dst = append(dst, 0, 0, 0)
		return append(dst, x...), nil
	case ListValue, MapValue:
		return appendPacked(dst, v)
	case InfinityValue, WildcardValue:
		return nil, fmt.Errorf("value: %s is only valid inside expressions and CDT operations", v)
	default:
		return nil, fmt.Errorf("value: cannot serialize %T", v)
	}
}

// ParseParticle decodes a particle payload back into a Value. The
// particle type preserves tags the payload alone cannot (HLL vs blob,
// GeoJSON vs string).
func ParseParticle(pt ParticleType, data []byte) (Value, error) {
	switch pt {
	case ParticleNull:
		return NilValue{}, nil
	case ParticleBool:
		if len(data) != 1 {
			return nil, fmt.Errorf("value: bool particle has %d bytes", len(data))
		}
		return BoolValue(data[0] != 0), nil
	case ParticleInteger:
		if len(data) != 8 {
			return nil, fmt.Errorf("value: integer particle has %d bytes", len(data))
		}
		return IntValue(binary.BigEndian.Uint64(data)), nil
	case ParticleFloat:
		if len(data) != 8 {
			return nil, fmt.Errorf("value: float particle has %d bytes", len(data))
		}
		return FloatValue(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
	case ParticleString:
		return StringValue(data), nil
	case ParticleBlob:
		return BlobValue(append([]byte(nil), data...)), nil
	case ParticleHLL:
		return HLLValue(append([]byte(nil), data...)), nil
	case ParticleGeoJSON:
		if len(data) < geoJSONHeaderSize {
			return nil, fmt.Errorf("value: geojson particle has %d bytes", len(data))
		}
		return GeoJSONValue(data[geoJSONHeaderSize:]), nil
	case ParticleList, ParticleMap:
		return Unpack(data)
	default:
		return nil, fmt.Errorf("value: unknown particle type %d", pt)
	}
}
