package query

import (
	"encoding/binary"
	"fmt"

	"github.com/phamduclong/aerogo/pkg/value"
)

// IndexType is the indexed value kind of a secondary index.
type IndexType string

const (
	IndexNumeric     IndexType = "NUMERIC"
	IndexString      IndexType = "STRING"
	IndexBlob        IndexType = "BLOB"
	IndexGeo2DSphere IndexType = "GEO2DSPHERE"
)

// CollectionIndexType addresses indexes built over collection bins.
type CollectionIndexType int

const (
	CollectionDefault   CollectionIndexType = 0
	CollectionList      CollectionIndexType = 1
	CollectionMapKeys   CollectionIndexType = 2
	CollectionMapValues CollectionIndexType = 3
)

// Filter is a secondary-index predicate. Exactly one filter may be
// attached to a statement.
type Filter struct {
	BinName        string
	CollectionType CollectionIndexType
	Particle       value.ParticleType
	Begin          value.Value
	End            value.Value
}

// Equal matches records whose bin equals v.
func Equal(bin string, v value.Value) *Filter {
	return &Filter{BinName: bin, Particle: v.Type(), Begin: v, End: v}
}

// Range matches integer bins in [begin, end], inclusive on both ends.
func Range(bin string, begin, end int64) *Filter {
	return &Filter{
		BinName:  bin,
		Particle: value.ParticleInteger,
		Begin:    value.IntValue(begin),
		End:      value.IntValue(end),
	}
}

// Contains matches collection bins holding v.
func Contains(bin string, cit CollectionIndexType, v value.Value) *Filter {
	return &Filter{BinName: bin, CollectionType: cit, Particle: v.Type(), Begin: v, End: v}
}

// ContainsRange matches collection bins holding an integer in
// [begin, end].
func ContainsRange(bin string, cit CollectionIndexType, begin, end int64) *Filter {
	return &Filter{
		BinName:        bin,
		CollectionType: cit,
		Particle:       value.ParticleInteger,
		Begin:          value.IntValue(begin),
		End:            value.IntValue(end),
	}
}

// WithinRegion matches points inside the GeoJSON region.
func WithinRegion(bin, region string, cit ...CollectionIndexType) *Filter {
	return geoFilter(bin, region, cit)
}

// WithinRadius matches points inside a circle of radius meters around
// (lng, lat).
func WithinRadius(bin string, lng, lat, radius float64, cit ...CollectionIndexType) *Filter {
	region := fmt.Sprintf(
		`{ "type": "AeroCircle", "coordinates": [[%.8f, %.8f], %f] }`,
		lng, lat, radius)
	return geoFilter(bin, region, cit)
}

// RegionsContainingPoint matches region bins that contain the GeoJSON
// point.
func RegionsContainingPoint(bin, point string, cit ...CollectionIndexType) *Filter {
	return geoFilter(bin, point, cit)
}

func geoFilter(bin, geo string, cit []CollectionIndexType) *Filter {
	f := &Filter{
		BinName:  bin,
		Particle: value.ParticleGeoJSON,
		Begin:    value.GeoJSONValue(geo),
		End:      value.GeoJSONValue(geo),
	}
	if len(cit) > 0 {
		f.CollectionType = cit[0]
	}
	return f
}

// Pack serializes the filter into its index-range field payload: bin
// name, one particle type byte, then length-prefixed begin and end
// particles.
func (f *Filter) Pack() ([]byte, error) {
	if len(f.BinName) > 255 {
		return nil, fmt.Errorf("query: bin name %q too long", f.BinName)
	}
	begin, err := value.AppendParticle(nil, f.Begin)
	if err != nil {
		return nil, err
	}
	end, err := value.AppendParticle(nil, f.End)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 2+len(f.BinName)+8+len(begin)+len(end))
	out = append(out, byte(len(f.BinName)))
	out = append(out, f.BinName...)
	out = append(out, byte(f.Particle))
	out = binary.BigEndian.AppendUint32(out, uint32(len(begin)))
	out = append(out, begin...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(end)))
	out = append(out, end...)
	return out, nil
}
