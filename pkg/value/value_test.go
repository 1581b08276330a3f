package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticleRoundTripScalars(t *testing.T) {
	cases := []struct {
		name string
		in   Value
	}{
		{"nil", NilValue{}},
		{"bool", BoolValue(true)},
		{"int", IntValue(-42)},
		{"large int", IntValue(1 << 62)},
		{"float", FloatValue(3.25)},
		{"string", StringValue("héllo")},
		{"blob", BlobValue{0x00, 0xff, 0x10}},
		{"hll", HLLValue{0x01, 0x02}},
		{"geojson", GeoJSONValue(`{"type":"Point","coordinates":[1.0,2.0]}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := AppendParticle(nil, tc.in)
			require.NoError(t, err)
			out, err := ParseParticle(tc.in.Type(), raw)
			require.NoError(t, err)
			assert.True(t, tc.in.Equal(out), "got %v", out)
		})
	}
}

func TestHLLAndGeoJSONKeepTags(t *testing.T) {
	hll := HLLValue{1, 2, 3}
	raw, err := AppendParticle(nil, hll)
	require.NoError(t, err)
	out, err := ParseParticle(ParticleHLL, raw)
	require.NoError(t, err)
	_, isHLL := out.(HLLValue)
	assert.True(t, isHLL, "HLL decoded as %T", out)

	geo := GeoJSONValue(`{"type":"Point","coordinates":[0,0]}`)
	raw, err = AppendParticle(nil, geo)
	require.NoError(t, err)
	out, err = ParseParticle(ParticleGeoJSON, raw)
	require.NoError(t, err)
	g, isGeo := out.(GeoJSONValue)
	assert.True(t, isGeo, "GeoJSON decoded as %T", out)
	assert.Equal(t, geo, g)
}

func TestNestedListRoundTrip(t *testing.T) {
	in := ListValue{
		IntValue(1),
		StringValue("two"),
		ListValue{BoolValue(false), FloatValue(1.5)},
		MapValue{Order: MapUnordered, Pairs: []MapPair{{Key: StringValue("k"), Value: IntValue(9)}}},
	}
	raw, err := AppendParticle(nil, in)
	require.NoError(t, err)
	out, err := ParseParticle(ParticleList, raw)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "got %v", out)
}

func TestOrderedMapKeepsOrderTag(t *testing.T) {
	for _, order := range []MapOrder{MapKeyOrdered, MapKeyValueOrdered} {
		in := MapValue{Order: order, Pairs: []MapPair{
			{Key: StringValue("b"), Value: IntValue(2)},
			{Key: StringValue("a"), Value: IntValue(1)},
			{Key: IntValue(7), Value: StringValue("seven")},
		}}
		raw, err := AppendParticle(nil, in)
		require.NoError(t, err)
		out, err := ParseParticle(ParticleMap, raw)
		require.NoError(t, err)

		m, ok := out.(MapValue)
		require.True(t, ok, "decoded as %T", out)
		assert.Equal(t, order, m.Order)
		// Serialization sorts, so the decoded map is in canonical key order.
		assert.True(t, in.Sorted().Equal(m), "got %v", m)
	}
}

func TestUnorderedMapEqualityIsSetEqual(t *testing.T) {
	a := MapValue{Order: MapUnordered, Pairs: []MapPair{
		{Key: StringValue("x"), Value: IntValue(1)},
		{Key: StringValue("y"), Value: IntValue(2)},
	}}
	b := MapValue{Order: MapUnordered, Pairs: []MapPair{
		{Key: StringValue("y"), Value: IntValue(2)},
		{Key: StringValue("x"), Value: IntValue(1)},
	}}
	assert.True(t, a.Equal(b))

	ordered := a
	ordered.Order = MapKeyOrdered
	assert.False(t, a.Equal(ordered), "order tag must participate in equality")
}

func TestCompareCanonicalOrder(t *testing.T) {
	assert.Negative(t, Compare(IntValue(1), IntValue(2)))
	assert.Positive(t, Compare(IntValue(10), IntValue(2)))
	assert.Zero(t, Compare(StringValue("a"), StringValue("a")))
	assert.Negative(t, Compare(StringValue("a"), StringValue("b")))
	// Type rank: bool < int < float < string < blob.
	assert.Negative(t, Compare(BoolValue(true), IntValue(0)))
	assert.Negative(t, Compare(IntValue(999), FloatValue(0)))
	assert.Negative(t, Compare(FloatValue(999), StringValue("")))
	assert.Negative(t, Compare(StringValue("zzz"), BlobValue{0}))
}

func TestInfinityAndWildcardRejectedAsParticles(t *testing.T) {
	_, err := AppendParticle(nil, InfinityValue{})
	assert.Error(t, err)
	_, err = AppendParticle(nil, WildcardValue{})
	assert.Error(t, err)
}

func TestInfinityAndWildcardPackInsideContexts(t *testing.T) {
	raw, err := PackBytes(ListValue{InfinityValue{}, WildcardValue{}})
	require.NoError(t, err)
	out, err := Unpack(raw)
	require.NoError(t, err)
	list, ok := out.(ListValue)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.True(t, list[0].Equal(InfinityValue{}))
	assert.True(t, list[1].Equal(WildcardValue{}))
}

func TestNewValueConversions(t *testing.T) {
	assert.Equal(t, IntValue(5), NewValue(5))
	assert.Equal(t, IntValue(5), NewValue(int32(5)))
	assert.Equal(t, FloatValue(2.5), NewValue(2.5))
	assert.Equal(t, StringValue("s"), NewValue("s"))
	assert.Equal(t, BlobValue{1}, NewValue([]byte{1}))
	assert.Equal(t, NilValue{}, NewValue(nil))

	list, ok := NewValue([]interface{}{1, "a"}).(ListValue)
	require.True(t, ok)
	assert.True(t, list.Equal(ListValue{IntValue(1), StringValue("a")}))

	m, ok := NewValue(map[string]interface{}{"k": 1}).(MapValue)
	require.True(t, ok)
	assert.Equal(t, MapUnordered, m.Order)
	assert.True(t, m.Get(StringValue("k")).Equal(IntValue(1)))
}
