package query

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/phamduclong/aerogo/pkg/value"
)

func TestPrepareTaskIDStableOncePrepared(t *testing.T) {
	s := NewStatement("test", "users")
	id := s.PrepareTaskID()
	if id == 0 {
		t.Fatal("task id must be nonzero")
	}
	if again := s.PrepareTaskID(); again != id {
		t.Fatalf("task id changed: %d -> %d", id, again)
	}

	s2 := NewStatement("test", "users")
	s2.TaskID = 42
	if s2.PrepareTaskID() != 42 {
		t.Fatal("caller-assigned task id must be kept")
	}
}

func TestAggregation(t *testing.T) {
	s := NewStatement("test", "users")
	if _, _, _, ok := s.Aggregation(); ok {
		t.Fatal("no aggregation expected")
	}
	s.SetAggregateFunction("stats", "sum_age", []value.Value{value.StringValue("age")}, true)
	pkg, fn, args, ok := s.Aggregation()
	if !ok || pkg != "stats" || fn != "sum_age" || len(args) != 1 {
		t.Fatalf("aggregation = %q %q %v %v", pkg, fn, args, ok)
	}
	if !s.IsScan() {
		t.Fatal("statement without filter is a scan")
	}
}

func TestFilterPackLayout(t *testing.T) {
	f := Range("age", 18, 65)
	b, err := f.Pack()
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 3 || string(b[1:4]) != "age" {
		t.Fatalf("bad name prefix: %v", b[:4])
	}
	if b[4] != byte(value.ParticleInteger) {
		t.Fatalf("particle = %d", b[4])
	}
	beginLen := binary.BigEndian.Uint32(b[5:9])
	if beginLen != 8 {
		t.Fatalf("begin length = %d", beginLen)
	}
	begin := binary.BigEndian.Uint64(b[9:17])
	if begin != 18 {
		t.Fatalf("begin = %d", begin)
	}
}

func TestWithinRadiusUsesAeroCircle(t *testing.T) {
	f := WithinRadius("loc", -122.0, 37.5, 250)
	geo, ok := f.Begin.(value.GeoJSONValue)
	if !ok {
		t.Fatalf("begin is %T", f.Begin)
	}
	s := string(geo)
	if !strings.Contains(s, `"AeroCircle"`) {
		t.Fatalf("region literal %q", s)
	}
	if f.Particle != value.ParticleGeoJSON {
		t.Fatalf("particle = %d", f.Particle)
	}
}

func TestContainsKeepsCollectionType(t *testing.T) {
	f := Contains("tags", CollectionList, value.StringValue("red"))
	if f.CollectionType != CollectionList {
		t.Fatal("collection type dropped")
	}
	if !f.Begin.Equal(f.End) {
		t.Fatal("equality filter must share begin and end")
	}
}

func TestPartitionFilterRanges(t *testing.T) {
	if err := NewPartitionFilterAll().Validate(); err != nil {
		t.Fatal(err)
	}
	if err := NewPartitionFilterByID(4095).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := NewPartitionFilterByID(4096).Validate(); err == nil {
		t.Fatal("id 4096 must be rejected")
	}
	if err := NewPartitionFilterByRange(4000, 200).Validate(); err == nil {
		t.Fatal("range past 4096 must be rejected")
	}
}

func TestPartitionFilterResume(t *testing.T) {
	var digest [20]byte
	digest[0] = 0x10
	digest[2] = 0x02

	pf := NewPartitionFilterByDigest(digest)
	want := (0x10 | 0x02<<16) % PartitionCount
	if pf.Begin != want {
		t.Fatalf("begin = %d, want %d", pf.Begin, want)
	}

	pf.EnsureStatuses()
	if len(pf.Partitions) != 1 || !pf.Partitions[0].HasDigest {
		t.Fatal("resume digest not seeded")
	}

	pf.MarkAttempt()
	pf.Finish()
	if !pf.Done {
		t.Fatal("no retries pending, filter must be done")
	}

	pf.Partitions[0].Retry = true
	pf.Finish()
	if pf.Done || len(pf.Pending()) != 1 {
		t.Fatal("pending partition must keep the filter open")
	}
}
