package cluster

import (
	"encoding/base64"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/query"
)

func TestParseHosts(t *testing.T) {
	hosts, err := ParseHosts("a.example.com:3100, b.example.com ,127.0.0.1:3200", 3000)
	if err != nil {
		t.Fatal(err)
	}
	if len(hosts) != 3 {
		t.Fatalf("got %d hosts", len(hosts))
	}
	if hosts[0].Port != 3100 || hosts[1].Port != 3000 || hosts[2].Port != 3200 {
		t.Fatalf("ports = %d %d %d", hosts[0].Port, hosts[1].Port, hosts[2].Port)
	}
	if !hosts[2].IsIP() || hosts[0].IsIP() {
		t.Fatal("IP detection wrong")
	}
}

func TestParseHostsIPv6(t *testing.T) {
	hosts, err := ParseHosts("[::1]:3100,[fe80::1]", 3000)
	if err != nil {
		t.Fatal(err)
	}
	if hosts[0].Name != "::1" || hosts[0].Port != 3100 {
		t.Fatalf("host = %+v", hosts[0])
	}
	if hosts[1].Name != "fe80::1" || hosts[1].Port != 3000 {
		t.Fatalf("host = %+v", hosts[1])
	}
	if !hosts[0].IsLoopback() {
		t.Fatal("::1 is loopback")
	}
}

func TestParseHostsRejectsGarbage(t *testing.T) {
	if _, err := ParseHosts("", 3000); err == nil {
		t.Fatal("empty seed string must fail")
	}
	if _, err := ParseHosts("host:notaport", 3000); err == nil {
		t.Fatal("bad port must fail")
	}
	if _, err := ParseHosts("[::1:3000", 3000); err == nil {
		t.Fatal("unterminated bracket must fail")
	}
}

func TestParsePeers(t *testing.T) {
	gen, peers, err := parsePeers("12,3000,[[BB9040011AC4202,,[10.0.0.1]],[BB9040011AC4203,tls.example,[10.0.0.2:3100,10.0.0.3]]]")
	if err != nil {
		t.Fatal(err)
	}
	if gen != 12 {
		t.Fatalf("generation = %d", gen)
	}
	if len(peers) != 2 {
		t.Fatalf("peers = %d", len(peers))
	}
	if peers[0].NodeName != "BB9040011AC4202" || len(peers[0].Hosts) != 1 ||
		peers[0].Hosts[0].Port != 3000 {
		t.Fatalf("peer0 = %+v", peers[0])
	}
	if peers[1].TLSName != "tls.example" || len(peers[1].Hosts) != 2 ||
		peers[1].Hosts[0].Port != 3100 || peers[1].Hosts[1].Port != 3000 {
		t.Fatalf("peer1 = %+v", peers[1])
	}
	if peers[1].Hosts[0].TLSName != "tls.example" {
		t.Fatal("tls name not propagated to hosts")
	}
}

func TestParsePeersEmptyList(t *testing.T) {
	gen, peers, err := parsePeers("3,3000,[]")
	if err != nil {
		t.Fatal(err)
	}
	if gen != 3 || len(peers) != 0 {
		t.Fatalf("gen=%d peers=%d", gen, len(peers))
	}
}

func TestParseRacks(t *testing.T) {
	racks := parseRacks("ns=test:rack_1=A1,A2:rack_2=B1;ns=other:rack_3=A1")
	if racks["test"]["A1"] != 1 || racks["test"]["A2"] != 1 || racks["test"]["B1"] != 2 {
		t.Fatalf("racks = %+v", racks)
	}
	if racks["other"]["A1"] != 3 {
		t.Fatalf("racks = %+v", racks)
	}
}

// bitmapFor builds the base64 ownership bitmap with the given
// partitions set.
func bitmapFor(pids ...int) string {
	b := make([]byte, query.PartitionCount/8)
	for _, pid := range pids {
		b[pid/8] |= 0x80 >> uint(pid&7)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func testCluster() *Cluster {
	return &Cluster{policy: policy.NewClientPolicy()}
}

func testNode(c *Cluster, name string) *Node {
	return newNode(c, name, NewHost(name+".local", 3000), wire.Version{Major: 6})
}

func TestMinVersion(t *testing.T) {
	c := NewStatic(nil,
		StaticMember{Name: "A", Host: NewHost("a.local", 3000), Version: wire.Version{Major: 6, Minor: 3}},
		StaticMember{Name: "B", Host: NewHost("b.local", 3000), Version: wire.Version{Major: 5, Minor: 7, Patch: 0, Build: 8}},
		StaticMember{Name: "C", Host: NewHost("c.local", 3000), Version: wire.Version{Major: 7}},
	)
	v, ok := c.MinVersion()
	if !ok {
		t.Fatal("membership is non-empty")
	}
	if v.Major != 5 || v.Minor != 7 {
		t.Fatalf("min version = %s, want 5.7.0.8", v)
	}

	empty := NewStatic(nil)
	if _, ok := empty.MinVersion(); ok {
		t.Fatal("empty membership must report no version")
	}
}

func TestUpdateReplicas(t *testing.T) {
	c := testCluster()
	a := testNode(c, "A")
	b := testNode(c, "B")

	pmap := make(PartitionMap)
	if err := pmap.updateReplicas(a, "test:0,2,"+bitmapFor(0, 7)+","+bitmapFor(1)); err != nil {
		t.Fatal(err)
	}
	if err := pmap.updateReplicas(b, "test:0,2,"+bitmapFor(1)+","+bitmapFor(0, 7)); err != nil {
		t.Fatal(err)
	}

	if pmap.nodeFor("test", 0, 0) != a || pmap.nodeFor("test", 7, 0) != a {
		t.Fatal("node A must master partitions 0 and 7")
	}
	if pmap.nodeFor("test", 1, 0) != b {
		t.Fatal("node B must master partition 1")
	}
	if pmap.nodeFor("test", 0, 1) != b || pmap.nodeFor("test", 1, 1) != a {
		t.Fatal("replica 1 assignments wrong")
	}
	if pmap.nodeFor("test", 2, 0) != nil {
		t.Fatal("unowned partition must be nil")
	}
	if pmap.replicaCount("test") != 2 || pmap.replicaCount("nope") != 0 {
		t.Fatal("replica counts wrong")
	}
}

func TestUpdateReplicasRegime(t *testing.T) {
	c := testCluster()
	a := testNode(c, "A")
	b := testNode(c, "B")

	pmap := make(PartitionMap)
	if err := pmap.updateReplicas(a, "test:5,1,"+bitmapFor(3)); err != nil {
		t.Fatal(err)
	}
	// Older regime must not displace the newer owner.
	if err := pmap.updateReplicas(b, "test:4,1,"+bitmapFor(3)); err != nil {
		t.Fatal(err)
	}
	if pmap.nodeFor("test", 3, 0) != a {
		t.Fatal("stale regime overwrote partition owner")
	}
}

func TestUpdateReplicasRejectsGarbage(t *testing.T) {
	pmap := make(PartitionMap)
	n := testNode(testCluster(), "A")
	for _, bad := range []string{"test", "test:x,1," + bitmapFor(0), "test:0,2," + bitmapFor(0), "test:0,1,!!!"} {
		if err := pmap.updateReplicas(n, bad); err == nil {
			t.Fatalf("%q must be rejected", bad)
		}
	}
}

func TestRouterReplicaPolicies(t *testing.T) {
	c := testCluster()
	a := testNode(c, "A")
	b := testNode(c, "B")
	c.nodes = map[string]*Node{"A": a, "B": b}

	pmap := make(PartitionMap)
	if err := pmap.updateReplicas(a, "test:0,3,"+bitmapFor(9)+","+bitmapFor(42)); err == nil {
		t.Fatal("replica count mismatch must fail")
	}
	if err := pmap.updateReplicas(a, "test:0,2,"+bitmapFor(9)+","+bitmapFor(42)); err != nil {
		t.Fatal(err)
	}
	if err := pmap.updateReplicas(b, "test:0,2,"+bitmapFor(42)+","+bitmapFor(9)); err != nil {
		t.Fatal(err)
	}
	c.pmap.Store(&pmap)

	n, err := c.GetNodeForPartition("test", 9, policy.ReplicaMaster, 0)
	if err != nil || n != a {
		t.Fatalf("master of 9 = %v, %v", n, err)
	}

	n, err = c.GetNodeForPartition("test", 9, policy.ReplicaSequence, 1)
	if err != nil || n != b {
		t.Fatalf("sequence 1 of 9 = %v, %v", n, err)
	}

	// Rack preference picks the replica in rack 7.
	c.policy.RackIDs = []int{7}
	b.setRack("test", 7)
	n, err = c.GetNodeForPartition("test", 9, policy.ReplicaPreferRack, 0)
	if err != nil || n != b {
		t.Fatalf("prefer-rack of 9 = %v, %v", n, err)
	}

	// Retired master falls through to the replica.
	a.Retire()
	n, err = c.GetNodeForPartition("test", 9, policy.ReplicaSequence, 0)
	if err != nil || n != b {
		t.Fatalf("sequence with retired master = %v, %v", n, err)
	}
	if _, err := c.GetNodeForPartition("missing", 0, policy.ReplicaMaster, 0); !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("unknown namespace error = %v", err)
	}
}

func TestBreakerLifecycle(t *testing.T) {
	b := NewBreaker(2, 20*time.Millisecond)
	if !b.Allow() || !b.Healthy() {
		t.Fatal("fresh breaker must allow")
	}
	b.Failure()
	b.Failure()
	if b.Allow() {
		t.Fatal("breaker must open after threshold failures")
	}

	time.Sleep(25 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("half-open breaker must allow one probe")
	}
	if b.Allow() {
		t.Fatal("second probe must be refused while first is in flight")
	}
	b.Success()
	if !b.Allow() || !b.Healthy() {
		t.Fatal("successful probe must close the breaker")
	}

	b.Failure()
	b.Failure()
	time.Sleep(25 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("probe expected")
	}
	b.Failure()
	if b.Allow() {
		t.Fatal("failed probe must reopen the breaker")
	}
}

func TestConnPoolCapacity(t *testing.T) {
	p := newConnPool(2, 1)

	// Two reservations succeed, the third reports exhaustion.
	for i := 0; i < 2; i++ {
		conn, err := p.Get(0)
		if err != nil || conn != nil {
			t.Fatalf("get %d = %v, %v", i, conn, err)
		}
	}
	if _, err := p.Get(0); !errors.Is(err, ErrNoMoreConnections) {
		t.Fatalf("err = %v", err)
	}
	p.DropReservation()
	if _, err := p.Get(0); err != nil {
		t.Fatalf("slot not released: %v", err)
	}
}

func TestConnPoolRecyclesConnections(t *testing.T) {
	p := newConnPool(4, 2)
	client, server := net.Pipe()
	defer server.Close()

	if _, err := p.Get(0); err != nil {
		t.Fatal(err)
	}
	conn := &Conn{raw: client, lastUsed: time.Now()}
	p.Put(conn)

	got, err := p.Get(0)
	if err != nil || got != conn {
		t.Fatalf("get = %v, %v", got, err)
	}

	// An idle-expired conn is dropped instead of returned.
	conn.lastUsed = time.Now().Add(-time.Hour)
	p.Put(conn)
	got, err = p.Get(time.Minute)
	if err != nil || got != nil {
		t.Fatalf("expired conn must not be reused: %v, %v", got, err)
	}
	p.DropReservation()
	p.Close()
}
