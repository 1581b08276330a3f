package wire

import (
	"testing"

	"github.com/phamduclong/aerogo/pkg/value"
)

func TestMessageHeaderRoundTrip(t *testing.T) {
	buf := GetBuffer()
	defer buf.Release()

	BeginMessage(buf)
	WriteFieldString(buf, FieldNamespace, "test")
	WriteFieldString(buf, FieldTable, "demo")
	WriteOperation(buf, OpRead, value.ParticleNull, "a", nil)
	EndMessage(buf, MessageHeader{
		Info1:          Info1Read,
		Info2:          0,
		Generation:     7,
		Expiration:     100,
		TransactionTTL: 1000,
		FieldCount:     2,
		OpCount:        1,
	})

	msgType, size, err := ParseProtoHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("proto header: %v", err)
	}
	if msgType != MsgTypeMessage {
		t.Fatalf("expected message type %d, got %d", MsgTypeMessage, msgType)
	}
	if int(size) != buf.Len()-ProtoHeaderSize {
		t.Fatalf("size mismatch: header says %d, body is %d", size, buf.Len()-ProtoHeaderSize)
	}

	body := buf.Bytes()[ProtoHeaderSize:]
	h, err := ParseMessageHeader(body)
	if err != nil {
		t.Fatalf("message header: %v", err)
	}
	if h.Info1 != Info1Read || h.Generation != 7 || h.Expiration != 100 ||
		h.FieldCount != 2 || h.OpCount != 1 {
		t.Fatalf("header mismatch: %+v", h)
	}

	fields, off, err := ParseFields(body, MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if string(fields[0].Data) != "test" || fields[0].Type != FieldNamespace {
		t.Fatalf("bad namespace field: %+v", fields[0])
	}
	if string(fields[1].Data) != "demo" || fields[1].Type != FieldTable {
		t.Fatalf("bad set field: %+v", fields[1])
	}

	ops, _, err := ParseOperations(body, off, int(h.OpCount))
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	if ops[0].Op != OpRead || ops[0].BinName != "a" {
		t.Fatalf("bad operation: %+v", ops[0])
	}
}

func TestParseProtoHeaderRejectsBadVersion(t *testing.T) {
	hdr := []byte{9, MsgTypeMessage, 0, 0, 0, 0, 0, 1}
	if _, _, err := ParseProtoHeader(hdr); err == nil {
		t.Fatal("expected version error")
	}
}

func TestInfoRequestFraming(t *testing.T) {
	req := BuildInfoRequest([]string{"node", "partition-generation"})
	msgType, size, err := ParseProtoHeader(req)
	if err != nil {
		t.Fatalf("proto header: %v", err)
	}
	if msgType != MsgTypeInfo {
		t.Fatalf("expected info type, got %d", msgType)
	}
	body := string(req[ProtoHeaderSize:])
	if int(size) != len(body) {
		t.Fatalf("size mismatch")
	}
	if body != "node\npartition-generation\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestParseInfoResponse(t *testing.T) {
	body := []byte("node\tBB9020011AC4202\npartition-generation\t42\n")
	res, err := ParseInfoResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	if res["node"] != "BB9020011AC4202" {
		t.Fatalf("node = %q", res["node"])
	}
	if res["partition-generation"] != "42" {
		t.Fatalf("partition-generation = %q", res["partition-generation"])
	}
}

func TestParseInfoError(t *testing.T) {
	msg, isErr := ParseInfoError("ERROR:201:no index")
	if !isErr || msg != "no index" {
		t.Fatalf("got %q %v", msg, isErr)
	}
	if _, isErr := ParseInfoError("ok"); isErr {
		t.Fatal("plain value misread as error")
	}
}

func TestParseKeyValueList(t *testing.T) {
	kv := ParseKeyValueList("load_pct=100;state=RW")
	if kv["load_pct"] != "100" || kv["state"] != "RW" {
		t.Fatalf("got %v", kv)
	}
}

func TestVersionGates(t *testing.T) {
	cases := []struct {
		in      string
		check   func(Version) bool
		expects bool
	}{
		{"4.9.0.3", Version.SupportsPartitionScan, true},
		{"4.9.0.2", Version.SupportsPartitionScan, false},
		{"5.7.0.0", Version.SupportsQueryShow, true},
		{"5.6.0.0", Version.SupportsQueryShow, false},
		{"5.6.0.0", Version.SupportsExpressionOps, true},
		{"6.0.0.0", Version.SupportsBatchAny, true},
		{"5.9.9.9", Version.SupportsBatchAny, false},
		{"6.0.0.0", Version.SupportsPartitionQuery, true},
		{"7.0.0.0", Version.SupportsRecordSizeExp, true},
		{"6.4.0.1-rc1", Version.SupportsRecordSizeExp, false},
		{"8.1.0.0", Version.SupportsAppID, true},
		{"8.0.0.9", Version.SupportsAppID, false},
	}
	for _, tc := range cases {
		v, err := ParseVersion(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got := tc.check(v); got != tc.expects {
			t.Errorf("%s: gate returned %v, want %v", tc.in, got, tc.expects)
		}
	}
}

func TestParseVersionInvalid(t *testing.T) {
	if _, err := ParseVersion("abc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBufferReclaim(t *testing.T) {
	b := GetBuffer()
	if got := b.Len(); got != 0 {
		t.Fatalf("fresh buffer has %d bytes", got)
	}
	b.WriteBytes(make([]byte, BufferReclaimThreshold+1))
	b.Release() // must not land back in the pool

	b2 := GetBuffer()
	defer b2.Release()
	if cap(b2.Bytes()) > BufferReclaimThreshold {
		t.Fatal("oversized buffer returned to pool")
	}
}
