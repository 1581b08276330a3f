package aero

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/cdt"
	"github.com/phamduclong/aerogo/pkg/exp"
	"github.com/phamduclong/aerogo/pkg/policy"
	"github.com/phamduclong/aerogo/pkg/query"
	"github.com/phamduclong/aerogo/pkg/value"
)

func testKey(t *testing.T, userKey interface{}) *Key {
	t.Helper()
	key, err := NewKey("test", "demo", userKey)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func parseRequest(t *testing.T, req []byte) (wire.MessageHeader, []byte) {
	t.Helper()
	msgType, size, err := wire.ParseProtoHeader(req)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != wire.MsgTypeMessage {
		t.Fatalf("message type = %d", msgType)
	}
	body := req[wire.ProtoHeaderSize:]
	if int(size) != len(body) {
		t.Fatalf("size = %d, body = %d", size, len(body))
	}
	h, err := wire.ParseMessageHeader(body)
	if err != nil {
		t.Fatal(err)
	}
	return h, body
}

func TestKeyDigestDeterministic(t *testing.T) {
	a := testKey(t, "alpha")
	b := testKey(t, "alpha")
	if !a.Equals(b) {
		t.Fatal("same user key must hash to the same digest")
	}
	c := testKey(t, int64(42))
	if a.Equals(c) {
		t.Fatal("different user keys must differ")
	}
	if pid := a.PartitionID(); pid < 0 || pid >= query.PartitionCount {
		t.Fatalf("partition id %d out of range", pid)
	}
	if _, err := NewKey("test", "demo", 3.14); err == nil {
		t.Fatal("float keys are not hashable")
	}
}

func TestBuildGetLayout(t *testing.T) {
	key := testKey(t, "k1")
	p := policy.NewBasePolicy()
	p.TotalTimeout = 250 * time.Millisecond

	req, err := buildGet(key, p, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1Read == 0 || h.Info1&wire.Info1GetAll == 0 {
		t.Fatalf("info1 = %#x", h.Info1)
	}
	if h.TransactionTTL != 250 {
		t.Fatalf("transaction ttl = %d", h.TransactionTTL)
	}
	if h.FieldCount != 3 || h.OpCount != 0 {
		t.Fatalf("counts = %d fields, %d ops", h.FieldCount, h.OpCount)
	}

	fields, _, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	if fields[0].Type != wire.FieldNamespace || string(fields[0].Data) != "test" {
		t.Fatalf("field 0 = %+v", fields[0])
	}
	if fields[1].Type != wire.FieldTable || string(fields[1].Data) != "demo" {
		t.Fatalf("field 1 = %+v", fields[1])
	}
	digest := key.Digest()
	if fields[2].Type != wire.FieldDigest || len(fields[2].Data) != 20 ||
		string(fields[2].Data) != string(digest[:]) {
		t.Fatalf("field 2 = %+v", fields[2])
	}
}

func TestBuildGetSelectedBins(t *testing.T) {
	key := testKey(t, "k1")
	req, err := buildGet(key, policy.NewBasePolicy(), []string{"a", "b"}, false)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1GetAll != 0 {
		t.Fatal("selected bins must not set get-all")
	}
	_, off, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	ops, _, err := wire.ParseOperations(body, off, int(h.OpCount))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 || ops[0].BinName != "a" || ops[1].BinName != "b" || ops[0].Op != wire.OpRead {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestBuildPutFlags(t *testing.T) {
	key := testKey(t, "k1")
	p := policy.NewWritePolicy()
	p.RecordExistsAction = policy.CreateOnly
	p.GenerationPolicy = policy.ExpectGenEqual
	p.Generation = 7
	p.Expiration = policy.Seconds(3600)
	p.DurableDelete = true

	req, err := buildPut(key, p, wire.OpWrite, []Bin{NewBin("n", int64(1))})
	if err != nil {
		t.Fatal(err)
	}
	h, _ := parseRequest(t, req)
	if h.Info2&wire.Info2Write == 0 || h.Info2&wire.Info2CreateOnly == 0 ||
		h.Info2&wire.Info2Generation == 0 || h.Info2&wire.Info2DurableDelete == 0 {
		t.Fatalf("info2 = %#x", h.Info2)
	}
	if h.Generation != 7 || h.Expiration != 3600 {
		t.Fatalf("gen/exp = %d/%d", h.Generation, h.Expiration)
	}
}

func TestBuildDeleteHasNoOps(t *testing.T) {
	key := testKey(t, "k1")
	req, err := buildDelete(key, policy.NewWritePolicy())
	if err != nil {
		t.Fatal(err)
	}
	h, _ := parseRequest(t, req)
	if h.Info2&wire.Info2Delete == 0 || h.Info2&wire.Info2Write == 0 {
		t.Fatalf("info2 = %#x", h.Info2)
	}
	if h.OpCount != 0 {
		t.Fatalf("op count = %d", h.OpCount)
	}
}

func TestBuildOperateMergesFlags(t *testing.T) {
	key := testKey(t, "k1")
	p := policy.NewWritePolicy()
	p.SendKey = true

	ops := []*cdt.Operation{
		cdt.GetBin("a"),
		cdt.Put("b", value.IntValue(2)),
	}
	req, err := buildOperate(key, p, ops)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1Read == 0 || h.Info2&wire.Info2Write == 0 {
		t.Fatalf("info = %#x/%#x", h.Info1, h.Info2)
	}

	// SendKey with a write present adds the user key field.
	fields, _, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	haveKey := false
	for _, f := range fields {
		if f.Type == wire.FieldKey {
			haveKey = true
		}
	}
	if !haveKey {
		t.Fatal("user key field missing")
	}
}

// rowHeader assembles the 22-byte response message header the way the
// server lays it out.
func rowHeader(buf *wire.Buffer, code, info3 byte, gen, exp, ttl uint32, fieldCount, opCount uint16) {
	buf.WriteUint8(wire.MessageHeaderSize)
	buf.WriteUint8(0)
	buf.WriteUint8(0)
	buf.WriteUint8(info3)
	buf.WriteUint8(0)
	buf.WriteUint8(code)
	buf.WriteUint32(gen)
	buf.WriteUint32(exp)
	buf.WriteUint32(ttl)
	buf.WriteUint16(fieldCount)
	buf.WriteUint16(opCount)
}

func TestParseRecordCollapsesRepeatedBins(t *testing.T) {
	key := testKey(t, "k1")
	buf := wire.GetBuffer()
	defer buf.Release()

	rowHeader(buf, 0, 0, 3, 100, 0, 0, 3)
	one, _ := value.AppendParticle(nil, value.IntValue(1))
	two, _ := value.AppendParticle(nil, value.IntValue(2))
	s, _ := value.AppendParticle(nil, value.StringValue("x"))
	wire.WriteOperation(buf, wire.OpRead, value.ParticleInteger, "n", one)
	wire.WriteOperation(buf, wire.OpRead, value.ParticleInteger, "n", two)
	wire.WriteOperation(buf, wire.OpRead, value.ParticleString, "s", s)

	body := buf.Bytes()
	h, err := wire.ParseMessageHeader(body)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := parseRecord(key, h, body)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Generation != 3 || rec.Expiration != 100 {
		t.Fatalf("gen/exp = %d/%d", rec.Generation, rec.Expiration)
	}
	list, ok := rec.Bins["n"].(value.ListValue)
	if !ok || len(list) != 2 {
		t.Fatalf("repeated bin = %v", rec.Bins["n"])
	}
	if !rec.Bins["s"].Equal(value.StringValue("x")) {
		t.Fatalf("bin s = %v", rec.Bins["s"])
	}
}

func TestParseRecordKeepsListFirstResult(t *testing.T) {
	key := testKey(t, "k2")
	buf := wire.GetBuffer()
	defer buf.Release()

	// The first result of bin "n" is itself a list; the second result
	// must nest beside it, not merge into it.
	first, _ := value.AppendParticle(nil, value.ListValue{value.IntValue(1), value.IntValue(2)})
	second, _ := value.AppendParticle(nil, value.IntValue(3))
	rowHeader(buf, 0, 0, 1, 0, 0, 0, 2)
	wire.WriteOperation(buf, wire.OpRead, value.ParticleList, "n", first)
	wire.WriteOperation(buf, wire.OpRead, value.ParticleInteger, "n", second)

	body := buf.Bytes()
	h, err := wire.ParseMessageHeader(body)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := parseRecord(key, h, body)
	if err != nil {
		t.Fatal(err)
	}
	list, ok := rec.Bins["n"].(value.ListValue)
	if !ok || len(list) != 2 {
		t.Fatalf("bin n = %v", rec.Bins["n"])
	}
	if !list[0].Equal(value.ListValue{value.IntValue(1), value.IntValue(2)}) {
		t.Fatalf("first result = %v", list[0])
	}
	if !list[1].Equal(value.IntValue(3)) {
		t.Fatalf("second result = %v", list[1])
	}
}

func TestServerErrorMatching(t *testing.T) {
	err := serverError(ResultKeyNotFound, "A1", false)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatal("code must match the sentinel")
	}
	if errors.Is(err, ErrKeyExists) {
		t.Fatal("different codes must not match")
	}
	te := &TimeoutError{Attempts: 3}
	if !errors.Is(te, ErrTimeout) {
		t.Fatal("timeout error must match ErrTimeout")
	}
	if !ResultDeviceOverload.Retryable() || ResultParameterError.Retryable() {
		t.Fatal("retryable classification wrong")
	}
}

func TestFeatureGateVersions(t *testing.T) {
	legacy := wire.Version{Major: 5, Minor: 7}
	if err := featureError("batch operate", legacy, true, wire.Version.SupportsBatchAny); !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("batch on 5.7 = %v", err)
	}
	if err := featureError("partition query", legacy, true, wire.Version.SupportsPartitionQuery); !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("partition query on 5.7 = %v", err)
	}
	if err := featureError("batch operate", wire.Version{Major: 6}, true, wire.Version.SupportsBatchAny); err != nil {
		t.Fatalf("batch on 6.0 = %v", err)
	}
	if err := featureError("job status polling", wire.Version{Major: 5, Minor: 6}, true, wire.Version.SupportsQueryShow); !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatal("job polling needs 5.7")
	}
	if err := featureError("expression operations", wire.Version{Major: 5, Minor: 5}, true, wire.Version.SupportsExpressionOps); !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatal("expression operations need 5.6")
	}
	// Unknown membership never blocks; routing fails instead.
	if err := featureError("batch operate", wire.Version{}, false, wire.Version.SupportsBatchAny); err != nil {
		t.Fatalf("empty membership = %v", err)
	}
}

// staticClient wraps a fixed membership that was never dialed, so
// commands stop at the version gate or at routing.
func staticClient(v wire.Version) *Client {
	return &Client{
		cluster: cluster.NewStatic(nil, cluster.StaticMember{
			Name: "A", Host: cluster.NewHost("a.local", 3000), Version: v,
		}),
		DefaultPolicy:      policy.NewBasePolicy(),
		DefaultWritePolicy: policy.NewWritePolicy(),
		DefaultQueryPolicy: policy.NewQueryPolicy(),
		DefaultBatchPolicy: policy.NewBatchPolicy(),
		DefaultInfoPolicy:  policy.NewInfoPolicy(),
	}
}

func TestOldClusterRefusesModernCommands(t *testing.T) {
	ctx := context.Background()
	c := staticClient(wire.Version{Major: 5, Minor: 7})

	err := c.BatchOperate(ctx, nil, []BatchRecorder{NewBatchRead(testKey(t, "k"))})
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("batch on 5.7 cluster = %v", err)
	}

	stmt := query.NewStatement("test", "demo")
	stmt.Filter = query.Range("n", 1, 10)
	_, err = c.QueryPartitions(ctx, nil, stmt, query.NewPartitionFilterAll())
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("partition query on 5.7 cluster = %v", err)
	}

	op := cdt.ExpRead("matched", exp.Gt(exp.IntBin("score"), exp.IntVal(10)), cdt.ExpReadDefault)
	_, err = staticClient(wire.Version{Major: 5, Minor: 5}).Operate(ctx, nil, testKey(t, "k"), op)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("expression op on 5.5 cluster = %v", err)
	}

	task := &ExecuteTask{
		baseTask: baseTask{client: staticClient(wire.Version{Major: 5, Minor: 6}), policy: policy.NewInfoPolicy()},
		taskID:   7,
	}
	if _, err := task.IsDone(ctx); !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("job polling on 5.6 cluster = %v", err)
	}

	// A 6.0 member passes the batch gate; the call then degrades to
	// per-key routing errors because no partition table exists.
	err = staticClient(wire.Version{Major: 6}).BatchOperate(ctx, nil, []BatchRecorder{NewBatchRead(testKey(t, "k"))})
	if errors.Is(err, ErrUnsupportedFeature) {
		t.Fatal("6.0 cluster must pass the batch gate")
	}
}

func TestBatchRoutingFailureStaysPerKey(t *testing.T) {
	ctx := context.Background()
	c := staticClient(wire.Version{Major: 6})

	good := NewBatchRead(testKey(t, "k1"))
	also := NewBatchRead(testKey(t, "k2"))
	if err := c.BatchOperate(ctx, nil, []BatchRecorder{good, also}); err != nil {
		t.Fatalf("batch = %v", err)
	}
	if !errors.Is(good.Err, cluster.ErrNoAvailableNodes) || !errors.Is(also.Err, cluster.ErrNoAvailableNodes) {
		t.Fatalf("row errors = %v, %v", good.Err, also.Err)
	}

	// A record without a key is a caller bug and fails the whole call.
	if err := c.BatchOperate(ctx, nil, []BatchRecorder{&BatchRead{}}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("keyless batch = %v", err)
	}
}

func TestBuildBatchLayout(t *testing.T) {
	p := policy.NewBatchPolicy()
	p.RespondAllKeys = true
	records := []BatchRecorder{
		NewBatchRead(testKey(t, "k1"), "a"),
		NewBatchRead(testKey(t, "k2")),
	}

	req, err := buildBatch(p, records, []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1Batch == 0 {
		t.Fatalf("info1 = %#x", h.Info1)
	}
	fields, _, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0].Type != wire.FieldBatchIndexWithSet {
		t.Fatalf("fields = %+v", fields)
	}

	data := fields[0].Data
	count := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	if count != 2 {
		t.Fatalf("batch count = %d", count)
	}
	flags := data[4]
	if flags&(1<<0) == 0 || flags&(1<<2) == 0 {
		t.Fatalf("batch flags = %#x", flags)
	}
	// First row: index 0, then the digest.
	if data[5] != 0 || data[6] != 0 || data[7] != 0 || data[8] != 0 {
		t.Fatalf("row 0 index = % x", data[5:9])
	}
	d0 := records[0].BatchRec().Key.Digest()
	if string(data[9:29]) != string(d0[:]) {
		t.Fatal("row 0 digest mismatch")
	}
}

func TestParseBatchFrame(t *testing.T) {
	records := []BatchRecorder{
		NewBatchRead(testKey(t, "k1"), "n"),
		NewBatchRead(testKey(t, "k2"), "n"),
	}

	buf := wire.GetBuffer()
	defer buf.Release()

	// Row for index 1: one bin.
	one, _ := value.AppendParticle(nil, value.IntValue(41))
	rowHeader(buf, 0, 0, 9, 0, 1, 0, 1)
	wire.WriteOperation(buf, wire.OpRead, value.ParticleInteger, "n", one)
	// Row for index 0: not found.
	rowHeader(buf, byte(ResultKeyNotFound), 0, 0, 0, 0, 0, 0)
	// Terminator.
	rowHeader(buf, 0, wire.Info3Last, 0, 0, 0, 0, 0)

	var c Client
	last, err := c.parseBatchFrame(nil, buf.Bytes(), records)
	if err != nil {
		t.Fatal(err)
	}
	if !last {
		t.Fatal("terminator not recognized")
	}

	r0 := records[0].BatchRec()
	if r0.Record != nil || !errors.Is(r0.Err, ErrKeyNotFound) {
		t.Fatalf("row 0 = %+v", r0)
	}
	r1 := records[1].BatchRec()
	if r1.Err != nil || r1.Record == nil || !r1.Record.Bins["n"].Equal(value.IntValue(41)) {
		t.Fatalf("row 1 = %+v", r1)
	}
	if r1.Record.Generation != 9 {
		t.Fatalf("row 1 generation = %d", r1.Record.Generation)
	}
}

func queryTestJob(stmt *query.Statement, qp *policy.QueryPolicy, pf *query.PartitionFilter) *queryJob {
	pf.EnsureStatuses()
	stmt.PrepareTaskID()
	return &queryJob{
		stmt: stmt,
		qp:   qp,
		pf:   pf,
		rs:   newRecordset(qp.RecordQueueSize, stmt.TaskID),
	}
}

func TestBuildQueryRequestScan(t *testing.T) {
	stmt := query.NewStatement("test", "demo", "a")
	qp := policy.NewQueryPolicy()
	qp.SocketTimeout = 10 * time.Second
	qp.RecordsPerSecond = 500
	pf := query.NewPartitionFilterByRange(4, 2)
	job := queryTestJob(stmt, qp, pf)

	req, err := buildQueryRequest(job, pf.Partitions, 100)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1Read == 0 {
		t.Fatalf("info1 = %#x", h.Info1)
	}
	fields, off, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	byType := map[wire.FieldType][]byte{}
	for _, f := range fields {
		byType[f.Type] = f.Data
	}
	if string(byType[wire.FieldNamespace]) != "test" || string(byType[wire.FieldTable]) != "demo" {
		t.Fatalf("ns/set fields = %q/%q", byType[wire.FieldNamespace], byType[wire.FieldTable])
	}
	if len(byType[wire.FieldTaskID]) != 8 {
		t.Fatal("task id field missing")
	}
	// pid array entries are 2-byte little-endian.
	pids := byType[wire.FieldPIDArray]
	if len(pids) != 4 || pids[0] != 4 || pids[1] != 0 || pids[2] != 5 || pids[3] != 0 {
		t.Fatalf("pid array = % x", pids)
	}
	if len(byType[wire.FieldMaxRecords]) != 8 || byType[wire.FieldMaxRecords][7] != 100 {
		t.Fatalf("max records = % x", byType[wire.FieldMaxRecords])
	}
	if len(byType[wire.FieldRecordsPerSecond]) != 4 {
		t.Fatal("records-per-second field missing")
	}

	// Scans request bins as read operations.
	ops, _, err := wire.ParseOperations(body, off, int(h.OpCount))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].BinName != "a" {
		t.Fatalf("ops = %+v", ops)
	}
}

func TestBuildQueryRequestWithFilter(t *testing.T) {
	stmt := query.NewStatement("test", "demo", "a", "b")
	stmt.Filter = query.Range("age", 21, 65)
	qp := policy.NewQueryPolicy()
	qp.ExpectedDuration = policy.DurationShort
	pf := query.NewPartitionFilterByID(0)
	job := queryTestJob(stmt, qp, pf)

	req, err := buildQueryRequest(job, pf.Partitions, 0)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	if h.Info1&wire.Info1ShortQuery == 0 {
		t.Fatalf("info1 = %#x", h.Info1)
	}
	if h.OpCount != 0 {
		t.Fatal("index queries must not carry read ops")
	}
	fields, _, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	var rangeField, binList []byte
	for _, f := range fields {
		switch f.Type {
		case wire.FieldIndexRange:
			rangeField = f.Data
		case wire.FieldQueryBinList:
			binList = f.Data
		}
	}
	if len(rangeField) == 0 || rangeField[0] != 1 {
		t.Fatalf("index range field = % x", rangeField)
	}
	packed, _ := stmt.Filter.Pack()
	if string(rangeField[1:]) != string(packed) {
		t.Fatal("index range payload mismatch")
	}
	if len(binList) == 0 || binList[0] != 2 {
		t.Fatalf("bin list = % x", binList)
	}
}

func TestBuildQueryRequestResume(t *testing.T) {
	stmt := query.NewStatement("test", "demo")
	stmt.Filter = query.Equal("name", value.StringValue("x"))
	qp := policy.NewQueryPolicy()
	pf := query.NewPartitionFilterByRange(0, 2)
	job := queryTestJob(stmt, qp, pf)

	pf.Partitions[1].HasDigest = true
	pf.Partitions[1].Digest[0] = 0xAB
	pf.Partitions[1].BVal = 3

	req, err := buildQueryRequest(job, pf.Partitions, 0)
	if err != nil {
		t.Fatal(err)
	}
	h, body := parseRequest(t, req)
	fields, _, err := wire.ParseFields(body, wire.MessageHeaderSize, int(h.FieldCount))
	if err != nil {
		t.Fatal(err)
	}
	byType := map[wire.FieldType][]byte{}
	for _, f := range fields {
		byType[f.Type] = f.Data
	}
	if len(byType[wire.FieldPIDArray]) != 2 {
		t.Fatalf("pid array = % x", byType[wire.FieldPIDArray])
	}
	if len(byType[wire.FieldDigestArray]) != 20 || byType[wire.FieldDigestArray][0] != 0xAB {
		t.Fatalf("digest array = % x", byType[wire.FieldDigestArray])
	}
	bvals := byType[wire.FieldBValArray]
	if len(bvals) != 8 || bvals[0] != 3 {
		t.Fatalf("bval array = % x", bvals)
	}
}

func TestParseStreamRecordsAndPartitionDone(t *testing.T) {
	stmt := query.NewStatement("test", "demo")
	qp := policy.NewQueryPolicy()
	pf := query.NewPartitionFilterAll()
	job := queryTestJob(stmt, qp, pf)

	key := testKey(t, "k1")
	digest := key.Digest()
	pid := key.PartitionID()
	byID := map[int]*query.PartitionStatus{pid: pf.Partitions[pid]}

	buf := wire.GetBuffer()
	defer buf.Release()

	// One record, then its partition-done marker, then the terminator.
	one, _ := value.AppendParticle(nil, value.IntValue(1))
	rowHeader(buf, 0, 0, 2, 0, 0, 1, 1)
	wire.WriteFieldBytes(buf, wire.FieldDigest, digest[:])
	wire.WriteOperation(buf, wire.OpRead, value.ParticleInteger, "n", one)
	rowHeader(buf, 0, wire.Info3PartitionDone, uint32(pid), 0, 0, 0, 0)
	rowHeader(buf, 0, wire.Info3Last, 0, 0, 0, 0, 0)

	var c Client
	last, err := c.parseStream(t.Context(), nil, job, buf.Bytes(), byID)
	if err != nil {
		t.Fatal(err)
	}
	if !last {
		t.Fatal("terminator not recognized")
	}

	res := <-job.rs.results
	if res.Err != nil || res.Record == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Record.Key.PartitionID() != pid || !res.Record.Bins["n"].Equal(value.IntValue(1)) {
		t.Fatalf("record = %+v", res.Record)
	}

	ps := pf.Partitions[pid]
	if !ps.HasDigest || ps.Digest != digest {
		t.Fatal("cursor not advanced")
	}
	if ps.Retry {
		t.Fatal("partition-done must clear the retry mark")
	}
}

func TestRecordsetCloseStopsProducers(t *testing.T) {
	rs := newRecordset(1, 7)
	if rs.TaskID() != 7 {
		t.Fatalf("task id = %d", rs.TaskID())
	}
	if err := rs.send(&Result{}); err != nil {
		t.Fatal(err)
	}
	rs.Close()
	rs.Close() // idempotent
	if err := rs.send(&Result{}); !errors.Is(err, ErrRecordsetClosed) {
		t.Fatalf("send after close = %v", err)
	}
}

func TestPrivilegesRoundTrip(t *testing.T) {
	privs := []Privilege{
		{Code: PrivSysAdmin},
		{Code: PrivMaskingAdmin},
		{Code: PrivReadWrite, Namespace: "test", SetName: "demo"},
		{Code: PrivRead, Namespace: "test"},
		{Code: PrivReadMasked, Namespace: "test", SetName: "demo"},
		{Code: PrivWriteMasked, Namespace: "test"},
	}
	buf := wire.GetBuffer()
	defer buf.Release()
	if err := writePrivilegesField(buf, privs); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	// 4-byte length, 1-byte field id, then the payload.
	if data[4] != wire.AdminFieldPrivileges {
		t.Fatalf("field id = %d", data[4])
	}
	got := parsePrivileges(data[5:])
	if len(got) != len(privs) {
		t.Fatalf("privileges = %+v", got)
	}
	for i := range privs {
		if got[i] != privs[i] {
			t.Fatalf("privilege %d = %+v, want %+v", i, got[i], privs[i])
		}
	}
}

func TestPrivilegeScopeValidation(t *testing.T) {
	buf := wire.GetBuffer()
	defer buf.Release()
	err := writePrivilegesField(buf, []Privilege{{Code: PrivSysAdmin, Namespace: "test"}})
	if err == nil {
		t.Fatal("global privilege with a namespace must be rejected")
	}
	err = writePrivilegesField(buf, []Privilege{{Code: PrivMaskingAdmin, Namespace: "test"}})
	if err == nil {
		t.Fatal("masking-admin is global and must reject a namespace")
	}
}

func TestPrivilegeNames(t *testing.T) {
	cases := map[PrivilegeCode]string{
		PrivMaskingAdmin: "masking-admin",
		PrivReadMasked:   "read-masked",
		PrivWriteMasked:  "write-masked",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("code %d = %q, want %q", code, got, want)
		}
	}
}

func TestCreatePKIUserEnvelope(t *testing.T) {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, "svc-gateway")
	wire.WriteAdminFieldStrings(buf, wire.AdminFieldRoles, []string{"read", "read-masked"})
	wire.EndAdmin(buf, wire.AdminCreatePKIUser, 2)

	body := buf.Bytes()[wire.ProtoHeaderSize:]
	if body[2] != wire.AdminCreatePKIUser {
		t.Fatalf("command = %d", body[2])
	}
	if wire.AdminFieldCount(body) != 2 {
		t.Fatalf("field count = %d", wire.AdminFieldCount(body))
	}
	fields, _, err := parseAdminFields(body, wire.AdminHeaderSize, 2)
	if err != nil {
		t.Fatal(err)
	}
	if fields[0].id != wire.AdminFieldUser || string(fields[0].data) != "svc-gateway" {
		t.Fatalf("user field = %+v", fields[0])
	}
	// A PKI user carries roles but never a password field.
	roles := parseStringList(fields[1].data)
	if fields[1].id != wire.AdminFieldRoles || len(roles) != 2 || roles[1] != "read-masked" {
		t.Fatalf("roles field = %+v", roles)
	}
}

func TestExpressionIndexParams(t *testing.T) {
	params := expressionIndexParams("test", "demo", "idx", "ZW5jb2RlZA==",
		query.IndexNumeric, query.CollectionMapValues)
	want := []string{"ns=test", "set=demo", "indexname=idx", "exp=ZW5jb2RlZA==",
		"indextype=MAPVALUES", "type=NUMERIC"}
	if len(params) != len(want) {
		t.Fatalf("params = %v", params)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Fatalf("param %d = %q, want %q", i, params[i], want[i])
		}
	}

	params = expressionIndexParams("test", "", "idx", "ZXhw",
		query.IndexString, query.CollectionDefault)
	want = []string{"ns=test", "indexname=idx", "exp=ZXhw", "type=STRING"}
	if len(params) != len(want) {
		t.Fatalf("params = %v", params)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Fatalf("param %d = %q, want %q", i, params[i], want[i])
		}
	}
}

func TestCreateIndexUsingExpressionRequiresFilter(t *testing.T) {
	c := &Client{}
	_, err := c.CreateIndexUsingExpression(context.Background(), nil, "test", "demo", "idx",
		nil, query.IndexNumeric)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil expression = %v", err)
	}
}

func TestRegisterUDFFromFileMissing(t *testing.T) {
	c := &Client{}
	_, err := c.RegisterUDFFromFile(context.Background(), nil, "/no/such/module.lua", LuaLanguage)
	if err == nil {
		t.Fatal("missing file must fail before any request is sent")
	}
}

func TestParseUDFList(t *testing.T) {
	val := "filename=stats.lua,hash=abc123,type=LUA;filename=agg.lua,hash=def,type=LUA;"
	mods := parseUDFList(val)
	if len(mods) != 2 {
		t.Fatalf("modules = %+v", mods)
	}
	if mods[0].Filename != "stats.lua" || mods[0].Hash != "abc123" || mods[0].Language != LuaLanguage {
		t.Fatalf("module 0 = %+v", mods[0])
	}
}

func TestParseUDFResult(t *testing.T) {
	var out value.Value = value.NilValue{}
	rec := &Record{Bins: map[string]value.Value{"SUCCESS": value.IntValue(5)}}
	if err := parseUDFResult(rec, &out); err != nil || !out.Equal(value.IntValue(5)) {
		t.Fatalf("success = %v, %v", out, err)
	}
	rec = &Record{Bins: map[string]value.Value{"FAILURE": value.StringValue("boom")}}
	if err := parseUDFResult(rec, &out); err == nil {
		t.Fatal("failure bin must become an error")
	}
}

func TestIndexErrorDecoding(t *testing.T) {
	if err := indexError("OK"); err != nil {
		t.Fatal(err)
	}
	err := indexError("FAIL:200:Index already exists")
	if !errors.Is(err, ErrIndexFound) {
		t.Fatalf("err = %v", err)
	}
	err = indexError("FAIL:201:no index")
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestAdminListParsers(t *testing.T) {
	roles := parseStringList([]byte{2, 3, 'o', 'p', 's', 4, 'r', 'e', 'a', 'd'})
	if len(roles) != 2 || roles[0] != "ops" || roles[1] != "read" {
		t.Fatalf("roles = %v", roles)
	}
	quota := parseUint32List([]byte{1, 0, 0, 1, 0})
	if len(quota) != 1 || quota[0] != 256 {
		t.Fatalf("quota = %v", quota)
	}
}
