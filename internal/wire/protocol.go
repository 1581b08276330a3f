package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/phamduclong/aerogo/pkg/value"
)

// Proto header: 1 byte version, 1 byte message type, 6 bytes body size.
const (
	ProtoVersion = 2

	MsgTypeInfo     = 1
	MsgTypeAdmin    = 2
	MsgTypeMessage  = 3
	MsgTypeCompress = 4

	ProtoHeaderSize   = 8
	MessageHeaderSize = 22
	TotalHeaderSize   = ProtoHeaderSize + MessageHeaderSize

	FieldHeaderSize     = 5
	OperationHeaderSize = 8

	// MaxProtoBody is the largest body size the 6-byte length field
	// can carry; anything bigger is a framing error.
	MaxProtoBody = 1<<48 - 1
)

// info1 flags
const (
	Info1Read          = 1 << 0
	Info1GetAll        = 1 << 1
	Info1ShortQuery    = 1 << 2
	Info1Batch         = 1 << 3
	Info1XDR           = 1 << 4
	Info1NoBinData     = 1 << 5
	Info1ReadModeAPAll = 1 << 6
	Info1Compress      = 1 << 7
)

// info2 flags
const (
	Info2Write         = 1 << 0
	Info2Delete        = 1 << 1
	Info2Generation    = 1 << 2
	Info2GenerationGT  = 1 << 3
	Info2DurableDelete = 1 << 4
	Info2CreateOnly    = 1 << 5
	Info2RespondAllOps = 1 << 7
)

// info3 flags
const (
	Info3Last            = 1 << 0
	Info3CommitMaster    = 1 << 1
	Info3PartitionDone   = 1 << 2
	Info3UpdateOnly      = 1 << 3
	Info3CreateOrReplace = 1 << 4
	Info3ReplaceOnly     = 1 << 5
	Info3SCReadTypeAll   = 1 << 6
	Info3SCReadRelax     = 1 << 7
)

// FieldType tags a typed field in the message body.
type FieldType byte

const (
	FieldNamespace         FieldType = 0
	FieldTable             FieldType = 1
	FieldKey               FieldType = 2
	FieldDigest            FieldType = 4
	FieldTaskID            FieldType = 7
	FieldSocketTimeout     FieldType = 9
	FieldRecordsPerSecond  FieldType = 10
	FieldPIDArray          FieldType = 11
	FieldDigestArray       FieldType = 12
	FieldMaxRecords        FieldType = 13
	FieldBValArray         FieldType = 15
	FieldIndexRange        FieldType = 22
	FieldIndexType         FieldType = 26
	FieldUDFPackageName    FieldType = 30
	FieldUDFFunction       FieldType = 31
	FieldUDFArgList        FieldType = 32
	FieldUDFOp             FieldType = 33
	FieldQueryBinList      FieldType = 40
	FieldBatchIndex        FieldType = 41
	FieldBatchIndexWithSet FieldType = 42
	FieldFilterExpression  FieldType = 43
)

// OpType tags an operation inside the operations block.
type OpType byte

const (
	OpRead       OpType = 1
	OpWrite      OpType = 2
	OpCDTRead    OpType = 3
	OpCDTModify  OpType = 4
	OpAdd        OpType = 5
	OpExpRead    OpType = 7
	OpExpModify  OpType = 8
	OpAppend     OpType = 9
	OpPrepend    OpType = 10
	OpTouch      OpType = 11
	OpBitRead    OpType = 12
	OpBitModify  OpType = 13
	OpDelete     OpType = 14
	OpHLLRead    OpType = 15
	OpHLLModify  OpType = 16
	OpReadHeader OpType = 17
)

// MessageHeader mirrors the 22-byte header that follows the proto
// header on every message-class request and response.
type MessageHeader struct {
	Info1          byte
	Info2          byte
	Info3          byte
	ResultCode     byte
	Generation     uint32
	Expiration     uint32
	TransactionTTL uint32
	FieldCount     uint16
	OpCount        uint16
}

// BeginMessage reserves the 30 header bytes at the start of the buffer.
// The caller writes fields and operations, then patches the header via
// EndMessage.
func BeginMessage(buf *Buffer) {
	buf.Skip(TotalHeaderSize)
}

// EndMessage writes the proto and message headers over the reserved
// prefix, using the current buffer length as the body size.
func EndMessage(buf *Buffer, h MessageHeader) {
	size := uint64(buf.Len() - ProtoHeaderSize)
	buf.PutUint64At(0, uint64(ProtoVersion)<<56|uint64(MsgTypeMessage)<<48|size)
	buf.PutByteAt(8, MessageHeaderSize)
	buf.PutByteAt(9, h.Info1)
	buf.PutByteAt(10, h.Info2)
	buf.PutByteAt(11, h.Info3)
	buf.PutByteAt(12, 0)
	buf.PutByteAt(13, h.ResultCode)
	buf.PutUint32At(14, h.Generation)
	buf.PutUint32At(18, h.Expiration)
	buf.PutUint32At(22, h.TransactionTTL)
	buf.PutUint16At(26, h.FieldCount)
	buf.PutUint16At(28, h.OpCount)
}

// ParseProtoHeader returns message type and body size from the 8-byte
// proto header.
func ParseProtoHeader(hdr []byte) (msgType byte, size uint64, err error) {
	if len(hdr) < ProtoHeaderSize {
		return 0, 0, fmt.Errorf("wire: short proto header (%d bytes)", len(hdr))
	}
	v := binary.BigEndian.Uint64(hdr)
	version := byte(v >> 56)
	if version != ProtoVersion {
		return 0, 0, fmt.Errorf("wire: unsupported protocol version %d", version)
	}
	return byte(v >> 48), v & MaxProtoBody, nil
}

// ParseMessageHeader decodes the 22-byte message header.
func ParseMessageHeader(body []byte) (MessageHeader, error) {
	if len(body) < MessageHeaderSize {
		return MessageHeader{}, fmt.Errorf("wire: short message header (%d bytes)", len(body))
	}
	if sz := body[0]; sz != MessageHeaderSize {
		return MessageHeader{}, fmt.Errorf("wire: unexpected header size %d", sz)
	}
	return MessageHeader{
		Info1:          body[1],
		Info2:          body[2],
		Info3:          body[3],
		ResultCode:     body[5],
		Generation:     binary.BigEndian.Uint32(body[6:10]),
		Expiration:     binary.BigEndian.Uint32(body[10:14]),
		TransactionTTL: binary.BigEndian.Uint32(body[14:18]),
		FieldCount:     binary.BigEndian.Uint16(body[18:20]),
		OpCount:        binary.BigEndian.Uint16(body[20:22]),
	}, nil
}

// WriteFieldHeader writes the 4-byte length and 1-byte type prefix for
// a field carrying size payload bytes.
func WriteFieldHeader(buf *Buffer, ft FieldType, size int) {
	buf.WriteUint32(uint32(size + 1))
	buf.WriteUint8(byte(ft))
}

func WriteFieldString(buf *Buffer, ft FieldType, s string) {
	WriteFieldHeader(buf, ft, len(s))
	buf.WriteString(s)
}

func WriteFieldBytes(buf *Buffer, ft FieldType, b []byte) {
	WriteFieldHeader(buf, ft, len(b))
	buf.WriteBytes(b)
}

func WriteFieldUint32(buf *Buffer, ft FieldType, v uint32) {
	WriteFieldHeader(buf, ft, 4)
	buf.WriteUint32(v)
}

func WriteFieldUint64(buf *Buffer, ft FieldType, v uint64) {
	WriteFieldHeader(buf, ft, 8)
	buf.WriteUint64(v)
}

// WriteKeyValueField writes the user key as a field: 1 particle type
// byte followed by the key payload.
func WriteKeyValueField(buf *Buffer, v value.Value) error {
	payload, err := value.AppendParticle(nil, v)
	if err != nil {
		return err
	}
	WriteFieldHeader(buf, FieldKey, len(payload)+1)
	buf.WriteUint8(byte(v.Type()))
	buf.WriteBytes(payload)
	return nil
}

// WriteOperation writes one operation TLV: op type, particle type, bin
// name and payload.
func WriteOperation(buf *Buffer, op OpType, pt value.ParticleType, binName string, payload []byte) {
	buf.WriteUint32(uint32(4 + len(binName) + len(payload)))
	buf.WriteUint8(byte(op))
	buf.WriteUint8(byte(pt))
	buf.WriteUint8(0) // bin version, unused
	buf.WriteUint8(byte(len(binName)))
	buf.WriteString(binName)
	buf.WriteBytes(payload)
}

// Field is a decoded field TLV.
type Field struct {
	Type FieldType
	Data []byte
}

// Operation is a decoded operation TLV.
type Operation struct {
	Op       OpType
	Particle value.ParticleType
	BinName  string
	Data     []byte
}

// ParseFields decodes fieldCount fields starting at body[off:],
// returning the fields and the offset one past the last.
func ParseFields(body []byte, off int, fieldCount int) ([]Field, int, error) {
	fields := make([]Field, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		if off+5 > len(body) {
			return nil, 0, fmt.Errorf("wire: truncated field %d", i)
		}
		sz := int(binary.BigEndian.Uint32(body[off : off+4]))
		if sz < 1 || off+4+sz > len(body) {
			return nil, 0, fmt.Errorf("wire: field %d size %d exceeds body", i, sz)
		}
		fields = append(fields, Field{
			Type: FieldType(body[off+4]),
			Data: body[off+5 : off+4+sz],
		})
		off += 4 + sz
	}
	return fields, off, nil
}

// ParseOperations decodes opCount operations starting at body[off:].
func ParseOperations(body []byte, off int, opCount int) ([]Operation, int, error) {
	ops := make([]Operation, 0, opCount)
	for i := 0; i < opCount; i++ {
		if off+8 > len(body) {
			return nil, 0, fmt.Errorf("wire: truncated operation %d", i)
		}
		sz := int(binary.BigEndian.Uint32(body[off : off+4]))
		if sz < 4 || off+4+sz > len(body) {
			return nil, 0, fmt.Errorf("wire: operation %d size %d exceeds body", i, sz)
		}
		op := OpType(body[off+4])
		pt := value.ParticleType(body[off+5])
		nameLen := int(body[off+7])
		if 4+nameLen > sz {
			return nil, 0, fmt.Errorf("wire: operation %d bin name overruns payload", i)
		}
		name := string(body[off+8 : off+8+nameLen])
		data := body[off+8+nameLen : off+4+sz]
		ops = append(ops, Operation{Op: op, Particle: pt, BinName: name, Data: data})
		off += 4 + sz
	}
	return ops, off, nil
}
