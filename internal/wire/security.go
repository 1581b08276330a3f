package wire

import "fmt"

// Security subprotocol commands (proto message type 2).
const (
	AdminAuthenticate    = 0
	AdminCreateUser      = 1
	AdminDropUser        = 2
	AdminSetPassword     = 3
	AdminChangePassword  = 4
	AdminGrantRoles      = 5
	AdminRevokeRoles     = 6
	AdminCreatePKIUser   = 8
	AdminQueryUsers      = 9
	AdminCreateRole      = 10
	AdminDropRole        = 11
	AdminGrantPrivileges = 12
	AdminRevokePrivs     = 13
	AdminSetWhitelist    = 14
	AdminSetQuotas       = 15
	AdminQueryRoles      = 16
	AdminLogin           = 20
)

// Security field ids.
const (
	AdminFieldUser          = 0
	AdminFieldPassword      = 1
	AdminFieldOldPassword   = 2
	AdminFieldCredential    = 3
	AdminFieldClearPassword = 4
	AdminFieldSessionToken  = 5
	AdminFieldSessionTTL    = 6
	AdminFieldRoles         = 10
	AdminFieldRole          = 11
	AdminFieldPrivileges    = 12
	AdminFieldWhitelist     = 13
	AdminFieldReadQuota     = 14
	AdminFieldWriteQuota    = 15
	AdminFieldReadInfo      = 16
	AdminFieldWriteInfo     = 17
	AdminFieldConnections   = 18
)

// AdminHeaderSize is the fixed part after the proto header.
const AdminHeaderSize = 16

// BeginAdmin reserves the proto and admin headers; EndAdmin patches
// them in.
func BeginAdmin(buf *Buffer) {
	buf.Skip(ProtoHeaderSize + AdminHeaderSize)
}

// EndAdmin writes the proto header and the command/field-count bytes.
func EndAdmin(buf *Buffer, command byte, fieldCount int) {
	size := uint64(buf.Len()-ProtoHeaderSize) | uint64(ProtoVersion)<<56 | uint64(MsgTypeAdmin)<<48
	buf.PutUint64At(0, size)
	buf.PutByteAt(ProtoHeaderSize+2, command)
	buf.PutByteAt(ProtoHeaderSize+3, byte(fieldCount))
}

// WriteAdminFieldString appends one length-prefixed security field.
func WriteAdminFieldString(buf *Buffer, id byte, s string) {
	buf.WriteUint32(uint32(len(s) + 1))
	buf.WriteUint8(id)
	buf.WriteString(s)
}

// WriteAdminFieldBytes appends one length-prefixed security field.
func WriteAdminFieldBytes(buf *Buffer, id byte, b []byte) {
	buf.WriteUint32(uint32(len(b) + 1))
	buf.WriteUint8(id)
	buf.WriteBytes(b)
}

// WriteAdminFieldStrings appends a list field: 1-byte count, then
// length-prefixed entries.
func WriteAdminFieldStrings(buf *Buffer, id byte, items []string) {
	size := 1
	for _, it := range items {
		size += 1 + len(it)
	}
	buf.WriteUint32(uint32(size + 1))
	buf.WriteUint8(id)
	buf.WriteUint8(byte(len(items)))
	for _, it := range items {
		buf.WriteUint8(byte(len(it)))
		buf.WriteString(it)
	}
}

// ParseAdminResult extracts the result code from an admin response
// body (the bytes after the proto header).
func ParseAdminResult(body []byte) (int, error) {
	if len(body) < AdminHeaderSize {
		return 0, fmt.Errorf("wire: admin response %d bytes, want at least %d",
			len(body), AdminHeaderSize)
	}
	return int(body[1]), nil
}

// AdminFieldCount returns the field count of an admin response body.
func AdminFieldCount(body []byte) int {
	if len(body) < AdminHeaderSize {
		return 0
	}
	return int(body[3])
}
