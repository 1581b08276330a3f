package aero

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/phamduclong/aerogo/internal/bcrypt"
	"github.com/phamduclong/aerogo/internal/cluster"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
)

// PrivilegeCode is a server permission. Codes of ten and above may be
// scoped to a namespace and set.
type PrivilegeCode byte

const (
	PrivUserAdmin    PrivilegeCode = 0
	PrivSysAdmin     PrivilegeCode = 1
	PrivDataAdmin    PrivilegeCode = 2
	PrivUDFAdmin     PrivilegeCode = 3
	PrivSIndexAdmin  PrivilegeCode = 4
	PrivMaskingAdmin PrivilegeCode = 5
	PrivRead         PrivilegeCode = 10
	PrivReadWrite    PrivilegeCode = 11
	PrivReadWriteUDF PrivilegeCode = 12
	PrivWrite        PrivilegeCode = 13
	PrivTruncate     PrivilegeCode = 14
	PrivReadMasked   PrivilegeCode = 15
	PrivWriteMasked  PrivilegeCode = 16
)

func (p PrivilegeCode) String() string {
	switch p {
	case PrivUserAdmin:
		return "user-admin"
	case PrivSysAdmin:
		return "sys-admin"
	case PrivDataAdmin:
		return "data-admin"
	case PrivUDFAdmin:
		return "udf-admin"
	case PrivSIndexAdmin:
		return "sindex-admin"
	case PrivMaskingAdmin:
		return "masking-admin"
	case PrivRead:
		return "read"
	case PrivReadWrite:
		return "read-write"
	case PrivReadWriteUDF:
		return "read-write-udf"
	case PrivWrite:
		return "write"
	case PrivTruncate:
		return "truncate"
	case PrivReadMasked:
		return "read-masked"
	case PrivWriteMasked:
		return "write-masked"
	default:
		return fmt.Sprintf("privilege-%d", byte(p))
	}
}

// Scoped reports whether the code carries a namespace and set.
func (p PrivilegeCode) Scoped() bool { return p >= PrivRead }

// Privilege grants one permission, optionally narrowed to a namespace
// and set.
type Privilege struct {
	Code      PrivilegeCode
	Namespace string
	SetName   string
}

// UserInfo is one row of a user query.
type UserInfo struct {
	Name  string
	Roles []string

	// ReadInfo and WriteInfo are quota usage figures: tps, single-record
	// limit, scan/query limit.
	ReadInfo  []uint32
	WriteInfo []uint32

	ConnsInUse int
}

// RoleInfo is one row of a role query.
type RoleInfo struct {
	Name       string
	Privileges []Privilege
	Allowlist  []string
	ReadQuota  uint32
	WriteQuota uint32
}

func adminTimeout(p *policy.AdminPolicy) time.Duration {
	if p == nil || p.Timeout <= 0 {
		return defaultInfoTimeout
	}
	return time.Duration(p.Timeout) * time.Millisecond
}

// adminNode picks the node admin commands run on.
func (c *Client) adminNode() (*cluster.Node, error) {
	node := c.cluster.RandomNode()
	if node == nil {
		return nil, cluster.ErrNoAvailableNodes
	}
	return node, nil
}

// adminExecute sends one security command and checks the result code.
func (c *Client) adminExecute(ctx context.Context, p *policy.AdminPolicy, request []byte) error {
	node, err := c.adminNode()
	if err != nil {
		return err
	}
	conn, err := node.GetConnection(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(adminTimeout(p))

	if err := conn.Write(request, deadline); err != nil {
		node.CloseConnection(conn)
		return err
	}
	msgType, body, err := conn.ReadProto(deadline)
	if err != nil {
		node.CloseConnection(conn)
		return err
	}
	node.PutConnection(conn)

	if msgType != wire.MsgTypeAdmin {
		return fmt.Errorf("%w: message type %d", ErrBadResponse, msgType)
	}
	code, err := wire.ParseAdminResult(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return serverError(ResultCode(code), node.Name(), false)
}

// CreateUser creates a user holding the given roles. The password is
// hashed client-side before it leaves the process.
func (c *Client) CreateUser(ctx context.Context, p *policy.AdminPolicy, user, password string, roles []string) error {
	hash, err := bcrypt.Hash(password)
	if err != nil {
		return err
	}
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.WriteAdminFieldString(buf, wire.AdminFieldPassword, hash)
	wire.WriteAdminFieldStrings(buf, wire.AdminFieldRoles, roles)
	wire.EndAdmin(buf, wire.AdminCreateUser, 3)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// CreatePKIUser creates a user whose identity is bound to a client
// certificate; no password field is sent.
func (c *Client) CreatePKIUser(ctx context.Context, p *policy.AdminPolicy, user string, roles []string) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.WriteAdminFieldStrings(buf, wire.AdminFieldRoles, roles)
	wire.EndAdmin(buf, wire.AdminCreatePKIUser, 2)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// DropUser removes a user.
func (c *Client) DropUser(ctx context.Context, p *policy.AdminPolicy, user string) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.EndAdmin(buf, wire.AdminDropUser, 1)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// SetPassword replaces a user's password without knowing the old one;
// requires user-admin.
func (c *Client) SetPassword(ctx context.Context, p *policy.AdminPolicy, user, password string) error {
	hash, err := bcrypt.Hash(password)
	if err != nil {
		return err
	}
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.WriteAdminFieldString(buf, wire.AdminFieldPassword, hash)
	wire.EndAdmin(buf, wire.AdminSetPassword, 2)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// ChangePassword replaces the caller's own password, proving knowledge
// of the old one.
func (c *Client) ChangePassword(ctx context.Context, p *policy.AdminPolicy, user, oldPassword, newPassword string) error {
	oldHash, err := bcrypt.Hash(oldPassword)
	if err != nil {
		return err
	}
	newHash, err := bcrypt.Hash(newPassword)
	if err != nil {
		return err
	}
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.WriteAdminFieldString(buf, wire.AdminFieldOldPassword, oldHash)
	wire.WriteAdminFieldString(buf, wire.AdminFieldPassword, newHash)
	wire.EndAdmin(buf, wire.AdminChangePassword, 3)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// GrantRoles adds roles to a user.
func (c *Client) GrantRoles(ctx context.Context, p *policy.AdminPolicy, user string, roles []string) error {
	return c.userRoles(ctx, p, wire.AdminGrantRoles, user, roles)
}

// RevokeRoles removes roles from a user.
func (c *Client) RevokeRoles(ctx context.Context, p *policy.AdminPolicy, user string, roles []string) error {
	return c.userRoles(ctx, p, wire.AdminRevokeRoles, user, roles)
}

func (c *Client) userRoles(ctx context.Context, p *policy.AdminPolicy, command byte, user string, roles []string) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.WriteAdminFieldStrings(buf, wire.AdminFieldRoles, roles)
	wire.EndAdmin(buf, command, 2)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// CreateRole defines a role from privileges, an optional address
// allowlist and optional read/write quotas (records per second, zero
// for none).
func (c *Client) CreateRole(ctx context.Context, p *policy.AdminPolicy, name string,
	privileges []Privilege, allowlist []string, readQuota, writeQuota uint32) error {

	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	fieldCount := 1
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	if len(privileges) > 0 {
		if err := writePrivilegesField(buf, privileges); err != nil {
			return err
		}
		fieldCount++
	}
	if len(allowlist) > 0 {
		wire.WriteAdminFieldString(buf, wire.AdminFieldWhitelist, strings.Join(allowlist, ","))
		fieldCount++
	}
	if readQuota > 0 {
		writeQuotaField(buf, wire.AdminFieldReadQuota, readQuota)
		fieldCount++
	}
	if writeQuota > 0 {
		writeQuotaField(buf, wire.AdminFieldWriteQuota, writeQuota)
		fieldCount++
	}
	wire.EndAdmin(buf, wire.AdminCreateRole, fieldCount)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// DropRole removes a role.
func (c *Client) DropRole(ctx context.Context, p *policy.AdminPolicy, name string) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	wire.EndAdmin(buf, wire.AdminDropRole, 1)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// GrantPrivileges adds privileges to a role.
func (c *Client) GrantPrivileges(ctx context.Context, p *policy.AdminPolicy, name string, privileges []Privilege) error {
	return c.rolePrivileges(ctx, p, wire.AdminGrantPrivileges, name, privileges)
}

// RevokePrivileges removes privileges from a role.
func (c *Client) RevokePrivileges(ctx context.Context, p *policy.AdminPolicy, name string, privileges []Privilege) error {
	return c.rolePrivileges(ctx, p, wire.AdminRevokePrivs, name, privileges)
}

func (c *Client) rolePrivileges(ctx context.Context, p *policy.AdminPolicy, command byte, name string, privileges []Privilege) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	if err := writePrivilegesField(buf, privileges); err != nil {
		return err
	}
	wire.EndAdmin(buf, command, 2)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// SetAllowlist replaces a role's address allowlist; empty clears it.
func (c *Client) SetAllowlist(ctx context.Context, p *policy.AdminPolicy, name string, allowlist []string) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	fieldCount := 1
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	if len(allowlist) > 0 {
		wire.WriteAdminFieldString(buf, wire.AdminFieldWhitelist, strings.Join(allowlist, ","))
		fieldCount++
	}
	wire.EndAdmin(buf, wire.AdminSetWhitelist, fieldCount)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// SetQuotas replaces a role's rate quotas; zero clears one.
func (c *Client) SetQuotas(ctx context.Context, p *policy.AdminPolicy, name string, readQuota, writeQuota uint32) error {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	writeQuotaField(buf, wire.AdminFieldReadQuota, readQuota)
	writeQuotaField(buf, wire.AdminFieldWriteQuota, writeQuota)
	wire.EndAdmin(buf, wire.AdminSetQuotas, 3)
	return c.adminExecute(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// QueryUser fetches one user.
func (c *Client) QueryUser(ctx context.Context, p *policy.AdminPolicy, user string) (*UserInfo, error) {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
	wire.EndAdmin(buf, wire.AdminQueryUsers, 1)

	users, err := c.adminQueryUsers(ctx, p, append([]byte(nil), buf.Bytes()...))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, serverError(ResultInvalidUser, "", false)
	}
	return users[0], nil
}

// QueryUsers lists every user.
func (c *Client) QueryUsers(ctx context.Context, p *policy.AdminPolicy) ([]*UserInfo, error) {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.EndAdmin(buf, wire.AdminQueryUsers, 0)
	return c.adminQueryUsers(ctx, p, append([]byte(nil), buf.Bytes()...))
}

// QueryRole fetches one role.
func (c *Client) QueryRole(ctx context.Context, p *policy.AdminPolicy, name string) (*RoleInfo, error) {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.WriteAdminFieldString(buf, wire.AdminFieldRole, name)
	wire.EndAdmin(buf, wire.AdminQueryRoles, 1)

	roles, err := c.adminQueryRoles(ctx, p, append([]byte(nil), buf.Bytes()...))
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, serverError(ResultInvalidRole, "", false)
	}
	return roles[0], nil
}

// QueryRoles lists every role.
func (c *Client) QueryRoles(ctx context.Context, p *policy.AdminPolicy) ([]*RoleInfo, error) {
	buf := wire.GetBuffer()
	defer buf.Release()
	wire.BeginAdmin(buf)
	wire.EndAdmin(buf, wire.AdminQueryRoles, 0)
	return c.adminQueryRoles(ctx, p, append([]byte(nil), buf.Bytes()...))
}

func writePrivilegesField(buf *wire.Buffer, privileges []Privilege) error {
	size := 1
	for _, pr := range privileges {
		size++
		if pr.Code.Scoped() {
			size += 2 + len(pr.Namespace) + len(pr.SetName)
		} else if pr.Namespace != "" || pr.SetName != "" {
			return fmt.Errorf("%w: privilege %s cannot be scoped", ErrInvalidArgument, pr.Code)
		}
	}
	buf.WriteUint32(uint32(size + 1))
	buf.WriteUint8(wire.AdminFieldPrivileges)
	buf.WriteUint8(byte(len(privileges)))
	for _, pr := range privileges {
		buf.WriteUint8(byte(pr.Code))
		if pr.Code.Scoped() {
			buf.WriteUint8(byte(len(pr.Namespace)))
			buf.WriteString(pr.Namespace)
			buf.WriteUint8(byte(len(pr.SetName)))
			buf.WriteString(pr.SetName)
		}
	}
	return nil
}

func writeQuotaField(buf *wire.Buffer, id byte, quota uint32) {
	buf.WriteUint32(5)
	buf.WriteUint8(id)
	buf.WriteUint32(quota)
}

// adminQueryStream sends the request and feeds each response row to
// parse until the server signals the end of the query.
func (c *Client) adminQueryStream(ctx context.Context, p *policy.AdminPolicy, request []byte,
	parseRow func(fields []adminField)) error {

	node, err := c.adminNode()
	if err != nil {
		return err
	}
	conn, err := node.GetConnection(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(adminTimeout(p))
	if err := conn.Write(request, deadline); err != nil {
		node.CloseConnection(conn)
		return err
	}

	for {
		msgType, body, err := conn.ReadProto(deadline)
		if err != nil {
			node.CloseConnection(conn)
			return err
		}
		if msgType != wire.MsgTypeAdmin {
			node.CloseConnection(conn)
			return fmt.Errorf("%w: message type %d", ErrBadResponse, msgType)
		}

		off := 0
		for off < len(body) {
			if off+wire.AdminHeaderSize > len(body) {
				node.CloseConnection(conn)
				return fmt.Errorf("%w: truncated admin row", ErrBadResponse)
			}
			code := ResultCode(body[off+1])
			fieldCount := int(body[off+3])
			off += wire.AdminHeaderSize

			if code == ResultQueryEnd || code == ResultSecurityNotEnabled {
				node.PutConnection(conn)
				return nil
			}
			if code != ResultOK {
				node.PutConnection(conn)
				return serverError(code, node.Name(), false)
			}

			fields, next, err := parseAdminFields(body, off, fieldCount)
			if err != nil {
				node.CloseConnection(conn)
				return err
			}
			off = next
			parseRow(fields)
		}
	}
}

type adminField struct {
	id   byte
	data []byte
}

func parseAdminFields(body []byte, off, fieldCount int) ([]adminField, int, error) {
	fields := make([]adminField, 0, fieldCount)
	for i := 0; i < fieldCount; i++ {
		if off+5 > len(body) {
			return nil, 0, fmt.Errorf("%w: truncated admin field", ErrBadResponse)
		}
		sz := int(binary.BigEndian.Uint32(body[off : off+4]))
		if sz < 1 || off+4+sz > len(body) {
			return nil, 0, fmt.Errorf("%w: admin field size %d", ErrBadResponse, sz)
		}
		fields = append(fields, adminField{id: body[off+4], data: body[off+5 : off+4+sz]})
		off += 4 + sz
	}
	return fields, off, nil
}

func (c *Client) adminQueryUsers(ctx context.Context, p *policy.AdminPolicy, request []byte) ([]*UserInfo, error) {
	var users []*UserInfo
	err := c.adminQueryStream(ctx, p, request, func(fields []adminField) {
		u := &UserInfo{}
		for _, f := range fields {
			switch f.id {
			case wire.AdminFieldUser:
				u.Name = string(f.data)
			case wire.AdminFieldRoles:
				u.Roles = parseStringList(f.data)
			case wire.AdminFieldReadInfo:
				u.ReadInfo = parseUint32List(f.data)
			case wire.AdminFieldWriteInfo:
				u.WriteInfo = parseUint32List(f.data)
			case wire.AdminFieldConnections:
				if len(f.data) == 4 {
					u.ConnsInUse = int(binary.BigEndian.Uint32(f.data))
				}
			}
		}
		if u.Name != "" {
			users = append(users, u)
		}
	})
	return users, err
}

func (c *Client) adminQueryRoles(ctx context.Context, p *policy.AdminPolicy, request []byte) ([]*RoleInfo, error) {
	var roles []*RoleInfo
	err := c.adminQueryStream(ctx, p, request, func(fields []adminField) {
		r := &RoleInfo{}
		for _, f := range fields {
			switch f.id {
			case wire.AdminFieldRole:
				r.Name = string(f.data)
			case wire.AdminFieldPrivileges:
				r.Privileges = parsePrivileges(f.data)
			case wire.AdminFieldWhitelist:
				if len(f.data) > 0 {
					r.Allowlist = strings.Split(string(f.data), ",")
				}
			case wire.AdminFieldReadQuota:
				if len(f.data) == 4 {
					r.ReadQuota = binary.BigEndian.Uint32(f.data)
				}
			case wire.AdminFieldWriteQuota:
				if len(f.data) == 4 {
					r.WriteQuota = binary.BigEndian.Uint32(f.data)
				}
			}
		}
		if r.Name != "" {
			roles = append(roles, r)
		}
	})
	return roles, err
}

// parseStringList decodes a count byte followed by length-prefixed
// strings.
func parseStringList(data []byte) []string {
	if len(data) < 1 {
		return nil
	}
	count := int(data[0])
	out := make([]string, 0, count)
	off := 1
	for i := 0; i < count && off < len(data); i++ {
		n := int(data[off])
		off++
		if off+n > len(data) {
			break
		}
		out = append(out, string(data[off:off+n]))
		off += n
	}
	return out
}

// parseUint32List decodes a count byte followed by 4-byte values.
func parseUint32List(data []byte) []uint32 {
	if len(data) < 1 {
		return nil
	}
	count := int(data[0])
	out := make([]uint32, 0, count)
	off := 1
	for i := 0; i < count && off+4 <= len(data); i++ {
		out = append(out, binary.BigEndian.Uint32(data[off:off+4]))
		off += 4
	}
	return out
}

// parsePrivileges decodes a count byte followed by privilege entries;
// scoped codes carry length-prefixed namespace and set.
func parsePrivileges(data []byte) []Privilege {
	if len(data) < 1 {
		return nil
	}
	count := int(data[0])
	out := make([]Privilege, 0, count)
	off := 1
	for i := 0; i < count && off < len(data); i++ {
		pr := Privilege{Code: PrivilegeCode(data[off])}
		off++
		if pr.Code.Scoped() {
			if off >= len(data) {
				break
			}
			n := int(data[off])
			off++
			if off+n > len(data) {
				break
			}
			pr.Namespace = string(data[off : off+n])
			off += n
			if off >= len(data) {
				break
			}
			n = int(data[off])
			off++
			if off+n > len(data) {
				break
			}
			pr.SetName = string(data[off : off+n])
			off += n
		}
		out = append(out, pr)
	}
	return out
}
