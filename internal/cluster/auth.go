package cluster

import (
	"fmt"
	"time"

	"github.com/phamduclong/aerogo/internal/bcrypt"
	"github.com/phamduclong/aerogo/internal/wire"
	"github.com/phamduclong/aerogo/pkg/policy"
)

const securityNotEnabled = 52

// login establishes a session on a fresh connection and returns the
// session token, empty when security is disabled server-side.
func login(conn *Conn, p *policy.ClientPolicy, deadline time.Time) ([]byte, time.Time, error) {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginAdmin(buf)
	fieldCount := 0

	switch p.AuthMode {
	case policy.AuthPKI:
		// Identity comes from the client certificate.
	case policy.AuthExternal:
		hashed, err := bcrypt.Hash(p.Password)
		if err != nil {
			return nil, time.Time{}, err
		}
		wire.WriteAdminFieldString(buf, wire.AdminFieldUser, p.User)
		wire.WriteAdminFieldString(buf, wire.AdminFieldCredential, hashed)
		wire.WriteAdminFieldString(buf, wire.AdminFieldClearPassword, p.Password)
		fieldCount = 3
	default:
		hashed, err := bcrypt.Hash(p.Password)
		if err != nil {
			return nil, time.Time{}, err
		}
		wire.WriteAdminFieldString(buf, wire.AdminFieldUser, p.User)
		wire.WriteAdminFieldString(buf, wire.AdminFieldCredential, hashed)
		fieldCount = 2
	}
	wire.EndAdmin(buf, wire.AdminLogin, fieldCount)

	if err := conn.Write(buf.Bytes(), deadline); err != nil {
		return nil, time.Time{}, err
	}
	msgType, body, err := conn.ReadProto(deadline)
	if err != nil {
		return nil, time.Time{}, err
	}
	if msgType != wire.MsgTypeAdmin {
		return nil, time.Time{}, fmt.Errorf("cluster: login reply has message type %d", msgType)
	}
	code, err := wire.ParseAdminResult(body)
	if err != nil {
		return nil, time.Time{}, err
	}
	if code == securityNotEnabled {
		return nil, time.Time{}, nil
	}
	if code != 0 {
		return nil, time.Time{}, fmt.Errorf("cluster: login failed with result code %d", code)
	}

	return parseSession(body)
}

func parseSession(body []byte) ([]byte, time.Time, error) {
	var token []byte
	var expires time.Time

	off := wire.AdminHeaderSize
	for i := 0; i < wire.AdminFieldCount(body); i++ {
		if off+5 > len(body) {
			return nil, time.Time{}, fmt.Errorf("cluster: truncated login field %d", i)
		}
		sz := int(uint32(body[off])<<24 | uint32(body[off+1])<<16 |
			uint32(body[off+2])<<8 | uint32(body[off+3]))
		if sz < 1 || off+4+sz > len(body) {
			return nil, time.Time{}, fmt.Errorf("cluster: login field %d size %d exceeds body", i, sz)
		}
		id := body[off+4]
		data := body[off+5 : off+4+sz]
		switch int(id) {
		case wire.AdminFieldSessionToken:
			token = append([]byte(nil), data...)
		case wire.AdminFieldSessionTTL:
			if len(data) == 4 {
				ttl := uint32(data[0])<<24 | uint32(data[1])<<16 |
					uint32(data[2])<<8 | uint32(data[3])
				if ttl > 0 {
					// Refresh one minute early.
					expires = time.Now().Add(time.Duration(ttl)*time.Second - time.Minute)
				}
			}
		}
		off += 4 + sz
	}
	return token, expires, nil
}

// authenticate reuses a session token on a new connection.
func authenticate(conn *Conn, user string, token []byte, deadline time.Time) error {
	buf := wire.GetBuffer()
	defer buf.Release()

	wire.BeginAdmin(buf)
	fieldCount := 1
	if user != "" {
		wire.WriteAdminFieldString(buf, wire.AdminFieldUser, user)
		fieldCount = 2
	}
	wire.WriteAdminFieldBytes(buf, wire.AdminFieldSessionToken, token)
	wire.EndAdmin(buf, wire.AdminAuthenticate, fieldCount)

	if err := conn.Write(buf.Bytes(), deadline); err != nil {
		return err
	}
	_, body, err := conn.ReadProto(deadline)
	if err != nil {
		return err
	}
	code, err := wire.ParseAdminResult(body)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("cluster: authenticate failed with result code %d", code)
	}
	return nil
}
