// Package bcrypt hashes passwords for the security subprotocol. The
// server compares hashes byte for byte, so every client must derive
// them with the same fixed salt and cost.
package bcrypt

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

const (
	// FixedSalt is the cluster-wide salt; 2a scheme, cost 10.
	FixedSalt = "$2a$10$7EqJtq98hPqEX7fNZaFWoO"

	cost          = 10
	encodedLength = 22
	rawHashLength = 23
)

const alphabet = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var bcEncoding = base64.NewEncoding(alphabet)

var magicCipherData = []byte("OrpheanBeholderScryDoubt")

// Hash derives the server-comparable hash of password, including the
// "$2a$10$<salt>" prefix.
func Hash(password string) (string, error) {
	salt := FixedSalt[len(FixedSalt)-encodedLength:]
	sum, err := crypt([]byte(password), cost, []byte(salt))
	if err != nil {
		return "", err
	}
	return FixedSalt + string(sum), nil
}

func crypt(password []byte, cost uint, salt []byte) ([]byte, error) {
	cipherData := make([]byte, len(magicCipherData))
	copy(cipherData, magicCipherData)

	c, err := setup(password, cost, salt)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(cipherData); i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(cipherData[i:i+8], cipherData[i:i+8])
		}
	}
	return encodeBase64(cipherData[:rawHashLength]), nil
}

func setup(key []byte, cost uint, salt []byte) (*blowfish.Cipher, error) {
	csalt, err := decodeBase64(salt)
	if err != nil {
		return nil, err
	}

	// The key is NUL-terminated before key schedule expansion.
	ckey := append(key[:len(key):len(key)], 0)

	c, err := blowfish.NewSaltedCipher(ckey, csalt)
	if err != nil {
		return nil, err
	}
	rounds := uint64(1) << cost
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(ckey, c)
		blowfish.ExpandKey(csalt, c)
	}
	return c, nil
}

func encodeBase64(src []byte) []byte {
	n := bcEncoding.EncodedLen(len(src))
	dst := make([]byte, n)
	bcEncoding.Encode(dst, src)
	for n > 0 && dst[n-1] == '=' {
		n--
	}
	return dst[:n]
}

func decodeBase64(src []byte) ([]byte, error) {
	padded := make([]byte, len(src), len(src)+4)
	copy(padded, src)
	for len(padded)%4 != 0 {
		padded = append(padded, '=')
	}
	dst := make([]byte, bcEncoding.DecodedLen(len(padded)))
	n, err := bcEncoding.Decode(dst, padded)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: bad salt: %w", err)
	}
	return dst[:n], nil
}
