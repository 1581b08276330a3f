// Package aero is the client surface: the cluster facade, the
// single-record command engine, batch, scan/query with a streaming
// Recordset, security administration and server task tracking.
package aero

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	"github.com/phamduclong/aerogo/pkg/query"
	"github.com/phamduclong/aerogo/pkg/value"
)

// Key addresses one record. The digest is computed once at
// construction and is the routing identity; namespace and user key
// ride along for display and send-key policies.
type Key struct {
	namespace string
	setName   string
	userKey   value.Value
	digest    [20]byte
}

// NewKey builds a key. Only integer, string and blob user keys are
// hashable.
func NewKey(namespace, set string, userKey interface{}) (*Key, error) {
	v := value.NewValue(userKey)
	digest, err := computeDigest(set, v)
	if err != nil {
		return nil, err
	}
	return &Key{namespace: namespace, setName: set, userKey: v, digest: digest}, nil
}

// NewKeyWithDigest builds a key from a precomputed digest, as used
// when resuming scans from a cursor.
func NewKeyWithDigest(namespace, set string, digest [20]byte) *Key {
	return &Key{namespace: namespace, setName: set, userKey: value.NilValue{}, digest: digest}
}

func (k *Key) Namespace() string  { return k.namespace }
func (k *Key) SetName() string    { return k.setName }
func (k *Key) Value() value.Value { return k.userKey }
func (k *Key) Digest() [20]byte   { return k.digest }

// PartitionID routes the key.
func (k *Key) PartitionID() int { return query.PartitionID(k.digest) }

func (k *Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.namespace, k.setName, k.userKey)
}

func (k *Key) Equals(other *Key) bool {
	return k.namespace == other.namespace && k.digest == other.digest
}

// computeDigest hashes set name, particle type byte and the canonical
// key bytes with RIPEMD-160.
func computeDigest(set string, v value.Value) ([20]byte, error) {
	var digest [20]byte
	keyBytes, err := keyBytes(v)
	if err != nil {
		return digest, err
	}
	h := ripemd160.New()
	h.Write([]byte(set))
	h.Write([]byte{byte(v.Type())})
	h.Write(keyBytes)
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

func keyBytes(v value.Value) ([]byte, error) {
	switch k := v.(type) {
	case value.IntValue:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(k))
		return b[:], nil
	case value.StringValue:
		return []byte(k), nil
	case value.BlobValue:
		return k, nil
	default:
		return nil, fmt.Errorf("aero: %T cannot be used as a key", v)
	}
}

// Bin is one named value in a record.
type Bin struct {
	Name  string
	Value value.Value
}

// NewBin wraps any supported Go value.
func NewBin(name string, v interface{}) Bin {
	return Bin{Name: name, Value: value.NewValue(v)}
}

// Record is the result of a read.
type Record struct {
	Key        *Key
	Bins       map[string]value.Value
	Generation uint32

	// Expiration is the raw server value: seconds until eviction
	// relative to the citrusleaf epoch, 0 for never.
	Expiration uint32
}
