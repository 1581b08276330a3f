package wire

import (
	"encoding/binary"
	"sync"
)

// DefaultBufferSize is the initial capacity of pooled command buffers.
const DefaultBufferSize = 16 * 1024

// BufferReclaimThreshold caps how large a pooled buffer may grow before
// it is dropped instead of returned to the pool.
const BufferReclaimThreshold = 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &Buffer{data: make([]byte, 0, DefaultBufferSize)}
	},
}

// Buffer is an append-only big-endian scratch buffer for building and
// parsing protocol messages. Not safe for concurrent use.
type Buffer struct {
	data []byte
}

// GetBuffer takes a buffer from the pool.
func GetBuffer() *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.data = b.data[:0]
	return b
}

// Release returns the buffer to the pool unless it grew past the
// reclaim threshold.
func (b *Buffer) Release() {
	if cap(b.data) > BufferReclaimThreshold {
		return
	}
	bufferPool.Put(b)
}

func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) WriteUint8(v byte)    { b.data = append(b.data, v) }
func (b *Buffer) WriteBytes(p []byte)  { b.data = append(b.data, p...) }
func (b *Buffer) WriteString(s string) { b.data = append(b.data, s...) }

func (b *Buffer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.data = append(b.data, tmp[:]...)
}

func (b *Buffer) WriteInt64(v int64) { b.WriteUint64(uint64(v)) }

// Skip appends n zero bytes and returns the offset where they begin,
// for headers patched after the body size is known.
func (b *Buffer) Skip(n int) int {
	off := len(b.data)
	for i := 0; i < n; i++ {
		b.data = append(b.data, 0)
	}
	return off
}

func (b *Buffer) PutByteAt(off int, v byte) { b.data[off] = v }

func (b *Buffer) PutUint16At(off int, v uint16) {
	binary.BigEndian.PutUint16(b.data[off:], v)
}

func (b *Buffer) PutUint32At(off int, v uint32) {
	binary.BigEndian.PutUint32(b.data[off:], v)
}

func (b *Buffer) PutUint64At(off int, v uint64) {
	binary.BigEndian.PutUint64(b.data[off:], v)
}
