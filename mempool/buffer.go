package mempool

import (
	"errors"
	"io"

	"github.com/mel2oo/tlsprobe/memview"
)

// Controls whether representation invariants are checked in buffer.repOk. When
// enabled, a panic occurs when an invariant is found to be violated.
var CheckInvariants = false

// A variable-sized buffer whose backing storage is drawn from a fixed-sized
// pool. Clients must return the backing storage to the pool by calling Release.
type Buffer interface {
	// Returns a MemView of length Len() that holds the buffered bytes. Bytes are
	// only ever appended, so a MemView obtained earlier stays valid (and keeps
	// its length) until Release.
	Bytes() memview.MemView

	// Returns the number of buffered bytes.
	Len() int

	// Empties the buffer and returns its underlying storage to the pool.
	Release()

	// Performs a single Read from r into the free space at the end of the
	// buffer, obtaining one more chunk from the pool if the last chunk is full.
	// Returns the number of bytes read and the reader's error, if any.
	//
	// ErrBufferLimit is returned, without reading, if the buffer already holds
	// its limit. ErrEmptyPool is returned, without reading, if a chunk is needed
	// but the pool is empty.
	ReadOnce(r io.Reader) (int, error)

	// Write(p) appends the contents of p, obtaining additional storage from the
	// pool as needed. Stops early with ErrBufferLimit or ErrEmptyPool.
	io.Writer
}

var ErrEmptyPool = errors.New("mempool.Buffer: pool is empty")
var ErrBufferLimit = errors.New("mempool.Buffer: buffer limit reached")
var errNegativeRead = errors.New("mempool.Buffer: reader returned negative count from Read")

type buffer struct {
	pool bufferPool

	// Maximum number of bytes this buffer may hold; <= 0 means unlimited.
	limit_bytes int

	// Contents of the buffer start at chunks[0][0] (inclusive) and end at
	// chunks[len(chunks)-1][writeOffset] (exclusive).
	//
	// Invariants, checked by repOk:
	//   - all elements have length and capacity pool.chunkSize_bytes.
	chunks [][]byte

	// Invariants, checked by repOk:
	//   - writeOffset == 0 when len(chunks) == 0.
	//   - 0 < writeOffset <= pool.chunkSize_bytes when len(chunks) > 0.
	writeOffset int
}

func newBuffer(pool bufferPool, limit_bytes int) Buffer {
	return &buffer{
		pool:        pool,
		limit_bytes: limit_bytes,
	}
}

var _ Buffer = (*buffer)(nil)

// Checks representation invariants. Panics if any invariant is broken.
func (buf *buffer) repOk() {
	if !CheckInvariants {
		return
	}

	assert := func(b bool) {
		if !b {
			panic("broken invariant")
		}
	}

	for _, chunk := range buf.chunks {
		assert(len(chunk) == buf.pool.chunkSize_bytes)
		assert(cap(chunk) == buf.pool.chunkSize_bytes)
	}

	if len(buf.chunks) == 0 {
		assert(buf.writeOffset == 0)
	} else {
		assert(0 < buf.writeOffset && buf.writeOffset <= buf.pool.chunkSize_bytes)
	}

	if buf.limit_bytes > 0 {
		assert(buf.Len() <= buf.limit_bytes)
	}
}

func (buf *buffer) Bytes() memview.MemView {
	result := memview.MemView{}
	for idx, chunk := range buf.chunks {
		if idx == len(buf.chunks)-1 {
			chunk = chunk[:buf.writeOffset]
		}
		result.Append(memview.New(chunk))
	}
	return result
}

func (buf *buffer) Len() int {
	if len(buf.chunks) == 0 {
		return 0
	}
	return (len(buf.chunks)-1)*buf.pool.chunkSize_bytes + buf.writeOffset
}

func (buf *buffer) Release() {
	if buf == nil {
		return
	}

	buf.repOk()

	buf.pool.release(buf.chunks)
	buf.chunks = nil
	buf.writeOffset = 0

	buf.repOk()
}

// Returns the writable tail of the buffer, obtaining a fresh chunk if the last
// one is full. The returned slice is clipped to the buffer's limit.
func (buf *buffer) tail() ([]byte, error) {
	room := -1
	if buf.limit_bytes > 0 {
		room = buf.limit_bytes - buf.Len()
		if room <= 0 {
			return nil, ErrBufferLimit
		}
	}

	if len(buf.chunks) == 0 || buf.writeOffset == buf.pool.chunkSize_bytes {
		chunk := buf.pool.getChunk()
		if chunk == nil {
			return nil, ErrEmptyPool
		}
		buf.chunks = append(buf.chunks, chunk)
		buf.writeOffset = 0
	}

	tail := buf.chunks[len(buf.chunks)-1][buf.writeOffset:]
	if room >= 0 && len(tail) > room {
		tail = tail[:room]
	}
	return tail, nil
}

// Gives back a chunk obtained by tail() that nothing was written into.
func (buf *buffer) dropEmptyTail() {
	if n := len(buf.chunks); n > 0 && buf.writeOffset == 0 {
		buf.pool.release(buf.chunks[n-1:])
		buf.chunks = buf.chunks[:n-1]
		if len(buf.chunks) > 0 {
			buf.writeOffset = buf.pool.chunkSize_bytes
		}
	}
}

func (buf *buffer) ReadOnce(r io.Reader) (int, error) {
	defer buf.repOk()

	tail, err := buf.tail()
	if err != nil {
		return 0, err
	}

	n, err := r.Read(tail)
	if n < 0 {
		panic(errNegativeRead)
	}
	buf.writeOffset += n
	buf.dropEmptyTail()
	return n, err
}

func (buf *buffer) Write(p []byte) (n int, err error) {
	defer buf.repOk()

	for n < len(p) {
		tail, err := buf.tail()
		if err != nil {
			return n, err
		}
		copied := copy(tail, p[n:])
		buf.writeOffset += copied
		n += copied
	}
	return n, nil
}
