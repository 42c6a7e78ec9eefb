package probe

import (
	"io"
	"time"

	"github.com/mel2oo/tlsprobe/mempool"
	"github.com/mel2oo/tlsprobe/memview"
)

// Reads that return neither data nor an error before we give up on the stream.
const maxEmptyReads = 100

type deadliner interface {
	SetReadDeadline(time.Time) error
}

// Pulls bytes from a stream into a pooled buffer of bounded size.
type recordReader struct {
	r   io.Reader
	buf mempool.Buffer

	timeout time.Duration

	// Error that arrived along with the last bytes read, returned by the next
	// read.
	err error
}

func newRecordReader(r io.Reader, buf mempool.Buffer, timeout time.Duration) *recordReader {
	return &recordReader{r: r, buf: buf, timeout: timeout}
}

// Sets a single deadline covering every read this reader will do. A stream
// without deadline support is left alone.
func (rr *recordReader) armDeadline() error {
	if d, ok := rr.r.(deadliner); ok && rr.timeout > 0 {
		return d.SetReadDeadline(time.Now().Add(rr.timeout))
	}
	return nil
}

// Performs one read from the stream and returns the bytes it added to the
// buffer. End of stream is reported as io.EOF with no bytes.
func (rr *recordReader) read() (memview.MemView, error) {
	if rr.err != nil {
		return memview.MemView{}, rr.err
	}

	before := rr.buf.Len()
	for attempt := 0; attempt < maxEmptyReads; attempt++ {
		n, err := rr.buf.ReadOnce(rr.r)
		if n > 0 {
			rr.err = err
			return rr.buf.Bytes().SubView(int64(before), int64(rr.buf.Len())), nil
		}
		if err != nil {
			return memview.MemView{}, err
		}
	}
	return memview.MemView{}, io.ErrNoProgress
}

func (rr *recordReader) release() {
	rr.buf.Release()
}
