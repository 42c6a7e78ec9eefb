package memview

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MemView represents a "view" on a collection of byte slices. Conceptually, you
// may think of it as a [][]byte, with helper methods to make it seem like one
// contiguous []byte. Bytes arriving from separate socket reads are appended as
// separate slices, so a TLS record split across TCP segments is never copied
// just to be looked at.
//
// Modifying a MemView does not change the underlying data. Instead, it simply
// changes the pointers to where to read data from.
//
// The zero value is an empty MemView ready to use.
type MemView struct {
	buf    [][]byte
	length int64
}

// The new MemView does NOT make a copy of data, so the caller MUST ensure that
// the underlying memory of data remains valid and unmodified after this call
// returns.
func New(data []byte) MemView {
	if len(data) == 0 {
		return MemView{}
	}
	return MemView{
		buf:    [][]byte{data},
		length: int64(len(data)),
	}
}

func (dst *MemView) Append(src MemView) {
	dst.buf = append(dst.buf, src.buf...)
	dst.length += src.length
}

func (mv *MemView) Clear() {
	mv.buf = mv.buf[:0]
	mv.length = 0
}

func (mv MemView) Len() int64 {
	return mv.length
}

// Returns the byte at the given index. Returns 0 if index is out of bounds.
func (mv MemView) GetByte(index int64) byte {
	if index < 0 {
		return 0
	}

	for _, b := range mv.buf {
		if index < int64(len(b)) {
			return b[index]
		}
		index -= int64(len(b))
	}
	return 0
}

// Returns mv[offset:offset+2] as a big-endian uint16. Returns 0 if the range is
// out of bounds.
func (mv MemView) GetUint16(offset int64) uint16 {
	b := mv.copyRange(offset, offset+2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// Returns mv[offset:offset+3] as a big-endian unsigned 24-bit integer. Returns
// 0 if the range is out of bounds.
func (mv MemView) GetUint24(offset int64) uint32 {
	b := mv.copyRange(offset, offset+3)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Returns a copy of mv[start:end], or nil if the range is invalid.
func (mv MemView) copyRange(start, end int64) []byte {
	if !(0 <= start && start <= end && end <= mv.length) {
		return nil
	}

	result := make([]byte, 0, end-start)
	for _, b := range mv.buf {
		if end <= 0 {
			break
		}
		lb := int64(len(b))
		if start >= lb {
			start -= lb
			end -= lb
			continue
		}
		stop := end
		if stop > lb {
			stop = lb
		}
		result = append(result, b[start:stop]...)
		start = 0
		end -= lb
	}
	return result
}

// Returns mv[start:end] (end is not inclusive). Returns an empty MemView if the
// range is invalid. The result shares storage with mv.
func (mv MemView) SubView(start, end int64) MemView {
	if start < 0 || start >= end || end > mv.length {
		return MemView{}
	}

	result := MemView{length: end - start}
	for _, b := range mv.buf {
		lb := int64(len(b))
		if start >= lb {
			start -= lb
			end -= lb
			continue
		}
		stop := end
		if stop > lb {
			stop = lb
		}
		result.buf = append(result.buf, b[start:stop])
		if end <= lb {
			break
		}
		start = 0
		end -= lb
	}
	return result
}

// Returns a contiguous copy of all the data referenced by this MemView.
func (mv MemView) Bytes() []byte {
	return mv.copyRange(0, mv.length)
}

// Returns a string of all the data referenced by this MemView. Note that this
// creates a COPY of the underlying data.
func (mv MemView) String() string {
	return string(mv.Bytes())
}

func (left MemView) Equal(right MemView) bool {
	return left.length == right.length && bytes.Equal(left.Bytes(), right.Bytes())
}

func (mv MemView) CreateReader() *MemViewReader {
	return &MemViewReader{mv: mv}
}

var ErrTruncate = errors.New("memview: field extends past end of view")

// MemViewReader reads sequentially from a MemView. Every read is bounds-checked:
// a read that finds no bytes at all returns io.EOF, and a read that finds fewer
// bytes than requested returns io.ErrUnexpectedEOF without advancing.
type MemViewReader struct {
	mv     MemView
	offset int64
}

var _ io.Reader = (*MemViewReader)(nil)

// Number of bytes not yet read.
func (r *MemViewReader) Remaining() int64 {
	return r.mv.length - r.offset
}

// Returns a view of the bytes not yet read, without advancing.
func (r *MemViewReader) Rest() MemView {
	return r.mv.SubView(r.offset, r.mv.length)
}

func (r *MemViewReader) take(n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if r.Remaining() == 0 {
		return nil, io.EOF
	}
	if n < 0 || n > r.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.mv.copyRange(r.offset, r.offset+n)
	r.offset += n
	return b, nil
}

func (r *MemViewReader) ReadByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *MemViewReader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *MemViewReader) ReadUint24() (uint32, error) {
	b, err := r.take(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// Reads exactly n bytes into a newly allocated slice.
func (r *MemViewReader) ReadBytes(n int) ([]byte, error) {
	return r.take(int64(n))
}

// Advances the reader by n bytes.
func (r *MemViewReader) Skip(n int64) error {
	if n < 0 || n > r.Remaining() {
		return ErrTruncate
	}
	r.offset += n
	return nil
}

// Returns a reader over the next n bytes and advances this reader past them.
func (r *MemViewReader) Truncate(n int64) (*MemViewReader, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.Wrapf(ErrTruncate, "need %d bytes, have %d", n, r.Remaining())
	}
	field := r.mv.SubView(r.offset, r.offset+n).CreateReader()
	r.offset += n
	return field, nil
}

// Returns a reader for a field whose length is given by the next byte. On
// success this reader is positioned after the field.
func (r *MemViewReader) ReadByteAndTruncate() (length uint8, fieldReader *MemViewReader, err error) {
	length, err = r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	fieldReader, err = r.Truncate(int64(length))
	return length, fieldReader, err
}

// Returns a reader for a field whose length is given by the next uint16. On
// success this reader is positioned after the field.
func (r *MemViewReader) ReadUint16AndTruncate() (length uint16, fieldReader *MemViewReader, err error) {
	length, err = r.ReadUint16()
	if err != nil {
		return 0, nil, err
	}
	fieldReader, err = r.Truncate(int64(length))
	return length, fieldReader, err
}

// Returns a reader for a field whose length is given by the next uint24. On
// success this reader is positioned after the field.
func (r *MemViewReader) ReadUint24AndTruncate() (length uint32, fieldReader *MemViewReader, err error) {
	length, err = r.ReadUint24()
	if err != nil {
		return 0, nil, err
	}
	fieldReader, err = r.Truncate(int64(length))
	return length, fieldReader, err
}

// If MemView has no data to return, err is io.EOF (unless len(out) is zero),
// otherwise it is nil. This behavior matches that of bytes.Buffer.
func (r *MemViewReader) Read(out []byte) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	if r.Remaining() == 0 {
		return 0, io.EOF
	}

	n := int64(len(out))
	if n > r.Remaining() {
		n = r.Remaining()
	}
	copy(out, r.mv.copyRange(r.offset, r.offset+n))
	r.offset += n
	return int(n), nil
}
