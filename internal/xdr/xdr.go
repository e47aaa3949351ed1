// Package xdr reads and writes the little-endian primitives used by the
// OpenEXR file layout.
package xdr

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read runs past the end of the data.
	ErrShortBuffer = errors.New("xdr: buffer too short")

	// ErrNegativeSize is returned when a size argument is negative.
	ErrNegativeSize = errors.New("xdr: negative size")

	// ErrUnterminated is returned when a null-terminated string has no
	// terminator before the end of the data.
	ErrUnterminated = errors.New("xdr: unterminated string")
)

// ByteOrder is the byte order of OpenEXR files.
var ByteOrder = binary.LittleEndian

// Reader decodes values from a byte slice, tracking its position.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Pos returns the current read offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Skip advances the read offset by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.next(n)
	return err
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n > r.Len() {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes returns the next n bytes. The result aliases the underlying data.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.next(n)
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint16(b), nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(b), nil
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(b), nil
}

// ReadFloat32 reads an IEEE 754 single-precision value.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadString reads a null-terminated string and consumes the terminator.
func (r *Reader) ReadString() (string, error) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", ErrUnterminated
}

// BufferWriter appends little-endian values to a growing buffer.
type BufferWriter struct {
	buf []byte
}

// NewBufferWriter returns a BufferWriter with the given initial capacity.
func NewBufferWriter(capacity int) *BufferWriter {
	return &BufferWriter{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written.
func (w *BufferWriter) Len() int {
	return len(w.buf)
}

// Bytes returns the written data. It is valid until the next write.
func (w *BufferWriter) Bytes() []byte {
	return w.buf
}

// WriteBytes appends b.
func (w *BufferWriter) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUint8 appends one byte.
func (w *BufferWriter) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteUint32 appends a little-endian uint32.
func (w *BufferWriter) WriteUint32(v uint32) {
	w.buf = ByteOrder.AppendUint32(w.buf, v)
}

// WriteInt32 appends a little-endian int32.
func (w *BufferWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteUint64 appends a little-endian uint64.
func (w *BufferWriter) WriteUint64(v uint64) {
	w.buf = ByteOrder.AppendUint64(w.buf, v)
}

// WriteFloat32 appends an IEEE 754 single-precision value.
func (w *BufferWriter) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteString appends s followed by a null terminator.
func (w *BufferWriter) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}
