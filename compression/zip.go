package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// Codec errors
var (
	ErrCorrupted    = errors.New("compression: corrupted data")
	ErrSizeMismatch = errors.New("compression: decompressed size mismatch")
)

type zlibWriter struct {
	w   *zlib.Writer
	buf bytes.Buffer
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		zw := &zlibWriter{}
		zw.w, _ = zlib.NewWriterLevel(&zw.buf, zlib.DefaultCompression)
		return zw
	},
}

type zlibReader struct {
	r   io.ReadCloser
	src bytes.Reader
}

var zlibReaderPool = sync.Pool{
	New: func() any {
		return &zlibReader{}
	},
}

// ZIPCompress encodes a chunk with the OpenEXR ZIP codec: byte reordering,
// delta prediction and zlib deflate.
func ZIPCompress(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	encoded := encodeBytes(raw)

	zw := zlibWriterPool.Get().(*zlibWriter)
	defer zlibWriterPool.Put(zw)
	zw.buf.Reset()
	zw.w.Reset(&zw.buf)

	if _, err := zw.w.Write(encoded); err != nil {
		return nil, err
	}
	if err := zw.w.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(zw.buf.Bytes()), nil
}

// ZIPDecompress decodes a ZIP chunk whose uncompressed size is size.
func ZIPDecompress(src []byte, size int) ([]byte, error) {
	if len(src) == 0 {
		if size != 0 {
			return nil, ErrCorrupted
		}
		return nil, nil
	}

	zr := zlibReaderPool.Get().(*zlibReader)
	defer zlibReaderPool.Put(zr)
	zr.src.Reset(src)

	var err error
	if zr.r == nil {
		zr.r, err = zlib.NewReader(&zr.src)
	} else {
		err = zr.r.(zlib.Resetter).Reset(&zr.src, nil)
	}
	if err != nil {
		zr.r = nil
		return nil, ErrCorrupted
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(zr.r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrSizeMismatch
		}
		return nil, ErrCorrupted
	}
	// Any data left over means the chunk was larger than advertised.
	var one [1]byte
	n, err := zr.r.Read(one[:])
	if n != 0 {
		return nil, ErrSizeMismatch
	}
	if err != nil && err != io.EOF {
		return nil, ErrCorrupted
	}

	out := make([]byte, size)
	decodeBytes(out, buf)
	return out, nil
}
