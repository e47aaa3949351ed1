package exrio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pixelworldai/alphaflatten/compression"
	"github.com/pixelworldai/alphaflatten/half"
	"github.com/pixelworldai/alphaflatten/internal/xdr"
)

// ReadHeader reads and validates the header of an OpenEXR stream without
// decoding any pixels.
func ReadHeader(r io.Reader) (*Header, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(xdr.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Decode reads a complete single-part scanline image.
func Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	xr := xdr.NewReader(data)
	h, err := readHeader(xr)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	count := h.chunkCount()
	offsets := make([]uint64, count)
	for i := range offsets {
		if offsets[i], err = xr.ReadUint64(); err != nil {
			return nil, fmt.Errorf("%w: offset table", ErrTruncated)
		}
		if offsets[i] == 0 || offsets[i] >= uint64(len(data)) {
			return nil, fmt.Errorf("%w: chunk %d at offset %d", ErrTruncated, i, offsets[i])
		}
	}

	// Two chunks claiming the same rows would race on the planes.
	seen := make(map[int32]bool, count)
	for _, off := range offsets {
		if off+4 > uint64(len(data)) {
			return nil, ErrTruncated
		}
		y := int32(binary.LittleEndian.Uint32(data[off:]))
		if seen[y] {
			return nil, fmt.Errorf("%w: duplicate chunk at y=%d", ErrCorruptedChunk, y)
		}
		seen[y] = true
	}

	img := NewImage(h)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, off := range offsets {
		chunk := data[off:]
		g.Go(func() error {
			return img.readChunk(chunk)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// readChunk decodes one chunk. Chunks cover disjoint rows, so they can be
// decoded concurrently.
func (img *Image) readChunk(chunk []byte) error {
	h := img.Header
	r := xdr.NewReader(chunk)
	y, err := r.ReadInt32()
	if err != nil {
		return ErrTruncated
	}
	size, err := r.ReadInt32()
	if err != nil {
		return ErrTruncated
	}
	packed, err := r.ReadBytes(int(size))
	if err != nil {
		return fmt.Errorf("%w: chunk at y=%d", ErrTruncated, y)
	}

	lpc := h.Compression.LinesPerChunk()
	first := int(y) - int(h.DataWindow.MinY)
	if first < 0 || first >= h.Height() || first%lpc != 0 {
		return fmt.Errorf("%w: bad start line %d", ErrCorruptedChunk, y)
	}
	lines := min(lpc, h.Height()-first)
	rawSize := lines * h.bytesPerLine()

	raw, err := decompressChunk(h.Compression, packed, rawSize)
	if err != nil {
		return fmt.Errorf("%w at y=%d: %w", ErrCorruptedChunk, y, err)
	}

	width := h.Width()
	pos := 0
	for line := first; line < first+lines; line++ {
		for _, ch := range h.Channels {
			dst := img.planes[ch.Name][line*width : (line+1)*width]
			n := width * ch.Type.Size()
			unpackValues(dst, raw[pos:pos+n], ch.Type)
			pos += n
		}
	}
	return nil
}

func decompressChunk(c Compression, packed []byte, rawSize int) ([]byte, error) {
	// Writers store a chunk raw when compressing would not shrink it.
	if len(packed) == rawSize {
		return packed, nil
	}
	switch c {
	case CompressionRLE:
		return compression.RLEDecompress(packed, rawSize)
	case CompressionZIPS, CompressionZIP:
		return compression.ZIPDecompress(packed, rawSize)
	default:
		return nil, fmt.Errorf("%d bytes, want %d", len(packed), rawSize)
	}
}

func unpackValues(dst []float32, src []byte, pt PixelType) {
	switch pt {
	case PixelTypeHalf:
		half.Float32s(dst, src)
	case PixelTypeFloat:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	case PixelTypeUint:
		for i := range dst {
			dst[i] = float32(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}
}

func packValues(dst []byte, src []float32, pt PixelType) {
	switch pt {
	case PixelTypeHalf:
		half.PutFloat32s(dst, src)
	case PixelTypeFloat:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	case PixelTypeUint:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], toUint32(v))
		}
	}
}

func toUint32(v float32) uint32 {
	switch {
	case !(v > 0):
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}

// Encode writes img as a single-part scanline file. Channels are written
// in name order, chunks in increasing y.
func Encode(w io.Writer, img *Image) error {
	if img == nil || img.Header == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	h := *img.Header
	h.Channels = append([]Channel(nil), img.Header.Channels...)
	h.sortChannels()
	h.LineOrder = LineOrderIncreasing
	if err := h.Validate(); err != nil {
		return err
	}
	n := h.Width() * h.Height()
	for _, ch := range h.Channels {
		if len(img.planes[ch.Name]) != n {
			return fmt.Errorf("%w: channel %q has %d samples, want %d", ErrInvalidImage, ch.Name, len(img.planes[ch.Name]), n)
		}
	}

	count := h.chunkCount()
	chunks := make([][]byte, count)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range chunks {
		i := i
		g.Go(func() error {
			c, err := img.writeChunk(&h, i)
			chunks[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hw := xdr.NewBufferWriter(1024 + 8*count)
	h.writeHeader(hw)
	offset := uint64(hw.Len() + 8*count)
	for _, c := range chunks {
		hw.WriteUint64(offset)
		offset += uint64(len(c))
	}
	if _, err := w.Write(hw.Bytes()); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return err
		}
	}
	return nil
}

// writeChunk packs and compresses chunk i, including its y and size prefix.
func (img *Image) writeChunk(h *Header, i int) ([]byte, error) {
	lpc := h.Compression.LinesPerChunk()
	first := i * lpc
	lines := min(lpc, h.Height()-first)
	width := h.Width()

	raw := make([]byte, lines*h.bytesPerLine())
	pos := 0
	for line := first; line < first+lines; line++ {
		for _, ch := range h.Channels {
			n := width * ch.Type.Size()
			packValues(raw[pos:pos+n], img.planes[ch.Name][line*width:(line+1)*width], ch.Type)
			pos += n
		}
	}

	packed := raw
	switch h.Compression {
	case CompressionRLE:
		packed = compression.RLECompress(raw)
	case CompressionZIPS, CompressionZIP:
		var err error
		if packed, err = compression.ZIPCompress(raw); err != nil {
			return nil, err
		}
	}
	if len(packed) >= len(raw) {
		packed = raw
	}

	w := xdr.NewBufferWriter(8 + len(packed))
	w.WriteInt32(h.DataWindow.MinY + int32(first))
	w.WriteInt32(int32(len(packed)))
	w.WriteBytes(packed)
	return w.Bytes(), nil
}
