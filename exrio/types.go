// Package exrio reads and writes single-part scanline OpenEXR files.
//
// It covers what a layer compositor needs: UINT, HALF and FLOAT channels at
// full resolution, stored uncompressed or with the RLE, ZIPS or ZIP codecs,
// and channel-name layers such as "fg.R", "fg.G", "fg.B", "fg.A". Tiled,
// deep, multi-part and subsampled files are rejected with ErrUnsupported.
package exrio

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrNotEXR         = errors.New("exrio: not an OpenEXR file")
	ErrUnsupported    = errors.New("exrio: unsupported OpenEXR feature")
	ErrTruncated      = errors.New("exrio: truncated file")
	ErrInvalidHeader  = errors.New("exrio: invalid header")
	ErrLayerNotFound  = errors.New("exrio: layer not found")
	ErrInvalidImage   = errors.New("exrio: invalid image")
	ErrCorruptedChunk = errors.New("exrio: corrupted chunk")
	ErrUnknownSetting = errors.New("exrio: unknown setting")
	ErrImageTooLarge  = errors.New("exrio: image too large")
)

// MagicNumber starts every OpenEXR file.
const MagicNumber = 20000630

// MaxSamples bounds width*height*channels of an image, which is decoded into
// one float32 per sample.
const MaxSamples = 1 << 28

// Version flags
const (
	versionNumber   = 2
	flagTiled       = 0x200
	flagLongNames   = 0x400
	flagNonImage    = 0x800
	flagMultiPart   = 0x1000
	shortNameLength = 31
)

// PixelType is the storage type of a channel.
type PixelType int32

// Pixel types
const (
	PixelTypeUint  PixelType = 0
	PixelTypeHalf  PixelType = 1
	PixelTypeFloat PixelType = 2
)

// Size returns the number of bytes per value.
func (p PixelType) Size() int {
	switch p {
	case PixelTypeHalf:
		return 2
	case PixelTypeUint, PixelTypeFloat:
		return 4
	default:
		return 0
	}
}

func (p PixelType) String() string {
	switch p {
	case PixelTypeUint:
		return "uint"
	case PixelTypeHalf:
		return "half"
	case PixelTypeFloat:
		return "float"
	default:
		return fmt.Sprintf("PixelType(%d)", int32(p))
	}
}

// ParsePixelType parses "uint", "half" or "float".
func ParsePixelType(s string) (PixelType, error) {
	switch strings.ToLower(s) {
	case "uint":
		return PixelTypeUint, nil
	case "half":
		return PixelTypeHalf, nil
	case "float":
		return PixelTypeFloat, nil
	}
	return 0, fmt.Errorf("%w: pixel type %q", ErrUnknownSetting, s)
}

// Compression identifies a chunk codec.
type Compression uint8

// Compression methods. Only None, RLE, ZIPS and ZIP can be read or written;
// the others are recognised so that errors can name them.
const (
	CompressionNone  Compression = 0
	CompressionRLE   Compression = 1
	CompressionZIPS  Compression = 2
	CompressionZIP   Compression = 3
	CompressionPIZ   Compression = 4
	CompressionPXR24 Compression = 5
	CompressionB44   Compression = 6
	CompressionB44A  Compression = 7
	CompressionDWAA  Compression = 8
	CompressionDWAB  Compression = 9
)

var compressionNames = []string{"none", "rle", "zips", "zip", "piz", "pxr24", "b44", "b44a", "dwaa", "dwab"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// Supported reports whether exrio can read and write c.
func (c Compression) Supported() bool {
	return c <= CompressionZIP
}

// LinesPerChunk returns the number of scanlines stored in one chunk.
func (c Compression) LinesPerChunk() int {
	switch c {
	case CompressionZIP, CompressionPXR24:
		return 16
	case CompressionPIZ, CompressionB44, CompressionB44A, CompressionDWAA:
		return 32
	case CompressionDWAB:
		return 256
	default:
		return 1
	}
}

// ParseCompression parses a supported compression name such as "zip".
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(s)
	for i, name := range compressionNames {
		if name == s && Compression(i).Supported() {
			return Compression(i), nil
		}
	}
	return 0, fmt.Errorf("%w: compression %q", ErrUnknownSetting, s)
}

// Box2i is an inclusive integer rectangle.
type Box2i struct {
	MinX, MinY, MaxX, MaxY int32
}

// Width returns the number of columns in the box.
func (b Box2i) Width() int {
	return int(b.MaxX) - int(b.MinX) + 1
}

// Height returns the number of rows in the box.
func (b Box2i) Height() int {
	return int(b.MaxY) - int(b.MinY) + 1
}

// Channel describes one channel of the channel list.
type Channel struct {
	Name      string
	Type      PixelType
	Linear    bool
	XSampling int32
	YSampling int32
}
