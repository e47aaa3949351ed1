// Package layerio moves layers between image files and flatten tensors.
//
// Layers are decoded to straight-alpha float32 [H, W, 4] tensors. EXR
// files keep their full float range; 8 and 16 bit formats are scaled to
// [0, 1]. Results are written as 16-bit PNG, deflate TIFF or half/float
// EXR.
package layerio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrjoshuak/go-jpeg2000"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/flatten"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("layerio: unsupported format")
	ErrSizeMismatch      = errors.New("layerio: layer sizes differ")
	ErrLayerUnsupported  = errors.New("layerio: named layers need an EXR file")
	ErrChannels          = errors.New("layerio: need RGB or RGBA samples")
)

// DecodeError reports a file that could not be turned into a layer.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("layerio: decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Format names a file kind by its extension.
type Format string

// Formats
const (
	FormatEXR      Format = "exr"
	FormatJPEG2000 Format = "jpeg2000"
	FormatPNG      Format = "png"
	FormatTIFF     Format = "tiff"
	FormatOther    Format = "image"
)

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exr":
		return FormatEXR
	case ".jp2", ".j2k", ".j2c", ".jpc":
		return FormatJPEG2000
	case ".png":
		return FormatPNG
	case ".tif", ".tiff":
		return FormatTIFF
	default:
		return FormatOther
	}
}

// DecodeImage converts img to a straight-alpha [H, W, 4] tensor in [0, 1].
// Premultiplied sources are un-premultiplied; opaque sources get alpha 1.
func DecodeImage(img image.Image) *flatten.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := flatten.NewTensor(h, w, 4)
	dst := t.Data

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+4*w]
			for i, v := range row {
				dst[(y*w)*4+i] = float32(v) / 0xff
			}
		}
	case *image.NRGBA64:
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+8*w]
			for i := 0; i < 4*w; i++ {
				v := uint16(row[2*i])<<8 | uint16(row[2*i+1])
				dst[(y*w)*4+i] = float32(v) / 0xffff
			}
		}
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				dst[i+0] = float32(c.R) / 0xffff
				dst[i+1] = float32(c.G) / 0xffff
				dst[i+2] = float32(c.B) / 0xffff
				dst[i+3] = float32(c.A) / 0xffff
				i += 4
			}
		}
	}
	return t
}

// DecodeFile reads one layer from path. layer selects a channel prefix in
// an EXR file ("" is the root RGBA layer); other formats only accept "".
func DecodeFile(path, layer string) (*flatten.Tensor, error) {
	t, err := decodeFile(path, layer)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return t, nil
}

func decodeFile(path, layer string) (*flatten.Tensor, error) {
	format := FormatOf(path)
	if layer != "" && format != FormatEXR {
		return nil, fmt.Errorf("%w: %q", ErrLayerUnsupported, layer)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatEXR:
		return decodeEXR(f, layer)
	case FormatJPEG2000:
		img, err := jpeg2000.Decode(f)
		if err != nil {
			return nil, err
		}
		return DecodeImage(img), nil
	default:
		img, _, err := image.Decode(f)
		if err != nil {
			if errors.Is(err, image.ErrFormat) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
			}
			return nil, err
		}
		return DecodeImage(img), nil
	}
}

func decodeEXR(r io.Reader, layer string) (*flatten.Tensor, error) {
	img, err := exrio.Decode(r)
	if err != nil {
		return nil, err
	}
	pix, err := img.RGBA(layer)
	if err != nil {
		return nil, err
	}
	return flatten.FromData(pix, img.Height(), img.Width(), 4)
}
