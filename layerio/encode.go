package layerio

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/exrmeta"
	"github.com/pixelworldai/alphaflatten/flatten"
)

// first returns the dimensions of the first image of a [N, H, W, C] or
// [H, W, C] tensor together with its samples.
func first(t *flatten.Tensor) (h, w, c int, data []float32, err error) {
	switch t.Rank() {
	case 3:
		h, w, c = t.Dim(0), t.Dim(1), t.Dim(2)
	case 4:
		if t.Dim(0) < 1 {
			return 0, 0, 0, nil, fmt.Errorf("%w: empty batch", flatten.ErrNoLayers)
		}
		h, w, c = t.Dim(1), t.Dim(2), t.Dim(3)
	default:
		return 0, 0, 0, nil, &flatten.ShapeError{Reason: flatten.ReasonRank, Shape: t.Shape, Len: t.Len()}
	}
	if c < 3 {
		return 0, 0, 0, nil, fmt.Errorf("%w: shape %v", ErrChannels, t.Shape)
	}
	n := h * w * c
	if len(t.Data) < n {
		return 0, 0, 0, nil, &flatten.ShapeError{Reason: flatten.ReasonData, Shape: t.Shape, Len: t.Len()}
	}
	return h, w, c, t.Data[:n], nil
}

func to16(v float32) uint16 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 0xffff
	default:
		return uint16(v*0xffff + 0.5)
	}
}

// EncodeImage converts the first image of t to 16-bit straight-alpha
// pixels, clamping to [0, 1]. Three-channel images get alpha 1.
func EncodeImage(t *flatten.Tensor) (*image.NRGBA64, error) {
	h, w, c, data, err := first(t)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for p := 0; p < w*h; p++ {
		px := data[p*c : p*c+c]
		o := img.Pix[p*8 : p*8+8]
		for i := 0; i < 4; i++ {
			v := uint16(0xffff)
			if i < 3 || c > 3 {
				v = to16(px[i])
			}
			o[2*i] = uint8(v >> 8)
			o[2*i+1] = uint8(v)
		}
	}
	return img, nil
}

// Saver writes flattened results to disk.
type Saver struct {
	// Logger receives one info entry per written file. nil discards it.
	Logger logrus.FieldLogger

	// PixelType and Compression apply to EXR output. PixelType must be
	// half or float.
	PixelType   exrio.PixelType
	Compression exrio.Compression

	// Owner and Comments are stamped on EXR output when set, together
	// with the capture date.
	Owner    string
	Comments string
}

// DefaultSaver returns a Saver writing ZIP-compressed half EXR files.
func DefaultSaver() *Saver {
	return &Saver{
		PixelType:   exrio.PixelTypeHalf,
		Compression: exrio.CompressionZIP,
	}
}

// Save writes the first image of t to path in the format named by its
// extension: .exr keeps values unclamped, .png and .tif/.tiff are 16-bit.
func (s *Saver) Save(path string, t *flatten.Tensor) error {
	format := FormatOf(path)
	var write func(io.Writer) error
	switch format {
	case FormatEXR:
		img, err := s.exrImage(t)
		if err != nil {
			return err
		}
		write = func(w io.Writer) error { return exrio.Encode(w, img) }
	case FormatPNG, FormatTIFF:
		img, err := EncodeImage(t)
		if err != nil {
			return err
		}
		if format == FormatPNG {
			write = func(w io.Writer) error { return png.Encode(w, img) }
		} else {
			write = func(w io.Writer) error {
				return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if err := writeFile(path, write); err != nil {
		return fmt.Errorf("layerio: write %s: %w", path, err)
	}

	logger := s.Logger
	if logger == nil {
		logger = silent
	}
	fields := logrus.Fields{
		"event":  "output_written",
		"path":   path,
		"format": string(format),
	}
	if format == FormatEXR {
		fields["pixel_type"] = s.PixelType.String()
		fields["compression"] = s.Compression.String()
	}
	logger.WithFields(fields).Info("Wrote flattened image")
	return nil
}

func (s *Saver) exrImage(t *flatten.Tensor) (*exrio.Image, error) {
	if s.PixelType != exrio.PixelTypeHalf && s.PixelType != exrio.PixelTypeFloat {
		return nil, fmt.Errorf("%w: %s EXR output", ErrUnsupportedFormat, s.PixelType)
	}
	h, w, c, data, err := first(t)
	if err != nil {
		return nil, err
	}
	if c > 4 {
		packed := make([]float32, 0, w*h*4)
		for p := 0; p < w*h; p++ {
			packed = append(packed, data[p*c:p*c+4]...)
		}
		data, c = packed, 4
	}
	img, err := exrio.NewRGBAImage(w, h, c, s.PixelType, data)
	if err != nil {
		return nil, err
	}
	img.Header.Compression = s.Compression
	if s.Owner != "" {
		exrmeta.SetOwner(img.Header, s.Owner)
	}
	if s.Comments != "" {
		exrmeta.SetComments(img.Header, s.Comments)
	}
	exrmeta.SetCapDate(img.Header, time.Now())
	return img, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
