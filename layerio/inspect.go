package layerio

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/mrjoshuak/go-jpeg2000"

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/exrmeta"
)

// Info summarises a layer file without converting its pixels.
type Info struct {
	Path   string
	Format string
	Width  int
	Height int

	// EXR only, except Comments which JPEG 2000 files may carry too.
	Compression string
	Channels    []string
	Layers      []string
	Owner       string
	Comments    string
	CapDate     time.Time
}

// Inspect reads enough of path to describe it.
func Inspect(path string) (*Info, error) {
	info, err := inspect(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return info, nil
}

func inspect(path string) (*Info, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info := &Info{Path: path}
	switch FormatOf(path) {
	case FormatEXR:
		h, err := exrio.ReadHeader(f)
		if err != nil {
			return nil, err
		}
		info.Format = string(FormatEXR)
		info.Width, info.Height = h.Width(), h.Height()
		info.Compression = h.Compression.String()
		for _, ch := range h.Channels {
			info.Channels = append(info.Channels, fmt.Sprintf("%s (%s)", ch.Name, ch.Type))
		}
		info.Layers = h.Layers()
		info.Owner = exrmeta.Owner(h)
		info.Comments = exrmeta.Comments(h)
		info.CapDate, _ = exrmeta.CapDate(h)
	case FormatJPEG2000:
		m, err := jpeg2000.DecodeMetadata(f)
		if err != nil {
			return nil, err
		}
		info.Format = string(FormatJPEG2000)
		info.Width, info.Height = m.Width, m.Height
		info.Comments = m.Comment
	default:
		cfg, name, err := image.DecodeConfig(f)
		if err != nil {
			if errors.Is(err, image.ErrFormat) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
			}
			return nil, err
		}
		info.Format = name
		info.Width, info.Height = cfg.Width, cfg.Height
	}
	return info, nil
}
