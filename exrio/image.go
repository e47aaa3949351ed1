package exrio

import (
	"fmt"
	"sort"
	"strings"
)

// Image is a decoded scanline part. Every channel is held as a plane of
// Width*Height float32 values in row-major order, whatever its storage
// type in the file.
type Image struct {
	Header *Header
	planes map[string][]float32
}

// NewImage allocates zeroed planes for every channel in h.
func NewImage(h *Header) *Image {
	img := &Image{Header: h, planes: make(map[string][]float32, len(h.Channels))}
	n := h.Width() * h.Height()
	if n < 0 {
		n = 0
	}
	for _, ch := range h.Channels {
		img.planes[ch.Name] = make([]float32, n)
	}
	return img
}

// Width returns the image width in pixels.
func (img *Image) Width() int { return img.Header.Width() }

// Height returns the image height in pixels.
func (img *Image) Height() int { return img.Header.Height() }

// Plane returns the samples of the named channel, or nil.
func (img *Image) Plane(name string) []float32 {
	return img.planes[name]
}

// rgbaSuffixes are the channel names that make up one RGBA layer.
var rgbaSuffixes = [4]string{"R", "G", "B", "A"}

// rootAliases are accepted for the unnamed layer.
var rootAliases = [4][]string{
	{"R", "r", "red", "Red"},
	{"G", "g", "green", "Green"},
	{"B", "b", "blue", "Blue"},
	{"A", "a", "alpha", "Alpha"},
}

// Layers returns the names of the layers that carry colour or alpha
// channels, sorted. The unnamed root layer is reported as "".
func (img *Image) Layers() []string {
	return img.Header.Layers()
}

// Layers lists the RGBA layers named by the channel list.
func (h *Header) Layers() []string {
	set := map[string]bool{}
	for _, ch := range h.Channels {
		prefix, suffix := splitChannelName(ch.Name)
		if prefix == "" {
			for _, aliases := range rootAliases {
				for _, a := range aliases {
					if suffix == a {
						set[""] = true
					}
				}
			}
			continue
		}
		for _, s := range rgbaSuffixes {
			if suffix == s {
				set[prefix] = true
			}
		}
	}
	layers := make([]string, 0, len(set))
	for l := range set {
		layers = append(layers, l)
	}
	sort.Strings(layers)
	return layers
}

// splitChannelName splits "fg.diffuse.R" into "fg.diffuse" and "R".
func splitChannelName(name string) (string, string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// findPlane returns the plane for component i (0..3) of layer.
func (img *Image) findPlane(layer string, i int) []float32 {
	if layer != "" {
		return img.planes[layer+"."+rgbaSuffixes[i]]
	}
	for _, name := range rootAliases[i] {
		if p, ok := img.planes[name]; ok {
			return p
		}
	}
	return nil
}

// RGBA returns layer as interleaved straight-alpha RGBA samples. Missing
// colour channels read as 0 and a missing alpha channel reads as 1. It
// returns ErrLayerNotFound when the layer has none of the four channels.
func (img *Image) RGBA(layer string) ([]float32, error) {
	var planes [4][]float32
	found := false
	for i := range planes {
		planes[i] = img.findPlane(layer, i)
		found = found || planes[i] != nil
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, layer)
	}

	n := img.Width() * img.Height()
	pix := make([]float32, 4*n)
	for i, p := range planes {
		if p == nil {
			if i == 3 {
				for j := 0; j < n; j++ {
					pix[4*j+3] = 1
				}
			}
			continue
		}
		for j := 0; j < n; j++ {
			pix[4*j+i] = p[j]
		}
	}
	return pix, nil
}

// NewRGBAImage builds an image from interleaved samples with channels
// values per pixel. channels must be 3 (R, G, B) or 4 (R, G, B, A).
func NewRGBAImage(width, height, channels int, pt PixelType, pix []float32) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidImage, width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidImage, channels)
	}
	if pt.Size() == 0 {
		return nil, fmt.Errorf("%w: pixel type %d", ErrInvalidImage, pt)
	}
	n := width * height
	if len(pix) != n*channels {
		return nil, fmt.Errorf("%w: %d samples for %dx%dx%d", ErrInvalidImage, len(pix), width, height, channels)
	}

	h := NewHeader(width, height)
	for c := 0; c < channels; c++ {
		h.AddChannel(rgbaSuffixes[c], pt)
	}
	img := NewImage(h)
	for c := 0; c < channels; c++ {
		plane := img.planes[rgbaSuffixes[c]]
		for j := 0; j < n; j++ {
			plane[j] = pix[j*channels+c]
		}
	}
	return img, nil
}
