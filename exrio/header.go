package exrio

import (
	"fmt"
	"sort"

	"github.com/pixelworldai/alphaflatten/internal/xdr"
)

// LineOrder values
const (
	LineOrderIncreasing uint8 = 0
	LineOrderDecreasing uint8 = 1
	LineOrderRandom     uint8 = 2
)

// Attribute is a header attribute exrio does not interpret. Its value is
// kept as raw bytes and written back unchanged.
type Attribute struct {
	Name  string
	Type  string
	Value []byte
}

// Header holds the required attributes of a scanline part.
type Header struct {
	Channels           []Channel
	Compression        Compression
	DataWindow         Box2i
	DisplayWindow      Box2i
	LineOrder          uint8
	PixelAspectRatio   float32
	ScreenWindowCenter [2]float32
	ScreenWindowWidth  float32

	// Extra holds every other attribute in file order.
	Extra []Attribute
}

// NewHeader returns a header for a width x height image with no channels,
// ZIP compression and windows anchored at the origin.
func NewHeader(width, height int) *Header {
	box := Box2i{MaxX: int32(width) - 1, MaxY: int32(height) - 1}
	return &Header{
		Compression:       CompressionZIP,
		DataWindow:        box,
		DisplayWindow:     box,
		LineOrder:         LineOrderIncreasing,
		PixelAspectRatio:  1,
		ScreenWindowWidth: 1,
	}
}

// Width returns the data window width.
func (h *Header) Width() int {
	return h.DataWindow.Width()
}

// Height returns the data window height.
func (h *Header) Height() int {
	return h.DataWindow.Height()
}

// Channel looks up a channel by name.
func (h *Header) Channel(name string) (Channel, bool) {
	for _, ch := range h.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// Attribute returns the extra attribute called name.
func (h *Header) Attribute(name string) (Attribute, bool) {
	for _, a := range h.Extra {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// SetAttribute adds a, replacing any extra attribute with the same name.
// Required attributes cannot be set this way.
func (h *Header) SetAttribute(a Attribute) error {
	if isRequired(a.Name) {
		return fmt.Errorf("%w: %q is a required attribute", ErrInvalidHeader, a.Name)
	}
	for i := range h.Extra {
		if h.Extra[i].Name == a.Name {
			h.Extra[i] = a
			return nil
		}
	}
	h.Extra = append(h.Extra, a)
	return nil
}

func isRequired(name string) bool {
	switch name {
	case "channels", "compression", "dataWindow", "displayWindow", "lineOrder",
		"pixelAspectRatio", "screenWindowCenter", "screenWindowWidth":
		return true
	}
	return false
}

// AddChannel appends a full-resolution channel and keeps the list sorted.
func (h *Header) AddChannel(name string, pt PixelType) {
	h.Channels = append(h.Channels, Channel{Name: name, Type: pt, XSampling: 1, YSampling: 1})
	h.sortChannels()
}

func (h *Header) sortChannels() {
	sort.SliceStable(h.Channels, func(i, j int) bool {
		return h.Channels[i].Name < h.Channels[j].Name
	})
}

// bytesPerLine returns the size of one uncompressed scanline.
func (h *Header) bytesPerLine() int {
	n := 0
	for _, ch := range h.Channels {
		n += ch.Type.Size()
	}
	return n * h.Width()
}

// chunkCount returns the number of entries in the offset table.
func (h *Header) chunkCount() int {
	lines := h.Compression.LinesPerChunk()
	return (h.Height() + lines - 1) / lines
}

// Validate checks that h describes something exrio can read or write.
func (h *Header) Validate() error {
	if h.Width() <= 0 || h.Height() <= 0 {
		return fmt.Errorf("%w: empty data window %+v", ErrInvalidHeader, h.DataWindow)
	}
	if len(h.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidHeader)
	}
	if w, hh, n := h.Width(), h.Height(), len(h.Channels); w > MaxSamples/hh || w*hh > MaxSamples/n {
		return fmt.Errorf("%w: %dx%d with %d channels", ErrImageTooLarge, w, hh, n)
	}
	if !h.Compression.Supported() {
		return fmt.Errorf("%w: %s compression", ErrUnsupported, h.Compression)
	}
	seen := make(map[string]bool, len(h.Channels))
	for _, ch := range h.Channels {
		if ch.Name == "" || seen[ch.Name] {
			return fmt.Errorf("%w: bad channel name %q", ErrInvalidHeader, ch.Name)
		}
		seen[ch.Name] = true
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q has pixel type %d", ErrInvalidHeader, ch.Name, ch.Type)
		}
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return fmt.Errorf("%w: subsampled channel %q", ErrUnsupported, ch.Name)
		}
	}
	return nil
}

// readHeader parses the magic number, version field and attribute list.
func readHeader(r *xdr.Reader) (*Header, error) {
	magic, err := r.ReadUint32()
	if err != nil || magic != MagicNumber {
		return nil, ErrNotEXR
	}
	version, err := r.ReadUint32()
	if err != nil {
		return nil, ErrTruncated
	}
	if version&0xff != versionNumber {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, version&0xff)
	}
	switch {
	case version&flagTiled != 0:
		return nil, fmt.Errorf("%w: tiled image", ErrUnsupported)
	case version&flagNonImage != 0:
		return nil, fmt.Errorf("%w: deep data", ErrUnsupported)
	case version&flagMultiPart != 0:
		return nil, fmt.Errorf("%w: multi-part file", ErrUnsupported)
	}

	h := &Header{PixelAspectRatio: 1, ScreenWindowWidth: 1}
	required := map[string]bool{}
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, ErrTruncated
		}
		if name == "" {
			break
		}
		typ, err := r.ReadString()
		if err != nil {
			return nil, ErrTruncated
		}
		size, err := r.ReadInt32()
		if err != nil {
			return nil, ErrTruncated
		}
		value, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q", ErrTruncated, name)
		}
		known, err := h.setAttribute(name, typ, value)
		if err != nil {
			return nil, err
		}
		if known {
			required[name] = true
		} else {
			h.Extra = append(h.Extra, Attribute{Name: name, Type: typ, Value: append([]byte(nil), value...)})
		}
	}

	for _, name := range []string{"channels", "compression", "dataWindow", "displayWindow", "lineOrder"} {
		if !required[name] {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidHeader, name)
		}
	}
	return h, nil
}

// setAttribute decodes a required attribute into h. It reports false for
// attributes it does not know.
func (h *Header) setAttribute(name, typ string, value []byte) (bool, error) {
	r := xdr.NewReader(value)
	bad := func() (bool, error) {
		return false, fmt.Errorf("%w: malformed %q (%s)", ErrInvalidHeader, name, typ)
	}

	switch name {
	case "channels":
		if typ != "chlist" {
			return bad()
		}
		chans, err := readChannelList(r)
		if err != nil {
			return bad()
		}
		h.Channels = chans
	case "compression":
		v, err := r.ReadUint8()
		if typ != "compression" || err != nil {
			return bad()
		}
		h.Compression = Compression(v)
	case "dataWindow", "displayWindow":
		box, err := readBox2i(r)
		if typ != "box2i" || err != nil {
			return bad()
		}
		if name == "dataWindow" {
			h.DataWindow = box
		} else {
			h.DisplayWindow = box
		}
	case "lineOrder":
		v, err := r.ReadUint8()
		if typ != "lineOrder" || err != nil || v > LineOrderRandom {
			return bad()
		}
		h.LineOrder = v
	case "pixelAspectRatio", "screenWindowWidth":
		v, err := r.ReadFloat32()
		if typ != "float" || err != nil {
			return bad()
		}
		if name == "pixelAspectRatio" {
			h.PixelAspectRatio = v
		} else {
			h.ScreenWindowWidth = v
		}
	case "screenWindowCenter":
		x, err1 := r.ReadFloat32()
		y, err2 := r.ReadFloat32()
		if typ != "v2f" || err1 != nil || err2 != nil {
			return bad()
		}
		h.ScreenWindowCenter = [2]float32{x, y}
	default:
		return false, nil
	}
	return true, nil
}

func readChannelList(r *xdr.Reader) ([]Channel, error) {
	var chans []Channel
	for {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return chans, nil
		}
		var ch Channel
		ch.Name = name
		pt, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		ch.Type = PixelType(pt)
		linear, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		ch.Linear = linear != 0
		if err := r.Skip(3); err != nil {
			return nil, err
		}
		if ch.XSampling, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		if ch.YSampling, err = r.ReadInt32(); err != nil {
			return nil, err
		}
		chans = append(chans, ch)
	}
}

func readBox2i(r *xdr.Reader) (Box2i, error) {
	var v [4]int32
	for i := range v {
		x, err := r.ReadInt32()
		if err != nil {
			return Box2i{}, err
		}
		v[i] = x
	}
	return Box2i{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

// writeHeader writes the magic number, version field and attributes.
func (h *Header) writeHeader(w *xdr.BufferWriter) {
	version := uint32(versionNumber)
	if h.needsLongNames() {
		version |= flagLongNames
	}
	w.WriteUint32(MagicNumber)
	w.WriteUint32(version)

	chl := xdr.NewBufferWriter(len(h.Channels)*24 + 1)
	for _, ch := range h.Channels {
		chl.WriteString(ch.Name)
		chl.WriteInt32(int32(ch.Type))
		if ch.Linear {
			chl.WriteUint8(1)
		} else {
			chl.WriteUint8(0)
		}
		chl.WriteBytes([]byte{0, 0, 0})
		chl.WriteInt32(ch.XSampling)
		chl.WriteInt32(ch.YSampling)
	}
	chl.WriteUint8(0)
	writeAttribute(w, "channels", "chlist", chl.Bytes())

	writeAttribute(w, "compression", "compression", []byte{uint8(h.Compression)})
	writeAttribute(w, "dataWindow", "box2i", boxBytes(h.DataWindow))
	writeAttribute(w, "displayWindow", "box2i", boxBytes(h.DisplayWindow))
	writeAttribute(w, "lineOrder", "lineOrder", []byte{h.LineOrder})

	f := xdr.NewBufferWriter(4)
	f.WriteFloat32(h.PixelAspectRatio)
	writeAttribute(w, "pixelAspectRatio", "float", f.Bytes())

	v := xdr.NewBufferWriter(8)
	v.WriteFloat32(h.ScreenWindowCenter[0])
	v.WriteFloat32(h.ScreenWindowCenter[1])
	writeAttribute(w, "screenWindowCenter", "v2f", v.Bytes())

	f = xdr.NewBufferWriter(4)
	f.WriteFloat32(h.ScreenWindowWidth)
	writeAttribute(w, "screenWindowWidth", "float", f.Bytes())

	for _, a := range h.Extra {
		writeAttribute(w, a.Name, a.Type, a.Value)
	}
	w.WriteUint8(0)
}

func (h *Header) needsLongNames() bool {
	for _, ch := range h.Channels {
		if len(ch.Name) > shortNameLength {
			return true
		}
	}
	for _, a := range h.Extra {
		if len(a.Name) > shortNameLength || len(a.Type) > shortNameLength {
			return true
		}
	}
	return false
}

func writeAttribute(w *xdr.BufferWriter, name, typ string, value []byte) {
	w.WriteString(name)
	w.WriteString(typ)
	w.WriteInt32(int32(len(value)))
	w.WriteBytes(value)
}

func boxBytes(b Box2i) []byte {
	w := xdr.NewBufferWriter(16)
	w.WriteInt32(b.MinX)
	w.WriteInt32(b.MinY)
	w.WriteInt32(b.MaxX)
	w.WriteInt32(b.MaxY)
	return w.Bytes()
}
