// Package exrmeta reads and writes the standard OpenEXR production
// attributes that alphaflatten stamps on its output.
//
//	h := exrio.NewHeader(1920, 1080)
//	exrmeta.SetOwner(h, "comp")
//	exrmeta.SetCapDate(h, time.Now())
package exrmeta

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pixelworldai/alphaflatten/exrio"
)

// Standard attribute names
const (
	AttrOwner     = "owner"
	AttrComments  = "comments"
	AttrCapDate   = "capDate"
	AttrUTCOffset = "utcOffset"
)

// capDateLayout is the "YYYY:MM:DD hh:mm:ss" form OpenEXR prescribes.
const capDateLayout = "2006:01:02 15:04:05"

// SetString sets a string attribute.
func SetString(h *exrio.Header, name, value string) error {
	return h.SetAttribute(exrio.Attribute{Name: name, Type: "string", Value: []byte(value)})
}

// String returns a string attribute, or "" if it is missing or has
// another type.
func String(h *exrio.Header, name string) string {
	a, ok := h.Attribute(name)
	if !ok || a.Type != "string" {
		return ""
	}
	return string(a.Value)
}

// SetFloat sets a float attribute.
func SetFloat(h *exrio.Header, name string, v float32) error {
	b := binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
	return h.SetAttribute(exrio.Attribute{Name: name, Type: "float", Value: b})
}

// Float returns a float attribute.
func Float(h *exrio.Header, name string) (float32, bool) {
	a, ok := h.Attribute(name)
	if !ok || a.Type != "float" || len(a.Value) != 4 {
		return 0, false
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(a.Value)), true
}

// SetOwner sets the name of the file's creator.
func SetOwner(h *exrio.Header, owner string) {
	_ = SetString(h, AttrOwner, owner)
}

// Owner returns the file owner, or "".
func Owner(h *exrio.Header) string {
	return String(h, AttrOwner)
}

// SetComments sets the free-form description.
func SetComments(h *exrio.Header, comments string) {
	_ = SetString(h, AttrComments, comments)
}

// Comments returns the description, or "".
func Comments(h *exrio.Header) string {
	return String(h, AttrComments)
}

// SetCapDate stores t as local capture time plus its UTC offset.
func SetCapDate(h *exrio.Header, t time.Time) {
	_, offset := t.Zone()
	_ = SetString(h, AttrCapDate, t.Format(capDateLayout))
	// utcOffset is UTC minus local time.
	_ = SetFloat(h, AttrUTCOffset, float32(-offset))
}

// CapDate returns the capture time. Without a utcOffset attribute the
// time is taken as UTC.
func CapDate(h *exrio.Header) (time.Time, bool) {
	s := String(h, AttrCapDate)
	if s == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if off, ok := Float(h, AttrUTCOffset); ok && off != 0 {
		loc = time.FixedZone("", -int(off))
	}
	t, err := time.ParseInLocation(capDateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
