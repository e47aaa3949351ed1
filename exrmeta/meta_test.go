package exrmeta

import (
	"bytes"
	"testing"
	"time"

	"github.com/pixelworldai/alphaflatten/exrio"
)

func TestProductionMetadata(t *testing.T) {
	h := exrio.NewHeader(100, 100)

	SetOwner(h, "Test Studio")
	if got := Owner(h); got != "Test Studio" {
		t.Errorf("Owner() = %q, want %q", got, "Test Studio")
	}

	SetComments(h, "first")
	SetComments(h, "3 layers over white")
	if got := Comments(h); got != "3 layers over white" {
		t.Errorf("Comments() = %q, want %q", got, "3 layers over white")
	}
	if len(h.Extra) != 2 {
		t.Errorf("len(Extra) = %d, want 2", len(h.Extra))
	}
}

func TestCapDate(t *testing.T) {
	h := exrio.NewHeader(1, 1)
	if _, ok := CapDate(h); ok {
		t.Error("CapDate() reported a date on a fresh header")
	}

	pst := time.FixedZone("PST", -8*3600)
	want := time.Date(2026, 1, 5, 10, 30, 0, 0, pst)
	SetCapDate(h, want)

	if got := String(h, AttrCapDate); got != "2026:01:05 10:30:00" {
		t.Errorf("capDate = %q", got)
	}
	if off, ok := Float(h, AttrUTCOffset); !ok || off != 28800 {
		t.Errorf("utcOffset = %v, %v, want 28800", off, ok)
	}
	got, ok := CapDate(h)
	if !ok || !got.Equal(want) {
		t.Errorf("CapDate() = %v, %v, want %v", got, ok, want)
	}
}

func TestSurvivesEncode(t *testing.T) {
	img, err := exrio.NewRGBAImage(1, 1, 4, exrio.PixelTypeHalf, []float32{1, 0, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	SetOwner(img.Header, "comp")
	var buf bytes.Buffer
	if err := exrio.Encode(&buf, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := exrio.ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if Owner(h) != "comp" {
		t.Errorf("Owner() = %q after round trip", Owner(h))
	}
}

func TestWrongType(t *testing.T) {
	h := exrio.NewHeader(1, 1)
	if err := SetFloat(h, AttrOwner, 1); err != nil {
		t.Fatal(err)
	}
	if Owner(h) != "" {
		t.Error("Owner() should ignore a float attribute")
	}
	if err := SetString(h, "dataWindow", "x"); err == nil {
		t.Error("expected an error when overriding a required attribute")
	}
}
