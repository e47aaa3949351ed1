package layerio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-jpeg2000"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/image/tiff"

	"github.com/pixelworldai/alphaflatten/exrio"
	"github.com/pixelworldai/alphaflatten/flatten"
)

const epsilon = 0.0001

func floatsEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < epsilon
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeImageNRGBA(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 51})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, B: 102, A: 255})

	got := DecodeImage(img)
	if got.Rank() != 3 || got.Dim(0) != 1 || got.Dim(1) != 2 || got.Dim(2) != 4 {
		t.Fatalf("shape = %v, want [1 2 4]", got.Shape)
	}
	want := []float32{1, 0, 0, 0.2, 0, 1, 0.4, 1}
	for i := range want {
		if !floatsEqual(got.Data[i], want[i]) {
			t.Errorf("Data[%d] = %v, want %v", i, got.Data[i], want[i])
		}
	}
}

func TestDecodeImageUnpremultiplies(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 128, G: 64, A: 128})
	img.SetRGBA(1, 0, color.RGBA{})

	got := DecodeImage(img)
	if !floatsEqual(got.Data[0], 1) || math.Abs(float64(got.Data[1]-0.5)) > 0.001 {
		t.Errorf("colour = %v, want straight (1, 0.5, 0)", got.Data[:3])
	}
	if math.Abs(float64(got.Data[3]-128.0/255)) > epsilon {
		t.Errorf("alpha = %v", got.Data[3])
	}
	for i := 4; i < 8; i++ {
		if got.Data[i] != 0 {
			t.Errorf("transparent pixel Data[%d] = %v, want 0", i, got.Data[i])
		}
	}
}

func TestDecodeImageOpaqueSources(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(2, 1, color.Gray{Y: 255})

	got := DecodeImage(img)
	for p := 0; p < 6; p++ {
		if got.Data[p*4+3] != 1 {
			t.Fatalf("alpha at pixel %d = %v, want 1", p, got.Data[p*4+3])
		}
	}
	if got.Data[5*4] != 1 || got.Data[0] != 0 {
		t.Errorf("gray values = %v", got.Data)
	}
}

func TestDecodeImageSubImage(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 4, 4))
	img.SetNRGBA64(2, 3, color.NRGBA64{R: 0xffff, A: 0x8000})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	got := DecodeImage(sub)
	if got.Dim(0) != 2 || got.Dim(1) != 2 {
		t.Fatalf("shape = %v, want [2 2 4]", got.Shape)
	}
	// (2,3) is the bottom-left pixel of the sub-image.
	px := got.Data[2*4 : 3*4]
	if px[0] != 1 || !floatsEqual(px[3], 0x8000/65535.0) {
		t.Errorf("pixel = %v", px)
	}
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "plate.png")
	writePNG(t, pngPath, solidNRGBA(4, 3, color.NRGBA{R: 255, G: 0, B: 0, A: 255}))

	tiffPath := filepath.Join(dir, "matte.tif")
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, solidNRGBA(4, 3, color.NRGBA{B: 255, A: 255}), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tiffPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	exrPath := filepath.Join(dir, "fx.exr")
	h := exrio.NewHeader(4, 3)
	for _, name := range []string{"R", "G", "B", "smoke.R", "smoke.G", "smoke.B", "smoke.A"} {
		h.AddChannel(name, exrio.PixelTypeFloat)
	}
	img := exrio.NewImage(h)
	for i := range img.Plane("smoke.R") {
		img.Plane("smoke.R")[i] = 2.5
		img.Plane("smoke.A")[i] = 0.25
	}
	buf.Reset()
	if err := exrio.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exrPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path, layer string
		pixel       [4]float32
	}{
		{pngPath, "", [4]float32{1, 0, 0, 1}},
		{tiffPath, "", [4]float32{0, 0, 1, 1}},
		{exrPath, "", [4]float32{0, 0, 0, 1}},
		{exrPath, "smoke", [4]float32{2.5, 0, 0, 0.25}},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path)+":"+tt.layer, func(t *testing.T) {
			got, err := DecodeFile(tt.path, tt.layer)
			if err != nil {
				t.Fatalf("DecodeFile: %v", err)
			}
			if got.Dim(0) != 3 || got.Dim(1) != 4 || got.Dim(2) != 4 {
				t.Fatalf("shape = %v, want [3 4 4]", got.Shape)
			}
			last := got.Data[len(got.Data)-4:]
			for i := range tt.pixel {
				if !floatsEqual(last[i], tt.pixel[i]) {
					t.Errorf("pixel = %v, want %v", last, tt.pixel)
					break
				}
			}
		})
	}
}

func TestDecodeFileJPEG2000(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range src.Pix {
		src.Pix[i] = uint8(i % 251)
	}
	var buf bytes.Buffer
	opts := &jpeg2000.Options{Format: jpeg2000.FormatJ2K, Lossless: true}
	if err := jpeg2000.Encode(&buf, src, opts); err != nil {
		t.Fatalf("jpeg2000.Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "gray.j2k")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DecodeFile(path, "")
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.Dim(0) != 32 || got.Dim(1) != 32 {
		t.Fatalf("shape = %v, want [32 32 4]", got.Shape)
	}
	if got.Data[3] != 1 {
		t.Errorf("alpha = %v, want 1", got.Data[3])
	}
}

func TestDecodeFileErrors(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "a.png")
	writePNG(t, pngPath, solidNRGBA(1, 1, color.NRGBA{A: 255}))
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, path, layer string
		want              error
	}{
		{"Missing", filepath.Join(dir, "missing.png"), "", os.ErrNotExist},
		{"LayerOnPNG", pngPath, "fg", ErrLayerUnsupported},
		{"UnknownFormat", txtPath, "", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFile(tt.path, tt.layer)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Path != tt.path {
				t.Errorf("error %v is not a *DecodeError for %s", err, tt.path)
			}
		})
	}
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	colors := []color.NRGBA{
		{R: 255, A: 255},
		{G: 255, A: 128},
		{B: 255, A: 0},
	}
	var sources []Source
	for i, c := range colors {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, path, solidNRGBA(5, 2, c))
		sources = append(sources, Source{Path: path})
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	l := &Loader{Logger: logger, Concurrency: 2}

	batch, err := l.Load(context.Background(), sources)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if batch.Rank() != 4 || batch.Dim(0) != 3 || batch.Dim(1) != 2 || batch.Dim(2) != 5 || batch.Dim(3) != 4 {
		t.Fatalf("shape = %v, want [3 2 5 4]", batch.Shape)
	}
	for i, c := range colors {
		if got := batch.At(i, 1, 4, 0); !floatsEqual(got, float32(c.R)/255) {
			t.Errorf("layer %d red = %v, want %v", i, got, float32(c.R)/255)
		}
		if got := batch.At(i, 0, 0, 3); !floatsEqual(got, float32(c.A)/255) {
			t.Errorf("layer %d alpha = %v, want %v", i, got, float32(c.A)/255)
		}
	}
	if n := len(hook.AllEntries()); n != 3 {
		t.Errorf("logged %d entries, want 3", n)
	}

	out, err := flatten.Flatten(batch, flatten.Black)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	// Red under half-transparent green under an invisible blue layer.
	if r, g := out.At(0, 0, 0, 0), out.At(0, 0, 0, 1); math.Abs(float64(r-0.498)) > 0.01 || math.Abs(float64(g-0.502)) > 0.01 {
		t.Errorf("flattened pixel = (%v, %v)", r, g)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	std := logrus.StandardLogger()
	out, level := std.Out, std.GetLevel()
	var buf bytes.Buffer
	std.SetOutput(&buf)
	std.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		std.SetOutput(out)
		std.SetLevel(level)
	})

	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, solidNRGBA(2, 2, color.NRGBA{R: 255, A: 255}))

	if _, err := (&Loader{}).Load(context.Background(), []Source{{Path: in}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := (&Saver{}).Save(filepath.Join(dir, "out.png"), flatten.NewTensor(1, 2, 2, 3)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("standard logger received %q", buf.String())
	}
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.png")
	large := filepath.Join(dir, "large.png")
	writePNG(t, small, solidNRGBA(2, 2, color.NRGBA{A: 255}))
	writePNG(t, large, solidNRGBA(3, 2, color.NRGBA{A: 255}))

	logger, _ := test.NewNullLogger()
	l := &Loader{Logger: logger}

	if _, err := l.Load(context.Background(), nil); !errors.Is(err, flatten.ErrNoLayers) {
		t.Errorf("empty Load error = %v, want ErrNoLayers", err)
	}
	if _, err := l.Load(context.Background(), []Source{{Path: small}, {Path: large}}); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("mismatched Load error = %v, want ErrSizeMismatch", err)
	}

	_, err := l.Load(context.Background(), []Source{{Path: small}, {Path: filepath.Join(dir, "nope.png")}})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("missing file error = %v, want *DecodeError", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, []Source{{Path: small}}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Load error = %v, want context.Canceled", err)
	}
}

func TestEncodeImage(t *testing.T) {
	rgb, _ := flatten.FromData([]float32{1.5, 0.5, -0.25, 0, 0.25, 1}, 1, 1, 2, 3)
	img, err := EncodeImage(rgb)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if got := img.NRGBA64At(0, 0); got != (color.NRGBA64{R: 0xffff, G: 0x8000, B: 0, A: 0xffff}) {
		t.Errorf("pixel 0 = %+v", got)
	}
	if got := img.NRGBA64At(1, 0); got != (color.NRGBA64{R: 0, G: 0x4000, B: 0xffff, A: 0xffff}) {
		t.Errorf("pixel 1 = %+v", got)
	}

	rgba, _ := flatten.FromData([]float32{0.2, 0.4, 0.6, 0.5}, 1, 1, 4)
	img, err = EncodeImage(rgba)
	if err != nil {
		t.Fatalf("EncodeImage rank 3: %v", err)
	}
	if got := img.NRGBA64At(0, 0).A; got != 0x8000 {
		t.Errorf("alpha = %#x, want 0x8000", got)
	}

	if _, err := EncodeImage(flatten.NewTensor(4, 4)); !errors.Is(err, flatten.ErrRankMismatch) {
		t.Errorf("rank 2 error = %v, want ErrRankMismatch", err)
	}
	if _, err := EncodeImage(flatten.NewTensor(1, 2, 2, 2)); !errors.Is(err, ErrChannels) {
		t.Errorf("two-channel error = %v, want ErrChannels", err)
	}
	if _, err := EncodeImage(flatten.NewTensor(0, 2, 2, 4)); !errors.Is(err, flatten.ErrNoLayers) {
		t.Errorf("empty batch error = %v, want ErrNoLayers", err)
	}
}

func TestSaver(t *testing.T) {
	dir := t.TempDir()
	result, _ := flatten.FromData([]float32{
		2, 0.5, 0, 1,
		0.25, -1, 1, 0.5,
	}, 1, 1, 2, 4)

	logger, hook := test.NewNullLogger()
	s := DefaultSaver()
	s.Logger = logger
	s.PixelType = exrio.PixelTypeFloat
	s.Comments = "two pixels"

	t.Run("EXRKeepsRange", func(t *testing.T) {
		path := filepath.Join(dir, "out.exr")
		if err := s.Save(path, result); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := DecodeFile(path, "")
		if err != nil {
			t.Fatalf("DecodeFile: %v", err)
		}
		for i, v := range result.Data {
			if got.Data[i] != v {
				t.Errorf("Data[%d] = %v, want %v", i, got.Data[i], v)
			}
		}
		info, err := Inspect(path)
		if err != nil {
			t.Fatalf("Inspect: %v", err)
		}
		if info.Compression != "zip" || len(info.Channels) != 4 || info.Channels[0] != "A (float)" {
			t.Errorf("info = %+v", info)
		}
		if info.Comments != "two pixels" || info.Owner != "" || info.CapDate.IsZero() {
			t.Errorf("metadata = %q %q %v", info.Comments, info.Owner, info.CapDate)
		}
	})

	t.Run("PNGClamps", func(t *testing.T) {
		path := filepath.Join(dir, "out.png")
		if err := s.Save(path, result); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := DecodeFile(path, "")
		if err != nil {
			t.Fatalf("DecodeFile: %v", err)
		}
		want := []float32{1, 0.5, 0, 1, 0.25, 0, 1, 0.5}
		for i := range want {
			if !floatsEqual(got.Data[i], want[i]) {
				t.Errorf("Data[%d] = %v, want %v", i, got.Data[i], want[i])
			}
		}
	})

	t.Run("TIFF", func(t *testing.T) {
		path := filepath.Join(dir, "out.tiff")
		if err := s.Save(path, result); err != nil {
			t.Fatalf("Save: %v", err)
		}
		info, err := Inspect(path)
		if err != nil {
			t.Fatalf("Inspect: %v", err)
		}
		if info.Format != "tiff" || info.Width != 2 || info.Height != 1 {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("OpaqueEXR", func(t *testing.T) {
		path := filepath.Join(dir, "rgb.exr")
		rgb, _ := flatten.FromData([]float32{0.1, 0.2, 0.3}, 1, 1, 1, 3)
		if err := s.Save(path, rgb); err != nil {
			t.Fatalf("Save: %v", err)
		}
		info, err := Inspect(path)
		if err != nil {
			t.Fatalf("Inspect: %v", err)
		}
		if len(info.Channels) != 3 || len(info.Layers) != 1 || info.Layers[0] != "" {
			t.Errorf("info = %+v", info)
		}
	})

	if err := s.Save(filepath.Join(dir, "out.jpg"), result); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("jpg Save error = %v, want ErrUnsupportedFormat", err)
	}
	ids := &Saver{Logger: logger, PixelType: exrio.PixelTypeUint}
	if err := ids.Save(filepath.Join(dir, "id.exr"), result); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("uint Save error = %v, want ErrUnsupportedFormat", err)
	}

	if n := len(hook.AllEntries()); n != 4 {
		t.Errorf("logged %d entries, want 4", n)
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.png")
	writePNG(t, path, solidNRGBA(7, 5, color.NRGBA{A: 255}))

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "png" || info.Width != 7 || info.Height != 5 {
		t.Errorf("info = %+v", info)
	}
	if _, err := Inspect(path + ".missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing Inspect error = %v", err)
	}
}

func TestInspectJPEG2000(t *testing.T) {
	var buf bytes.Buffer
	opts := &jpeg2000.Options{Format: jpeg2000.FormatJ2K, Lossless: true}
	if err := jpeg2000.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 16)), opts); err != nil {
		t.Fatalf("jpeg2000.Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "matte.j2k")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != string(FormatJPEG2000) || info.Width != 32 || info.Height != 16 {
		t.Errorf("info = %+v", info)
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"a.EXR":  FormatEXR,
		"b.jp2":  FormatJPEG2000,
		"c.j2c":  FormatJPEG2000,
		"d.png":  FormatPNG,
		"e.TIF":  FormatTIFF,
		"f.webp": FormatOther,
		"no-ext": FormatOther,
	}
	for path, want := range tests {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}
