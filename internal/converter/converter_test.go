package converter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/trunov/imageconv/internal/config"
	"github.com/trunov/imageconv/internal/entities"
	"github.com/trunov/imageconv/internal/vector"
)

const testSVG = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" width="400" height="200" viewBox="0 0 400 200">
  <!-- comment -->
  <rect x="0" y="0" width="400" height="200" fill="#00ff00"/>
</svg>`

func newConverter() *Converter {
	return New(config.DefaultConversion())
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// transparentWithDot is a fully transparent canvas with an opaque red square.
func transparentWithDot(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h/4; y++ {
		for x := 0; x < w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	return img
}

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	return img
}

func ptr[T any](v T) *T { return &v }

func decodeOutput(t *testing.T, data []byte) (image.Image, string) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Output does not decode: %v", err)
	}
	return img, format
}

func TestConvertSVGResizeAndOptimize(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: []byte(testSVG),
		Format: entities.FormatSVG,
		Resize: &entities.Resize{Width: 200, Height: 100},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if res.Format != entities.FormatSVG {
		t.Errorf("Expected svg result, got %s", res.Format)
	}
	if len(res.Data) >= len(testSVG) {
		t.Errorf("Expected optimized output to shrink: %d >= %d", len(res.Data), len(testSVG))
	}

	var root struct {
		XMLName xml.Name
		Width   string `xml:"width,attr"`
		Height  string `xml:"height,attr"`
		ViewBox string `xml:"viewBox,attr"`
	}
	if err := xml.Unmarshal(res.Data, &root); err != nil {
		t.Fatalf("Output is not well formed: %v", err)
	}
	if root.XMLName.Local != "svg" || root.Width != "200" || root.Height != "100" {
		t.Errorf("Unexpected root %s width=%q height=%q", root.XMLName.Local, root.Width, root.Height)
	}
	if root.ViewBox != "0 0 400 200" {
		t.Errorf("Expected viewBox unchanged, got %q", root.ViewBox)
	}
}

func TestConvertRasterToVector(t *testing.T) {
	src := encodePNG(t, transparentWithDot(32, 32))

	res, err := newConverter().Convert(entities.ConversionRequest{Source: src, Format: entities.FormatSVG})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !vector.IsSVG(res.Data) {
		t.Errorf("Expected svg markup, got %.60q", res.Data)
	}
	if !bytes.Contains(res.Data, []byte("rgb(255,0,0)")) {
		t.Error("Expected the red square to be traced")
	}
}

func TestConvertErrors(t *testing.T) {
	garbage := []byte("this is neither raster nor vector")

	_, err := newConverter().Convert(entities.ConversionRequest{Source: garbage, Format: entities.FormatSVG})
	var traceErr *TraceError
	if !errors.As(err, &traceErr) {
		t.Errorf("Expected TraceError, got %v", err)
	}

	_, err = newConverter().Convert(entities.ConversionRequest{Source: garbage, Format: entities.FormatJPEG})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected DecodeError, got %v", err)
	}

	_, err = newConverter().Convert(entities.ConversionRequest{Source: encodePNG(t, noise(4, 4)), Format: "bmp"})
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Errorf("Expected EncodeError for unknown format, got %v", err)
	}
	if !errors.Is(err, entities.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat in chain, got %v", err)
	}
}

func TestConvertFlattensAlphaForJPEG(t *testing.T) {
	format, err := entities.ParseFormat("jpg")
	if err != nil {
		t.Fatal(err)
	}

	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: encodePNG(t, transparentWithDot(64, 64)),
		Format: format,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Attempts != 1 || res.Quality != 0 {
		t.Errorf("Expected a single default encode, got attempts=%d quality=%d", res.Attempts, res.Quality)
	}

	img, kind := decodeOutput(t, res.Data)
	if kind != "jpeg" {
		t.Fatalf("Expected jpeg output, got %s", kind)
	}
	r, g, b, _ := img.At(50, 50).RGBA()
	if r>>8 < 245 || g>>8 < 245 || b>>8 < 245 {
		t.Errorf("Expected white background, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(4, 4).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("Expected red square preserved, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestConvertFlattensAlphaForTIFF(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: encodePNG(t, transparentWithDot(16, 16)),
		Format: entities.FormatTIFF,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, kind := decodeOutput(t, res.Data)
	if kind != "tiff" {
		t.Fatalf("Expected tiff output, got %s", kind)
	}
	if _, _, _, a := img.At(15, 15).RGBA(); a != 0xffff {
		t.Errorf("Expected opaque pixel, got alpha %d", a)
	}
	if r, g, b, _ := img.At(15, 15).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("Expected white, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
	if o, ok := img.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		t.Error("Expected every pixel of the tiff to be opaque")
	}
}

func TestConvertKeepsAlphaForPNG(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: encodePNG(t, transparentWithDot(16, 16)),
		Format: entities.FormatPNG,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, _ := decodeOutput(t, res.Data)
	if _, _, _, a := img.At(15, 15).RGBA(); a != 0 {
		t.Errorf("Expected transparent pixel kept, got alpha %d", a)
	}
}

func TestConvertResizeFitsInside(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: encodePNG(t, noise(400, 300)),
		Format: entities.FormatWebP,
		Resize: &entities.Resize{Width: 100, Height: 100},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, _ := decodeOutput(t, res.Data)
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 100 || h != 75 {
		t.Errorf("Expected 100x75, got %dx%d", w, h)
	}

	res, err = newConverter().Convert(entities.ConversionRequest{
		Source: encodePNG(t, noise(40, 30)),
		Format: entities.FormatPNG,
		Resize: &entities.Resize{Width: 100, Height: 100},
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, _ = decodeOutput(t, res.Data)
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 40 || h != 30 {
		t.Errorf("Expected no enlargement (40x30), got %dx%d", w, h)
	}
}

func TestConvertPercentMode(t *testing.T) {
	tests := []struct {
		percent int
		want    int
	}{
		{percent: 40, want: 40},
		{percent: 150, want: 100},
		{percent: -3, want: 1},
	}
	src := encodePNG(t, noise(32, 32))

	for _, tt := range tests {
		res, err := newConverter().Convert(entities.ConversionRequest{
			Source:         src,
			Format:         entities.FormatJPEG,
			QualityPercent: ptr(tt.percent),
		})
		if err != nil {
			t.Fatalf("percent %d: %v", tt.percent, err)
		}
		if res.Quality != tt.want || res.Attempts != 1 {
			t.Errorf("percent %d: expected quality %d in one attempt, got %d/%d", tt.percent, tt.want, res.Quality, res.Attempts)
		}
	}
}

func TestConvertTargetSizeWinsOverPercent(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{
		Source:         encodePNG(t, noise(32, 32)),
		Format:         entities.FormatJPEG,
		TargetSizeKB:   ptr(10000.0),
		QualityPercent: ptr(10),
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Quality != 95 {
		t.Errorf("Expected size search to run and saturate at 95, got quality %d", res.Quality)
	}
}

func TestConvertTargetSize(t *testing.T) {
	cfg := config.DefaultConversion()
	conv := New(cfg)
	src := encodePNG(t, noise(256, 256))

	for _, target := range []float64{40, 90, 150, 100000} {
		res, err := conv.Convert(entities.ConversionRequest{
			Source:       src,
			Format:       entities.FormatJPEG,
			TargetSizeKB: ptr(target),
		})
		if err != nil {
			t.Fatalf("target %v: %v", target, err)
		}
		if res.Attempts < 1 || res.Attempts > cfg.Search.MaxAttempts {
			t.Errorf("target %v: attempts %d outside [1,%d]", target, res.Attempts, cfg.Search.MaxAttempts)
		}
		if res.Quality < cfg.Search.MinQuality || res.Quality > cfg.Search.MaxQuality {
			t.Errorf("target %v: quality %d outside bounds", target, res.Quality)
		}

		kb := res.SizeKB()
		hit := kb <= target && kb > target-cfg.Search.UndershootKB
		pinned := res.Quality == cfg.Search.MinQuality || res.Quality == cfg.Search.MaxQuality
		if !hit && !pinned && res.Attempts != cfg.Search.MaxAttempts {
			t.Errorf("target %v: stopped at %.1fKB q=%d after %d attempts", target, kb, res.Quality, res.Attempts)
		}
	}
}

func TestConvertSVGToRaster(t *testing.T) {
	res, err := newConverter().Convert(entities.ConversionRequest{Source: []byte(testSVG), Format: entities.FormatPNG})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	img, kind := decodeOutput(t, res.Data)
	if kind != "png" {
		t.Fatalf("Expected png, got %s", kind)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 400 || h != 200 {
		t.Errorf("Expected 400x200, got %dx%d", w, h)
	}
	if _, g, _, _ := img.At(200, 100).RGBA(); g>>8 < 200 {
		t.Errorf("Expected green fill, got g=%d", g>>8)
	}
}

func TestConvertSVGWithLongPrologue(t *testing.T) {
	src := []byte("<!-- " + strings.Repeat("license text ", 400) + "-->\n" + testSVG[len(`<?xml version="1.0"?>`)+1:])

	res, err := newConverter().Convert(entities.ConversionRequest{
		Source: src,
		Format: entities.FormatSVG,
		Resize: &entities.Resize{Width: 200, Height: 100},
	})
	if err != nil {
		t.Fatalf("Convert to svg: %v", err)
	}
	if w, h := vector.Dimensions(string(res.Data)); w != 200 || h != 100 {
		t.Errorf("Expected 200x100, got %vx%v", w, h)
	}

	res, err = newConverter().Convert(entities.ConversionRequest{Source: src, Format: entities.FormatPNG})
	if err != nil {
		t.Fatalf("Convert to png: %v", err)
	}
	if img, _ := decodeOutput(t, res.Data); img.Bounds().Dx() != 400 {
		t.Errorf("Expected 400 wide raster, got %d", img.Bounds().Dx())
	}
}

func TestConvertConcurrentIsolation(t *testing.T) {
	conv := newConverter()
	good := encodePNG(t, noise(48, 48))
	bad := []byte(strings.Repeat("x", 64))

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := good
			if i%4 == 0 {
				src = bad
			}
			_, errs[i] = conv.Convert(entities.ConversionRequest{
				Source:       src,
				Format:       entities.FormatWebP,
				TargetSizeKB: ptr(5.0),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if i%4 == 0 && err == nil {
			t.Errorf("Request %d: expected decode failure", i)
		}
		if i%4 != 0 && err != nil {
			t.Errorf("Request %d: unexpected error %v", i, err)
		}
	}
}
