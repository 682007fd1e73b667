package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/image/tiff"

	"github.com/trunov/imageconv/internal/entities"
)

// Codec defaults used when no quality is requested.
const (
	DefaultJPEGQuality = 80
	DefaultWebPQuality = 80
)

// Encoder encodes an image at the given quality (1-100). Quality 0 selects
// the codec default.
type Encoder interface {
	Format() entities.Format
	Encode(img image.Image, quality int) ([]byte, error)
}

// EncoderFor returns the raster encoder for f.
func EncoderFor(f entities.Format) (Encoder, error) {
	switch f {
	case entities.FormatJPEG:
		return JPEGEncoder{}, nil
	case entities.FormatPNG:
		return PNGEncoder{}, nil
	case entities.FormatWebP:
		return WebPEncoder{}, nil
	case entities.FormatTIFF:
		return TIFFEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: no raster encoder for %q", entities.ErrUnsupportedFormat, f)
	}
}

func checkQuality(quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("quality %d out of range [1,100]", quality)
	}
	return nil
}

type JPEGEncoder struct{}

func (JPEGEncoder) Format() entities.Format { return entities.FormatJPEG }

func (JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	buf := new(bytes.Buffer)
	err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	return buf.Bytes(), err
}

// PNGEncoder writes lossless PNG by default. An explicit quality switches to
// a median-cut palette whose size grows with quality.
type PNGEncoder struct{}

func (PNGEncoder) Format() entities.Format { return entities.FormatPNG }

func (PNGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	if quality > 0 {
		img = Quantize(img, PaletteSize(quality))
	}

	buf := new(bytes.Buffer)
	err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	return buf.Bytes(), err
}

// PaletteSize maps quality 1..100 onto 2..256 colours.
func PaletteSize(quality int) int {
	return 2 + (quality*254+50)/100
}

// Quantize reduces img to at most n colours.
func Quantize(img image.Image, n int) *image.Paletted {
	q := quantize.MedianCutQuantizer{AddTransparent: HasAlpha(img)}
	p := q.Quantize(make(color.Palette, 0, n), img)

	b := img.Bounds()
	dst := image.NewPaletted(b, p)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

type WebPEncoder struct{}

func (WebPEncoder) Format() entities.Format { return entities.FormatWebP }

func (WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}
	if quality == 0 {
		quality = DefaultWebPQuality
	}

	buf := new(bytes.Buffer)
	err := webp.Encode(buf, img, &webp.Options{
		Lossless: false,
		Quality:  float32(quality),
		Exact:    true,
	})
	return buf.Bytes(), err
}

// TIFFEncoder writes deflate-compressed TIFF. Quality is validated but has no
// effect on the output. RGB images always carry a fourth sample; flattened
// input leaves it at full opacity.
type TIFFEncoder struct{}

func (TIFFEncoder) Format() entities.Format { return entities.FormatTIFF }

func (TIFFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if err := checkQuality(quality); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	err := tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	return buf.Bytes(), err
}
