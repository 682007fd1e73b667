package processor

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // webp decoder
)

// ImageModifier defines an image modifier
type ImageModifier interface {
	Modify(img image.Image) image.Image
}

// ImageResizer fits the image inside Width x Height, keeping the aspect
// ratio. Images already inside the box are returned untouched.
type ImageResizer struct {
	Width  int
	Height int
}

// Modify to implement ImageModifier interface
func (r *ImageResizer) Modify(img image.Image) image.Image {
	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	if w == 0 || h == 0 || r.Width <= 0 || r.Height <= 0 {
		return img
	}

	ratio := w / float64(r.Width)
	if hRatio := h / float64(r.Height); hRatio > ratio {
		ratio = hRatio
	}

	// Nothing to do - never enlarge
	if ratio <= 1 {
		return img
	}

	return imaging.Resize(img, scaled(w, ratio, r.Width), scaled(h, ratio, r.Height), imaging.Lanczos)
}

func scaled(v, ratio float64, limit int) int {
	n := int(v/ratio + 0.5)
	if n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Flattener composites the image over an opaque background.
type Flattener struct {
	Background color.Color
}

func (f *Flattener) Modify(img image.Image) image.Image {
	bg := f.Background
	if bg == nil {
		bg = color.White
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// LoadImage reads image from reader and applies requested modifiers to that image
func LoadImage(r io.Reader, modifiers ...ImageModifier) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	return Apply(img, modifiers...), nil
}

// Apply runs modifiers in order.
func Apply(img image.Image, modifiers ...ImageModifier) image.Image {
	for _, modifier := range modifiers {
		if modifier == nil {
			continue
		}
		img = modifier.Modify(img)
	}
	return img
}
