package tracer

import (
	"image"
	"image/color"
	"math"

	"github.com/ericpauley/go-quantize/quantize"
)

// reducePalette picks a palette and assigns every pixel to its nearest entry,
// refining the palette with a few k-means style averaging cycles.
func reducePalette(src *image.NRGBA, opts Options) ([]color.NRGBA, []uint8) {
	n := opts.Colors
	if n > 256 {
		n = 256
	}

	var pal []color.NRGBA
	switch opts.ColorSampling {
	case SamplingGray:
		pal = grayPalette(n)
	case SamplingMedianCut:
		pal = medianCutPalette(src, n)
	default:
		pal = gridPalette(src, n)
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	idx := make([]uint8, w*h)
	assign(src, pal, idx)

	for cycle := 0; cycle < quantCycles; cycle++ {
		type acc struct{ r, g, b, a, n int }
		sums := make([]acc, len(pal))
		for i, k := range idx {
			p := src.Pix[i*4 : i*4+4]
			s := &sums[k]
			s.r += int(p[0])
			s.g += int(p[1])
			s.b += int(p[2])
			s.a += int(p[3])
			s.n++
		}
		for k, s := range sums {
			if s.n == 0 {
				continue
			}
			pal[k] = color.NRGBA{
				R: uint8(s.r / s.n),
				G: uint8(s.g / s.n),
				B: uint8(s.b / s.n),
				A: uint8(s.a / s.n),
			}
		}
		assign(src, pal, idx)
	}

	return pal, idx
}

func assign(src *image.NRGBA, pal []color.NRGBA, idx []uint8) {
	for i := range idx {
		p := src.Pix[i*4 : i*4+4]
		best, bestDist := 0, math.MaxInt
		for k, c := range pal {
			d := absDiff(p[0], c.R) + absDiff(p[1], c.G) + absDiff(p[2], c.B) + absDiff(p[3], c.A)
			if d < bestDist {
				best, bestDist = k, d
			}
		}
		idx[i] = uint8(best)
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func grayPalette(n int) []color.NRGBA {
	pal := make([]color.NRGBA, n)
	for i := range pal {
		v := uint8(i * 255 / (n - 1))
		pal[i] = color.NRGBA{R: v, G: v, B: v, A: 255}
	}
	return pal
}

// gridPalette samples n pixels spread evenly across the image.
func gridPalette(src *image.NRGBA, n int) []color.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	g := int(math.Ceil(math.Sqrt(float64(n))))

	pal := make([]color.NRGBA, n)
	for i := range pal {
		gx, gy := i%g, i/g
		x := int((float64(gx) + 0.5) * float64(w) / float64(g))
		y := int((float64(gy) + 0.5) * float64(h) / float64(g))
		pal[i] = src.NRGBAAt(min(x, w-1), min(y, h-1))
	}
	return pal
}

func medianCutPalette(src *image.NRGBA, n int) []color.NRGBA {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, n), src)
	if len(p) == 0 {
		return gridPalette(src, n)
	}

	pal := make([]color.NRGBA, len(p))
	for i, c := range p {
		pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	return pal
}
