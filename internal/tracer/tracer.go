// Package tracer reconstructs vector paths from a bitmap. The image is
// reduced to a small palette, each palette colour becomes a layer, layer
// boundaries are followed into closed contours and those contours are fitted
// with straight lines and quadratic splines.
package tracer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/disintegration/imaging"

	"github.com/trunov/imageconv/internal/config"
)

var ErrEmptyImage = errors.New("image has no pixels")

// Colour sampling modes.
const (
	SamplingGray          = 0
	SamplingMedianCut     = 1
	SamplingDeterministic = 2
)

const quantCycles = 3

type Options struct {
	Colors         int
	ColorSampling  int
	LineTolerance  float64 // squared pixel error allowed for a straight segment
	CurveTolerance float64 // squared pixel error allowed for a quadratic segment
	PathOmit       int     // contours with fewer edges are dropped
	Scale          float64
}

func DefaultOptions() Options {
	return FromConfig(config.DefaultConversion().Tracer)
}

func FromConfig(c config.TracerConfig) Options {
	return Options{
		Colors:         c.Colors,
		ColorSampling:  c.ColorSampling,
		LineTolerance:  c.LineTolerance,
		CurveTolerance: c.CurveTolerance,
		PathOmit:       c.PathOmit,
		Scale:          c.Scale,
	}
}

// Trace converts img to svg markup.
func Trace(img image.Image, opts Options) ([]byte, error) {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}
	if opts.Colors < 2 {
		opts.Colors = 2
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	pal, idx := reducePalette(src, opts)

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(scaled(w, opts.Scale), scaled(h, opts.Scale),
		fmt.Sprintf(`viewBox="0 0 %d %d"`, scaled(w, opts.Scale), scaled(h, opts.Scale)))

	for k, c := range pal {
		if c.A == 0 {
			continue
		}
		var d strings.Builder
		for _, loop := range contours(idx, w, h, uint8(k)) {
			if len(loop) < opts.PathOmit {
				continue
			}
			writeSegments(&d, fitLoop(loop, opts), opts.Scale)
		}
		if d.Len() == 0 {
			continue
		}

		rgb := fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
		attrs := []string{`fill="` + rgb + `"`, `stroke="` + rgb + `"`, `stroke-width="1"`}
		if c.A < 255 {
			attrs = append(attrs, `opacity="`+strconv.FormatFloat(float64(c.A)/255, 'f', 3, 64)+`"`)
		}
		canvas.Path(strings.TrimSpace(d.String()), attrs...)
	}

	canvas.End()
	return buf.Bytes(), nil
}

func scaled(v int, s float64) int {
	n := int(float64(v)*s + 0.5)
	if n < 1 {
		return 1
	}
	return n
}

func writeSegments(d *strings.Builder, segs []segment, scale float64) {
	if len(segs) == 0 {
		return
	}
	d.WriteString("M " + coord(segs[0].from.x*scale) + " " + coord(segs[0].from.y*scale) + " ")
	for _, s := range segs {
		if s.curve {
			d.WriteString("Q " + coord(s.ctrl.x*scale) + " " + coord(s.ctrl.y*scale) + " ")
		} else {
			d.WriteString("L ")
		}
		d.WriteString(coord(s.to.x*scale) + " " + coord(s.to.y*scale) + " ")
	}
	d.WriteString("Z ")
}

// coord rounds to one decimal place.
func coord(v float64) string {
	return strconv.FormatFloat(float64(int64(v*10+sign(v)*0.5))/10, 'f', -1, 64)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
