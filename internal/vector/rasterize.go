package vector

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	// Used when the document declares neither a viewBox nor dimensions.
	fallbackWidth  = 300
	fallbackHeight = 150

	maxRasterSide = 8192
)

// Rasterize renders doc at its intrinsic size: declared width/height, then
// the viewBox, then the browser default of 300x150.
func Rasterize(doc []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w, h := Dimensions(string(doc))
	if w <= 0 || h <= 0 {
		w, h = icon.ViewBox.W, icon.ViewBox.H
	}
	if w <= 0 || h <= 0 {
		w, h = fallbackWidth, fallbackHeight
	}

	iw, ih := side(w), side(h)
	icon.SetTarget(0, 0, float64(iw), float64(ih))

	img := image.NewRGBA(image.Rect(0, 0, iw, ih))
	scanner := rasterx.NewScannerGV(iw, ih, img, img.Bounds())
	raster := rasterx.NewDasher(iw, ih, scanner)
	icon.Draw(raster, 1.0)

	return img, nil
}

func side(v float64) int {
	n := int(math.Ceil(v))
	if n < 1 {
		return 1
	}
	if n > maxRasterSide {
		return maxRasterSide
	}
	return n
}
