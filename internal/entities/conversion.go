package entities

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatTIFF Format = "tiff"
	FormatSVG  Format = "svg"
)

// ParseFormat maps a user supplied format name onto its canonical codec name.
// Aliases ("jpg", "tif") are resolved here and nowhere else.
func ParseFormat(name string) (Format, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "png", "webp", "svg":
		return Format(f), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

func (f Format) IsVector() bool { return f == FormatSVG }

// CanHoldAlpha reports whether the encoder for f has a representation for
// per-pixel transparency.
func (f Format) CanHoldAlpha() bool {
	switch f {
	case FormatJPEG, FormatTIFF:
		return false
	default:
		return true
	}
}

func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/" + string(f)
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

type Resize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ConversionRequest is built once per image by the caller. When both
// TargetSizeKB and QualityPercent are set the size target wins.
type ConversionRequest struct {
	Source         []byte
	Format         Format
	TargetSizeKB   *float64
	QualityPercent *int
	Resize         *Resize
}

type ConversionResult struct {
	Data   []byte `json:"-"`
	Format Format `json:"format"`

	// Quality is the encoder quality of the returned buffer, 0 when the codec
	// default was used or the output is vector.
	Quality int `json:"quality"`
	// Attempts counts encode calls made for this result.
	Attempts int `json:"attempts"`
}

func (r ConversionResult) SizeKB() float64 { return float64(len(r.Data)) / 1024 }
