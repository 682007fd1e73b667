package converter

import (
	"fmt"

	"github.com/trunov/imageconv/internal/entities"
)

// DecodeError reports a source that could not be read as an image on a path
// that needs pixels.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode source: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a codec rejecting the image or its parameters.
type EncodeError struct {
	Format  entities.Format
	Quality int
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s (quality %d): %v", e.Format, e.Quality, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// TraceError reports a failed raster-to-vector trace.
type TraceError struct {
	Err error
}

func (e *TraceError) Error() string { return fmt.Sprintf("trace raster: %v", e.Err) }
func (e *TraceError) Unwrap() error { return e.Err }
