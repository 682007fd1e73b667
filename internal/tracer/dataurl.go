package tracer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/trunov/imageconv/internal/processor"
)

var ErrInvalidDataURL = errors.New("invalid data url")

// DataURL embeds buf as a base64 data url, typed by content sniffing.
func DataURL(buf []byte) string {
	return "data:" + mimetype.Detect(buf).String() + ";base64," + base64.StdEncoding.EncodeToString(buf)
}

// TraceDataURL decodes the raster embedded in url and traces it.
func TraceDataURL(url string, opts Options) ([]byte, error) {
	raw, err := decodeDataURL(url)
	if err != nil {
		return nil, err
	}

	img, err := processor.LoadImage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode embedded raster: %w", err)
	}

	return Trace(img, opts)
}

func decodeDataURL(url string) ([]byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrInvalidDataURL)
	}
	_, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, fmt.Errorf("%w: not base64 encoded", ErrInvalidDataURL)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return raw, nil
}
