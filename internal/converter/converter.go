// Package converter is the conversion engine. It routes each request to the
// vector re-optimisation, raster tracing or raster encode path.
package converter

import (
	"bytes"
	"image"
	"log"

	"github.com/trunov/imageconv/internal/config"
	"github.com/trunov/imageconv/internal/entities"
	"github.com/trunov/imageconv/internal/processor"
	"github.com/trunov/imageconv/internal/tracer"
	"github.com/trunov/imageconv/internal/vector"
)

// Converter holds only read-only configuration and is safe for concurrent use.
type Converter struct {
	search    config.SearchConfig
	tracer    tracer.Options
	optimizer *vector.Optimizer
}

func New(cfg config.ConversionConfig) *Converter {
	return &Converter{
		search:    cfg.Search,
		tracer:    tracer.FromConfig(cfg.Tracer),
		optimizer: vector.NewOptimizer(cfg.MaxVectorPasses),
	}
}

// Convert runs one request to completion. Callers get a best-effort buffer
// in target-size mode: landing outside the size window is not an error.
func (c *Converter) Convert(req entities.ConversionRequest) (entities.ConversionResult, error) {
	if req.Format.IsVector() {
		if vector.IsSVG(req.Source) {
			return c.optimizeVector(req)
		}
		return c.traceRaster(req)
	}
	return c.encodeRaster(req)
}

func (c *Converter) optimizeVector(req entities.ConversionRequest) (entities.ConversionResult, error) {
	doc := string(req.Source)
	if req.Resize != nil {
		var err error
		doc, err = vector.SetDimensions(doc, req.Resize.Width, req.Resize.Height)
		if err != nil {
			return entities.ConversionResult{}, &DecodeError{Err: err}
		}
	}

	out, err := c.optimizer.Optimize([]byte(doc))
	if err != nil {
		return entities.ConversionResult{}, &EncodeError{Format: entities.FormatSVG, Err: err}
	}

	return entities.ConversionResult{Data: out, Format: entities.FormatSVG, Attempts: 1}, nil
}

func (c *Converter) traceRaster(req entities.ConversionRequest) (entities.ConversionResult, error) {
	out, err := tracer.TraceDataURL(tracer.DataURL(req.Source), c.tracer)
	if err != nil {
		return entities.ConversionResult{}, &TraceError{Err: err}
	}

	return entities.ConversionResult{Data: out, Format: entities.FormatSVG, Attempts: 1}, nil
}

func (c *Converter) encodeRaster(req entities.ConversionRequest) (entities.ConversionResult, error) {
	enc, err := processor.EncoderFor(req.Format)
	if err != nil {
		return entities.ConversionResult{}, &EncodeError{Format: req.Format, Err: err}
	}

	img, err := decode(req.Source)
	if err != nil {
		return entities.ConversionResult{}, &DecodeError{Err: err}
	}

	var modifiers []processor.ImageModifier
	if req.Resize != nil {
		modifiers = append(modifiers, &processor.ImageResizer{Width: req.Resize.Width, Height: req.Resize.Height})
	}
	img = processor.Apply(img, modifiers...)

	if !req.Format.CanHoldAlpha() && processor.HasAlpha(img) {
		img = processor.Apply(img, &processor.Flattener{})
	}

	encode := func(q int) ([]byte, error) {
		data, err := enc.Encode(img, q)
		if err != nil {
			return nil, &EncodeError{Format: req.Format, Quality: q, Err: err}
		}
		return data, nil
	}

	// Zero values count as unset.
	switch {
	case req.TargetSizeKB != nil && *req.TargetSizeKB > 0:
		res, err := processor.Search(encode, *req.TargetSizeKB, c.search)
		if err != nil {
			return entities.ConversionResult{}, err
		}
		log.Printf("[converter] size search: target=%.1fKB got=%.1fKB quality=%d attempts=%d",
			*req.TargetSizeKB, res.SizeKB(), res.Quality, res.Attempts)
		return entities.ConversionResult{Data: res.Data, Format: req.Format, Quality: res.Quality, Attempts: res.Attempts}, nil

	case req.QualityPercent != nil && *req.QualityPercent != 0:
		q := processor.ClampPercent(*req.QualityPercent)
		data, err := encode(q)
		if err != nil {
			return entities.ConversionResult{}, err
		}
		return entities.ConversionResult{Data: data, Format: req.Format, Quality: q, Attempts: 1}, nil

	default:
		data, err := encode(0)
		if err != nil {
			return entities.ConversionResult{}, err
		}
		return entities.ConversionResult{Data: data, Format: req.Format, Attempts: 1}, nil
	}
}

// decode reads raster sources directly and renders svg sources first.
func decode(src []byte) (image.Image, error) {
	if vector.IsSVG(src) {
		return vector.Rasterize(src)
	}
	return processor.LoadImage(bytes.NewReader(src))
}
