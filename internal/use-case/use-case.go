package use_case

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/trunov/imageconv/internal/archive"
	"github.com/trunov/imageconv/internal/cache"
	"github.com/trunov/imageconv/internal/entities"
)

var (
	ErrNoFiles   = errors.New("no files provided")
	ErrAllFailed = errors.New("every file in the batch failed")
)

type Converter interface {
	Convert(req entities.ConversionRequest) (entities.ConversionResult, error)
}

type ResultCache interface {
	Get(ctx context.Context, key string) (entities.ConversionResult, bool, error)
	Store(ctx context.Context, key string, res entities.ConversionResult) error
}

// BatchFile is one uploaded image of a batch.
type BatchFile struct {
	Name string
	Data []byte
}

// BatchItem is the outcome for one BatchFile; exactly one of Result or Err
// is meaningful.
type BatchItem struct {
	Name   string
	Result entities.ConversionResult
	Err    error
}

type useCase struct {
	conv    Converter
	cache   ResultCache // nil disables caching
	workers int
}

func New(conv Converter, rc ResultCache, workers int) *useCase {
	if workers < 1 {
		workers = 1
	}
	return &useCase{
		conv:    conv,
		cache:   rc,
		workers: workers,
	}
}

func (c *useCase) Convert(ctx context.Context, req entities.ConversionRequest) (entities.ConversionResult, error) {
	if c.cache == nil {
		return c.conv.Convert(req)
	}

	key := cache.Key(req)
	if res, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Printf("[cache] get %s: %v", key[:12], err)
	} else if ok {
		return res, nil
	}

	res, err := c.conv.Convert(req)
	if err != nil {
		return res, err
	}

	if err := c.cache.Store(ctx, key, res); err != nil {
		log.Printf("[cache] store %s: %v", key[:12], err)
	}
	return res, nil
}

// ConvertBatch converts every file with the shared parameters in tmpl.
// Files are processed concurrently and independently: a failing file is
// reported in its BatchItem and never stops its siblings. Items keep the
// order of files.
func (c *useCase) ConvertBatch(ctx context.Context, files []BatchFile, tmpl entities.ConversionRequest) ([]BatchItem, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	items := make([]BatchItem, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			items[i] = c.convertOne(gctx, f, tmpl)
			return nil
		})
	}
	_ = g.Wait()

	return items, nil
}

func (c *useCase) convertOne(ctx context.Context, f BatchFile, tmpl entities.ConversionRequest) (item BatchItem) {
	item.Name = f.Name
	defer func() {
		if r := recover(); r != nil {
			item.Err = fmt.Errorf("conversion panicked: %v", r)
			log.Printf("[batch] %s: %v", f.Name, item.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		item.Err = err
		return item
	}

	req := tmpl
	req.Source = f.Data
	item.Result, item.Err = c.Convert(ctx, req)
	if item.Err != nil {
		log.Printf("[batch] %s: %v", f.Name, item.Err)
	}
	return item
}

// Archive zips the successful items and lists failures in a manifest. It
// returns ErrAllFailed when nothing converted.
func Archive(items []BatchItem) (data []byte, failed int, err error) {
	w := archive.NewWriter()
	var failures []archive.Failure

	for _, it := range items {
		if it.Err != nil {
			failures = append(failures, archive.Failure{File: it.Name, Error: it.Err.Error()})
			continue
		}
		if err := w.Add(archive.OutputName(it.Name, it.Result.Format.Extension()), it.Result.Data); err != nil {
			return nil, 0, err
		}
	}

	if w.Len() == 0 {
		return nil, len(failures), ErrAllFailed
	}
	if err := w.AddFailures(failures); err != nil {
		return nil, 0, err
	}

	data, err = w.Bytes()
	return data, len(failures), err
}
