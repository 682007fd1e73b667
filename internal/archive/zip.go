// Package archive packs converted images into a single zip download.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

const FailuresManifest = "failures.json"

type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Writer collects entries in memory. Duplicate names get a numeric suffix.
type Writer struct {
	buf  bytes.Buffer
	zw   *zip.Writer
	used map[string]int
	n    int
}

func NewWriter() *Writer {
	w := &Writer{used: map[string]int{}}
	w.zw = zip.NewWriter(&w.buf)
	return w
}

func (w *Writer) Add(name string, data []byte) error {
	name = w.unique(sanitize(name))
	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store, // payloads are already compressed images
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.n++
	return nil
}

// AddFailures writes the per-file error manifest. It is a no-op for an empty list.
func (w *Writer) AddFailures(failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return err
	}
	f, err := w.zw.Create(w.unique(FailuresManifest))
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

// Len counts image entries added so far.
func (w *Writer) Len() int { return w.n }

// Bytes finalises the archive.
func (w *Writer) Bytes() ([]byte, error) {
	if err := w.zw.Close(); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (w *Writer) unique(name string) string {
	n := w.used[name]
	w.used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// OutputName swaps the extension of an uploaded filename for ext.
func OutputName(original, ext string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ext
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return name
}
