// Package vector handles svg documents: detection, root dimension rewrites,
// minification and rasterisation.
package vector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

const mimeSVG = "image/svg+xml"

var (
	openTag    = regexp.MustCompile(`(?is)^<svg\b[^>]*>`)
	widthAttr  = regexp.MustCompile(`(?i)(\s)width\s*=\s*("[^"]*"|'[^']*')`)
	heightAttr = regexp.MustCompile(`(?i)(\s)height\s*=\s*("[^"]*"|'[^']*')`)
)

// IsSVG sniffs buf. mimetype only inspects a bounded prefix, so documents
// whose prologue outgrows it are recognised by their root element instead.
// Anything that cannot be identified is not vector.
func IsSVG(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	if mimetype.Detect(buf).Is(mimeSVG) {
		return true
	}
	_, _, ok := rootTag(string(buf))
	return ok
}

// rootTag locates the opening tag of the root <svg> element, skipping the
// XML declaration, processing instructions, comments and the doctype.
func rootTag(doc string) (start, end int, ok bool) {
	i := skipPrologue(doc)
	if i < 0 {
		return 0, 0, false
	}
	loc := openTag.FindStringIndex(doc[i:])
	if loc == nil {
		return 0, 0, false
	}
	return i, i + loc[1], true
}

func skipPrologue(doc string) int {
	i := 0
	if strings.HasPrefix(doc, "\ufeff") {
		i = len("\ufeff")
	}
	for {
		for i < len(doc) && strings.IndexByte(" \t\r\n", doc[i]) >= 0 {
			i++
		}
		rest := doc[i:]
		switch {
		case strings.HasPrefix(rest, "<?"):
			j := strings.Index(rest, "?>")
			if j < 0 {
				return -1
			}
			i += j + len("?>")
		case strings.HasPrefix(rest, "<!--"):
			j := strings.Index(rest[len("<!--"):], "-->")
			if j < 0 {
				return -1
			}
			i += len("<!--") + j + len("-->")
		case len(rest) >= len("<!DOCTYPE") && strings.EqualFold(rest[:len("<!DOCTYPE")], "<!DOCTYPE"):
			j := doctypeEnd(rest)
			if j < 0 {
				return -1
			}
			i += j
		default:
			return i
		}
	}
}

// doctypeEnd returns the offset just past the doctype, honouring an
// internal subset in brackets.
func doctypeEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				return i + 1
			}
		}
	}
	return -1
}

// SetDimensions rewrites the width and height attributes of the root <svg>
// element, inserting them when absent. The viewBox and the rest of the
// document are left alone.
func SetDimensions(doc string, width, height int) (string, error) {
	start, end, ok := rootTag(doc)
	if !ok {
		return "", fmt.Errorf("no <svg> root element")
	}

	tag := doc[start:end]
	tag = setAttr(tag, widthAttr, "width", width)
	tag = setAttr(tag, heightAttr, "height", height)

	return doc[:start] + tag + doc[end:], nil
}

func setAttr(tag string, re *regexp.Regexp, name string, v int) string {
	val := strconv.Itoa(v)
	if re.MatchString(tag) {
		replaced := false
		return re.ReplaceAllStringFunc(tag, func(m string) string {
			if replaced {
				return m
			}
			replaced = true
			return m[:1] + name + `="` + val + `"`
		})
	}
	return "<svg " + name + `="` + val + `"` + tag[len("<svg"):]
}

// Dimensions reads numeric width/height from the root element. Unit
// suffixes are dropped; missing or relative values yield 0.
func Dimensions(doc string) (width, height float64) {
	start, end, ok := rootTag(doc)
	if !ok {
		return 0, 0
	}
	tag := doc[start:end]
	return attrNumber(tag, widthAttr), attrNumber(tag, heightAttr)
}

func attrNumber(tag string, re *regexp.Regexp) float64 {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return 0
	}
	v := strings.Trim(m[2], `"'`)
	if strings.HasSuffix(v, "%") {
		return 0
	}
	v = strings.TrimRight(v, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ ")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

// Optimizer minifies svg markup.
type Optimizer struct {
	m         *minify.M
	maxPasses int
}

func NewOptimizer(maxPasses int) *Optimizer {
	if maxPasses < 1 {
		maxPasses = 1
	}
	m := minify.New()
	m.Add(mimeSVG, &svg.Minifier{})
	return &Optimizer{m: m, maxPasses: maxPasses}
}

// Optimize runs the minifier repeatedly until a pass no longer shrinks the
// document or the pass cap is reached.
func (o *Optimizer) Optimize(doc []byte) ([]byte, error) {
	cur := doc
	for pass := 0; pass < o.maxPasses; pass++ {
		out, err := o.m.Bytes(mimeSVG, cur)
		if err != nil {
			return nil, fmt.Errorf("minify pass %d: %w", pass+1, err)
		}
		if len(out) >= len(cur) {
			break
		}
		cur = out
	}
	return cur, nil
}
