package processor

import (
	"github.com/trunov/imageconv/internal/config"
)

// EncodeFunc encodes the prepared image at quality q.
type EncodeFunc func(q int) ([]byte, error)

// SearchResult is the buffer the size search settled on.
type SearchResult struct {
	Data     []byte
	Quality  int
	Attempts int
}

func (r SearchResult) SizeKB() float64 { return float64(len(r.Data)) / 1024 }

// Search hill-climbs the encoder quality until the output lands in
// (targetKB-UndershootKB, targetKB], the quality saturates at either bound,
// or MaxAttempts encodes have been made. Missing the window is not an error:
// the last encoding is returned.
func Search(encode EncodeFunc, targetKB float64, cfg config.SearchConfig) (SearchResult, error) {
	q := clamp(cfg.InitialQuality, cfg.MinQuality, cfg.MaxQuality)

	data, err := encode(q)
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{Data: data, Quality: q, Attempts: 1}

	for !inWindow(res.SizeKB(), targetKB, cfg.UndershootKB) && res.Attempts < cfg.MaxAttempts {
		next := nextQuality(res.Quality, res.SizeKB(), targetKB, cfg)
		if next == res.Quality {
			// Pinned at a bound; encoding again would yield the same buffer.
			break
		}

		data, err := encode(next)
		if err != nil {
			return SearchResult{}, err
		}
		res = SearchResult{Data: data, Quality: next, Attempts: res.Attempts + 1}

		if next == cfg.MinQuality || next == cfg.MaxQuality {
			break
		}
	}

	return res, nil
}

func inWindow(kb, targetKB, undershootKB float64) bool {
	return kb <= targetKB && kb > targetKB-undershootKB
}

// nextQuality steps down on overshoot and up on undershoot. The downward
// step is the larger one since overshoot is the common case.
func nextQuality(q int, kb, targetKB float64, cfg config.SearchConfig) int {
	if kb > targetKB {
		return clamp(q-cfg.StepDown, cfg.MinQuality, cfg.MaxQuality)
	}
	return clamp(q+cfg.StepUp, cfg.MinQuality, cfg.MaxQuality)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPercent bounds a caller supplied percentage to the codec range.
func ClampPercent(p int) int {
	return clamp(p, 1, 100)
}
