// Package fuzzy scores candidate solutions against corpus chunks with a
// normalized edit-similarity ratio.
package fuzzy

import (
	"math"

	"github.com/hbollon/go-edlib"

	"github.com/corvid-labs/doppel/internal/models"
)

// Scorer finds the corpus window most similar to a candidate. Windows slide
// within each chunk record separately so the matched text is always an excerpt
// of exactly one original record. The scorer applies no threshold; it always
// reports the best window found, even at score 0.
type Scorer struct {
	stridePercent float64
	fast          bool
}

// NewScorer creates a scorer. stridePercent is the sliding-window step as a
// fraction of the candidate length; fast mode scores each whole record once
// instead of sliding.
func NewScorer(stridePercent float64, fast bool) *Scorer {
	if stridePercent <= 0 || stridePercent > 1 {
		stridePercent = 0.05
	}
	return &Scorer{
		stridePercent: stridePercent,
		fast:          fast,
	}
}

// Score returns the best window match for candidate within chunk. Ties keep the
// first window in scan order.
func (s *Scorer) Score(candidate string, chunk *models.CorpusChunk) models.WindowMatch {
	best := models.WindowMatch{Score: -1}
	for _, record := range chunk.Records {
		var m models.WindowMatch
		if s.fast {
			m = models.WindowMatch{Score: Ratio(candidate, record), MatchedText: record}
		} else {
			m = s.slide(candidate, record)
		}
		if m.Score > best.Score {
			best = m
		}
	}
	if best.Score < 0 {
		return models.WindowMatch{}
	}
	return best
}

// slide scores candidate against every stride-aligned window of record. The
// final window ending exactly at the record's end is always scored, so a record
// equal to the candidate reaches the exact-match ceiling regardless of stride.
func (s *Scorer) slide(candidate, record string) models.WindowMatch {
	cand := []rune(candidate)
	rec := []rune(record)
	window := len(cand)
	if window == 0 || len(rec) <= window {
		return models.WindowMatch{Score: Ratio(candidate, record), MatchedText: record}
	}

	stride := int(float64(window) * s.stridePercent)
	if stride < 1 {
		stride = 1
	}

	best := models.WindowMatch{Score: -1}
	last := len(rec) - window
	scoredLast := false
	for start := 0; start <= last; start += stride {
		text := string(rec[start : start+window])
		if sc := Ratio(candidate, text); sc > best.Score {
			best = models.WindowMatch{Score: sc, MatchedText: text}
		}
		if start == last {
			scoredLast = true
		}
	}
	if !scoredLast {
		text := string(rec[last:])
		if sc := Ratio(candidate, text); sc > best.Score {
			best = models.WindowMatch{Score: sc, MatchedText: text}
		}
	}
	return best
}

// Ratio returns the normalized Levenshtein similarity between two strings
// scaled to 0..100. It is commutative in its arguments.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return int(math.Round(float64(sim) * 100))
}
