package match

import (
	"sort"

	"github.com/corvid-labs/doppel/internal/models"
)

// Aggregator shapes raw per-candidate results into the output record sequence.
// It is a 1:1 transform: every candidate yields exactly one record, even with a
// zero best score.
type Aggregator struct {
	threshold int
	topK      int
}

// NewAggregator creates an aggregator. topK caps the number of retained
// chunk-level details per candidate; topK <= 0 keeps them all.
func NewAggregator(threshold, topK int) *Aggregator {
	return &Aggregator{
		threshold: threshold,
		topK:      topK,
	}
}

// Aggregate returns one record per candidate, ordered by candidate index.
// Details below the threshold are dropped; when topK is set, only the
// highest-scoring topK details survive (ties to the lower chunk index), then
// chunk-index order is restored.
func (a *Aggregator) Aggregate(results []models.CandidateResult) []models.CandidateResult {
	out := make([]models.CandidateResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})

	for i := range out {
		if out[i].ChunkResults == nil {
			continue
		}
		out[i].ChunkResults = a.shapeDetails(out[i].ChunkResults)
	}
	return out
}

func (a *Aggregator) shapeDetails(details []models.ChunkResult) []models.ChunkResult {
	kept := make([]models.ChunkResult, 0, len(details))
	for _, d := range details {
		if d.Score >= a.threshold {
			kept = append(kept, d)
		}
	}

	if a.topK > 0 && len(kept) > a.topK {
		sort.SliceStable(kept, func(i, j int) bool {
			if kept[i].Score != kept[j].Score {
				return kept[i].Score > kept[j].Score
			}
			return kept[i].ChunkIndex < kept[j].ChunkIndex
		})
		kept = kept[:a.topK]
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].ChunkIndex < kept[j].ChunkIndex
	})
	return kept
}
