package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/doppel/internal/models"
)

func detailsOf(pairs ...[2]int) []models.ChunkResult {
	out := make([]models.ChunkResult, len(pairs))
	for i, p := range pairs {
		out[i] = models.ChunkResult{ChunkIndex: p[0], Score: p[1]}
	}
	return out
}

func chunkIndexes(details []models.ChunkResult) []int {
	out := make([]int, len(details))
	for i, d := range details {
		out[i] = d.ChunkIndex
	}
	return out
}

func TestAggregate_OrdersByCandidateIndex(t *testing.T) {
	a := NewAggregator(0, 0)
	results := []models.CandidateResult{
		{Index: 2, Solution: "c"},
		{Index: 0, Solution: "a"},
		{Index: 1, Solution: "b"},
	}

	out := a.Aggregate(results)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Solution, out[1].Solution, out[2].Solution})
}

func TestAggregate_EveryCandidateKept(t *testing.T) {
	a := NewAggregator(90, 0)
	results := []models.CandidateResult{
		{Index: 0, Solution: "a", Score: 0},
		{Index: 1, Solution: "b", Score: 12},
	}

	out := a.Aggregate(results)

	// The threshold shapes details only; low scorers are never dropped.
	assert.Len(t, out, 2)
}

func TestAggregate_TopKKeepsHighestScores(t *testing.T) {
	a := NewAggregator(0, 2)
	results := []models.CandidateResult{{
		Index:        0,
		ChunkResults: detailsOf([2]int{0, 70}, [2]int{1, 95}, [2]int{2, 70}, [2]int{3, 80}),
	}}

	out := a.Aggregate(results)

	assert.Equal(t, []int{1, 3}, chunkIndexes(out[0].ChunkResults))
}

func TestAggregate_TopKTieKeepsLowerChunk(t *testing.T) {
	a := NewAggregator(0, 2)
	results := []models.CandidateResult{{
		Index:        0,
		ChunkResults: detailsOf([2]int{0, 70}, [2]int{1, 70}, [2]int{2, 90}),
	}}

	out := a.Aggregate(results)

	assert.Equal(t, []int{0, 2}, chunkIndexes(out[0].ChunkResults))
}

func TestAggregate_RefiltersThreshold(t *testing.T) {
	a := NewAggregator(75, 0)
	results := []models.CandidateResult{{
		Index:        0,
		ChunkResults: detailsOf([2]int{0, 70}, [2]int{1, 80}, [2]int{2, 74}),
	}}

	out := a.Aggregate(results)

	assert.Equal(t, []int{1}, chunkIndexes(out[0].ChunkResults))
}

func TestAggregate_NilDetailsStayNil(t *testing.T) {
	a := NewAggregator(0, 3)
	results := []models.CandidateResult{{Index: 0, ChunkResults: nil}}

	out := a.Aggregate(results)

	assert.Nil(t, out[0].ChunkResults)
}

func TestAggregate_EmptyDetailsStayEmpty(t *testing.T) {
	a := NewAggregator(0, 3)
	results := []models.CandidateResult{{Index: 0, ChunkResults: []models.ChunkResult{}}}

	out := a.Aggregate(results)

	require.NotNil(t, out[0].ChunkResults)
	assert.Len(t, out[0].ChunkResults, 0)
}
