package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/doppel/internal/models"
)

// sliceSource replays a fixed chunk sequence, optionally failing after it.
type sliceSource struct {
	chunks    []*models.CorpusChunk
	pos       int
	failAfter error
}

func (s *sliceSource) Next() (*models.CorpusChunk, error) {
	if s.pos >= len(s.chunks) {
		if s.failAfter != nil {
			return nil, s.failAfter
		}
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func makeChunks(n int) []*models.CorpusChunk {
	chunks := make([]*models.CorpusChunk, n)
	for i := range chunks {
		chunks[i] = &models.CorpusChunk{Index: i, Records: []string{fmt.Sprintf("record %d", i)}}
	}
	return chunks
}

// scriptScorer returns a fixed score per chunk index.
type scriptScorer struct {
	scores map[int]int
}

func (s *scriptScorer) Score(candidate string, chunk *models.CorpusChunk) models.WindowMatch {
	return models.WindowMatch{
		Score:       s.scores[chunk.Index],
		MatchedText: fmt.Sprintf("chunk-%d", chunk.Index),
	}
}

// hashScorer derives a deterministic score from the (candidate, chunk) pair.
type hashScorer struct{}

func (hashScorer) Score(candidate string, chunk *models.CorpusChunk) models.WindowMatch {
	return models.WindowMatch{
		Score:       (len(candidate)*7 + chunk.Index*13) % 101,
		MatchedText: fmt.Sprintf("chunk-%d", chunk.Index),
	}
}

// countingScorer records how often every (candidate, chunk) pair is scored.
type countingScorer struct {
	mu   sync.Mutex
	seen map[string]int
}

func (c *countingScorer) Score(candidate string, chunk *models.CorpusChunk) models.WindowMatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[fmt.Sprintf("%s|%d", candidate, chunk.Index)]++
	return models.WindowMatch{Score: 1, MatchedText: "m"}
}

func candidatesOf(solutions ...string) []models.Candidate {
	out := make([]models.Candidate, len(solutions))
	for i, s := range solutions {
		out[i] = models.Candidate{Index: i, Solution: s}
	}
	return out
}

func TestEngineScan_BestAcrossChunks(t *testing.T) {
	scorer := &scriptScorer{scores: map[int]int{0: 10, 1: 80, 2: 45}}
	engine := NewEngine(scorer, 2, 0, false)

	results, err := engine.Scan(context.Background(), candidatesOf("x"), &sliceSource{chunks: makeChunks(3)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 80, results[0].Score)
	require.NotNil(t, results[0].ClosestSolution)
	assert.Equal(t, "chunk-1", *results[0].ClosestSolution)
	assert.Nil(t, results[0].ChunkResults)
}

func TestEngineScan_TieBreaksToLowerChunk(t *testing.T) {
	scorer := &scriptScorer{scores: map[int]int{0: 70, 1: 70, 2: 30}}
	engine := NewEngine(scorer, 4, 0, false)

	// Arrival order varies between runs; the winner must not.
	for i := 0; i < 25; i++ {
		results, err := engine.Scan(context.Background(), candidatesOf("x"), &sliceSource{chunks: makeChunks(3)})
		require.NoError(t, err)
		require.NotNil(t, results[0].ClosestSolution)
		assert.Equal(t, 70, results[0].Score)
		assert.Equal(t, "chunk-0", *results[0].ClosestSolution)
	}
}

func TestEngineScan_DeterministicAcrossWorkerCounts(t *testing.T) {
	candidates := candidatesOf("a", "bb", "ccc")

	var base []models.CandidateResult
	for _, workers := range []int{1, 4, 8} {
		engine := NewEngine(hashScorer{}, workers, 50, true)
		results, err := engine.Scan(context.Background(), candidates, &sliceSource{chunks: makeChunks(40)})
		require.NoError(t, err)

		if base == nil {
			base = results
			continue
		}
		require.Equal(t, base, results, "workers=%d changed the output", workers)
	}
}

func TestEngineScan_ScoresEveryPairExactlyOnce(t *testing.T) {
	scorer := &countingScorer{seen: make(map[string]int)}
	engine := NewEngine(scorer, 3, 0, false)
	candidates := candidatesOf("a", "b", "c")

	_, err := engine.Scan(context.Background(), candidates, &sliceSource{chunks: makeChunks(5)})
	require.NoError(t, err)

	assert.Len(t, scorer.seen, 15)
	for pair, n := range scorer.seen {
		assert.Equal(t, 1, n, "pair %s scored %d times", pair, n)
	}
}

func TestEngineScan_EmptyCorpus(t *testing.T) {
	engine := NewEngine(&scriptScorer{}, 2, 0, false)

	results, err := engine.Scan(context.Background(), candidatesOf("x", "y"), &sliceSource{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, 0, res.Score)
		assert.Nil(t, res.ClosestSolution)
		assert.Nil(t, res.ChunkResults)
	}
}

func TestEngineScan_EmptyCorpusDetailed(t *testing.T) {
	engine := NewEngine(&scriptScorer{}, 2, 0, true)

	results, err := engine.Scan(context.Background(), candidatesOf("x"), &sliceSource{})
	require.NoError(t, err)

	require.NotNil(t, results[0].ChunkResults)
	assert.Len(t, results[0].ChunkResults, 0)
}

func TestEngineScan_DetailedRespectsThreshold(t *testing.T) {
	scorer := &scriptScorer{scores: map[int]int{0: 50, 1: 60, 2: 90}}
	engine := NewEngine(scorer, 2, 60, true)

	results, err := engine.Scan(context.Background(), candidatesOf("x"), &sliceSource{chunks: makeChunks(3)})
	require.NoError(t, err)

	details := results[0].ChunkResults
	require.Len(t, details, 2)
	assert.Equal(t, 1, details[0].ChunkIndex)
	assert.Equal(t, 60, details[0].Score)
	assert.Equal(t, 2, details[1].ChunkIndex)
	assert.Equal(t, 90, details[1].Score)

	// The top-level best equals the best retained detail.
	assert.Equal(t, 90, results[0].Score)
}

func TestEngineScan_TopLevelBestIgnoresThreshold(t *testing.T) {
	scorer := &scriptScorer{scores: map[int]int{0: 10, 1: 30}}
	engine := NewEngine(scorer, 2, 60, true)

	results, err := engine.Scan(context.Background(), candidatesOf("x"), &sliceSource{chunks: makeChunks(2)})
	require.NoError(t, err)

	assert.Equal(t, 30, results[0].Score)
	require.NotNil(t, results[0].ChunkResults)
	assert.Len(t, results[0].ChunkResults, 0)
}

func TestEngineScan_SourceErrorAborts(t *testing.T) {
	source := &sliceSource{chunks: makeChunks(2), failAfter: errors.New("disk gone")}
	engine := NewEngine(&scriptScorer{}, 2, 0, false)

	results, err := engine.Scan(context.Background(), candidatesOf("x"), source)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus scan aborted")
	assert.Nil(t, results)
}

func TestEngineScan_PreservesCandidateOrder(t *testing.T) {
	scorer := &scriptScorer{scores: map[int]int{0: 5}}
	engine := NewEngine(scorer, 4, 0, false)
	candidates := candidatesOf("first", "second", "third", "fourth")

	results, err := engine.Scan(context.Background(), candidates, &sliceSource{chunks: makeChunks(1)})
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		assert.Equal(t, candidates[i].Solution, res.Solution)
	}
}
