// Package match distributes chunk scans across a worker pool and reduces the
// partial results into one deterministic best match per candidate.
package match

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/corvid-labs/doppel/internal/models"
	"github.com/corvid-labs/doppel/internal/pool"
)

// Scorer scores one candidate against one chunk.
type Scorer interface {
	Score(candidate string, chunk *models.CorpusChunk) models.WindowMatch
}

// ChunkSource streams corpus chunks in index order. Next returns io.EOF after
// the last chunk.
type ChunkSource interface {
	Next() (*models.CorpusChunk, error)
}

// Engine scans every candidate against a streamed corpus. Each chunk is scored
// by exactly one worker; the single collecting goroutine merges chunk results
// with a max-with-tiebreak reduction, so output is identical for any worker
// count and any result arrival order.
type Engine struct {
	scorer    Scorer
	workers   int
	threshold int
	detailed  bool
}

// NewEngine creates an engine. threshold filters which per-chunk bests are
// retained as details when detailed mode is on; it never affects the top-level
// best.
func NewEngine(scorer Scorer, workers, threshold int, detailed bool) *Engine {
	return &Engine{
		scorer:    scorer,
		workers:   workers,
		threshold: threshold,
		detailed:  detailed,
	}
}

// chunkOutcome carries one chunk's best window per candidate back to the
// collector. bests is indexed by candidate position.
type chunkOutcome struct {
	chunkIndex int
	bests      []models.WindowMatch
}

// scanJob scores all candidates against one chunk.
type scanJob struct {
	chunk      *models.CorpusChunk
	candidates []models.Candidate
	scorer     Scorer
	results    chan<- chunkOutcome
}

func (j *scanJob) Execute(ctx context.Context) error {
	bests := make([]models.WindowMatch, len(j.candidates))
	for i, cand := range j.candidates {
		bests[i] = j.scorer.Score(cand.Solution, j.chunk)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.results <- chunkOutcome{chunkIndex: j.chunk.Index, bests: bests}:
		return nil
	}
}

// accumulator holds the running reduction for one candidate.
type accumulator struct {
	best      models.WindowMatch
	bestChunk int
	details   []models.ChunkResult
}

// Scan streams chunks from source, scores each (candidate, chunk) pair exactly
// once, and returns one CandidateResult per candidate in input order. A source
// error aborts the scan with no results.
func (e *Engine) Scan(ctx context.Context, candidates []models.Candidate, source ChunkSource) ([]models.CandidateResult, error) {
	accs := make([]accumulator, len(candidates))
	for i := range accs {
		accs[i].best.Score = -1
		accs[i].bestChunk = -1
	}

	outcomes := make(chan chunkOutcome, e.workers*2)
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for oc := range outcomes {
			e.merge(accs, oc)
		}
	}()

	p := pool.NewWorkerPool(ctx, e.workers)
	chunks := 0
	var scanErr error
	for {
		chunk, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			scanErr = err
			break
		}
		job := &scanJob{
			chunk:      chunk,
			candidates: candidates,
			scorer:     e.scorer,
			results:    outcomes,
		}
		if err := p.Submit(job); err != nil {
			scanErr = err
			break
		}
		chunks++
	}
	p.Close()
	close(outcomes)
	<-collectDone

	if scanErr != nil {
		return nil, fmt.Errorf("corpus scan aborted: %w", scanErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info().
		Int("chunks", chunks).
		Int("candidates", len(candidates)).
		Msg("Corpus scan complete")

	return e.results(candidates, accs), nil
}

// merge folds one chunk outcome into the per-candidate accumulators. The
// reduction is associative and commutative: higher score wins, equal scores go
// to the lower chunk index.
func (e *Engine) merge(accs []accumulator, oc chunkOutcome) {
	for i := range oc.bests {
		wm := oc.bests[i]
		a := &accs[i]
		if wm.Score > a.best.Score || (wm.Score == a.best.Score && oc.chunkIndex < a.bestChunk) {
			a.best = wm
			a.bestChunk = oc.chunkIndex
		}
		if e.detailed && wm.Score >= e.threshold {
			a.details = append(a.details, models.ChunkResult{
				ChunkIndex:      oc.chunkIndex,
				ClosestSolution: wm.MatchedText,
				Score:           wm.Score,
			})
		}
	}
}

func (e *Engine) results(candidates []models.Candidate, accs []accumulator) []models.CandidateResult {
	out := make([]models.CandidateResult, len(candidates))
	for i, cand := range candidates {
		a := &accs[i]
		res := models.CandidateResult{
			Solution: cand.Solution,
			Index:    cand.Index,
		}
		if a.bestChunk >= 0 {
			res.Score = a.best.Score
			matched := a.best.MatchedText
			res.ClosestSolution = &matched
		}
		if e.detailed {
			details := a.details
			if details == nil {
				details = make([]models.ChunkResult, 0)
			}
			sort.Slice(details, func(x, y int) bool {
				return details[x].ChunkIndex < details[y].ChunkIndex
			})
			res.ChunkResults = details
		}
		out[i] = res
	}
	return out
}
