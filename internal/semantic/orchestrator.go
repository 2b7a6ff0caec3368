package semantic

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/corvid-labs/doppel/internal/models"
	"github.com/corvid-labs/doppel/internal/pool"
	"github.com/corvid-labs/doppel/internal/shard"
)

// analysisJob analyzes one unit. Failures are captured in the outcome and
// never propagated to sibling units.
type analysisJob struct {
	unit     *shard.Unit
	position int
	analyzer Analyzer
	results  chan<- unitOutcome
}

type unitOutcome struct {
	position int
	result   models.ProgramSemanticResult
}

func (j *analysisJob) Execute(ctx context.Context) error {
	result := models.ProgramSemanticResult{
		ProgramIndex:       j.unit.ProgramIndex,
		ProgramBestMatches: make([]models.SemanticMatch, 0),
	}

	switch {
	case j.unit.BuildErr != nil:
		// Already reported at build time; emit the empty record.
	case j.unit.Empty():
		log.Debug().
			Int("program", j.unit.ProgramIndex).
			Msg("No excerpts to analyze")
	default:
		matches, err := j.analyzer.Analyze(ctx, j.unit)
		if err != nil {
			log.Error().
				Err(err).
				Int("program", j.unit.ProgramIndex).
				Msg("Semantic analysis failed")
		} else if len(matches) > 0 {
			result.ProgramBestMatches = matches
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.results <- unitOutcome{position: j.position, result: result}:
		return nil
	}
}

// Orchestrator fans comparison units out to a pool of analyzer invocations
// and reassembles their results in input order.
type Orchestrator struct {
	analyzer Analyzer
	workers  int
}

// NewOrchestrator creates an orchestrator running at most workers analyzer
// processes concurrently.
func NewOrchestrator(analyzer Analyzer, workers int) *Orchestrator {
	return &Orchestrator{
		analyzer: analyzer,
		workers:  workers,
	}
}

// Run analyzes every unit and returns one result per unit, ordered like the
// input. A failed or empty unit yields a record with no matches; only
// cancellation aborts the batch.
func (o *Orchestrator) Run(ctx context.Context, units []shard.Unit) ([]models.ProgramSemanticResult, error) {
	results := make([]models.ProgramSemanticResult, len(units))
	outcomes := make(chan unitOutcome, len(units))

	p := pool.NewWorkerPool(ctx, o.workers)
	for i := range units {
		job := &analysisJob{
			unit:     &units[i],
			position: i,
			analyzer: o.analyzer,
			results:  outcomes,
		}
		if err := p.Submit(job); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to submit analysis job: %w", err)
		}
	}

	var runErr error
	received := 0
	for received < len(units) && runErr == nil {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case oc := <-outcomes:
			results[oc.position] = oc.result
			received++
		}
	}
	p.Close()
	if runErr != nil {
		return nil, runErr
	}

	log.Info().
		Int("programs", len(units)).
		Msg("Semantic analysis complete")
	return results, nil
}
