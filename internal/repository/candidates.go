package repository

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/corvid-labs/doppel/internal/models"
)

// LoadCandidates reads the candidate input file. Each candidate carries its
// zero-based line number; lines that fail to parse or lack a solution are
// skipped with a warning, all other lines still processed.
func LoadCandidates(path string) ([]models.Candidate, error) {
	candidates := make([]models.Candidate, 0)
	skipped := 0

	err := forEachLine(path, func(index int, line []byte) {
		var cand models.Candidate
		if err := json.Unmarshal(line, &cand); err != nil || cand.Solution == "" {
			skipped++
			log.Warn().
				Str("file", path).
				Int("line", index).
				Msg("Skipping malformed candidate record")
			return
		}
		cand.Index = index
		candidates = append(candidates, cand)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	if skipped > 0 {
		log.Warn().
			Str("file", path).
			Int("skipped", skipped).
			Msg("Skipped malformed candidate records")
	}
	return candidates, nil
}

// LoadResults reads a stage-1 output file back as candidate results (stage 2's
// input). Index carries the zero-based line number; malformed lines are skipped
// with a warning.
func LoadResults(path string) ([]models.CandidateResult, error) {
	results := make([]models.CandidateResult, 0)
	skipped := 0

	err := forEachLine(path, func(index int, line []byte) {
		var res models.CandidateResult
		if err := json.Unmarshal(line, &res); err != nil {
			skipped++
			log.Warn().
				Str("file", path).
				Int("line", index).
				Msg("Skipping malformed result record")
			return
		}
		res.Index = index
		results = append(results, res)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	if skipped > 0 {
		log.Warn().
			Str("file", path).
			Int("skipped", skipped).
			Msg("Skipped malformed result records")
	}
	return results, nil
}
