package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/corvid-labs/doppel/internal/models"
)

// ResultsRepository writes stage outputs as newline-delimited JSON under a
// result directory.
type ResultsRepository struct {
	dir string
}

// NewResultsRepository creates the result directory if needed.
func NewResultsRepository(dir string) (*ResultsRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory %s: %w", dir, err)
	}
	return &ResultsRepository{dir: dir}, nil
}

// WriteCandidateResults writes one stage-1 record per candidate.
func (r *ResultsRepository) WriteCandidateResults(name string, results []models.CandidateResult) error {
	if err := writeLines(filepath.Join(r.dir, name), results); err != nil {
		return fmt.Errorf("failed to write candidate results: %w", err)
	}
	return nil
}

// WriteProgramResults writes one stage-2 record per program.
func (r *ResultsRepository) WriteProgramResults(name string, results []models.ProgramSemanticResult) error {
	if err := writeLines(filepath.Join(r.dir, name), results); err != nil {
		return fmt.Errorf("failed to write program results: %w", err)
	}
	return nil
}

// Path returns the location of a result file inside the repository.
func (r *ResultsRepository) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// FuzzyOutputName derives the stage-1 output file name from the input file.
func FuzzyOutputName(inputPath string) string {
	return "FuzzyMatch_" + filepath.Base(inputPath)
}

// SemanticOutputName derives the stage-2 output file name from the input file.
func SemanticOutputName(inputPath string) string {
	return "SemanticMatch_" + filepath.Base(inputPath)
}
