package models

// WindowMatch is the best window found when scoring one candidate against one
// chunk. Score is a normalized edit-similarity ratio in 0..100.
type WindowMatch struct {
	Score       int
	MatchedText string
}

// ChunkResult represents the best window match inside a single chunk, retained
// only when detailed results are requested.
type ChunkResult struct {
	ChunkIndex      int    `json:"chunk_index"`
	ClosestSolution string `json:"closest_solution"`
	Score           int    `json:"score"`
}

// CandidateResult represents one stage-1 output record: the reduction of all
// per-chunk bests for one candidate. ClosestSolution is nil only when the corpus
// produced no windows at all. ChunkResults is nil in non-detailed mode and an
// ordered (chunk_index ascending) slice in detailed mode, empty when no chunk
// passed the threshold.
type CandidateResult struct {
	Solution        string        `json:"solution"`
	Score           int           `json:"score"`
	ClosestSolution *string       `json:"closest_solution"`
	ChunkResults    []ChunkResult `json:"chunk_results"`
	Index           int           `json:"-"`
}

// SemanticMatch references a corpus excerpt inside a semantic unit by its
// original chunk index.
type SemanticMatch struct {
	ChunkIndex int `json:"chunk_index"`
	Score      int `json:"score"`
}

// ProgramSemanticResult represents one stage-2 output record. ProgramIndex is
// the zero-based line number in the stage-2 input file. ProgramBestMatches is
// always present, sorted descending by score (ties ascending by chunk index),
// and empty when analysis found nothing or failed for this program.
type ProgramSemanticResult struct {
	ProgramIndex       int             `json:"program_index"`
	ProgramBestMatches []SemanticMatch `json:"program_best_matches"`
}
