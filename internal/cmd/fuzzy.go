// Package cmd implements the fuzzy command for the doppel CLI.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/doppel/internal/corpus"
	"github.com/corvid-labs/doppel/internal/fuzzy"
	"github.com/corvid-labs/doppel/internal/match"
	"github.com/corvid-labs/doppel/internal/repository"
)

// fuzzyCmd represents the fuzzy command
var fuzzyCmd = &cobra.Command{
	Use:   "fuzzy",
	Short: "Scan the corpus for fuzzy matches against candidate programs",
	Long: `Fuzzy streams the corpus as bounded chunks and scores every candidate
program against every chunk with a sliding edit-distance window. Each
candidate's best match across the whole corpus is written as one JSON line to
<result-dir>/FuzzyMatch_<input>.

Examples:
  doppel fuzzy --input candidates.jsonl --corpus corpus
  doppel fuzzy -i candidates.jsonl -c 'corpus/part_*.jsonl.gz' --detailed
  doppel fuzzy -i candidates.jsonl -c corpus --max-chunks 10 --fast`,
	RunE: runFuzzy,
}

// Command-line flags
var (
	fuzzyInput       string
	fuzzyCorpus      string
	fuzzyResultDir   string
	fuzzyCorpusFiles int
	fuzzyMaxChunks   int
	fuzzyChunkSize   int
	fuzzyWorkers     int
	fuzzyThreshold   int
	fuzzyStride      float64
	fuzzyTopK        int
	fuzzyDetailed    bool
	fuzzyFast        bool
)

func init() {
	rootCmd.AddCommand(fuzzyCmd)

	fuzzyCmd.Flags().StringVarP(&fuzzyInput, "input", "i", "", "Candidate programs JSONL file (required)")
	fuzzyCmd.Flags().StringVarP(&fuzzyCorpus, "corpus", "c", "", "Corpus directory or glob pattern (required)")
	fuzzyCmd.Flags().StringVarP(&fuzzyResultDir, "result-dir", "o", "results", "Directory for result files")
	fuzzyCmd.Flags().IntVar(&fuzzyCorpusFiles, "corpus-files", 0, "Max corpus files to scan (0 = all)")
	fuzzyCmd.Flags().IntVar(&fuzzyMaxChunks, "max-chunks", 0, "Max chunks to scan (0 = all)")
	fuzzyCmd.Flags().IntVar(&fuzzyChunkSize, "chunk-size", 0, "Chunk budget in characters")
	fuzzyCmd.Flags().IntVar(&fuzzyWorkers, "workers", 0, "Concurrent scoring workers")
	fuzzyCmd.Flags().IntVar(&fuzzyThreshold, "threshold", 0, "Minimum score for detailed chunk results (0-100)")
	fuzzyCmd.Flags().Float64Var(&fuzzyStride, "stride", 0, "Window stride as a fraction of window size")
	fuzzyCmd.Flags().IntVar(&fuzzyTopK, "top-k", 0, "Keep only the K best detailed chunk results (0 = all)")
	fuzzyCmd.Flags().BoolVar(&fuzzyDetailed, "detailed", false, "Record per-chunk results above the threshold")
	fuzzyCmd.Flags().BoolVar(&fuzzyFast, "fast", false, "Score whole records instead of sliding windows")

	fuzzyCmd.MarkFlagRequired("input")
	fuzzyCmd.MarkFlagRequired("corpus")
}

// runFuzzy implements the fuzzy command logic
func runFuzzy(cmd *cobra.Command, args []string) error {
	if !strings.HasSuffix(fuzzyInput, ".jsonl") {
		return fmt.Errorf("input file must be a .jsonl file, got %s", fuzzyInput)
	}

	// CLI flags take precedence over environment configuration.
	flags := cmd.Flags()
	if flags.Changed("corpus-files") {
		cfg.MaxCorpusFiles = fuzzyCorpusFiles
	}
	if flags.Changed("max-chunks") {
		cfg.MaxChunks = fuzzyMaxChunks
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = fuzzyChunkSize
	}
	if flags.Changed("workers") {
		cfg.FuzzyWorkers = fuzzyWorkers
	}
	if flags.Changed("threshold") {
		cfg.FuzzThreshold = fuzzyThreshold
	}
	if flags.Changed("stride") {
		cfg.StridePercent = fuzzyStride
	}
	if flags.Changed("top-k") {
		cfg.TopKResults = fuzzyTopK
	}
	if flags.Changed("detailed") {
		cfg.DetailedResults = fuzzyDetailed
	}
	if flags.Changed("fast") {
		cfg.FastMode = fuzzyFast
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	start := time.Now()

	paths, err := corpus.Discover(fuzzyCorpus, cfg.MaxCorpusFiles)
	if err != nil {
		return err
	}

	candidates, err := repository.LoadCandidates(fuzzyInput)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no candidate programs found in %s", fuzzyInput)
	}

	reader := corpus.NewReader(paths, cfg.ChunkSize, cfg.MaxChunks)
	scorer := fuzzy.NewScorer(cfg.StridePercent, cfg.FastMode)
	engine := match.NewEngine(scorer, cfg.FuzzyWorkers, cfg.FuzzThreshold, cfg.DetailedResults)

	results, err := engine.Scan(ctx, candidates, reader)
	if err != nil {
		return err
	}

	aggregator := match.NewAggregator(cfg.FuzzThreshold, cfg.TopKResults)
	report := aggregator.Aggregate(results)

	repo, err := repository.NewResultsRepository(fuzzyResultDir)
	if err != nil {
		return err
	}
	outName := repository.FuzzyOutputName(fuzzyInput)
	if err := repo.WriteCandidateResults(outName, report); err != nil {
		return err
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("skipped_records", reader.Skipped()).
		Str("output", repo.Path(outName)).
		Dur("elapsed", time.Since(start)).
		Msg("Fuzzy scan finished")
	return nil
}
