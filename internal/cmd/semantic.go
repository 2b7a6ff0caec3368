// Package cmd implements the semantic command for the doppel CLI.
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/doppel/internal/repository"
	"github.com/corvid-labs/doppel/internal/semantic"
	"github.com/corvid-labs/doppel/internal/shard"
)

// semanticCmd represents the semantic command
var semanticCmd = &cobra.Command{
	Use:   "semantic",
	Short: "Run the structural-similarity analyzer over fuzzy scan results",
	Long: `Semantic reads a fuzzy results file, packs each program's best matching
corpus excerpts into an isolated comparison unit on disk, and runs the
external analyzer over every unit concurrently. One JSON line per program is
written to <result-dir>/SemanticMatch_<input>.

The fuzzy scan must have run with --detailed so per-chunk excerpts are
available to compare against.

Examples:
  doppel semantic --input results/FuzzyMatch_candidates.jsonl
  doppel semantic -i results/FuzzyMatch_candidates.jsonl --top 100 --workers 8
  doppel semantic -i results/FuzzyMatch_candidates.jsonl --keep-workspace`,
	RunE: runSemantic,
}

// Command-line flags
var (
	semanticInput     string
	semanticResultDir string
	semanticWorkspace string
	semanticTop       int
	semanticWorkers   int
	semanticAnalyzer  string
	semanticLanguage  string
	semanticTimeout   int
	semanticKeep      bool
)

func init() {
	rootCmd.AddCommand(semanticCmd)

	semanticCmd.Flags().StringVarP(&semanticInput, "input", "i", "", "Fuzzy results JSONL file (required)")
	semanticCmd.Flags().StringVarP(&semanticResultDir, "result-dir", "o", "results", "Directory for result files")
	semanticCmd.Flags().StringVar(&semanticWorkspace, "workspace", "", "Directory for comparison units (default <result-dir>/shards)")
	semanticCmd.Flags().IntVar(&semanticTop, "top", 0, "Max excerpts per comparison unit")
	semanticCmd.Flags().IntVar(&semanticWorkers, "workers", 0, "Concurrent analyzer processes")
	semanticCmd.Flags().StringVar(&semanticAnalyzer, "analyzer", "", "Analyzer binary to invoke")
	semanticCmd.Flags().StringVar(&semanticLanguage, "language", "", "Source language passed to the analyzer")
	semanticCmd.Flags().IntVar(&semanticTimeout, "timeout-minutes", 0, "Per-unit analyzer timeout in minutes (0 = none)")
	semanticCmd.Flags().BoolVar(&semanticKeep, "keep-workspace", false, "Keep comparison units on disk after the run")

	semanticCmd.MarkFlagRequired("input")
}

// runSemantic implements the semantic command logic
func runSemantic(cmd *cobra.Command, args []string) error {
	// CLI flags take precedence over environment configuration.
	flags := cmd.Flags()
	if flags.Changed("top") {
		cfg.ShardTopN = semanticTop
	}
	if flags.Changed("workers") {
		cfg.SemanticWorkers = semanticWorkers
	}
	if flags.Changed("analyzer") {
		cfg.AnalyzerBin = semanticAnalyzer
	}
	if flags.Changed("language") {
		cfg.AnalyzerLanguage = semanticLanguage
	}
	if flags.Changed("timeout-minutes") {
		cfg.AnalyzerTimeout = time.Duration(semanticTimeout) * time.Minute
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	workspace := semanticWorkspace
	if workspace == "" {
		workspace = filepath.Join(semanticResultDir, "shards")
	}

	ctx := cmd.Context()
	start := time.Now()

	results, err := repository.LoadResults(semanticInput)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no fuzzy results found in %s", semanticInput)
	}

	builder, err := shard.NewBuilder(workspace, cfg.ShardTopN)
	if err != nil {
		return err
	}
	units := builder.Build(results)
	if !semanticKeep {
		defer builder.Cleanup()
	}

	analyzer := semantic.NewDolosClient(cfg.AnalyzerBin, cfg.AnalyzerLanguage, cfg.AnalyzerTimeout)
	orchestrator := semantic.NewOrchestrator(analyzer, cfg.SemanticWorkers)

	report, err := orchestrator.Run(ctx, units)
	if err != nil {
		return err
	}

	repo, err := repository.NewResultsRepository(semanticResultDir)
	if err != nil {
		return err
	}
	outName := repository.SemanticOutputName(semanticInput)
	if err := repo.WriteProgramResults(outName, report); err != nil {
		return err
	}

	log.Info().
		Int("programs", len(report)).
		Str("output", repo.Path(outName)).
		Dur("elapsed", time.Since(start)).
		Msg("Semantic analysis finished")
	return nil
}
