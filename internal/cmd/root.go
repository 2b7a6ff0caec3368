// Package cmd contains all CLI commands for doppel.
package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/doppel/internal/config"
	"github.com/corvid-labs/doppel/internal/configs/env"
	"github.com/corvid-labs/doppel/internal/logger"
)

var (
	// Version is the current version of doppel
	Version = "0.1.0"

	// cfg is loaded from the environment before any subcommand runs;
	// subcommands overlay their own flags on top of it.
	cfg *config.Config

	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doppel",
	Short: "Corpus contamination scanner for generated programs",
	Long: `doppel measures how closely generated candidate programs match a large
training corpus.

It runs in two stages. The fuzzy stage streams the corpus in bounded chunks
and slides an edit-distance window over every record to find each candidate's
best match. The semantic stage takes those fuzzy results, packs the top
matching excerpts per program into isolated comparison units, and runs an
external structural-similarity analyzer over each unit.

Both stages read and write JSON Lines files, so they can run on different
machines or days apart.

Examples:
  doppel fetch --base-url https://corpus.example.com/v1 --out corpus
  doppel fuzzy --input candidates.jsonl --corpus corpus --detailed
  doppel semantic --input results/FuzzyMatch_candidates.jsonl`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := env.LoadEnv(); err != nil {
			log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		logger.Init(cfg.LogLevel)
		return nil
	},
}

// Execute runs the root command with the given context. It is called by
// main.main() and exits non-zero when a command fails.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")
}
