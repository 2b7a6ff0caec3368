// Package cmd implements the fetch command for the doppel CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/doppel/internal/fetch"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download corpus part files to a local directory",
	Long: `Fetch mirrors numbered corpus part files from an HTTP endpoint into a
local directory, ready for the fuzzy command to scan. Parts already on disk
are skipped, so an interrupted fetch resumes where it stopped.

Examples:
  doppel fetch --base-url https://corpus.example.com/v1
  doppel fetch --base-url https://corpus.example.com/v1 --parts 50 --out corpus`,
	RunE: runFetch,
}

// Command-line flags
var (
	fetchBaseURL     string
	fetchOut         string
	fetchParts       int
	fetchPattern     string
	fetchConcurrency int
	fetchRPS         float64
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", "", "Base URL serving corpus parts")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "corpus", "Directory to download parts into")
	fetchCmd.Flags().IntVar(&fetchParts, "parts", 0, "Number of parts to download")
	fetchCmd.Flags().StringVar(&fetchPattern, "pattern", "", "Part filename pattern, e.g. part_%d.jsonl.gz")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 0, "Concurrent downloads")
	fetchCmd.Flags().Float64Var(&fetchRPS, "rps", 0, "Request rate limit per second")
}

// runFetch implements the fetch command logic
func runFetch(cmd *cobra.Command, args []string) error {
	// CLI flags take precedence over environment configuration.
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.FetchBaseURL = fetchBaseURL
	}
	if flags.Changed("parts") {
		cfg.FetchParts = fetchParts
	}
	if flags.Changed("pattern") {
		cfg.FetchPartPattern = fetchPattern
	}
	if flags.Changed("concurrency") {
		cfg.FetchConcurrency = fetchConcurrency
	}
	if flags.Changed("rps") {
		cfg.RateLimitRPS = fetchRPS
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.FetchBaseURL == "" {
		return fmt.Errorf("a corpus base URL is required, set --base-url or CORPUS_BASE_URL")
	}
	if cfg.FetchParts <= 0 {
		return fmt.Errorf("parts must be greater than 0, got %d", cfg.FetchParts)
	}

	fetcher := fetch.NewFetcher(cfg.FetchBaseURL, cfg.FetchPartPattern, cfg.RateLimitRPS, cfg.FetchConcurrency)
	return fetcher.FetchParts(cmd.Context(), fetchOut, cfg.FetchParts)
}
