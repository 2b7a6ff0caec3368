package config

import (
	"fmt"
	"time"

	"github.com/corvid-labs/doppel/internal/configs/env"
)

// Config holds all configuration for the application
type Config struct {
	// Corpus chunking
	ChunkSize      int
	MaxCorpusFiles int
	MaxChunks      int

	// Fuzzy matching
	FuzzyWorkers    int
	FuzzThreshold   int
	StridePercent   float64
	FastMode        bool
	DetailedResults bool
	TopKResults     int

	// Semantic analysis
	SemanticWorkers  int
	ShardTopN        int
	AnalyzerBin      string
	AnalyzerLanguage string
	AnalyzerTimeout  time.Duration

	// Corpus fetch
	FetchBaseURL     string
	FetchPartPattern string
	FetchParts       int
	FetchConcurrency int
	RateLimitRPS     float64

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Corpus chunking
	cfg.ChunkSize = env.GetEnvInt("CHUNK_SIZE", 2_000_000)
	cfg.MaxCorpusFiles = env.GetEnvInt("MAX_CORPUS_FILES", 0)
	cfg.MaxChunks = env.GetEnvInt("MAX_CHUNKS", 0)

	// Fuzzy matching
	cfg.FuzzyWorkers = env.GetEnvInt("FUZZY_WORKERS", 8)
	cfg.FuzzThreshold = env.GetEnvInt("FUZZ_THRESHOLD", 60)
	cfg.StridePercent = env.GetEnvFloat("STRIDE_PERCENT", 0.05)
	cfg.FastMode = env.GetEnvBool("FAST_MODE", false)
	cfg.DetailedResults = env.GetEnvBool("DETAILED_RESULTS", false)
	cfg.TopKResults = env.GetEnvInt("TOP_K_RESULTS", 0)

	// Semantic analysis
	cfg.SemanticWorkers = env.GetEnvInt("SEMANTIC_WORKERS", 16)
	cfg.ShardTopN = env.GetEnvInt("SHARD_TOP_N", 500)
	cfg.AnalyzerBin = env.GetEnv("ANALYZER_BIN", "dolos")
	cfg.AnalyzerLanguage = env.GetEnv("ANALYZER_LANGUAGE", "python")
	timeoutMinutes := env.GetEnvInt("ANALYZER_TIMEOUT_MINUTES", 10)
	cfg.AnalyzerTimeout = time.Duration(timeoutMinutes) * time.Minute

	// Corpus fetch
	cfg.FetchBaseURL = env.GetEnv("CORPUS_BASE_URL", "")
	cfg.FetchPartPattern = env.GetEnv("CORPUS_PART_PATTERN", "part_%d.jsonl.gz")
	cfg.FetchParts = env.GetEnvInt("FETCH_PARTS", 10)
	cfg.FetchConcurrency = env.GetEnvInt("FETCH_CONCURRENCY", 4)
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 2.0)

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.FuzzyWorkers <= 0 {
		return fmt.Errorf("FUZZY_WORKERS must be greater than 0")
	}
	if c.SemanticWorkers <= 0 {
		return fmt.Errorf("SEMANTIC_WORKERS must be greater than 0")
	}
	if c.FuzzThreshold < 0 || c.FuzzThreshold > 100 {
		return fmt.Errorf("FUZZ_THRESHOLD must be between 0 and 100")
	}
	if c.StridePercent <= 0 || c.StridePercent > 1 {
		return fmt.Errorf("STRIDE_PERCENT must be in (0, 1]")
	}
	if c.MaxCorpusFiles < 0 {
		return fmt.Errorf("MAX_CORPUS_FILES must not be negative")
	}
	if c.MaxChunks < 0 {
		return fmt.Errorf("MAX_CHUNKS must not be negative")
	}
	if c.TopKResults < 0 {
		return fmt.Errorf("TOP_K_RESULTS must not be negative")
	}
	if c.ShardTopN <= 0 {
		return fmt.Errorf("SHARD_TOP_N must be greater than 0")
	}
	if c.AnalyzerBin == "" {
		return fmt.Errorf("ANALYZER_BIN is required")
	}
	if c.AnalyzerLanguage == "" {
		return fmt.Errorf("ANALYZER_LANGUAGE is required")
	}
	if c.AnalyzerTimeout < 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT_MINUTES must not be negative")
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be greater than 0")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be greater than 0")
	}
	return nil
}
