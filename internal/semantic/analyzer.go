// Package semantic orchestrates the external structural-similarity analyzer
// over isolated comparison units and merges its scores per program.
package semantic

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/corvid-labs/doppel/internal/models"
	"github.com/corvid-labs/doppel/internal/shard"
)

// ErrAnalysisFailed indicates the external analyzer errored, timed out, or
// produced unparseable output for one unit.
var ErrAnalysisFailed = errors.New("semantic analysis failed")

// Analyzer runs the external structural-similarity tool against one unit and
// returns its matches, sorted descending by score.
type Analyzer interface {
	Analyze(ctx context.Context, unit *shard.Unit) ([]models.SemanticMatch, error)
}

// DolosClient invokes the dolos CLI on a unit archive and parses the pairwise
// CSV report it writes.
type DolosClient struct {
	bin      string
	language string
	timeout  time.Duration
}

// NewDolosClient creates a client for the given binary and source language.
// timeout bounds each invocation; 0 disables the per-unit deadline.
func NewDolosClient(bin, language string, timeout time.Duration) *DolosClient {
	return &DolosClient{
		bin:      bin,
		language: language,
		timeout:  timeout,
	}
}

// Analyze runs `<bin> run -f csv --language <lang> -o <report> <archive>` and
// extracts the matches touching the canonical program.
func (c *DolosClient) Analyze(ctx context.Context, unit *shard.Unit) ([]models.SemanticMatch, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reportDir := unit.Root + "_report"
	os.RemoveAll(reportDir)
	defer os.RemoveAll(reportDir)

	cmd := exec.CommandContext(ctx, c.bin,
		"run", "-f", "csv", "--language", c.language, "-o", reportDir, unit.ArchivePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrAnalysisFailed, err, strings.TrimSpace(string(out)))
	}

	f, err := os.Open(filepath.Join(reportDir, "pairs.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: missing pairwise report: %w", ErrAnalysisFailed, err)
	}
	defer f.Close()

	matches, err := parsePairs(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return matches, nil
}

// parsePairs reads the analyzer's pairwise similarity table and keeps rows
// connecting the canonical program to a corpus excerpt. Fractional similarity
// scales to 0..100; zero scores are dropped; one best score is kept per chunk;
// matches sort descending by score, ties ascending by chunk index.
func parsePairs(r io.Reader) ([]models.SemanticMatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read report header: %w", err)
	}
	left := columnIndex(header, "leftFilePath", "left_file_path", "left")
	right := columnIndex(header, "rightFilePath", "right_file_path", "right")
	sim := columnIndex(header, "similarity", "score")
	if left < 0 || right < 0 || sim < 0 {
		return nil, fmt.Errorf("pairwise report misses required columns: %v", header)
	}

	bestPerChunk := make(map[int]int)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read report row: %w", err)
		}
		if len(row) <= left || len(row) <= right || len(row) <= sim {
			continue
		}
		chunkIdx, ok := pairChunkIndex(row[left], row[right])
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[sim]), 64)
		if err != nil {
			continue
		}
		score := scaleScore(value)
		if score <= 0 {
			continue
		}
		if prev, seen := bestPerChunk[chunkIdx]; !seen || score > prev {
			bestPerChunk[chunkIdx] = score
		}
	}

	matches := make([]models.SemanticMatch, 0, len(bestPerChunk))
	for idx, score := range bestPerChunk {
		matches = append(matches, models.SemanticMatch{ChunkIndex: idx, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
	return matches, nil
}

// pairChunkIndex identifies a row linking the canonical program to an excerpt
// and returns the excerpt's chunk index.
func pairChunkIndex(leftPath, rightPath string) (int, bool) {
	lb := filepath.Base(strings.TrimSpace(leftPath))
	rb := filepath.Base(strings.TrimSpace(rightPath))

	var excerpt string
	switch {
	case lb == shard.CanonicalFileName:
		excerpt = rb
	case rb == shard.CanonicalFileName:
		excerpt = lb
	default:
		return 0, false
	}
	return chunkIndexFromName(excerpt)
}

// chunkIndexFromName extracts the chunk index embedded in an excerpt filename
// such as closest_solution_42.py.
func chunkIndexFromName(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	pos := strings.LastIndex(stem, "_")
	if pos < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(stem[pos+1:])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// scaleScore maps fractional similarities to 0..100 and rounds, clamping the
// result to the valid range.
func scaleScore(value float64) int {
	if value <= 1.0 {
		value *= 100
	}
	score := int(math.Round(value))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// columnIndex finds the first header cell matching any of the given names,
// case-insensitively.
func columnIndex(header []string, names ...string) int {
	for i, h := range header {
		cell := strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if cell == strings.ToLower(n) {
				return i
			}
		}
	}
	return -1
}
