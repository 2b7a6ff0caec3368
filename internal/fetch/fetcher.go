// Package fetch downloads corpus part files over HTTP so scans can run
// against a local mirror.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Fetcher downloads numbered corpus parts from a base URL, bounding both
// concurrency and request rate.
type Fetcher struct {
	baseURL     string
	pattern     string
	client      *http.Client
	limiter     *rate.Limiter
	concurrency int
}

// NewFetcher creates a fetcher for baseURL whose part filenames follow
// pattern, a fmt verb template such as part_%d.jsonl.gz.
func NewFetcher(baseURL, pattern string, rps float64, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		pattern:     pattern,
		client:      &http.Client{Timeout: 10 * time.Minute},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		concurrency: concurrency,
	}
}

// FetchParts downloads parts 0..parts-1 into dir, skipping files already
// present. Each part lands atomically via a temporary file so an interrupted
// run never leaves a truncated part behind.
func (f *Fetcher) FetchParts(ctx context.Context, dir string, parts int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create corpus dir %s: %w", dir, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i := 0; i < parts; i++ {
		i := i
		g.Go(func() error {
			return f.fetchPart(ctx, dir, i)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("corpus fetch aborted: %w", err)
	}

	log.Info().
		Int("parts", parts).
		Str("dir", dir).
		Msg("Corpus fetch complete")
	return nil
}

func (f *Fetcher) fetchPart(ctx context.Context, dir string, part int) error {
	name := fmt.Sprintf(f.pattern, part)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		log.Debug().Str("file", name).Msg("Part already present, skipping")
		return nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	url := f.baseURL + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}

	log.Info().Str("file", name).Msg("Downloaded corpus part")
	return nil
}
