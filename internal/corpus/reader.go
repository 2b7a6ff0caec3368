// Package corpus streams corpus records from JSON-lines files and groups them
// into bounded chunks for parallel scanning.
package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/corvid-labs/doppel/internal/models"
)

// ErrCorpusUnavailable indicates that no readable corpus input was found.
var ErrCorpusUnavailable = errors.New("no readable corpus files found")

// corpusRecord is one decoded corpus line. Text is the primary field, Content
// the fallback.
type corpusRecord struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// Discover resolves a corpus source into a sorted list of corpus files. A
// directory is matched as **/*.jsonl* beneath it; anything else is treated as a
// doublestar glob pattern (a plain file path matches itself). The list is capped
// at maxFiles when positive.
func Discover(source string, maxFiles int) ([]string, error) {
	pattern := source
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		pattern = filepath.Join(source, "**", "*.jsonl*")
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to expand corpus pattern %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusUnavailable, source)
	}

	sort.Strings(files)
	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}
	return files, nil
}

// Reader produces a lazy, finite, non-restartable sequence of corpus chunks.
// Chunks never span corpus files; chunk indexes continue monotonically across
// them. Not safe for concurrent use.
type Reader struct {
	paths     []string
	chunkSize int
	maxChunks int

	fileIdx    int
	cur        *fileScanner
	pending    string
	hasPending bool
	nextIndex  int
	emitted    int
	skipped    int
	done       bool
}

// NewReader creates a reader over the given corpus files. chunkSize is the
// maximum chunk length in runes; maxChunks caps the number of chunks produced
// when positive.
func NewReader(paths []string, chunkSize, maxChunks int) *Reader {
	return &Reader{
		paths:     paths,
		chunkSize: chunkSize,
		maxChunks: maxChunks,
	}
}

// Next returns the next corpus chunk, or io.EOF after the last one. A reader
// over zero files fails with ErrCorpusUnavailable; empty files simply yield no
// chunks.
func (r *Reader) Next() (*models.CorpusChunk, error) {
	if len(r.paths) == 0 {
		return nil, ErrCorpusUnavailable
	}
	if r.done {
		return nil, io.EOF
	}
	if r.maxChunks > 0 && r.emitted >= r.maxChunks {
		r.finish()
		return nil, io.EOF
	}

	for {
		if r.cur == nil {
			if r.fileIdx >= len(r.paths) {
				r.done = true
				return nil, io.EOF
			}
			cur, err := openFile(r.paths[r.fileIdx])
			if err != nil {
				return nil, err
			}
			r.cur = cur
			r.fileIdx++
		}

		chunk, err := r.fillChunk()
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			r.emitted++
			return chunk, nil
		}
		// Current file yielded nothing; continue with the next one.
	}
}

// Skipped returns the number of malformed corpus lines skipped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// fillChunk accumulates records from the current file until adding the next
// record would exceed the budget or the file ends. A first record at or over
// the budget is emitted alone. Returns nil when the file yielded no records.
func (r *Reader) fillChunk() (*models.CorpusChunk, error) {
	chunk := &models.CorpusChunk{Index: r.nextIndex}

	for {
		var rec string
		if r.hasPending {
			rec = r.pending
			r.pending = ""
			r.hasPending = false
		} else {
			var err error
			rec, err = r.readRecord()
			if err == io.EOF {
				r.cur.close()
				r.cur = nil
				break
			}
			if err != nil {
				return nil, err
			}
		}

		n := utf8.RuneCountInString(rec)
		if len(chunk.Records) > 0 && chunk.Size+n > r.chunkSize {
			r.pending = rec
			r.hasPending = true
			break
		}
		chunk.Records = append(chunk.Records, rec)
		chunk.Size += n
		if chunk.Size >= r.chunkSize {
			break
		}
	}

	if len(chunk.Records) == 0 {
		return nil, nil
	}
	r.nextIndex++
	return chunk, nil
}

// readRecord returns the next record text from the current file, skipping blank
// and malformed lines. io.EOF marks the end of the current file.
func (r *Reader) readRecord() (string, error) {
	for {
		line, err := r.cur.readLine()
		if err == io.EOF {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("failed to read corpus file %s: %w", r.cur.path, err)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var rec corpusRecord
		if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
			r.skipped++
			log.Warn().
				Str("file", r.cur.path).
				Int("line", r.cur.line).
				Msg("Skipping malformed corpus record")
			continue
		}
		text := rec.Text
		if text == "" {
			text = rec.Content
		}
		if text == "" {
			r.skipped++
			log.Warn().
				Str("file", r.cur.path).
				Int("line", r.cur.line).
				Msg("Skipping corpus record without text")
			continue
		}
		return text, nil
	}
}

func (r *Reader) finish() {
	if r.cur != nil {
		r.cur.close()
		r.cur = nil
	}
	r.done = true
}

// fileScanner reads one corpus file line by line, decompressing .gz and .zst
// files transparently.
type fileScanner struct {
	path   string
	file   *os.File
	closer io.Closer
	r      *bufio.Reader
	line   int
}

func openFile(path string) (*fileScanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file %s: %w", path, err)
	}

	var rd io.Reader = f
	var closer io.Closer
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip corpus file %s: %w", path, err)
		}
		rd, closer = zr, zr
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open zstd corpus file %s: %w", path, err)
		}
		rc := zr.IOReadCloser()
		rd, closer = rc, rc
	}

	return &fileScanner{
		path:   path,
		file:   f,
		closer: closer,
		r:      bufio.NewReaderSize(rd, 1<<20),
	}, nil
}

// readLine returns the next line including records longer than the buffer.
// io.EOF is returned only once all data has been consumed.
func (s *fileScanner) readLine() (string, error) {
	line, err := s.r.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", io.EOF
		}
		s.line++
		return line, nil
	}
	if err != nil {
		return "", err
	}
	s.line++
	return line, nil
}

func (s *fileScanner) close() {
	if s.closer != nil {
		s.closer.Close()
	}
	s.file.Close()
}
