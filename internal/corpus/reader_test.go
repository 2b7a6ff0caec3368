package corpus

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/doppel/internal/models"
)

func recordLine(t *testing.T, text string) []byte {
	t.Helper()
	line, err := json.Marshal(map[string]string{"text": text})
	require.NoError(t, err)
	return append(line, '\n')
}

func writeJSONL(t *testing.T, path string, texts ...string) {
	t.Helper()
	var buf []byte
	for _, text := range texts {
		buf = append(buf, recordLine(t, text)...)
	}
	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func writeJSONLGz(t *testing.T, path string, texts ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	for _, text := range texts {
		_, err := zw.Write(recordLine(t, text))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeJSONLZst(t *testing.T, path string, texts ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := zstd.NewWriter(f)
	require.NoError(t, err)
	for _, text := range texts {
		_, err := zw.Write(recordLine(t, text))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func readAll(t *testing.T, r *Reader) []*models.CorpusChunk {
	t.Helper()
	var chunks []*models.CorpusChunk
	for {
		c, err := r.Next()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
}

func TestReaderNext_AllRecordsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "r0", "r1", "r2", "r3", "r4")

	chunks := readAll(t, NewReader([]string{path}, 1<<20, 0))

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r4"}, chunks[0].Records)
}

func TestReaderNext_ClosesBeforeExceedingBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "aaaa", "bbbb", "cccc")

	chunks := readAll(t, NewReader([]string{path}, 10, 0))

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"aaaa", "bbbb"}, chunks[0].Records)
	assert.Equal(t, 8, chunks[0].Size)
	assert.Equal(t, []string{"cccc"}, chunks[1].Records)
}

func TestReaderNext_ClosesWhenBudgetReached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "aaaa", "bbbb", "cccc")

	chunks := readAll(t, NewReader([]string{path}, 8, 0))

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"aaaa", "bbbb"}, chunks[0].Records)
	assert.Equal(t, []string{"cccc"}, chunks[1].Records)
}

func TestReaderNext_OversizedRecordAlone(t *testing.T) {
	big := strings.Repeat("A", 25)
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "xx", big, "yy")

	chunks := readAll(t, NewReader([]string{path}, 10, 0))

	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"xx"}, chunks[0].Records)
	assert.Equal(t, []string{big}, chunks[1].Records)
	assert.Equal(t, []string{"yy"}, chunks[2].Records)
}

func TestReaderNext_BudgetCountsRunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "ééééé", "x")

	// 5 runes but 10 bytes; counting bytes would emit the record alone.
	chunks := readAll(t, NewReader([]string{path}, 6, 0))

	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"ééééé", "x"}, chunks[0].Records)
	assert.Equal(t, 6, chunks[0].Size)
}

func TestReaderNext_ChunkingIsLossless(t *testing.T) {
	records := []string{"def a():\n", "def b():\n", "def c():\n", "def d():\n"}
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, records...)

	chunks := readAll(t, NewReader([]string{path}, 20, 0))

	require.Greater(t, len(chunks), 1)
	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Text())
	}
	assert.Equal(t, strings.Join(records, ""), rebuilt.String())
}

func TestReaderNext_MaxChunksCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "a", "b", "c", "d", "e")

	r := NewReader([]string{path}, 1, 2)
	chunks := readAll(t, r)

	assert.Len(t, chunks, 2)
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderNext_ChunksNeverSpanFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "part_0.jsonl")
	second := filepath.Join(dir, "part_1.jsonl")
	writeJSONL(t, first, "a", "b")
	writeJSONL(t, second, "c")

	chunks := readAll(t, NewReader([]string{first, second}, 1<<20, 0))

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, []string{"a", "b"}, chunks[0].Records)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, []string{"c"}, chunks[1].Records)
}

func TestReaderNext_GzipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl.gz")
	writeJSONLGz(t, path, "compressed record")

	chunks := readAll(t, NewReader([]string{path}, 1<<20, 0))

	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"compressed record"}, chunks[0].Records)
}

func TestReaderNext_ZstdFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl.zst")
	writeJSONLZst(t, path, "compressed record")

	chunks := readAll(t, NewReader([]string{path}, 1<<20, 0))

	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"compressed record"}, chunks[0].Records)
}

func TestReaderNext_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	content := `{"text":"good"}
not json
{"meta":1}

{"content":"fallback"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := NewReader([]string{path}, 1<<20, 0)
	chunks := readAll(t, r)

	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"good", "fallback"}, chunks[0].Records)
	assert.Equal(t, 2, r.Skipped())
}

func TestReaderNext_NoFiles(t *testing.T) {
	_, err := NewReader(nil, 1<<20, 0).Next()

	assert.ErrorIs(t, err, ErrCorpusUnavailable)
}

func TestReaderNext_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	chunks := readAll(t, NewReader([]string{path}, 1<<20, 0))

	assert.Empty(t, chunks)
}

func TestDiscover_DirectoryRecurses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeJSONL(t, filepath.Join(dir, "b.jsonl"), "x")
	writeJSONLGz(t, filepath.Join(dir, "sub", "a.jsonl.gz"), "y")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	files, err := Discover(dir, 0)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "b.jsonl"), files[0])
	assert.Equal(t, filepath.Join(dir, "sub", "a.jsonl.gz"), files[1])
}

func TestDiscover_GlobPattern(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, filepath.Join(dir, "part_0.jsonl"), "x")
	writeJSONL(t, filepath.Join(dir, "part_1.jsonl"), "y")
	writeJSONLGz(t, filepath.Join(dir, "part_2.jsonl.gz"), "z")

	files, err := Discover(filepath.Join(dir, "part_*.jsonl"), 0)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "part_0.jsonl"), files[0])
	assert.Equal(t, filepath.Join(dir, "part_1.jsonl"), files[1])
}

func TestDiscover_MaxFilesCaps(t *testing.T) {
	dir := t.TempDir()
	writeJSONL(t, filepath.Join(dir, "part_0.jsonl"), "x")
	writeJSONL(t, filepath.Join(dir, "part_1.jsonl"), "y")

	files, err := Discover(dir, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "part_0.jsonl")}, files)
}

func TestDiscover_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.jsonl")
	writeJSONL(t, path, "x")

	files, err := Discover(path, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{path}, files)
}

func TestDiscover_NoMatches(t *testing.T) {
	_, err := Discover(t.TempDir(), 0)

	assert.ErrorIs(t, err, ErrCorpusUnavailable)
}
