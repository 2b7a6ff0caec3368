// Package shard materializes stage-1 top matches as isolated comparison units
// for the external semantic analyzer.
package shard

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"

	"github.com/corvid-labs/doppel/internal/models"
)

// ErrShardIO indicates a comparison unit could not be materialized.
var ErrShardIO = errors.New("failed to materialize semantic unit")

// CanonicalFileName is the candidate program's file inside a unit.
const CanonicalFileName = "canonical_solution.py"

// chunksDirName holds the corpus excerpts inside a unit.
const chunksDirName = "chunks_solutions"

// Unit is one isolated comparison workspace: the candidate's program plus its
// selected corpus excerpts, archived for the external analyzer. Units never
// share files or folders.
type Unit struct {
	ProgramIndex int
	Root         string
	ArchivePath  string
	Excerpts     int
	BuildErr     error
}

// Empty reports whether the unit has no excerpts to compare against.
func (u *Unit) Empty() bool {
	return u.Excerpts == 0
}

// Builder materializes semantic units under a workspace directory.
type Builder struct {
	workspace string
	topN      int
}

// NewBuilder creates the workspace root. Failure here is fatal for the whole
// stage.
func NewBuilder(workspace string, topN int) (*Builder, error) {
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create workspace %s: %w", ErrShardIO, workspace, err)
	}
	return &Builder{
		workspace: workspace,
		topN:      topN,
	}, nil
}

// Build materializes one unit per stage-1 result. A failure building one unit
// is recorded on that unit and does not abort the batch.
func (b *Builder) Build(results []models.CandidateResult) []Unit {
	units := make([]Unit, 0, len(results))
	for i := range results {
		units = append(units, b.buildUnit(&results[i]))
	}
	return units
}

func (b *Builder) buildUnit(res *models.CandidateResult) Unit {
	unit := Unit{
		ProgramIndex: res.Index,
		Root:         filepath.Join(b.workspace, fmt.Sprintf("program_%d", res.Index)),
	}

	excerpts := topExcerpts(res.ChunkResults, b.topN)
	if len(excerpts) == 0 {
		return unit
	}
	unit.Excerpts = len(excerpts)

	if err := b.writeTree(&unit, res.Solution, excerpts); err != nil {
		unit.BuildErr = err
		log.Error().Err(err).Int("program", res.Index).Msg("Failed to build semantic unit")
		return unit
	}

	archive := unit.Root + ".zip"
	if err := writeArchive(archive, unit.Root, filepath.Base(unit.Root)); err != nil {
		unit.BuildErr = err
		log.Error().Err(err).Int("program", res.Index).Msg("Failed to archive semantic unit")
		return unit
	}
	unit.ArchivePath = archive
	return unit
}

// Cleanup removes the entire workspace tree.
func (b *Builder) Cleanup() error {
	if err := os.RemoveAll(b.workspace); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", b.workspace, err)
	}
	return nil
}

// topExcerpts selects up to topN details, highest score first, ties to the
// lower chunk index.
func topExcerpts(details []models.ChunkResult, topN int) []models.ChunkResult {
	sorted := make([]models.ChunkResult, len(details))
	copy(sorted, details)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ChunkIndex < sorted[j].ChunkIndex
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

func (b *Builder) writeTree(unit *Unit, solution string, excerpts []models.ChunkResult) error {
	chunksDir := filepath.Join(unit.Root, chunksDirName)
	if err := os.MkdirAll(chunksDir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create unit folder: %w", ErrShardIO, err)
	}
	canonical := filepath.Join(unit.Root, CanonicalFileName)
	if err := os.WriteFile(canonical, []byte(solution), 0o644); err != nil {
		return fmt.Errorf("%w: failed to write canonical program: %w", ErrShardIO, err)
	}
	for _, ex := range excerpts {
		name := filepath.Join(chunksDir, ExcerptFileName(ex.ChunkIndex))
		if err := os.WriteFile(name, []byte(ex.ClosestSolution), 0o644); err != nil {
			return fmt.Errorf("%w: failed to write excerpt %d: %w", ErrShardIO, ex.ChunkIndex, err)
		}
	}
	return nil
}

// ExcerptFileName names a corpus excerpt by its chunk index. The orchestrator
// recovers the index from this name when parsing analyzer output.
func ExcerptFileName(chunkIndex int) string {
	return fmt.Sprintf("closest_solution_%d.py", chunkIndex)
}

// writeArchive zips root under prefix with sorted entries, zeroed timestamps,
// and a fixed compressor so identical inputs produce byte-identical archives.
func writeArchive(archivePath, root, prefix string) error {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to walk unit folder: %w", ErrShardIO, err)
	}
	sort.Strings(files)

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to create archive: %w", ErrShardIO, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	if err := addEntries(zw, files, root, prefix); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to finalize archive: %w", ErrShardIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close archive: %w", ErrShardIO, err)
	}
	return nil
}

func addEntries(zw *zip.Writer, files []string, root, prefix string) error {
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return fmt.Errorf("%w: failed to resolve entry name: %w", ErrShardIO, err)
		}
		hdr := &zip.FileHeader{
			Name:   path.Join(prefix, filepath.ToSlash(rel)),
			Method: zip.Deflate,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("%w: failed to add archive entry: %w", ErrShardIO, err)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("%w: failed to read unit file: %w", ErrShardIO, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("%w: failed to write archive entry: %w", ErrShardIO, err)
		}
	}
	return nil
}
