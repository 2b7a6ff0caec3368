// Package repository loads and persists the pipeline's JSON-lines files.
package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// forEachLine streams a newline-delimited file, invoking fn with each line's
// zero-based index and content. Lines may be arbitrarily long.
func forEachLine(path string, fn func(index int, line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	index := 0
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			fn(index, line)
			index++
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
}

// writeLines writes records as newline-delimited JSON, one record per line.
func writeLines[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
