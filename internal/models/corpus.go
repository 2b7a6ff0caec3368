package models

import "strings"

// CorpusChunk represents a bounded run of consecutive corpus records scanned as
// one unit. Records keep their boundaries so a matched excerpt always comes from
// exactly one original record. Index is stable for a given corpus and chunk size.
type CorpusChunk struct {
	Index   int
	Records []string
	Size    int // total length in runes
}

// Text returns the chunk's records concatenated in corpus order.
func (c *CorpusChunk) Text() string {
	var b strings.Builder
	for _, r := range c.Records {
		b.WriteString(r)
	}
	return b.String()
}
