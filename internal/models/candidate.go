package models

// Candidate represents one input solution checked for prior appearance in the
// corpus. Index is the zero-based line number in the input file and is shared
// read-only across all workers.
type Candidate struct {
	Index    int    `json:"-"`
	Solution string `json:"solution"`
}
