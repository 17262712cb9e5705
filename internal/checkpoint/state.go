// Package checkpoint persists conversion progress so an interrupted run can
// resume at the last fully durable batch boundary.
package checkpoint

// StateVersion is the current checkpoint format version.
const StateVersion = 1

// State is the single process-wide checkpoint record. LastCommittedOffset
// always equals the ByteOffsetAfter of the last article whose output file is
// durably on disk; it is never ahead of durable state.
type State struct {
	Version int `json:"version"`

	// DumpPath and Format guard against resuming with mismatched inputs.
	DumpPath string `json:"dump_path"`
	Format   string `json:"format"`

	LastCommittedOffset int64 `json:"last_committed_offset"`
	ArticlesWritten     int64 `json:"articles_written"`

	// NameCounts records how many files each sanitized filename stem has
	// claimed, so a resumed run reproduces identical collision suffixes.
	NameCounts map[string]int `json:"name_counts,omitempty"`

	// UpdatedAt is the RFC3339 time of the last commit.
	UpdatedAt string `json:"updated_at"`
}
