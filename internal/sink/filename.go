// Package sink writes converted articles to per-article files, one file per
// article, with deterministic filename sanitation and collision handling.
package sink

import (
	"fmt"
	"strings"
)

// fallbackStem names articles whose title sanitizes to nothing.
const fallbackStem = "untitled"

// invalidChars are replaced during sanitation. Case is preserved; spaces
// become underscores so filenames double as permalink slugs.
const invalidChars = `/\:*?"<>|`

// SanitizeTitle derives a filesystem-safe filename stem from a title. The
// rule is deterministic: the same title always yields the same stem.
func SanitizeTitle(title string) string {
	var b strings.Builder

	b.Grow(len(title))

	for _, r := range title {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r < 0x20 || strings.ContainsRune(invalidChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	stem := strings.Trim(b.String(), "._")
	if stem == "" {
		return fallbackStem
	}

	return stem
}

// NameAllocator assigns unique filename stems in encounter order. Duplicate
// titles (and distinct titles sanitizing to the same stem) get a numeric
// suffix; a file is never silently overwritten by a different title.
type NameAllocator struct {
	counts map[string]int
}

// NewNameAllocator creates an allocator, optionally seeded with the stem
// counts of a previous run's checkpoint so resumed runs reproduce identical
// suffixes.
func NewNameAllocator(seed map[string]int) *NameAllocator {
	counts := make(map[string]int, len(seed))
	for stem, n := range seed {
		counts[stem] = n
	}

	return &NameAllocator{counts: counts}
}

// Claim returns the stem for the next occurrence of title: the bare stem for
// the first claim, `stem-2`, `stem-3`, ... for later ones.
func (a *NameAllocator) Claim(title string) string {
	stem := SanitizeTitle(title)
	a.counts[stem]++

	n := a.counts[stem]
	if n == 1 {
		return stem
	}

	return fmt.Sprintf("%s-%d", stem, n)
}

// Counts returns a snapshot of the per-stem claim counts for checkpointing.
func (a *NameAllocator) Counts() map[string]int {
	snapshot := make(map[string]int, len(a.counts))
	for stem, n := range a.counts {
		snapshot[stem] = n
	}

	return snapshot
}
