package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "spaces become underscores", title: "Ada Lovelace", want: "Ada_Lovelace"},
		{name: "case preserved", title: "McCarthy (computer scientist)", want: "McCarthy_(computer_scientist)"},
		{name: "path separators replaced", title: "AC/DC", want: "AC_DC"},
		{name: "windows reserved chars replaced", title: `What? "Is": <this>`, want: `What___Is____this_`},
		{name: "control chars replaced", title: "a\tb", want: "a_b"},
		{name: "unicode preserved", title: "Łódź", want: "Łódź"},
		{name: "leading dots trimmed", title: "..hidden", want: "hidden"},
		{name: "empty falls back", title: "", want: "untitled"},
		{name: "only separators falls back", title: "///", want: "untitled"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, SanitizeTitle(tt.title))
		})
	}
}

func TestNameAllocator_SuffixesInEncounterOrder(t *testing.T) {
	t.Parallel()

	a := NewNameAllocator(nil)

	assert.Equal(t, "Ada_Lovelace", a.Claim("Ada Lovelace"))
	assert.Equal(t, "Alan_Turing", a.Claim("Alan Turing"))
	assert.Equal(t, "Ada_Lovelace-2", a.Claim("Ada Lovelace"))
	assert.Equal(t, "Ada_Lovelace-3", a.Claim("Ada Lovelace"))
}

func TestNameAllocator_DistinctTitlesSameStem(t *testing.T) {
	t.Parallel()

	a := NewNameAllocator(nil)

	// Different titles can sanitize to the same stem; they must not share a
	// filename.
	assert.Equal(t, "AC_DC", a.Claim("AC/DC"))
	assert.Equal(t, "AC_DC-2", a.Claim("AC DC"))
}

func TestNameAllocator_SeededFromCheckpoint(t *testing.T) {
	t.Parallel()

	first := NewNameAllocator(nil)
	first.Claim("Ada Lovelace")
	first.Claim("Ada Lovelace")

	// A resumed run seeded with the committed counts continues the sequence.
	resumed := NewNameAllocator(first.Counts())
	assert.Equal(t, "Ada_Lovelace-3", resumed.Claim("Ada Lovelace"))
}

func TestNameAllocator_CountsSnapshotIsIndependent(t *testing.T) {
	t.Parallel()

	a := NewNameAllocator(nil)
	a.Claim("X")

	snapshot := a.Counts()
	snapshot["X"] = 99

	require.Equal(t, "X-2", a.Claim("X"))
}
