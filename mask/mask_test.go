package mask_test

import (
	"testing"

	"github.com/edrusb/darchive/mask"
	"github.com/edrusb/darchive/pathval"
	"github.com/stretchr/testify/require"
)

func TestGlob(t *testing.T) {
	g := mask.Glob{Pattern: "*.txt"}
	require.True(t, g.IsCovered("notes.txt"))
	require.False(t, g.IsCovered("notes.bin"))
}

func TestNot(t *testing.T) {
	n := mask.Not{Inner: mask.Glob{Pattern: "*.txt"}}
	require.False(t, n.IsCovered("notes.txt"))
	require.True(t, n.IsCovered("notes.bin"))
}

func TestAndOr(t *testing.T) {
	and := &mask.And{}
	and.Add(mask.Glob{Pattern: "*.txt"})
	and.Add(mask.Not{Inner: mask.Glob{Pattern: "tmp*"}})
	require.True(t, and.IsCovered("notes.txt"))
	require.False(t, and.IsCovered("tmpnotes.txt"))

	or := &mask.Or{}
	or.Add(mask.Glob{Pattern: "*.txt"})
	or.Add(mask.Glob{Pattern: "*.md"})
	require.True(t, or.IsCovered("readme.md"))
	require.False(t, or.IsCovered("readme.bin"))
}

func TestEmptyAndOr(t *testing.T) {
	require.True(t, (&mask.And{}).IsCovered("anything"))
	require.False(t, (&mask.Or{}).IsCovered("anything"))
}

func TestPathPrefix(t *testing.T) {
	p := mask.PathPrefix{Root: pathval.MustNew("/home/user")}
	require.True(t, p.IsCovered("/home/user/docs/a.txt"))
	require.False(t, p.IsCovered("/home/other/a.txt"))
}
