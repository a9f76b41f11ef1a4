package pathval_test

import (
	"testing"

	"github.com/edrusb/darchive/pathval"
	"github.com/stretchr/testify/require"
)

func TestNormalisation(t *testing.T) {
	p, err := pathval.New("/a/./b/../c")
	require.NoError(t, err)
	require.Equal(t, "/a/c", p.Display())
}

func TestEmptyStringRejected(t *testing.T) {
	_, err := pathval.New("")
	require.Error(t, err)
}

func TestPushPopRoundTrip(t *testing.T) {
	p := pathval.MustNew("/a/b")
	q, err := p.AddName("c")
	require.NoError(t, err)
	rest, removed, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "c", removed)
	require.True(t, rest.Equal(p))
}

func TestAddRejectsAbsoluteRHS(t *testing.T) {
	p := pathval.MustNew("relative/dir")
	_, err := p.Add(pathval.MustNew("/abs"))
	require.Error(t, err)
}

func TestIsSubdirOf(t *testing.T) {
	parent := pathval.MustNew("/a/b")
	child := pathval.MustNew("/a/b/c/d")
	require.True(t, child.IsSubdirOf(parent))
	require.False(t, parent.IsSubdirOf(child))
}

func TestEquality(t *testing.T) {
	a := pathval.MustNew("/a/b")
	b := pathval.MustNew("/a/b")
	c := pathval.MustNew("a/b")
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}
