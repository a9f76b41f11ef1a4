package etage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/walker/internal/etage"
)

func drain(t *testing.T, e *etage.Etage) []string {
	t.Helper()
	var got []string
	for {
		name, ok := e.Read()
		if !ok {
			break
		}
		got = append(got, name)
	}
	return got
}

func TestNewBuffersNamesExcludingDotEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), nil, 0o644))

	e, err := etage.New(logrus.StandardLogger(), dir, false, false)
	require.NoError(t, err)

	got := drain(t, e)
	require.ElementsMatch(t, []string{"a", "b"}, got)

	_, ok := e.Read()
	require.False(t, ok)
}

func TestCacheDirectoryTaggingClearsListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CACHEDIR.TAG"),
		[]byte("Signature: 8a477f597d28d172789f06886806bc55 extra text per spec"), 0o644))

	e, err := etage.New(logrus.StandardLogger(), dir, true, false)
	require.NoError(t, err)

	_, ok := e.Read()
	require.False(t, ok, "cache-tagged directory must report an empty listing")
}

func TestCacheDirectoryTaggingIgnoredWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CACHEDIR.TAG"),
		[]byte("Signature: 8a477f597d28d172789f06886806bc55"), 0o644))

	e, err := etage.New(logrus.StandardLogger(), dir, false, false)
	require.NoError(t, err)

	got := drain(t, e)
	require.Equal(t, []string{"CACHEDIR.TAG"}, got)
}
