package backup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/metrics"
	"github.com/edrusb/darchive/walker/backup"
)

func TestRunBuildsTreeForFullBackup(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o644))

	w := backup.New(backup.Options{}, nil, nil, nil)
	tree, err := w.Run(context.Background(), root, nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for {
		e, ok := tree.Read()
		if !ok {
			break
		}
		switch v := e.(type) {
		case *catalog.File:
			names[v.Name] = true
			require.Equal(t, catalog.Saved, v.SavedState)
		case *catalog.Directory:
			names[v.Name] = true
		}
	}
	require.True(t, names["a.txt"])
	require.True(t, names["sub"])
	require.True(t, names["b.txt"])
}

func TestRunSkipsNameMaskExclusion(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.log"), []byte("y"), 0o644))

	opts := backup.Options{NameMask: excludeLog{}}
	w := backup.New(opts, nil, nil, nil)
	tree, err := w.Run(context.Background(), root, nil)
	require.NoError(t, err)

	var sawIgnored, sawKept bool
	for {
		e, ok := tree.Read()
		if !ok {
			break
		}
		switch v := e.(type) {
		case catalog.Ignored:
			if v.Name == "skip.log" {
				sawIgnored = true
			}
		case *catalog.File:
			if v.Name == "keep.txt" {
				sawKept = true
			}
		}
	}
	require.True(t, sawIgnored)
	require.True(t, sawKept)
	require.Equal(t, int64(1), w.Counters().Count(metrics.SkippedByFilter))
}

type excludeLog struct{}

func (excludeLog) IsCovered(expression string) bool { return expression != "skip.log" }
