package merge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/overwrite"
	"github.com/edrusb/darchive/walker/merge"
)

func buildTree(names ...string) *catalog.Tree {
	root := catalog.NewDirectory(catalog.Inode{Named: catalog.Named{Name: "."}})
	tree := catalog.NewTree(root)
	for _, n := range names {
		tree.Add(&catalog.File{Inode: catalog.Inode{Named: catalog.Named{Name: n}, SavedState: catalog.Saved}})
	}
	return tree
}

func names(tree *catalog.Tree) map[string]bool {
	out := map[string]bool{}
	tree.ResetRead()
	for {
		e, ok := tree.Read()
		if !ok {
			break
		}
		if f, isFile := e.(*catalog.File); isFile {
			out[f.Name] = true
		}
	}
	return out
}

func TestMergeUnionsDisjointEntries(t *testing.T) {
	t1 := buildTree("a.txt", "shared.txt")
	t2 := buildTree("b.txt", "shared.txt")

	w := merge.New(merge.Options{Policy: overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite}}, nil, nil, nil, nil)
	out, err := w.Run(context.Background(), t1, t2)
	require.NoError(t, err)

	got := names(out)
	require.True(t, got["a.txt"])
	require.True(t, got["b.txt"])
	require.True(t, got["shared.txt"])
	require.Len(t, got, 3)
}

func TestMergeDecrementalEmitsDeletedForSecondOnly(t *testing.T) {
	t1 := buildTree("new.txt")
	t2 := buildTree("old.txt")

	w := merge.New(merge.Options{Decremental: true}, nil, nil, nil, nil)
	out, err := w.Run(context.Background(), t1, t2)
	require.NoError(t, err)

	var sawDeleted, sawNew bool
	out.ResetRead()
	for {
		e, ok := out.Read()
		if !ok {
			break
		}
		switch v := e.(type) {
		case *catalog.Deleted:
			if v.Name == "old.txt" {
				sawDeleted = true
			}
		case *catalog.File:
			if v.Name == "new.txt" {
				sawNew = true
			}
		}
	}
	require.True(t, sawDeleted)
	require.True(t, sawNew)
}
