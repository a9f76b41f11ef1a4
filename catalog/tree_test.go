package catalog_test

import (
	"testing"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/pathval"
	"github.com/stretchr/testify/require"
)

func buildSample() *catalog.Directory {
	root := catalog.NewDirectory(sampleInode(""))
	a := catalog.NewDirectory(sampleInode("a"))
	b := catalog.NewDirectory(sampleInode("b"))
	a.Add(b)
	b.Add(&catalog.Symlink{Inode: sampleInode("leaf"), Target: "/dev/null"})
	root.Add(a)
	root.Add(&catalog.Symlink{Inode: sampleInode("top"), Target: "/dev/null"})
	return root
}

func TestSubReaderBracketsAncestors(t *testing.T) {
	root := buildSample()
	tr := catalog.NewTree(root)

	p, err := pathval.New("a/b")
	require.NoError(t, err)
	sr, ok := tr.ResetSubRead(p)
	require.True(t, ok)

	var sigs []byte
	for {
		e, ok := sr.Read()
		if !ok {
			break
		}
		sigs = append(sigs, e.Signature())
	}
	// ancestor "a" opened, then b's own children (leaf, eod), then a's closing eod
	dirSig := (&catalog.Directory{}).Signature()
	eod := catalog.Eod{}.Signature()
	require.Equal(t, []byte{dirSig, 'l', eod, eod}, sigs)
}

func TestSubReaderLeafEntry(t *testing.T) {
	root := buildSample()
	tr := catalog.NewTree(root)

	p, err := pathval.New("top")
	require.NoError(t, err)
	sr, ok := tr.ResetSubRead(p)
	require.True(t, ok)

	e, ok := sr.Read()
	require.True(t, ok)
	require.Equal(t, byte('l'), e.Signature())

	_, ok = sr.Read()
	require.False(t, ok)
}

func TestComparatorTracksMissingAncestor(t *testing.T) {
	ref := buildSample()
	cmp := catalog.NewComparator(ref)

	cmp.Descend("missing")
	_, ok := cmp.Compare("anything")
	require.False(t, ok)
	cmp.Descend("deeper")
	_, ok = cmp.Compare("x")
	require.False(t, ok)
	cmp.Ascend()
	cmp.Ascend()

	e, ok := cmp.Compare("top")
	require.True(t, ok)
	require.Equal(t, byte('l'), e.Signature())
}

func TestUpdateDestroyedWithSynthesizesDeletedMarkers(t *testing.T) {
	prev := buildSample()
	cur := catalog.NewDirectory(sampleInode(""))
	cur.Add(catalog.NewDirectory(sampleInode("a"))) // same name "a", but now empty

	catalog.UpdateDestroyedWith(catalog.NewTree(cur), catalog.NewTree(prev))

	e, ok := cur.ByName("top")
	require.True(t, ok)
	require.IsType(t, &catalog.Deleted{}, e)

	var foundDeleted bool
	for _, c := range cur.Children() {
		if d, isDel := c.(*catalog.Deleted); isDel && d.Name == "top" {
			foundDeleted = true
		}
	}
	require.True(t, foundDeleted)
}
