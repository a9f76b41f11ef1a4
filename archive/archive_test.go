package archive_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/archive"
	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/stack/compress"
	"github.com/edrusb/darchive/stack/slice"
)

func sliceParams(dir string) slice.Params {
	return slice.Params{Basename: "test", Extension: "dar", Dir: dir, FirstSize: 1 << 20, NextSize: 1 << 20}
}

func TestCreateThenOpenRoundTripsCatalogueViaTrailer(t *testing.T) {
	dir := t.TempDir()

	a, err := archive.Create(nil, archive.CreateParams{
		SliceParams:     sliceParams(dir),
		CompressionAlgo: compress.AlgoNone,
		DataName:        "unit-test",
	})
	require.NoError(t, err)

	root := catalog.NewDirectory(catalog.Inode{Named: catalog.Named{Name: "."}})
	tree := catalog.NewTree(root)
	tree.Add(&catalog.File{Inode: catalog.Inode{Named: catalog.Named{Name: "a.txt"}, SavedState: catalog.NotSaved}})

	require.NoError(t, a.Finalize(tree))

	a2, loaded, err := archive.Open(nil, archive.OpenParams{SliceParams: sliceParams(dir)})
	require.NoError(t, err)
	require.NotNil(t, a2)
	require.NotNil(t, loaded)

	var sawFile bool
	loaded.ResetRead()
	for {
		e, ok := loaded.Read()
		if !ok {
			break
		}
		if f, isFile := e.(*catalog.File); isFile && f.Name == "a.txt" {
			sawFile = true
		}
	}
	require.True(t, sawFile)
}

func TestOpenRejectsMissingArchive(t *testing.T) {
	dir := t.TempDir()
	a, err := archive.Create(nil, archive.CreateParams{SliceParams: sliceParams(dir)})
	require.NoError(t, err)
	require.NoError(t, a.Finalize(catalog.NewTree(catalog.NewDirectory(catalog.Inode{}))))

	_, _, err = archive.Open(nil, archive.OpenParams{SliceParams: slice.Params{Basename: "nope", Extension: "dar", Dir: dir, FirstSize: 1 << 20, NextSize: 1 << 20}})
	require.Error(t, err)
}
