package catalog_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/infinint"
	"github.com/stretchr/testify/require"
)

func sampleInode(name string) catalog.Inode {
	return catalog.Inode{
		Named:      catalog.Named{Name: name},
		UID:        1000,
		GID:        1000,
		Perm:       0o644,
		Atime:      datetime.DateTime{Seconds: 100, FracU: datetime.Second},
		Mtime:      datetime.DateTime{Seconds: 200, FracU: datetime.Second},
		Ctime:      datetime.DateTime{Seconds: 200, FracU: datetime.Second},
		SavedState: catalog.Saved,
		EAState:    catalog.EANone,
		FSAState:   catalog.FSANone,
	}
}

func TestDumpLoadDirectoryRoundTrip(t *testing.T) {
	root := catalog.NewDirectory(sampleInode(""))
	acc := crc.NewAccumulator(4)
	acc.Write([]byte("hello"))
	f := &catalog.File{
		Inode:            sampleInode("hello.txt"),
		UncompressedSize: infinint.FromUint64(5),
		StoredSize:       infinint.FromUint64(5),
		ContentCRC:       acc.Sum(),
		CompressionAlgo:  'n',
	}
	sub := catalog.NewDirectory(sampleInode("subdir"))
	sub.Add(&catalog.Symlink{Inode: sampleInode("link"), Target: "hello.txt"})
	root.Add(f)
	root.Add(sub)

	var buf bytes.Buffer
	require.NoError(t, catalog.DumpTree(&buf, catalog.NewTree(root)))

	loaded, err := catalog.LoadTree(&buf)
	require.NoError(t, err)

	require.Len(t, loaded.Root.Children(), 2)
	gotFile, ok := loaded.Root.Children()[0].(*catalog.File)
	require.True(t, ok)
	require.Equal(t, "hello.txt", gotFile.Name)
	require.True(t, gotFile.ContentCRC.Equal(f.ContentCRC))

	gotDir, ok := loaded.Root.Children()[1].(*catalog.Directory)
	require.True(t, ok)
	require.Len(t, gotDir.Children(), 1)
	gotLink, ok := gotDir.Children()[0].(*catalog.Symlink)
	require.True(t, ok)
	require.Equal(t, "hello.txt", gotLink.Target)
}

func TestDumpLoadMirageSharesStar(t *testing.T) {
	root := catalog.NewDirectory(sampleInode(""))
	shared := &catalog.File{Inode: sampleInode("shared"), UncompressedSize: infinint.FromUint64(0), StoredSize: infinint.FromUint64(0), ContentCRC: crc.New(2)}
	star := &catalog.Star{Inode: shared}
	root.Add(&catalog.Mirage{Named: catalog.Named{Name: "a"}, Star: star})
	root.Add(&catalog.Mirage{Named: catalog.Named{Name: "b"}, Star: star})

	var buf bytes.Buffer
	require.NoError(t, catalog.DumpTree(&buf, catalog.NewTree(root)))

	loaded, err := catalog.LoadTree(&buf)
	require.NoError(t, err)
	require.Len(t, loaded.Root.Children(), 2)

	m1 := loaded.Root.Children()[0].(*catalog.Mirage)
	m2 := loaded.Root.Children()[1].(*catalog.Mirage)
	require.Same(t, m1.Star, m2.Star)
	require.Equal(t, "a", m1.Name)
	require.Equal(t, "b", m2.Name)
}

func TestSequentialReadYieldsEod(t *testing.T) {
	root := catalog.NewDirectory(sampleInode(""))
	sub := catalog.NewDirectory(sampleInode("d"))
	root.Add(sub)

	tr := catalog.NewTree(root)
	tr.ResetRead()

	var sigs []byte
	for {
		e, ok := tr.Read()
		if !ok {
			break
		}
		sigs = append(sigs, e.Signature())
	}
	// directory d, its eod, then root's own eod
	require.Equal(t, []byte{sub.Signature(), catalog.Eod{}.Signature(), catalog.Eod{}.Signature()}, sigs)
}

var _ = bufio.NewReader
