package restore_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/infinint"
	"github.com/edrusb/darchive/metrics"
	"github.com/edrusb/darchive/stack/escape"
	"github.com/edrusb/darchive/walker/restore"
)

// stubStream feeds a single file's content back sequentially, treating
// every mark lookup as already positioned — enough to exercise the
// sequential (non-offset) restore path without a real archive.
type stubStream struct {
	data []byte
	pos  int
}

func (s *stubStream) Read(p []byte) (int, error) {
	n := copy(p, s.data[s.pos:])
	s.pos += n
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *stubStream) NextToReadIsMark(t escape.MarkType) (bool, error) { return false, nil }
func (s *stubStream) SkipToNextMark(t escape.MarkType, forward bool) (bool, error) {
	return true, nil
}
func (s *stubStream) Skip(absolute int64) error       { s.pos = int(absolute); return nil }
func (s *stubStream) CurrentPosition() (int64, error) { return int64(s.pos), nil }

func TestRestoreMaterializesPlainTreeOnDisk(t *testing.T) {
	mtime := datetime.FromTime(time.Now())
	root := catalog.NewDirectory(catalog.Inode{Named: catalog.Named{Name: "."}, Perm: 0o755, Mtime: mtime})
	tree := catalog.NewTree(root)

	content := []byte("hello world")
	acc := crc.NewAccumulator(crc.WidthFor(int64(len(content))))
	acc.Write(content)
	size := infinint.FromInt(len(content))

	f := &catalog.File{
		Inode: catalog.Inode{
			Named:      catalog.Named{Name: "a.txt"},
			Perm:       0o644,
			Mtime:      mtime,
			SavedState: catalog.Saved,
		},
		UncompressedSize: size,
		HasOffset:        false,
		ContentCRC:       acc.Sum(),
	}
	tree.Add(f)

	sub := catalog.NewDirectory(catalog.Inode{Named: catalog.Named{Name: "sub"}, Perm: 0o755, SavedState: catalog.Saved})
	tree.Add(sub)

	target := t.TempDir()
	stream := &stubStream{data: content}
	w := restore.New(restore.Options{}, nil, stream, nil)
	require.NoError(t, w.Run(context.Background(), target, tree))

	data, err := os.ReadFile(filepath.Join(target, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, content, data)

	info, err := os.Stat(filepath.Join(target, "sub"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestRestoreEmptyModeDoesNotTouchDisk(t *testing.T) {
	root := catalog.NewDirectory(catalog.Inode{Named: catalog.Named{Name: "."}, Perm: 0o755})
	tree := catalog.NewTree(root)
	tree.Add(&catalog.File{Inode: catalog.Inode{Named: catalog.Named{Name: "ghost.txt"}, SavedState: catalog.Saved}})

	target := t.TempDir()
	w := restore.New(restore.Options{Empty: true}, nil, nil, nil)
	require.NoError(t, w.Run(context.Background(), target, tree))

	_, err := os.Stat(filepath.Join(target, "ghost.txt"))
	require.True(t, os.IsNotExist(err))
	require.Equal(t, int64(1), w.Counters().Count(metrics.Saved))
}
