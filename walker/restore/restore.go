package restore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/delta"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/fsattr"
	"github.com/edrusb/darchive/metrics"
	"github.com/edrusb/darchive/overwrite"
	"github.com/edrusb/darchive/pathval"
	"github.com/edrusb/darchive/stack/escape"
)

// Stream is the subset of *escape.Layer the restore walker reads file
// content and delta patches through.
type Stream interface {
	io.Reader
	NextToReadIsMark(t escape.MarkType) (bool, error)
	SkipToNextMark(t escape.MarkType, forward bool) (bool, error)
	Skip(absolute int64) error
	CurrentPosition() (int64, error)
}

// BaseFileOpener fetches the base file for a delta-saved entry, so the
// walker does not need to know the target filesystem's own open
// conventions (furtive read, etc).
type BaseFileOpener func(path string) (io.ReadCloser, error)

// Walker runs one restore pass over an already-open catalogue.
type Walker struct {
	opts         Options
	ui           *logrus.Logger
	stream       Stream
	counters     *metrics.Counters
	openBase     BaseFileOpener
	materialized map[*catalog.Star]bool
}

// New creates a Walker. stream may be nil when the catalogue carries no
// data (an isolated catalogue restore of metadata only).
func New(opts Options, ui *logrus.Logger, stream Stream, openBase BaseFileOpener) *Walker {
	if ui == nil {
		ui = logrus.StandardLogger()
	}
	if openBase == nil {
		openBase = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	if opts.Policy == nil {
		opts.Policy = overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite}
	}
	return &Walker{opts: opts, ui: ui, stream: stream, counters: metrics.New(), openBase: openBase, materialized: make(map[*catalog.Star]bool)}
}

func (w *Walker) Counters() *metrics.Counters { return w.counters }

type dirFrame struct {
	fsPath string
	rel    pathval.Path
	inode  catalog.Inode
}

// Run sequentially reads tree and recreates its entries under
// targetRoot, reapplying each directory's own timestamps and ownership
// once its children are done (§4.10 "end-of-directory").
func (w *Walker) Run(ctx context.Context, targetRoot string, tree *catalog.Tree) error {
	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return errs.Wrapf(err, "restore.Run: creating root %s", targetRoot)
	}
	tree.ResetRead()
	stack := []dirFrame{{fsPath: targetRoot, inode: tree.Root.Inode}}

	for {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, "restore: cancelled")
		}
		e, ok := tree.Read()
		if !ok {
			break
		}
		cur := stack[len(stack)-1]

		switch v := e.(type) {
		case catalog.Eod:
			if !w.opts.Empty {
				w.applyDirMetadata(cur.fsPath, cur.inode)
			}
			stack = stack[:len(stack)-1]
		case *catalog.Directory:
			rel, _ := cur.rel.AddName(v.Name)
			if !w.nameCovered(v.Name, rel) {
				tree.SkipReadToParentDir()
				w.counters.Incr(metrics.SkippedByFilter)
				continue
			}
			fsPath := cur.fsPath
			if !w.opts.Flat {
				fsPath = filepath.Join(cur.fsPath, v.Name)
			}
			if !w.opts.Empty {
				if err := os.MkdirAll(fsPath, 0o755); err != nil {
					w.ui.Warnf("restore: creating directory %s: %v", fsPath, err)
					w.counters.Incr(metrics.Errored)
				}
			}
			stack = append(stack, dirFrame{fsPath: fsPath, rel: rel, inode: v.Inode})
		default:
			w.restoreNamed(cur.fsPath, cur.rel, e)
		}
	}
	return nil
}

func (w *Walker) nameCovered(name string, rel pathval.Path) bool {
	return nilOr(w.opts.NameMask).IsCovered(name) && nilOr(w.opts.PathMask).IsCovered(rel.Display())
}

// restoreNamed handles any non-directory, non-Eod catalogue entry.
func (w *Walker) restoreNamed(dirPath string, rel pathval.Path, e catalog.Entry) {
	name := namedEntryName(e)
	if name == "" {
		return
	}
	childRel, _ := rel.AddName(name)
	if !w.nameCovered(name, childRel) {
		w.counters.Incr(metrics.SkippedByFilter)
		return
	}
	fsPath := dirPath
	if !w.opts.Flat {
		fsPath = filepath.Join(dirPath, name)
	}

	if del, ok := e.(*catalog.Deleted); ok {
		w.restoreDeleted(fsPath, del)
		return
	}
	if _, ok := e.(catalog.Ignored); ok {
		w.counters.Incr(metrics.SkippedByFilter)
		return
	}
	if _, ok := e.(catalog.IgnoredDir); ok {
		w.counters.Incr(metrics.SkippedByFilter)
		return
	}

	if w.opts.Empty {
		w.counters.Incr(metrics.Saved)
		return
	}

	existing, statErr := os.Lstat(fsPath)
	if statErr != nil {
		if w.opts.OnlyOverwrite {
			w.counters.Incr(metrics.SkippedByFilter)
			return
		}
		if err := w.materialize(fsPath, e); err != nil {
			w.ui.Warnf("restore: %s: %v", fsPath, err)
			w.counters.Incr(metrics.Errored)
			return
		}
		w.counters.Incr(metrics.Saved)
		return
	}

	outcome, err := overwrite.Resolve(w.opts.Policy, synthesizeExisting(existing), e, w.opts.Resolver)
	if err != nil {
		w.ui.Warnf("restore: resolving overwrite policy for %s: %v", fsPath, err)
		w.counters.Incr(metrics.Errored)
		return
	}
	if err := w.applyOutcome(fsPath, e, outcome); err != nil {
		w.ui.Warnf("restore: %s: %v", fsPath, err)
		w.counters.Incr(metrics.Errored)
		return
	}
	w.counters.Incr(metrics.Saved)
}

func (w *Walker) restoreDeleted(fsPath string, del *catalog.Deleted) {
	existing, err := os.Lstat(fsPath)
	if err != nil {
		return // already absent, nothing to do
	}
	matches := kindLetterFromMode(existing.Mode()) == catalogKindLetter(del.OriginalSignature)
	if !matches && w.opts.WarnBeforeRemove {
		if w.opts.MismatchResolver == nil {
			w.ui.Warnf("restore: %s exists but does not match the recorded kind, leaving it in place", fsPath)
			return
		}
		ok, err := w.opts.MismatchResolver.ConfirmRemoveMismatch(fsPath, kindLetterFromMode(existing.Mode()), catalogKindLetter(del.OriginalSignature))
		if err != nil || !ok {
			return
		}
	}
	if w.opts.Empty {
		return
	}
	if err := os.RemoveAll(fsPath); err != nil {
		w.ui.Warnf("restore: removing %s: %v", fsPath, err)
		w.counters.Incr(metrics.Errored)
		return
	}
	w.counters.Incr(metrics.Removed)
}

// materialize creates a brand-new filesystem object for e at fsPath:
// the common path both a fresh restore and an overwrite-after-remove
// take.
func (w *Walker) materialize(fsPath string, e catalog.Entry) error {
	switch v := e.(type) {
	case *catalog.File:
		return w.materializeFile(fsPath, v)
	case *catalog.Symlink:
		return w.materializeSymlink(fsPath, v)
	case *catalog.CharDev:
		return w.materializeDevice(fsPath, v.Inode, true, v.Major, v.Minor)
	case *catalog.BlockDev:
		return w.materializeDevice(fsPath, v.Inode, false, v.Major, v.Minor)
	case *catalog.Pipe:
		return w.materializeSpecial(fsPath, v.Inode, mkfifo)
	case *catalog.Socket:
		return w.materializeSpecial(fsPath, v.Inode, mksocket)
	case *catalog.Mirage:
		return w.materializeMirage(fsPath, v)
	default:
		return errs.Newf(errs.KindFeature, "restore: unsupported entry kind for %s", fsPath)
	}
}

func (w *Walker) materializeMirage(fsPath string, m *catalog.Mirage) error {
	if m.Star == nil {
		return errs.New(errs.KindBug, "restore: mirage with no star")
	}
	if w.materialized[m.Star] {
		if m.Star.FSPath == "" {
			return errs.New(errs.KindBug, "restore: star materialised with no recorded path")
		}
		if err := os.Link(m.Star.FSPath, fsPath); err != nil {
			w.ui.Warnf("restore: hard-linking %s to %s failed (%v), duplicating instead", fsPath, m.Star.FSPath, err)
			return w.materialize(fsPath, m.Star.Inode)
		}
		return nil
	}
	w.materialized[m.Star] = true
	m.Star.FSPath = fsPath
	return w.materialize(fsPath, m.Star.Inode)
}

func (w *Walker) materializeSymlink(fsPath string, s *catalog.Symlink) error {
	if err := os.Symlink(s.Target, fsPath); err != nil {
		return errs.Wrapf(err, "restore: creating symlink %s", fsPath)
	}
	return w.applyInodeMetadata(fsPath, s.Inode, false)
}

func (w *Walker) materializeDevice(fsPath string, inode catalog.Inode, char bool, major, minor uint32) error {
	if err := mknod(fsPath, inode.Perm, char, major, minor); err != nil {
		return errs.Wrapf(err, "restore: creating device node %s", fsPath)
	}
	return w.applyInodeMetadata(fsPath, inode, true)
}

func (w *Walker) materializeSpecial(fsPath string, inode catalog.Inode, create func(path string, mode uint32) error) error {
	if err := create(fsPath, inode.Perm); err != nil {
		return errs.Wrapf(err, "restore: creating %s", fsPath)
	}
	return w.applyInodeMetadata(fsPath, inode, true)
}

func (w *Walker) materializeFile(fsPath string, f *catalog.File) error {
	out, err := os.OpenFile(fsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errs.Wrapf(err, "restore: creating %s", fsPath)
	}
	defer out.Close()

	switch f.SavedState {
	case catalog.Saved:
		if err := w.streamFileContent(out, f); err != nil {
			return err
		}
	case catalog.Delta:
		if err := w.restoreDeltaContent(out, fsPath, f); err != nil {
			return err
		}
	default:
		// NotSaved/InodeOnly: no content in this archive, leave empty.
	}
	if err := out.Sync(); err != nil {
		return errs.Wrapf(err, "restore: syncing %s", fsPath)
	}
	return w.applyInodeMetadata(fsPath, f.Inode, true)
}

// streamFileContent reads f's content from w.stream, honouring the
// sparse bit, and verifies the stored content CRC.
func (w *Walker) streamFileContent(out *os.File, f *catalog.File) error {
	if w.stream == nil {
		return nil
	}
	if f.HasOffset {
		size, err := f.UncompressedSize.Uint64()
		if err != nil {
			return errs.Wrap(err, "restore: decoding stored size")
		}
		off, err := f.ArchiveOffset.Uint64()
		if err != nil {
			return errs.Wrap(err, "restore: decoding archive offset")
		}
		if err := w.stream.Skip(int64(off)); err != nil {
			return errs.Wrap(err, "restore: seeking to file content")
		}
		return w.copyVerified(out, int64(size), f.ContentCRC)
	}

	// Sequential mode: content begins right after the MarkFile sync
	// point and ends at MarkFileCRC.
	found, err := w.stream.SkipToNextMark(escape.MarkFile, true)
	if err != nil {
		return errs.Wrap(err, "restore: seeking MarkFile")
	}
	if !found {
		return errs.New(errs.KindRange, "restore: truncated archive, MarkFile not found")
	}
	size, _ := f.UncompressedSize.Uint64()
	if err := w.copyVerified(out, int64(size), f.ContentCRC); err != nil {
		return err
	}
	if _, err := w.stream.SkipToNextMark(escape.MarkFileCRC, true); err != nil {
		return errs.Wrap(err, "restore: seeking MarkFileCRC")
	}
	return nil
}

func (w *Walker) copyVerified(out *os.File, size int64, want *crc.CRC) error {
	acc := crc.NewAccumulator(crc.WidthFor(size))
	src := io.TeeReader(io.LimitReader(w.stream, size), acc)

	holeMin := w.opts.SparseHoleMinSize
	if err := sparseCopy(out, src, size, holeMin); err != nil {
		return err
	}
	if want != nil && !acc.Sum().Equal(want) {
		return errs.New(errs.KindRange, "restore: content CRC mismatch")
	}
	return nil
}

// restoreDeltaContent fetches the base file, verifies it against
// BaseCRC, applies the archived patch, and verifies the result against
// ResultCRC (§4.10 "delta patch restore").
func (w *Walker) restoreDeltaContent(out *os.File, fsPath string, f *catalog.File) error {
	if w.stream == nil || f.BaseCRC == nil {
		return errs.New(errs.KindRange, "restore: delta-saved entry has no stream or base CRC")
	}
	base, err := w.openBase(fsPath)
	if err != nil {
		return errs.Wrapf(err, "restore: opening base file %s for delta", fsPath)
	}
	defer base.Close()
	baseData, err := io.ReadAll(base)
	if err != nil {
		return errs.Wrap(err, "restore: reading base file")
	}
	baseAcc := crc.NewAccumulator(crc.WidthFor(int64(len(baseData))))
	baseAcc.Write(baseData)
	if !baseAcc.Sum().Equal(f.BaseCRC) {
		return errs.New(errs.KindRange, "restore: base file CRC mismatch, cannot apply delta")
	}

	off, err := f.ArchiveOffset.Uint64()
	if err != nil {
		return errs.Wrap(err, "restore: decoding delta offset")
	}
	if err := w.stream.Skip(int64(off)); err != nil {
		return errs.Wrap(err, "restore: seeking to delta patch")
	}
	size, err := f.StoredSize.Uint64()
	if err != nil {
		return errs.Wrap(err, "restore: decoding delta size")
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(w.stream, payload); err != nil {
		return errs.Wrap(err, "restore: reading delta patch")
	}
	patch, err := decodePatch(bytes.NewReader(payload))
	if err != nil {
		return errs.Wrap(err, "restore: decoding delta patch")
	}

	var result bytes.Buffer
	if err := delta.ApplyPatch(bytes.NewReader(baseData), patch, &result); err != nil {
		return errs.Wrap(err, "restore: applying delta patch")
	}
	if f.ResultCRC != nil {
		resAcc := crc.NewAccumulator(crc.WidthFor(int64(result.Len())))
		resAcc.Write(result.Bytes())
		if !resAcc.Sum().Equal(f.ResultCRC) {
			return errs.New(errs.KindRange, "restore: delta result CRC mismatch")
		}
	}
	if _, err := out.Write(result.Bytes()); err != nil {
		return errs.Wrap(err, "restore: writing delta result")
	}
	return nil
}

// applyOutcome executes a resolved overwrite outcome against an
// existing target (§4.10 step 2).
func (w *Walker) applyOutcome(fsPath string, e catalog.Entry, outcome overwrite.Outcome) error {
	switch outcome.Data {
	case overwrite.DataPreserve, overwrite.DataPreserveMarkAlreadySaved:
		// no-op on the filesystem; still apply EA/FSA below.
	case overwrite.DataOverwrite, overwrite.DataOverwriteMarkAlreadySaved:
		if err := os.RemoveAll(fsPath); err != nil {
			return errs.Wrapf(err, "restore: removing %s before overwrite", fsPath)
		}
		if err := w.materialize(fsPath, e); err != nil {
			return err
		}
	case overwrite.DataRemove:
		return os.RemoveAll(fsPath)
	}
	return w.applyEAOutcome(fsPath, e, outcome.EA)
}

func (w *Walker) applyEAOutcome(fsPath string, e catalog.Entry, action overwrite.EAAction) error {
	inode, ok := referenceInode(e)
	if !ok {
		return nil
	}
	switch action {
	case overwrite.EAClear:
		return fsattr.ClearEA(fsPath)
	case overwrite.EAOverwrite, overwrite.EAOverwriteMarkAlreadySaved, overwrite.EAMergeOverwrite:
		if err := fsattr.WriteEA(fsPath, inode.EA); err != nil {
			return err
		}
		return fsattr.WriteFSA(fsPath, inode.FSA)
	default:
		return nil
	}
}

// applyInodeMetadata applies EA/FSA then owner/permissions/times to a
// freshly created inode, in the order §4.10 requires (permissions after
// owner, to survive setuid-clearing on chown).
func (w *Walker) applyInodeMetadata(fsPath string, inode catalog.Inode, chownSupported bool) error {
	if len(inode.EA) > 0 {
		_ = fsattr.WriteEA(fsPath, inode.EA)
	}
	if len(inode.FSA) > 0 {
		_ = fsattr.WriteFSA(fsPath, inode.FSA)
	}
	if chownSupported {
		_ = os.Chown(fsPath, int(inode.UID), int(inode.GID))
	}
	_ = os.Chmod(fsPath, os.FileMode(inode.Perm))
	_ = os.Chtimes(fsPath, inode.Atime.ToTime(), inode.Mtime.ToTime())
	return nil
}

// applyDirMetadata reapplies a directory's own timestamps and ownership
// once every child has been restored (§4.10 "end-of-directory").
func (w *Walker) applyDirMetadata(fsPath string, inode catalog.Inode) {
	_ = os.Chown(fsPath, int(inode.UID), int(inode.GID))
	_ = os.Chmod(fsPath, os.FileMode(inode.Perm))
	_ = os.Chtimes(fsPath, inode.Atime.ToTime(), inode.Mtime.ToTime())
}

func namedEntryName(e catalog.Entry) string {
	switch v := e.(type) {
	case *catalog.File:
		return v.Name
	case *catalog.Symlink:
		return v.Name
	case *catalog.CharDev:
		return v.Name
	case *catalog.BlockDev:
		return v.Name
	case *catalog.Pipe:
		return v.Name
	case *catalog.Socket:
		return v.Name
	case *catalog.Door:
		return v.Name
	case *catalog.Deleted:
		return v.Name
	case *catalog.Mirage:
		return v.Name
	case catalog.Ignored:
		return v.Name
	case catalog.IgnoredDir:
		return v.Name
	default:
		return ""
	}
}

func referenceInode(e catalog.Entry) (catalog.Inode, bool) {
	switch v := e.(type) {
	case *catalog.File:
		return v.Inode, true
	case *catalog.Symlink:
		return v.Inode, true
	case *catalog.CharDev:
		return v.Inode, true
	case *catalog.BlockDev:
		return v.Inode, true
	case *catalog.Pipe:
		return v.Inode, true
	case *catalog.Socket:
		return v.Inode, true
	case *catalog.Door:
		return v.Inode, true
	case *catalog.Mirage:
		if v.Star != nil {
			return referenceInode(v.Star.Inode)
		}
	}
	return catalog.Inode{}, false
}

// synthesizeExisting builds a lightweight catalogue entry describing
// what is already on the filesystem at a target path, just enough for
// the overwrite engine's type/recency criteria (§4.8) to evaluate
// against — it is never added to a real catalogue.
func synthesizeExisting(fi os.FileInfo) catalog.Entry {
	inode := catalog.Inode{
		Named: catalog.Named{Name: fi.Name()},
		Perm:  uint32(fi.Mode().Perm()),
		Mtime: datetime.FromTime(fi.ModTime()),
	}
	switch {
	case fi.IsDir():
		return catalog.NewDirectory(inode)
	case fi.Mode()&os.ModeSymlink != 0:
		return &catalog.Symlink{Inode: inode}
	default:
		return &catalog.File{Inode: inode}
	}
}
