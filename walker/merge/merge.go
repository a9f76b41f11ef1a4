package merge

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/edrusb/darchive/catalog"
	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/metrics"
	"github.com/edrusb/darchive/overwrite"
	"github.com/edrusb/darchive/pathval"
	"github.com/edrusb/darchive/stack/escape"
)

// SourceStream is the decoded-content view into one of the two input
// archives' data streams that merge reads file content from.
type SourceStream interface {
	io.Reader
	Skip(absolute int64) error
	SkipToNextMark(t escape.MarkType, forward bool) (bool, error)
	CurrentPosition() (int64, error)
}

// DestStream is the output archive's data stream merge writes the
// resulting catalogue's file content into.
type DestStream interface {
	io.Writer
	AddMarkAtCurrentPosition(t escape.MarkType) error
	CurrentPosition() (int64, error)
	SuspendCompression() error
	ResumeCompression()
}

// Walker runs one merge pass over two already-open catalogues.
type Walker struct {
	opts     Options
	ui       *logrus.Logger
	src1     SourceStream
	src2     SourceStream
	dest     DestStream
	counters *metrics.Counters
}

// New creates a Walker. src1/src2/dest may be nil for a metadata-only
// merge (e.g. isolated catalogues with no associated data).
func New(opts Options, ui *logrus.Logger, src1, src2 SourceStream, dest DestStream) *Walker {
	if ui == nil {
		ui = logrus.StandardLogger()
	}
	if opts.Policy == nil {
		opts.Policy = overwrite.Constant{Data: overwrite.DataOverwrite, EA: overwrite.EAOverwrite}
	}
	return &Walker{opts: opts, ui: ui, src1: src1, src2: src2, dest: dest, counters: metrics.New()}
}

func (w *Walker) Counters() *metrics.Counters { return w.counters }

// Run merges tree1 ("first"/incoming) and tree2 ("second"/in-place)
// into a freshly built catalogue.
func (w *Walker) Run(ctx context.Context, tree1, tree2 *catalog.Tree) (*catalog.Tree, error) {
	rootInode := tree2.Root.Inode
	if tree1 != nil && tree1.Root != nil {
		rootInode = tree1.Root.Inode
	}
	out := catalog.NewTree(catalog.NewDirectory(rootInode))
	if err := w.mergeDir(ctx, pathval.Path{}, dirOrNil(tree1), dirOrNil(tree2), out); err != nil {
		return nil, err
	}
	return out, nil
}

func dirOrNil(t *catalog.Tree) *catalog.Directory {
	if t == nil {
		return nil
	}
	return t.Root
}

func childName(e catalog.Entry) string {
	switch v := e.(type) {
	case *catalog.Directory:
		return v.Name
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

func childrenOf(d *catalog.Directory) []catalog.Entry {
	if d == nil {
		return nil
	}
	return d.Children()
}

// mergeDir unions dir1 and dir2's children by name and emits the
// merged result into out's current add directory.
func (w *Walker) mergeDir(ctx context.Context, rel pathval.Path, dir1, dir2 *catalog.Directory, out *catalog.Tree) error {
	seen := make(map[string]bool)
	order := make([]string, 0)
	byName1 := make(map[string]catalog.Entry)
	byName2 := make(map[string]catalog.Entry)

	for _, c := range childrenOf(dir1) {
		name := childName(c)
		if name == "" {
			continue
		}
		byName1[name] = c
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	for _, c := range childrenOf(dir2) {
		name := childName(c)
		if name == "" {
			continue
		}
		byName2[name] = c
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, "merge: cancelled")
		}
		childRel, _ := rel.AddName(name)
		if !nilOr(w.opts.NameMask).IsCovered(name) || !nilOr(w.opts.PathMask).IsCovered(childRel.Display()) {
			w.counters.Incr(metrics.SkippedByFilter)
			continue
		}
		e1, has1 := byName1[name]
		e2, has2 := byName2[name]
		if err := w.mergeEntry(ctx, childRel, e1, has1, e2, has2, out); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) mergeEntry(ctx context.Context, rel pathval.Path, e1 catalog.Entry, has1 bool, e2 catalog.Entry, has2 bool, out *catalog.Tree) error {
	d1, isDir1 := e1.(*catalog.Directory)
	d2, isDir2 := e2.(*catalog.Directory)

	if (has1 && isDir1) || (has2 && isDir2) {
		inode := pickDirInode(d1, has1 && isDir1, d2, has2 && isDir2)
		merged := catalog.NewDirectory(inode)
		out.Add(merged)
		var sub1, sub2 *catalog.Directory
		if has1 && isDir1 {
			sub1 = d1
		}
		if has2 && isDir2 {
			sub2 = d2
		}
		if err := w.mergeDir(ctx, rel, sub1, sub2, out); err != nil {
			return err
		}
		out.PopAdd()
		w.counters.Incr(metrics.Saved)
		return nil
	}

	if w.opts.Decremental {
		return w.mergeEntryDecremental(rel, e1, has1, e2, has2, out)
	}
	return w.mergeEntryNormal(rel, e1, has1, e2, has2, out)
}

func pickDirInode(d1 *catalog.Directory, has1 bool, d2 *catalog.Directory, has2 bool) catalog.Inode {
	if has1 {
		return d1.Inode
	}
	if has2 {
		return d2.Inode
	}
	return catalog.Inode{}
}

// mergeEntryNormal implements §4.11's base case: both sides present ->
// resolve via the overwriting policy; only one side present -> emit it
// unchanged.
func (w *Walker) mergeEntryNormal(rel pathval.Path, e1 catalog.Entry, has1 bool, e2 catalog.Entry, has2 bool, out *catalog.Tree) error {
	switch {
	case has1 && has2:
		outcome, err := overwrite.Resolve(w.opts.Policy, e2, e1, w.opts.Resolver)
		if err != nil {
			return errs.Wrapf(err, "merge: resolving %s", rel.Display())
		}
		var winner catalog.Entry
		var src SourceStream
		switch outcome.Data {
		case overwrite.DataOverwrite, overwrite.DataOverwriteMarkAlreadySaved, overwrite.DataAsk:
			winner, src = e1, w.src1
		case overwrite.DataRemove:
			w.counters.Incr(metrics.Removed)
			return nil
		default: // DataPreserve and its MarkAlreadySaved variant
			winner, src = e2, w.src2
		}
		return w.emitEntry(winner, src, out)
	case has1:
		return w.emitEntry(e1, w.src1, out)
	case has2:
		return w.emitEntry(e2, w.src2, out)
	}
	return nil
}

// mergeEntryDecremental implements §4.11's decremental mode: every name
// carried by the second input becomes a deleted-marker, and the first
// input's entry is additionally emitted when it is new (absent from the
// second) or newer than the second's (by inode mtime/ctime). Both can
// legitimately appear for the same name: the marker records "this
// version of the entry goes away", the fresh entry records "replaced by
// this one".
func (w *Walker) mergeEntryDecremental(rel pathval.Path, e1 catalog.Entry, has1 bool, e2 catalog.Entry, has2 bool, out *catalog.Tree) error {
	if has2 {
		out.Add(&catalog.Deleted{Named: catalog.Named{Name: childName(e2)}, OriginalSignature: e2.Signature()})
		w.counters.Incr(metrics.Removed)
	}
	emitFirst := has1 && (!has2 || isNewerEntry(e1, e2))
	if emitFirst {
		return w.emitEntry(e1, w.src1, out)
	}
	return nil
}

func isNewerEntry(e1, e2 catalog.Entry) bool {
	i1, ok1 := referenceInode(e1)
	i2, ok2 := referenceInode(e2)
	if !ok1 || !ok2 {
		return ok1
	}
	return i1.IsMoreRecentThan(i2)
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

// emitEntry appends a (possibly content-bearing) entry to out's current
// add directory, streaming its content through from src when it carries
// any.
func (w *Walker) emitEntry(e catalog.Entry, src SourceStream, out *catalog.Tree) error {
	f, isFile := e.(*catalog.File)
	if !isFile || f.SavedState != catalog.Saved || w.dest == nil || src == nil {
		out.Add(e)
		w.counters.Incr(metrics.Saved)
		return nil
	}

	merged := *f
	if err := w.copyFileContent(&merged, src); err != nil {
		return err
	}
	out.Add(&merged)
	w.counters.Incr(metrics.Saved)
	return nil
}

// copyFileContent streams f's content from src into the destination
// stream, rewriting f's own offset/CRC fields to describe its new
// location (merge always re-streams into the sequential/escape-framed
// form, regardless of the source's original offset layout).
func (w *Walker) copyFileContent(f *catalog.File, src SourceStream) error {
	size, err := f.UncompressedSize.Uint64()
	if err != nil {
		return errs.Wrap(err, "merge: decoding stored size")
	}

	if f.HasOffset {
		off, err := f.ArchiveOffset.Uint64()
		if err != nil {
			return errs.Wrap(err, "merge: decoding source offset")
		}
		if err := src.Skip(int64(off)); err != nil {
			return errs.Wrap(err, "merge: seeking to source content")
		}
	} else if found, err := src.SkipToNextMark(escape.MarkFile, true); err != nil {
		return errs.Wrap(err, "merge: seeking source MarkFile")
	} else if !found {
		return errs.New(errs.KindRange, "merge: truncated source archive, MarkFile not found")
	}

	skipCompression := w.opts.KeepCompressed && f.CompressionAlgo == 0
	if skipCompression {
		if err := w.dest.SuspendCompression(); err != nil {
			return errs.Wrap(err, "merge: suspending compression")
		}
		defer w.dest.ResumeCompression()
	}

	if err := w.dest.AddMarkAtCurrentPosition(escape.MarkFile); err != nil {
		return errs.Wrap(err, "merge: writing MarkFile")
	}
	acc := crc.NewAccumulator(crc.WidthFor(int64(size)))
	tee := io.TeeReader(io.LimitReader(src, int64(size)), acc)
	if _, err := io.Copy(w.dest, tee); err != nil {
		return errs.Wrap(err, "merge: copying file content")
	}
	if err := w.dest.AddMarkAtCurrentPosition(escape.MarkFileCRC); err != nil {
		return errs.Wrap(err, "merge: writing MarkFileCRC")
	}

	f.HasOffset = false
	f.ContentCRC = acc.Sum()
	return nil
}
