package backup

import (
	"bytes"
	"context"
	"errors"
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
	"github.com/edrusb/darchive/infinint"
	"github.com/edrusb/darchive/metrics"
	"github.com/edrusb/darchive/pathval"
	"github.com/edrusb/darchive/stack/compress"
	"github.com/edrusb/darchive/stack/escape"
	"github.com/edrusb/darchive/walker/internal/etage"
	"github.com/edrusb/darchive/walker/internal/stat"
)

// errFurtiveUnsupported is returned by openFurtive when the platform or
// filesystem cannot honour O_NOATIME.
var errFurtiveUnsupported = errors.New("backup: furtive open not supported here")

// DeltaSignatureProvider fetches the decoded delta signature a reference
// catalogue's File entry points at. The walker itself only ever holds
// the reference catalogue tree, not the archive byte stream it was read
// from, so resolving SigOffset/SigSize into an actual delta.Signature is
// left to the caller (the archive façade, which owns that channel).
type DeltaSignatureProvider func(ref *catalog.File) (delta.Signature, bool)

// Stream is the subset of *escape.Layer the backup walker writes file
// content and marks through.
type Stream interface {
	io.Writer
	AddMarkAtCurrentPosition(t escape.MarkType) error
	CurrentPosition() (int64, error)
	SuspendCompression() error
	ResumeCompression()
}

// Walker runs one backup pass: a recursive filesystem scan compared
// against an optional reference catalogue, grounded on the original's
// filesystem_backup.cpp (recursion and hard-link bookkeeping) and
// filtre.cpp (per-entry mask/recency decision).
type Walker struct {
	opts     Options
	ui       *logrus.Logger
	tracker  *catalog.ReadLinkTracker
	counters *metrics.Counters
	stream   Stream
	sigFor   DeltaSignatureProvider
}

// New creates a Walker. stream may be nil for a metadata-only dry run
// (no file content or marks are written, and every regular file keeps
// the SavedState decided by the recency rule, e.g. catalog.Saved for a
// full backup).
func New(opts Options, ui *logrus.Logger, stream Stream, sigFor DeltaSignatureProvider) *Walker {
	if ui == nil {
		ui = logrus.StandardLogger()
	}
	return &Walker{
		opts:     opts,
		ui:       ui,
		tracker:  catalog.NewReadLinkTracker(),
		counters: metrics.New(),
		stream:   stream,
		sigFor:   sigFor,
	}
}

// Counters exposes the per-category outcome counts accumulated so far.
func (w *Walker) Counters() *metrics.Counters { return w.counters }

// Run walks root, comparing each entry against reference (nil for a full
// backup), and returns the resulting catalogue tree.
func (w *Walker) Run(ctx context.Context, root string, reference *catalog.Directory) (*catalog.Tree, error) {
	fi, err := os.Lstat(root)
	if err != nil {
		return nil, errs.Wrapf(err, "backup.Run: stat %s", root)
	}
	rootInode, _, err := w.buildInode(root, fi, pathval.Path{})
	if err != nil {
		return nil, err
	}
	tree := catalog.NewTree(catalog.NewDirectory(rootInode))

	var cmp *catalog.Comparator
	if reference != nil {
		cmp = catalog.NewComparator(reference)
	}

	if err := w.walkDir(ctx, root, pathval.Path{}, tree, cmp); err != nil {
		return nil, err
	}

	if reference != nil {
		catalog.UpdateDestroyedWith(tree, catalog.NewTree(reference))
	}
	return tree, nil
}

func (w *Walker) walkDir(ctx context.Context, fsPath string, relPath pathval.Path, tree *catalog.Tree, cmp *catalog.Comparator) error {
	listing, err := etage.New(w.ui, fsPath, w.opts.CacheDirTagging, w.opts.FurtiveRead)
	if err != nil {
		return errs.Wrapf(err, "backup: listing %s", fsPath)
	}

	for {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, "backup: cancelled")
		}
		name, ok := listing.Read()
		if !ok {
			return nil
		}

		childPath, err := relPath.AddName(name)
		if err != nil {
			w.ui.Warnf("backup: skipping %s: %v", name, err)
			w.counters.Incr(metrics.Errored)
			continue
		}
		fsChild := filepath.Join(fsPath, name)

		if !nilOr(w.opts.NameMask).IsCovered(name) || !nilOr(w.opts.PathMask).IsCovered(childPath.Display()) {
			w.recordExcluded(tree, fsChild, name, childPath)
			continue
		}

		fi, err := os.Lstat(fsChild)
		if err != nil {
			w.ui.Warnf("backup: lstat %s: %v", fsChild, err)
			w.counters.Incr(metrics.Errored)
			continue
		}

		var refEntry catalog.Entry
		var hasRef bool
		if cmp != nil {
			refEntry, hasRef = cmp.Compare(name)
		}

		if fi.IsDir() {
			entry, nodumpSkip, err := w.buildInode(fsChild, fi, childPath)
			if err != nil {
				w.ui.Warnf("backup: %s: %v", fsChild, err)
				w.counters.Incr(metrics.Errored)
				continue
			}
			if nodumpSkip {
				tree.Add(catalog.Ignored{Named: catalog.Named{Name: name}})
				w.counters.Incr(metrics.SkippedByFilter)
				continue
			}
			entry.SavedState = w.decideSavedStatus(refEntry, hasRef, entry)
			dir := catalog.NewDirectory(entry)
			tree.Add(dir)
			if cmp != nil {
				cmp.Descend(name)
			}
			if err := w.walkDir(ctx, fsChild, childPath, tree, cmp); err != nil {
				return err
			}
			tree.PopAdd()
			if cmp != nil {
				cmp.Ascend()
			}
			w.countSaved(entry.SavedState)
			continue
		}

		entry, err := w.buildNonDirEntry(fi, fsChild, name, childPath, refEntry, hasRef)
		if err != nil {
			w.ui.Warnf("backup: %s: %v", fsChild, err)
			w.counters.Incr(metrics.Errored)
			continue
		}
		if entry != nil {
			tree.Add(entry)
		}
	}
}

func (w *Walker) recordExcluded(tree *catalog.Tree, fsChild, name string, childPath pathval.Path) {
	w.counters.Incr(metrics.SkippedByFilter)
	if fi, err := os.Lstat(fsChild); err == nil && fi.IsDir() {
		if inode, nodumpSkip, err := w.buildInode(fsChild, fi, childPath); err == nil && !nodumpSkip {
			tree.Add(catalog.IgnoredDir{Inode: inode})
			return
		}
	}
	tree.Add(catalog.Ignored{Named: catalog.Named{Name: name}})
}

func (w *Walker) countSaved(s catalog.SavedStatus) {
	switch s {
	case catalog.Saved, catalog.Delta:
		w.counters.Incr(metrics.Saved)
	case catalog.NotSaved:
		w.counters.Incr(metrics.NotChanged)
	}
}

// buildInode stats path (already Lstat'd by the caller as fi) and
// assembles the common Inode fields: ownership, permissions, times, EA
// and FSA. nodumpSkip reports that --nodump honouring excluded this
// entry entirely (the FSA nodump flag was set).
func (w *Walker) buildInode(path string, fi os.FileInfo, relPath pathval.Path) (inode catalog.Inode, nodumpSkip bool, err error) {
	info, _ := stat.From(fi)
	if info.Atime.IsZero() {
		info.Atime = fi.ModTime()
	}

	inode = catalog.Inode{
		Named:      catalog.Named{Name: fi.Name()},
		UID:        info.UID,
		GID:        info.GID,
		Perm:       uint32(fi.Mode().Perm()),
		Atime:      datetime.FromTime(info.Atime),
		Mtime:      datetime.FromTime(fi.ModTime()),
		Ctime:      datetime.FromTime(info.Ctime),
		SavedState: catalog.Saved,
		DeviceID:   info.Dev,
	}

	fsa, err := fsattr.ReadFSA(path)
	if err == nil {
		if w.opts.HonorNodump && fsattr.HasNodump(fsa) {
			return catalog.Inode{}, true, nil
		}
		if nilOr(w.opts.EAMask).IsCovered(relPath.Display()) {
			inode.FSA = fsa
			inode.FSAState = catalog.FSAFull
		}
	}

	if nilOr(w.opts.EAMask).IsCovered(relPath.Display()) {
		if ea, err := fsattr.ReadEA(path); err == nil {
			inode.EA = ea
			inode.EAState = catalog.EAFull
		}
	}

	return inode, false, nil
}

// buildNonDirEntry dispatches on the filesystem entry kind for anything
// that is not a directory: plain files, symlinks, device nodes, fifos
// and sockets, with hard-link tracking applied uniformly.
func (w *Walker) buildNonDirEntry(fi os.FileInfo, fsPath, name string, relPath pathval.Path, refEntry catalog.Entry, hasRef bool) (catalog.Entry, error) {
	inode, nodumpSkip, err := w.buildInode(fsPath, fi, relPath)
	if err != nil {
		return nil, err
	}
	if nodumpSkip {
		w.counters.Incr(metrics.SkippedByFilter)
		return catalog.Ignored{Named: catalog.Named{Name: name}}, nil
	}
	inode.SavedState = w.decideSavedStatus(refEntry, hasRef, inode)

	info, hasStat := stat.From(fi)
	nlink := uint64(1)
	if hasStat {
		nlink = info.Nlink
	}

	var built catalog.Entry
	mode := fi.Mode()
	switch {
	case mode.IsRegular():
		f := &catalog.File{Inode: inode}
		if err := w.fillFileContent(f, fsPath, fi, refEntry, hasRef); err != nil {
			w.ui.Warnf("backup: %s: %v", fsPath, err)
			w.counters.Incr(metrics.Errored)
			f.SavedState = catalog.InodeOnly
		} else {
			w.countSaved(f.SavedState)
		}
		built = f
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(fsPath)
		if err != nil {
			return nil, errs.Wrapf(err, "backup: readlink %s", fsPath)
		}
		built = &catalog.Symlink{Inode: inode, Target: target}
		w.countSaved(inode.SavedState)
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		major, minor := stat.MajorMinor(info.Rdev)
		built = &catalog.CharDev{Inode: inode, Major: major, Minor: minor}
		w.countSaved(inode.SavedState)
	case mode&os.ModeDevice != 0:
		major, minor := stat.MajorMinor(info.Rdev)
		built = &catalog.BlockDev{Inode: inode, Major: major, Minor: minor}
		w.countSaved(inode.SavedState)
	case mode&os.ModeNamedPipe != 0:
		built = &catalog.Pipe{Inode: inode}
		w.countSaved(inode.SavedState)
	case mode&os.ModeSocket != 0:
		built = &catalog.Socket{Inode: inode}
		w.countSaved(inode.SavedState)
	default:
		w.counters.Incr(metrics.SkippedByFilter)
		return catalog.Ignored{Named: catalog.Named{Name: name}}, nil
	}

	entry, _ := w.tracker.Observe(info.Dev, info.Ino, nlink, name, built)
	return entry, nil
}

// decideSavedStatus applies §4.9's per-entry recency rule: full save
// unless a reference entry exists and is not older than the incoming
// one, in which case the entry is recorded reference/not-saved.
func (w *Walker) decideSavedStatus(refEntry catalog.Entry, hasRef bool, incoming catalog.Inode) catalog.SavedStatus {
	if !hasRef {
		return catalog.Saved
	}
	refInode, ok := referenceInode(refEntry)
	if !ok {
		return catalog.Saved
	}
	if incoming.IsMoreRecentThan(refInode) {
		return catalog.Saved
	}
	return catalog.NotSaved
}

// referenceInode extracts the comparable Inode from any reference-tree
// entry that carries one, dereferencing a Mirage's Star.
func referenceInode(e catalog.Entry) (catalog.Inode, bool) {
	switch v := e.(type) {
	case *catalog.Directory:
		return v.Inode, true
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
	case catalog.IgnoredDir:
		return v.Inode, true
	case *catalog.Mirage:
		if v.Star != nil {
			return referenceInode(v.Star.Inode)
		}
	}
	return catalog.Inode{}, false
}

// fillFileContent decides between full save, delta save and
// reference/not-saved for a plain file, and streams the corresponding
// content when w.stream is non-nil.
func (w *Walker) fillFileContent(f *catalog.File, fsPath string, fi os.FileInfo, refEntry catalog.Entry, hasRef bool) error {
	if f.SavedState == catalog.NotSaved {
		if hasRef {
			if refFile, ok := refEntry.(*catalog.File); ok {
				f.ContentCRC = refFile.ContentCRC
				f.UncompressedSize = refFile.UncompressedSize
				f.CompressionAlgo = refFile.CompressionAlgo
			}
		}
		return nil
	}

	var refFile *catalog.File
	if hasRef {
		refFile, _ = refEntry.(*catalog.File)
	}
	if refFile != nil && refFile.HasDeltaSig && w.opts.DeltaSaveEnabled && w.sigFor != nil {
		if sig, ok := w.sigFor(refFile); ok {
			if err := w.saveDeltaContent(f, fsPath, refFile, sig); err == nil {
				f.SavedState = catalog.Delta
				return nil
			}
			// fall through to a full save if the delta attempt failed.
		}
	}

	return w.saveFullContent(f, fsPath, fi)
}

// saveFullContent streams the whole file, with up to
// Options.MaxInReadRetries restarts if the file is observed to change
// size or mtime mid-read (§4.9 "in-read modifications").
func (w *Walker) saveFullContent(f *catalog.File, fsPath string, fi os.FileInfo) error {
	if w.stream == nil {
		f.UncompressedSize = infinint.FromUint64(uint64(fi.Size()))
		return nil
	}

	compressIt := w.opts.CompressionAlgo != compress.AlgoNone &&
		fi.Size() >= w.opts.MinCompressSize &&
		nilOr(w.opts.CompressionMask).IsCovered(fsPath)

	maxRetries := w.opts.MaxInReadRetries
	for attempt := 0; ; attempt++ {
		n, acc, err := w.copyFileOnce(fsPath, compressIt)
		if err != nil {
			return err
		}
		again, err := os.Lstat(fsPath)
		changed := err == nil && (again.Size() != n || !again.ModTime().Equal(fi.ModTime()))
		if !changed {
			f.UncompressedSize = infinint.FromUint64(uint64(n))
			f.ContentCRC = acc.Sum()
			if compressIt {
				f.CompressionAlgo = byte(w.opts.CompressionAlgo)
			}
			return w.maybeStoreDeltaSignature(f, fsPath)
		}
		if attempt >= maxRetries {
			switch w.opts.OnRetryExhausted {
			case RetryFailedBackup:
				_ = w.stream.AddMarkAtCurrentPosition(escape.MarkFailedBackup)
				return errs.Newf(errs.KindData, "backup: %s changed during backup, retries exhausted", fsPath)
			default:
				f.Dirty = true
				f.UncompressedSize = infinint.FromUint64(uint64(n))
				f.ContentCRC = acc.Sum()
				_ = w.stream.AddMarkAtCurrentPosition(escape.MarkDirty)
				return nil
			}
		}
		if err := w.stream.AddMarkAtCurrentPosition(escape.MarkChanged); err != nil {
			return err
		}
		fi = again
	}
}

// copyFileOnce streams one full pass of fsPath's content to w.stream,
// computing its content CRC as it goes.
func (w *Walker) copyFileOnce(fsPath string, compressIt bool) (int64, *crc.CRC, error) {
	var file *os.File
	var err error
	if w.opts.FurtiveRead {
		file, err = openFurtive(fsPath)
		if errors.Is(err, errFurtiveUnsupported) {
			w.ui.Warnf("backup: furtive open of %s unsupported, using normal open", fsPath)
			file, err = os.Open(fsPath)
		}
	} else {
		file, err = os.Open(fsPath)
	}
	if err != nil {
		return 0, nil, errs.Wrapf(err, "backup: opening %s", fsPath)
	}
	defer file.Close()

	if !compressIt {
		if err := w.stream.SuspendCompression(); err != nil {
			return 0, nil, err
		}
		defer w.stream.ResumeCompression()
	}
	if err := w.stream.AddMarkAtCurrentPosition(escape.MarkFile); err != nil {
		return 0, nil, err
	}

	size, _ := fileSizeHint(file)
	acc := crc.NewAccumulator(crc.WidthFor(size))
	n, err := io.Copy(io.MultiWriter(w.stream, acc), file)
	if err != nil {
		return n, nil, errs.Wrapf(err, "backup: reading %s", fsPath)
	}
	if err := w.stream.AddMarkAtCurrentPosition(escape.MarkFileCRC); err != nil {
		return n, nil, err
	}
	return n, acc.Sum(), nil
}

func fileSizeHint(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// maybeStoreDeltaSignature computes and stores a rolling signature for
// f's freshly-saved content, when Options.ComputeDeltaSignature is set,
// so a future backup can delta against this one (§4.9 "delta
// signatures").
func (w *Walker) maybeStoreDeltaSignature(f *catalog.File, fsPath string) error {
	if !w.opts.ComputeDeltaSignature || w.opts.DeltaBlockSize <= 0 {
		return nil
	}
	sigFile, err := os.Open(fsPath)
	if err != nil {
		return nil // best-effort: no signature is not a backup failure
	}
	defer sigFile.Close()

	sig, err := delta.ComputeSignature(sigFile, w.opts.DeltaBlockSize)
	if err != nil {
		return nil
	}
	payload, err := encodeToBuffer(func(w io.Writer) error { return encodeSignature(w, sig) })
	if err != nil {
		return nil
	}

	if err := w.stream.AddMarkAtCurrentPosition(escape.MarkDeltaSig); err != nil {
		return err
	}
	start, err := w.stream.CurrentPosition()
	if err != nil {
		return err
	}
	if _, err := w.stream.Write(payload); err != nil {
		return err
	}
	end, err := w.stream.CurrentPosition()
	if err != nil {
		return err
	}

	sigAcc := crc.NewAccumulator(crc.WidthFor(int64(len(payload))))
	sigAcc.Write(payload)

	f.HasDeltaSig = true
	f.SigOffset = infinint.FromUint64(uint64(start))
	f.SigSize = infinint.FromUint64(uint64(end - start))
	f.SigCRC = sigAcc.Sum()
	return nil
}

// saveDeltaContent streams a delta patch of fsPath against sig (the
// reference file's signature) instead of the full content, recording
// base-CRC (the reference's content CRC) and result-CRC (freshly
// computed over the incoming content), per §4.9's delta-saved bullet.
func (w *Walker) saveDeltaContent(f *catalog.File, fsPath string, refFile *catalog.File, sig delta.Signature) error {
	data, err := os.ReadFile(fsPath)
	if err != nil {
		return errs.Wrapf(err, "backup: reading %s for delta", fsPath)
	}

	patch, err := delta.ComputeDelta(sig, bytes.NewReader(data))
	if err != nil {
		return errs.Wrap(err, "backup: computing delta")
	}
	payload, err := encodeToBuffer(func(w io.Writer) error { return encodePatch(w, patch) })
	if err != nil {
		return err
	}

	resultAcc := crc.NewAccumulator(crc.WidthFor(int64(len(data))))
	resultAcc.Write(data)

	if err := w.stream.AddMarkAtCurrentPosition(escape.MarkDeltaSig); err != nil {
		return err
	}
	start, err := w.stream.CurrentPosition()
	if err != nil {
		return err
	}
	if err := w.stream.SuspendCompression(); err != nil {
		return err
	}
	_, werr := w.stream.Write(payload)
	w.stream.ResumeCompression()
	if werr != nil {
		return werr
	}
	end, err := w.stream.CurrentPosition()
	if err != nil {
		return err
	}

	f.HasOffset = true
	f.ArchiveOffset = infinint.FromUint64(uint64(start))
	f.StoredSize = infinint.FromUint64(uint64(end - start))
	f.UncompressedSize = infinint.FromUint64(uint64(len(data)))
	f.BaseCRC = refFile.ContentCRC
	f.ResultCRC = resultAcc.Sum()
	return nil
}
