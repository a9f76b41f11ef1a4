package catalog

import (
	"bufio"
	"io"

	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/fsattr"
	"github.com/edrusb/darchive/infinint"
)

// WriteLinkMap hands out etiquettes during a dump. Whether a Star's inode
// payload has already been serialised is recorded on the Star itself
// (firstWritten): the first mirage pointing at a given Star writes the
// payload, every subsequent one writes only the Etiquette
// (§4.7 "Write side").
type WriteLinkMap struct {
	next uint64
}

// NewWriteLinkMap creates an empty write-side hard-link map.
func NewWriteLinkMap() *WriteLinkMap { return &WriteLinkMap{next: 1} }

// Assign gives s a fresh Etiquette if it does not have one yet.
func (m *WriteLinkMap) Assign(s *Star) {
	if s.Etiquette == 0 {
		s.Etiquette = m.next
		m.next++
	}
}

// ReadLinkMap resolves mirages back to their shared Star while loading a
// catalogue (§4.7 "Read side" as used on the load path: keyed by the
// archive-local Etiquette rather than (device,inode), since the archive
// no longer has direct filesystem access).
type ReadLinkMap struct {
	byEtiquette map[uint64]*Star
}

// NewReadLinkMap creates an empty read-side resolution map.
func NewReadLinkMap() *ReadLinkMap { return &ReadLinkMap{byEtiquette: make(map[uint64]*Star)} }

func writeCString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func readCString(r *bufio.Reader) (string, error) {
	b, err := r.ReadBytes(0)
	if err != nil {
		return "", err
	}
	return string(b[:len(b)-1]), nil
}

func writeTime(w io.Writer, t datetime.DateTime) error {
	neg, mag := t.EncodeSeconds()
	var negByte byte
	if neg {
		negByte = 1
	}
	if _, err := w.Write([]byte{negByte}); err != nil {
		return err
	}
	if err := mag.Encode(w); err != nil {
		return err
	}
	return infinint.FromUint64(uint64(t.Frac)).Encode(w)
}

func readTime(r io.Reader) (datetime.DateTime, error) {
	var negByte [1]byte
	if _, err := io.ReadFull(r, negByte[:]); err != nil {
		return datetime.DateTime{}, err
	}
	mag, err := infinint.Decode(r)
	if err != nil {
		return datetime.DateTime{}, err
	}
	sec, err := datetime.DecodeSeconds(negByte[0] == 1, mag)
	if err != nil {
		return datetime.DateTime{}, err
	}
	fracI, err := infinint.Decode(r)
	if err != nil {
		return datetime.DateTime{}, err
	}
	frac, err := fracI.Uint64()
	if err != nil {
		return datetime.DateTime{}, err
	}
	return datetime.DateTime{Seconds: sec, Frac: int64(frac), FracU: datetime.Nanosecond}, nil
}

func writeEASet(w io.Writer, eas []fsattr.EA) error {
	if err := infinint.FromInt(len(eas)).Encode(w); err != nil {
		return err
	}
	for _, ea := range eas {
		if err := writeCString(w, ea.Key); err != nil {
			return err
		}
		if err := writeCString(w, string(ea.Value)); err != nil {
			return err
		}
	}
	return nil
}

func readEASet(r *bufio.Reader) ([]fsattr.EA, error) {
	n, err := infinint.Decode(r)
	if err != nil {
		return nil, err
	}
	count, err := n.Uint64()
	if err != nil {
		return nil, err
	}
	out := make([]fsattr.EA, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readCString(r)
		if err != nil {
			return nil, err
		}
		val, err := readCString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, fsattr.EA{Key: key, Value: []byte(val)})
	}
	return out, nil
}

func writeFSASet(w io.Writer, fsas []fsattr.FSA) error {
	if err := infinint.FromInt(len(fsas)).Encode(w); err != nil {
		return err
	}
	for _, f := range fsas {
		if _, err := w.Write([]byte{byte(f.Family), byte(f.Nature)}); err != nil {
			return err
		}
		var b byte
		if f.Bool {
			b = 1
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		if err := writeTime(w, datetime.FromTime(f.Time)); err != nil {
			return err
		}
	}
	return nil
}

func readFSASet(r *bufio.Reader) ([]fsattr.FSA, error) {
	n, err := infinint.Decode(r)
	if err != nil {
		return nil, err
	}
	count, err := n.Uint64()
	if err != nil {
		return nil, err
	}
	out := make([]fsattr.FSA, 0, count)
	for i := uint64(0); i < count; i++ {
		var tag [2]byte
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			return nil, err
		}
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		dt, err := readTime(r)
		if err != nil {
			return nil, err
		}
		out = append(out, fsattr.FSA{
			Family: fsattr.FSAFamily(tag[0]),
			Nature: fsattr.FSANature(tag[1]),
			Bool:   b[0] == 1,
			Time:   dt.ToTime(),
		})
	}
	return out, nil
}

func writeInodeCommon(w io.Writer, i Inode) error {
	if err := writeCString(w, i.Name); err != nil {
		return err
	}
	if err := infinint.FromUint64(uint64(i.UID)).Encode(w); err != nil {
		return err
	}
	if err := infinint.FromUint64(uint64(i.GID)).Encode(w); err != nil {
		return err
	}
	if err := infinint.FromUint64(uint64(i.Perm)).Encode(w); err != nil {
		return err
	}
	for _, t := range []datetime.DateTime{i.Atime, i.Mtime, i.Ctime} {
		if err := writeTime(w, t); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{byte(i.EAState)}); err != nil {
		return err
	}
	if i.EAState == EAFull {
		if err := writeEASet(w, i.EA); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte{byte(i.FSAState)}); err != nil {
		return err
	}
	if i.FSAState == FSAFull {
		if err := writeFSASet(w, i.FSA); err != nil {
			return err
		}
	}
	return nil
}

func readInodeCommon(r *bufio.Reader, saved SavedStatus) (Inode, error) {
	var i Inode
	i.SavedState = saved
	name, err := readCString(r)
	if err != nil {
		return i, err
	}
	i.Name = name
	uid, err := infinint.Decode(r)
	if err != nil {
		return i, err
	}
	uidv, err := uid.Uint64()
	if err != nil {
		return i, err
	}
	i.UID = uint32(uidv)

	gid, err := infinint.Decode(r)
	if err != nil {
		return i, err
	}
	gidv, err := gid.Uint64()
	if err != nil {
		return i, err
	}
	i.GID = uint32(gidv)

	perm, err := infinint.Decode(r)
	if err != nil {
		return i, err
	}
	permv, err := perm.Uint64()
	if err != nil {
		return i, err
	}
	i.Perm = uint32(permv)

	if i.Atime, err = readTime(r); err != nil {
		return i, err
	}
	if i.Mtime, err = readTime(r); err != nil {
		return i, err
	}
	if i.Ctime, err = readTime(r); err != nil {
		return i, err
	}

	var eaState [1]byte
	if _, err := io.ReadFull(r, eaState[:]); err != nil {
		return i, err
	}
	i.EAState = EAStatus(eaState[0])
	if i.EAState == EAFull {
		if i.EA, err = readEASet(r); err != nil {
			return i, err
		}
	}

	var fsaState [1]byte
	if _, err := io.ReadFull(r, fsaState[:]); err != nil {
		return i, err
	}
	i.FSAState = FSAStatus(fsaState[0])
	if i.FSAState == FSAFull {
		if i.FSA, err = readFSASet(r); err != nil {
			return i, err
		}
	}
	return i, nil
}

// DumpEntry writes e to w. small selects the inline streamed form (used
// while backing up: file data offsets are implicit, determined by stream
// position) versus the compact tail form (file data offsets explicit).
func DumpEntry(w io.Writer, e Entry, small bool, wlm *WriteLinkMap) error {
	sig := e.Signature()
	if _, err := w.Write([]byte{sig}); err != nil {
		return errs.Wrap(err, "catalog.DumpEntry: writing signature")
	}
	switch v := e.(type) {
	case Eod:
		return nil
	case Ignored:
		return errs.New(errs.KindBug, "catalog.DumpEntry: Ignored must never be dumped directly")
	case IgnoredDir:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		_, err := w.Write([]byte{Eod{}.Signature()})
		return err
	case *Deleted:
		if err := writeCString(w, v.Name); err != nil {
			return err
		}
		_, err := w.Write([]byte{v.OriginalSignature})
		return err
	case *Directory:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		for _, c := range v.children {
			if _, skip := c.(Ignored); skip {
				continue
			}
			if err := DumpEntry(w, c, small, wlm); err != nil {
				return err
			}
		}
		_, err := w.Write([]byte{Eod{}.Signature()})
		return err
	case *File:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		return dumpFileBody(w, v, small)
	case *Symlink:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		return writeCString(w, v.Target)
	case *CharDev:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		return dumpDevNums(w, v.Major, v.Minor)
	case *BlockDev:
		if err := writeInodeCommon(w, v.Inode); err != nil {
			return err
		}
		return dumpDevNums(w, v.Major, v.Minor)
	case *Pipe:
		return writeInodeCommon(w, v.Inode)
	case *Socket:
		return writeInodeCommon(w, v.Inode)
	case *Door:
		return writeInodeCommon(w, v.Inode)
	case *Mirage:
		if err := writeCString(w, v.Name); err != nil {
			return err
		}
		wlm.Assign(v.Star)
		if err := infinint.FromUint64(v.Star.Etiquette).Encode(w); err != nil {
			return err
		}
		if v.Star.firstWritten {
			return nil
		}
		v.Star.firstWritten = true
		return DumpEntry(w, v.Star.Inode, small, wlm)
	default:
		return errs.Newf(errs.KindBug, "catalog.DumpEntry: unhandled entry type %T", e)
	}
}

func dumpDevNums(w io.Writer, major, minor uint32) error {
	if err := infinint.FromUint64(uint64(major)).Encode(w); err != nil {
		return err
	}
	return infinint.FromUint64(uint64(minor)).Encode(w)
}

func readDevNums(r io.Reader) (major, minor uint32, err error) {
	mi, err := infinint.Decode(r)
	if err != nil {
		return 0, 0, err
	}
	mv, err := mi.Uint64()
	if err != nil {
		return 0, 0, err
	}
	ni, err := infinint.Decode(r)
	if err != nil {
		return 0, 0, err
	}
	nv, err := ni.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return uint32(mv), uint32(nv), nil
}

func dumpFileBody(w io.Writer, f *File, small bool) error {
	if err := f.UncompressedSize.Encode(w); err != nil {
		return err
	}
	if !small {
		var hasOffset byte
		if f.HasOffset {
			hasOffset = 1
		}
		if _, err := w.Write([]byte{hasOffset}); err != nil {
			return err
		}
		if f.HasOffset {
			if err := f.ArchiveOffset.Encode(w); err != nil {
				return err
			}
		}
	}
	if err := f.StoredSize.Encode(w); err != nil {
		return err
	}
	if _, err := w.Write([]byte{f.CompressionAlgo}); err != nil {
		return err
	}
	var flags byte
	if f.Sparse {
		flags |= 1
	}
	if f.Dirty {
		flags |= 2
	}
	if f.HasDeltaSig {
		flags |= 4
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}
	if f.ContentCRC != nil {
		if err := f.ContentCRC.Encode(w); err != nil {
			return err
		}
	} else {
		if err := crc.New(2).Encode(w); err != nil {
			return err
		}
	}
	if f.HasDeltaSig {
		if err := f.SigOffset.Encode(w); err != nil {
			return err
		}
		if err := f.SigSize.Encode(w); err != nil {
			return err
		}
		if err := f.SigCRC.Encode(w); err != nil {
			return err
		}
	}
	if f.SavedState == Delta {
		if err := f.BaseCRC.Encode(w); err != nil {
			return err
		}
		if err := f.ResultCRC.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

func readFileBody(r *bufio.Reader, small bool, inode Inode) (*File, error) {
	f := &File{Inode: inode}
	var err error
	if f.UncompressedSize, err = infinint.Decode(r); err != nil {
		return nil, err
	}
	if !small {
		var hasOffset [1]byte
		if _, err := io.ReadFull(r, hasOffset[:]); err != nil {
			return nil, err
		}
		f.HasOffset = hasOffset[0] == 1
		if f.HasOffset {
			if f.ArchiveOffset, err = infinint.Decode(r); err != nil {
				return nil, err
			}
		}
	}
	if f.StoredSize, err = infinint.Decode(r); err != nil {
		return nil, err
	}
	var algo [1]byte
	if _, err := io.ReadFull(r, algo[:]); err != nil {
		return nil, err
	}
	f.CompressionAlgo = algo[0]

	var flags [1]byte
	if _, err := io.ReadFull(r, flags[:]); err != nil {
		return nil, err
	}
	f.Sparse = flags[0]&1 != 0
	f.Dirty = flags[0]&2 != 0
	f.HasDeltaSig = flags[0]&4 != 0

	if f.ContentCRC, err = crc.Decode(r); err != nil {
		return nil, err
	}
	if f.HasDeltaSig {
		if f.SigOffset, err = infinint.Decode(r); err != nil {
			return nil, err
		}
		if f.SigSize, err = infinint.Decode(r); err != nil {
			return nil, err
		}
		if f.SigCRC, err = crc.Decode(r); err != nil {
			return nil, err
		}
	}
	if f.SavedState == Delta {
		if f.BaseCRC, err = crc.Decode(r); err != nil {
			return nil, err
		}
		if f.ResultCRC, err = crc.Decode(r); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// LoadEntry reads one entry previously written by DumpEntry. small must
// match the form DumpEntry was called with.
func LoadEntry(r *bufio.Reader, small bool, rlm *ReadLinkMap) (Entry, error) {
	sigByte, err := r.ReadByte()
	if err != nil {
		return nil, errs.Wrap(err, "catalog.LoadEntry: reading signature")
	}
	kind := kindLetterOf(sigByte)
	saved := savedFromSig(sigByte)

	switch {
	case sigByte == 'z':
		return Eod{}, nil
	case sigByte == 'x':
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		var orig [1]byte
		if _, err := io.ReadFull(r, orig[:]); err != nil {
			return nil, err
		}
		return &Deleted{Named: Named{Name: name}, OriginalSignature: orig[0]}, nil
	case sigByte == 'm':
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		eti, err := infinint.Decode(r)
		if err != nil {
			return nil, err
		}
		etiV, err := eti.Uint64()
		if err != nil {
			return nil, err
		}
		star, known := rlm.byEtiquette[etiV]
		if !known {
			inner, err := LoadEntry(r, small, rlm)
			if err != nil {
				return nil, err
			}
			star = &Star{Inode: inner, Etiquette: etiV}
			rlm.byEtiquette[etiV] = star
		}
		star.IncRef()
		return &Mirage{Named: Named{Name: name}, Star: star}, nil
	case kind == 'j':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		if _, err := LoadEntry(r, small, rlm); err != nil { // the immediate Eod
			return nil, err
		}
		return NewDirectory(inode), nil
	case kind == 'd':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		d := NewDirectory(inode)
		for {
			child, err := LoadEntry(r, small, rlm)
			if err != nil {
				return nil, err
			}
			if _, isEod := child.(Eod); isEod {
				break
			}
			d.Add(child)
		}
		return d, nil
	case kind == 'f':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		return readFileBody(r, small, inode)
	case kind == 'l':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		target, err := readCString(r)
		if err != nil {
			return nil, err
		}
		return &Symlink{Inode: inode, Target: target}, nil
	case kind == 'c':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		maj, min, err := readDevNums(r)
		if err != nil {
			return nil, err
		}
		return &CharDev{Inode: inode, Major: maj, Minor: min}, nil
	case kind == 'b':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		maj, min, err := readDevNums(r)
		if err != nil {
			return nil, err
		}
		return &BlockDev{Inode: inode, Major: maj, Minor: min}, nil
	case kind == 'p':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		return &Pipe{Inode: inode}, nil
	case kind == 's':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		return &Socket{Inode: inode}, nil
	case kind == 'o':
		inode, err := readInodeCommon(r, saved)
		if err != nil {
			return nil, err
		}
		return &Door{Inode: inode}, nil
	default:
		return nil, errs.Newf(errs.KindRange, "catalog.LoadEntry: unknown signature byte 0x%02x", sigByte)
	}
}

func savedFromSig(sig byte) SavedStatus {
	switch {
	case sig&0x80 != 0:
		if base := sig &^ 0x80; base >= 'A' && base <= 'Z' {
			return Delta
		}
		return Fake
	case sig >= 'A' && sig <= 'Z':
		return NotSaved
	default:
		return Saved
	}
}

// DumpTree writes the whole tree in the compact tail form.
func DumpTree(w io.Writer, t *Tree) error {
	wlm := NewWriteLinkMap()
	return DumpEntry(w, t.Root, false, wlm)
}

// LoadTree parses a tree previously written by DumpTree.
func LoadTree(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)
	rlm := NewReadLinkMap()
	e, err := LoadEntry(br, false, rlm)
	if err != nil {
		return nil, err
	}
	root, ok := e.(*Directory)
	if !ok {
		return nil, errs.New(errs.KindRange, "catalog.LoadTree: archive root is not a directory")
	}
	return NewTree(root), nil
}
