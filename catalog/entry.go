// Package catalog implements the hierarchical, strongly-typed in-memory
// tree of archived entries, grounded on original_source/catalogue.hpp and
// the cat_*.cpp family (cat_directory, cat_file, cat_device, ...),
// re-expressed per §9's design note as a closed tagged union instead of
// the original's deep single-inheritance + RTTI hierarchy.
package catalog

import (
	"github.com/edrusb/darchive/crc"
	"github.com/edrusb/darchive/datetime"
	"github.com/edrusb/darchive/fsattr"
	"github.com/edrusb/darchive/infinint"
)

// SavedStatus is an inode's save state relative to the archive.
type SavedStatus int

const (
	Saved SavedStatus = iota
	NotSaved
	Fake
	Delta
	InodeOnly
)

// EAStatus is an inode's EA-saved state.
type EAStatus int

const (
	EANone EAStatus = iota
	EAPartial
	EAFull
	EAFake
	EARemoved
)

// FSAStatus is an inode's FSA-saved state.
type FSAStatus int

const (
	FSANone FSAStatus = iota
	FSAPartial
	FSAFull
)

// Entry is the closed tagged union of everything that can appear in a
// catalogue: directory, plain file, symlink, char/block device, pipe,
// socket, door, deleted marker, ignored/ignored-directory markers, and
// the hard-link proxy (mirage). Every variant implements Signature, which
// is both the on-disk discriminator and the in-memory tag (§3 "Entry
// signature byte").
type Entry interface {
	Signature() byte
}

// Named is embedded by every entry that carries a name (everything except
// Eod).
type Named struct {
	Name string
}

// Inode is embedded by every entry that represents a filesystem node
// (everything except Eod, Ignored, Deleted and Mirage, which instead
// hold a pointer to a shared Inode via Star).
type Inode struct {
	Named
	UID, GID   uint32
	Perm       uint32 // mode bits
	Atime      datetime.DateTime
	Mtime      datetime.DateTime
	Ctime      datetime.DateTime
	SavedState SavedStatus
	EAState    EAStatus
	FSAState   FSAStatus
	EA         []fsattr.EA
	FSA        []fsattr.FSA
	DeviceID   uint64 // source filesystem device id
}

// IsMoreRecentThan implements the inode comparison the backup walker and
// the catalogue's differential-compare step rely on: mtime first, ctime
// as a tiebreaker (a ctime-only change, e.g. a chmod, without an mtime
// change still counts as "changed" for the -am / consider-mtime-only
// option, handled by the caller).
func (i Inode) IsMoreRecentThan(other Inode) bool {
	if c := i.Mtime.Compare(other.Mtime); c != 0 {
		return c > 0
	}
	return i.Ctime.Compare(other.Ctime) > 0
}

// Eod is the end-of-directory sentinel. It is a marker only: directories
// serialise it after their children, but it is never itself a child in
// the in-memory tree.
type Eod struct{}

func (Eod) Signature() byte { return 'z' }

// Ignored represents a filesystem entry excluded by a mask. In-memory
// only; never dumped.
type Ignored struct{ Named }

func (Ignored) Signature() byte { return 'i' }

// IgnoredDir is like Ignored but for a directory whose descent was
// skipped. It carries the inode metadata the filesystem scan already
// read and is always dumped: its inode followed directly by an
// end-of-directory marker, with no children.
type IgnoredDir struct{ Inode }

func (IgnoredDir) Signature() byte { return 'j' }

// Directory is an ordered tree of children plus a fast name index.
type Directory struct {
	Inode
	children  []Entry
	nameIndex map[string]int

	// readCursor is the position of the sequential reader (Read/ResetRead).
	readCursor int
}

// NewDirectory creates an empty directory entry.
func NewDirectory(inode Inode) *Directory {
	return &Directory{Inode: inode, nameIndex: make(map[string]int)}
}

func (*Directory) Signature() byte { return sigFor('d', Saved) }

// entryName extracts the name of any Named-carrying entry, or "" for Eod.
func entryName(e Entry) string {
	switch v := e.(type) {
	case *Directory:
		return v.Name
	case *File:
		return v.Name
	case *Symlink:
		return v.Name
	case *CharDev:
		return v.Name
	case *BlockDev:
		return v.Name
	case *Pipe:
		return v.Name
	case *Socket:
		return v.Name
	case *Door:
		return v.Name
	case *Deleted:
		return v.Name
	case *Mirage:
		return v.Name
	case Ignored:
		return v.Name
	case IgnoredDir:
		return v.Name
	default:
		return ""
	}
}

// Add appends a child at the end of the children list (sequential
// append, matching the original's add() on a growing archive) and
// indexes it by name. Adding a second child with the same name is a
// caller bug (the filesystem guarantees uniqueness within a directory).
func (d *Directory) Add(e Entry) {
	name := entryName(e)
	d.children = append(d.children, e)
	if name != "" {
		d.nameIndex[name] = len(d.children) - 1
	}
}

// Children returns the ordered child list; callers must not mutate it.
func (d *Directory) Children() []Entry { return d.children }

// ByName performs the fast name lookup used by the differential-backup
// walker's compare step.
func (d *Directory) ByName(name string) (Entry, bool) {
	idx, ok := d.nameIndex[name]
	if !ok {
		return nil, false
	}
	return d.children[idx], true
}

// ResetRead rewinds the sequential reader to the first child.
func (d *Directory) ResetRead() { d.readCursor = 0 }

// Read yields the next child in insertion order, or an Eod once the
// children are exhausted (matching the "sequence ends with an explicit
// end-of-directory marker" invariant).
func (d *Directory) Read() Entry {
	if d.readCursor >= len(d.children) {
		return Eod{}
	}
	e := d.children[d.readCursor]
	d.readCursor++
	return e
}

// RecursiveHasChanged reports, computed on demand, whether any descendant
// of this directory is a Deleted marker or a non-directory entry carrying
// a Saved/Delta inode (i.e. something actually changed relative to the
// reference during a differential backup). The state of this directory's
// own inode, and of its child directories' own inodes, is not consulted.
func (d *Directory) RecursiveHasChanged() bool {
	for _, c := range d.children {
		switch v := c.(type) {
		case *Directory:
			if v.RecursiveHasChanged() {
				return true
			}
		case *Deleted:
			return true
		default:
			if inodeOf(c) != nil && (inodeOf(c).SavedState == Saved || inodeOf(c).SavedState == Delta) {
				return true
			}
		}
	}
	return false
}

// inodeOf extracts the embedded Inode from any inode-carrying entry, or
// nil for entries that don't carry one directly (Mirage dereferences its
// Star instead).
func inodeOf(e Entry) *Inode {
	switch v := e.(type) {
	case *Directory:
		return &v.Inode
	case *File:
		return &v.Inode
	case *Symlink:
		return &v.Inode
	case *CharDev:
		return &v.Inode
	case *BlockDev:
		return &v.Inode
	case *Pipe:
		return &v.Inode
	case *Socket:
		return &v.Inode
	case *Door:
		return &v.Inode
	case *Mirage:
		if v.Star != nil {
			return inodeOf(v.Star.Inode)
		}
	}
	return nil
}

// File is a plain file entry.
type File struct {
	Inode
	UncompressedSize infinint.Infinint
	ArchiveOffset    infinint.Infinint
	HasOffset        bool // false for the inline "small" dump form
	StoredSize       infinint.Infinint
	ContentCRC       *crc.CRC
	CompressionAlgo  byte
	Sparse           bool
	Dirty            bool

	HasDeltaSig bool
	SigOffset   infinint.Infinint
	SigSize     infinint.Infinint
	SigCRC      *crc.CRC
	BaseCRC     *crc.CRC // present when SavedState == Delta
	ResultCRC   *crc.CRC // present when SavedState == Delta
}

func (f *File) Signature() byte { return sigFor('f', f.SavedState) }

// Symlink carries its link target.
type Symlink struct {
	Inode
	Target string
}

func (s *Symlink) Signature() byte { return sigFor('l', s.SavedState) }

// CharDev and BlockDev carry a major/minor pair.
type CharDev struct {
	Inode
	Major, Minor uint32
}

func (c *CharDev) Signature() byte { return sigFor('c', c.SavedState) }

type BlockDev struct {
	Inode
	Major, Minor uint32
}

func (b *BlockDev) Signature() byte { return sigFor('b', b.SavedState) }

// Pipe is a named pipe (FIFO).
type Pipe struct{ Inode }

func (p *Pipe) Signature() byte { return sigFor('p', p.SavedState) }

// Socket is a Unix domain socket.
type Socket struct{ Inode }

func (s *Socket) Signature() byte { return sigFor('s', s.SavedState) }

// Door is a Solaris door, carried for archive interoperability with
// archives created on platforms that have them even though this
// implementation's backup walker never produces one.
type Door struct{ Inode }

func (d *Door) Signature() byte { return sigFor('o', d.SavedState) }

// Deleted is a synthesised marker recording that a name present in the
// reference catalogue is absent from the new one.
type Deleted struct {
	Named
	OriginalSignature byte
}

func (*Deleted) Signature() byte { return 'x' }

// Star is the reference-counted shared handle a Mirage points at. The
// catalogue owns it; destroying the last Mirage referencing a Star
// destroys the Star (and the Inode it wraps) along with it.
type Star struct {
	Inode Entry // one of *File, *Symlink, *CharDev, *BlockDev, *Pipe, *Socket, *Door
	Etiquette uint64
	refcount  int

	// FSPath is the filesystem path the first mirage materialised on
	// restore, recorded so subsequent mirages can hard-link to it.
	FSPath string
	// firstWritten tracks whether the inode payload has been serialised
	// yet (the first mirage of a Star to be dumped carries the payload;
	// the rest carry only the Etiquette).
	firstWritten bool
}

func (s *Star) IncRef() { s.refcount++ }

// DecRef decrements the refcount, reporting whether the Star is now
// unreferenced and should be destroyed.
func (s *Star) DecRef() bool {
	s.refcount--
	return s.refcount <= 0
}

func (s *Star) RefCount() int { return s.refcount }

// Mirage is a hard-link proxy: a named entry whose inode payload is
// shared with one or more other mirages via Star.
type Mirage struct {
	Named
	Star *Star
}

func (m *Mirage) Signature() byte { return 'm' }

// sigFor computes the on-disk/in-memory signature byte for an inode kind.
//
// Layout (a Go-native generalisation of the original's single-letter
// per-subclass scheme, since the original only ever needed two cases per
// kind): the kind letter is lowercase; SavedStatus == NotSaved flips it
// to uppercase; SavedStatus == Fake is the lowercase letter with the high
// bit (0x80) set; SavedStatus == Delta is the uppercase letter with the
// high bit set. InodeOnly
// reuses the lowercase (saved-ish) form since an inode-only entry still
// describes real metadata, just without file content.
func sigFor(kindLower byte, saved SavedStatus) byte {
	b := kindLower
	switch saved {
	case NotSaved:
		b = toUpper(b)
	case Fake:
		b |= 0x80
	case Delta:
		b = toUpper(b) | 0x80
	}
	return b
}

func toUpper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// kindLetterOf returns the lowercase kind letter an entry's signature
// encodes, stripping the saved/fake/delta bits.
func kindLetterOf(sig byte) byte {
	b := sig &^ 0x80
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
