package catalog

// devIno is the (device, inode) key the read-side hard-link map indexes
// by, matching what the backup walker reads from Lstat.
type devIno struct {
	Dev, Ino uint64
}

// ReadLinkTracker is the backup walker's hard-link map: keyed by
// (device, inode), with a refcount equal to nlink-1. The first
// occurrence of a (device, inode) pair creates the inode entry wrapped
// in a Star and returns a Mirage pointing at it; each further occurrence
// returns another Mirage at the same Star and decrements the refcount;
// when it reaches zero the key is forgotten (§4.7 "Read side").
type ReadLinkTracker struct {
	byDevIno map[devIno]*Star
	wlm      *WriteLinkMap
}

// NewReadLinkTracker creates an empty tracker. wlm is shared with the
// dump step so Etiquette assignment happens exactly once per Star.
func NewReadLinkTracker() *ReadLinkTracker {
	return &ReadLinkTracker{byDevIno: make(map[devIno]*Star), wlm: NewWriteLinkMap()}
}

// Observe records one filesystem name for the inode (dev, ino) with the
// given link count, and returns the Entry the caller should actually add
// to the catalogue for this name.
//
// When nlink is 1 (the overwhelmingly common case), inode is not a hard
// link at all: it is returned unchanged, already named, with no Star or
// Mirage wrapping. Only when nlink > 1 does a name get wrapped in a
// Mirage pointing at a shared Star: the first call for a given (dev,
// ino) must pass the freshly built inode entry (its Named.Name need not
// be set, since Mirage carries the per-link name separately); subsequent
// calls for the same (dev, ino) may pass nil, since only the Star is
// needed. first reports whether this was the first sighting of that
// (dev, ino) pair, so the caller knows whether it still needs to stream
// the inode's file content.
func (t *ReadLinkTracker) Observe(dev, ino uint64, nlink uint64, name string, inode Entry) (entry Entry, first bool) {
	if nlink <= 1 {
		return inode, true
	}
	key := devIno{Dev: dev, Ino: ino}
	star, ok := t.byDevIno[key]
	if !ok {
		star = &Star{Inode: inode, refcount: int(nlink) - 1}
		t.byDevIno[key] = star
		first = true
	} else if star.DecRef() {
		delete(t.byDevIno, key)
	}
	t.wlm.Assign(star)
	return &Mirage{Named: Named{Name: name}, Star: star}, first
}

// WriteLinkMap exposes the tracker's shared etiquette assigner so the
// same numbering is used when the catalogue this tracker fed is dumped.
func (t *ReadLinkTracker) WriteLinkMap() *WriteLinkMap { return t.wlm }
