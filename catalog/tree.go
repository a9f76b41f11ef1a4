package catalog

import "github.com/edrusb/darchive/pathval"

// Tree is the catalogue: the whole hierarchical structure rooted at a
// single Directory, with the sequential/sub-tree/compare/direct-lookup
// readers §4.6 specifies.
type Tree struct {
	Root *Directory

	readStack []*Directory
	addStack  []*Directory
}

// NewTree wraps root as a Tree and positions the add cursor at the root.
func NewTree(root *Directory) *Tree {
	return &Tree{Root: root, addStack: []*Directory{root}}
}

// ResetAdd repositions the add cursor at the root, for building a fresh
// catalogue from scratch.
func (t *Tree) ResetAdd() { t.addStack = []*Directory{t.Root} }

// CurrentAddDir returns the directory Add/AddInCurrentRead currently
// targets.
func (t *Tree) CurrentAddDir() *Directory { return t.addStack[len(t.addStack)-1] }

// Add appends e to the directory at the current add cursor. If e is a
// *Directory, subsequent adds descend into it until a matching PopAdd.
func (t *Tree) Add(e Entry) {
	t.CurrentAddDir().Add(e)
	if d, ok := e.(*Directory); ok {
		t.addStack = append(t.addStack, d)
	}
}

// PopAdd ends the current directory being built (the point at which the
// backup walker finishes scanning a directory's children) and resumes
// adding to its parent.
func (t *Tree) PopAdd() {
	if len(t.addStack) > 1 {
		t.addStack = t.addStack[:len(t.addStack)-1]
	}
}

// ResetRead rewinds the sequential DFS reader to the beginning.
func (t *Tree) ResetRead() {
	t.Root.ResetRead()
	t.readStack = []*Directory{t.Root}
}

// Read returns the next entry in depth-first order with explicit
// end-of-directory sentinels, or ok=false once the whole tree (including
// the root's own terminating Eod) has been consumed.
func (t *Tree) Read() (entry Entry, ok bool) {
	if len(t.readStack) == 0 {
		return nil, false
	}
	top := t.readStack[len(t.readStack)-1]
	e := top.Read()
	switch v := e.(type) {
	case Eod:
		t.readStack = t.readStack[:len(t.readStack)-1]
	case *Directory:
		v.ResetRead()
		t.readStack = append(t.readStack, v)
	}
	return e, true
}

// SkipReadToParentDir fast-forwards past the rest of the current
// directory's children without visiting them, emitting nothing; the next
// Read() call yields that directory's Eod.
func (t *Tree) SkipReadToParentDir() {
	if len(t.readStack) == 0 {
		return
	}
	top := t.readStack[len(t.readStack)-1]
	top.readCursor = len(top.children)
}

// DirectRead looks up p by walking component-by-component from the root,
// without using the sequential reader.
func (t *Tree) DirectRead(p pathval.Path) (Entry, bool) {
	dir := t.Root
	comps := p.Components()
	if len(comps) == 0 {
		return dir, true
	}
	for i, name := range comps {
		e, ok := dir.ByName(name)
		if !ok {
			return nil, false
		}
		if i == len(comps)-1 {
			return e, true
		}
		nd, isDir := e.(*Directory)
		if !isDir {
			return nil, false
		}
		dir = nd
	}
	return nil, false
}

// SubReader yields only the entries within a given subtree, bracketed by
// the path of containing directories and a terminal Eod per ancestor, so
// a consumer reading only this stream still sees a structurally valid,
// self-contained tree fragment (§4.6 "Sub-tree read").
type SubReader struct {
	ancestors []*Directory // root-to-parent, exclusive of the target
	openIdx   int
	leaf      Entry // set when p names a non-directory entry
	leafDone  bool
	inner     *Tree
	innerDone bool
	closeIdx  int
}

// ResetSubRead locates p and prepares a SubReader over its subtree. If p
// names a non-directory entry, the SubReader yields just that one entry
// bracketed by its ancestors like any other subtree.
func (t *Tree) ResetSubRead(p pathval.Path) (*SubReader, bool) {
	comps := p.Components()
	s := &SubReader{}
	dir := t.Root
	for i, name := range comps {
		e, ok := dir.ByName(name)
		if !ok {
			return nil, false
		}
		if i == len(comps)-1 {
			if nd, isDir := e.(*Directory); isDir {
				sub := &Tree{Root: nd}
				sub.ResetRead()
				s.inner = sub
			} else {
				s.leaf = e
			}
			return s, true
		}
		nd, isDir := e.(*Directory)
		if !isDir {
			return nil, false
		}
		s.ancestors = append(s.ancestors, nd)
		dir = nd
	}
	// p is the root itself.
	sub := &Tree{Root: dir}
	sub.ResetRead()
	s.inner = sub
	return s, true
}

// Read yields the next entry of the bracketed subtree, or ok=false once
// exhausted: ancestor directory headers (no children of their own),
// then the target (its full subtree if a directory, or the single leaf
// entry), then one closing Eod per ancestor in reverse.
func (s *SubReader) Read() (Entry, bool) {
	if s.openIdx < len(s.ancestors) {
		d := s.ancestors[s.openIdx]
		s.openIdx++
		return NewDirectory(d.Inode), true
	}
	if s.leaf != nil {
		if !s.leafDone {
			s.leafDone = true
			return s.leaf, true
		}
	} else if !s.innerDone {
		e, ok := s.inner.Read()
		if ok {
			return e, true
		}
		s.innerDone = true
	}
	if s.closeIdx < len(s.ancestors) {
		s.closeIdx++
		return Eod{}, true
	}
	return nil, false
}

// Comparator drives the differential-backup walker's per-name lookup
// against a reference Tree, tracking the "missing ancestor" state so
// descending into a directory absent from the reference keeps returning
// not-found without losing track of how deep the walker has descended
// (§4.6 "Compare").
type Comparator struct {
	stack        []*Directory // nil entries mark "inside a missing ancestor"
	missingDepth int
}

// NewComparator starts comparison at ref's root.
func NewComparator(ref *Directory) *Comparator {
	return &Comparator{stack: []*Directory{ref}}
}

// Compare looks up name in the reference directory at the walker's
// current depth. It returns ok=false both for "not present" and for "an
// ancestor directory of this position was itself missing from the
// reference".
func (c *Comparator) Compare(name string) (Entry, bool) {
	if c.missingDepth > 0 {
		return nil, false
	}
	top := c.stack[len(c.stack)-1]
	if top == nil {
		return nil, false
	}
	return top.ByName(name)
}

// Descend follows name one level deeper, matching the backup walker's
// recursion into a subdirectory. If name does not resolve to a reference
// directory, every Compare call until the matching Ascend returns false.
func (c *Comparator) Descend(name string) {
	if c.missingDepth > 0 {
		c.missingDepth++
		c.stack = append(c.stack, nil)
		return
	}
	top := c.stack[len(c.stack)-1]
	var next *Directory
	if top != nil {
		if e, ok := top.ByName(name); ok {
			if d, isDir := e.(*Directory); isDir {
				next = d
			}
		}
	}
	if next == nil {
		c.missingDepth = 1
	}
	c.stack = append(c.stack, next)
}

// Ascend undoes the last Descend.
func (c *Comparator) Ascend() {
	if len(c.stack) <= 1 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
	if c.missingDepth > 0 {
		c.missingDepth--
	}
}

// UpdateDestroyedWith inserts a Deleted marker into t for every name
// present in previous and absent from t at the same path, recording
// removals for a differential archive (§4.6 "Diff-synthesis").
func UpdateDestroyedWith(t *Tree, previous *Tree) {
	updateDestroyedDir(t.Root, previous.Root)
}

func updateDestroyedDir(cur, prev *Directory) {
	for _, pe := range prev.Children() {
		name := entryName(pe)
		if name == "" {
			continue
		}
		ce, ok := cur.ByName(name)
		if !ok {
			cur.Add(&Deleted{Named: Named{Name: name}, OriginalSignature: pe.Signature()})
			continue
		}
		pd, pIsDir := pe.(*Directory)
		cd, cIsDir := ce.(*Directory)
		if pIsDir && cIsDir {
			updateDestroyedDir(cd, pd)
		}
	}
}
