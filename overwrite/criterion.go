package overwrite

import "github.com/edrusb/darchive/catalog"

// Criterion is a predicate over the pair (in-place entry, incoming
// entry) used to gate a Testing node. There was no standalone
// criterium.hpp in the retrieved sources; this set is grounded on the
// predicates crit_action.hpp's comments and the diff/merge walkers in
// §4.6/§4.11 actually need: type, recency, and presence.
type Criterion interface {
	Evaluate(inPlace, incoming catalog.Entry) bool
}

// CriterionFunc adapts a plain function to Criterion.
type CriterionFunc func(inPlace, incoming catalog.Entry) bool

func (f CriterionFunc) Evaluate(inPlace, incoming catalog.Entry) bool { return f(inPlace, incoming) }

// Not inverts another criterion.
type Not struct{ Inner Criterion }

func (n Not) Evaluate(inPlace, incoming catalog.Entry) bool { return !n.Inner.Evaluate(inPlace, incoming) }

// And is true when every member is true (empty And is vacuously true).
type And []Criterion

func (a And) Evaluate(inPlace, incoming catalog.Entry) bool {
	for _, c := range a {
		if !c.Evaluate(inPlace, incoming) {
			return false
		}
	}
	return true
}

// Or is true when any member is true (empty Or is vacuously false).
type Or []Criterion

func (o Or) Evaluate(inPlace, incoming catalog.Entry) bool {
	for _, c := range o {
		if c.Evaluate(inPlace, incoming) {
			return true
		}
	}
	return false
}

// inodeOf extracts the comparable Inode metadata from any entry that
// carries one, dereferencing a Mirage's Star, or returns ok=false for
// entries with no inode at all (Eod, Deleted, Ignored, ...).
func inodeOf(e catalog.Entry) (catalog.Inode, bool) {
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
			return inodeOf(v.Star.Inode)
		}
	}
	return catalog.Inode{}, false
}

// kindOf returns the kind letter (per catalog's signature scheme,
// stripped of saved/fake/delta bits) used to compare entry types. Entries
// whose signature is not a kind letter (Eod, Deleted, Mirage) yield their
// signature byte unchanged.
func kindOf(e catalog.Entry) byte {
	sig := e.Signature()
	b := sig &^ 0x80
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// IncomingIsNewer is true when the incoming entry's inode is more recent
// (mtime, ctime tiebreak) than the in-place one.
var IncomingIsNewer = CriterionFunc(func(inPlace, incoming catalog.Entry) bool {
	in, ok1 := inodeOf(inPlace)
	out, ok2 := inodeOf(incoming)
	if !ok1 || !ok2 {
		return false
	}
	return out.IsMoreRecentThan(in)
})

// InPlaceIsNewer is the symmetric criterion.
var InPlaceIsNewer = CriterionFunc(func(inPlace, incoming catalog.Entry) bool {
	in, ok1 := inodeOf(inPlace)
	out, ok2 := inodeOf(incoming)
	if !ok1 || !ok2 {
		return false
	}
	return in.IsMoreRecentThan(out)
})

// SameType is true when both entries are the same catalogue kind
// (directory vs file vs symlink, ...).
var SameType = CriterionFunc(func(inPlace, incoming catalog.Entry) bool {
	return kindOf(inPlace) == kindOf(incoming)
})

// InPlaceIsDirectory is true when the in-place entry is a directory.
var InPlaceIsDirectory = CriterionFunc(func(inPlace, _ catalog.Entry) bool {
	_, ok := inPlace.(*catalog.Directory)
	return ok
})

// IncomingIsDirectory is the symmetric criterion for the incoming entry.
var IncomingIsDirectory = CriterionFunc(func(_, incoming catalog.Entry) bool {
	_, ok := incoming.(*catalog.Directory)
	return ok
})

// IncomingIsDeleted is true when the incoming entry is a synthesised
// Deleted marker, the case the differential-merge walker needs to treat
// specially (§4.11 "decremental mode").
var IncomingIsDeleted = CriterionFunc(func(_, incoming catalog.Entry) bool {
	_, ok := incoming.(*catalog.Deleted)
	return ok
})

// InPlaceIsDeleted is the symmetric criterion.
var InPlaceIsDeleted = CriterionFunc(func(inPlace, _ catalog.Entry) bool {
	_, ok := inPlace.(*catalog.Deleted)
	return ok
})

// InPlaceIsAbsent and IncomingIsAbsent let a Testing node detect a
// caller having passed nil for one side of a one-sided comparison (the
// merge walker's "only one input carries this path" case, §4.11).
var InPlaceIsAbsent = CriterionFunc(func(inPlace, _ catalog.Entry) bool { return inPlace == nil })
var IncomingIsAbsent = CriterionFunc(func(_, incoming catalog.Entry) bool { return incoming == nil })
