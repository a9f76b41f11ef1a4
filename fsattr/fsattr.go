// Package fsattr reads and writes extended attributes (EA) and
// filesystem-specific attributes (FSA): the immutable flag, birthtime and
// the nodump flag. Grounded on github.com/pkg/xattr for EA,
// gopkg.in/djherbis/times.v1 for birthtime, and golang.org/x/sys/unix for
// the ext2-family inode flag ioctls.
package fsattr

import (
	"time"

	"github.com/edrusb/darchive/errs"
	"github.com/pkg/xattr"
	times "gopkg.in/djherbis/times.v1"
)

// EA is one extended attribute key/value pair.
type EA struct {
	Key   string
	Value []byte
}

// ReadEA lists and reads every extended attribute of path.
func ReadEA(path string) ([]EA, error) {
	names, err := xattr.LList(path)
	if err != nil {
		if isUnsupported(err) {
			return nil, nil
		}
		return nil, errs.Wrapf(err, "fsattr.ReadEA: listing %s", path)
	}
	out := make([]EA, 0, len(names))
	for _, name := range names {
		v, err := xattr.LGet(path, name)
		if err != nil {
			return nil, errs.Wrapf(err, "fsattr.ReadEA: reading %s on %s", name, path)
		}
		out = append(out, EA{Key: name, Value: v})
	}
	return out, nil
}

// WriteEA applies a set of extended attributes to path, replacing
// whatever exists at those keys already.
func WriteEA(path string, eas []EA) error {
	for _, ea := range eas {
		if err := xattr.LSet(path, ea.Key, ea.Value); err != nil {
			if isUnsupported(err) {
				return errs.Wrapf(err, "fsattr.WriteEA: %s", path)
			}
			return errs.Wrapf(err, "fsattr.WriteEA: setting %s on %s", ea.Key, path)
		}
	}
	return nil
}

// ClearEA removes every extended attribute from path.
func ClearEA(path string) error {
	names, err := xattr.LList(path)
	if err != nil {
		if isUnsupported(err) {
			return nil
		}
		return errs.Wrapf(err, "fsattr.ClearEA: listing %s", path)
	}
	for _, name := range names {
		if err := xattr.LRemove(path, name); err != nil {
			return errs.Wrapf(err, "fsattr.ClearEA: removing %s on %s", name, path)
		}
	}
	return nil
}

func isUnsupported(err error) bool {
	if xerr, ok := err.(*xattr.Error); ok {
		return xerr.Err == xattr.ENOTSUP
	}
	return false
}

// FSAFamily scopes an FSA to the subsystem that understands it (the
// spec's "family" tag: e.g. linux-ext, hfs+).
type FSAFamily int

const (
	FamilyLinuxExt FSAFamily = iota
	FamilyHFSPlus
)

// FSANature is the specific attribute within a family (the spec's
// "nature" tag).
type FSANature int

const (
	NatureImmutable FSANature = iota
	NatureNodump
	NatureBirthtime
)

// FSA is one scoped (family, nature, value) triple.
type FSA struct {
	Family FSAFamily
	Nature FSANature
	Bool   bool
	Time   time.Time
}

// ReadFSA gathers every FSA this platform can report for path: the
// immutable and nodump inode flags (via the ext2-family ioctl), and
// birthtime (via times.v1, only where the filesystem records one;
// otherwise no birthtime FSA is returned).
func ReadFSA(path string) ([]FSA, error) {
	var out []FSA

	if t, err := times.Stat(path); err == nil {
		if t.HasBirthTime() {
			out = append(out, FSA{Family: FamilyHFSPlus, Nature: NatureBirthtime, Time: t.BirthTime()})
		}
	}

	immutable, nodump, err := readInodeFlags(path)
	if err == nil {
		out = append(out, FSA{Family: FamilyLinuxExt, Nature: NatureImmutable, Bool: immutable})
		out = append(out, FSA{Family: FamilyLinuxExt, Nature: NatureNodump, Bool: nodump})
	}

	return out, nil
}

// WriteFSA applies FSAs previously captured by ReadFSA back onto path.
// Unsupported combinations are silently skipped (FSA-saved-status
// "partial" in the catalogue records this at the walker level).
func WriteFSA(path string, fsas []FSA) error {
	var immutable, nodump *bool
	for _, f := range fsas {
		switch {
		case f.Family == FamilyLinuxExt && f.Nature == NatureImmutable:
			v := f.Bool
			immutable = &v
		case f.Family == FamilyLinuxExt && f.Nature == NatureNodump:
			v := f.Bool
			nodump = &v
		}
	}
	if immutable != nil || nodump != nil {
		if err := writeInodeFlags(path, immutable, nodump); err != nil {
			return errs.Wrapf(err, "fsattr.WriteFSA: %s", path)
		}
	}
	return nil
}

// HasNodump reports whether the given FSA set carries a set nodump flag,
// the predicate the backup walker consults when honouring --nodump.
func HasNodump(fsas []FSA) bool {
	for _, f := range fsas {
		if f.Family == FamilyLinuxExt && f.Nature == NatureNodump {
			return f.Bool
		}
	}
	return false
}
