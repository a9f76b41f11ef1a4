// Package stat extracts the (device, inode, nlink) triple the backup
// walker's hard-link tracker needs from an os.FileInfo, grounded on the
// original's get_ino_dev helper in filesystem_hard_link_read.cpp.
package stat

import (
	"os"
	"time"
)

// Info is the subset of a raw stat(2) result the hard-link tracker,
// device-node entries, and inode-metadata capture need.
type Info struct {
	Dev, Ino   uint64
	Nlink      uint64
	Rdev       uint64
	UID, GID   uint32
	Atime      time.Time
	Ctime      time.Time
}

// From extracts Info from fi, or ok=false on a platform/filesystem that
// does not expose a real stat_t (e.g. some virtual filesystems), in
// which case the caller treats the entry as nlink==1 (not hard-linked).
func From(fi os.FileInfo) (Info, bool) {
	return fromSys(fi)
}
