//go:build linux

package stat

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func fromSys(fi os.FileInfo) (Info, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return Info{}, false
	}
	return Info{
		Dev:   uint64(st.Dev),
		Ino:   st.Ino,
		Nlink: uint64(st.Nlink),
		Rdev:  uint64(st.Rdev),
		UID:   st.Uid,
		GID:   st.Gid,
		Atime: time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec)),
		Ctime: time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)),
	}, true
}

// MajorMinor splits a raw rdev value into its device major/minor pair.
func MajorMinor(rdev uint64) (major, minor uint32) {
	return unix.Major(rdev), unix.Minor(rdev)
}
