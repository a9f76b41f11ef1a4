//go:build !linux

package stat

import "os"

func fromSys(fi os.FileInfo) (Info, bool) {
	return Info{}, false
}

// MajorMinor has no portable decoding outside Linux's rdev encoding.
func MajorMinor(rdev uint64) (major, minor uint32) {
	return 0, 0
}
