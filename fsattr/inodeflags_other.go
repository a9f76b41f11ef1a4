//go:build !linux

package fsattr

import "errors"

// Non-Linux platforms have no ext2-family inode flags; callers see an
// error and fall back to FSA-saved-status "none" for this inode.
var errNoInodeFlags = errors.New("fsattr: inode flags not supported on this platform")

func readInodeFlags(string) (immutable, nodump bool, err error) {
	return false, false, errNoInodeFlags
}

func writeInodeFlags(string, *bool, *bool) error {
	return errNoInodeFlags
}
