//go:build linux

package fsattr

import (
	"os"

	"golang.org/x/sys/unix"
)

// ext2-family inode flag bits; these are part of golang.org/x/sys/unix on
// some but not all supported Go versions, so they are declared locally.
const (
	fsImmutableFl uint32 = 0x00000010
	fsNodumpFl    uint32 = 0x00000040
)

func readInodeFlags(path string) (immutable, nodump bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, false, err
	}
	defer f.Close()

	flags, err := unix.IoctlGetInt(int(f.Fd()), unix.FS_IOC_GETFLAGS)
	if err != nil {
		return false, false, err
	}
	v := uint32(flags)
	return v&fsImmutableFl != 0, v&fsNodumpFl != 0, nil
}

func writeInodeFlags(path string, immutable, nodump *bool) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	flags, err := unix.IoctlGetInt(int(f.Fd()), unix.FS_IOC_GETFLAGS)
	if err != nil {
		return err
	}
	v := uint32(flags)
	if immutable != nil {
		if *immutable {
			v |= fsImmutableFl
		} else {
			v &^= fsImmutableFl
		}
	}
	if nodump != nil {
		if *nodump {
			v |= fsNodumpFl
		} else {
			v &^= fsNodumpFl
		}
	}
	return unix.IoctlSetPointerInt(int(f.Fd()), unix.FS_IOC_SETFLAGS, int(v))
}
