//go:build linux

package etage

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// errFurtiveUnsupported signals New to retry with a plain os.ReadDir.
var errFurtiveUnsupported = errors.New("etage: furtive read mode not permitted")

// openFurtive lists dirPath via an fd opened with O_NOATIME, so the scan
// itself does not update the directory's own access time. Per
// etage.cpp, EPERM (not permitted, e.g. not the file owner) is not
// fatal: the caller falls back to a normal read.
func openFurtive(dirPath string) ([]fs.DirEntry, error) {
	fd, err := unix.Open(dirPath, unix.O_RDONLY|unix.O_NOATIME, 0)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return nil, errFurtiveUnsupported
		}
		return nil, err
	}

	f := os.NewFile(uintptr(fd), dirPath)
	defer f.Close()

	return f.ReadDir(-1)
}
