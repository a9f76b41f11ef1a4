//go:build !linux

package restore

import "github.com/edrusb/darchive/errs"

func mknod(path string, perm uint32, char bool, major, minor uint32) error {
	return errs.New(errs.KindFeature, "restore: device node creation not supported on this platform")
}

func mkfifo(path string, perm uint32) error {
	return errs.New(errs.KindFeature, "restore: fifo creation not supported on this platform")
}

func mksocket(path string, perm uint32) error {
	return errs.New(errs.KindFeature, "restore: unix socket creation not supported on this platform")
}
