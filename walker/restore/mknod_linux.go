//go:build linux

package restore

import (
	"golang.org/x/sys/unix"

	"github.com/edrusb/darchive/errs"
)

func mknod(path string, perm uint32, char bool, major, minor uint32) error {
	mode := uint32(perm & 0o7777)
	if char {
		mode |= unix.S_IFCHR
	} else {
		mode |= unix.S_IFBLK
	}
	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(path, mode, int(dev)); err != nil {
		return errs.Wrapf(err, "mknod %s", path)
	}
	return nil
}

func mkfifo(path string, perm uint32) error {
	if err := unix.Mkfifo(path, perm&0o7777); err != nil {
		return errs.Wrapf(err, "mkfifo %s", path)
	}
	return nil
}

func mksocket(path string, perm uint32) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return errs.Wrap(err, "socket")
	}
	defer unix.Close(fd)
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		return errs.Wrapf(err, "binding unix socket %s", path)
	}
	return nil
}
