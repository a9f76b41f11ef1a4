//go:build !linux

package etage

import (
	"errors"
	"io/fs"
)

var errFurtiveUnsupported = errors.New("etage: furtive read mode not available on this platform")

func openFurtive(string) ([]fs.DirEntry, error) {
	return nil, errFurtiveUnsupported
}
