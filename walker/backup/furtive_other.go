//go:build !linux

package backup

import "os"

func openFurtive(path string) (*os.File, error) {
	return nil, errFurtiveUnsupported
}
