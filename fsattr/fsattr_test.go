package fsattr_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edrusb/darchive/fsattr"
	"github.com/stretchr/testify/require"
)

func TestReadEAOnPlainFileIsEmptyOrSkipped(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o644))

	eas, err := fsattr.ReadEA(p)
	require.NoError(t, err)
	require.Empty(t, eas)
}

func TestHasNodump(t *testing.T) {
	set := []fsattr.FSA{{Family: fsattr.FamilyLinuxExt, Nature: fsattr.NatureNodump, Bool: true}}
	require.True(t, fsattr.HasNodump(set))
	require.False(t, fsattr.HasNodump(nil))
}
