package slice_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/edrusb/darchive/stack/slice"
	"github.com/stretchr/testify/require"
)

func TestManagerWriteThenReadAcrossSlices(t *testing.T) {
	dir := t.TempDir()
	params := slice.Params{Basename: "test", Extension: "dar", Dir: dir, FirstSize: 16, NextSize: 16}

	m, err := slice.NewWriter(params, nil)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("x"), 50)
	n, err := m.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, m.Terminate())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2)

	rp := slice.Params{Basename: "test", Extension: "dar", Dir: dir, FirstSize: 16, NextSize: 16}
	rm, err := slice.NewReader(rp, nil)
	require.NoError(t, err)

	got, err := io.ReadAll(rm)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
