package slice

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Number: 3, HasTerminal: true}
	h.Label[0] = 0xAB

	var buf bytes.Buffer
	require.NoError(t, h.encode(&buf))

	got, err := decodeHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h.Number, got.Number)
	require.Equal(t, h.HasTerminal, got.HasTerminal)
	require.Equal(t, h.Label, got.Label)
}

func TestLocalizeMapsLogicalOffsetToSliceAndWithin(t *testing.T) {
	m := &Manager{params: Params{FirstSize: 100, NextSize: 50}}

	n, within := m.localize(10)
	require.Equal(t, uint64(1), n)
	require.Equal(t, int64(10), within)

	n, within = m.localize(120)
	require.Equal(t, uint64(2), n)
	require.Equal(t, int64(20), within)
}
