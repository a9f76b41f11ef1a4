package escape_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/stack/escape"
)

func TestWriteReadRoundTripWithMark(t *testing.T) {
	mem := backend.NewMem()
	w := escape.NewLayer(mem)

	_, err := w.Write([]byte("header"))
	require.NoError(t, err)
	require.NoError(t, w.AddMarkAtCurrentPosition(escape.MarkCatalogue))
	_, err = w.Write([]byte("body"))
	require.NoError(t, err)
	require.NoError(t, w.Terminate())

	require.NoError(t, mem.Skip(0))
	r := escape.NewLayer(mem)

	buf := make([]byte, 6)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "header", string(buf[:n]))

	isMark, err := r.NextToReadIsMark(escape.MarkCatalogue)
	require.NoError(t, err)
	require.True(t, isMark)

	found, err := r.SkipToNextMark(escape.MarkCatalogue, true)
	require.NoError(t, err)
	require.True(t, found)

	rest := make([]byte, 4)
	n, err = r.Read(rest)
	require.NoError(t, err)
	require.Equal(t, "body", string(rest[:n]))
}

func TestLiteralEscapeByteIsStuffedAndRecovered(t *testing.T) {
	mem := backend.NewMem()
	w := escape.NewLayer(mem)

	payload := []byte{0x01, 0xFE, 0x02, 0xFE, 0xFE, 0x03}
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Terminate())

	require.NoError(t, mem.Skip(0))
	r := escape.NewLayer(mem)

	got := make([]byte, len(payload))
	n, err := r.Read(got)
	require.NoError(t, err)
	require.Equal(t, payload, got[:n])
}
