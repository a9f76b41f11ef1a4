package compress_test

import (
	"bytes"
	"compress/flate"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/stack/compress"
)

// flateCodec is a minimal compress.Codec for testing the Layer's
// run/suspend state machine without depending on a concrete codec
// subpackage.
type flateCodec struct{}

type flateWriter struct{ w *flate.Writer }

func (w *flateWriter) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *flateWriter) Close() error                 { return w.w.Close() }

func (flateCodec) NewWriter(w io.Writer) (compress.CodecWriter, error) {
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	return &flateWriter{w: fw}, err
}

func (flateCodec) NewReader(r io.Reader) (io.Reader, error) {
	return flate.NewReader(r), nil
}

func TestLayerCompressesAndDecompresses(t *testing.T) {
	mem := backend.NewMem()
	l := compress.NewLayer(mem, flateCodec{})

	payload := bytes.Repeat([]byte("hello compress layer "), 50)
	_, err := l.Write(payload)
	require.NoError(t, err)
	require.NoError(t, l.Terminate())

	require.Less(t, len(mem.Bytes()), len(payload), "compressed output should be smaller")

	mem2 := backend.NewMem()
	_, err = mem2.Write(mem.Bytes())
	require.NoError(t, err)
	require.NoError(t, mem2.Skip(0))

	r := compress.NewLayer(mem2, flateCodec{})
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestSuspendWritesUncompressedPassthrough(t *testing.T) {
	mem := backend.NewMem()
	l := compress.NewLayer(mem, flateCodec{})

	_, err := l.Write([]byte("compressed-run"))
	require.NoError(t, err)
	require.NoError(t, l.Suspend())

	_, err = l.Write([]byte("MARK"))
	require.NoError(t, err)
	require.NoError(t, l.Terminate())

	require.Contains(t, string(mem.Bytes()), "MARK")
}

func TestNoneCodecPassesThroughUnchanged(t *testing.T) {
	mem := backend.NewMem()
	l := compress.NewLayer(mem, nil)

	_, err := l.Write([]byte("plain bytes"))
	require.NoError(t, err)
	require.NoError(t, l.Terminate())

	require.Equal(t, "plain bytes", string(mem.Bytes()))
}
