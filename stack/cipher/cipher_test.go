package cipher_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/backend"
	"github.com/edrusb/darchive/stack/cipher"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	salt, err := cipher.NewSalt()
	require.NoError(t, err)
	key := cipher.DeriveKey("hunter2", salt)

	mem := backend.NewMem()
	w, err := cipher.NewLayer(mem, key)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("abcdefgh"), 11) // 88 bytes, not block-aligned
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Terminate())

	require.NotEqual(t, payload, mem.Bytes(), "ciphertext must differ from plaintext")

	mem2 := backend.NewMem()
	_, err = mem2.Write(mem.Bytes())
	require.NoError(t, err)
	require.NoError(t, mem2.Skip(0))

	r, err := cipher.NewLayer(mem2, key)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestSkipRealignsMidBlock(t *testing.T) {
	salt, err := cipher.NewSalt()
	require.NoError(t, err)
	key := cipher.DeriveKey("hunter2", salt)

	mem := backend.NewMem()
	w, err := cipher.NewLayer(mem, key)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 4) // 64 bytes, 4 full blocks
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Terminate())

	require.NoError(t, mem.Skip(0))
	r, err := cipher.NewLayer(mem, key)
	require.NoError(t, err)

	require.NoError(t, r.Skip(20)) // mid-block offset within block index 1

	rest := make([]byte, len(payload)-20)
	n, err := io.ReadFull(r, rest)
	require.NoError(t, err)
	require.Equal(t, len(rest), n)
	require.Equal(t, payload[20:], rest)
}
