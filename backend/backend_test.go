package backend_test

import (
	"testing"

	"github.com/edrusb/darchive/backend"
	"github.com/stretchr/testify/require"
)

func TestMemChannelReadWriteSeek(t *testing.T) {
	m := backend.NewMem()
	_, err := m.Write([]byte("hello world"))
	require.NoError(t, err)

	require.NoError(t, m.Skip(0))
	buf := make([]byte, 5)
	n, err := m.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	require.Equal(t, []byte("hello world"), m.Bytes())
}

func TestPipeChannelRejectsSeek(t *testing.T) {
	var buf []byte
	_ = buf
	p := backend.NewPipeReader(nil)
	err := p.Skip(10)
	require.ErrorIs(t, err, backend.ErrNotSeekable)
}

func TestCRCChannelAccumulates(t *testing.T) {
	m := backend.NewMem()
	c := backend.WithCRC(m)
	c.ResetCRC(4)
	_, err := c.Write([]byte("payload"))
	require.NoError(t, err)
	sum1 := c.GetCRC()
	require.NotEmpty(t, sum1)

	m2 := backend.NewMem()
	c2 := backend.WithCRC(m2)
	c2.ResetCRC(4)
	_, err = c2.Write([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, sum1, c2.GetCRC())
}
