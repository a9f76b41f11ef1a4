package infinint_test

import (
	"bytes"
	"testing"

	"github.com/edrusb/darchive/infinint"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []uint64{0, 1, 2, 127, 128, 255, 256, 65535, 65536, 1<<32 - 1, 1 << 40}
	for _, n := range tests {
		i := infinint.FromUint64(n)
		var buf bytes.Buffer
		require.NoError(t, i.Encode(&buf))
		got, err := infinint.Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, i.String(), got.String())
		back, err := got.Uint64()
		require.NoError(t, err)
		require.Equal(t, n, back)
	}
}

func TestZeroEncodesAsSingleByte(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, infinint.Zero().Encode(&buf))
	require.Equal(t, []byte{0}, buf.Bytes())
}

func TestArithmetic(t *testing.T) {
	a := infinint.FromUint64(10)
	require.Equal(t, 0, a.Add(infinint.Zero()).Cmp(a))

	prod := a.Mul(infinint.FromUint64(7))
	q, r := prod.DivMod(infinint.FromUint64(7))
	require.Equal(t, 0, q.Cmp(a))
	require.True(t, r.IsZero())
}

func TestSubNegativePanics(t *testing.T) {
	require.Panics(t, func() {
		infinint.FromUint64(1).Sub(infinint.FromUint64(2))
	})
}

func TestUnstack(t *testing.T) {
	big := infinint.FromUint64(1000)
	small, rem := big.Unstack(300)
	require.Equal(t, uint64(300), small)
	v, err := rem.Uint64()
	require.NoError(t, err)
	require.Equal(t, uint64(700), v)

	s2, rem2 := infinint.FromUint64(50).Unstack(300)
	require.Equal(t, uint64(50), s2)
	require.True(t, rem2.IsZero())
}

func TestOverflowDetected(t *testing.T) {
	huge := infinint.FromUint64(1 << 63).Mul(infinint.FromUint64(4))
	_, err := huge.Uint64()
	require.Error(t, err)
}
