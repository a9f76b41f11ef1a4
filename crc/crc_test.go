package crc_test

import (
	"bytes"
	"testing"

	"github.com/edrusb/darchive/crc"
	"github.com/stretchr/testify/require"
)

func TestWidthForGrowsWithSize(t *testing.T) {
	require.Equal(t, 2, crc.WidthFor(10))
	require.GreaterOrEqual(t, crc.WidthFor(1<<40), 8)
}

func TestAccumulatorDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a1 := crc.NewAccumulator(4)
	a1.Write(data)
	a2 := crc.NewAccumulator(4)
	a2.Write(data)
	require.True(t, a1.Sum().Equal(a2.Sum()))
}

func TestAccumulatorDetectsChange(t *testing.T) {
	a1 := crc.NewAccumulator(4)
	a1.Write([]byte("hello"))
	a2 := crc.NewAccumulator(4)
	a2.Write([]byte("hellp"))
	require.False(t, a1.Sum().Equal(a2.Sum()))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	a := crc.NewAccumulator(8)
	a.Write([]byte("payload"))
	sum := a.Sum()

	var buf bytes.Buffer
	require.NoError(t, sum.Encode(&buf))

	got, err := crc.Decode(&buf)
	require.NoError(t, err)
	require.True(t, sum.Equal(got))
}
