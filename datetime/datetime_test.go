package datetime_test

import (
	"testing"

	"github.com/edrusb/darchive/datetime"
	"github.com/stretchr/testify/require"
)

func TestCompareCrossUnit(t *testing.T) {
	a := datetime.DateTime{Seconds: 100, Frac: 500, FracU: datetime.Microsecond}
	b := datetime.DateTime{Seconds: 100, Frac: 500_001, FracU: datetime.Nanosecond}
	require.Equal(t, -1, a.Compare(b))
	require.True(t, b.IsMoreRecentThan(a))
}

func TestNegativeTimestampZeroing(t *testing.T) {
	neg := datetime.DateTime{Seconds: -5, FracU: datetime.Second}
	require.True(t, neg.IsNegative())
	zeroed := neg.ZeroIfNegative(true)
	require.False(t, zeroed.IsNegative())
	require.Equal(t, int64(0), zeroed.Seconds)

	kept := neg.ZeroIfNegative(false)
	require.Equal(t, int64(-5), kept.Seconds)
}

func TestEncodeDecodeSeconds(t *testing.T) {
	d := datetime.DateTime{Seconds: -42, FracU: datetime.Second}
	neg, mag := d.EncodeSeconds()
	require.True(t, neg)
	back, err := datetime.DecodeSeconds(neg, mag)
	require.NoError(t, err)
	require.Equal(t, d.Seconds, back)
}
