package delta_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/delta"
)

func TestDeltaRoundTripOnSmallEdit(t *testing.T) {
	base := bytes.Repeat([]byte("0123456789abcdef"), 64) // 1024 bytes
	modified := append([]byte(nil), base...)
	copy(modified[500:564], bytes.Repeat([]byte("X"), 64)) // one 64-byte region changed

	sig, err := delta.ComputeSignature(bytes.NewReader(base), 32)
	require.NoError(t, err)

	patch, err := delta.ComputeDelta(sig, bytes.NewReader(modified))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, delta.ApplyPatch(bytes.NewReader(base), patch, &out))
	require.Equal(t, modified, out.Bytes())
}

func TestDeltaOfIdenticalContentIsAllCopyOps(t *testing.T) {
	base := bytes.Repeat([]byte("0123456789"), 20) // 200 bytes, evenly divisible

	sig, err := delta.ComputeSignature(bytes.NewReader(base), 20)
	require.NoError(t, err)

	patch, err := delta.ComputeDelta(sig, bytes.NewReader(base))
	require.NoError(t, err)

	for _, op := range patch.Ops {
		require.True(t, op.Copy, "identical content should produce only Copy ops")
	}

	var out bytes.Buffer
	require.NoError(t, delta.ApplyPatch(bytes.NewReader(base), patch, &out))
	require.Equal(t, base, out.Bytes())
}
