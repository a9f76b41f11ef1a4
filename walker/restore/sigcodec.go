package restore

import (
	"io"

	"github.com/edrusb/darchive/delta"
	"github.com/edrusb/darchive/infinint"
)

// decodePatch reads back the wire form walker/backup's encodePatch
// writes: an infinint-prefixed BlockSize and op count, each op tagged 1
// (Copy, followed by an infinint block index) or 0 (Literal, followed
// by an infinint length and that many raw bytes).
func decodePatch(r io.Reader) (delta.Patch, error) {
	blockSizeI, err := infinint.Decode(r)
	if err != nil {
		return delta.Patch{}, err
	}
	blockSize, err := blockSizeI.Uint64()
	if err != nil {
		return delta.Patch{}, err
	}
	countI, err := infinint.Decode(r)
	if err != nil {
		return delta.Patch{}, err
	}
	count, err := countI.Uint64()
	if err != nil {
		return delta.Patch{}, err
	}
	patch := delta.Patch{BlockSize: int(blockSize), Ops: make([]delta.Op, count)}
	for i := range patch.Ops {
		var tag [1]byte
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			return delta.Patch{}, err
		}
		if tag[0] == 1 {
			idxI, err := infinint.Decode(r)
			if err != nil {
				return delta.Patch{}, err
			}
			idx, err := idxI.Uint64()
			if err != nil {
				return delta.Patch{}, err
			}
			patch.Ops[i] = delta.Op{Copy: true, BlockIndex: idx}
			continue
		}
		lenI, err := infinint.Decode(r)
		if err != nil {
			return delta.Patch{}, err
		}
		n, err := lenI.Uint64()
		if err != nil {
			return delta.Patch{}, err
		}
		lit := make([]byte, n)
		if _, err := io.ReadFull(r, lit); err != nil {
			return delta.Patch{}, err
		}
		patch.Ops[i] = delta.Op{Literal: lit}
	}
	return patch, nil
}
