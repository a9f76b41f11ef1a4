package archive

import (
	"encoding/binary"
	"io"

	"github.com/edrusb/darchive/delta"
	"github.com/edrusb/darchive/infinint"
)

// decodeSignature reads back the wire form walker/backup's
// encodeSignature writes (infinint-prefixed BlockSize and block count,
// then each block's weak+strong hash). Duplicated here rather than
// exported from walker/backup, matching walker/restore's decodePatch:
// the encoder and decoder live in whichever package owns that end of
// the data flow.
func decodeSignature(r io.Reader) (delta.Signature, error) {
	blockSizeI, err := infinint.Decode(r)
	if err != nil {
		return delta.Signature{}, err
	}
	blockSize, err := blockSizeI.Uint64()
	if err != nil {
		return delta.Signature{}, err
	}
	countI, err := infinint.Decode(r)
	if err != nil {
		return delta.Signature{}, err
	}
	count, err := countI.Uint64()
	if err != nil {
		return delta.Signature{}, err
	}
	sig := delta.Signature{BlockSize: int(blockSize), Blocks: make([]delta.BlockSignature, count)}
	for i := range sig.Blocks {
		var weak [4]byte
		if _, err := io.ReadFull(r, weak[:]); err != nil {
			return delta.Signature{}, err
		}
		sig.Blocks[i].Weak = binary.BigEndian.Uint32(weak[:])
		if _, err := io.ReadFull(r, sig.Blocks[i].Strong[:]); err != nil {
			return delta.Signature{}, err
		}
	}
	return sig, nil
}
