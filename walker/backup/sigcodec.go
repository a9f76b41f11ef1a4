package backup

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/edrusb/darchive/delta"
	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/infinint"
)

// encodeSignature and decodeSignature give delta.Signature an on-wire
// form (infinint-prefixed counts, matching the archive's general
// "length-prefixed field" convention used throughout §4, e.g. crc.CRC's
// own Encode/Decode), since delta.Signature itself is an in-memory-only
// type.
func encodeSignature(w io.Writer, sig delta.Signature) error {
	if err := infinint.FromInt(sig.BlockSize).Encode(w); err != nil {
		return err
	}
	if err := infinint.FromInt(len(sig.Blocks)).Encode(w); err != nil {
		return err
	}
	for _, b := range sig.Blocks {
		var weak [4]byte
		binary.BigEndian.PutUint32(weak[:], b.Weak)
		if _, err := w.Write(weak[:]); err != nil {
			return err
		}
		if _, err := w.Write(b.Strong[:]); err != nil {
			return err
		}
	}
	return nil
}

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

// encodePatch gives delta.Patch the same infinint-length-prefixed wire
// form: a Copy op is tagged 1 followed by its block index; a Literal op
// is tagged 0 followed by its length-prefixed bytes.
func encodePatch(w io.Writer, patch delta.Patch) error {
	if err := infinint.FromInt(patch.BlockSize).Encode(w); err != nil {
		return err
	}
	if err := infinint.FromInt(len(patch.Ops)).Encode(w); err != nil {
		return err
	}
	for _, op := range patch.Ops {
		if op.Copy {
			if _, err := w.Write([]byte{1}); err != nil {
				return err
			}
			if err := infinint.FromUint64(op.BlockIndex).Encode(w); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
		if err := infinint.FromInt(len(op.Literal)).Encode(w); err != nil {
			return err
		}
		if _, err := w.Write(op.Literal); err != nil {
			return err
		}
	}
	return nil
}

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

// encodeToBuffer is a small helper so callers can get the encoded bytes
// (for CRC computation) without a two-pass write to the real stream.
func encodeToBuffer(encode func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return nil, errs.Wrap(err, "backup: encoding delta payload")
	}
	return buf.Bytes(), nil
}
