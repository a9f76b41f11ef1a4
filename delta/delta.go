// Package delta implements the rolling-signature / delta-patch codec
// §4.9/§4.10 need to store and later apply a delta against a
// previously archived plain file, rsync-style: a fixed-size block
// rolling (weak) checksum narrows candidate matches, an MD5 strong
// hash confirms them. No rolling-checksum delta library appears
// anywhere in the retrieval pack's complete example repos (only a
// bare go.mod listing for a casync-style tool turned up, with no
// source to ground an implementation on), so this package is built
// directly on the standard library's hash/adler32 (the canonical weak
// rolling checksum) and crypto/md5 (the strong hash), matching the
// classic rsync algorithm the original's own delta support is modeled
// on (original: original_source/src/libdar/delta_sig*.hpp's rolling
// signature wrapped around librsync; no librsync binding exists for
// Go in the pack, so the algorithm is re-expressed natively here
// instead of shelling out or vendoring a C library).
package delta

import (
	"bytes"
	"crypto/md5"
	"hash/adler32"
	"io"

	"github.com/edrusb/darchive/errs"
)

// StrongHashSize is the length of the truncated strong hash stored per
// block (§4.9 "fixed strong-hash length").
const StrongHashSize = 8

// BlockSignature is one block's weak+strong checksum pair.
type BlockSignature struct {
	Weak   uint32
	Strong [StrongHashSize]byte
}

// Signature is a whole file's rolling signature: a fixed block size and
// one BlockSignature per block (the last block may be shorter).
type Signature struct {
	BlockSize int
	Blocks    []BlockSignature
}

// ComputeSignature reads r to EOF in blockSize chunks, returning one
// BlockSignature per chunk.
func ComputeSignature(r io.Reader, blockSize int) (Signature, error) {
	if blockSize <= 0 {
		return Signature{}, errs.New(errs.KindRange, "delta.ComputeSignature: block size must be positive")
	}
	sig := Signature{BlockSize: blockSize}
	buf := make([]byte, blockSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			sig.Blocks = append(sig.Blocks, blockSignatureOf(buf[:n]))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return sig, nil
		}
		if err != nil {
			return Signature{}, errs.Wrap(err, "delta.ComputeSignature: reading")
		}
	}
}

func blockSignatureOf(block []byte) BlockSignature {
	strong := md5.Sum(block)
	var bs BlockSignature
	bs.Weak = adler32.Checksum(block)
	copy(bs.Strong[:], strong[:StrongHashSize])
	return bs
}

// Op is one instruction of a Patch: either copy block Index unchanged
// from the base file, or emit Literal bytes not found in the base.
type Op struct {
	Copy       bool
	BlockIndex uint64
	Literal    []byte
}

// Patch is the ordered sequence of Ops that reconstructs the new file
// from the base file's blocks plus literal data.
type Patch struct {
	BlockSize int
	Ops       []Op
}

// ComputeDelta compares new's content against sig (the base file's
// signature) and produces a Patch: runs of bytes matching a base block
// become Copy ops, everything else becomes Literal ops, exactly as
// rsync's rolling-checksum matching algorithm does.
func ComputeDelta(sig Signature, newContent io.Reader) (Patch, error) {
	data, err := io.ReadAll(newContent)
	if err != nil {
		return Patch{}, errs.Wrap(err, "delta.ComputeDelta: reading new content")
	}

	byWeak := make(map[uint32][]uint64, len(sig.Blocks))
	for i, b := range sig.Blocks {
		byWeak[b.Weak] = append(byWeak[b.Weak], uint64(i))
	}

	blockSize := sig.BlockSize
	patch := Patch{BlockSize: blockSize}
	var literal bytes.Buffer

	flushLiteral := func() {
		if literal.Len() > 0 {
			patch.Ops = append(patch.Ops, Op{Literal: append([]byte(nil), literal.Bytes()...)})
			literal.Reset()
		}
	}

	pos := 0
	for pos < len(data) {
		remaining := len(data) - pos
		window := blockSize
		if remaining < window {
			window = remaining
		}
		chunk := data[pos : pos+window]
		weak := adler32.Checksum(chunk)

		matched := false
		if candidates, ok := byWeak[weak]; ok && window == blockSize {
			strong := md5.Sum(chunk)
			for _, idx := range candidates {
				if bytes.Equal(sig.Blocks[idx].Strong[:], strong[:StrongHashSize]) {
					flushLiteral()
					patch.Ops = append(patch.Ops, Op{Copy: true, BlockIndex: idx})
					pos += window
					matched = true
					break
				}
			}
		}
		if !matched {
			literal.WriteByte(data[pos])
			pos++
		}
	}
	flushLiteral()
	return patch, nil
}

// ApplyPatch reconstructs the new file's content by reading base blocks
// (via base, block-addressed at patch.BlockSize) for Copy ops and
// writing Literal ops verbatim, to w.
func ApplyPatch(base io.ReaderAt, patch Patch, w io.Writer) error {
	buf := make([]byte, patch.BlockSize)
	for _, op := range patch.Ops {
		if op.Copy {
			n, err := base.ReadAt(buf, int64(op.BlockIndex)*int64(patch.BlockSize))
			if err != nil && err != io.EOF {
				return errs.Wrapf(err, "delta.ApplyPatch: reading base block %d", op.BlockIndex)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return errs.Wrap(err, "delta.ApplyPatch: writing copied block")
			}
			continue
		}
		if _, err := w.Write(op.Literal); err != nil {
			return errs.Wrap(err, "delta.ApplyPatch: writing literal run")
		}
	}
	return nil
}
