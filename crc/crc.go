// Package crc implements the length-parameterised rolling CRC attached to
// archive byte channels. The CRC's width is chosen as a function of the
// length of the stream it covers (the spec's heuristic: roughly
// ceil(log2(size)) rounded up to a power of two, minimum 2 bytes), and it
// is itself written to the archive preceded by its own length encoded as
// an Infinint.
package crc

import (
	"hash/crc32"
	"io"

	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/infinint"
)

// WidthFor returns the CRC width in bytes for a stream of the given
// length, per the spec's sizing heuristic.
func WidthFor(size int64) int {
	width := 2
	for covered := int64(1) << (8 * width); covered < size && width < 32; {
		width *= 2
		covered = int64(1) << (8 * width)
	}
	return width
}

// CRC is a fixed-width byte vector produced by folding a stream through a
// chain of crc32.IEEE accumulators, one per 4-byte lane, so the width can
// be any multiple of 4 (for widths that are not multiples of 4, Sum drops
// the leading, high-order bytes of the first lane).
type CRC struct {
	width int
	bytes []byte
}

// New creates a zeroed CRC of the given width in bytes.
func New(width int) *CRC {
	if width < 2 {
		width = 2
	}
	return &CRC{width: width, bytes: make([]byte, width)}
}

// Width returns the CRC's byte width.
func (c *CRC) Width() int { return c.width }

// Bytes returns the current accumulated value.
func (c *CRC) Bytes() []byte {
	out := make([]byte, len(c.bytes))
	copy(out, c.bytes)
	return out
}

// Accumulator folds bytes written through it into a CRC value of a given
// width, by running `ceil(width/4)` independent crc32 lanes seeded with
// distinct polynomials-via-offset so that widening the CRC does not merely
// repeat the same 4 bytes.
type Accumulator struct {
	width int
	lanes []uint32
	seeds []uint32
	pos   int
}

// NewAccumulator creates an Accumulator targeting the given width.
func NewAccumulator(width int) *Accumulator {
	if width < 2 {
		width = 2
	}
	nlanes := (width + 3) / 4
	a := &Accumulator{width: width, lanes: make([]uint32, nlanes), seeds: make([]uint32, nlanes)}
	for i := range a.lanes {
		a.seeds[i] = 0xFFFFFFFF ^ uint32(i)*0x01000193
		a.lanes[i] = a.seeds[i]
	}
	return a
}

// Write folds p into the running CRC, rotating the lane index by byte so
// the lanes decorrelate across the stream.
func (a *Accumulator) Write(p []byte) (int, error) {
	for _, b := range p {
		lane := a.pos % len(a.lanes)
		a.pos++
		a.lanes[lane] = crc32.Update(a.lanes[lane], crc32.IEEETable, []byte{b})
	}
	return len(p), nil
}

// Sum finalises the accumulator into a CRC of its configured width.
func (a *Accumulator) Sum() *CRC {
	out := make([]byte, 0, len(a.lanes)*4)
	for _, v := range a.lanes {
		var b [4]byte
		b[0] = byte(v >> 24)
		b[1] = byte(v >> 16)
		b[2] = byte(v >> 8)
		b[3] = byte(v)
		out = append(out, b[:]...)
	}
	if len(out) > a.width {
		out = out[len(out)-a.width:]
	}
	return &CRC{width: a.width, bytes: out}
}

// Equal compares two CRCs by width and value.
func (c *CRC) Equal(other *CRC) bool {
	if other == nil || c.width != other.width || len(c.bytes) != len(other.bytes) {
		return false
	}
	for i := range c.bytes {
		if c.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// Encode writes the CRC as its own Infinint-encoded length followed by
// the raw bytes.
func (c *CRC) Encode(w io.Writer) error {
	if err := infinint.FromInt(len(c.bytes)).Encode(w); err != nil {
		return errs.Wrap(err, "crc.Encode: writing length")
	}
	if _, err := w.Write(c.bytes); err != nil {
		return errs.Wrap(err, "crc.Encode: writing bytes")
	}
	return nil
}

// Decode reads a CRC previously written by Encode.
func Decode(r io.Reader) (*CRC, error) {
	n, err := infinint.Decode(r)
	if err != nil {
		return nil, errs.Wrap(err, "crc.Decode: reading length")
	}
	length, err := n.Uint64()
	if err != nil {
		return nil, errs.Wrap(err, "crc.Decode: length out of range")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap(err, "crc.Decode: reading bytes")
	}
	return &CRC{width: int(length), bytes: buf}, nil
}
