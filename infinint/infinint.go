// Package infinint implements the arbitrary-precision nonnegative integer
// used for every size, offset and count in the archive format. It has a
// variable-length, self-delimiting binary encoding: a unary-coded length
// prefix followed by that many big-endian bytes of magnitude.
package infinint

import (
	"bytes"
	"io"
	"math/big"

	"github.com/edrusb/darchive/errs"
)

// Infinint is a nonnegative arbitrary-precision integer.
//
// The zero value is the integer 0, matching math/big.Int's convention, so
// a plain var declaration is already usable.
type Infinint struct {
	v big.Int
}

// Zero is the integer 0.
func Zero() Infinint { return Infinint{} }

// FromUint64 builds an Infinint from a uint64.
func FromUint64(n uint64) Infinint {
	var i Infinint
	i.v.SetUint64(n)
	return i
}

// FromInt builds an Infinint from a nonnegative int, panicking (a KindBug)
// if negative.
func FromInt(n int) Infinint {
	if n < 0 {
		panic(errs.Newf(errs.KindBug, "infinint.FromInt: negative value %d", n))
	}
	return FromUint64(uint64(n))
}

// Uint64 returns the value as a uint64, with a KindRange error if it
// overflows (the spec's "numeric owner values that exceed 32/64 bits must
// fail cleanly" boundary behaviour, generalised to the counter type).
func (i Infinint) Uint64() (uint64, error) {
	if !i.v.IsUint64() {
		return 0, errs.Newf(errs.KindRange, "infinint value %s does not fit in 64 bits", i.v.String())
	}
	return i.v.Uint64(), nil
}

// Int64 returns the value as an int64, with a KindRange error on overflow.
func (i Infinint) Int64() (int64, error) {
	if !i.v.IsInt64() {
		return 0, errs.Newf(errs.KindRange, "infinint value %s does not fit in a signed 64 bit integer", i.v.String())
	}
	return i.v.Int64(), nil
}

// String renders the decimal representation.
func (i Infinint) String() string { return i.v.String() }

// Add returns i + other.
func (i Infinint) Add(other Infinint) Infinint {
	var r Infinint
	r.v.Add(&i.v, &other.v)
	return r
}

// Sub returns i - other. It panics with a KindRange error if the result
// would be negative: Infinint is nonnegative only.
func (i Infinint) Sub(other Infinint) Infinint {
	if i.v.Cmp(&other.v) < 0 {
		panic(errs.Newf(errs.KindRange, "infinint subtraction %s - %s would be negative", i.v.String(), other.v.String()))
	}
	var r Infinint
	r.v.Sub(&i.v, &other.v)
	return r
}

// Mul returns i * other.
func (i Infinint) Mul(other Infinint) Infinint {
	var r Infinint
	r.v.Mul(&i.v, &other.v)
	return r
}

// DivMod returns (i / other, i % other). It panics with a KindRange error
// on division by zero.
func (i Infinint) DivMod(other Infinint) (q, r Infinint) {
	if other.v.Sign() == 0 {
		panic(errs.New(errs.KindRange, "infinint division by zero"))
	}
	q.v.DivMod(&i.v, &other.v, &r.v)
	return q, r
}

// Lsh returns i shifted left by n bits.
func (i Infinint) Lsh(n uint) Infinint {
	var r Infinint
	r.v.Lsh(&i.v, n)
	return r
}

// Rsh returns i shifted right by n bits.
func (i Infinint) Rsh(n uint) Infinint {
	var r Infinint
	r.v.Rsh(&i.v, n)
	return r
}

// Cmp returns -1, 0 or +1 as i is less than, equal to, or greater than
// other.
func (i Infinint) Cmp(other Infinint) int { return i.v.Cmp(&other.v) }

// IsZero reports whether i is 0.
func (i Infinint) IsZero() bool { return i.v.Sign() == 0 }

// Unstack transfers as much of i into a uint64-sized "small" accumulator
// as fits, leaving the remainder in the returned Infinint. This mirrors
// dar's `unstack(small& x)`, used by callers that want to drain a counter
// through a fixed-width register in a loop.
func (i Infinint) Unstack(max uint64) (small uint64, remainder Infinint) {
	maxI := FromUint64(max)
	if i.v.Cmp(&maxI.v) <= 0 {
		small, _ = i.Uint64()
		return small, Zero()
	}
	return max, i.Sub(maxI)
}

// magnitudeBytes returns the big-endian magnitude with no leading zero
// byte, except that zero itself yields a single zero byte.
func (i Infinint) magnitudeBytes() []byte {
	b := i.v.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	return b
}

// Encode writes the self-delimiting binary form: a unary length prefix (n
// one-bits followed by a terminating zero bit, packed into whole bytes
// with the remainder zero-padded) followed by that many magnitude bytes.
//
// The unary prefix is emitted byte-wise for simplicity and robustness:
// each prefix byte is either 0xFF (meaning "at least 8 more magnitude
// bytes follow") or, for the terminating byte, has its high bits set to
// the count of magnitude bytes remaining (0..7) followed by a zero bit,
// packed from the top. This keeps the prefix length bounded by
// ceil(n/8)+1 bytes for an n-byte magnitude, which is what "unary-coded
// length prefix" demands without requiring unbounded bit-level I/O.
func (i Infinint) Encode(w io.Writer) error {
	mag := i.magnitudeBytes()
	if len(mag) == 1 && mag[0] == 0 {
		_, err := w.Write([]byte{0})
		return err
	}
	n := len(mag)
	full := n / 8
	rem := n % 8
	prefix := make([]byte, 0, full+1)
	for k := 0; k < full; k++ {
		prefix = append(prefix, 0xFF)
	}
	// terminating byte: top `rem` bits set, then a zero bit, remaining
	// bits unused (zero). rem is in [0,7].
	var term byte
	for b := 0; b < rem; b++ {
		term |= 1 << (7 - b)
	}
	prefix = append(prefix, term)
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(mag)
	return err
}

// Decode reads the self-delimiting binary form produced by Encode.
func Decode(r io.Reader) (Infinint, error) {
	var one [1]byte
	full := 0
	for {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return Infinint{}, errs.Wrap(err, "infinint.Decode: reading length prefix")
		}
		if one[0] == 0xFF {
			full++
			continue
		}
		break
	}
	rem := 0
	for b := 0; b < 8; b++ {
		if one[0]&(1<<(7-b)) != 0 {
			rem++
		} else {
			break
		}
	}
	n := full*8 + rem
	if n == 0 {
		return Zero(), nil
	}
	mag := make([]byte, n)
	if _, err := io.ReadFull(r, mag); err != nil {
		return Infinint{}, errs.Wrap(err, "infinint.Decode: reading magnitude")
	}
	var i Infinint
	i.v.SetBytes(mag)
	return i, nil
}

// DecodeBytes is a convenience wrapper around Decode for an in-memory
// buffer, returning the number of bytes consumed alongside the value.
func DecodeBytes(b []byte) (Infinint, int, error) {
	r := bytes.NewReader(b)
	v, err := Decode(r)
	if err != nil {
		return Infinint{}, 0, err
	}
	return v, len(b) - r.Len(), nil
}
