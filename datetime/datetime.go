// Package datetime implements the archive's timestamp representation:
// integer seconds plus a sub-second fraction tagged with its unit. All
// filesystem timestamps captured by the backup walker use this type so
// that archives written on filesystems with differing time resolutions
// (second-granularity FAT, nanosecond-granularity ext4) compare correctly.
package datetime

import (
	"time"

	"github.com/edrusb/darchive/infinint"
)

// Unit tags the resolution of the Frac field.
type Unit int

const (
	Second Unit = iota
	Microsecond
	Nanosecond
)

func (u Unit) scale() int64 {
	switch u {
	case Second:
		return 1
	case Microsecond:
		return 1_000_000
	case Nanosecond:
		return 1_000_000_000
	default:
		return 1
	}
}

// DateTime is seconds-since-epoch plus a sub-second fraction in its own
// unit. Seconds may be negative (predates 1970); Frac is always in
// [0, unit.scale()).
type DateTime struct {
	Seconds int64
	Frac    int64
	FracU   Unit
}

// FromTime builds a nanosecond-resolution DateTime from a time.Time.
func FromTime(t time.Time) DateTime {
	return DateTime{Seconds: t.Unix(), Frac: int64(t.Nanosecond()), FracU: Nanosecond}
}

// ToTime converts back to a time.Time in UTC.
func (d DateTime) ToTime() time.Time {
	ns := d.Frac * (Nanosecond.scale() / d.FracU.scale())
	return time.Unix(d.Seconds, ns).UTC()
}

// finestCommonUnit returns the finer of two units (the one with the
// larger scale factor), used so comparisons are never lossy.
func finestCommonUnit(a, b Unit) Unit {
	if a.scale() >= b.scale() {
		return a
	}
	return b
}

// normalizedFrac returns d's fraction expressed in unit u.
func (d DateTime) normalizedFrac(u Unit) int64 {
	return d.Frac * (u.scale() / d.FracU.scale())
}

// Compare returns -1, 0 or 1 comparing d to other, after converting both
// to their finest common unit as required by the spec.
func (d DateTime) Compare(other DateTime) int {
	u := finestCommonUnit(d.FracU, other.FracU)
	as := d.Seconds*u.scale() + d.normalizedFrac(u)
	bs := other.Seconds*u.scale() + other.normalizedFrac(u)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Before reports whether d is strictly earlier than other.
func (d DateTime) Before(other DateTime) bool { return d.Compare(other) < 0 }

// IsMoreRecentThan reports whether d is strictly later than other, the
// predicate the backup walker and the catalogue's inode comparison use
// directly.
func (d DateTime) IsMoreRecentThan(other DateTime) bool { return d.Compare(other) > 0 }

// IsNegative reports whether d predates the epoch, the boundary
// behaviour spec.md calls out as needing an explicit zeroing opt-in
// rather than silent truncation.
func (d DateTime) IsNegative() bool { return d.Seconds < 0 }

// ZeroIfNegative returns d unchanged, or the epoch if d predates it and
// zero is true -- the user-requested substitution from the spec's open
// question about pre-1970 timestamps.
func (d DateTime) ZeroIfNegative(zero bool) DateTime {
	if zero && d.IsNegative() {
		return DateTime{FracU: d.FracU}
	}
	return d
}

// EncodeSeconds splits Seconds into a sign flag and an infinint magnitude
// for archive storage, since Infinint itself is nonnegative only; the
// caller writes both. Frac is not part of the result.
func (d DateTime) EncodeSeconds() (neg bool, mag infinint.Infinint) {
	if d.Seconds < 0 {
		return true, infinint.FromUint64(uint64(-d.Seconds))
	}
	return false, infinint.FromUint64(uint64(d.Seconds))
}

// DecodeSeconds is the inverse of EncodeSeconds.
func DecodeSeconds(neg bool, mag infinint.Infinint) (int64, error) {
	v, err := mag.Uint64()
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}
