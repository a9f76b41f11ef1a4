// Package metrics accumulates the per-category data-error counters a
// walk reports at the end: saved, not-changed, skipped-by-filter,
// too-old, errored, removed, per §7 "data errors are counted (per
// category...) and do not abort the walk". Grounded on the original's
// `statistics.hpp` (a single struct of infinint counters incremented by
// the backup/restore/merge walkers and printed as a summary table at
// the end of a run).
package metrics

import "sync/atomic"

// Category is one of the counted data-error/outcome buckets.
type Category int

const (
	Saved Category = iota
	NotChanged
	SkippedByFilter
	TooOld
	Errored
	Removed
	numCategories
)

func (c Category) String() string {
	switch c {
	case Saved:
		return "saved"
	case NotChanged:
		return "not-changed"
	case SkippedByFilter:
		return "skipped-by-filter"
	case TooOld:
		return "too-old"
	case Errored:
		return "errored"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Counters is a thread-safe set of per-category counts; the backup,
// restore and merge walkers all share one, incrementing it from
// whatever goroutine processes a given entry (§8 concurrency model).
type Counters struct {
	counts [numCategories]int64
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }

// Incr adds one to c's category.
func (c *Counters) Incr(cat Category) { atomic.AddInt64(&c.counts[cat], 1) }

// Add adds n to c's category (n may be negative to correct a
// miscount, e.g. when a file initially marked Errored is retried and
// succeeds).
func (c *Counters) Add(cat Category, n int64) { atomic.AddInt64(&c.counts[cat], n) }

// Count reads the current value of a category.
func (c *Counters) Count(cat Category) int64 { return atomic.LoadInt64(&c.counts[cat]) }

// Snapshot returns a category->count map, for reporting.
func (c *Counters) Snapshot() map[Category]int64 {
	out := make(map[Category]int64, numCategories)
	for cat := Category(0); cat < numCategories; cat++ {
		out[cat] = c.Count(cat)
	}
	return out
}

// Total sums every category.
func (c *Counters) Total() int64 {
	var total int64
	for cat := Category(0); cat < numCategories; cat++ {
		total += c.Count(cat)
	}
	return total
}
