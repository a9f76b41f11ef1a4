package main

import (
	"fmt"

	"github.com/edrusb/darchive/errs"
	"github.com/edrusb/darchive/metrics"
)

// printSummary prints the per-category counts every walk reports at the
// end, per §7 "data errors are counted ... and surfaced only at the end
// as the process exit code". Returns a *data*-kind error when anything
// was errored, so the caller's exit code reflects it (exit code 4).
func printSummary(c *metrics.Counters) error {
	for cat := metrics.Saved; cat <= metrics.Removed; cat++ {
		if n := c.Count(cat); n > 0 {
			fmt.Printf("%-18s %d\n", cat.String()+":", n)
		}
	}
	if c.Count(metrics.Errored) > 0 {
		return errs.Newf(errs.KindData, "%d entries could not be processed", c.Count(metrics.Errored))
	}
	return nil
}
