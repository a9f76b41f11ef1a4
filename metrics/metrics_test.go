package metrics_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edrusb/darchive/metrics"
)

func TestIncrAndSnapshot(t *testing.T) {
	c := metrics.New()
	c.Incr(metrics.Saved)
	c.Incr(metrics.Saved)
	c.Incr(metrics.Errored)

	require.Equal(t, int64(2), c.Count(metrics.Saved))
	require.Equal(t, int64(1), c.Count(metrics.Errored))
	require.Equal(t, int64(0), c.Count(metrics.Removed))
	require.Equal(t, int64(3), c.Total())

	snap := c.Snapshot()
	require.Equal(t, int64(2), snap[metrics.Saved])
}

func TestIncrIsConcurrencySafe(t *testing.T) {
	c := metrics.New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Incr(metrics.Saved)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(100), c.Count(metrics.Saved))
}
