package catalog_test

import (
	"testing"

	"github.com/edrusb/darchive/catalog"
	"github.com/stretchr/testify/require"
)

func TestReadLinkTrackerSharesStarAcrossSightings(t *testing.T) {
	tracker := catalog.NewReadLinkTracker()
	inode := &catalog.Symlink{Inode: sampleInode(""), Target: "x"}

	e1, first1 := tracker.Observe(8, 42, 3, "a", inode)
	require.True(t, first1)
	m1, ok := e1.(*catalog.Mirage)
	require.True(t, ok)

	e2, first2 := tracker.Observe(8, 42, 3, "b", nil)
	require.False(t, first2)
	m2 := e2.(*catalog.Mirage)

	e3, first3 := tracker.Observe(8, 42, 3, "c", nil)
	require.False(t, first3)
	m3 := e3.(*catalog.Mirage)

	require.Same(t, m1.Star, m2.Star)
	require.Same(t, m2.Star, m3.Star)
	require.Equal(t, "a", m1.Name)
	require.Equal(t, "b", m2.Name)
	require.Equal(t, "c", m3.Name)
	require.NotZero(t, m1.Star.Etiquette)
	require.Equal(t, m1.Star.Etiquette, m3.Star.Etiquette)
}

func TestReadLinkTrackerSoloFileIsNotWrapped(t *testing.T) {
	tracker := catalog.NewReadLinkTracker()
	inode := &catalog.Symlink{Inode: sampleInode("solo"), Target: "x"}

	e, first := tracker.Observe(8, 1, 1, "solo", inode)
	require.True(t, first)
	require.Same(t, inode, e)
}

func TestReadLinkTrackerDistinctInodesGetDistinctStars(t *testing.T) {
	tracker := catalog.NewReadLinkTracker()

	e1, _ := tracker.Observe(8, 1, 2, "one-a", &catalog.Symlink{Inode: sampleInode(""), Target: "x"})
	e2, _ := tracker.Observe(8, 2, 2, "two-a", &catalog.Symlink{Inode: sampleInode(""), Target: "y"})

	m1 := e1.(*catalog.Mirage)
	m2 := e2.(*catalog.Mirage)
	require.NotSame(t, m1.Star, m2.Star)
}
