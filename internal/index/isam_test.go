package index

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func newTestISAM(t *testing.T, entries []ISAMEntry) *ISAM {
	t.Helper()
	dir := t.TempDir()
	isam, err := NewISAM(ISAMConfig{
		Path:        filepath.Join(dir, "id.isam"),
		Column:      testIntColumn(),
		LeafFactor:  2,
		IndexFactor: 2,
	}, entries)
	require.NoError(t, err)
	return isam
}

func buildEntries(n int) []ISAMEntry {
	entries := make([]ISAMEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = ISAMEntry{Key: types.IntValue(int32(i)), Position: int64(i)}
	}
	return entries
}

func TestISAMBuildAndSearch(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))

	for i := 0; i < 8; i++ {
		got, err := isam.Search(types.IntValue(int32(i)))
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got)
	}
}

func TestISAMSearchMissing(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))
	got, err := isam.Search(types.IntValue(999))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestISAMRangeSearch(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))

	got, err := isam.RangeSearch(types.IntValue(2), true, types.IntValue(5), true)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 3, 4, 5}, got)
}

func TestISAMGetAll(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))
	got, err := isam.GetAll()
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, got)
}

func TestISAMBuildWithPartialTailLeaf(t *testing.T) {
	// 9 entries over leaves of 2 leaves a half-full final leaf; its lone
	// entry must survive the build.
	isam := newTestISAM(t, buildEntries(9))

	got, err := isam.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 9)

	single, err := isam.Search(types.IntValue(8))
	require.NoError(t, err)
	require.Equal(t, []int64{8}, single)
}

func TestISAMOverflowBeyondCapacity(t *testing.T) {
	// leafCount = (IndexFactor+1)^2 = 9, capacity = 9*2 = 18. Exceed it
	// so the tail leaf's overflow chain is exercised.
	isam := newTestISAM(t, buildEntries(25))

	for i := 0; i < 25; i++ {
		got, err := isam.Search(types.IntValue(int32(i)))
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got, "key %d", i)
	}
}

func TestISAMDuplicateRunSpanningLeaves(t *testing.T) {
	// A run of equal keys longer than one leaf straddles leaf boundaries
	// at build time; search must collect copies from the leaves before the
	// located one too.
	entries := []ISAMEntry{{Key: types.IntValue(1), Position: 0}}
	for i := int64(1); i <= 7; i++ {
		entries = append(entries, ISAMEntry{Key: types.IntValue(5), Position: i})
	}
	entries = append(entries, ISAMEntry{Key: types.IntValue(9), Position: 8})
	isam := newTestISAM(t, entries)

	got, err := isam.Search(types.IntValue(5))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7}, got)

	ranged, err := isam.RangeSearch(types.IntValue(5), true, types.IntValue(5), true)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7}, ranged)
}

func TestISAMPostBuildInsertRoutesToOverflow(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))

	require.NoError(t, isam.Insert(100, types.IntValue(3)))

	got, err := isam.Search(types.IntValue(3))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{3, 100}, got)
}

func TestISAMDelete(t *testing.T) {
	isam := newTestISAM(t, buildEntries(8))

	ok, err := isam.Delete(types.IntValue(4))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := isam.Search(types.IntValue(4))
	require.NoError(t, err)
	require.Empty(t, got)

	ok, err = isam.Delete(types.IntValue(999))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestISAMEmptyBuild(t *testing.T) {
	isam := newTestISAM(t, nil)
	got, err := isam.GetAll()
	require.NoError(t, err)
	require.Empty(t, got)
}
