package index

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func testIntColumn() types.Column {
	return types.Column{Name: "id", Type: types.Int, IsPrimary: true, IndexType: types.BTree}
}

func newTestBTree(t *testing.T, branching int) *BTree {
	t.Helper()
	dir := t.TempDir()
	bt, err := NewBTree(BTreeConfig{
		Path:            filepath.Join(dir, "id.idx"),
		Column:          testIntColumn(),
		BranchingFactor: branching,
	})
	require.NoError(t, err)
	return bt
}

func TestBTreeInsertSearch(t *testing.T) {
	bt := newTestBTree(t, 3)

	require.NoError(t, bt.Insert(10, types.IntValue(5)))
	require.NoError(t, bt.Insert(20, types.IntValue(2)))
	require.NoError(t, bt.Insert(30, types.IntValue(8)))

	got, err := bt.Search(types.IntValue(2))
	require.NoError(t, err)
	require.Equal(t, []int64{20}, got)
}

func TestBTreeSplitsAndStaysOrdered(t *testing.T) {
	bt := newTestBTree(t, 3)

	for i := int32(0); i < 20; i++ {
		require.NoError(t, bt.Insert(int64(i), types.IntValue(i)))
	}

	all, err := bt.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 20)

	for i := int32(0); i < 20; i++ {
		got, err := bt.Search(types.IntValue(i))
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got)
	}
}

func TestBTreeDuplicateKeys(t *testing.T) {
	bt := newTestBTree(t, 3)

	require.NoError(t, bt.Insert(1, types.IntValue(7)))
	require.NoError(t, bt.Insert(2, types.IntValue(7)))
	require.NoError(t, bt.Insert(3, types.IntValue(7)))

	got, err := bt.Search(types.IntValue(7))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3}, got)
}

func TestBTreeDuplicateKeysAcrossSplits(t *testing.T) {
	bt := newTestBTree(t, 3)

	// Enough duplicates to force splits that promote the duplicated key
	// itself as a separator; every copy must stay findable.
	require.NoError(t, bt.Insert(100, types.IntValue(1)))
	require.NoError(t, bt.Insert(101, types.IntValue(9)))
	var want []int64
	for i := int64(0); i < 10; i++ {
		require.NoError(t, bt.Insert(i, types.IntValue(7)))
		want = append(want, i)
	}

	got, err := bt.Search(types.IntValue(7))
	require.NoError(t, err)
	require.ElementsMatch(t, want, got)

	ranged, err := bt.RangeSearch(types.IntValue(7), true, types.IntValue(7), true)
	require.NoError(t, err)
	require.ElementsMatch(t, want, ranged)
}

func TestBTreeRangeSearch(t *testing.T) {
	bt := newTestBTree(t, 3)

	for i := int32(0); i < 10; i++ {
		require.NoError(t, bt.Insert(int64(i), types.IntValue(i)))
	}

	got, err := bt.RangeSearch(types.IntValue(3), true, types.IntValue(6), true)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{3, 4, 5, 6}, got)

	got, err = bt.RangeSearch(types.Value{}, false, types.IntValue(2), true)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{0, 1, 2}, got)
}

func TestBTreeDeleteIsLazyLeafOnly(t *testing.T) {
	bt := newTestBTree(t, 3)

	for i := int32(0); i < 10; i++ {
		require.NoError(t, bt.Insert(int64(i), types.IntValue(i)))
	}

	ok, err := bt.Delete(types.IntValue(5))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := bt.Search(types.IntValue(5))
	require.NoError(t, err)
	require.Empty(t, got)

	ok, err = bt.Delete(types.IntValue(999))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBTreeClear(t *testing.T) {
	bt := newTestBTree(t, 3)
	require.NoError(t, bt.Insert(1, types.IntValue(1)))
	require.NoError(t, bt.Clear())

	_, err := OpenBTree(BTreeConfig{Path: bt.path, Column: testIntColumn(), BranchingFactor: 3})
	require.Error(t, err)
}
