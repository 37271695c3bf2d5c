package index

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func newTestAVL(t *testing.T) *AVL {
	t.Helper()
	dir := t.TempDir()
	avl, err := NewAVL(AVLConfig{Path: filepath.Join(dir, "id.avl"), Column: testIntColumn()})
	require.NoError(t, err)
	return avl
}

func TestAVLInsertSearch(t *testing.T) {
	avl := newTestAVL(t)

	require.NoError(t, avl.Insert(1, types.IntValue(10)))
	require.NoError(t, avl.Insert(2, types.IntValue(5)))
	require.NoError(t, avl.Insert(3, types.IntValue(20)))

	got, err := avl.Search(types.IntValue(5))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, got)
}

func TestAVLStaysBalancedUnderSortedInsert(t *testing.T) {
	avl := newTestAVL(t)

	for i := int32(0); i < 50; i++ {
		require.NoError(t, avl.Insert(int64(i), types.IntValue(i)))
	}

	all, err := avl.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 50)

	for i := int32(0); i < 50; i++ {
		got, err := avl.Search(types.IntValue(i))
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got)
	}
}

func TestAVLRangeSearch(t *testing.T) {
	avl := newTestAVL(t)
	for i := int32(0); i < 10; i++ {
		require.NoError(t, avl.Insert(int64(i), types.IntValue(i)))
	}

	got, err := avl.RangeSearch(types.IntValue(3), true, types.IntValue(7), true)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{3, 4, 5, 6, 7}, got)
}

func TestAVLDeleteLeaf(t *testing.T) {
	avl := newTestAVL(t)
	for i := int32(0); i < 5; i++ {
		require.NoError(t, avl.Insert(int64(i), types.IntValue(i)))
	}

	ok, err := avl.Delete(types.IntValue(4))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := avl.Search(types.IntValue(4))
	require.NoError(t, err)
	require.Empty(t, got)

	all, err := avl.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestAVLDeleteTwoChildUsesPredecessor(t *testing.T) {
	avl := newTestAVL(t)
	for _, k := range []int32{10, 5, 15, 3, 7, 12, 20} {
		require.NoError(t, avl.Insert(int64(k), types.IntValue(k)))
	}

	ok, err := avl.Delete(types.IntValue(10))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := avl.Search(types.IntValue(10))
	require.NoError(t, err)
	require.Empty(t, got)

	all, err := avl.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 6)
}

func TestAVLDeleteMissingKey(t *testing.T) {
	avl := newTestAVL(t)
	require.NoError(t, avl.Insert(1, types.IntValue(1)))

	ok, err := avl.Delete(types.IntValue(99))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAVLDuplicateKeysDescendLeft(t *testing.T) {
	avl := newTestAVL(t)
	require.NoError(t, avl.Insert(1, types.IntValue(5)))
	require.NoError(t, avl.Insert(2, types.IntValue(5)))
	require.NoError(t, avl.Insert(3, types.IntValue(5)))

	got, err := avl.Search(types.IntValue(5))
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3}, got)
}
