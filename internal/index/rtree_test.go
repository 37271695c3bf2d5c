package index

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func testPointColumn() types.Column {
	return types.Column{Name: "loc", Type: types.Point, IndexType: types.RTree}
}

func newTestRTree(t *testing.T, fanout int) *RTree {
	t.Helper()
	dir := t.TempDir()
	rt, err := NewRTree(RTreeConfig{Path: filepath.Join(dir, "loc.rtree"), Column: testPointColumn(), Fanout: fanout})
	require.NoError(t, err)
	return rt
}

func TestRTreeInsertSearch(t *testing.T) {
	rt := newTestRTree(t, 4)

	require.NoError(t, rt.Insert(1, types.PointValue(1, 1)))
	require.NoError(t, rt.Insert(2, types.PointValue(5, 5)))

	got, err := rt.Search(types.PointValue(5, 5))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, got)
}

func TestRTreeSplitsOnOverflow(t *testing.T) {
	rt := newTestRTree(t, 3)

	for i := int32(0); i < 20; i++ {
		require.NoError(t, rt.Insert(int64(i), types.PointValue(float32(i), float32(i))))
	}

	all, err := rt.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 20)
}

func TestRTreeRangeSearchMBR(t *testing.T) {
	rt := newTestRTree(t, 4)

	for i := int32(0); i < 10; i++ {
		require.NoError(t, rt.Insert(int64(i), types.PointValue(float32(i), float32(i))))
	}

	got, err := rt.RangeSearchMBR(MBR{XMin: 2, YMin: 2, XMax: 5, YMax: 5})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{2, 3, 4, 5}, got)
}

func TestRTreeRangeSearchCircle(t *testing.T) {
	rt := newTestRTree(t, 4)

	require.NoError(t, rt.Insert(1, types.PointValue(0, 0)))
	require.NoError(t, rt.Insert(2, types.PointValue(10, 10)))

	got, err := rt.RangeSearchCircle(Circle{CX: 0, CY: 0, R: 1})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, got)
}

func TestRTreeKNN(t *testing.T) {
	rt := newTestRTree(t, 4)

	require.NoError(t, rt.Insert(1, types.PointValue(0, 0)))
	require.NoError(t, rt.Insert(2, types.PointValue(1, 1)))
	require.NoError(t, rt.Insert(3, types.PointValue(10, 10)))

	got, err := rt.KNN(0, 0, 2)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, got)
}

func TestRTreeDelete(t *testing.T) {
	rt := newTestRTree(t, 4)

	require.NoError(t, rt.Insert(1, types.PointValue(3, 3)))
	ok, err := rt.Delete(types.PointValue(3, 3))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := rt.Search(types.PointValue(3, 3))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRTreeRangeSearchUnsupported(t *testing.T) {
	rt := newTestRTree(t, 4)
	_, err := rt.RangeSearch(types.IntValue(1), true, types.IntValue(2), true)
	require.Error(t, err)
}

func TestRTreeDefaultFanoutWhenUnset(t *testing.T) {
	dir := t.TempDir()
	rt, err := NewRTree(RTreeConfig{Path: filepath.Join(dir, "loc.rtree"), Column: testPointColumn()})
	require.NoError(t, err)
	require.Equal(t, defaultRTreeFanout, rt.fanout)
}
