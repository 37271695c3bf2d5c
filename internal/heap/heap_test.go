package heap

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func testSchema() *types.TableSchema {
	return &types.TableSchema{
		TableName: "people",
		Columns: []types.Column{
			{Name: "id", Type: types.Int, IsPrimary: true, IndexType: types.BTree},
			{Name: "name", Type: types.Varchar, VarcharLength: 10},
		},
	}
}

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	dir := t.TempDir()
	h, err := Create(Config{Path: filepath.Join(dir, "people.dat"), Schema: testSchema()})
	require.NoError(t, err)
	return h
}

func TestRoundTrip(t *testing.T) {
	h := newTestHeap(t)

	rec := types.Record{types.IntValue(1), types.VarcharValue("alice")}
	pos, err := h.Append(rec)
	require.NoError(t, err)

	got, live, err := h.Read(pos)
	require.NoError(t, err)
	require.True(t, live)
	require.Equal(t, rec, got)
}

func TestPositionStability(t *testing.T) {
	h := newTestHeap(t)

	p1, err := h.Append(types.Record{types.IntValue(1), types.VarcharValue("a")})
	require.NoError(t, err)
	p2, err := h.Append(types.Record{types.IntValue(2), types.VarcharValue("b")})
	require.NoError(t, err)

	_, _, err = h.Read(p2)
	require.NoError(t, err)

	got, live, err := h.Read(p1)
	require.NoError(t, err)
	require.True(t, live)
	require.Equal(t, int32(1), got[0].Int)
}

func TestFreeListLIFO(t *testing.T) {
	h := newTestHeap(t)

	p1, _ := h.Append(types.Record{types.IntValue(1), types.VarcharValue("a")})
	p2, _ := h.Append(types.Record{types.IntValue(2), types.VarcharValue("b")})

	_, err := h.Delete(p1)
	require.NoError(t, err)
	_, err = h.Delete(p2)
	require.NoError(t, err)

	p3, err := h.Append(types.Record{types.IntValue(3), types.VarcharValue("c")})
	require.NoError(t, err)
	require.Equal(t, p2, p3)

	p4, err := h.Append(types.Record{types.IntValue(4), types.VarcharValue("d")})
	require.NoError(t, err)
	require.Equal(t, p1, p4)
}

func TestDeleteThenReadReturnsNotLive(t *testing.T) {
	h := newTestHeap(t)

	pos, _ := h.Append(types.Record{types.IntValue(1), types.VarcharValue("a")})
	deleted, err := h.Delete(pos)
	require.NoError(t, err)
	require.Equal(t, int32(1), deleted[0].Int)

	_, live, err := h.Read(pos)
	require.NoError(t, err)
	require.False(t, live)
}

func TestReadPositionOutOfRange(t *testing.T) {
	h := newTestHeap(t)
	_, _, err := h.Read(5)
	require.Error(t, err)
}

func TestMaxPosition(t *testing.T) {
	h := newTestHeap(t)
	max, err := h.MaxPosition()
	require.NoError(t, err)
	require.Equal(t, int64(0), max)

	h.Append(types.Record{types.IntValue(1), types.VarcharValue("a")})
	h.Append(types.Record{types.IntValue(2), types.VarcharValue("b")})

	max, err = h.MaxPosition()
	require.NoError(t, err)
	require.Equal(t, int64(2), max)
}
