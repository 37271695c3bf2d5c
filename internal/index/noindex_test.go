package index

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeHeap is a minimal HeapReader stub for exercising NoIndex.Delete's
// heap-scan lookup without depending on internal/heap.
type fakeHeap struct {
	records map[int64]types.Record
}

func (fh *fakeHeap) Read(position int64) (types.Record, bool, error) {
	rec, ok := fh.records[position]
	if !ok {
		return nil, false, nil
	}
	return rec, true, nil
}

func newTestNoIndex(t *testing.T, heap HeapReader) *NoIndex {
	t.Helper()
	dir := t.TempDir()
	ni, err := NewNoIndex(NoIndexConfig{
		Path:        filepath.Join(dir, "col.noidx"),
		Column:      testIntColumn(),
		ColumnIndex: 0,
		Heap:        heap,
	})
	require.NoError(t, err)
	return ni
}

func TestNoIndexInsertGetAll(t *testing.T) {
	ni := newTestNoIndex(t, &fakeHeap{})

	require.NoError(t, ni.Insert(1, types.IntValue(5)))
	require.NoError(t, ni.Insert(2, types.IntValue(9)))

	got, err := ni.GetAll()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, got)
}

func TestNoIndexSearchUnsupported(t *testing.T) {
	ni := newTestNoIndex(t, &fakeHeap{})
	_, err := ni.Search(types.IntValue(5))
	require.Error(t, err)
}

func TestNoIndexRangeSearchUnsupported(t *testing.T) {
	ni := newTestNoIndex(t, &fakeHeap{})
	_, err := ni.RangeSearch(types.IntValue(1), true, types.IntValue(5), true)
	require.Error(t, err)
}

func TestNoIndexDeleteResolvesViaHeapScan(t *testing.T) {
	heap := &fakeHeap{records: map[int64]types.Record{
		1: {types.IntValue(5)},
		2: {types.IntValue(9)},
	}}
	ni := newTestNoIndex(t, heap)

	require.NoError(t, ni.Insert(1, types.IntValue(5)))
	require.NoError(t, ni.Insert(2, types.IntValue(9)))

	ok, err := ni.Delete(types.IntValue(9))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := ni.GetAll()
	require.NoError(t, err)
	require.Equal(t, []int64{1}, got)
}

func TestNoIndexDeleteRemovesDeadSlotEntry(t *testing.T) {
	// The manager tombstones the heap slot before asking each index to
	// delete the key; the key can't be read back, so the dead slot's entry
	// is the one removed.
	heap := &fakeHeap{records: map[int64]types.Record{1: {types.IntValue(5)}}}
	ni := newTestNoIndex(t, heap)

	require.NoError(t, ni.Insert(1, types.IntValue(5)))
	require.NoError(t, ni.Insert(2, types.IntValue(9)))
	// Position 2's record was already deleted from the heap.

	ok, err := ni.Delete(types.IntValue(9))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := ni.GetAll()
	require.NoError(t, err)
	require.Equal(t, []int64{1}, got)
}

func TestNoIndexDeleteMissingKey(t *testing.T) {
	heap := &fakeHeap{records: map[int64]types.Record{1: {types.IntValue(5)}}}
	ni := newTestNoIndex(t, heap)
	require.NoError(t, ni.Insert(1, types.IntValue(5)))

	ok, err := ni.Delete(types.IntValue(999))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNoIndexClear(t *testing.T) {
	ni := newTestNoIndex(t, &fakeHeap{})
	require.NoError(t, ni.Insert(1, types.IntValue(5)))
	require.NoError(t, ni.Clear())

	_, err := ni.GetAll()
	require.Error(t, err)
}
