package index

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

func newTestHash(t *testing.T, bucketCap, initialDepth int) *Hash {
	t.Helper()
	dir := t.TempDir()
	h, err := NewHash(HashConfig{
		DirPath: filepath.Join(dir, "id.dir"),
		BucketPathFor: func(bucketID int) string {
			return filepath.Join(dir, fmt.Sprintf("bucket-%d.dat", bucketID))
		},
		Column:       testIntColumn(),
		BucketCap:    bucketCap,
		InitialDepth: initialDepth,
	})
	require.NoError(t, err)
	return h
}

func TestHashInsertSearch(t *testing.T) {
	h := newTestHash(t, 2, 1)

	require.NoError(t, h.Insert(1, types.IntValue(5)))
	require.NoError(t, h.Insert(2, types.IntValue(7)))

	got, err := h.Search(types.IntValue(5))
	require.NoError(t, err)
	require.Equal(t, []int64{1}, got)
}

func TestHashSearchMissingIsEmpty(t *testing.T) {
	h := newTestHash(t, 2, 1)
	require.NoError(t, h.Insert(1, types.IntValue(5)))

	got, err := h.Search(types.IntValue(999))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHashSplitsOnOverflow(t *testing.T) {
	h := newTestHash(t, 2, 1)

	for i := int32(0); i < 40; i++ {
		require.NoError(t, h.Insert(int64(i), types.IntValue(i)))
	}

	all, err := h.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 40)

	for i := int32(0); i < 40; i++ {
		got, err := h.Search(types.IntValue(i))
		require.NoError(t, err)
		require.Equal(t, []int64{int64(i)}, got)
	}
}

func TestHashDuplicateKeysExceedBucketCapacity(t *testing.T) {
	// Every entry hashes identically, so no amount of splitting separates
	// them; the bucket must go overfull instead of splitting forever.
	h := newTestHash(t, 2, 1)

	var want []int64
	for i := int64(0); i < 10; i++ {
		require.NoError(t, h.Insert(i, types.IntValue(7)))
		want = append(want, i)
	}

	got, err := h.Search(types.IntValue(7))
	require.NoError(t, err)
	require.ElementsMatch(t, want, got)
}

func TestHashDelete(t *testing.T) {
	h := newTestHash(t, 2, 1)
	require.NoError(t, h.Insert(1, types.IntValue(5)))

	ok, err := h.Delete(types.IntValue(5))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := h.Search(types.IntValue(5))
	require.NoError(t, err)
	require.Empty(t, got)

	ok, err = h.Delete(types.IntValue(5))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashRangeSearchUnsupported(t *testing.T) {
	h := newTestHash(t, 2, 1)
	_, err := h.RangeSearch(types.IntValue(1), true, types.IntValue(10), true)
	require.Error(t, err)
}

func TestHashClearRemovesAllBuckets(t *testing.T) {
	h := newTestHash(t, 2, 1)
	for i := int32(0); i < 20; i++ {
		require.NoError(t, h.Insert(int64(i), types.IntValue(i)))
	}
	require.NoError(t, h.Clear())

	_, err := OpenHash(HashConfig{
		DirPath:       h.dirPath,
		BucketPathFor: h.bktPathFn,
		Column:        testIntColumn(),
		BucketCap:     2,
		InitialDepth:  1,
	})
	require.Error(t, err)
}
