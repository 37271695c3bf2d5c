package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromPositionsToList(t *testing.T) {
	b := FromPositions([]int64{1, 3, 4})
	require.Equal(t, []int64{1, 3, 4}, b.ToList(10))
	require.False(t, b.Tail())
}

func TestEmptyMatchesNothing(t *testing.T) {
	require.Empty(t, Empty().ToList(10))
}

func TestAllWithTailMatchesEverything(t *testing.T) {
	b := AllWithTail()
	require.Equal(t, []int64{0, 1, 2, 3, 4}, b.ToList(5))
}

func TestNotInvertsTail(t *testing.T) {
	b := FromPositions([]int64{0, 1})
	notB := Not(b)
	require.True(t, notB.Tail())
	require.Equal(t, []int64{2, 3, 4}, notB.ToList(5))
}

func TestAndEqualizesByTailExtension(t *testing.T) {
	// a matches {0,2} explicitly, no tail -> universe is just {0,1,2}.
	a := FromPositions([]int64{0, 2})
	// b matches everything from position 1 onward via tail.
	b := Not(FromPositions([]int64{0}))

	got := And(a, b)
	require.Equal(t, []int64{2}, got.ToList(10))
}

func TestOrEqualizesByTailExtension(t *testing.T) {
	a := FromPositions([]int64{0})
	b := Not(FromPositions([]int64{0, 1, 2}))

	got := Or(a, b)
	require.Equal(t, []int64{0, 3, 4}, got.ToList(5))
}

func TestDifference(t *testing.T) {
	a := FromPositions([]int64{0, 1, 2})
	b := FromPositions([]int64{1})

	got := Difference(a, b)
	require.Equal(t, []int64{0, 2}, got.ToList(10))
}
