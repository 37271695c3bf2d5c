package manager

import (
	"container/heap"
	"sort"

	"github.com/iamNilotpal/tabula/internal/types"
)

// orderItem is one row carried through ORDER BY: its sort key, its heap
// position (for a stable tie-break), and the already-projected record to
// emit.
type orderItem struct {
	value    types.Value
	position int64
	record   types.Record
}

// less reports whether a sorts before b for the given direction, breaking
// ties on position ascending so the sort is stable without relying on
// sort.Slice's own (unspecified) stability for equal keys.
func less(a, b orderItem, asc bool) (bool, error) {
	cmp, err := types.Compare(a.value, b.value)
	if err != nil {
		return false, err
	}
	if cmp == 0 {
		return a.position < b.position, nil
	}
	if asc {
		return cmp < 0, nil
	}
	return cmp > 0, nil
}

// boundedHeap is a fixed-capacity container/heap.Interface used to find
// the top-N items without sorting the whole input: its root is always
// the *worst* of the N items currently kept, so a new candidate only
// needs comparing against the root.
type boundedHeap struct {
	items []orderItem
	asc   bool // the ORDER direction being satisfied
	err   error
}

func (h *boundedHeap) Len() int { return len(h.items) }

// Less defines the root as the worst-of-the-kept: for ASC (keeping the N
// smallest), the root is the largest of those kept, so it evicts first.
func (h *boundedHeap) Less(i, j int) bool {
	worseIsRoot, err := less(h.items[j], h.items[i], h.asc)
	if err != nil {
		h.err = err
		return false
	}
	return worseIsRoot
}

func (h *boundedHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedHeap) Push(x any)    { h.items = append(h.items, x.(orderItem)) }
func (h *boundedHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// orderAndLimit sorts items per (asc, limit): a bounded container/heap
// partial sort when limit is set and limit <= n/2, otherwise a full
// sort, with limit <= 0 meaning "no LIMIT".
func orderAndLimit(items []orderItem, asc bool, limit int) ([]orderItem, error) {
	n := len(items)
	if limit > 0 && limit < n && limit <= n/2 {
		return partialSort(items, asc, limit)
	}

	sorted := make([]orderItem, n)
	copy(sorted, items)

	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		ok, err := less(sorted[i], sorted[j], asc)
		if err != nil {
			sortErr = err
		}
		return ok
	})
	if sortErr != nil {
		return nil, sortErr
	}

	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// partialSort keeps the best `limit` items seen while scanning items once,
// using a bounded heap of size limit, then drains the heap into final
// sorted order.
func partialSort(items []orderItem, asc bool, limit int) ([]orderItem, error) {
	h := &boundedHeap{asc: asc}
	heap.Init(h)

	for _, it := range items {
		if h.Len() < limit {
			heap.Push(h, it)
		} else {
			betterThanRoot, err := less(it, h.items[0], asc)
			if err != nil {
				return nil, err
			}
			if betterThanRoot {
				heap.Pop(h)
				heap.Push(h, it)
			}
		}
		if h.err != nil {
			return nil, h.err
		}
	}

	n := h.Len()
	out := make([]orderItem, n)
	for i := 0; i < n; i++ {
		it := heap.Pop(h).(orderItem)
		out[n-1-i] = it
	}
	if h.err != nil {
		return nil, h.err
	}
	return out, nil
}
