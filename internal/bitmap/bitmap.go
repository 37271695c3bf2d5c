// Package bitmap implements the predicate evaluator's result
// representation: a finite bit sequence whose bit 0 is a "tail flag" standing in
// for every position at or beyond the bitmap's declared length, letting a
// short, finite bitmap represent an unbounded set (the classic case being
// NOT over a sparse positive match).
//
// The backing store is github.com/bits-and-blooms/bitset — each Bitmap
// wraps one *bitset.BitSet plus the logical bit-length the boolean
// algebra needs to track independently of the library's own growth behavior.
package bitmap

import "github.com/bits-and-blooms/bitset"

// Bitmap is a finite bit sequence plus its declared length. Bit i+1 set
// means position i is a member; bit 0 (the tail flag) means every
// position p >= length-1 is also a member.
type Bitmap struct {
	bits   *bitset.BitSet
	length uint64 // always >= 1; covers bit indices [0, length).
}

// Empty returns the bitmap matching no position and carrying no tail.
func Empty() *Bitmap {
	return &Bitmap{bits: bitset.New(1), length: 1}
}

// AllWithTail returns the bitmap matching every position, via the tail
// flag alone — used when a SELECT carries no WHERE clause.
func AllWithTail() *Bitmap {
	bs := bitset.New(1)
	bs.Set(0)
	return &Bitmap{bits: bs, length: 1}
}

// FromPositions builds a bitmap with exactly the given positions set and
// no tail flag — the translation of an index search() result for an
// equality predicate.
func FromPositions(positions []int64) *Bitmap {
	if len(positions) == 0 {
		return Empty()
	}

	var maxPos int64
	for _, p := range positions {
		if p > maxPos {
			maxPos = p
		}
	}

	length := uint64(maxPos) + 2
	bs := bitset.New(uint(length))
	for _, p := range positions {
		bs.Set(uint(p + 1))
	}
	return &Bitmap{bits: bs, length: length}
}

// Tail reports whether this bitmap's tail flag is set.
func (b *Bitmap) Tail() bool {
	return b.bits.Test(0)
}

// Len returns the bitmap's declared bit length.
func (b *Bitmap) Len() uint64 {
	return b.length
}

// ToList enumerates every matching position: explicit ones first, then —
// if the tail flag is set — every position from length-1 up to
// maxPosition-1 (the heap's current slot count).
func (b *Bitmap) ToList(maxPosition int64) []int64 {
	var out []int64
	for i := uint64(1); i < b.length; i++ {
		if b.bits.Test(uint(i)) {
			out = append(out, int64(i-1))
		}
	}

	if b.Tail() {
		start := int64(b.length) - 1
		if start < 0 {
			start = 0
		}
		for p := start; p < maxPosition; p++ {
			out = append(out, p)
		}
	}

	return out
}

// equalize extends the shorter of a, b with copies of its own tail flag so
// the two bitmaps can be combined bit-for-bit. Extending with zero
// instead of the tail bit would silently break NOT-containing
// expressions over large universes.
func equalize(a, b *Bitmap) (*Bitmap, *Bitmap) {
	switch {
	case a.length == b.length:
		return a, b
	case a.length < b.length:
		return extend(a, b.length), b
	default:
		return a, extend(b, a.length)
	}
}

func extend(bm *Bitmap, newLength uint64) *Bitmap {
	bs := bm.bits.Clone()
	if bm.Tail() {
		for i := bm.length; i < newLength; i++ {
			bs.Set(uint(i))
		}
	}
	return &Bitmap{bits: bs, length: newLength}
}

// And returns the pointwise AND of a and b, tail flag included.
func And(a, b *Bitmap) *Bitmap {
	a, b = equalize(a, b)
	out := bitset.New(uint(a.length))
	for i := uint64(0); i < a.length; i++ {
		if a.bits.Test(uint(i)) && b.bits.Test(uint(i)) {
			out.Set(uint(i))
		}
	}
	return &Bitmap{bits: out, length: a.length}
}

// Or returns the pointwise OR of a and b, tail flag included.
func Or(a, b *Bitmap) *Bitmap {
	a, b = equalize(a, b)
	out := bitset.New(uint(a.length))
	for i := uint64(0); i < a.length; i++ {
		if a.bits.Test(uint(i)) || b.bits.Test(uint(i)) {
			out.Set(uint(i))
		}
	}
	return &Bitmap{bits: out, length: a.length}
}

// Not inverts every bit of a, including its tail flag.
func Not(a *Bitmap) *Bitmap {
	out := bitset.New(uint(a.length))
	for i := uint64(0); i < a.length; i++ {
		if !a.bits.Test(uint(i)) {
			out.Set(uint(i))
		}
	}
	return &Bitmap{bits: out, length: a.length}
}

// Difference returns a \ b, defined as And(a, Not(b)).
func Difference(a, b *Bitmap) *Bitmap {
	return And(a, Not(b))
}
