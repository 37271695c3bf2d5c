// Package index implements the five single-column access paths —
// B+Tree, AVL, ISAM, extendible hash, and R-Tree — plus the NoIndex
// fallback, all behind one common Index interface so the catalog and
// query evaluator never special-case a concrete structure.
package index

import (
	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
)

// Index is the contract every single-column access path satisfies.
type Index interface {
	// Insert adds one (position, key) mapping. Duplicate keys are
	// allowed and preserved.
	Insert(position int64, key types.Value) error

	// Delete removes one mapping for key, reporting whether anything
	// was removed.
	Delete(key types.Value) (bool, error)

	// Search returns every position stored under key.
	Search(key types.Value) ([]int64, error)

	// RangeSearch returns every position whose key lies in [lo, hi].
	// Either bound may be the zero Value with ok=false, meaning open.
	RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error)

	// GetAll returns every indexed position.
	GetAll() ([]int64, error)

	// Clear removes the index's backing file(s).
	Clear() error

	// Type reports the concrete index family, for error messages and
	// catalog bookkeeping.
	Type() types.IndexType
}

// Spatial is the extension interface R-Tree indexes additionally
// satisfy. Non-spatial indexes do not implement it; callers type-assert.
type Spatial interface {
	Index

	// RangeSearchMBR returns every point inside the rectangle.
	RangeSearchMBR(box MBR) ([]int64, error)

	// RangeSearchCircle returns every point inside the circle.
	RangeSearchCircle(c Circle) ([]int64, error)

	// KNN returns the k positions whose points are nearest (x, y).
	KNN(x, y float32, k int) ([]int64, error)
}

// MBR is a minimum bounding rectangle, (xmin, ymin, xmax, ymax).
type MBR struct {
	XMin, YMin, XMax, YMax float32
}

// Contains reports whether (x, y) lies within the rectangle, inclusive.
func (m MBR) Contains(x, y float32) bool {
	return x >= m.XMin && x <= m.XMax && y >= m.YMin && y <= m.YMax
}

// Intersects reports whether m and other share any point.
func (m MBR) Intersects(other MBR) bool {
	return m.XMin <= other.XMax && m.XMax >= other.XMin &&
		m.YMin <= other.YMax && m.YMax >= other.YMin
}

// Union returns the smallest MBR containing both m and other.
func (m MBR) Union(other MBR) MBR {
	return MBR{
		XMin: min32(m.XMin, other.XMin),
		YMin: min32(m.YMin, other.YMin),
		XMax: max32(m.XMax, other.XMax),
		YMax: max32(m.YMax, other.YMax),
	}
}

// Area returns the rectangle's area.
func (m MBR) Area() float32 {
	return (m.XMax - m.XMin) * (m.YMax - m.YMin)
}

// Circle is (cx, cy, r); contains (x, y) iff (x-cx)^2 + (y-cy)^2 <= r^2.
type Circle struct {
	CX, CY, R float32
}

// MBR returns the circle's bounding rectangle.
func (c Circle) MBR() MBR {
	return MBR{XMin: c.CX - c.R, YMin: c.CY - c.R, XMax: c.CX + c.R, YMax: c.CY + c.R}
}

// Contains reports whether (x, y) lies within the circle, inclusive.
func (c Circle) Contains(x, y float32) bool {
	dx, dy := x-c.CX, y-c.CY
	return dx*dx+dy*dy <= c.R*c.R
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// errUnsupported builds the CapabilityError every non-capable index
// raises for an operation it cannot serve, like a range search against
// HASH or a spatial query against anything but RTREE.
func errUnsupported(indexType types.IndexType, operation string) error {
	return tabulaerrors.NewCapabilityError(
		nil, tabulaerrors.ErrorCodeUnsupportedOperation,
		operation+" is not supported by "+indexType.String()+" indexes",
	).WithIndexType(indexType.String()).WithOperation(operation)
}
