// Package types implements the data model shared by every other tabula
// package: the closed family of column data types, the tagged Value
// variant that carries one runtime value of any of them, and the
// TableSchema definition with its validation rules.
package types

import (
	"fmt"

	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
)

// DataType is the closed set of column types a tabula table can declare.
type DataType int

const (
	Int DataType = iota
	Float
	Varchar
	Bool
	Date
	Point
)

func (d DataType) String() string {
	switch d {
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case Varchar:
		return "VARCHAR"
	case Bool:
		return "BOOL"
	case Date:
		return "DATE"
	case Point:
		return "POINT"
	default:
		return "UNKNOWN"
	}
}

// IndexType is the closed family of single-column index structures a
// column may be backed by.
type IndexType int

const (
	NoIndexType IndexType = iota
	AVL
	ISAM
	Hash
	BTree
	RTree
)

func (t IndexType) String() string {
	switch t {
	case NoIndexType:
		return "NONE"
	case AVL:
		return "AVL"
	case ISAM:
		return "ISAM"
	case Hash:
		return "HASH"
	case BTree:
		return "BTREE"
	case RTree:
		return "RTREE"
	default:
		return "UNKNOWN"
	}
}

// Column describes one field of a table's schema.
type Column struct {
	Name          string
	Type          DataType
	IsPrimary     bool
	IndexType     IndexType
	VarcharLength int    // required iff Type == Varchar
	IndexName     string // name CREATE INDEX registered this column's index under; empty when IndexType == NoIndexType
}

// PointCoord is a 2-D coordinate, the only value POINT columns (and
// RTree queries) carry.
type PointCoord struct {
	X, Y float32
}

// Value is a tagged variant holding exactly one runtime value, matching
// one of the six DataType kinds. Only the field matching Type is
// meaningful; the zero Value is Int(0).
type Value struct {
	Type  DataType
	Int   int32
	Float float32
	Str   string
	Bool  bool
	Point PointCoord
}

func IntValue(v int32) Value     { return Value{Type: Int, Int: v} }
func FloatValue(v float32) Value { return Value{Type: Float, Float: v} }
func VarcharValue(v string) Value { return Value{Type: Varchar, Str: v} }
func BoolValue(v bool) Value     { return Value{Type: Bool, Bool: v} }
func DateValue(v string) Value   { return Value{Type: Date, Str: v} }
func PointValue(x, y float32) Value { return Value{Type: Point, Point: PointCoord{X: x, Y: y}} }

// Record is a tuple of values in the schema's physical column order.
type Record []Value

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// CheckType reports whether v's tag matches col's declared DataType,
// returning a *errors.TypeError otherwise.
func CheckType(col Column, v Value) error {
	if v.Type != col.Type {
		return tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch,
			fmt.Sprintf("column %q expects %s, got %s", col.Name, col.Type, v.Type),
		).WithColumn(col.Name).WithWantType(col.Type.String()).WithGotValue(v)
	}
	return nil
}

// Compare orders two values of the same DataType: INT/FLOAT/BOOL use
// natural numeric order, VARCHAR compares
// lexicographically on the unpadded string, DATE compares as text. POINT
// has no total order and is rejected.
func Compare(a, b Value) (int, error) {
	if a.Type != b.Type {
		return 0, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch,
			fmt.Sprintf("cannot compare %s with %s", a.Type, b.Type),
		)
	}

	switch a.Type {
	case Int:
		switch {
		case a.Int < b.Int:
			return -1, nil
		case a.Int > b.Int:
			return 1, nil
		default:
			return 0, nil
		}
	case Float:
		switch {
		case a.Float < b.Float:
			return -1, nil
		case a.Float > b.Float:
			return 1, nil
		default:
			return 0, nil
		}
	case Bool:
		if a.Bool == b.Bool {
			return 0, nil
		}
		if !a.Bool && b.Bool {
			return -1, nil
		}
		return 1, nil
	case Varchar, Date:
		switch {
		case a.Str < b.Str:
			return -1, nil
		case a.Str > b.Str:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, tabulaerrors.NewCapabilityError(
			nil, tabulaerrors.ErrorCodeUnsupportedOperation,
			fmt.Sprintf("%s values have no total order", a.Type),
		).WithOperation("compare")
	}
}
