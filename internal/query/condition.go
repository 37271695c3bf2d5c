// Package query implements the predicate layer: the Condition tree a
// SQL-level parser hands the manager, and Eval, which
// translates that tree into a bitmap.Bitmap by composing per-leaf index
// (or heap-scan) lookups with the tail-flag-aware boolean algebra.
//
// Condition folds the usual query-tree variants — Binary(op, L, R),
// Between(col, a, b), Not(C), BooleanColumn(col) — into one tagged struct
// rather than one node type per variant, following the Value-variant
// pattern internal/types already uses for runtime-typed data: a closed
// Op enum selects which fields are meaningful.
package query

import (
	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/types"
)

// Op is the closed set of predicate and combinator kinds a Condition
// can carry: the comparison and spatial operators, AND/OR/NOT, BETWEEN,
// and the boolean-column shorthand.
type Op int

const (
	And Op = iota
	Or
	Not
	Eq
	Neq
	Lt
	Le
	Gt
	Ge
	Between
	WithinRect
	WithinCircle
	KNN
	BoolColumn
)

// Condition is one node of the predicate tree. Only the fields relevant
// to Op are populated; the rest are zero.
type Condition struct {
	Op Op

	// Left, Right combine two subtrees under And/Or.
	Left, Right *Condition

	// Child is Not's single subtree.
	Child *Condition

	// Column names the referenced column for every leaf predicate.
	Column string

	// Value is the literal compared against Column under
	// Eq/Neq/Lt/Le/Gt/Ge.
	Value types.Value

	// Lo, Hi bound Between, both inclusive.
	Lo, Hi types.Value

	// Rect is WithinRect's rectangle.
	Rect index.MBR

	// Circle is WithinCircle's circle.
	Circle index.Circle

	// KX, KY, K are KNN's query point and requested neighbor count.
	KX, KY float32
	K      int
}

func AndOf(l, r *Condition) *Condition    { return &Condition{Op: And, Left: l, Right: r} }
func OrOf(l, r *Condition) *Condition     { return &Condition{Op: Or, Left: l, Right: r} }
func NotOf(c *Condition) *Condition       { return &Condition{Op: Not, Child: c} }
func EqOf(col string, v types.Value) *Condition  { return &Condition{Op: Eq, Column: col, Value: v} }
func NeqOf(col string, v types.Value) *Condition { return &Condition{Op: Neq, Column: col, Value: v} }
func LtOf(col string, v types.Value) *Condition  { return &Condition{Op: Lt, Column: col, Value: v} }
func LeOf(col string, v types.Value) *Condition  { return &Condition{Op: Le, Column: col, Value: v} }
func GtOf(col string, v types.Value) *Condition  { return &Condition{Op: Gt, Column: col, Value: v} }
func GeOf(col string, v types.Value) *Condition  { return &Condition{Op: Ge, Column: col, Value: v} }

func BetweenOf(col string, lo, hi types.Value) *Condition {
	return &Condition{Op: Between, Column: col, Lo: lo, Hi: hi}
}

func WithinRectOf(col string, rect index.MBR) *Condition {
	return &Condition{Op: WithinRect, Column: col, Rect: rect}
}

func WithinCircleOf(col string, c index.Circle) *Condition {
	return &Condition{Op: WithinCircle, Column: col, Circle: c}
}

func KNNOf(col string, x, y float32, k int) *Condition {
	return &Condition{Op: KNN, Column: col, KX: x, KY: y, K: k}
}

func BoolColumnOf(col string) *Condition { return &Condition{Op: BoolColumn, Column: col} }
