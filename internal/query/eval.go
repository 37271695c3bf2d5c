package query

import (
	"fmt"

	"github.com/iamNilotpal/tabula/internal/bitmap"
	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
)

// IndexResolver is the slice of catalog.Catalog's contract Eval needs: the
// memoized Index handle backing one column, plus the IndexType it was
// opened for (NoIndexType routes the evaluator through a heap scan
// instead — NoIndex itself cannot answer key lookups).
type IndexResolver interface {
	Index(column string) (index.Index, types.IndexType, error)
}

// HeapAccessor is the slice of heap.Heap's contract a full table scan
// needs, for predicates against an unindexed column.
type HeapAccessor interface {
	MaxPosition() (int64, error)
	Read(position int64) (types.Record, bool, error)
}

// Eval translates cond into a Bitmap over record positions. A nil cond
// (no WHERE clause) is the caller's
// responsibility to special-case as bitmap.AllWithTail(); Eval itself
// always expects a non-nil tree.
func Eval(cond *Condition, schema *types.TableSchema, idx IndexResolver, hp HeapAccessor) (*bitmap.Bitmap, error) {
	switch cond.Op {
	case And:
		l, err := Eval(cond.Left, schema, idx, hp)
		if err != nil {
			return nil, err
		}
		r, err := Eval(cond.Right, schema, idx, hp)
		if err != nil {
			return nil, err
		}
		return bitmap.And(l, r), nil

	case Or:
		l, err := Eval(cond.Left, schema, idx, hp)
		if err != nil {
			return nil, err
		}
		r, err := Eval(cond.Right, schema, idx, hp)
		if err != nil {
			return nil, err
		}
		return bitmap.Or(l, r), nil

	case Not:
		c, err := Eval(cond.Child, schema, idx, hp)
		if err != nil {
			return nil, err
		}
		return bitmap.Not(c), nil

	case BoolColumn:
		col, err := resolveColumn(schema, cond.Column, "WHERE")
		if err != nil {
			return nil, err
		}
		if col.Type != types.Bool {
			return nil, typeErr(col, "bool column predicate requires a BOOL column")
		}
		return evalEquality(col, types.BoolValue(true), idx, hp)

	case Eq:
		col, err := resolveColumn(schema, cond.Column, "WHERE")
		if err != nil {
			return nil, err
		}
		return evalEquality(col, cond.Value, idx, hp)

	case Neq:
		col, err := resolveColumn(schema, cond.Column, "WHERE")
		if err != nil {
			return nil, err
		}
		eq, err := evalEquality(col, cond.Value, idx, hp)
		if err != nil {
			return nil, err
		}
		return bitmap.Not(eq), nil

	case Lt:
		return evalStrictBound(schema, idx, hp, cond.Column, cond.Value, true)

	case Gt:
		return evalStrictBound(schema, idx, hp, cond.Column, cond.Value, false)

	case Le:
		return evalInclusiveBound(schema, idx, hp, cond.Column, types.Value{}, false, cond.Value, true)

	case Ge:
		return evalInclusiveBound(schema, idx, hp, cond.Column, cond.Value, true, types.Value{}, false)

	case Between:
		return evalInclusiveBound(schema, idx, hp, cond.Column, cond.Lo, true, cond.Hi, true)

	case WithinRect:
		rt, err := resolveSpatial(schema, idx, cond.Column)
		if err != nil {
			return nil, err
		}
		positions, err := rt.RangeSearchMBR(cond.Rect)
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil

	case WithinCircle:
		rt, err := resolveSpatial(schema, idx, cond.Column)
		if err != nil {
			return nil, err
		}
		positions, err := rt.RangeSearchCircle(cond.Circle)
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil

	case KNN:
		rt, err := resolveSpatial(schema, idx, cond.Column)
		if err != nil {
			return nil, err
		}
		positions, err := rt.KNN(cond.KX, cond.KY, cond.K)
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil

	default:
		return nil, tabulaerrors.NewPredicateError(
			nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unrecognized condition op %d", cond.Op),
		)
	}
}

// evalEquality turns `col = v` into the bitmap of index.Search(v),
// routed through a full heap scan when the column carries no index.
func evalEquality(col resolvedColumn, v types.Value, idx IndexResolver, hp HeapAccessor) (*bitmap.Bitmap, error) {
	if err := types.CheckType(col.Column, v); err != nil {
		return nil, err
	}

	i, itype, err := idx.Index(col.Name)
	if err != nil {
		return nil, err
	}

	if itype == types.NoIndexType {
		positions, err := scanHeap(hp, col, func(rec types.Record) (bool, error) {
			cmp, err := types.Compare(rec[col.schemaIndex], v)
			return cmp == 0, err
		})
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil
	}

	positions, err := i.Search(v)
	if err != nil {
		return nil, err
	}
	return bitmap.FromPositions(positions), nil
}

// evalStrictBound turns `col < v` / `col > v` into a range search to
// the open end minus the equal-key set, or a direct heap scan when
// unindexed.
func evalStrictBound(schema *types.TableSchema, idx IndexResolver, hp HeapAccessor, colName string, v types.Value, less bool) (*bitmap.Bitmap, error) {
	col, err := resolveColumn(schema, colName, "WHERE")
	if err != nil {
		return nil, err
	}
	if err := types.CheckType(col.Column, v); err != nil {
		return nil, err
	}

	i, itype, err := idx.Index(col.Name)
	if err != nil {
		return nil, err
	}

	if itype == types.NoIndexType {
		positions, err := scanHeap(hp, col, func(rec types.Record) (bool, error) {
			cmp, err := types.Compare(rec[col.schemaIndex], v)
			if err != nil {
				return false, err
			}
			if less {
				return cmp < 0, nil
			}
			return cmp > 0, nil
		})
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil
	}

	var rangePositions []int64
	if less {
		rangePositions, err = i.RangeSearch(types.Value{}, false, v, true)
	} else {
		rangePositions, err = i.RangeSearch(v, true, types.Value{}, false)
	}
	if err != nil {
		return nil, err
	}

	eqPositions, err := i.Search(v)
	if err != nil {
		return nil, err
	}
	return bitmap.Difference(bitmap.FromPositions(rangePositions), bitmap.FromPositions(eqPositions)), nil
}

// evalInclusiveBound turns `col <= v` / `col >= v` / BETWEEN into a
// single inclusive range search, or a direct heap scan when unindexed.
// Exactly one of (loOK, hiOK) may be false for LE/GE; both are true for
// BETWEEN.
func evalInclusiveBound(schema *types.TableSchema, idx IndexResolver, hp HeapAccessor, colName string, lo types.Value, loOK bool, hi types.Value, hiOK bool) (*bitmap.Bitmap, error) {
	col, err := resolveColumn(schema, colName, "WHERE")
	if err != nil {
		return nil, err
	}
	if loOK {
		if err := types.CheckType(col.Column, lo); err != nil {
			return nil, err
		}
	}
	if hiOK {
		if err := types.CheckType(col.Column, hi); err != nil {
			return nil, err
		}
	}

	i, itype, err := idx.Index(col.Name)
	if err != nil {
		return nil, err
	}

	if itype == types.NoIndexType {
		positions, err := scanHeap(hp, col, func(rec types.Record) (bool, error) {
			val := rec[col.schemaIndex]
			if loOK {
				cmp, err := types.Compare(val, lo)
				if err != nil {
					return false, err
				}
				if cmp < 0 {
					return false, nil
				}
			}
			if hiOK {
				cmp, err := types.Compare(val, hi)
				if err != nil {
					return false, err
				}
				if cmp > 0 {
					return false, nil
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		return bitmap.FromPositions(positions), nil
	}

	positions, err := i.RangeSearch(lo, loOK, hi, hiOK)
	if err != nil {
		return nil, err
	}
	return bitmap.FromPositions(positions), nil
}

// resolveSpatial resolves colName to its column and RTree handle;
// WITHIN/KNN predicates require an RTREE-indexed POINT column.
func resolveSpatial(schema *types.TableSchema, idx IndexResolver, colName string) (index.Spatial, error) {
	col, err := resolveColumn(schema, colName, "WHERE")
	if err != nil {
		return nil, err
	}
	if col.Type != types.Point {
		return nil, typeErr(col, "spatial predicate requires a POINT column")
	}

	i, itype, err := idx.Index(col.Name)
	if err != nil {
		return nil, err
	}
	if itype != types.RTree {
		return nil, tabulaerrors.NewCapabilityError(
			nil, tabulaerrors.ErrorCodeUnsupportedOperation,
			fmt.Sprintf("column %q is not indexed by RTREE", col.Name),
		).WithIndexType(itype.String()).WithOperation("spatial_search")
	}

	rt, ok := i.(index.Spatial)
	if !ok {
		return nil, tabulaerrors.NewCapabilityError(
			nil, tabulaerrors.ErrorCodeUnsupportedOperation,
			fmt.Sprintf("column %q's index does not support spatial queries", col.Name),
		).WithOperation("spatial_search")
	}
	return rt, nil
}

// resolveColumn looks up name in schema, wrapping the schemaIndex
// columns need for heap-scan comparisons.
func resolveColumn(schema *types.TableSchema, name, clause string) (resolvedColumn, error) {
	i := schema.ColumnIndex(name)
	if i < 0 {
		return resolvedColumn{}, tabulaerrors.NewPredicateError(
			nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unknown column %q", name),
		).WithColumn(name).WithClause(clause)
	}
	return resolvedColumn{Column: schema.Columns[i], schemaIndex: i}, nil
}

// resolvedColumn pairs a Column with its physical offset in the record,
// so heap-scan predicates don't re-resolve the name on every row.
type resolvedColumn struct {
	types.Column
	schemaIndex int
}

func typeErr(col resolvedColumn, msg string) error {
	return tabulaerrors.NewTypeError(nil, tabulaerrors.ErrorCodeTypeMismatch, msg).WithColumn(col.Name)
}

// scanHeap walks every live record in hp, applying match; it is the
// evaluator's substitute for key lookups on unindexed columns.
func scanHeap(hp HeapAccessor, col resolvedColumn, match func(types.Record) (bool, error)) ([]int64, error) {
	maxPos, err := hp.MaxPosition()
	if err != nil {
		return nil, err
	}

	var positions []int64
	for p := int64(0); p < maxPos; p++ {
		record, live, err := hp.Read(p)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		ok, err := match(record)
		if err != nil {
			return nil, err
		}
		if ok {
			positions = append(positions, p)
		}
	}
	return positions, nil
}
