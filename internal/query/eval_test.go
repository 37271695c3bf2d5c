package query

import (
	"testing"

	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeResolver is a minimal IndexResolver/HeapAccessor double: records
// live in a slice (position == slice index, no deletions), and each
// column either has a real in-memory Index or routes to NoIndexType.
type fakeResolver struct {
	schema  *types.TableSchema
	records []types.Record
	idxs    map[string]index.Index
}

func (f *fakeResolver) Index(column string) (index.Index, types.IndexType, error) {
	if idx, ok := f.idxs[column]; ok {
		ci := f.schema.ColumnIndex(column)
		return idx, f.schema.Columns[ci].IndexType, nil
	}
	return nil, types.NoIndexType, nil
}

func (f *fakeResolver) MaxPosition() (int64, error) { return int64(len(f.records)), nil }

func (f *fakeResolver) Read(position int64) (types.Record, bool, error) {
	if position < 0 || position >= int64(len(f.records)) {
		return nil, false, nil
	}
	return f.records[position], true, nil
}

func agesSchema() *types.TableSchema {
	return &types.TableSchema{
		TableName: "people",
		Columns: []types.Column{
			{Name: "id", Type: types.Int, IsPrimary: true, IndexType: types.BTree},
			{Name: "age", Type: types.Int},
			{Name: "active", Type: types.Bool},
		},
	}
}

func newFakeResolver(t *testing.T) *fakeResolver {
	t.Helper()
	schema := agesSchema()

	idx, err := index.NewAVL(index.AVLConfig{Path: t.TempDir() + "/id.dat", Column: schema.Columns[0]})
	require.NoError(t, err)

	records := []types.Record{
		{types.IntValue(1), types.IntValue(20), types.BoolValue(true)},
		{types.IntValue(2), types.IntValue(30), types.BoolValue(false)},
		{types.IntValue(3), types.IntValue(40), types.BoolValue(true)},
	}
	for i, rec := range records {
		require.NoError(t, idx.Insert(int64(i), rec[0]))
	}

	return &fakeResolver{
		schema:  schema,
		records: records,
		idxs:    map[string]index.Index{"id": idx},
	}
}

func evalToPositions(t *testing.T, cond *Condition, r *fakeResolver) []int64 {
	t.Helper()
	bm, err := Eval(cond, r.schema, r, r)
	require.NoError(t, err)
	return bm.ToList(int64(len(r.records)))
}

func TestEvalEqualityIndexed(t *testing.T) {
	r := newFakeResolver(t)
	got := evalToPositions(t, EqOf("id", types.IntValue(2)), r)
	require.Equal(t, []int64{1}, got)
}

func TestEvalEqualityUnindexedFallsBackToHeapScan(t *testing.T) {
	r := newFakeResolver(t)
	got := evalToPositions(t, EqOf("age", types.IntValue(40)), r)
	require.Equal(t, []int64{2}, got)
}

func TestEvalBoolColumn(t *testing.T) {
	r := newFakeResolver(t)
	got := evalToPositions(t, BoolColumnOf("active"), r)
	require.Equal(t, []int64{0, 2}, got)
}

func TestEvalNeq(t *testing.T) {
	r := newFakeResolver(t)
	got := evalToPositions(t, NeqOf("age", types.IntValue(30)), r)
	require.Equal(t, []int64{0, 2}, got)
}

func TestEvalStrictBounds(t *testing.T) {
	r := newFakeResolver(t)

	lt := evalToPositions(t, LtOf("age", types.IntValue(30)), r)
	require.Equal(t, []int64{0}, lt)

	gt := evalToPositions(t, GtOf("age", types.IntValue(30)), r)
	require.Equal(t, []int64{2}, gt)
}

func TestEvalInclusiveBoundsAndBetween(t *testing.T) {
	r := newFakeResolver(t)

	le := evalToPositions(t, LeOf("age", types.IntValue(30)), r)
	require.Equal(t, []int64{0, 1}, le)

	ge := evalToPositions(t, GeOf("age", types.IntValue(30)), r)
	require.Equal(t, []int64{1, 2}, ge)

	between := evalToPositions(t, BetweenOf("age", types.IntValue(20), types.IntValue(30)), r)
	require.Equal(t, []int64{0, 1}, between)
}

func TestEvalAndOr(t *testing.T) {
	r := newFakeResolver(t)

	and := evalToPositions(t, AndOf(GeOf("age", types.IntValue(20)), BoolColumnOf("active")), r)
	require.Equal(t, []int64{0, 2}, and)

	or := evalToPositions(t, OrOf(EqOf("age", types.IntValue(20)), EqOf("age", types.IntValue(40))), r)
	require.Equal(t, []int64{0, 2}, or)
}

func TestEvalNot(t *testing.T) {
	r := newFakeResolver(t)
	got := evalToPositions(t, NotOf(BoolColumnOf("active")), r)
	require.Equal(t, []int64{1}, got)
}

func TestEvalUnknownColumnIsPredicateError(t *testing.T) {
	r := newFakeResolver(t)
	_, err := Eval(EqOf("missing", types.IntValue(1)), r.schema, r, r)
	require.Error(t, err)
}

func TestEvalSpatialRequiresRTreeIndex(t *testing.T) {
	r := newFakeResolver(t)
	_, err := Eval(WithinRectOf("age", index.MBR{XMax: 1, YMax: 1}), r.schema, r, r)
	require.Error(t, err)
}
