package tabula

import (
	"fmt"
	"math/rand"
	"testing"

	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/options"
	"github.com/stretchr/testify/require"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance("tabula-test", options.WithTablesRoot(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

func idNameSchema(table string) *TableSchema {
	return &TableSchema{
		TableName: table,
		Columns: []Column{
			{Name: "id", Type: Int, IsPrimary: true, IndexType: BTree},
			{Name: "name", Type: Varchar, VarcharLength: 10},
		},
	}
}

func TestSelectOrderedByPrimaryKey(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.CreateTable(idNameSchema("p")))

	for _, row := range []struct {
		id   int32
		name string
	}{{3, "c"}, {1, "a"}, {4, "d"}, {2, "b"}} {
		_, err := inst.Insert("p", Record{IntValue(row.id), VarcharValue(row.name)}, nil)
		require.NoError(t, err)
	}

	res, err := inst.Select(SelectSchema{Table: "p", OrderBy: "id"})
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Records, 4)
	for i, want := range []struct {
		id   int32
		name string
	}{{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}} {
		require.Equal(t, want.id, res.Records[i][0].Int)
		require.Equal(t, want.name, res.Records[i][1].Str)
	}
}

func TestSelectBetweenOnPrimaryKey(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.CreateTable(idNameSchema("p")))

	for _, row := range []struct {
		id   int32
		name string
	}{{3, "c"}, {1, "a"}, {4, "d"}, {2, "b"}} {
		_, err := inst.Insert("p", Record{IntValue(row.id), VarcharValue(row.name)}, nil)
		require.NoError(t, err)
	}

	res, err := inst.Select(SelectSchema{
		Table:     "p",
		Columns:   []string{"id"},
		Condition: Between("id", IntValue(2), IntValue(3)),
		OrderBy:   "id",
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Equal(t, int32(2), res.Records[0][0].Int)
	require.Equal(t, int32(3), res.Records[1][0].Int)
}

func TestMixedIndexFamiliesRoundTrip(t *testing.T) {
	inst := newTestInstance(t)

	schema := &TableSchema{
		TableName: "mixed",
		Columns: []Column{
			{Name: "id", Type: Int, IsPrimary: true}, // promoted to HASH
			{Name: "bt_int", Type: Int, IndexType: BTree},
			{Name: "bt_vc", Type: Varchar, VarcharLength: 10, IndexType: BTree},
			{Name: "avl_int", Type: Int, IndexType: AVL},
			{Name: "avl_f", Type: Float, IndexType: AVL},
			{Name: "hash_vc", Type: Varchar, VarcharLength: 10, IndexType: Hash},
			{Name: "hash_f", Type: Float, IndexType: Hash},
			{Name: "isam_int", Type: Int, IndexType: ISAM},
			{Name: "isam_f", Type: Float, IndexType: ISAM},
			{Name: "isam_vc", Type: Varchar, VarcharLength: 10, IndexType: ISAM},
			{Name: "coord", Type: Point, IndexType: RTree},
		},
	}
	require.NoError(t, inst.CreateTable(schema))

	rnd := rand.New(rand.NewSource(1))
	randomString := func() string { return fmt.Sprintf("s%08d", rnd.Intn(100000000)) }

	var insertedIDs []int32
	for i := 0; i < 100; i++ {
		id := int32(i)
		insertedIDs = append(insertedIDs, id)
		_, err := inst.Insert("mixed", Record{
			IntValue(id),
			IntValue(rnd.Int31n(1000)),
			VarcharValue(randomString()),
			IntValue(rnd.Int31n(1000)),
			FloatValue(rnd.Float32() * 100),
			VarcharValue(randomString()),
			FloatValue(rnd.Float32() * 100),
			IntValue(rnd.Int31n(1000)),
			FloatValue(rnd.Float32() * 100),
			VarcharValue(randomString()),
			PointValue(rnd.Float32()*50, rnd.Float32()*50),
		}, nil)
		require.NoError(t, err)
	}

	res, err := inst.Select(SelectSchema{Table: "mixed"})
	require.NoError(t, err)
	require.Len(t, res.Records, 100)
	for i, rec := range res.Records {
		require.Equal(t, insertedIDs[i], rec[0].Int, "row %d out of insertion order", i)
	}
}

func TestDeletedSlotIsReused(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.CreateTable(idNameSchema("p")))

	for _, row := range []struct {
		id   int32
		name string
	}{{5, "x"}, {6, "y"}, {7, "z"}} {
		_, err := inst.Insert("p", Record{IntValue(row.id), VarcharValue(row.name)}, nil)
		require.NoError(t, err)
	}

	n, err := inst.Delete(DeleteSchema{Table: "p", Condition: Eq("id", IntValue(6))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pos, err := inst.Insert("p", Record{IntValue(8), VarcharValue("w")}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), pos, "new row should fill the slot freed by id 6")

	res, err := inst.Select(SelectSchema{Table: "p", OrderBy: "id"})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	for i, want := range []int32{5, 7, 8} {
		require.Equal(t, want, res.Records[i][0].Int)
	}
}

func TestCreateHashIndexLifecycle(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.CreateTable(idNameSchema("p")))

	for i := int32(0); i < 1000; i++ {
		name := fmt.Sprintf("n%03d", i%500)
		_, err := inst.Insert("p", Record{IntValue(i), VarcharValue(name)}, nil)
		require.NoError(t, err)
	}

	require.NoError(t, inst.CreateIndex("p", "name_idx", []string{"name"}, Hash))

	res, err := inst.Select(SelectSchema{Table: "p", Condition: Eq("name", VarcharValue("n042"))})
	require.NoError(t, err)
	require.Len(t, res.Records, 2) // i = 42 and i = 542

	_, err = inst.Select(SelectSchema{Table: "p", Condition: Gt("name", VarcharValue("n042"))})
	require.Error(t, err)
	require.True(t, tabulaerrors.IsCapabilityError(err))

	require.NoError(t, inst.DropIndex("p", "name_idx"))

	// Back on NONE, equality routes through a heap scan.
	res, err = inst.Select(SelectSchema{Table: "p", Condition: Eq("name", VarcharValue("n042"))})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
}

func TestSpatialWithinRect(t *testing.T) {
	inst := newTestInstance(t)

	schema := &TableSchema{
		TableName: "places",
		Columns: []Column{
			{Name: "id", Type: Int, IsPrimary: true},
			{Name: "coord", Type: Point, IndexType: RTree},
		},
	}
	require.NoError(t, inst.CreateTable(schema))

	points := []struct {
		id   int32
		x, y float32
	}{{1, 10, 20}, {2, 5.5, 5.5}, {3, 15, 15}, {4, 12, 22}}
	for _, p := range points {
		_, err := inst.Insert("places", Record{IntValue(p.id), PointValue(p.x, p.y)}, nil)
		require.NoError(t, err)
	}

	res, err := inst.Select(SelectSchema{
		Table:     "places",
		Condition: WithinRect("coord", MBROf(9, 19, 13, 23)),
		OrderBy:   "id",
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Equal(t, int32(1), res.Records[0][0].Int)
	require.Equal(t, int32(4), res.Records[1][0].Int)
}

func TestDropTableTwiceIsAnError(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.CreateTable(idNameSchema("p")))

	require.NoError(t, inst.DropTable("p"))
	err := inst.DropTable("p")
	require.Error(t, err)
	require.Equal(t, tabulaerrors.ErrorCodeTableMissing, tabulaerrors.GetErrorCode(err))

	// create/drop/create restores an empty table
	require.NoError(t, inst.CreateTable(idNameSchema("p")))
	res, err := inst.Select(SelectSchema{Table: "p"})
	require.NoError(t, err)
	require.Empty(t, res.Records)
}

func TestPointColumnRejectsNonSpatialIndex(t *testing.T) {
	inst := newTestInstance(t)

	bad := &TableSchema{
		TableName: "bad",
		Columns: []Column{
			{Name: "id", Type: Int, IsPrimary: true},
			{Name: "coord", Type: Point, IndexType: BTree},
		},
	}
	err := inst.CreateTable(bad)
	require.Error(t, err)
	require.True(t, tabulaerrors.IsTypeError(err))
}
