package catalog

import (
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/iamNilotpal/tabula/pkg/options"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	opts := options.NewDefaultOptions()
	return New(Config{TablesRoot: t.TempDir(), IndexOptions: opts.Index})
}

func peopleSchema() *types.TableSchema {
	return &types.TableSchema{
		TableName: "people",
		Columns: []types.Column{
			{Name: "id", Type: types.Int, IsPrimary: true, IndexType: types.BTree},
			{Name: "name", Type: types.Varchar, VarcharLength: 16},
			{Name: "age", Type: types.Int},
		},
	}
}

func TestCreateTableThenExists(t *testing.T) {
	c := testCatalog(t)
	require.False(t, c.TableExists("people"))

	require.NoError(t, c.CreateTable(peopleSchema()))
	require.True(t, c.TableExists("people"))

	require.FileExists(t, types.MetadataPath(c.tablesRoot, "people"))
	require.FileExists(t, types.HeapPath(c.tablesRoot, "people"))
}

func TestCreateTableDuplicateRejected(t *testing.T) {
	c := testCatalog(t)
	require.NoError(t, c.CreateTable(peopleSchema()))

	err := c.CreateTable(peopleSchema())
	require.Error(t, err)
	require.Equal(t, tabulaerrors.ErrorCodeTableExists, tabulaerrors.GetErrorCode(err))
}

func TestCreateTableInvalidSchemaRejected(t *testing.T) {
	c := testCatalog(t)
	bad := &types.TableSchema{TableName: "nopk", Columns: []types.Column{{Name: "x", Type: types.Int}}}
	err := c.CreateTable(bad)
	require.Error(t, err)
}

func TestLoadSchemaRoundTrip(t *testing.T) {
	c := testCatalog(t)
	require.NoError(t, c.CreateTable(peopleSchema()))

	schema, err := c.LoadSchema("people")
	require.NoError(t, err)
	require.Equal(t, "people", schema.TableName)
	require.Len(t, schema.Columns, 3)
	require.Equal(t, types.BTree, schema.Columns[0].IndexType)
}

func TestLoadSchemaMissingTable(t *testing.T) {
	c := testCatalog(t)
	_, err := c.LoadSchema("ghost")
	require.Error(t, err)
	require.Equal(t, tabulaerrors.ErrorCodeTableMissing, tabulaerrors.GetErrorCode(err))
}

func TestIndexIsMemoized(t *testing.T) {
	c := testCatalog(t)
	schema := peopleSchema()
	require.NoError(t, c.CreateTable(schema))

	idx1, err := c.Index("people", schema, schema.Columns[0])
	require.NoError(t, err)
	idx2, err := c.Index("people", schema, schema.Columns[0])
	require.NoError(t, err)
	require.Same(t, idx1, idx2)
}

func TestDropTableRemovesFilesAndCache(t *testing.T) {
	c := testCatalog(t)
	schema := peopleSchema()
	require.NoError(t, c.CreateTable(schema))

	_, err := c.Index("people", schema, schema.Columns[0])
	require.NoError(t, err)

	require.NoError(t, c.DropTable("people"))
	require.False(t, c.TableExists("people"))
	require.NoDirExists(t, types.TableDir(c.tablesRoot, "people"))

	c.mu.RLock()
	_, cached := c.indexes[cacheKey("people", "id")]
	c.mu.RUnlock()
	require.False(t, cached)
}

func TestDropTableMissing(t *testing.T) {
	c := testCatalog(t)
	err := c.DropTable("ghost")
	require.Error(t, err)
	require.Equal(t, tabulaerrors.ErrorCodeTableMissing, tabulaerrors.GetErrorCode(err))
}

func TestCreateIndexThenEvict(t *testing.T) {
	c := testCatalog(t)
	schema := peopleSchema()
	require.NoError(t, c.CreateTable(schema))

	schema.Columns[2].IndexType = types.AVL
	schema.Columns[2].IndexName = "age_idx"
	col := schema.Columns[2]

	idx, err := c.CreateIndex("people", schema, col)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(0, types.IntValue(30)))

	positions, err := idx.Search(types.IntValue(30))
	require.NoError(t, err)
	require.Equal(t, []int64{0}, positions)

	require.NoError(t, c.EvictIndex("people", schema, col))
	require.NoFileExists(t, types.IndexPath(c.tablesRoot, "people", "age", types.AVL))

	recreated, err := c.CreateIndex("people", schema, col)
	require.NoError(t, err)
	empty, err := recreated.GetAll()
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestOpenHeapPath(t *testing.T) {
	c := testCatalog(t)
	schema := peopleSchema()
	require.NoError(t, c.CreateTable(schema))

	h, err := c.OpenHeap("people", schema)
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(types.HeapPath(c.tablesRoot, "people")), filepath.Clean(h.Path()))
}

func TestResetClearsAllCachedHandles(t *testing.T) {
	c := testCatalog(t)
	schema := peopleSchema()
	require.NoError(t, c.CreateTable(schema))

	_, err := c.Index("people", schema, schema.Columns[0])
	require.NoError(t, err)

	c.Reset()
	c.mu.RLock()
	n := len(c.indexes)
	c.mu.RUnlock()
	require.Zero(t, n)
}
