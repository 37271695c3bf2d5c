// Package catalog implements the per-table storage layout: one
// directory per table holding a serialized TableSchema ("metadata"), the
// heap file, and one file (or file family) per indexed column, plus a
// memoized index-handle cache scoped to the owning manager instance
// rather than a process-global singleton.
//
// Catalog itself never interprets a Condition or runs a query — it only
// knows how to create, locate, and tear down the files a table is made
// of, and how to open the Index implementation backing one column.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/tabula/internal/heap"
	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
	"github.com/iamNilotpal/tabula/pkg/options"
)

// Catalog owns table directory layout and memoizes opened index handles
// by "table.column" for the process's lifetime.
type Catalog struct {
	tablesRoot string
	indexOpts  options.IndexOptions
	log        *zap.SugaredLogger

	mu      sync.RWMutex
	indexes map[string]index.Index
}

// Config groups Catalog's construction parameters.
type Config struct {
	TablesRoot   string
	IndexOptions options.IndexOptions
	Logger       *zap.SugaredLogger
}

// New builds a Catalog rooted at cfg.TablesRoot. It does not touch disk;
// table directories are created lazily by CreateTable.
func New(cfg Config) *Catalog {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{
		tablesRoot: cfg.TablesRoot,
		indexOpts:  cfg.IndexOptions,
		log:        log,
		indexes:    make(map[string]index.Index),
	}
}

func cacheKey(table, column string) string { return table + "." + column }

// TableExists reports whether table has a persisted schema.
func (c *Catalog) TableExists(table string) bool {
	ok, err := filesys.Exists(types.MetadataPath(c.tablesRoot, table))
	return err == nil && ok
}

// CreateTable validates schema, creates the table directory, persists
// the schema, creates an empty heap file, and creates one empty index
// file per column.
func (c *Catalog) CreateTable(schema *types.TableSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	if c.TableExists(schema.TableName) {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeTableExists, fmt.Sprintf("table %q already exists", schema.TableName),
		).WithTable(schema.TableName)
	}

	dir := types.TableDir(c.tablesRoot, schema.TableName)
	if err := filesys.CreateDir(dir, 0755, false); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "create_table_dir", dir)
	}

	if err := c.SaveSchema(schema); err != nil {
		return err
	}

	if _, err := heap.Create(heap.Config{
		Path:   types.HeapPath(c.tablesRoot, schema.TableName),
		Schema: schema,
		Logger: c.log,
	}); err != nil {
		return err
	}

	for _, col := range schema.Columns {
		if _, err := c.newIndex(schema.TableName, schema, col); err != nil {
			return err
		}
	}

	c.log.Infow("table created", "table", schema.TableName, "columns", len(schema.Columns))
	return nil
}

// DropTable removes a table's directory and everything under it,
// evicting its memoized index handles first. Files (heap, every index
// file, metadata) are removed one
// by one with failures aggregated via multierr, so a permission error on
// one index file doesn't hide a similar error on another before the
// directory itself is removed.
func (c *Catalog) DropTable(table string) error {
	if !c.TableExists(table) {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeTableMissing, fmt.Sprintf("table %q does not exist", table),
		).WithTable(table)
	}

	c.evictTable(table)

	dir := types.TableDir(c.tablesRoot, table)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "drop_table", dir)
	}

	var combined error
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			combined = multierr.Append(combined, tabulaerrors.ClassifyFileIOError(err, "drop_table", path))
		}
	}
	if combined != nil {
		return combined
	}

	if err := os.Remove(dir); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "drop_table", dir)
	}
	c.log.Infow("table dropped", "table", table)
	return nil
}

// LoadSchema reads and decodes a table's persisted TableSchema.
func (c *Catalog) LoadSchema(table string) (*types.TableSchema, error) {
	path := types.MetadataPath(c.tablesRoot, table)
	data, err := filesys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tabulaerrors.NewSchemaError(
				err, tabulaerrors.ErrorCodeTableMissing, fmt.Sprintf("table %q does not exist", table),
			).WithTable(table)
		}
		return nil, tabulaerrors.ClassifyFileIOError(err, "load_schema", path)
	}

	var schema types.TableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, tabulaerrors.NewSchemaError(
			err, tabulaerrors.ErrorCodeIO, "malformed schema metadata",
		).WithTable(table).WithDetail("path", path)
	}
	return &schema, nil
}

// SaveSchema serializes schema and rewrites it atomically, so a schema
// mutation never leaves a half-written metadata file.
func (c *Catalog) SaveSchema(schema *types.TableSchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return tabulaerrors.NewSchemaError(err, tabulaerrors.ErrorCodeIO, "failed to encode schema").
			WithTable(schema.TableName)
	}

	path := types.MetadataPath(c.tablesRoot, schema.TableName)
	if err := filesys.AtomicWriteFile(path, 0644, data); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "save_schema", path)
	}
	return nil
}

// OpenHeap opens (does not create) the heap file backing table.
func (c *Catalog) OpenHeap(table string, schema *types.TableSchema) (*heap.Heap, error) {
	return heap.Open(heap.Config{
		Path:   types.HeapPath(c.tablesRoot, table),
		Schema: schema,
		Logger: c.log,
	})
}

// Reset discards every memoized index handle without touching any
// backing file — used by Manager.Close. Indexes hold only a filename,
// never a kept-open handle, so "closing" one is just dropping the
// cached reference.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = make(map[string]index.Index)
}

// Index returns the memoized Index handle for (table, column), opening
// and caching it on first use.
func (c *Catalog) Index(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	key := cacheKey(table, column.Name)

	c.mu.RLock()
	if idx, ok := c.indexes[key]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.indexes[key]; ok {
		return idx, nil
	}

	idx, err := c.openIndex(table, schema, column)
	if err != nil {
		return nil, err
	}
	c.indexes[key] = idx
	return idx, nil
}

// CreateIndex opens a brand-new, empty index file for column under its
// (already-updated) IndexType and memoizes it, replacing any previously
// cached handle — used by the manager's create_index operation before it
// backfills from the heap.
func (c *Catalog) CreateIndex(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	idx, err := c.newIndex(table, schema, column)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.indexes[cacheKey(table, column.Name)] = idx
	c.mu.Unlock()
	return idx, nil
}

// EvictIndex drops column's memoized handle and clears its backing
// file(s). When no handle is cached, one is opened for column's current
// IndexType so its files can be cleared.
func (c *Catalog) EvictIndex(table string, schema *types.TableSchema, column types.Column) error {
	key := cacheKey(table, column.Name)

	c.mu.Lock()
	idx, cached := c.indexes[key]
	delete(c.indexes, key)
	c.mu.Unlock()

	if !cached {
		var err error
		idx, err = c.openIndex(table, schema, column)
		if err != nil {
			return err
		}
	}
	return idx.Clear()
}

// evictTable drops every memoized handle belonging to table, without
// touching their backing files (DropTable removes the whole directory).
func (c *Catalog) evictTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := table + "."
	for key := range c.indexes {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.indexes, key)
		}
	}
}

// heapReaderAdapter narrows *heap.Heap to the single method NoIndex needs,
// matching index.HeapReader.
type heapReaderAdapter struct{ h *heap.Heap }

func (a heapReaderAdapter) Read(position int64) (types.Record, bool, error) { return a.h.Read(position) }

func (c *Catalog) openIndex(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	switch column.IndexType {
	case types.BTree:
		return index.OpenBTree(index.BTreeConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.BTree), Column: column,
			BranchingFactor: c.indexOpts.BTreeBranchingFactor,
		})
	case types.AVL:
		return index.OpenAVL(index.AVLConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.AVL), Column: column,
		})
	case types.ISAM:
		return index.OpenISAM(index.ISAMConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.ISAM), Column: column,
			LeafFactor: c.indexOpts.ISAMLeafFactor, IndexFactor: c.indexOpts.ISAMIndexFactor,
		})
	case types.Hash:
		return index.OpenHash(c.hashConfig(table, column))
	case types.RTree:
		return index.OpenRTree(index.RTreeConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.RTree), Column: column,
			Fanout: c.indexOpts.RTreeFanout,
		})
	default:
		return c.openNoIndex(table, schema, column)
	}
}

func (c *Catalog) newIndex(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	switch column.IndexType {
	case types.BTree:
		return index.NewBTree(index.BTreeConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.BTree), Column: column,
			BranchingFactor: c.indexOpts.BTreeBranchingFactor,
		})
	case types.AVL:
		return index.NewAVL(index.AVLConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.AVL), Column: column,
		})
	case types.ISAM:
		return index.NewISAM(index.ISAMConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.ISAM), Column: column,
			LeafFactor: c.indexOpts.ISAMLeafFactor, IndexFactor: c.indexOpts.ISAMIndexFactor,
		}, nil)
	case types.Hash:
		return index.NewHash(c.hashConfig(table, column))
	case types.RTree:
		return index.NewRTree(index.RTreeConfig{
			Path: types.IndexPath(c.tablesRoot, table, column.Name, types.RTree), Column: column,
			Fanout: c.indexOpts.RTreeFanout,
		})
	default:
		return c.newNoIndex(table, schema, column)
	}
}

func (c *Catalog) hashConfig(table string, column types.Column) index.HashConfig {
	return index.HashConfig{
		DirPath: types.HashDirectoryPath(c.tablesRoot, table, column.Name),
		BucketPathFor: func(bucketID int) string {
			return types.HashBucketPath(c.tablesRoot, table, column.Name, bucketID)
		},
		Column:       column,
		BucketCap:    c.indexOpts.HashBucketCapacity,
		InitialDepth: c.indexOpts.HashInitialDepth,
	}
}

func (c *Catalog) openNoIndex(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	h, err := c.OpenHeap(table, schema)
	if err != nil {
		return nil, err
	}
	return index.OpenNoIndex(index.NoIndexConfig{
		Path: types.IndexPath(c.tablesRoot, table, column.Name, types.NoIndexType), Column: column,
		ColumnIndex: schema.ColumnIndex(column.Name), Heap: heapReaderAdapter{h},
	})
}

func (c *Catalog) newNoIndex(table string, schema *types.TableSchema, column types.Column) (index.Index, error) {
	h, err := c.OpenHeap(table, schema)
	if err != nil {
		return nil, err
	}
	return index.NewNoIndex(index.NoIndexConfig{
		Path: types.IndexPath(c.tablesRoot, table, column.Name, types.NoIndexType), Column: column,
		ColumnIndex: schema.ColumnIndex(column.Name), Heap: heapReaderAdapter{h},
	})
}

