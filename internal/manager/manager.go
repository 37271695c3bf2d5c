// Package manager implements the Manager type that orchestrates the
// catalog, heap, index family, and bitmap evaluator behind the
// operation surface a SQL-level parser would call — create/drop table,
// insert, select, delete, create/drop index — with ISAM, R-Tree
// queries, bitmap composition, and ORDER BY/LIMIT all present.
package manager

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iamNilotpal/tabula/internal/bitmap"
	"github.com/iamNilotpal/tabula/internal/catalog"
	"github.com/iamNilotpal/tabula/internal/heap"
	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/query"
	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
	"github.com/iamNilotpal/tabula/pkg/options"
)

// ErrManagerClosed is returned by every operation once Close has run.
var ErrManagerClosed = fmt.Errorf("operation failed: cannot access closed manager")

// Manager is the single entry point the parser (out of scope) drives:
// one instance per process, owning one Catalog and therefore one set of
// memoized index handles.
type Manager struct {
	opts    *options.Options
	log     *zap.SugaredLogger
	catalog *catalog.Catalog
	closed  atomic.Bool
}

// Config groups Manager's construction parameters.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New creates a Manager rooted at cfg.Options.TablesRoot, creating that
// directory if absent.
func New(cfg Config) (*Manager, error) {
	opts := cfg.Options
	if opts == nil {
		defaults := options.NewDefaultOptions()
		opts = &defaults
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := filesys.CreateDir(opts.TablesRoot, 0755, true); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_tables_root", opts.TablesRoot)
	}

	cat := catalog.New(catalog.Config{TablesRoot: opts.TablesRoot, IndexOptions: opts.Index, Logger: log})
	return &Manager{opts: opts, log: log, catalog: cat}, nil
}

// Close discards every memoized index handle. It is safe to call once;
// a second call reports ErrManagerClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrManagerClosed
	}
	m.catalog.Reset()
	return nil
}

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	return nil
}

// CreateTable validates and persists a new table's schema, creates its
// heap file, and creates one empty index file per column.
func (m *Manager) CreateTable(schema *types.TableSchema) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.catalog.CreateTable(schema)
}

// DropTable removes a table's directory and every file under it.
func (m *Manager) DropTable(table string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.catalog.DropTable(table)
}

// Insert appends one record to table's heap and inserts its per-column
// (key, position) mapping into every index. When columns is non-empty,
// values is reordered to match the schema's physical column order first;
// the reorder (and every other validation) happens before the heap is
// touched, so a rejected insert never partially mutates the heap.
func (m *Manager) Insert(table string, values types.Record, columns []string) (int64, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	schema, err := m.catalog.LoadSchema(table)
	if err != nil {
		return 0, err
	}

	if len(columns) > 0 {
		values, err = reorderValues(schema, values, columns)
		if err != nil {
			return 0, err
		}
	}

	if len(values) != len(schema.Columns) {
		return 0, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeArityMismatch,
			fmt.Sprintf("insert into %q expects %d values, got %d", table, len(schema.Columns), len(values)),
		).WithDetail("table", table)
	}
	for i, col := range schema.Columns {
		if err := types.CheckType(col, values[i]); err != nil {
			return 0, err
		}
	}

	h, err := m.catalog.OpenHeap(table, schema)
	if err != nil {
		return 0, err
	}

	position, err := h.Append(values)
	if err != nil {
		return 0, err
	}

	for i, col := range schema.Columns {
		idx, err := m.catalog.Index(table, schema, col)
		if err != nil {
			return position, err
		}
		if err := idx.Insert(position, values[i]); err != nil {
			return position, err
		}
	}

	return position, nil
}

// reorderValues matches columns (the INSERT statement's explicit column
// list) 1:1 against schema and returns values in schema's physical
// order.
func reorderValues(schema *types.TableSchema, values types.Record, columns []string) (types.Record, error) {
	if len(values) != len(columns) {
		return nil, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeArityMismatch,
			fmt.Sprintf("insert names %d columns but supplies %d values", len(columns), len(values)),
		).WithDetail("table", schema.TableName)
	}

	byName := make(map[string]types.Value, len(columns))
	for i, name := range columns {
		if schema.ColumnIndex(name) < 0 {
			return nil, tabulaerrors.NewPredicateError(
				nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unknown column %q", name),
			).WithColumn(name).WithClause("INSERT")
		}
		if _, dup := byName[name]; dup {
			return nil, tabulaerrors.NewSchemaError(
				nil, tabulaerrors.ErrorCodeDuplicateColumn, fmt.Sprintf("column %q named twice in INSERT", name),
			).WithTable(schema.TableName).WithColumn(name)
		}
		byName[name] = values[i]
	}

	if len(byName) != len(schema.Columns) {
		return nil, tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeArityMismatch,
			fmt.Sprintf("insert names %d of %d columns", len(byName), len(schema.Columns)),
		).WithDetail("table", schema.TableName)
	}

	out := make(types.Record, len(schema.Columns))
	for i, col := range schema.Columns {
		out[i] = byName[col.Name]
	}
	return out, nil
}

// SelectSchema describes one SELECT's shape: the table, an optional
// condition tree (nil means no WHERE clause), an optional projection
// list (nil/empty means every column), and an optional ORDER BY/LIMIT.
type SelectSchema struct {
	Table     string
	Condition *query.Condition
	Columns   []string
	OrderBy   string
	OrderDesc bool
	Limit     int // <= 0 means no LIMIT
}

// SelectResult is one SELECT's output: the projected column names and
// the matching records, each a tuple in that same column order.
type SelectResult struct {
	Columns []string
	Records []types.Record
}

// Select evaluates sel.Condition into a bitmap, materializes matching
// live records, projects to sel.Columns, and applies ORDER BY/LIMIT.
func (m *Manager) Select(sel SelectSchema) (*SelectResult, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	schema, err := m.catalog.LoadSchema(sel.Table)
	if err != nil {
		return nil, err
	}

	h, err := m.catalog.OpenHeap(sel.Table, schema)
	if err != nil {
		return nil, err
	}

	positions, records, err := m.matchLiveRecords(sel.Table, schema, h, sel.Condition)
	if err != nil {
		return nil, err
	}

	columns := sel.Columns
	if len(columns) == 0 {
		columns = schema.ColumnNames()
	}
	projectedIdx := make([]int, len(columns))
	for i, name := range columns {
		ci := schema.ColumnIndex(name)
		if ci < 0 {
			return nil, tabulaerrors.NewPredicateError(
				nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unknown column %q", name),
			).WithColumn(name).WithClause("SELECT")
		}
		projectedIdx[i] = ci
	}

	projected := make([]types.Record, len(records))
	for i, rec := range records {
		row := make(types.Record, len(columns))
		for j, ci := range projectedIdx {
			row[j] = rec[ci]
		}
		projected[i] = row
	}

	if sel.OrderBy == "" {
		if sel.Limit > 0 && sel.Limit < len(projected) {
			projected = projected[:sel.Limit]
		}
		return &SelectResult{Columns: columns, Records: projected}, nil
	}

	orderIdx := schema.ColumnIndex(sel.OrderBy)
	if orderIdx < 0 {
		return nil, tabulaerrors.NewPredicateError(
			nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unknown column %q", sel.OrderBy),
		).WithColumn(sel.OrderBy).WithClause("ORDER BY")
	}

	items := make([]orderItem, len(records))
	for i, rec := range records {
		items[i] = orderItem{value: rec[orderIdx], position: positions[i], record: projected[i]}
	}

	sorted, err := orderAndLimit(items, !sel.OrderDesc, sel.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.Record, len(sorted))
	for i, it := range sorted {
		out[i] = it.record
	}
	return &SelectResult{Columns: columns, Records: out}, nil
}

// DeleteSchema describes one DELETE's shape: the table and an optional
// condition (nil deletes every row).
type DeleteSchema struct {
	Table     string
	Condition *query.Condition
}

// Delete removes every matching record from table's heap and from every
// column's index, returning the number of rows removed.
func (m *Manager) Delete(del DeleteSchema) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	schema, err := m.catalog.LoadSchema(del.Table)
	if err != nil {
		return 0, err
	}

	h, err := m.catalog.OpenHeap(del.Table, schema)
	if err != nil {
		return 0, err
	}

	positions, _, err := m.matchLiveRecords(del.Table, schema, h, del.Condition)
	if err != nil {
		return 0, err
	}

	indexes := make([]index.Index, len(schema.Columns))
	for i, col := range schema.Columns {
		idx, err := m.catalog.Index(del.Table, schema, col)
		if err != nil {
			return 0, err
		}
		indexes[i] = idx
	}

	deleted := 0
	for _, p := range positions {
		record, err := h.Delete(p)
		if err != nil {
			if tabulaerrors.GetErrorCode(err) == tabulaerrors.ErrorCodeSlotDeleted {
				continue
			}
			return deleted, err
		}
		for i := range schema.Columns {
			if _, err := indexes[i].Delete(record[i]); err != nil {
				return deleted, err
			}
		}
		deleted++
	}

	return deleted, nil
}

// matchLiveRecords evaluates cond (bitmap.AllWithTail() when nil) against
// table, then materializes every live record it names, in ascending
// position order.
func (m *Manager) matchLiveRecords(table string, schema *types.TableSchema, h *heap.Heap, cond *query.Condition) ([]int64, []types.Record, error) {
	resolver := &schemaIndexResolver{catalog: m.catalog, table: table, schema: schema}

	bm := bitmap.AllWithTail()
	if cond != nil {
		var err error
		bm, err = query.Eval(cond, schema, resolver, h)
		if err != nil {
			return nil, nil, err
		}
	}

	maxPos, err := h.MaxPosition()
	if err != nil {
		return nil, nil, err
	}
	candidates := bm.ToList(maxPos)

	positions := make([]int64, 0, len(candidates))
	records := make([]types.Record, 0, len(candidates))
	for _, p := range candidates {
		record, live, err := h.Read(p)
		if err != nil {
			return nil, nil, err
		}
		if !live {
			continue
		}
		positions = append(positions, p)
		records = append(records, record)
	}
	return positions, records, nil
}

// schemaIndexResolver adapts Catalog to query.IndexResolver for one
// (table, schema) pair.
type schemaIndexResolver struct {
	catalog *catalog.Catalog
	table   string
	schema  *types.TableSchema
}

func (r *schemaIndexResolver) Index(column string) (index.Index, types.IndexType, error) {
	ci := r.schema.ColumnIndex(column)
	if ci < 0 {
		return nil, types.NoIndexType, tabulaerrors.NewPredicateError(
			nil, tabulaerrors.ErrorCodeUnknownColumn, fmt.Sprintf("unknown column %q", column),
		).WithColumn(column).WithClause("WHERE")
	}
	col := r.schema.Columns[ci]
	idx, err := r.catalog.Index(r.table, r.schema, col)
	if err != nil {
		return nil, col.IndexType, err
	}
	return idx, col.IndexType, nil
}

// CreateIndex sets up a fresh index file for exactly one column and
// backfills it from the heap's live records. columns must name exactly
// one column; multi-column indexes are not supported.
func (m *Manager) CreateIndex(table, name string, columns []string, indexType types.IndexType) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(columns) != 1 {
		return tabulaerrors.NewCapabilityError(
			nil, tabulaerrors.ErrorCodeUnsupportedMultiColumnIndex,
			fmt.Sprintf("CREATE INDEX supports exactly one column, got %d", len(columns)),
		).WithOperation("create_index")
	}

	schema, err := m.catalog.LoadSchema(table)
	if err != nil {
		return err
	}

	ci := schema.ColumnIndex(columns[0])
	if ci < 0 {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeColumnMissing, fmt.Sprintf("unknown column %q", columns[0]),
		).WithTable(table).WithColumn(columns[0])
	}

	if schema.Columns[ci].IndexType != types.NoIndexType {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeColumnAlreadyIndexed,
			fmt.Sprintf("column %q already has a %s index", columns[0], schema.Columns[ci].IndexType),
		).WithTable(table).WithColumn(columns[0])
	}

	isPoint := schema.Columns[ci].Type == types.Point
	if isPoint != (indexType == types.RTree) {
		return tabulaerrors.NewTypeError(
			nil, tabulaerrors.ErrorCodeTypeMismatch,
			fmt.Sprintf("%s column %q cannot carry a %s index", schema.Columns[ci].Type, columns[0], indexType),
		).WithColumn(columns[0])
	}

	// The column's NoIndex placeholder file is retired along with its
	// cached handle before the real index takes over.
	if err := m.catalog.EvictIndex(table, schema, schema.Columns[ci]); err != nil {
		return err
	}

	schema.Columns[ci].IndexType = indexType
	schema.Columns[ci].IndexName = name
	col := schema.Columns[ci]

	idx, err := m.catalog.CreateIndex(table, schema, col)
	if err != nil {
		return err
	}

	if err := m.backfillIndex(table, schema, ci, idx); err != nil {
		return err
	}

	return m.catalog.SaveSchema(schema)
}

// backfillIndex walks the heap and inserts every live record's column
// value into idx.
func (m *Manager) backfillIndex(table string, schema *types.TableSchema, ci int, idx index.Index) error {
	h, err := m.catalog.OpenHeap(table, schema)
	if err != nil {
		return err
	}
	maxPos, err := h.MaxPosition()
	if err != nil {
		return err
	}
	for p := int64(0); p < maxPos; p++ {
		record, live, err := h.Read(p)
		if err != nil {
			return err
		}
		if !live {
			continue
		}
		if err := idx.Insert(p, record[ci]); err != nil {
			return err
		}
	}
	return nil
}

// DropIndex locates the column whose index was registered under name,
// clears its backing file(s), and returns the column to NONE.
func (m *Manager) DropIndex(table, name string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	schema, err := m.catalog.LoadSchema(table)
	if err != nil {
		return err
	}

	ci := -1
	for i, col := range schema.Columns {
		if col.IndexType != types.NoIndexType && col.IndexName == name {
			ci = i
			break
		}
	}
	if ci < 0 {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeIndexMissing, fmt.Sprintf("no index named %q on table %q", name, table),
		).WithTable(table)
	}

	if err := m.catalog.EvictIndex(table, schema, schema.Columns[ci]); err != nil {
		return err
	}

	schema.Columns[ci].IndexType = types.NoIndexType
	schema.Columns[ci].IndexName = ""

	// Recreate the column's NoIndex placeholder and refill it from the
	// heap, so its position list reflects the rows inserted while the
	// dropped index was in force.
	idx, err := m.catalog.CreateIndex(table, schema, schema.Columns[ci])
	if err != nil {
		return err
	}
	if err := m.backfillIndex(table, schema, ci, idx); err != nil {
		return err
	}

	return m.catalog.SaveSchema(schema)
}
