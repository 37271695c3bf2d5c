// Package tabula provides a minimal relational storage engine that
// persists tables as binary files on the local filesystem, maintains one
// secondary access path per column from a closed family of index
// structures (B+Tree, AVL, ISAM, extendible hash, R-Tree), and executes
// create/drop table, insert, select, delete, and create/drop index
// operations against that storage.
//
// Instance is the package's entry point, mirroring the shape of an
// embedded key/value store's top-level handle: construct one per
// process (or per test), issue operations against it, and Close it when
// done. The SQL lexer/parser, HTTP endpoint, and CSV ingestion that
// would normally sit in front of an Instance are out of this package's
// scope — callers translate their own query representation into a
// *query.Condition and a manager.SelectSchema/DeleteSchema.
package tabula

import (
	"github.com/iamNilotpal/tabula/internal/index"
	"github.com/iamNilotpal/tabula/internal/manager"
	"github.com/iamNilotpal/tabula/internal/query"
	"github.com/iamNilotpal/tabula/internal/types"
	"github.com/iamNilotpal/tabula/pkg/logger"
	"github.com/iamNilotpal/tabula/pkg/options"
)

// Re-exported types so callers need only import this package to build
// schemas, conditions, and query results.
type (
	Column       = types.Column
	TableSchema  = types.TableSchema
	DataType     = types.DataType
	IndexType    = types.IndexType
	Value        = types.Value
	Record       = types.Record
	Condition    = query.Condition
	SelectSchema = manager.SelectSchema
	SelectResult = manager.SelectResult
	DeleteSchema = manager.DeleteSchema
	MBR          = index.MBR
	Circle       = index.Circle
)

// MBROf builds the minimum bounding rectangle (xmin, ymin, xmax, ymax)
// spatial WITHIN predicates take.
func MBROf(xmin, ymin, xmax, ymax float32) MBR {
	return MBR{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}
}

// CircleOf builds the (cx, cy, r) circle spatial WITHIN predicates take.
func CircleOf(cx, cy, r float32) Circle {
	return Circle{CX: cx, CY: cy, R: r}
}

// Re-exported constants for the closed DataType/IndexType families.
const (
	Int     = types.Int
	Float   = types.Float
	Varchar = types.Varchar
	Bool    = types.Bool
	Date    = types.Date
	Point   = types.Point

	NoIndexType = types.NoIndexType
	AVL         = types.AVL
	ISAM        = types.ISAM
	Hash        = types.Hash
	BTree       = types.BTree
	RTree       = types.RTree
)

// Value constructors, re-exported for convenience.
var (
	IntValue     = types.IntValue
	FloatValue   = types.FloatValue
	VarcharValue = types.VarcharValue
	BoolValue    = types.BoolValue
	DateValue    = types.DateValue
	PointValue   = types.PointValue
)

// Condition constructors, re-exported for convenience.
var (
	And          = query.AndOf
	Or           = query.OrOf
	Not          = query.NotOf
	Eq           = query.EqOf
	Neq          = query.NeqOf
	Lt           = query.LtOf
	Le           = query.LeOf
	Gt           = query.GtOf
	Ge           = query.GeOf
	Between      = query.BetweenOf
	WithinRect   = query.WithinRectOf
	WithinCircle = query.WithinCircleOf
	KNN          = query.KNNOf
	IsTrue       = query.BoolColumnOf
)

// Instance is a handle to one tabula database rooted at a single
// tables-root directory.
type Instance struct {
	manager *manager.Manager
}

// NewInstance builds a tabula Instance, creating its tables-root
// directory if it does not already exist. service names the component
// for the structured logger (e.g. "tabula", "tabula-test").
func NewInstance(service string, opts ...options.OptionFunc) (*Instance, error) {
	log := logger.New(service)

	merged := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&merged)
	}

	mgr, err := manager.New(manager.Config{Options: &merged, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Instance{manager: mgr}, nil
}

// CreateTable validates schema and creates its directory, heap file, and
// one empty index file per column.
func (i *Instance) CreateTable(schema *TableSchema) error {
	return i.manager.CreateTable(schema)
}

// DropTable removes a table and every file backing it.
func (i *Instance) DropTable(table string) error {
	return i.manager.DropTable(table)
}

// Insert appends one record to table, reordering values to match the
// schema's column order first when columns is non-empty.
func (i *Instance) Insert(table string, values Record, columns []string) (int64, error) {
	return i.manager.Insert(table, values, columns)
}

// Select evaluates sel against its table and returns the matching,
// projected, ordered, and limited rows.
func (i *Instance) Select(sel SelectSchema) (*SelectResult, error) {
	return i.manager.Select(sel)
}

// Delete removes every record del.Condition matches (every record, when
// del.Condition is nil) and returns how many rows were removed.
func (i *Instance) Delete(del DeleteSchema) (int, error) {
	return i.manager.Delete(del)
}

// CreateIndex builds a fresh single-column index and backfills it from
// the table's current live records.
func (i *Instance) CreateIndex(table, name string, columns []string, indexType IndexType) error {
	return i.manager.CreateIndex(table, name, columns, indexType)
}

// DropIndex removes the index registered under name and returns its
// column to NONE.
func (i *Instance) DropIndex(table, name string) error {
	return i.manager.DropIndex(table, name)
}

// Close releases the Instance's memoized index handles. Safe to call
// once; a second call and every operation after it return
// manager.ErrManagerClosed.
func (i *Instance) Close() error {
	return i.manager.Close()
}
