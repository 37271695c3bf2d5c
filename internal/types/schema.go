package types

import (
	"fmt"

	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
)

// TableSchema is the ordered column list backing one table. Column order
// is the record's physical field order on disk.
type TableSchema struct {
	TableName string
	Columns   []Column
}

// Validate enforces the TableSchema invariants: at least one column,
// unique column names, exactly one primary key, and a positive
// VarcharLength on every VARCHAR column. As a side effect, a primary
// column with IndexType == NoIndexType is promoted to Hash.
func (s *TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeMissingPrimaryKey, "table must declare at least one column",
		).WithTable(s.TableName)
	}

	seen := make(map[string]struct{}, len(s.Columns))
	primaryCount := 0

	for i := range s.Columns {
		col := &s.Columns[i]

		if _, dup := seen[col.Name]; dup {
			return tabulaerrors.NewSchemaError(
				nil, tabulaerrors.ErrorCodeDuplicateColumn,
				fmt.Sprintf("duplicate column name %q", col.Name),
			).WithTable(s.TableName).WithColumn(col.Name)
		}
		seen[col.Name] = struct{}{}

		if col.Type == Varchar && col.VarcharLength <= 0 {
			return tabulaerrors.NewSchemaError(
				nil, tabulaerrors.ErrorCodeMissingVarcharLength,
				fmt.Sprintf("column %q is VARCHAR but declares no positive length", col.Name),
			).WithTable(s.TableName).WithColumn(col.Name)
		}

		if col.IsPrimary {
			primaryCount++
			if col.IndexType == NoIndexType {
				col.IndexType = Hash
			}
		}

		// POINT columns are indexed only by R-Tree; a primary POINT
		// column trips this after promotion, since it cannot be hashed.
		if col.Type == Point && col.IndexType != NoIndexType && col.IndexType != RTree {
			return tabulaerrors.NewTypeError(
				nil, tabulaerrors.ErrorCodeTypeMismatch,
				fmt.Sprintf("POINT column %q can only carry an RTREE index, not %s", col.Name, col.IndexType),
			).WithColumn(col.Name)
		}
		if col.Type != Point && col.IndexType == RTree {
			return tabulaerrors.NewTypeError(
				nil, tabulaerrors.ErrorCodeTypeMismatch,
				fmt.Sprintf("RTREE indexes require a POINT column, %q is %s", col.Name, col.Type),
			).WithColumn(col.Name)
		}
	}

	if primaryCount == 0 {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeMissingPrimaryKey, "table declares no primary key column",
		).WithTable(s.TableName)
	}
	if primaryCount > 1 {
		return tabulaerrors.NewSchemaError(
			nil, tabulaerrors.ErrorCodeMultiplePrimaryKeys,
			fmt.Sprintf("table declares %d primary key columns, want exactly 1", primaryCount),
		).WithTable(s.TableName)
	}

	return nil
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (s *TableSchema) ColumnIndex(name string) int {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column and whether it was found.
func (s *TableSchema) Column(name string) (Column, bool) {
	i := s.ColumnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return s.Columns[i], true
}

// PrimaryColumn returns the table's sole primary key column.
func (s *TableSchema) PrimaryColumn() (Column, bool) {
	for _, c := range s.Columns {
		if c.IsPrimary {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the schema's column names in physical order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
