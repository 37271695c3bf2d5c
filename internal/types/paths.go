package types

import (
	"fmt"
	"path/filepath"
)

// TableDir returns the directory a table's schema, heap, and index files
// live under: <tables_root>/<table>/.
func TableDir(tablesRoot, table string) string {
	return filepath.Join(tablesRoot, table)
}

// MetadataPath returns the path of a table's serialized TableSchema.
func MetadataPath(tablesRoot, table string) string {
	return filepath.Join(TableDir(tablesRoot, table), "metadata")
}

// HeapPath returns the path of a table's heap record file.
func HeapPath(tablesRoot, table string) string {
	return filepath.Join(TableDir(tablesRoot, table), table+".dat")
}

// IndexPath returns the canonical path of column's index file, following
// the <table>_<column>_<indextype>.dat naming scheme.
func IndexPath(tablesRoot, table, column string, indexType IndexType) string {
	name := fmt.Sprintf("%s_%s_%s.dat", table, column, indexType)
	return filepath.Join(TableDir(tablesRoot, table), name)
}

// HashDirectoryPath returns the path of the extendible hash directory file
// for column (distinct from its bucket files).
func HashDirectoryPath(tablesRoot, table, column string) string {
	name := fmt.Sprintf("%s_%s_HASH.dir", table, column)
	return filepath.Join(TableDir(tablesRoot, table), name)
}

// HashBucketPath returns the path of one extendible-hash bucket file.
func HashBucketPath(tablesRoot, table, column string, bucketID int) string {
	name := fmt.Sprintf("%s_%s_HASH.bkt%d", table, column, bucketID)
	return filepath.Join(TableDir(tablesRoot, table), name)
}
