package index

import (
	"encoding/binary"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
)

// HeapReader is the slice of Heap's contract NoIndex needs to resolve a
// key to a position when deleting by key.
type HeapReader interface {
	Read(position int64) (types.Record, bool, error)
}

// NoIndex is the degenerate fallback index: positions only, no
// key ordering. Equality and range lookups are the manager's job (a heap
// scan), not this index's — Search and RangeSearch always fail.
type NoIndex struct {
	path        string
	column      types.Column
	columnIndex int
	heap        HeapReader
}

// NoIndexConfig groups NoIndex's construction parameters.
type NoIndexConfig struct {
	Path        string
	Column      types.Column
	ColumnIndex int
	Heap        HeapReader
}

// NewNoIndex creates a brand-new, empty NoIndex backing file.
func NewNoIndex(cfg NoIndexConfig) (*NoIndex, error) {
	ni := &NoIndex{path: cfg.Path, column: cfg.Column, columnIndex: cfg.ColumnIndex, heap: cfg.Heap}
	if err := writePositions(ni.path, nil); err != nil {
		return nil, err
	}
	return ni, nil
}

// OpenNoIndex wraps an existing NoIndex backing file.
func OpenNoIndex(cfg NoIndexConfig) (*NoIndex, error) {
	return &NoIndex{path: cfg.Path, column: cfg.Column, columnIndex: cfg.ColumnIndex, heap: cfg.Heap}, nil
}

func (ni *NoIndex) Type() types.IndexType { return types.NoIndexType }

// Insert appends position, ignoring key (NoIndex keeps no ordering).
func (ni *NoIndex) Insert(position int64, key types.Value) error {
	positions, err := readPositions(ni.path)
	if err != nil {
		return err
	}
	positions = append(positions, position)
	return writePositions(ni.path, positions)
}

// Delete resolves key to a position via a heap scan over every currently
// stored position, then removes that entry. When the caller has already
// tombstoned the record's heap slot (the manager deletes from the heap
// first, then from each index), the key can no longer be read back — the
// now-dead slot is taken as the entry being deleted instead.
func (ni *NoIndex) Delete(key types.Value) (bool, error) {
	positions, err := readPositions(ni.path)
	if err != nil {
		return false, err
	}

	deadAt := -1
	for i, pos := range positions {
		record, live, err := ni.heap.Read(pos)
		if err != nil {
			return false, err
		}
		if !live {
			if deadAt < 0 {
				deadAt = i
			}
			continue
		}
		cmp, err := types.Compare(record[ni.columnIndex], key)
		if err != nil {
			return false, err
		}
		if cmp == 0 {
			positions = append(positions[:i], positions[i+1:]...)
			return true, writePositions(ni.path, positions)
		}
	}

	if deadAt >= 0 {
		positions = append(positions[:deadAt], positions[deadAt+1:]...)
		return true, writePositions(ni.path, positions)
	}
	return false, nil
}

func (ni *NoIndex) Search(key types.Value) ([]int64, error) {
	return nil, errUnsupported(types.NoIndexType, "search")
}

func (ni *NoIndex) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	return nil, errUnsupported(types.NoIndexType, "range_search")
}

func (ni *NoIndex) GetAll() ([]int64, error) {
	return readPositions(ni.path)
}

func (ni *NoIndex) Clear() error {
	if err := filesys.RemoveIfExists(ni.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", ni.path)
	}
	return nil
}

func readPositions(path string) ([]int64, error) {
	data, err := filesys.ReadFile(path)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_positions", path)
	}
	n := len(data) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return out, nil
}

func writePositions(path string, positions []int64) error {
	buf := make([]byte, len(positions)*8)
	for i, p := range positions {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(p))
	}
	if err := filesys.WriteFile(path, 0644, buf); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_positions", path)
	}
	return nil
}
