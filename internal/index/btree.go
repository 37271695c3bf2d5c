// B+Tree is a disk-resident B+Tree with fixed branching
// factor B, leaf pages linked via next, node layout
// `| B keys | B+1 pointers | is_leaf | size | next |`, file header holding
// the root page index. Node shape follows the fixed-slot page idiom of
// the heap record file (internal/heap); page geometry is derived from
// the indexed column's type so any orderable DataType — not just a
// hardcoded int32 — can be a B+Tree key.
//
// Deletion is intentionally lazy: entries are removed from their leaf
// without borrow/merge rebalancing, so a delete-heavy workload can leave
// underfull pages behind. Lookups stay correct either way; only page
// utilization suffers, which is acceptable for the insert-heavy
// workloads this index serves.
package index

import (
	"encoding/binary"
	"os"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
)

const btreeNoPage int32 = -1

// BTree is a disk-resident B+Tree index over one column.
type BTree struct {
	path     string
	column   types.Column
	colIndex int
	b        int // branching factor
	keyWidth int
	pageSize int
}

// BTreeConfig groups BTree's construction parameters.
type BTreeConfig struct {
	Path            string
	Column          types.Column
	BranchingFactor int
}

func newBTree(cfg BTreeConfig) *BTree {
	keyWidth := types.ColumnWidth(cfg.Column)
	b := cfg.BranchingFactor
	pageSize := b*keyWidth + (b+1)*4 + 12
	return &BTree{path: cfg.Path, column: cfg.Column, b: b, keyWidth: keyWidth, pageSize: pageSize}
}

// NewBTree creates an empty B+Tree: a single empty leaf root at page 0.
func NewBTree(cfg BTreeConfig) (*BTree, error) {
	bt := newBTree(cfg)

	f, err := os.OpenFile(bt.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_btree", bt.path)
	}
	defer f.Close()

	if err := writeBTreeHeader(f, 0); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_btree", bt.path)
	}
	root := &btreeNode{isLeaf: true, next: btreeNoPage}
	if err := bt.writePage(f, 0, root); err != nil {
		return nil, err
	}
	return bt, nil
}

// OpenBTree wraps an existing B+Tree file.
func OpenBTree(cfg BTreeConfig) (*BTree, error) {
	bt := newBTree(cfg)
	if _, err := os.Stat(bt.path); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_btree", bt.path)
	}
	return bt, nil
}

func (bt *BTree) Type() types.IndexType { return types.BTree }

// btreeNode is a page's in-memory form. For leaves, ptrs holds one data
// pointer per key; for internal nodes, ptrs holds len(keys)+1 children.
type btreeNode struct {
	isLeaf bool
	keys   []types.Value
	ptrs   []int32
	next   int32
}

func (bt *BTree) readPage(f *os.File, idx int32) (*btreeNode, error) {
	buf := make([]byte, bt.pageSize)
	if _, err := f.ReadAt(buf, bt.pageOffset(idx)); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_page", bt.path)
	}

	offset := 0
	keyBufs := make([][]byte, bt.b)
	for i := 0; i < bt.b; i++ {
		keyBufs[i] = buf[offset : offset+bt.keyWidth]
		offset += bt.keyWidth
	}

	ptrs := make([]int32, bt.b+1)
	for i := 0; i < bt.b+1; i++ {
		ptrs[i] = int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))
		offset += 4
	}

	isLeaf := binary.LittleEndian.Uint32(buf[offset:offset+4]) != 0
	offset += 4
	size := int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))
	offset += 4
	next := int32(binary.LittleEndian.Uint32(buf[offset : offset+4]))

	n := &btreeNode{isLeaf: isLeaf, next: next}
	n.keys = make([]types.Value, size)
	for i := int32(0); i < size; i++ {
		v, _, err := types.DecodeColumn(keyBufs[i], bt.column)
		if err != nil {
			return nil, err
		}
		n.keys[i] = v
	}

	if isLeaf {
		n.ptrs = append([]int32{}, ptrs[:size]...)
	} else {
		n.ptrs = append([]int32{}, ptrs[:size+1]...)
	}
	return n, nil
}

func (bt *BTree) writePage(f *os.File, idx int32, n *btreeNode) error {
	if len(n.keys) > bt.b {
		return tabulaerrors.NewCapabilityError(
			nil, tabulaerrors.ErrorCodeInternal, "btree page overflowed its branching factor before split",
		)
	}

	buf := make([]byte, bt.pageSize)
	offset := 0
	for i := 0; i < bt.b; i++ {
		if i < len(n.keys) {
			encoded, err := types.EncodeColumn(nil, bt.column, n.keys[i])
			if err != nil {
				return err
			}
			copy(buf[offset:offset+bt.keyWidth], encoded)
		}
		offset += bt.keyWidth
	}

	for i := 0; i < bt.b+1; i++ {
		p := int32(-1)
		if i < len(n.ptrs) {
			p = n.ptrs[i]
		}
		binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(p))
		offset += 4
	}

	isLeaf := uint32(0)
	if n.isLeaf {
		isLeaf = 1
	}
	binary.LittleEndian.PutUint32(buf[offset:offset+4], isLeaf)
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(n.keys)))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(n.next))

	if _, err := f.WriteAt(buf, bt.pageOffset(idx)); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_page", bt.path)
	}
	return nil
}

func (bt *BTree) pageOffset(idx int32) int64 {
	return 4 + int64(idx)*int64(bt.pageSize)
}

func (bt *BTree) allocPage(f *os.File) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "alloc_page", bt.path)
	}
	count := (info.Size() - 4) / int64(bt.pageSize)
	return int32(count), nil
}

func readBTreeHeader(f *os.File) (int32, error) {
	var buf [4]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeBTreeHeader(f *os.File, root int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(root))
	_, err := f.WriteAt(buf[:], 0)
	return err
}

// Insert descends to the target leaf, inserts in sorted order, and
// recursively splits + promotes separators on overflow.
func (bt *BTree) Insert(position int64, key types.Value) error {
	f, err := os.OpenFile(bt.path, os.O_RDWR, 0644)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "insert", bt.path)
	}
	defer f.Close()

	root, err := readBTreeHeader(f)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "insert", bt.path)
	}

	promoted, newPage, err := bt.insertRec(f, root, position, key)
	if err != nil {
		return err
	}
	if promoted == nil {
		return nil
	}

	newRootIdx, err := bt.allocPage(f)
	if err != nil {
		return err
	}
	newRoot := &btreeNode{isLeaf: false, keys: []types.Value{*promoted}, ptrs: []int32{root, newPage}}
	if err := bt.writePage(f, newRootIdx, newRoot); err != nil {
		return err
	}
	return writeBTreeHeader(f, newRootIdx)
}

func (bt *BTree) insertRec(f *os.File, pageIdx int32, position int64, key types.Value) (*types.Value, int32, error) {
	node, err := bt.readPage(f, pageIdx)
	if err != nil {
		return nil, 0, err
	}

	if node.isLeaf {
		idx, err := leafInsertIndex(node.keys, key)
		if err != nil {
			return nil, 0, err
		}
		node.keys = insertValue(node.keys, idx, key)
		node.ptrs = insertPtr(node.ptrs, idx, int32(position))

		if len(node.keys) <= bt.b {
			return nil, 0, bt.writePage(f, pageIdx, node)
		}
		return bt.splitLeaf(f, pageIdx, node)
	}

	childIdx, err := childIndex(node.keys, key)
	if err != nil {
		return nil, 0, err
	}

	promoted, newChildPage, err := bt.insertRec(f, node.ptrs[childIdx], position, key)
	if err != nil {
		return nil, 0, err
	}
	if promoted == nil {
		return nil, 0, nil
	}

	node.keys = insertValue(node.keys, childIdx, *promoted)
	node.ptrs = insertPtr(node.ptrs, childIdx+1, newChildPage)

	if len(node.keys) <= bt.b {
		return nil, 0, bt.writePage(f, pageIdx, node)
	}
	return bt.splitInternal(f, pageIdx, node)
}

func (bt *BTree) splitLeaf(f *os.File, pageIdx int32, node *btreeNode) (*types.Value, int32, error) {
	mid := len(node.keys) / 2
	left := &btreeNode{isLeaf: true, keys: node.keys[:mid], ptrs: node.ptrs[:mid]}
	right := &btreeNode{isLeaf: true, keys: node.keys[mid:], ptrs: node.ptrs[mid:], next: node.next}

	rightIdx, err := bt.allocPage(f)
	if err != nil {
		return nil, 0, err
	}
	left.next = rightIdx

	if err := bt.writePage(f, rightIdx, right); err != nil {
		return nil, 0, err
	}
	if err := bt.writePage(f, pageIdx, left); err != nil {
		return nil, 0, err
	}

	sep := right.keys[0]
	return &sep, rightIdx, nil
}

func (bt *BTree) splitInternal(f *os.File, pageIdx int32, node *btreeNode) (*types.Value, int32, error) {
	mid := len(node.keys) / 2
	sep := node.keys[mid]

	left := &btreeNode{isLeaf: false, keys: node.keys[:mid], ptrs: node.ptrs[:mid+1]}
	right := &btreeNode{isLeaf: false, keys: node.keys[mid+1:], ptrs: node.ptrs[mid+1:]}

	rightIdx, err := bt.allocPage(f)
	if err != nil {
		return nil, 0, err
	}
	if err := bt.writePage(f, rightIdx, right); err != nil {
		return nil, 0, err
	}
	if err := bt.writePage(f, pageIdx, left); err != nil {
		return nil, 0, err
	}

	return &sep, rightIdx, nil
}

// Delete removes one entry matching key from its leaf, without
// rebalancing.
func (bt *BTree) Delete(key types.Value) (bool, error) {
	f, err := os.OpenFile(bt.path, os.O_RDWR, 0644)
	if err != nil {
		return false, tabulaerrors.ClassifyFileIOError(err, "delete", bt.path)
	}
	defer f.Close()

	leafIdx, err := bt.descendToLeaf(f, key)
	if err != nil {
		return false, err
	}

	for leafIdx != btreeNoPage {
		node, err := bt.readPage(f, leafIdx)
		if err != nil {
			return false, err
		}
		past := false
		for i, k := range node.keys {
			cmp, err := types.Compare(k, key)
			if err != nil {
				return false, err
			}
			if cmp == 0 {
				node.keys = append(node.keys[:i], node.keys[i+1:]...)
				node.ptrs = append(node.ptrs[:i], node.ptrs[i+1:]...)
				return true, bt.writePage(f, leafIdx, node)
			}
			if cmp > 0 {
				past = true
				break
			}
		}
		if past {
			return false, nil
		}
		leafIdx = node.next
	}
	return false, nil
}

// Search returns every position stored under key, following the leaf
// chain past the target leaf as long as duplicates continue.
func (bt *BTree) Search(key types.Value) ([]int64, error) {
	f, err := os.OpenFile(bt.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "search", bt.path)
	}
	defer f.Close()

	leafIdx, err := bt.descendToLeaf(f, key)
	if err != nil {
		return nil, err
	}

	var out []int64
	for leafIdx != btreeNoPage {
		node, err := bt.readPage(f, leafIdx)
		if err != nil {
			return nil, err
		}

		stop := false
		for i, k := range node.keys {
			cmp, err := types.Compare(k, key)
			if err != nil {
				return nil, err
			}
			if cmp == 0 {
				out = append(out, int64(node.ptrs[i]))
			} else if cmp > 0 {
				stop = true
			}
		}
		if stop {
			break
		}
		leafIdx = node.next
	}
	return out, nil
}

// RangeSearch descends to the leaf containing lo (or the leftmost leaf
// if lo is open) and walks the leaf chain until keys exceed hi.
func (bt *BTree) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	f, err := os.OpenFile(bt.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "range_search", bt.path)
	}
	defer f.Close()

	var leafIdx int32
	if loOK {
		leafIdx, err = bt.descendToLeaf(f, lo)
	} else {
		leafIdx, err = bt.leftmostLeaf(f)
	}
	if err != nil {
		return nil, err
	}

	var out []int64
	for leafIdx != btreeNoPage {
		node, err := bt.readPage(f, leafIdx)
		if err != nil {
			return nil, err
		}
		for i, k := range node.keys {
			if loOK {
				cmp, err := types.Compare(k, lo)
				if err != nil {
					return nil, err
				}
				if cmp < 0 {
					continue
				}
			}
			if hiOK {
				cmp, err := types.Compare(k, hi)
				if err != nil {
					return nil, err
				}
				if cmp > 0 {
					return out, nil
				}
			}
			out = append(out, int64(node.ptrs[i]))
		}
		leafIdx = node.next
	}
	return out, nil
}

// GetAll walks the leaf chain from the leftmost leaf to the end.
func (bt *BTree) GetAll() ([]int64, error) {
	f, err := os.OpenFile(bt.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "get_all", bt.path)
	}
	defer f.Close()

	leafIdx, err := bt.leftmostLeaf(f)
	if err != nil {
		return nil, err
	}

	var out []int64
	for leafIdx != btreeNoPage {
		node, err := bt.readPage(f, leafIdx)
		if err != nil {
			return nil, err
		}
		for _, p := range node.ptrs {
			out = append(out, int64(p))
		}
		leafIdx = node.next
	}
	return out, nil
}

func (bt *BTree) Clear() error {
	if err := filesys.RemoveIfExists(bt.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", bt.path)
	}
	return nil
}

// descendToLeaf walks internal nodes down to the leftmost leaf that can
// hold key: ties against a separator descend left, because duplicates of
// a promoted separator stay in the leaf the split left them in — the
// forward leaf-chain scan picks up the rest.
func (bt *BTree) descendToLeaf(f *os.File, key types.Value) (int32, error) {
	root, err := readBTreeHeader(f)
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "descend", bt.path)
	}

	pageIdx := root
	for {
		node, err := bt.readPage(f, pageIdx)
		if err != nil {
			return 0, err
		}
		if node.isLeaf {
			return pageIdx, nil
		}
		idx, err := childIndexLE(node.keys, key)
		if err != nil {
			return 0, err
		}
		pageIdx = node.ptrs[idx]
	}
}

func (bt *BTree) leftmostLeaf(f *os.File) (int32, error) {
	root, err := readBTreeHeader(f)
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "leftmost", bt.path)
	}

	pageIdx := root
	for {
		node, err := bt.readPage(f, pageIdx)
		if err != nil {
			return 0, err
		}
		if node.isLeaf {
			return pageIdx, nil
		}
		pageIdx = node.ptrs[0]
	}
}

// childIndex returns the first index i such that key < keys[i] — the
// child to descend into for key in a standard B+Tree internal node.
func childIndex(keys []types.Value, key types.Value) (int, error) {
	for i, k := range keys {
		cmp, err := types.Compare(key, k)
		if err != nil {
			return 0, err
		}
		if cmp < 0 {
			return i, nil
		}
	}
	return len(keys), nil
}

// childIndexLE returns the first index i such that key <= keys[i] — the
// leftmost child that could hold key, for duplicate-preserving lookups.
func childIndexLE(keys []types.Value, key types.Value) (int, error) {
	for i, k := range keys {
		cmp, err := types.Compare(key, k)
		if err != nil {
			return 0, err
		}
		if cmp <= 0 {
			return i, nil
		}
	}
	return len(keys), nil
}

// leafInsertIndex returns the insertion point that keeps keys sorted and
// places new entries after any existing equal keys, preserving insertion
// order among duplicates.
func leafInsertIndex(keys []types.Value, key types.Value) (int, error) {
	for i, k := range keys {
		cmp, err := types.Compare(key, k)
		if err != nil {
			return 0, err
		}
		if cmp < 0 {
			return i, nil
		}
	}
	return len(keys), nil
}

func insertValue(s []types.Value, idx int, v types.Value) []types.Value {
	s = append(s, types.Value{})
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func insertPtr(s []int32, idx int, p int32) []int32 {
	s = append(s, 0)
	copy(s[idx+1:], s[idx:])
	s[idx] = p
	return s
}
