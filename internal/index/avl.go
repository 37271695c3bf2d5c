// AVL is a disk-resident AVL tree: one node per file slot, `(key, position, left,
// right, height)`, file header holding the root slot index. Follows the
// same arena-of-fixed-slots idiom as internal/heap and the B+Tree pages
// above — "back pointers" are file slot indices, never owning
// references. Deleted/replaced slots are not reclaimed, so slot
// allocation is append-only.
package index

import (
	"encoding/binary"
	"os"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
)

const avlNil int32 = -1

// AVL is a disk-resident AVL tree index over one column.
type AVL struct {
	path     string
	column   types.Column
	keyWidth int
	slotSize int
}

// AVLConfig groups AVL's construction parameters.
type AVLConfig struct {
	Path   string
	Column types.Column
}

func newAVL(cfg AVLConfig) *AVL {
	keyWidth := types.ColumnWidth(cfg.Column)
	return &AVL{path: cfg.Path, column: cfg.Column, keyWidth: keyWidth, slotSize: keyWidth + 16}
}

// NewAVL creates an empty AVL index (root = -1, no nodes).
func NewAVL(cfg AVLConfig) (*AVL, error) {
	avl := newAVL(cfg)
	f, err := os.OpenFile(avl.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_avl", avl.path)
	}
	defer f.Close()
	if err := writeAVLHeader(f, avlNil); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_avl", avl.path)
	}
	return avl, nil
}

// OpenAVL wraps an existing AVL index file.
func OpenAVL(cfg AVLConfig) (*AVL, error) {
	avl := newAVL(cfg)
	if _, err := os.Stat(avl.path); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_avl", avl.path)
	}
	return avl, nil
}

func (avl *AVL) Type() types.IndexType { return types.AVL }

type avlNode struct {
	key      types.Value
	position int32
	left     int32
	right    int32
	height   int32
}

func (avl *AVL) slotOffset(idx int32) int64 {
	return 4 + int64(idx)*int64(avl.slotSize)
}

func (avl *AVL) readNode(f *os.File, idx int32) (*avlNode, error) {
	buf := make([]byte, avl.slotSize)
	if _, err := f.ReadAt(buf, avl.slotOffset(idx)); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_node", avl.path)
	}
	key, _, err := types.DecodeColumn(buf[:avl.keyWidth], avl.column)
	if err != nil {
		return nil, err
	}
	o := avl.keyWidth
	position := int32(binary.LittleEndian.Uint32(buf[o : o+4]))
	left := int32(binary.LittleEndian.Uint32(buf[o+4 : o+8]))
	right := int32(binary.LittleEndian.Uint32(buf[o+8 : o+12]))
	height := int32(binary.LittleEndian.Uint32(buf[o+12 : o+16]))
	return &avlNode{key: key, position: position, left: left, right: right, height: height}, nil
}

func (avl *AVL) writeNode(f *os.File, idx int32, n *avlNode) error {
	buf := make([]byte, avl.slotSize)
	encoded, err := types.EncodeColumn(nil, avl.column, n.key)
	if err != nil {
		return err
	}
	copy(buf[:avl.keyWidth], encoded)

	o := avl.keyWidth
	binary.LittleEndian.PutUint32(buf[o:o+4], uint32(n.position))
	binary.LittleEndian.PutUint32(buf[o+4:o+8], uint32(n.left))
	binary.LittleEndian.PutUint32(buf[o+8:o+12], uint32(n.right))
	binary.LittleEndian.PutUint32(buf[o+12:o+16], uint32(n.height))

	if _, err := f.WriteAt(buf, avl.slotOffset(idx)); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_node", avl.path)
	}
	return nil
}

func (avl *AVL) allocSlot(f *os.File) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "alloc_slot", avl.path)
	}
	count := (info.Size() - 4) / int64(avl.slotSize)
	return int32(count), nil
}

func readAVLHeader(f *os.File) (int32, error) {
	var buf [4]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeAVLHeader(f *os.File, root int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(root))
	_, err := f.WriteAt(buf[:], 0)
	return err
}

func (avl *AVL) heightOf(f *os.File, idx int32) (int32, error) {
	if idx == avlNil {
		return 0, nil
	}
	n, err := avl.readNode(f, idx)
	if err != nil {
		return 0, err
	}
	return n.height, nil
}

func max32i(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Insert adds (position, key). Duplicates descend left at ties; later
// rotations can move an equal key into either subtree, so the tree only
// keeps "left subtree <= node.key <= right subtree".
func (avl *AVL) Insert(position int64, key types.Value) error {
	f, err := os.OpenFile(avl.path, os.O_RDWR, 0644)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "insert", avl.path)
	}
	defer f.Close()

	root, err := readAVLHeader(f)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "insert", avl.path)
	}

	newRoot, err := avl.insertRec(f, root, position, key)
	if err != nil {
		return err
	}
	return writeAVLHeader(f, newRoot)
}

func (avl *AVL) insertRec(f *os.File, idx int32, position int64, key types.Value) (int32, error) {
	if idx == avlNil {
		newIdx, err := avl.allocSlot(f)
		if err != nil {
			return 0, err
		}
		node := &avlNode{key: key, position: int32(position), left: avlNil, right: avlNil, height: 1}
		if err := avl.writeNode(f, newIdx, node); err != nil {
			return 0, err
		}
		return newIdx, nil
	}

	node, err := avl.readNode(f, idx)
	if err != nil {
		return 0, err
	}

	cmp, err := types.Compare(key, node.key)
	if err != nil {
		return 0, err
	}

	if cmp <= 0 {
		newLeft, err := avl.insertRec(f, node.left, position, key)
		if err != nil {
			return 0, err
		}
		node.left = newLeft
	} else {
		newRight, err := avl.insertRec(f, node.right, position, key)
		if err != nil {
			return 0, err
		}
		node.right = newRight
	}

	return avl.rebalance(f, idx, node)
}

func (avl *AVL) rebalance(f *os.File, idx int32, node *avlNode) (int32, error) {
	lh, err := avl.heightOf(f, node.left)
	if err != nil {
		return 0, err
	}
	rh, err := avl.heightOf(f, node.right)
	if err != nil {
		return 0, err
	}
	node.height = 1 + max32i(lh, rh)
	balance := lh - rh

	if balance > 1 {
		left, err := avl.readNode(f, node.left)
		if err != nil {
			return 0, err
		}
		llh, err := avl.heightOf(f, left.left)
		if err != nil {
			return 0, err
		}
		lrh, err := avl.heightOf(f, left.right)
		if err != nil {
			return 0, err
		}
		if llh >= lrh {
			if err := avl.writeNode(f, idx, node); err != nil {
				return 0, err
			}
			return avl.rotateRight(f, idx)
		}
		newLeft, err := avl.rotateLeft(f, node.left)
		if err != nil {
			return 0, err
		}
		node.left = newLeft
		if err := avl.writeNode(f, idx, node); err != nil {
			return 0, err
		}
		return avl.rotateRight(f, idx)
	}

	if balance < -1 {
		right, err := avl.readNode(f, node.right)
		if err != nil {
			return 0, err
		}
		rlh, err := avl.heightOf(f, right.left)
		if err != nil {
			return 0, err
		}
		rrh, err := avl.heightOf(f, right.right)
		if err != nil {
			return 0, err
		}
		if rrh >= rlh {
			if err := avl.writeNode(f, idx, node); err != nil {
				return 0, err
			}
			return avl.rotateLeft(f, idx)
		}
		newRight, err := avl.rotateRight(f, node.right)
		if err != nil {
			return 0, err
		}
		node.right = newRight
		if err := avl.writeNode(f, idx, node); err != nil {
			return 0, err
		}
		return avl.rotateLeft(f, idx)
	}

	return idx, avl.writeNode(f, idx, node)
}

func (avl *AVL) rotateRight(f *os.File, yIdx int32) (int32, error) {
	y, err := avl.readNode(f, yIdx)
	if err != nil {
		return 0, err
	}
	xIdx := y.left
	x, err := avl.readNode(f, xIdx)
	if err != nil {
		return 0, err
	}
	t2 := x.right

	y.left = t2
	x.right = yIdx

	lh, err := avl.heightOf(f, y.left)
	if err != nil {
		return 0, err
	}
	rh, err := avl.heightOf(f, y.right)
	if err != nil {
		return 0, err
	}
	y.height = 1 + max32i(lh, rh)
	if err := avl.writeNode(f, yIdx, y); err != nil {
		return 0, err
	}

	lh, err = avl.heightOf(f, x.left)
	if err != nil {
		return 0, err
	}
	rh, err = avl.heightOf(f, x.right)
	if err != nil {
		return 0, err
	}
	x.height = 1 + max32i(lh, rh)
	if err := avl.writeNode(f, xIdx, x); err != nil {
		return 0, err
	}

	return xIdx, nil
}

func (avl *AVL) rotateLeft(f *os.File, xIdx int32) (int32, error) {
	x, err := avl.readNode(f, xIdx)
	if err != nil {
		return 0, err
	}
	yIdx := x.right
	y, err := avl.readNode(f, yIdx)
	if err != nil {
		return 0, err
	}
	t2 := y.left

	x.right = t2
	y.left = xIdx

	lh, err := avl.heightOf(f, x.left)
	if err != nil {
		return 0, err
	}
	rh, err := avl.heightOf(f, x.right)
	if err != nil {
		return 0, err
	}
	x.height = 1 + max32i(lh, rh)
	if err := avl.writeNode(f, xIdx, x); err != nil {
		return 0, err
	}

	lh, err = avl.heightOf(f, y.left)
	if err != nil {
		return 0, err
	}
	rh, err = avl.heightOf(f, y.right)
	if err != nil {
		return 0, err
	}
	y.height = 1 + max32i(lh, rh)
	if err := avl.writeNode(f, yIdx, y); err != nil {
		return 0, err
	}

	return yIdx, nil
}

// Delete removes one node matching key, replacing two-child nodes with
// their in-order predecessor.
func (avl *AVL) Delete(key types.Value) (bool, error) {
	f, err := os.OpenFile(avl.path, os.O_RDWR, 0644)
	if err != nil {
		return false, tabulaerrors.ClassifyFileIOError(err, "delete", avl.path)
	}
	defer f.Close()

	root, err := readAVLHeader(f)
	if err != nil {
		return false, tabulaerrors.ClassifyFileIOError(err, "delete", avl.path)
	}

	newRoot, removed, err := avl.deleteRec(f, root, key)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	return true, writeAVLHeader(f, newRoot)
}

func (avl *AVL) deleteRec(f *os.File, idx int32, key types.Value) (int32, bool, error) {
	if idx == avlNil {
		return avlNil, false, nil
	}

	node, err := avl.readNode(f, idx)
	if err != nil {
		return 0, false, err
	}

	cmp, err := types.Compare(key, node.key)
	if err != nil {
		return 0, false, err
	}

	var removed bool
	switch {
	case cmp < 0:
		newLeft, r, err := avl.deleteRec(f, node.left, key)
		if err != nil {
			return 0, false, err
		}
		node.left, removed = newLeft, r

	case cmp > 0:
		newRight, r, err := avl.deleteRec(f, node.right, key)
		if err != nil {
			return 0, false, err
		}
		node.right, removed = newRight, r

	default:
		removed = true
		if node.left == avlNil {
			return node.right, true, nil
		}
		if node.right == avlNil {
			return node.left, true, nil
		}

		predIdx, err := avl.maxNode(f, node.left)
		if err != nil {
			return 0, false, err
		}
		pred, err := avl.readNode(f, predIdx)
		if err != nil {
			return 0, false, err
		}
		node.key = pred.key
		node.position = pred.position

		newLeft, _, err := avl.deleteRec(f, node.left, pred.key)
		if err != nil {
			return 0, false, err
		}
		node.left = newLeft
	}

	newIdx, err := avl.rebalance(f, idx, node)
	return newIdx, removed, err
}

func (avl *AVL) maxNode(f *os.File, idx int32) (int32, error) {
	node, err := avl.readNode(f, idx)
	if err != nil {
		return 0, err
	}
	if node.right == avlNil {
		return idx, nil
	}
	return avl.maxNode(f, node.right)
}

// Search returns every position stored under key.
func (avl *AVL) Search(key types.Value) ([]int64, error) {
	return avl.RangeSearch(key, true, key, true)
}

// RangeSearch performs a bounded DFS, pruning subtrees fully outside the
// [lo, hi] window.
func (avl *AVL) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	f, err := os.OpenFile(avl.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "range_search", avl.path)
	}
	defer f.Close()

	root, err := readAVLHeader(f)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "range_search", avl.path)
	}

	var out []int64
	err = avl.rangeRec(f, root, lo, loOK, hi, hiOK, &out)
	return out, err
}

func (avl *AVL) rangeRec(f *os.File, idx int32, lo types.Value, loOK bool, hi types.Value, hiOK bool, out *[]int64) error {
	if idx == avlNil {
		return nil
	}
	node, err := avl.readNode(f, idx)
	if err != nil {
		return err
	}

	geLo := true
	if loOK {
		cmp, err := types.Compare(node.key, lo)
		if err != nil {
			return err
		}
		geLo = cmp >= 0
	}
	leLo := true
	if hiOK {
		cmp, err := types.Compare(node.key, hi)
		if err != nil {
			return err
		}
		leLo = cmp <= 0
	}

	if geLo {
		if err := avl.rangeRec(f, node.left, lo, loOK, hi, hiOK, out); err != nil {
			return err
		}
	}
	if geLo && leLo {
		*out = append(*out, int64(node.position))
	}
	if leLo {
		if err := avl.rangeRec(f, node.right, lo, loOK, hi, hiOK, out); err != nil {
			return err
		}
	}
	return nil
}

// GetAll returns every indexed position via a full in-order traversal.
func (avl *AVL) GetAll() ([]int64, error) {
	return avl.RangeSearch(types.Value{}, false, types.Value{}, false)
}

func (avl *AVL) Clear() error {
	if err := filesys.RemoveIfExists(avl.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", avl.path)
	}
	return nil
}
