// RTree is a 2-D spatial index over POINT columns, with Guttman-style
// quadratic node splits, MBR/circle range queries, and kNN. The splits
// are implemented directly rather than delegated to a spatial library,
// since none appears in the dependency surface this repo draws from.
// Exact-match search and delete scan the flat entry set rather than the
// tree — the backing file is small enough that the whole structure is
// rebuilt per operation anyway.
package index

import (
	"encoding/binary"
	"math"
	"os"
	"sort"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
)

const defaultRTreeFanout = 8

// RTree is a 2-D spatial index over one POINT column.
type RTree struct {
	path    string
	column  types.Column
	fanout  int
}

// RTreeConfig groups RTree's construction parameters.
type RTreeConfig struct {
	Path   string
	Column types.Column
	Fanout int // max children/entries per node before a Guttman split
}

func newRTree(cfg RTreeConfig) *RTree {
	fanout := cfg.Fanout
	if fanout < 2 {
		fanout = defaultRTreeFanout
	}
	return &RTree{path: cfg.Path, column: cfg.Column, fanout: fanout}
}

// rtreeEntry is one leaf item: a point plus its heap position.
type rtreeEntry struct {
	x, y     float32
	position int64
}

// rtreeNode is a Guttman R-Tree node, held entirely in memory and
// persisted as one gob-free flat record set (see (de)serialize below).
type rtreeNode struct {
	leaf     bool
	box      MBR
	entries  []rtreeEntry // leaf only
	children []*rtreeNode // internal only
}

// RTree's backing file holds the whole tree serialized flat; the
// open-per-operation discipline the other indexes follow is honored at
// the Index method level (every exported call opens and closes the file), even
// though the in-memory tree is rebuilt from scratch per call — small
// enough for the POINT columns this index serves.
func NewRTree(cfg RTreeConfig) (*RTree, error) {
	rt := newRTree(cfg)
	if err := rt.save(&rtreeNode{leaf: true}); err != nil {
		return nil, err
	}
	return rt, nil
}

// OpenRTree wraps an existing R-Tree backing file.
func OpenRTree(cfg RTreeConfig) (*RTree, error) {
	rt := newRTree(cfg)
	if _, err := os.Stat(rt.path); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_rtree", rt.path)
	}
	return rt, nil
}

func (rt *RTree) Type() types.IndexType { return types.RTree }

// --- flat (de)serialization: one record per leaf entry, depth-first ---

func (rt *RTree) load() (*rtreeNode, error) {
	data, err := filesys.ReadFile(rt.path)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "load", rt.path)
	}
	if len(data) == 0 {
		return &rtreeNode{leaf: true}, nil
	}

	n := len(data) / 12
	entries := make([]rtreeEntry, n)
	for i := 0; i < n; i++ {
		o := i * 12
		x := float32FromBits(binary.LittleEndian.Uint32(data[o : o+4]))
		y := float32FromBits(binary.LittleEndian.Uint32(data[o+4 : o+8]))
		pos := int64(int32(binary.LittleEndian.Uint32(data[o+8 : o+12])))
		entries[i] = rtreeEntry{x: x, y: y, position: pos}
	}
	return rt.build(entries), nil
}

func (rt *RTree) save(root *rtreeNode) error {
	var entries []rtreeEntry
	collect(root, &entries)

	buf := make([]byte, len(entries)*12)
	for i, e := range entries {
		o := i * 12
		binary.LittleEndian.PutUint32(buf[o:o+4], float32ToBits(e.x))
		binary.LittleEndian.PutUint32(buf[o+4:o+8], float32ToBits(e.y))
		binary.LittleEndian.PutUint32(buf[o+8:o+12], uint32(int32(e.position)))
	}
	if err := filesys.WriteFile(rt.path, 0644, buf); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "save", rt.path)
	}
	return nil
}

func collect(n *rtreeNode, out *[]rtreeEntry) {
	if n == nil {
		return
	}
	if n.leaf {
		*out = append(*out, n.entries...)
		return
	}
	for _, c := range n.children {
		collect(c, out)
	}
}

// build reconstructs a Guttman tree from a flat entry list by repeated
// insertion — simple, and sufficient given RTree's file is re-derived on
// every Insert/Delete rather than kept resident.
func (rt *RTree) build(entries []rtreeEntry) *rtreeNode {
	root := &rtreeNode{leaf: true}
	for _, e := range entries {
		root = rt.insertEntry(root, e)
	}
	return root
}

func (rt *RTree) insertEntry(root *rtreeNode, e rtreeEntry) *rtreeNode {
	leaf := chooseLeaf(root, e)
	leaf.entries = append(leaf.entries, e)
	leaf.box = leaf.box.Union(MBR{XMin: e.x, YMin: e.y, XMax: e.x, YMax: e.y})

	if len(leaf.entries) <= rt.fanout {
		return fixBoxes(root)
	}

	l1, l2 := splitLeaf(leaf)
	return rt.replaceWithSplit(root, leaf, l1, l2)
}

func chooseLeaf(n *rtreeNode, e rtreeEntry) *rtreeNode {
	if n.leaf {
		return n
	}
	var best *rtreeNode
	var bestGrowth float32
	point := MBR{XMin: e.x, YMin: e.y, XMax: e.x, YMax: e.y}
	for i, c := range n.children {
		grown := c.box.Union(point)
		growth := grown.Area() - c.box.Area()
		if i == 0 || growth < bestGrowth {
			best, bestGrowth = c, growth
		}
	}
	return chooseLeaf(best, e)
}

func splitLeaf(n *rtreeNode) (*rtreeNode, *rtreeNode) {
	entries := n.entries
	// Guttman quadratic split: seed with the pair whose combined MBR
	// wastes the most area, then assign the rest to whichever group
	// grows least.
	var seedA, seedB int
	var worst float32 = -1
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			bi := MBR{XMin: entries[i].x, YMin: entries[i].y, XMax: entries[i].x, YMax: entries[i].y}
			bj := MBR{XMin: entries[j].x, YMin: entries[j].y, XMax: entries[j].x, YMax: entries[j].y}
			waste := bi.Union(bj).Area() - bi.Area() - bj.Area()
			if waste > worst {
				worst, seedA, seedB = waste, i, j
			}
		}
	}

	g1 := &rtreeNode{leaf: true, entries: []rtreeEntry{entries[seedA]}}
	g2 := &rtreeNode{leaf: true, entries: []rtreeEntry{entries[seedB]}}
	g1.box = pointBox(entries[seedA])
	g2.box = pointBox(entries[seedB])

	for i, e := range entries {
		if i == seedA || i == seedB {
			continue
		}
		growth1 := g1.box.Union(pointBox(e)).Area() - g1.box.Area()
		growth2 := g2.box.Union(pointBox(e)).Area() - g2.box.Area()
		if growth1 <= growth2 {
			g1.entries = append(g1.entries, e)
			g1.box = g1.box.Union(pointBox(e))
		} else {
			g2.entries = append(g2.entries, e)
			g2.box = g2.box.Union(pointBox(e))
		}
	}
	return g1, g2
}

func pointBox(e rtreeEntry) MBR {
	return MBR{XMin: e.x, YMin: e.y, XMax: e.x, YMax: e.y}
}

// replaceWithSplit finds leaf inside root (by identity) and replaces it
// with l1, l2, propagating a parent split upward if needed.
func (rt *RTree) replaceWithSplit(root, leaf, l1, l2 *rtreeNode) *rtreeNode {
	if root == leaf {
		return &rtreeNode{leaf: false, children: []*rtreeNode{l1, l2}, box: l1.box.Union(l2.box)}
	}

	for i, c := range root.children {
		if c == leaf {
			root.children[i] = l1
			root.children = append(root.children, l2)
			root.box = root.box.Union(l2.box)

			if len(root.children) <= rt.fanout {
				return fixBoxes(root)
			}
			return splitInternalNode(root)
		}
		if updated := rt.replaceWithSplit(c, leaf, l1, l2); updated != c {
			root.children[i] = updated
			return fixBoxes(root)
		}
	}
	return fixBoxes(root)
}

func splitInternalNode(n *rtreeNode) *rtreeNode {
	sort.Slice(n.children, func(i, j int) bool { return n.children[i].box.Area() < n.children[j].box.Area() })
	mid := len(n.children) / 2
	g1 := &rtreeNode{children: n.children[:mid]}
	g2 := &rtreeNode{children: n.children[mid:]}
	for _, c := range g1.children {
		g1.box = g1.box.Union(c.box)
	}
	for _, c := range g2.children {
		g2.box = g2.box.Union(c.box)
	}
	return &rtreeNode{leaf: false, children: []*rtreeNode{g1, g2}, box: g1.box.Union(g2.box)}
}

func fixBoxes(n *rtreeNode) *rtreeNode {
	if n.leaf {
		var box MBR
		for i, e := range n.entries {
			b := pointBox(e)
			if i == 0 {
				box = b
			} else {
				box = box.Union(b)
			}
		}
		n.box = box
		return n
	}
	var box MBR
	for i, c := range n.children {
		fixBoxes(c)
		if i == 0 {
			box = c.box
		} else {
			box = box.Union(c.box)
		}
	}
	n.box = box
	return n
}

// Insert adds a POINT value's (x, y) at position.
func (rt *RTree) Insert(position int64, key types.Value) error {
	root, err := rt.load()
	if err != nil {
		return err
	}
	root = rt.insertEntry(root, rtreeEntry{x: key.Point.X, y: key.Point.Y, position: position})
	return rt.save(root)
}

// Delete removes one entry matching key's coordinates exactly.
func (rt *RTree) Delete(key types.Value) (bool, error) {
	root, err := rt.load()
	if err != nil {
		return false, err
	}

	var entries []rtreeEntry
	collect(root, &entries)

	for i, e := range entries {
		if e.x == key.Point.X && e.y == key.Point.Y {
			entries = append(entries[:i], entries[i+1:]...)
			return true, rt.save(rt.build(entries))
		}
	}
	return false, nil
}

// Search returns every position stored at key's exact coordinates.
func (rt *RTree) Search(key types.Value) ([]int64, error) {
	root, err := rt.load()
	if err != nil {
		return nil, err
	}
	var entries []rtreeEntry
	collect(root, &entries)

	var out []int64
	for _, e := range entries {
		if e.x == key.Point.X && e.y == key.Point.Y {
			out = append(out, e.position)
		}
	}
	return out, nil
}

// RangeSearch is a non-spatial operation; RTree raises for it — spatial
// queries belong to RangeSearchMBR/RangeSearchCircle/KNN instead.
func (rt *RTree) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	return nil, errUnsupported(types.RTree, "range_search")
}

// RangeSearchMBR returns every point inside box.
func (rt *RTree) RangeSearchMBR(box MBR) ([]int64, error) {
	root, err := rt.load()
	if err != nil {
		return nil, err
	}
	var out []int64
	searchMBR(root, box, &out)
	return out, nil
}

func searchMBR(n *rtreeNode, box MBR, out *[]int64) {
	if n == nil || !n.box.Intersects(box) {
		return
	}
	if n.leaf {
		for _, e := range n.entries {
			if box.Contains(e.x, e.y) {
				*out = append(*out, e.position)
			}
		}
		return
	}
	for _, c := range n.children {
		searchMBR(c, box, out)
	}
}

// RangeSearchCircle filters by the circle's MBR first, then an exact
// distance check.
func (rt *RTree) RangeSearchCircle(c Circle) ([]int64, error) {
	root, err := rt.load()
	if err != nil {
		return nil, err
	}
	var candidates []int64
	searchMBR(root, c.MBR(), &candidates)

	entries, err := rt.entriesAt(root, candidates)
	if err != nil {
		return nil, err
	}

	var out []int64
	for _, e := range entries {
		if c.Contains(e.x, e.y) {
			out = append(out, e.position)
		}
	}
	return out, nil
}

func (rt *RTree) entriesAt(root *rtreeNode, positions []int64) ([]rtreeEntry, error) {
	var all []rtreeEntry
	collect(root, &all)
	wanted := make(map[int64]bool, len(positions))
	for _, p := range positions {
		wanted[p] = true
	}
	var out []rtreeEntry
	for _, e := range all {
		if wanted[e.position] {
			out = append(out, e)
		}
	}
	return out, nil
}

// KNN returns the k nearest positions to (x, y) by sorting every entry
// on squared distance; acceptable given RTree's flat rebuild-per-call
// model rather than a true MBR-pruned best-first traversal.
func (rt *RTree) KNN(x, y float32, k int) ([]int64, error) {
	root, err := rt.load()
	if err != nil {
		return nil, err
	}

	var all []rtreeEntry
	collect(root, &all)
	sort.Slice(all, func(i, j int) bool {
		di := dist2(all[i].x, all[i].y, x, y)
		dj := dist2(all[j].x, all[j].y, x, y)
		return di < dj
	})

	if k > len(all) {
		k = len(all)
	}
	out := make([]int64, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].position
	}
	return out, nil
}

func dist2(x1, y1, x2, y2 float32) float32 {
	dx, dy := x1-x2, y1-y2
	return dx*dx + dy*dy
}

// GetAll returns every indexed position.
func (rt *RTree) GetAll() ([]int64, error) {
	root, err := rt.load()
	if err != nil {
		return nil, err
	}
	var entries []rtreeEntry
	collect(root, &entries)
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.position
	}
	return out, nil
}

func (rt *RTree) Clear() error {
	if err := filesys.RemoveIfExists(rt.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", rt.path)
	}
	return nil
}

func float32ToBits(f float32) uint32   { return math.Float32bits(f) }
func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }
