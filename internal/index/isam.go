// ISAM is a static two-level sparse index built over a
// sorted snapshot of the indexed column — root page, I+1 level-1 pages,
// (I+1)^2 regular leaf pages, with overflow chains for entries that
// don't fit (either at build time, when input exceeds capacity, or from
// inserts after the structure is built).
//
// Every insert after the build locates the leaf the key would occupy
// and appends to its overflow chain; the static levels are never
// rebuilt.
package index

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
)

const isamNil int32 = -1

var isamNilVal int32 = isamNil
var isamNilU32 = uint32(isamNilVal)

// ISAM is a static two-level sparse index over one column.
type ISAM struct {
	path        string
	column      types.Column
	keyWidth    int
	leafFactor  int // L: entries per regular leaf page
	indexFactor int // I: entries per level-1/root page

	leavesPerLevel1 int
	leafCount       int // (I+1)^2

	headerSize    int
	indexPageSize int
	leafPageSize  int
	indexAreaSize int64 // root + (I+1) level-1 pages
}

// ISAMConfig groups ISAM's construction parameters.
type ISAMConfig struct {
	Path        string
	Column      types.Column
	LeafFactor  int
	IndexFactor int
}

// ISAMEntry is one (key, position) pair fed to Build.
type ISAMEntry struct {
	Key      types.Value
	Position int64
}

func newISAM(cfg ISAMConfig) *ISAM {
	keyWidth := types.ColumnWidth(cfg.Column)
	leavesPerLevel1 := cfg.IndexFactor + 1

	isam := &ISAM{
		path:            cfg.Path,
		column:          cfg.Column,
		keyWidth:        keyWidth,
		leafFactor:      cfg.LeafFactor,
		indexFactor:     cfg.IndexFactor,
		leavesPerLevel1: leavesPerLevel1,
		leafCount:       leavesPerLevel1 * leavesPerLevel1,
		headerSize:      8,
		indexPageSize:   cfg.IndexFactor * (keyWidth + 8),
		leafPageSize:    cfg.LeafFactor*(keyWidth+4) + 12,
	}
	isam.indexAreaSize = int64(isam.indexPageSize) * int64(1+leavesPerLevel1)
	return isam
}

// NewISAM creates and builds an ISAM index over entries (empty for a
// freshly created table's column).
func NewISAM(cfg ISAMConfig, entries []ISAMEntry) (*ISAM, error) {
	isam := newISAM(cfg)

	f, err := os.OpenFile(isam.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "create_isam", isam.path)
	}
	defer f.Close()

	if err := isam.build(f, entries); err != nil {
		return nil, err
	}
	return isam, nil
}

// OpenISAM wraps an existing ISAM index file.
func OpenISAM(cfg ISAMConfig) (*ISAM, error) {
	isam := newISAM(cfg)
	if _, err := os.Stat(isam.path); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_isam", isam.path)
	}
	return isam, nil
}

func (isam *ISAM) Type() types.IndexType { return types.ISAM }

// indexEntry is one (separator, left, right) triple in a root or
// level-1 page.
type indexEntry struct {
	separator types.Value
	left      int32
	right     int32
}

// leafEntry is one (key, position) pair in a leaf or overflow page.
type leafEntry struct {
	key      types.Value
	position int32
}

type leafPage struct {
	entries     []leafEntry
	next        int32
	notOverflow bool
}

// build implements Phases 1-3: copy_to_leaf_records, build_level1,
// build_root.
func (isam *ISAM) build(f *os.File, entries []ISAMEntry) error {
	sorted := append([]ISAMEntry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		cmp, _ := types.Compare(sorted[i].Key, sorted[j].Key)
		return cmp < 0
	})

	if err := writeISAMHeader(f, int32(isam.leafFactor), int32(isam.indexFactor)); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "build_isam", isam.path)
	}

	// Phase 1: regular leaf pages, tail overflow for anything beyond
	// leafCount * leafFactor.
	leafFirstKey := make([]types.Value, isam.leafCount)
	leafHasKey := make([]bool, isam.leafCount)

	capacity := isam.leafCount * isam.leafFactor
	for i := 0; i < isam.leafCount; i++ {
		lo := i * isam.leafFactor
		hi := lo + isam.leafFactor
		if lo > len(sorted) {
			lo = len(sorted)
		}
		if hi > len(sorted) {
			hi = len(sorted)
		}

		var page leafPage
		page.notOverflow = true
		page.next = isamNil

		for _, e := range sorted[lo:hi] {
			page.entries = append(page.entries, leafEntry{key: e.Key, position: int32(e.Position)})
		}

		if i == isam.leafCount-1 && len(sorted) > capacity {
			overflowEntries := sorted[capacity:]
			if err := isam.chainOverflow(f, &page, overflowEntries); err != nil {
				return err
			}
		}

		if len(page.entries) > 0 {
			leafFirstKey[i] = page.entries[0].key
			leafHasKey[i] = true
		}

		if err := isam.writeLeafPage(f, int32(i), &page); err != nil {
			return err
		}
	}

	isam.fillSyntheticKeys(leafFirstKey, leafHasKey)

	// Phase 2: level-1 pages.
	for p := 0; p < isam.leavesPerLevel1; p++ {
		var page []indexEntry
		base := p * isam.leavesPerLevel1
		for j := 0; j < isam.indexFactor; j++ {
			left := int32(base + j)
			right := int32(base + j + 1)
			page = append(page, indexEntry{separator: leafFirstKey[right], left: left, right: right})
		}
		if err := isam.writeIndexPage(f, isam.level1Offset(int32(p)), page); err != nil {
			return err
		}
	}

	// Phase 3: root page.
	var root []indexEntry
	for j := 0; j < isam.indexFactor; j++ {
		left := int32(j)
		right := int32(j + 1)
		root = append(root, indexEntry{separator: leafFirstKey[right*int32(isam.leavesPerLevel1)], left: left, right: right})
	}
	return isam.writeIndexPage(f, isam.rootOffset(), root)
}

// fillSyntheticKeys assigns a synthetic stepped key to empty tail leaves,
// for numeric columns.
func (isam *ISAM) fillSyntheticKeys(firstKey []types.Value, hasKey []bool) {
	var minV, maxV float64
	minSet := false
	count := 0
	for i, ok := range hasKey {
		if !ok {
			continue
		}
		count++
		v := numericValue(firstKey[i])
		if !minSet || v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
		minSet = true
	}

	if count < 2 || (isam.column.Type != types.Int && isam.column.Type != types.Float) {
		// No sensible numeric step; leave empty leaves at the zero Value.
		for i := range firstKey {
			if !hasKey[i] {
				firstKey[i] = zeroValueFor(isam.column)
			}
		}
		return
	}

	step := (maxV - minV) / float64(count-1)
	for i := range firstKey {
		if hasKey[i] {
			continue
		}
		synthetic := minV + step*float64(i)
		if isam.column.Type == types.Int {
			firstKey[i] = types.IntValue(int32(synthetic))
		} else {
			firstKey[i] = types.FloatValue(float32(synthetic))
		}
	}
}

func numericValue(v types.Value) float64 {
	if v.Type == types.Int {
		return float64(v.Int)
	}
	return float64(v.Float)
}

func zeroValueFor(col types.Column) types.Value {
	switch col.Type {
	case types.Int:
		return types.IntValue(0)
	case types.Float:
		return types.FloatValue(0)
	case types.Bool:
		return types.BoolValue(false)
	case types.Date:
		return types.DateValue("")
	default:
		return types.VarcharValue("")
	}
}

// chainOverflow spills entries into a linked run of overflow pages hanging
// off head. Pages are allocated and written front to back, so each page's
// next pointer is simply the following allocation.
func (isam *ISAM) chainOverflow(f *os.File, head *leafPage, entries []ISAMEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pageIdx, err := isam.allocLeafPage(f)
	if err != nil {
		return err
	}
	head.next = pageIdx

	for start := 0; start < len(entries); start += isam.leafFactor {
		end := start + isam.leafFactor
		if end > len(entries) {
			end = len(entries)
		}

		page := leafPage{next: isamNil}
		for _, e := range entries[start:end] {
			page.entries = append(page.entries, leafEntry{key: e.Key, position: int32(e.Position)})
		}
		if end < len(entries) {
			page.next = pageIdx + 1
		}

		if err := isam.writeLeafPage(f, pageIdx, &page); err != nil {
			return err
		}
		pageIdx++
	}
	return nil
}

func (isam *ISAM) rootOffset() int64 { return int64(isam.headerSize) }

func (isam *ISAM) level1Offset(page int32) int64 {
	return int64(isam.headerSize) + int64(isam.indexPageSize) + int64(page)*int64(isam.indexPageSize)
}

func (isam *ISAM) leafOffset(page int32) int64 {
	return int64(isam.headerSize) + isam.indexAreaSize + int64(page)*int64(isam.leafPageSize)
}

func (isam *ISAM) allocLeafPage(f *os.File) (int32, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, tabulaerrors.ClassifyFileIOError(err, "alloc_leaf", isam.path)
	}
	used := info.Size() - int64(isam.headerSize) - isam.indexAreaSize
	count := used / int64(isam.leafPageSize)
	if count < int64(isam.leafCount) {
		count = int64(isam.leafCount)
	}
	return int32(count), nil
}

func writeISAMHeader(f *os.File, leafFactor, indexFactor int32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(leafFactor))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(indexFactor))
	_, err := f.WriteAt(buf[:], 0)
	return err
}

func (isam *ISAM) writeIndexPage(f *os.File, offset int64, entries []indexEntry) error {
	buf := make([]byte, isam.indexPageSize)
	o := 0
	for i := 0; i < isam.indexFactor; i++ {
		if i < len(entries) {
			encoded, err := types.EncodeColumn(nil, isam.column, entries[i].separator)
			if err != nil {
				return err
			}
			copy(buf[o:o+isam.keyWidth], encoded)
			binary.LittleEndian.PutUint32(buf[o+isam.keyWidth:o+isam.keyWidth+4], uint32(entries[i].left))
			binary.LittleEndian.PutUint32(buf[o+isam.keyWidth+4:o+isam.keyWidth+8], uint32(entries[i].right))
		} else {
			binary.LittleEndian.PutUint32(buf[o+isam.keyWidth:o+isam.keyWidth+4], isamNilU32)
			binary.LittleEndian.PutUint32(buf[o+isam.keyWidth+4:o+isam.keyWidth+8], isamNilU32)
		}
		o += isam.keyWidth + 8
	}
	if _, err := f.WriteAt(buf, offset); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_index_page", isam.path)
	}
	return nil
}

func (isam *ISAM) readIndexPage(f *os.File, offset int64) ([]indexEntry, error) {
	buf := make([]byte, isam.indexPageSize)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_index_page", isam.path)
	}
	entries := make([]indexEntry, isam.indexFactor)
	o := 0
	for i := 0; i < isam.indexFactor; i++ {
		sep, _, err := types.DecodeColumn(buf[o:o+isam.keyWidth], isam.column)
		if err != nil {
			return nil, err
		}
		left := int32(binary.LittleEndian.Uint32(buf[o+isam.keyWidth : o+isam.keyWidth+4]))
		right := int32(binary.LittleEndian.Uint32(buf[o+isam.keyWidth+4 : o+isam.keyWidth+8]))
		entries[i] = indexEntry{separator: sep, left: left, right: right}
		o += isam.keyWidth + 8
	}
	return entries, nil
}

func (isam *ISAM) writeLeafPage(f *os.File, idx int32, page *leafPage) error {
	buf := make([]byte, isam.leafPageSize)
	o := 0
	for i := 0; i < isam.leafFactor; i++ {
		if i < len(page.entries) {
			encoded, err := types.EncodeColumn(nil, isam.column, page.entries[i].key)
			if err != nil {
				return err
			}
			copy(buf[o:o+isam.keyWidth], encoded)
			binary.LittleEndian.PutUint32(buf[o+isam.keyWidth:o+isam.keyWidth+4], uint32(page.entries[i].position))
		}
		o += isam.keyWidth + 4
	}
	binary.LittleEndian.PutUint32(buf[o:o+4], uint32(len(page.entries)))
	notOverflow := uint32(0)
	if page.notOverflow {
		notOverflow = 1
	}
	binary.LittleEndian.PutUint32(buf[o+4:o+8], uint32(page.next))
	binary.LittleEndian.PutUint32(buf[o+8:o+12], notOverflow)

	if _, err := f.WriteAt(buf, isam.leafOffset(idx)); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_leaf_page", isam.path)
	}
	return nil
}

func (isam *ISAM) readLeafPage(f *os.File, idx int32) (*leafPage, error) {
	buf := make([]byte, isam.leafPageSize)
	if _, err := f.ReadAt(buf, isam.leafOffset(idx)); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_leaf_page", isam.path)
	}
	o := 0
	raw := make([]leafEntry, isam.leafFactor)
	for i := 0; i < isam.leafFactor; i++ {
		key, _, err := types.DecodeColumn(buf[o:o+isam.keyWidth], isam.column)
		if err != nil {
			return nil, err
		}
		pos := int32(binary.LittleEndian.Uint32(buf[o+isam.keyWidth : o+isam.keyWidth+4]))
		raw[i] = leafEntry{key: key, position: pos}
		o += isam.keyWidth + 4
	}
	size := int32(binary.LittleEndian.Uint32(buf[o : o+4]))
	next := int32(binary.LittleEndian.Uint32(buf[o+4 : o+8]))
	notOverflow := binary.LittleEndian.Uint32(buf[o+8:o+12]) != 0

	return &leafPage{entries: raw[:size], next: next, notOverflow: notOverflow}, nil
}

// childPtr resolves which of entries' I+1 children key belongs to.
func childPtr(entries []indexEntry, key types.Value) (int32, error) {
	k, err := childIndexEntries(entries, key)
	if err != nil {
		return 0, err
	}
	if k < len(entries) {
		return entries[k].left, nil
	}
	return entries[len(entries)-1].right, nil
}

func childIndexEntries(entries []indexEntry, key types.Value) (int, error) {
	for i, e := range entries {
		cmp, err := types.Compare(key, e.separator)
		if err != nil {
			return 0, err
		}
		if cmp < 0 {
			return i, nil
		}
	}
	return len(entries), nil
}

func (isam *ISAM) locateLeaf(f *os.File, key types.Value) (int32, error) {
	root, err := isam.readIndexPage(f, isam.rootOffset())
	if err != nil {
		return 0, err
	}
	l1PageIdx, err := childPtr(root, key)
	if err != nil {
		return 0, err
	}
	l1Page, err := isam.readIndexPage(f, isam.level1Offset(l1PageIdx))
	if err != nil {
		return 0, err
	}
	return childPtr(l1Page, key)
}

// Insert appends to the overflow chain rooted at the leaf key would
// occupy; the static index levels stay untouched.
func (isam *ISAM) Insert(position int64, key types.Value) error {
	f, err := os.OpenFile(isam.path, os.O_RDWR, 0644)
	if err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "insert", isam.path)
	}
	defer f.Close()

	leafIdx, err := isam.locateLeaf(f, key)
	if err != nil {
		return err
	}

	tail := leafIdx
	for {
		page, err := isam.readLeafPage(f, tail)
		if err != nil {
			return err
		}
		if page.next == isamNil {
			break
		}
		tail = page.next
	}

	tailPage, err := isam.readLeafPage(f, tail)
	if err != nil {
		return err
	}

	if len(tailPage.entries) < isam.leafFactor {
		tailPage.entries = append(tailPage.entries, leafEntry{key: key, position: int32(position)})
		return isam.writeLeafPage(f, tail, tailPage)
	}

	newIdx, err := isam.allocLeafPage(f)
	if err != nil {
		return err
	}
	overflow := &leafPage{entries: []leafEntry{{key: key, position: int32(position)}}, next: isamNil}
	if err := isam.writeLeafPage(f, newIdx, overflow); err != nil {
		return err
	}
	tailPage.next = newIdx
	return isam.writeLeafPage(f, tail, tailPage)
}

// Delete removes one entry matching key from its leaf/overflow chain.
func (isam *ISAM) Delete(key types.Value) (bool, error) {
	f, err := os.OpenFile(isam.path, os.O_RDWR, 0644)
	if err != nil {
		return false, tabulaerrors.ClassifyFileIOError(err, "delete", isam.path)
	}
	defer f.Close()

	located, err := isam.locateLeaf(f, key)
	if err != nil {
		return false, err
	}

	for regular := located; regular >= 0; regular-- {
		sawSmaller := false
		leafIdx := regular
		for leafIdx != isamNil {
			page, err := isam.readLeafPage(f, leafIdx)
			if err != nil {
				return false, err
			}
			for i, e := range page.entries {
				cmp, err := types.Compare(e.key, key)
				if err != nil {
					return false, err
				}
				if cmp == 0 {
					page.entries = append(page.entries[:i], page.entries[i+1:]...)
					return true, isam.writeLeafPage(f, leafIdx, page)
				}
				if cmp < 0 {
					sawSmaller = true
				}
			}
			leafIdx = page.next
		}
		if sawSmaller {
			break
		}
	}
	return false, nil
}

// Search returns every position stored under key. The located leaf's
// chain is scanned first; regular leaves before it are then walked
// backwards while they keep matching, because a bulk-built run of equal
// keys can straddle a leaf boundary whose separator equals the key.
func (isam *ISAM) Search(key types.Value) ([]int64, error) {
	f, err := os.OpenFile(isam.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "search", isam.path)
	}
	defer f.Close()

	leafIdx, err := isam.locateLeaf(f, key)
	if err != nil {
		return nil, err
	}

	var out []int64
	sawSmaller, err := isam.scanChainForKey(f, leafIdx, key, &out)
	if err != nil {
		return nil, err
	}

	for prev := leafIdx - 1; prev >= 0 && !sawSmaller; prev-- {
		sawSmaller, err = isam.scanChainForKey(f, prev, key, &out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// scanChainForKey collects every position under key in the chain rooted
// at regular leaf leafIdx, reporting whether the chain holds any entry
// strictly below key — once the backward walk sees one, every earlier
// leaf is below the key's range too (build-time data is globally sorted)
// and the walk can stop.
func (isam *ISAM) scanChainForKey(f *os.File, leafIdx int32, key types.Value, out *[]int64) (bool, error) {
	sawSmaller := false
	for leafIdx != isamNil {
		page, err := isam.readLeafPage(f, leafIdx)
		if err != nil {
			return false, err
		}
		for _, e := range page.entries {
			cmp, err := types.Compare(e.key, key)
			if err != nil {
				return false, err
			}
			if cmp == 0 {
				*out = append(*out, int64(e.position))
			} else if cmp < 0 {
				sawSmaller = true
			}
		}
		leafIdx = page.next
	}
	return sawSmaller, nil
}

// RangeSearch walks regular leaf pages (and their overflow chains) in
// ascending page order starting from the page containing lo, stopping
// once keys exceed hi.
func (isam *ISAM) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	f, err := os.OpenFile(isam.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "range_search", isam.path)
	}
	defer f.Close()

	startLeaf := int32(0)
	if loOK {
		startLeaf, err = isam.locateLeaf(f, lo)
		if err != nil {
			return nil, err
		}
	}

	var out []int64

	loInRange := true
	if loOK && hiOK {
		cmp, err := types.Compare(lo, hi)
		if err != nil {
			return nil, err
		}
		loInRange = cmp <= 0
	}

	// Entries equal to lo can sit in leaves before the located one when a
	// bulk-built run of equal keys straddles a leaf boundary; walk
	// backwards until a chain dips below lo.
	for prev := startLeaf - 1; loOK && loInRange && prev >= 0; prev-- {
		sawSmaller, err := isam.scanChainForKey(f, prev, lo, &out)
		if err != nil {
			return nil, err
		}
		if sawSmaller {
			break
		}
	}

	for regular := startLeaf; regular < int32(isam.leafCount); regular++ {
		chain := regular
		exceeded := false
		for chain != isamNil {
			page, err := isam.readLeafPage(f, chain)
			if err != nil {
				return nil, err
			}
			for _, e := range page.entries {
				if loOK {
					cmp, err := types.Compare(e.key, lo)
					if err != nil {
						return nil, err
					}
					if cmp < 0 {
						continue
					}
				}
				if hiOK {
					cmp, err := types.Compare(e.key, hi)
					if err != nil {
						return nil, err
					}
					if cmp > 0 {
						exceeded = true
						continue
					}
				}
				out = append(out, int64(e.position))
			}
			chain = page.next
		}
		if exceeded {
			break
		}
	}
	return out, nil
}

// GetAll returns every indexed position.
func (isam *ISAM) GetAll() ([]int64, error) {
	return isam.RangeSearch(types.Value{}, false, types.Value{}, false)
}

func (isam *ISAM) Clear() error {
	if err := filesys.RemoveIfExists(isam.path); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "clear", isam.path)
	}
	return nil
}
