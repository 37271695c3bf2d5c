// Hash is an extendible hash index. A directory of 2^d
// pointers addresses buckets of fixed capacity; a bucket overflow either
// splits the bucket (if its local depth is still below the directory's
// global depth) or doubles the directory first. Hashing uses the low d
// bits of github.com/zeebo/xxh3's stable 64-bit hash — fast,
// allocation-light, and stable across processes, which the on-disk
// directory layout depends on.
//
// Each bucket additionally carries a github.com/bits-and-blooms/bloom/v3
// filter so equality probes against a cold bucket on a slow disk can
// often be answered "definitely absent" without a page read — the probe
// still reads the bucket to get positions when the filter says "maybe
// present", per the filter's own false-positive contract.
package index

import (
	"encoding/binary"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/multierr"

	"github.com/iamNilotpal/tabula/internal/types"
	tabulaerrors "github.com/iamNilotpal/tabula/pkg/errors"
	"github.com/iamNilotpal/tabula/pkg/filesys"
	"github.com/zeebo/xxh3"
)

// hashMaxLocalDepth bounds bucket splitting: a bucket whose keys all hash
// identically (duplicate keys) can never be separated by more directory
// bits, so past this depth the bucket is written overfull instead of
// splitting again.
const hashMaxLocalDepth = 16

// Hash is an extendible hash index over one column.
type Hash struct {
	dirPath    string
	bktPathFn  func(bucketID int) string
	column     types.Column
	keyWidth   int
	bucketCap  int
	entrySize  int
	bucketSize int

	// filters caches one bloom filter per bucket id for the handle's
	// lifetime, letting Search reject absent keys before the bucket file
	// is read. Rebuilt bucket-by-bucket on every write.
	filters map[int]*bloom.BloomFilter
}

// HashConfig groups Hash's construction parameters.
type HashConfig struct {
	DirPath       string
	BucketPathFor func(bucketID int) string
	Column        types.Column
	BucketCap     int
	InitialDepth  int
}

func newHash(cfg HashConfig) *Hash {
	keyWidth := types.ColumnWidth(cfg.Column)
	entrySize := keyWidth + 4
	return &Hash{
		dirPath:    cfg.DirPath,
		bktPathFn:  cfg.BucketPathFor,
		column:     cfg.Column,
		keyWidth:   keyWidth,
		bucketCap:  cfg.BucketCap,
		entrySize:  entrySize,
		bucketSize: 8 + cfg.BucketCap*entrySize, // header (local_depth, size) + B entries
		filters:    make(map[int]*bloom.BloomFilter),
	}
}

// NewHash creates a fresh extendible hash index: a directory of
// 2^InitialDepth entries, each pointing at its own empty bucket.
func NewHash(cfg HashConfig) (*Hash, error) {
	h := newHash(cfg)

	dirSize := 1 << cfg.InitialDepth
	dirEntries := make([]int32, dirSize)
	for i := range dirEntries {
		dirEntries[i] = int32(i)
	}
	if err := h.writeDirectory(dirEntries); err != nil {
		return nil, err
	}

	for i := 0; i < dirSize; i++ {
		if err := h.writeBucket(i, &hashBucket{localDepth: int32(cfg.InitialDepth)}); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// OpenHash wraps an existing extendible hash index.
func OpenHash(cfg HashConfig) (*Hash, error) {
	h := newHash(cfg)
	if _, err := os.Stat(h.dirPath); err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "open_hash", h.dirPath)
	}
	return h, nil
}

func (h *Hash) Type() types.IndexType { return types.Hash }

type hashEntry struct {
	key      types.Value
	position int32
}

type hashBucket struct {
	localDepth int32
	entries    []hashEntry
}

func (h *Hash) readDirectory() ([]int32, error) {
	data, err := filesys.ReadFile(h.dirPath)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_directory", h.dirPath)
	}
	n := len(data) / 4
	dir := make([]int32, n)
	for i := 0; i < n; i++ {
		dir[i] = int32(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return dir, nil
}

func (h *Hash) writeDirectory(dir []int32) error {
	buf := make([]byte, len(dir)*4)
	for i, p := range dir {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(p))
	}
	if err := filesys.WriteFile(h.dirPath, 0644, buf); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_directory", h.dirPath)
	}
	return nil
}

func (h *Hash) readBucket(bucketID int) (*hashBucket, error) {
	path := h.bktPathFn(bucketID)
	data, err := filesys.ReadFile(path)
	if err != nil {
		return nil, tabulaerrors.ClassifyFileIOError(err, "read_bucket", path)
	}

	localDepth := int32(binary.LittleEndian.Uint32(data[0:4]))
	size := int32(binary.LittleEndian.Uint32(data[4:8]))

	entries := make([]hashEntry, 0, size)
	o := 8
	for i := int32(0); i < size; i++ {
		key, _, err := types.DecodeColumn(data[o:o+h.keyWidth], h.column)
		if err != nil {
			return nil, err
		}
		pos := int32(binary.LittleEndian.Uint32(data[o+h.keyWidth : o+h.keyWidth+4]))
		entries = append(entries, hashEntry{key: key, position: pos})
		o += h.entrySize
	}

	return &hashBucket{localDepth: localDepth, entries: entries}, nil
}

func (h *Hash) writeBucket(bucketID int, b *hashBucket) error {
	// A bucket at hashMaxLocalDepth may legitimately exceed bucketCap;
	// size the file for whichever is larger.
	size := h.bucketSize
	if needed := 8 + len(b.entries)*h.entrySize; needed > size {
		size = needed
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(b.localDepth))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(b.entries)))

	o := 8
	for _, e := range b.entries {
		encoded, err := types.EncodeColumn(nil, h.column, e.key)
		if err != nil {
			return err
		}
		copy(buf[o:o+h.keyWidth], encoded)
		binary.LittleEndian.PutUint32(buf[o+h.keyWidth:o+h.keyWidth+4], uint32(e.position))
		o += h.entrySize
	}

	path := h.bktPathFn(bucketID)
	if err := filesys.WriteFile(path, 0644, buf); err != nil {
		return tabulaerrors.ClassifyFileIOError(err, "write_bucket", path)
	}
	h.filters[bucketID] = h.bucketFilter(b)
	return nil
}

// bucketFilter builds a bloom filter over b's keys, used to cheaply
// reject probes before a bucket file is even opened for equality.
func (h *Hash) bucketFilter(b *hashBucket) *bloom.BloomFilter {
	filter := bloom.NewWithEstimates(uint(h.bucketCap+1), 0.01)
	for _, e := range b.entries {
		filter.Add(hashKeyBytes(e.key))
	}
	return filter
}

func hashKeyBytes(v types.Value) []byte {
	switch v.Type {
	case types.Varchar, types.Date:
		return []byte(v.Str)
	default:
		encoded, _ := types.EncodeColumn(nil, columnFor(v), v)
		return encoded
	}
}

func columnFor(v types.Value) types.Column {
	switch v.Type {
	case types.Varchar:
		return types.Column{Type: types.Varchar, VarcharLength: len(v.Str)}
	default:
		return types.Column{Type: v.Type}
	}
}

func stableHash(v types.Value) uint64 {
	return xxh3.Hash(hashKeyBytes(v))
}

func dirIndex(h uint64, depth int32) int {
	if depth == 0 {
		return 0
	}
	return int(h & ((1 << uint(depth)) - 1))
}

// Insert adds (position, key), splitting the bucket — or doubling the
// directory first, if the bucket's local depth has already caught up to
// the directory's global depth — on overflow.
func (h *Hash) Insert(position int64, key types.Value) error {
	dir, err := h.readDirectory()
	if err != nil {
		return err
	}
	globalDepth := depthOf(len(dir))

	bucketID := int(dir[dirIndex(stableHash(key), globalDepth)])
	bucket, err := h.readBucket(bucketID)
	if err != nil {
		return err
	}

	bucket.entries = append(bucket.entries, hashEntry{key: key, position: int32(position)})
	if len(bucket.entries) <= h.bucketCap {
		return h.writeBucket(bucketID, bucket)
	}

	return h.splitAndInsert(dir, globalDepth, bucketID, bucket)
}

func (h *Hash) splitAndInsert(dir []int32, globalDepth int32, bucketID int, bucket *hashBucket) error {
	if bucket.localDepth >= hashMaxLocalDepth {
		return h.writeBucket(bucketID, bucket)
	}

	if bucket.localDepth >= globalDepth {
		newDir := make([]int32, len(dir)*2)
		copy(newDir, dir)
		copy(newDir[len(dir):], dir)
		dir = newDir
		globalDepth++
		if err := h.writeDirectory(dir); err != nil {
			return err
		}
	}

	newLocalDepth := bucket.localDepth + 1
	newBucketID, err := h.allocBucketID(dir)
	if err != nil {
		return err
	}

	var kept, moved []hashEntry
	splitBit := int64(1) << uint(bucket.localDepth)
	for _, e := range bucket.entries {
		if int64(stableHash(e.key))&splitBit == 0 {
			kept = append(kept, e)
		} else {
			moved = append(moved, e)
		}
	}

	oldBucket := &hashBucket{localDepth: newLocalDepth, entries: kept}
	newBucket := &hashBucket{localDepth: newLocalDepth, entries: moved}

	for i, ptr := range dir {
		if int(ptr) != bucketID {
			continue
		}
		if int64(i)&splitBit != 0 {
			dir[i] = int32(newBucketID)
		}
	}

	if err := h.writeDirectory(dir); err != nil {
		return err
	}
	if err := h.writeBucket(bucketID, oldBucket); err != nil {
		return err
	}
	if err := h.writeBucket(newBucketID, newBucket); err != nil {
		return err
	}

	if len(oldBucket.entries) > h.bucketCap {
		return h.splitAndInsert(dir, globalDepth, bucketID, oldBucket)
	}
	if len(newBucket.entries) > h.bucketCap {
		return h.splitAndInsert(dir, globalDepth, newBucketID, newBucket)
	}
	return nil
}

func (h *Hash) allocBucketID(dir []int32) (int, error) {
	max := -1
	for _, p := range dir {
		if int(p) > max {
			max = int(p)
		}
	}
	return max + 1, nil
}

func depthOf(dirLen int) int32 {
	d := int32(0)
	for (1 << uint(d)) < dirLen {
		d++
	}
	return d
}

// Delete removes one entry matching key.
func (h *Hash) Delete(key types.Value) (bool, error) {
	dir, err := h.readDirectory()
	if err != nil {
		return false, err
	}
	globalDepth := depthOf(len(dir))
	bucketID := int(dir[dirIndex(stableHash(key), globalDepth)])

	bucket, err := h.readBucket(bucketID)
	if err != nil {
		return false, err
	}

	for i, e := range bucket.entries {
		cmp, err := types.Compare(e.key, key)
		if err != nil {
			return false, err
		}
		if cmp == 0 {
			bucket.entries = append(bucket.entries[:i], bucket.entries[i+1:]...)
			return true, h.writeBucket(bucketID, bucket)
		}
	}
	return false, nil
}

// Search returns every position stored under key. The bucket's cached
// bloom filter is consulted first; a "definitely absent" verdict
// short-circuits the bucket read entirely.
func (h *Hash) Search(key types.Value) ([]int64, error) {
	dir, err := h.readDirectory()
	if err != nil {
		return nil, err
	}
	globalDepth := depthOf(len(dir))
	bucketID := int(dir[dirIndex(stableHash(key), globalDepth)])

	if filter, ok := h.filters[bucketID]; ok && !filter.Test(hashKeyBytes(key)) {
		return nil, nil
	}

	bucket, err := h.readBucket(bucketID)
	if err != nil {
		return nil, err
	}
	if _, ok := h.filters[bucketID]; !ok {
		h.filters[bucketID] = h.bucketFilter(bucket)
	}

	var out []int64
	for _, e := range bucket.entries {
		cmp, err := types.Compare(e.key, key)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			out = append(out, int64(e.position))
		}
	}
	return out, nil
}

// RangeSearch is unsupported by extendible hash: buckets keep no key
// order to walk.
func (h *Hash) RangeSearch(lo types.Value, loOK bool, hi types.Value, hiOK bool) ([]int64, error) {
	return nil, errUnsupported(types.Hash, "range_search")
}

// GetAll returns every indexed position across every bucket.
func (h *Hash) GetAll() ([]int64, error) {
	dir, err := h.readDirectory()
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var out []int64
	for _, bucketID := range dir {
		if seen[int(bucketID)] {
			continue
		}
		seen[int(bucketID)] = true

		bucket, err := h.readBucket(int(bucketID))
		if err != nil {
			return nil, err
		}
		for _, e := range bucket.entries {
			out = append(out, int64(e.position))
		}
	}
	return out, nil
}

// Clear removes the directory and every bucket file it references.
// Clear removes every bucket file plus the directory file. Bucket removal
// failures are aggregated with multierr rather than returned on the
// first one, so a permission error on one bucket doesn't hide the same
// problem on the rest.
func (h *Hash) Clear() error {
	var combined error

	dir, err := h.readDirectory()
	if err == nil {
		seen := make(map[int]bool)
		for _, bucketID := range dir {
			if seen[int(bucketID)] {
				continue
			}
			seen[int(bucketID)] = true
			path := h.bktPathFn(int(bucketID))
			if err := filesys.RemoveIfExists(path); err != nil {
				combined = multierr.Append(combined, tabulaerrors.ClassifyFileIOError(err, "clear", path))
			}
		}
	}

	if err := filesys.RemoveIfExists(h.dirPath); err != nil {
		combined = multierr.Append(combined, tabulaerrors.ClassifyFileIOError(err, "clear", h.dirPath))
	}
	h.filters = make(map[int]*bloom.BloomFilter)
	return combined
}
