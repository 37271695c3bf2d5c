// Package options configures a tabula Manager: where table directories
// live on disk, and the tuning knobs each of the five index families
// exposes. It follows the functional-options pattern throughout — an
// Options value plus a set of OptionFunc constructors that mutate it.
package options

import "strings"

// IndexOptions groups the construction parameters for every index family.
// A Manager applies these whenever it builds a fresh index file for a
// newly-indexed column; they have no effect on an index already on disk.
type IndexOptions struct {
	// BTreeBranchingFactor is the number of keys per B+Tree node (B).
	BTreeBranchingFactor int `json:"btreeBranchingFactor"`

	// ISAMLeafFactor (L) is the number of entries per ISAM leaf page.
	ISAMLeafFactor int `json:"isamLeafFactor"`

	// ISAMIndexFactor (I) is the number of entries per ISAM level-1 page.
	ISAMIndexFactor int `json:"isamIndexFactor"`

	// HashBucketCapacity (B) is the number of entries per hash bucket.
	HashBucketCapacity int `json:"hashBucketCapacity"`

	// HashInitialDepth (d) is the directory's starting global depth.
	HashInitialDepth int `json:"hashInitialDepth"`

	// RTreeFanout bounds the number of children per R-Tree node.
	RTreeFanout int `json:"rtreeFanout"`
}

// Options configures a Manager instance.
type Options struct {
	// TablesRoot is the directory under which one subdirectory per table
	// is created.
	TablesRoot string `json:"tablesRoot"`

	// Index holds the per-family construction parameters.
	Index IndexOptions `json:"index"`
}

// OptionFunc mutates an Options value; used as variadic arguments to the
// Manager constructor.
type OptionFunc func(*Options)

// WithDefaultOptions resets every field to the package defaults.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		*o = NewDefaultOptions()
	}
}

// WithTablesRoot overrides where table directories are created.
func WithTablesRoot(dir string) OptionFunc {
	return func(o *Options) {
		dir = strings.TrimSpace(dir)
		if dir != "" {
			o.TablesRoot = dir
		}
	}
}

// WithBTreeBranchingFactor overrides the B+Tree's branching factor. Values
// below 3 are rejected silently (a B+Tree node needs at least one
// separator and two children to be a tree at all).
func WithBTreeBranchingFactor(b int) OptionFunc {
	return func(o *Options) {
		if b >= 3 {
			o.Index.BTreeBranchingFactor = b
		}
	}
}

// WithISAMFactors overrides ISAM's leaf factor (L) and index factor (I).
func WithISAMFactors(leafFactor, indexFactor int) OptionFunc {
	return func(o *Options) {
		if leafFactor > 0 {
			o.Index.ISAMLeafFactor = leafFactor
		}
		if indexFactor > 0 {
			o.Index.ISAMIndexFactor = indexFactor
		}
	}
}

// WithHashBucketCapacity overrides the extendible hash's per-bucket entry
// capacity.
func WithHashBucketCapacity(capacity int) OptionFunc {
	return func(o *Options) {
		if capacity > 0 {
			o.Index.HashBucketCapacity = capacity
		}
	}
}

// WithHashInitialDepth overrides the extendible hash's starting directory
// depth (2^d initial buckets).
func WithHashInitialDepth(depth int) OptionFunc {
	return func(o *Options) {
		if depth >= 0 {
			o.Index.HashInitialDepth = depth
		}
	}
}

// WithRTreeFanout overrides the R-Tree's per-node child fanout before a
// split is triggered.
func WithRTreeFanout(fanout int) OptionFunc {
	return func(o *Options) {
		if fanout >= 2 {
			o.Index.RTreeFanout = fanout
		}
	}
}
