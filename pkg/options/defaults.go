package options

const (
	// DefaultTablesRoot is where per-table directories are created when no
	// other root is configured.
	DefaultTablesRoot = "./tables"

	// DefaultBTreeBranchingFactor is the number of keys per B+Tree node.
	// Wide nodes keep the tree shallow and amortize each page read over
	// more keys; 64 fills a reasonable fraction of a 4 KiB page for the
	// key widths tabula columns produce.
	DefaultBTreeBranchingFactor = 64

	// DefaultISAMLeafFactor (L) is the number of entries per ISAM leaf page.
	DefaultISAMLeafFactor = 32

	// DefaultISAMIndexFactor (I) is the number of entries per ISAM level-1
	// index page; the static build allocates (I+1)^2 leaf pages and I+1
	// level-1 pages.
	DefaultISAMIndexFactor = 16

	// DefaultHashBucketCapacity (B) is the number of entries per
	// extendible-hash bucket before it must split.
	DefaultHashBucketCapacity = 64

	// DefaultHashInitialDepth is the directory's starting global depth (d),
	// giving 2^d initial buckets.
	DefaultHashInitialDepth = 2

	// DefaultRTreeFanout bounds the number of children per R-Tree node
	// before a Guttman-style split is triggered.
	DefaultRTreeFanout = 8
)

// defaultOptions holds the package-wide baseline configuration, copied by
// value into every NewDefaultOptions() caller.
var defaultOptions = Options{
	TablesRoot: DefaultTablesRoot,
	Index: IndexOptions{
		BTreeBranchingFactor: DefaultBTreeBranchingFactor,
		ISAMLeafFactor:       DefaultISAMLeafFactor,
		ISAMIndexFactor:      DefaultISAMIndexFactor,
		HashBucketCapacity:   DefaultHashBucketCapacity,
		HashInitialDepth:     DefaultHashInitialDepth,
		RTreeFanout:          DefaultRTreeFanout,
	},
}

// NewDefaultOptions returns a copy of the package's baseline Options.
func NewDefaultOptions() Options {
	return defaultOptions
}
