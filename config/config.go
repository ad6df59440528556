// Package config holds the compile-time constants shared by the storage,
// index and lock-manager packages. There is no runtime parsing here; this
// module is a library, not a server, and the handful of knobs it exposes
// (page size, default pool size, default LRU-K history depth) are plain
// constants rather than a loaded configuration object.
package config

const (
	// PageSize is the fixed size, in bytes, of every page moved between the
	// buffer pool and the disk store.
	PageSize = 4096

	// InvalidPageID is the sentinel meaning "no page" (empty tree, absent
	// child, end of leaf chain).
	InvalidPageID int64 = -1

	// InvalidFrameID is the sentinel for "no frame assigned".
	InvalidFrameID int32 = -1

	// InvalidTxnID is the sentinel used by the lock manager for "no
	// transaction is upgrading this queue" and similar absent-id markers.
	InvalidTxnID int64 = -1
)

const (
	// DefaultPoolSize is the frame count used when callers don't size the
	// buffer pool explicitly (mainly tests and the demo command).
	DefaultPoolSize = 16

	// DefaultReplacerK is the K used by the LRU-K replacer when not
	// otherwise specified.
	DefaultReplacerK = 2

	// DefaultLeafMaxSize and DefaultInternalMaxSize are the B+tree fanout
	// defaults; small enough that tests exercise splits/merges without
	// inserting thousands of keys.
	DefaultLeafMaxSize     = 4
	DefaultInternalMaxSize = 4
)

// HeaderPageID is the fixed page id of the B+tree's header page, which
// holds nothing but the current root page id. It is allocated once, before
// any other page, by whoever bootstraps a tree's backing disk store.
const HeaderPageID int64 = 0

// DeadlockDetectionIntervalMillis is how often, in milliseconds, the
// background deadlock detector wakes up to rebuild the wait-for graph and
// look for cycles.
const DeadlockDetectionIntervalMillis = 50
