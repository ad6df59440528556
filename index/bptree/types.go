// Package bptree implements a disk-backed B+tree index over a
// storage/buffer.PoolManager, using latch crabbing for concurrent descent
// and the usual split/merge/steal rebalancing rules, with a generic key
// type and page-serialized nodes that travel through the buffer pool like
// any other page.
package bptree

import "fmt"

// RID (record id) is the value type stored at B+tree leaves: a pointer to
// a tuple's heap location. The heap/tuple representation itself is out of
// scope for this module, so RID is just the fixed page-id/slot-number pair
// a heap page would need to locate the tuple.
type RID struct {
	PageID  int64
	SlotNum int32
}

func (r RID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotNum)
}

type nodeType uint8

const (
	nodeInternal nodeType = iota
	nodeLeaf
)

// CompareFunc orders two keys the way bytes.Compare orders []byte: negative
// if a < b, zero if equal, positive if a > b.
type CompareFunc[K any] func(a, b K) int

// KeyCodec encodes and decodes a fixed-width on-page representation of a
// key. Int64Codec below is the only codec this module ships, but any
// fixed-width key type can supply its own.
type KeyCodec[K any] interface {
	Size() int
	Encode(k K, buf []byte)
	Decode(buf []byte) K
}

// Int64Codec is the KeyCodec for int64 keys, encoded big-endian two's
// complement, so byte-lexicographic order matches numeric order for
// non-negative keys only; negative keys sort after positive ones bytewise.
// The tree itself orders keys with its CompareFunc, not by raw bytes.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(k int64, buf []byte) {
	for i := 7; i >= 0; i-- {
		buf[i] = byte(k)
		k >>= 8
	}
}

func (Int64Codec) Decode(buf []byte) int64 {
	var k int64
	for i := 0; i < 8; i++ {
		k = k<<8 | int64(buf[i])
	}
	return k
}

// CompareInt64 is the natural CompareFunc for int64 keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
