package bptree

import (
	"encoding/binary"
)

// Page layout, fixed regardless of node type so a page's header can always
// be read without knowing in advance what it contains:
//
//	byte 0         node type (0 = internal, 1 = leaf)
//	bytes 1:5      int32 size (number of keys currently stored)
//	bytes 5:13     int64 next leaf page id (leaf only; unused by internal)
//	bytes 24:...   size_t keys, each codec.Size() bytes, in slots reserved
//	               for up to maxSize keys
//	after keys:    leaf: up to maxSize RIDs (12 bytes each: int64 + int32)
//	               internal: up to maxSize+1 child page ids (int64 each)
const (
	offNodeType = 0
	offSize     = 1
	offNext     = 5
	offKeys     = 24
	ridSize     = 12
)

type node[K any] struct {
	kind     nodeType
	size     int
	next     int64   // leaf only
	keys     []K     // len == size
	values   []RID   // leaf only, len == size
	children []int64 // internal only, len == size+1
}

func (n *node[K]) isLeaf() bool { return n.kind == nodeLeaf }

// decodeNode reads a node out of buf. The node's kind, and so whether RIDs
// or child page ids follow the keys, is taken from the stored type byte.
func decodeNode[K any](buf []byte, codec KeyCodec[K], leafMax, internalMax int) *node[K] {
	kind := nodeType(buf[offNodeType])
	size := int(binary.BigEndian.Uint32(buf[offSize : offSize+4]))

	n := &node[K]{kind: kind, size: size}
	keySize := codec.Size()
	keys := make([]K, size)
	for i := 0; i < size; i++ {
		keys[i] = codec.Decode(buf[offKeys+i*keySize : offKeys+(i+1)*keySize])
	}
	n.keys = keys

	if kind == nodeLeaf {
		n.next = int64(binary.BigEndian.Uint64(buf[offNext : offNext+8]))
		valuesOff := offKeys + leafMax*keySize
		values := make([]RID, size)
		for i := 0; i < size; i++ {
			off := valuesOff + i*ridSize
			values[i] = RID{
				PageID:  int64(binary.BigEndian.Uint64(buf[off : off+8])),
				SlotNum: int32(binary.BigEndian.Uint32(buf[off+8 : off+12])),
			}
		}
		n.values = values
	} else {
		childrenOff := offKeys + internalMax*keySize
		children := make([]int64, size+1)
		for i := 0; i <= size; i++ {
			off := childrenOff + i*8
			children[i] = int64(binary.BigEndian.Uint64(buf[off : off+8]))
		}
		n.children = children
	}
	return n
}

// encodeNode writes n into buf, which must be config.PageSize bytes.
func encodeNode[K any](buf []byte, n *node[K], codec KeyCodec[K], leafMax, internalMax int) {
	for i := range buf {
		buf[i] = 0
	}
	buf[offNodeType] = byte(n.kind)
	binary.BigEndian.PutUint32(buf[offSize:offSize+4], uint32(n.size))

	keySize := codec.Size()
	for i, k := range n.keys {
		codec.Encode(k, buf[offKeys+i*keySize:offKeys+(i+1)*keySize])
	}

	if n.isLeaf() {
		binary.BigEndian.PutUint64(buf[offNext:offNext+8], uint64(n.next))
		valuesOff := offKeys + leafMax*keySize
		for i, v := range n.values {
			off := valuesOff + i*ridSize
			binary.BigEndian.PutUint64(buf[off:off+8], uint64(v.PageID))
			binary.BigEndian.PutUint32(buf[off+8:off+12], uint32(v.SlotNum))
		}
	} else {
		childrenOff := offKeys + internalMax*keySize
		for i, c := range n.children {
			off := childrenOff + i*8
			binary.BigEndian.PutUint64(buf[off:off+8], uint64(c))
		}
	}
}

// headerRoot decodes the root page id stored in the tree's header page.
func headerRoot(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf[0:8]))
}

func setHeaderRoot(buf []byte, root int64) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(root))
}
