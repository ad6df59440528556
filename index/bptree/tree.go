package bptree

import (
	"fmt"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/storage/buffer"
)

// BPlusTree is a disk-backed B+tree index keyed by K, storing RID values at
// its leaves. All structural mutation goes through latch crabbing: a
// descent holds write latches on every page it might need to modify and
// releases the ones it proves it won't, the same discipline BusTub's
// b_plus_tree.cpp implements with a page-guard "context" stack.
type BPlusTree[K any] struct {
	bpm        *buffer.PoolManager
	codec      KeyCodec[K]
	compare    CompareFunc[K]
	leafMax    int
	internalMax int
	headerPage int64
}

// NewBPlusTree bootstraps a fresh tree on bpm's backing store. It must be
// the first thing to allocate a page from bpm; the header page it writes
// is expected to land at config.HeaderPageID.
func NewBPlusTree[K any](bpm *buffer.PoolManager, codec KeyCodec[K], compare CompareFunc[K], leafMax, internalMax int) (*BPlusTree[K], error) {
	g, err := bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("bptree: failed to allocate header page: %w", err)
	}
	if g.PageID() != config.HeaderPageID {
		id := g.PageID()
		g.Drop()
		return nil, fmt.Errorf("bptree: expected header page id %d, got %d; a tree must be the first page user of its store", config.HeaderPageID, id)
	}
	setHeaderRoot(g.Data(), config.InvalidPageID)
	g.MarkDirty()
	g.Drop()

	return &BPlusTree[K]{
		bpm:         bpm,
		codec:       codec,
		compare:     compare,
		leafMax:     leafMax,
		internalMax: internalMax,
		headerPage:  config.HeaderPageID,
	}, nil
}

// IsEmpty reports whether the tree currently has no root.
func (t *BPlusTree[K]) IsEmpty() (bool, error) {
	g, err := t.bpm.FetchPageRead(t.headerPage)
	if err != nil {
		return false, err
	}
	defer g.Drop()
	return headerRoot(g.Data()) == config.InvalidPageID, nil
}

func (t *BPlusTree[K]) decodeAt(data []byte) *node[K] {
	return decodeNode[K](data, t.codec, t.leafMax, t.internalMax)
}

// findChildIndex returns the index of the child an internal node n should
// descend into for key, i.e. one past the largest i such that
// n.keys[i] <= key (or 0 if key is smaller than every key).
func (t *BPlusTree[K]) findChildIndex(n *node[K], key K) int {
	// Linear scan: leafMax/internalMax default to single-digit fanouts in
	// this module, so a binary search would only add complexity.
	idx := 0
	for i := 0; i < n.size; i++ {
		if t.compare(key, n.keys[i]) >= 0 {
			idx = i + 1
		} else {
			break
		}
	}
	return idx
}

// findKeyIndex returns the index of key within a leaf's keys, or -1.
func (t *BPlusTree[K]) findKeyIndex(n *node[K], key K) int {
	for i := 0; i < n.size; i++ {
		if t.compare(n.keys[i], key) == 0 {
			return i
		}
	}
	return -1
}

// insertSafeInternal reports whether inserting into an internal node of
// current size would not force a split.
func (t *BPlusTree[K]) insertSafeInternal(size int) bool {
	return size+1 < t.internalMax
}

// insertSafeLeaf reports whether inserting into a leaf of current size
// would not force a split.
func (t *BPlusTree[K]) insertSafeLeaf(size int) bool {
	return size+1 < t.leafMax
}

// deleteSafe reports whether removing one entry from a node of current
// size (and given minimum occupancy) would not force a merge/steal.
func deleteSafe(size, min int) bool {
	return size-1 >= min
}

func (t *BPlusTree[K]) leafMinSize() int {
	return t.leafMax / 2
}

func (t *BPlusTree[K]) internalMinSize() int {
	return t.internalMax / 2
}
