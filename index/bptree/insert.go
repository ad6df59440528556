package bptree

import (
	"fmt"
	"sort"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/storage/buffer"
)

// Insert adds key/value to the tree. Inserting a key already present
// returns an error rather than overwriting: this index enforces unique
// keys.
//
// Descent holds a write latch on every page that might still need
// splitting and releases ancestors the moment a node is proven "safe" —
// current size plus one entry still fits under its max size — the same
// crabbing rule BusTub's Context/page-guard stack implements.
func (t *BPlusTree[K]) Insert(key K, value RID) error {
	header, err := t.bpm.FetchPageWrite(t.headerPage)
	if err != nil {
		return err
	}
	root := headerRoot(header.Data())

	if root == config.InvalidPageID {
		leafGuard, err := t.bpm.NewPage()
		if err != nil {
			header.Drop()
			return err
		}
		leaf := &node[K]{kind: nodeLeaf, size: 1, next: config.InvalidPageID, keys: []K{key}, values: []RID{value}}
		encodeNode(leafGuard.Data(), leaf, t.codec, t.leafMax, t.internalMax)
		leafGuard.MarkDirty()
		leafGuard.Drop()

		setHeaderRoot(header.Data(), leafGuard.PageID())
		header.MarkDirty()
		header.Drop()
		return nil
	}

	guards := []*buffer.WritePageGuard{header}
	cur, err := t.bpm.FetchPageWrite(root)
	if err != nil {
		dropAll(guards)
		return err
	}
	guards = append(guards, cur)

	for {
		n := t.decodeAt(cur.Data())
		safe := false
		if n.isLeaf() {
			safe = t.insertSafeLeaf(n.size)
		} else {
			safe = t.insertSafeInternal(n.size)
		}
		if safe {
			dropAll(guards[:len(guards)-1])
			guards = guards[len(guards)-1:]
		}

		if n.isLeaf() {
			if t.findKeyIndex(n, key) >= 0 {
				dropAll(guards)
				return fmt.Errorf("bptree: key already exists")
			}
			return t.insertIntoLeaf(guards, n, key, value)
		}

		childIdx := t.findChildIndex(n, key)
		childID := n.children[childIdx]
		child, err := t.bpm.FetchPageWrite(childID)
		if err != nil {
			dropAll(guards)
			return err
		}
		guards = append(guards, child)
		cur = child
	}
}

func dropAll(guards []*buffer.WritePageGuard) {
	for _, g := range guards {
		g.Drop()
	}
}

// insertIntoLeaf inserts key/value into the already-latched leaf at the top
// of guards, splitting and propagating up through the remaining ancestors
// in guards as needed.
func (t *BPlusTree[K]) insertIntoLeaf(guards []*buffer.WritePageGuard, n *node[K], key K, value RID) error {
	leafGuard := guards[len(guards)-1]

	pos := sort.Search(n.size, func(i int) bool { return t.compare(n.keys[i], key) >= 0 })
	n.keys = insertAt(n.keys, pos, key)
	n.values = insertAt(n.values, pos, value)
	n.size++

	if n.size < t.leafMax {
		encodeNode(leafGuard.Data(), n, t.codec, t.leafMax, t.internalMax)
		leafGuard.MarkDirty()
		dropAll(guards)
		return nil
	}

	// Split: right half moves to a new leaf; its first key is promoted.
	mid := n.size / 2
	rightGuard, err := t.bpm.NewPage()
	if err != nil {
		dropAll(guards)
		return err
	}
	right := &node[K]{
		kind:   nodeLeaf,
		size:   n.size - mid,
		next:   n.next,
		keys:   append([]K{}, n.keys[mid:]...),
		values: append([]RID{}, n.values[mid:]...),
	}
	left := &node[K]{
		kind:   nodeLeaf,
		size:   mid,
		next:   rightGuard.PageID(),
		keys:   append([]K{}, n.keys[:mid]...),
		values: append([]RID{}, n.values[:mid]...),
	}
	encodeNode(rightGuard.Data(), right, t.codec, t.leafMax, t.internalMax)
	rightGuard.MarkDirty()
	rightID := rightGuard.PageID()
	rightGuard.Drop()

	encodeNode(leafGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
	leafGuard.MarkDirty()
	leftID := leafGuard.PageID()
	leafGuard.Drop()

	promoted := right.keys[0]
	return t.insertIntoParent(guards[:len(guards)-1], leftID, promoted, rightID)
}

// insertIntoParent inserts a (promotedKey, rightChild) pair into the parent
// of leftChild, which is the bottom of guards. Ancestor-trimming during
// descent can leave guards holding just one entry without that entry being
// the header — so "no parent" is decided by page identity against
// t.headerPage, not by len(guards).
func (t *BPlusTree[K]) insertIntoParent(guards []*buffer.WritePageGuard, leftChild int64, promotedKey K, rightChild int64) error {
	bottom := guards[len(guards)-1]
	if bottom.PageID() == t.headerPage {
		// leftChild had no parent. Create a new root.
		header := bottom
		rootGuard, err := t.bpm.NewPage()
		if err != nil {
			header.Drop()
			return err
		}
		root := &node[K]{kind: nodeInternal, size: 1, keys: []K{promotedKey}, children: []int64{leftChild, rightChild}}
		encodeNode(rootGuard.Data(), root, t.codec, t.leafMax, t.internalMax)
		rootGuard.MarkDirty()
		rootGuard.Drop()

		setHeaderRoot(header.Data(), rootGuard.PageID())
		header.MarkDirty()
		header.Drop()
		return nil
	}

	parentGuard := bottom
	parent := t.decodeAt(parentGuard.Data())

	idx := 0
	for i, c := range parent.children {
		if c == leftChild {
			idx = i
			break
		}
	}
	parent.keys = insertAt(parent.keys, idx, promotedKey)
	parent.children = insertAt(parent.children, idx+1, rightChild)
	parent.size++

	if parent.size < t.internalMax {
		encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
		parentGuard.MarkDirty()
		dropAll(guards)
		return nil
	}

	// Split the internal node: the midpoint key is pulled up rather than
	// copied (unlike a leaf split, where the promoted key stays duplicated
	// in the right sibling).
	mid := parent.size / 2
	pulledUp := parent.keys[mid]

	rightGuard, err := t.bpm.NewPage()
	if err != nil {
		dropAll(guards)
		return err
	}
	right := &node[K]{
		kind:     nodeInternal,
		size:     parent.size - mid - 1,
		keys:     append([]K{}, parent.keys[mid+1:]...),
		children: append([]int64{}, parent.children[mid+1:]...),
	}
	left := &node[K]{
		kind:     nodeInternal,
		size:     mid,
		keys:     append([]K{}, parent.keys[:mid]...),
		children: append([]int64{}, parent.children[:mid+1]...),
	}
	encodeNode(rightGuard.Data(), right, t.codec, t.leafMax, t.internalMax)
	rightGuard.MarkDirty()
	rightID := rightGuard.PageID()
	rightGuard.Drop()

	encodeNode(parentGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
	parentGuard.MarkDirty()
	leftID := parentGuard.PageID()
	parentGuard.Drop()

	return t.insertIntoParent(guards[:len(guards)-1], leftID, pulledUp, rightID)
}

// insertAt inserts v at index i in s, shifting later elements right.
func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
