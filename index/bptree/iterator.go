package bptree

import "github.com/WJSGDBZ/busTub/config"

// Iterator walks a range of the tree's leaves in key order. It holds one
// leaf's read latch at a time, except while Next crosses to the next leaf:
// the next leaf's latch is taken before the current one is released — the
// same "pass the baton" discipline search descent uses, just applied
// sideways across the leaf chain rather than downward through internal
// nodes.
type Iterator[K any] struct {
	tree    *BPlusTree[K]
	guard   *readGuardLike
	pos     int
	keys    []K
	values  []RID
	next    int64
	done    bool
}

// readGuardLike narrows the buffer package's ReadPageGuard down to the one
// method the iterator needs, so this file doesn't have to import the
// buffer package's guard type directly in its field declarations.
type readGuardLike struct {
	drop func()
}

// Begin returns an iterator positioned at the first leaf entry whose key is
// >= key, or an exhausted iterator if no such entry exists.
func (t *BPlusTree[K]) Begin(key K) (*Iterator[K], error) {
	header, err := t.bpm.FetchPageRead(t.headerPage)
	if err != nil {
		return nil, err
	}
	root := headerRoot(header.Data())
	if root == config.InvalidPageID {
		header.Drop()
		return &Iterator[K]{tree: t, done: true}, nil
	}

	cur, err := t.bpm.FetchPageRead(root)
	header.Drop()
	if err != nil {
		return nil, err
	}

	for {
		n := t.decodeAt(cur.Data())
		if n.isLeaf() {
			pos := 0
			for pos < n.size && t.compare(n.keys[pos], key) < 0 {
				pos++
			}
			it := &Iterator[K]{
				tree:   t,
				guard:  &readGuardLike{drop: cur.Drop},
				pos:    pos,
				keys:   n.keys,
				values: n.values,
				next:   n.next,
			}
			if pos >= len(it.keys) {
				// Every key in this leaf is < key; the first entry >= key,
				// if any, starts the next leaf.
				it.pos = len(it.keys) - 1
				if err := it.Next(); err != nil {
					return nil, err
				}
			}
			return it, nil
		}
		idx := t.findChildIndex(n, key)
		child, err := t.bpm.FetchPageRead(n.children[idx])
		cur.Drop()
		if err != nil {
			return nil, err
		}
		cur = child
	}
}

// BeginFirst returns an iterator positioned at the tree's first entry.
func (t *BPlusTree[K]) BeginFirst() (*Iterator[K], error) {
	header, err := t.bpm.FetchPageRead(t.headerPage)
	if err != nil {
		return nil, err
	}
	root := headerRoot(header.Data())
	if root == config.InvalidPageID {
		header.Drop()
		return &Iterator[K]{tree: t, done: true}, nil
	}
	cur, err := t.bpm.FetchPageRead(root)
	header.Drop()
	if err != nil {
		return nil, err
	}
	for {
		n := t.decodeAt(cur.Data())
		if n.isLeaf() {
			it := &Iterator[K]{
				tree:   t,
				guard:  &readGuardLike{drop: cur.Drop},
				pos:    0,
				keys:   n.keys,
				values: n.values,
				next:   n.next,
			}
			it.done = len(it.keys) == 0
			return it, nil
		}
		child, err := t.bpm.FetchPageRead(n.children[0])
		cur.Drop()
		if err != nil {
			return nil, err
		}
		cur = child
	}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator[K]) Valid() bool { return !it.done }

// Entry returns the iterator's current key and value. Only valid to call
// when Valid() is true.
func (it *Iterator[K]) Entry() (K, RID) {
	return it.keys[it.pos], it.values[it.pos]
}

// Next advances the iterator, crossing into the next leaf via its next
// pointer if the current leaf is exhausted.
func (it *Iterator[K]) Next() error {
	it.pos++
	if it.pos < len(it.keys) {
		return nil
	}
	if it.next == config.InvalidPageID {
		it.done = true
		it.Close()
		return nil
	}

	g, err := it.tree.bpm.FetchPageRead(it.next)
	it.Close()
	if err != nil {
		return err
	}
	n := it.tree.decodeAt(g.Data())
	it.guard = &readGuardLike{drop: g.Drop}
	it.pos = 0
	it.keys = n.keys
	it.values = n.values
	it.next = n.next
	it.done = len(it.keys) == 0
	return nil
}

// Close releases the iterator's held leaf latch, if any. Safe to call more
// than once.
func (it *Iterator[K]) Close() {
	if it.guard != nil {
		it.guard.drop()
		it.guard = nil
	}
}
