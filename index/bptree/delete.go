package bptree

import (
	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/storage/buffer"
)

// Remove deletes key from the tree if present; removing an absent key is a
// no-op, not an error.
//
// Descent holds write latches the same way Insert does, except the safety
// predicate is "removing one entry still leaves this node at or above its
// minimum occupancy" — the node is "deletion-safe" and ancestors above it
// can be released early. The root is not special-cased here: whether the
// root itself is exempt from rebalancing (a leaf root has no sibling to
// merge with; an internal root that drains to one child instead has the
// header page rewritten to point at it) is decided once descent reaches
// the root, by removeFromLeaf and removeFromParent. Treating the root as
// unconditionally safe here would drop the header guard before that
// decision can be made, which either panics on a root leaf below minimum
// or corrupts an unrelated page on internal-root contraction.
func (t *BPlusTree[K]) Remove(key K) error {
	header, err := t.bpm.FetchPageWrite(t.headerPage)
	if err != nil {
		return err
	}
	root := headerRoot(header.Data())
	if root == config.InvalidPageID {
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

		var safe bool
		if n.isLeaf() {
			safe = deleteSafe(n.size, t.leafMinSize())
		} else {
			safe = deleteSafe(n.size, t.internalMinSize())
		}
		if safe {
			dropAll(guards[:len(guards)-1])
			guards = guards[len(guards)-1:]
		}

		if n.isLeaf() {
			idx := t.findKeyIndex(n, key)
			if idx < 0 {
				dropAll(guards)
				return nil
			}
			return t.removeFromLeaf(guards, n, idx)
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

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}

// removeFromLeaf removes the entry at idx from the leaf at the top of
// guards, rebalancing with a sibling (steal or merge) if that leaf drops
// below its minimum occupancy, and propagating the rebalance up through
// the remaining ancestors in guards.
func (t *BPlusTree[K]) removeFromLeaf(guards []*buffer.WritePageGuard, n *node[K], idx int) error {
	leafGuard := guards[len(guards)-1]

	n.keys = removeAt(n.keys, idx)
	n.values = removeAt(n.values, idx)
	n.size--

	if n.size >= t.leafMinSize() || (len(guards) == 2 && guards[0].PageID() == t.headerPage) {
		// guards = [header, leafRoot]: the root leaf is never merged away
		// even below min occupancy. Two guards alone are not enough to say
		// so, since descent may have trimmed them to [safe ancestor, leaf].
		encodeNode(leafGuard.Data(), n, t.codec, t.leafMax, t.internalMax)
		leafGuard.MarkDirty()
		dropAll(guards)
		return nil
	}

	parentGuard := guards[len(guards)-2]
	parent := t.decodeAt(parentGuard.Data())
	myIdx := childPosition(parent, leafGuard.PageID())

	if myIdx < parent.size {
		// Steal from or merge with the right sibling.
		rightID := parent.children[myIdx+1]
		rightGuard, err := t.bpm.FetchPageWrite(rightID)
		if err != nil {
			dropAll(guards)
			return err
		}
		right := t.decodeAt(rightGuard.Data())

		if right.size > t.leafMinSize() {
			// Steal the right sibling's first entry.
			n.keys = append(n.keys, right.keys[0])
			n.values = append(n.values, right.values[0])
			n.size++
			right.keys = removeAt(right.keys, 0)
			right.values = removeAt(right.values, 0)
			right.size--

			encodeNode(leafGuard.Data(), n, t.codec, t.leafMax, t.internalMax)
			leafGuard.MarkDirty()
			encodeNode(rightGuard.Data(), right, t.codec, t.leafMax, t.internalMax)
			rightGuard.MarkDirty()
			rightGuard.Drop()
			leafGuard.Drop()
			dropAll(guards[:len(guards)-2])
			return t.updateParentKeyAfterSteal(parentGuard, myIdx, right.keys[0])
		}

		// Merge right into n.
		n.keys = append(n.keys, right.keys...)
		n.values = append(n.values, right.values...)
		n.size += right.size
		n.next = right.next
		encodeNode(leafGuard.Data(), n, t.codec, t.leafMax, t.internalMax)
		leafGuard.MarkDirty()
		leafGuard.Drop()
		rightGuard.Drop()
		t.bpm.DeletePage(rightID)
		return t.removeFromParent(guards[:len(guards)-1], myIdx+1)
	}

	// n is the parent's last child: merge (or steal) from the left sibling.
	leftID := parent.children[myIdx-1]
	leftGuard, err := t.bpm.FetchPageWrite(leftID)
	if err != nil {
		dropAll(guards)
		return err
	}
	left := t.decodeAt(leftGuard.Data())

	if left.size > t.leafMinSize() {
		lastKey := left.keys[left.size-1]
		lastVal := left.values[left.size-1]
		left.keys = left.keys[:left.size-1]
		left.values = left.values[:left.size-1]
		left.size--

		n.keys = insertAt(n.keys, 0, lastKey)
		n.values = insertAt(n.values, 0, lastVal)
		n.size++

		encodeNode(leftGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
		leftGuard.MarkDirty()
		encodeNode(leafGuard.Data(), n, t.codec, t.leafMax, t.internalMax)
		leafGuard.MarkDirty()
		leftGuard.Drop()
		leafGuard.Drop()
		dropAll(guards[:len(guards)-2])
		return t.updateParentKeyAfterSteal(parentGuard, myIdx-1, n.keys[0])
	}

	// Merge n into left.
	left.keys = append(left.keys, n.keys...)
	left.values = append(left.values, n.values...)
	left.size += n.size
	left.next = n.next
	encodeNode(leftGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
	leftGuard.MarkDirty()
	leftGuard.Drop()
	myPageID := leafGuard.PageID()
	leafGuard.Drop()
	t.bpm.DeletePage(myPageID)
	return t.removeFromParent(guards[:len(guards)-1], myIdx)
}

// childPosition returns the index of childID within parent.children.
func childPosition[K any](parent *node[K], childID int64) int {
	for i, c := range parent.children {
		if c == childID {
			return i
		}
	}
	return -1
}

// updateParentKeyAfterSteal rewrites the separator key in parent at
// keyIdx (the key that sits between the child that stole and its
// neighbor) to newKey, then drops parentGuard. Callers drop the guards
// above parentGuard themselves before calling it.
func (t *BPlusTree[K]) updateParentKeyAfterSteal(parentGuard *buffer.WritePageGuard, keyIdx int, newKey K) error {
	parent := t.decodeAt(parentGuard.Data())
	parent.keys[keyIdx] = newKey
	encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
	parentGuard.MarkDirty()
	parentGuard.Drop()
	return nil
}

// removeFromParent removes the key/child pair at separator index sepIdx
// (the key just to the left of the removed child) from the node at the
// bottom of guards, rebalancing as removeFromLeaf does for internal
// nodes, and propagating further up as needed.
func (t *BPlusTree[K]) removeFromParent(guards []*buffer.WritePageGuard, sepIdx int) error {
	parentGuard := guards[len(guards)-1]
	parent := t.decodeAt(parentGuard.Data())

	parent.keys = removeAt(parent.keys, sepIdx-1)
	parent.children = removeAt(parent.children, sepIdx)
	parent.size--

	if len(guards) == 2 && guards[0].PageID() == t.headerPage {
		header := guards[0]
		root := guards[1]
		if root.PageID() == parentGuard.PageID() && parent.size == 0 {
			// Root contraction: promote parent's sole remaining child.
			newRoot := parent.children[0]
			oldRootID := parentGuard.PageID()
			encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
			parentGuard.MarkDirty()
			parentGuard.Drop()
			t.bpm.DeletePage(oldRootID)
			setHeaderRoot(header.Data(), newRoot)
			header.MarkDirty()
			header.Drop()
			return nil
		}
		encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
		parentGuard.MarkDirty()
		dropAll(guards)
		return nil
	}

	if parent.size >= t.internalMinSize() {
		encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
		parentGuard.MarkDirty()
		dropAll(guards)
		return nil
	}

	grandparentGuard := guards[len(guards)-2]
	grandparent := t.decodeAt(grandparentGuard.Data())
	myIdx := childPosition(grandparent, parentGuard.PageID())

	if myIdx < grandparent.size {
		rightID := grandparent.children[myIdx+1]
		rightGuard, err := t.bpm.FetchPageWrite(rightID)
		if err != nil {
			dropAll(guards)
			return err
		}
		right := t.decodeAt(rightGuard.Data())

		if right.size > t.internalMinSize() {
			pulled := grandparent.keys[myIdx]
			parent.keys = append(parent.keys, pulled)
			parent.children = append(parent.children, right.children[0])
			parent.size++
			grandparent.keys[myIdx] = right.keys[0]

			right.keys = removeAt(right.keys, 0)
			right.children = removeAt(right.children, 0)
			right.size--

			encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
			parentGuard.MarkDirty()
			encodeNode(rightGuard.Data(), right, t.codec, t.leafMax, t.internalMax)
			rightGuard.MarkDirty()
			encodeNode(grandparentGuard.Data(), grandparent, t.codec, t.leafMax, t.internalMax)
			grandparentGuard.MarkDirty()
			rightGuard.Drop()
			parentGuard.Drop()
			dropAll(guards[:len(guards)-2])
			return nil
		}

		pulled := grandparent.keys[myIdx]
		parent.keys = append(parent.keys, pulled)
		parent.keys = append(parent.keys, right.keys...)
		parent.children = append(parent.children, right.children...)
		parent.size += right.size + 1

		encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
		parentGuard.MarkDirty()
		parentGuard.Drop()
		rightGuard.Drop()
		t.bpm.DeletePage(rightID)
		return t.removeFromParent(guards[:len(guards)-1], myIdx+1)
	}

	leftID := grandparent.children[myIdx-1]
	leftGuard, err := t.bpm.FetchPageWrite(leftID)
	if err != nil {
		dropAll(guards)
		return err
	}
	left := t.decodeAt(leftGuard.Data())

	if left.size > t.internalMinSize() {
		pulled := grandparent.keys[myIdx-1]
		lastChild := left.children[left.size]
		lastKey := left.keys[left.size-1]
		left.children = left.children[:left.size]
		left.keys = left.keys[:left.size-1]
		left.size--

		parent.keys = insertAt(parent.keys, 0, pulled)
		parent.children = insertAt(parent.children, 0, lastChild)
		parent.size++
		grandparent.keys[myIdx-1] = lastKey

		encodeNode(leftGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
		leftGuard.MarkDirty()
		encodeNode(parentGuard.Data(), parent, t.codec, t.leafMax, t.internalMax)
		parentGuard.MarkDirty()
		encodeNode(grandparentGuard.Data(), grandparent, t.codec, t.leafMax, t.internalMax)
		grandparentGuard.MarkDirty()
		leftGuard.Drop()
		parentGuard.Drop()
		dropAll(guards[:len(guards)-2])
		return nil
	}

	pulled := grandparent.keys[myIdx-1]
	left.keys = append(left.keys, pulled)
	left.keys = append(left.keys, parent.keys...)
	left.children = append(left.children, parent.children...)
	left.size += parent.size + 1

	encodeNode(leftGuard.Data(), left, t.codec, t.leafMax, t.internalMax)
	leftGuard.MarkDirty()
	leftGuard.Drop()
	myPageID := parentGuard.PageID()
	parentGuard.Drop()
	t.bpm.DeletePage(myPageID)
	return t.removeFromParent(guards[:len(guards)-1], myIdx)
}
