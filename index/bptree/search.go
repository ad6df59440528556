package bptree

import (
	"github.com/WJSGDBZ/busTub/config"
)

// GetValue looks up key, returning its RID and true if found.
//
// Descent takes a read latch on the header page, then a read latch on the
// root, then drops the header latch — the same "drop the parent latch as
// soon as the child is latched" rule a reader uses all the way down, since
// a reader never needs to hold more than two latches at once.
func (t *BPlusTree[K]) GetValue(key K) (RID, bool, error) {
	header, err := t.bpm.FetchPageRead(t.headerPage)
	if err != nil {
		return RID{}, false, err
	}
	root := headerRoot(header.Data())
	if root == config.InvalidPageID {
		header.Drop()
		return RID{}, false, nil
	}

	cur, err := t.bpm.FetchPageRead(root)
	header.Drop()
	if err != nil {
		return RID{}, false, err
	}

	for {
		n := t.decodeAt(cur.Data())
		if n.isLeaf() {
			idx := t.findKeyIndex(n, key)
			cur.Drop()
			if idx < 0 {
				return RID{}, false, nil
			}
			return n.values[idx], true, nil
		}

		childIdx := t.findChildIndex(n, key)
		childID := n.children[childIdx]
		child, err := t.bpm.FetchPageRead(childID)
		cur.Drop()
		if err != nil {
			return RID{}, false, err
		}
		cur = child
	}
}
