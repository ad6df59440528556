package bptree

import (
	"sync"
	"testing"

	"github.com/WJSGDBZ/busTub/storage/buffer"
	"github.com/WJSGDBZ/busTub/storage/disk"
)

func newTestTree(t *testing.T, poolSize int) *BPlusTree[int64] {
	t.Helper()
	store := disk.NewMemStore()
	bpm := buffer.NewPoolManager(poolSize, 2, store)
	tree, err := NewBPlusTree[int64](bpm, Int64Codec{}, CompareInt64, 4, 4)
	if err != nil {
		t.Fatalf("NewBPlusTree: %v", err)
	}
	return tree
}

// TestInsertGetRemove inserts a handful of keys, confirms each is
// retrievable, removes one, and confirms it's gone while its neighbors
// survive.
func TestInsertGetRemove(t *testing.T) {
	tree := newTestTree(t, 16)

	keys := []int64{10, 20, 5, 40, 30, 15, 25}
	for _, k := range keys {
		if err := tree.Insert(k, RID{PageID: k, SlotNum: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	for _, k := range keys {
		rid, ok, err := tree.GetValue(k)
		if err != nil {
			t.Fatalf("GetValue(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("expected key %d to be present", k)
		}
		if rid.PageID != k {
			t.Fatalf("expected RID.PageID=%d, got %d", k, rid.PageID)
		}
	}

	if err := tree.Remove(20); err != nil {
		t.Fatalf("Remove(20): %v", err)
	}
	if _, ok, _ := tree.GetValue(20); ok {
		t.Fatalf("expected key 20 to be gone after Remove")
	}
	for _, k := range []int64{10, 5, 40, 30, 15, 25} {
		if _, ok, _ := tree.GetValue(k); !ok {
			t.Fatalf("expected key %d to survive removal of 20", k)
		}
	}
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	tree := newTestTree(t, 16)
	if err := tree.Insert(1, RID{PageID: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(1, RID{PageID: 2}); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	tree := newTestTree(t, 16)
	if err := tree.Insert(1, RID{PageID: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Remove(999); err != nil {
		t.Fatalf("Remove of absent key should not error: %v", err)
	}
}

// TestRemoveShrinksRootLeafBelowMinimum covers a root leaf that drops below
// minimum occupancy after a remove. A leaf root has no sibling to merge
// with, so it must be left below minimum rather than rebalanced.
func TestRemoveShrinksRootLeafBelowMinimum(t *testing.T) {
	tree := newTestTree(t, 16)
	if err := tree.Insert(1, RID{PageID: 1}); err != nil {
		t.Fatalf("Insert(1): %v", err)
	}
	if err := tree.Insert(2, RID{PageID: 2}); err != nil {
		t.Fatalf("Insert(2): %v", err)
	}
	// The root leaf is at leafMinSize() (2); removing one entry drops it
	// to size 1.
	if err := tree.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}
	if _, ok, _ := tree.GetValue(1); ok {
		t.Fatalf("expected key 1 to be gone")
	}
	if _, ok, _ := tree.GetValue(2); !ok {
		t.Fatalf("expected key 2 to survive")
	}
}

// TestRemoveContractsInternalRoot covers an internal root whose key count
// drops to zero after a merge, which must rewrite the header page to point
// at the sole remaining child rather than leave a degenerate one-child
// internal root in place.
func TestRemoveContractsInternalRoot(t *testing.T) {
	tree := newTestTree(t, 16)
	// leafMax=4: the fourth insert splits the root leaf in two under a new
	// internal root of size 1 (children [1,2] | key 3 | [3,4]).
	for _, k := range []int64{1, 2, 3, 4} {
		if err := tree.Insert(k, RID{PageID: k}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	// Removing 1 drains the left leaf below minimum; its right sibling is
	// merged into it, leaving the internal root with zero keys and one
	// child, which must contract.
	if err := tree.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}
	if _, ok, _ := tree.GetValue(1); ok {
		t.Fatalf("expected key 1 to be gone")
	}
	for _, k := range []int64{2, 3, 4} {
		if _, ok, _ := tree.GetValue(k); !ok {
			t.Fatalf("expected key %d to survive the root contraction", k)
		}
	}
	if err := tree.Insert(5, RID{PageID: 5}); err != nil {
		t.Fatalf("Insert(5) after contraction: %v", err)
	}
	if _, ok, _ := tree.GetValue(5); !ok {
		t.Fatalf("expected key 5 to be present after contraction")
	}
}

func TestIteratorWalksInOrder(t *testing.T) {
	tree := newTestTree(t, 16)
	inserted := []int64{50, 10, 30, 20, 40, 5, 60, 70, 1, 100}
	for _, k := range inserted {
		if err := tree.Insert(k, RID{PageID: k}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	it, err := tree.BeginFirst()
	if err != nil {
		t.Fatalf("BeginFirst: %v", err)
	}
	defer it.Close()

	var got []int64
	for it.Valid() {
		k, _ := it.Entry()
		got = append(got, k)
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	want := append([]int64{}, inserted...)
	sortInt64(want)
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at position %d: expected %d, got %d (full: %v)", i, want[i], got[i], got)
		}
	}
}

func sortInt64(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// TestConcurrentInsertsAndLookups runs many goroutines inserting and
// looking up distinct keys concurrently; it must not corrupt the tree or
// deadlock.
func TestConcurrentInsertsAndLookups(t *testing.T) {
	tree := newTestTree(t, 32)

	const goroutines = 8
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perGoroutine; i++ {
				key := base*1000 + i
				if err := tree.Insert(key, RID{PageID: key}); err != nil {
					t.Errorf("Insert(%d): %v", key, err)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		for i := int64(0); i < perGoroutine; i++ {
			key := int64(g)*1000 + i
			if _, ok, err := tree.GetValue(key); err != nil || !ok {
				t.Fatalf("expected key %d present after concurrent insert, ok=%v err=%v", key, ok, err)
			}
		}
	}
}
