package buffer

import (
	"testing"

	"github.com/WJSGDBZ/busTub/storage/disk"
)

// TestEvictionWritesBackExactlyOnce forces a pool of size 1 to evict a
// dirty page and checks it's written back exactly once.
func TestEvictionWritesBackExactlyOnce(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(1, 2, store)

	g0, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	page0 := g0.PageID()
	copy(g0.Data(), []byte("hello"))
	g0.MarkDirty()
	g0.Drop()

	g1, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage (forces eviction of page 0): %v", err)
	}
	g1.Drop()

	if got := store.WriteCount(page0); got != 1 {
		t.Fatalf("expected exactly one write-back for page %d, got %d", page0, got)
	}
	data, ok := store.Snapshot(page0)
	if !ok {
		t.Fatalf("expected page %d to have been written to disk", page0)
	}
	if string(data[:5]) != "hello" {
		t.Fatalf("expected written-back data to be 'hello', got %q", data[:5])
	}
}

func TestFetchPageHitsPageTableWithoutEviction(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(2, 2, store)

	g, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := g.PageID()
	copy(g.Data(), []byte("x"))
	g.MarkDirty()
	g.Drop()

	rg, err := pool.FetchPageRead(id)
	if err != nil {
		t.Fatalf("FetchPageRead: %v", err)
	}
	if rg.Data()[0] != 'x' {
		t.Fatalf("expected fetched data to match what was written")
	}
	rg.Drop()
}

func TestUnpinnedPageIsNotEvictedWhileStillPinned(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(1, 2, store)

	g0, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id0 := g0.PageID()
	// Do not drop g0: it remains pinned.

	if _, err := pool.NewPage(); err == nil {
		t.Fatalf("expected NewPage to fail: pool exhausted with only page pinned")
	}
	g0.Drop()
	_ = id0
}

func TestDeletePageFailsWhilePinned(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(2, 2, store)

	g, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := g.PageID()

	if pool.DeletePage(id) {
		t.Fatalf("expected DeletePage to fail while page is pinned")
	}
	g.Drop()
	if !pool.DeletePage(id) {
		t.Fatalf("expected DeletePage to succeed once unpinned")
	}
}

// TestWriteGuardDropWithoutMarkDirtyDoesNotWriteBack checks that a page
// taken under a write latch but never mutated isn't flushed on eviction:
// WritePageGuard.Drop must not imply dirty just because the caller held
// the exclusive latch.
func TestWriteGuardDropWithoutMarkDirtyDoesNotWriteBack(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(1, 2, store)

	g0, err := pool.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	page0 := g0.PageID()
	g0.Drop() // never called MarkDirty

	wg, err := pool.FetchPageWrite(page0)
	if err != nil {
		t.Fatalf("FetchPageWrite: %v", err)
	}
	wg.Drop() // again, no MarkDirty

	if _, err := pool.NewPage(); err != nil {
		t.Fatalf("NewPage (forces eviction of page %d): %v", page0, err)
	}

	if got := store.WriteCount(page0); got != 0 {
		t.Fatalf("expected no write-back for an unmutated page, got %d", got)
	}
}

func TestFlushAllPagesWritesDirtyPages(t *testing.T) {
	store := disk.NewMemStore()
	pool := NewPoolManager(3, 2, store)

	var ids []int64
	for i := 0; i < 3; i++ {
		g, err := pool.NewPage()
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		copy(g.Data(), []byte{byte('a' + i)})
		g.MarkDirty()
		ids = append(ids, g.PageID())
		g.Drop()
	}

	pool.FlushAllPages()

	for i, id := range ids {
		data, ok := store.Snapshot(id)
		if !ok {
			t.Fatalf("expected page %d to be flushed", id)
		}
		if data[0] != byte('a'+i) {
			t.Fatalf("page %d: expected %c, got %c", id, byte('a'+i), data[0])
		}
	}
}
