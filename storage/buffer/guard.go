package buffer

import "github.com/WJSGDBZ/busTub/storage/page"

// BasicPageGuard holds a page's pin without any latch. Its Drop releases
// the pin exactly once; calling Drop twice is a no-op.
type BasicPageGuard struct {
	pool    *PoolManager
	pg      *page.Page
	dropped bool
}

// PageID returns the guarded page's id.
func (g *BasicPageGuard) PageID() int64 { return g.pg.ID }

// Data returns the guarded page's raw bytes.
func (g *BasicPageGuard) Data() []byte { return g.pg.Data }

// MarkDirty flags the guarded page dirty, to be written back on eviction
// or an explicit flush.
func (g *BasicPageGuard) MarkDirty() { g.pg.IsDirty = true }

// Drop releases the guard's pin on the page. Safe to call multiple times.
func (g *BasicPageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.pool.unpin(g.pg.ID, false)
}

// ReadPageGuard holds a page's pin plus its shared latch. Drop releases the
// latch before the pin, matching the order required when a chain of
// guards is unwound during B+tree descent: a reader downstream must be
// able to acquire the latch the instant it is released, before the pin
// count bookkeeping runs.
type ReadPageGuard struct {
	pool    *PoolManager
	pg      *page.Page
	dropped bool
}

func (g *ReadPageGuard) PageID() int64 { return g.pg.ID }
func (g *ReadPageGuard) Data() []byte  { return g.pg.Data }

// Drop releases the latch, then the pin. Safe to call multiple times.
func (g *ReadPageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.pg.RUnlock()
	g.pool.unpin(g.pg.ID, false)
}

// WritePageGuard holds a page's pin plus its exclusive latch. Unlike the
// other guards, whether it unpins dirty depends on whether the caller
// actually mutated the page, tracked by its own dirty flag rather than
// assumed from having held the write latch.
type WritePageGuard struct {
	pool    *PoolManager
	pg      *page.Page
	dropped bool
	dirty   bool
}

func (g *WritePageGuard) PageID() int64 { return g.pg.ID }
func (g *WritePageGuard) Data() []byte  { return g.pg.Data }

// MarkDirty flags the page as modified, to be written back on eviction or
// an explicit flush.
func (g *WritePageGuard) MarkDirty() {
	g.dirty = true
	g.pg.IsDirty = true
}

// AsBasic releases this guard's latch and returns an un-latched
// BasicPageGuard holding the same pin, used when a caller needs to hand the
// page off without keeping it latched.
func (g *WritePageGuard) AsBasic() *BasicPageGuard {
	if g.dropped {
		return &BasicPageGuard{pool: g.pool, pg: g.pg, dropped: true}
	}
	g.dropped = true
	g.pg.Unlock()
	return &BasicPageGuard{pool: g.pool, pg: g.pg}
}

// Drop releases the latch, then the pin. Safe to call multiple times.
func (g *WritePageGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.pg.Unlock()
	g.pool.unpin(g.pg.ID, g.dirty)
}
