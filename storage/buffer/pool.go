// Package buffer implements the buffer pool manager: the cache of fixed
// page.Page frames backed by a disk.Store, replaced under an LRU-K policy.
// One mutex guards the page table, free list and replacer bookkeeping;
// page guards add latch crabbing on top of the per-page RWMutex in
// storage/page.
package buffer

import (
	"fmt"
	"log"
	"sync"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/storage/disk"
	"github.com/WJSGDBZ/busTub/storage/page"
	"github.com/WJSGDBZ/busTub/storage/replacer"
)

// PoolManager is the buffer pool manager. Every public operation takes the
// single mutex for the duration of its page-table/free-list/replacer
// bookkeeping; once a frame is identified the caller interacts with the
// page's own latch, not the pool's.
type PoolManager struct {
	mu sync.Mutex

	store    disk.Store
	replacer *replacer.LRUKReplacer

	frames    []*page.Page
	pageTable map[int64]int32 // pageID -> frame index
	freeList  []int32
}

// NewPoolManager constructs a pool of poolSize frames backed by store, with
// an LRU-K replacer using history depth k.
func NewPoolManager(poolSize int, k int, store disk.Store) *PoolManager {
	free := make([]int32, poolSize)
	frames := make([]*page.Page, poolSize)
	for i := 0; i < poolSize; i++ {
		free[i] = int32(i)
		frames[i] = page.New(config.InvalidPageID)
	}
	return &PoolManager{
		store:     store,
		replacer:  replacer.NewLRUKReplacer(poolSize, k),
		frames:    frames,
		pageTable: make(map[int64]int32, poolSize),
		freeList:  free,
	}
}

// findVictimFrame returns a frame index ready to be (re)used, preferring
// the free list before asking the replacer to evict. Returns false if no
// frame is available at all. Must be called with mu held.
func (p *PoolManager) findVictimFrame() (int32, bool) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, true
	}

	victim, ok := p.replacer.Evict()
	if !ok {
		return 0, false
	}
	fid := int32(victim)
	pg := p.frames[fid]

	if pg.IsDirty {
		pg.RLock()
		if err := p.store.WritePage(pg.ID, pg.Data); err != nil {
			log.Printf("[buffer] failed to write back dirty page %d on eviction: %v", pg.ID, err)
		}
		pg.RUnlock()
	}
	delete(p.pageTable, pg.ID)
	return fid, true
}

// NewPage allocates a fresh page id from the disk store, assigns it a
// frame, pins it and returns a write guard on the (zeroed) frame; the
// guard's PageID reports the new id.
func (p *PoolManager) NewPage() (*WritePageGuard, error) {
	p.mu.Lock()

	fid, ok := p.findVictimFrame()
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("buffer: pool exhausted, no frame available for new page")
	}

	pageID, err := p.store.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, fid)
		p.mu.Unlock()
		return nil, fmt.Errorf("buffer: failed to allocate page: %w", err)
	}

	pg := p.frames[fid]
	pg.Reset(pageID)
	pg.FrameID = fid
	pg.PinCount = 1
	pg.IsDirty = false
	p.pageTable[pageID] = fid

	p.recordAccess(fid)

	p.mu.Unlock()

	pg.Lock()
	return &WritePageGuard{pool: p, pg: pg}, nil
}

// recordAccess tells the replacer about an access to frame fid and pins it
// against eviction. fid is always a frame index this pool itself assigned,
// so the replacer rejecting it as out of range would be a bug in the pool,
// not a normal runtime condition — logged rather than propagated, the same
// as the dirty-write-back failure in findVictimFrame. Must be called with
// mu held.
func (p *PoolManager) recordAccess(fid int32) {
	if err := p.replacer.RecordAccess(replacer.FrameID(fid), replacer.AccessLookup); err != nil {
		log.Printf("[buffer] RecordAccess(%d): %v", fid, err)
	}
	if err := p.replacer.SetEvictable(replacer.FrameID(fid), false); err != nil {
		log.Printf("[buffer] SetEvictable(%d, false): %v", fid, err)
	}
}

// fetch pins pageID, loading it from disk into a frame if it is not
// already resident, and returns the frame's page without taking its latch.
// FetchPageBasic, FetchPageRead and FetchPageWrite wrap the result in a
// guard; the latter two also take the page's latch.
func (p *PoolManager) fetch(pageID int64) (*page.Page, error) {
	p.mu.Lock()

	if fid, ok := p.pageTable[pageID]; ok {
		pg := p.frames[fid]
		pg.PinCount++
		p.recordAccess(fid)
		p.mu.Unlock()
		return pg, nil
	}

	fid, ok := p.findVictimFrame()
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("buffer: pool exhausted, cannot fetch page %d", pageID)
	}

	pg := p.frames[fid]
	pg.Reset(pageID)
	pg.FrameID = fid

	if err := p.store.ReadPage(pageID, pg.Data); err != nil {
		p.freeList = append(p.freeList, fid)
		p.mu.Unlock()
		return nil, fmt.Errorf("buffer: failed to read page %d: %w", pageID, err)
	}

	pg.PinCount = 1
	p.pageTable[pageID] = fid
	p.recordAccess(fid)

	p.mu.Unlock()
	return pg, nil
}

// FetchPageBasic pins pageID and returns a BasicPageGuard, which holds the
// pin but no latch. Prefer FetchPageRead/FetchPageWrite unless a caller
// genuinely needs pin-only access (e.g. to hand the page to code that will
// manage its own latching, mirroring BusTub's BasicPageGuard).
func (p *PoolManager) FetchPageBasic(pageID int64) (*BasicPageGuard, error) {
	pg, err := p.fetch(pageID)
	if err != nil {
		return nil, err
	}
	return &BasicPageGuard{pool: p, pg: pg}, nil
}

// FetchPageRead pins pageID and returns a ReadPageGuard holding the page's
// shared latch.
func (p *PoolManager) FetchPageRead(pageID int64) (*ReadPageGuard, error) {
	pg, err := p.fetch(pageID)
	if err != nil {
		return nil, err
	}
	pg.RLock()
	return &ReadPageGuard{pool: p, pg: pg}, nil
}

// FetchPageWrite pins pageID and returns a WritePageGuard holding the
// page's exclusive latch.
func (p *PoolManager) FetchPageWrite(pageID int64) (*WritePageGuard, error) {
	pg, err := p.fetch(pageID)
	if err != nil {
		return nil, err
	}
	pg.Lock()
	return &WritePageGuard{pool: p, pg: pg}, nil
}

// unpin decrements pageID's pin count, marking it dirty if requested, and
// makes the frame evictable once the pin count reaches zero. Guards call
// this on Drop; most callers should go through a guard rather than call it
// directly.
func (p *PoolManager) unpin(pageID int64, dirty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pageID]
	if !ok {
		return
	}
	pg := p.frames[fid]
	if dirty {
		pg.IsDirty = true
	}
	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if pg.PinCount == 0 {
		if err := p.replacer.SetEvictable(replacer.FrameID(fid), true); err != nil {
			log.Printf("[buffer] SetEvictable(%d, true): %v", fid, err)
		}
	}
}

// FlushPage writes pageID to disk unconditionally, clearing its dirty flag.
// Returns false if pageID is not resident.
func (p *PoolManager) FlushPage(pageID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	pg := p.frames[fid]
	pg.RLock()
	err := p.store.WritePage(pg.ID, pg.Data)
	pg.RUnlock()
	if err != nil {
		log.Printf("[buffer] FlushPage: failed to write page %d: %v", pageID, err)
		return false
	}
	pg.Lock()
	pg.IsDirty = false
	pg.Unlock()
	return true
}

// FlushAllPages flushes every resident page.
func (p *PoolManager) FlushAllPages() {
	p.mu.Lock()
	ids := make([]int64, 0, len(p.pageTable))
	for id := range p.pageTable {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.FlushPage(id)
	}
}

// DeletePage removes pageID from the pool entirely, deallocating it on
// disk. Returns false (and does nothing) if the page is still pinned.
func (p *PoolManager) DeletePage(pageID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pageID]
	if !ok {
		return true
	}
	pg := p.frames[fid]
	if pg.PinCount > 0 {
		return false
	}

	delete(p.pageTable, pageID)
	if err := p.replacer.Remove(replacer.FrameID(fid)); err != nil {
		// PinCount is already confirmed zero above, so unpin should have
		// marked this frame evictable; a failure here means that
		// invariant broke.
		log.Printf("[buffer] Remove(%d): %v", fid, err)
	}
	pg.Reset(config.InvalidPageID)
	p.freeList = append(p.freeList, fid)

	if err := p.store.DeallocatePage(pageID); err != nil {
		log.Printf("[buffer] DeletePage: failed to deallocate page %d: %v", pageID, err)
	}
	return true
}
