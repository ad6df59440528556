// Package page defines the Page type that the disk store reads into and the
// buffer pool manager pins, latches and evicts. It deliberately carries only
// what the buffer pool and B+tree need; WAL sequence numbers and
// heap/index page-type tagging are out of scope.
package page

import (
	"sync"

	"github.com/WJSGDBZ/busTub/config"
)

// Page is one PageSize-byte frame's worth of bookkeeping: the raw bytes plus
// the pin count, dirty flag and latch the buffer pool manager and B+tree
// coordinate through. A Page's latch is the unit of crabbing: callers take
// RLock/Lock on it directly rather than through the buffer pool.
type Page struct {
	ID       int64
	FrameID  int32
	Data     []byte
	IsDirty  bool
	PinCount int32
	mu       sync.RWMutex
}

// New allocates a page with a zeroed PageSize-byte buffer.
func New(id int64) *Page {
	return &Page{
		ID:      id,
		FrameID: config.InvalidFrameID,
		Data:    make([]byte, config.PageSize),
	}
}

// Reset clears a page for reuse in a new frame, overwriting id, zeroing the
// data buffer and pin/dirty state. The buffer pool calls this after evicting
// whatever page previously occupied the frame.
func (p *Page) Reset(id int64) {
	p.ID = id
	p.IsDirty = false
	p.PinCount = 0
	for i := range p.Data {
		p.Data[i] = 0
	}
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
