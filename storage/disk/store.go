// Package disk is the external page store the buffer pool manager reads
// from and writes to. It is deliberately the thinnest layer in this module:
// allocate a page id, read a page's bytes, write a page's bytes, deallocate
// a page id. Everything else (caching, pinning, latching) lives one layer
// up in storage/buffer.
package disk

import (
	"fmt"
	"os"
	"sync"

	"github.com/WJSGDBZ/busTub/config"
)

// Store is the interface the buffer pool manager depends on. Depending on
// an interface here, rather than a concrete *FileStore, lets tests swap in
// MemStore without touching the buffer pool at all.
type Store interface {
	AllocatePage() (int64, error)
	ReadPage(pageID int64, buf []byte) error
	WritePage(pageID int64, buf []byte) error
	DeallocatePage(pageID int64) error
}

// FileStore is a single-file, page-addressed disk store: a flat,
// monotonically increasing page id over one ReadAt/WriteAt-backed file,
// with no catalog or multi-file indirection.
type FileStore struct {
	mu         sync.Mutex
	file       *os.File
	nextPageID int64
}

var _ Store = (*FileStore)(nil)

// OpenFileStore opens (creating if necessary) the backing file at path.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: failed to open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: failed to stat %s: %w", path, err)
	}
	return &FileStore{
		file:       f,
		nextPageID: stat.Size() / config.PageSize,
	}, nil
}

// AllocatePage reserves the next page id. It does not touch the file; the
// buffer pool writes the page out later when it is flushed or evicted.
func (s *FileStore) AllocatePage() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextPageID
	s.nextPageID++
	return id, nil
}

func (s *FileStore) ReadPage(pageID int64, buf []byte) error {
	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: ReadPage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := pageID * config.PageSize
	n, err := s.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		// A page that was allocated but never written back yet (e.g. a
		// brand-new page still resident and dirty in the buffer pool) reads
		// as all zeros rather than an error.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (s *FileStore) WritePage(pageID int64, buf []byte) error {
	if len(buf) != config.PageSize {
		return fmt.Errorf("disk: WritePage buffer must be %d bytes, got %d", config.PageSize, len(buf))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := pageID * config.PageSize
	if _, err := s.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("disk: failed to write page %d: %w", pageID, err)
	}
	return nil
}

// DeallocatePage is a no-op at the file level: the buffer pool manager
// calls this on page delete, but the space is not reclaimed or the file
// shrunk.
func (s *FileStore) DeallocatePage(pageID int64) error {
	return nil
}

// Close syncs and closes the backing file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.file.Close()
}
