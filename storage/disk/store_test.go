package disk

import (
	"path/filepath"
	"testing"

	"github.com/WJSGDBZ/busTub/config"
)

func TestFileStoreAllocateIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer s.Close()

	for i := int64(0); i < 5; i++ {
		id, err := s.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		if id != i {
			t.Fatalf("AllocatePage: expected %d, got %d", i, id)
		}
	}
}

func TestFileStoreWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}

	id, _ := s.AllocatePage()
	buf := make([]byte, config.PageSize)
	buf[0] = 0xAB
	buf[config.PageSize-1] = 0xCD
	if err := s.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify persistence.
	s2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got := make([]byte, config.PageSize)
	if err := s2.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got[0] != 0xAB || got[config.PageSize-1] != 0xCD {
		t.Fatalf("roundtrip mismatch: got[0]=%x got[last]=%x", got[0], got[config.PageSize-1])
	}
}

func TestFileStoreReadUnwrittenPageIsZeroed(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenFileStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	defer s.Close()

	id, _ := s.AllocatePage()
	buf := make([]byte, config.PageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	if err := s.ReadPage(id, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("expected zeroed page at %d, got %x", i, b)
		}
	}
}

func TestMemStoreWriteCount(t *testing.T) {
	s := NewMemStore()
	id, _ := s.AllocatePage()
	buf := make([]byte, config.PageSize)

	if err := s.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := s.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if got := s.WriteCount(id); got != 2 {
		t.Fatalf("expected 2 writes, got %d", got)
	}
}

func TestMemStoreDeallocate(t *testing.T) {
	s := NewMemStore()
	id, _ := s.AllocatePage()
	buf := make([]byte, config.PageSize)
	buf[0] = 1
	if err := s.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := s.DeallocatePage(id); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}
	if _, ok := s.Snapshot(id); ok {
		t.Fatalf("expected page %d to be gone after deallocate", id)
	}
}
