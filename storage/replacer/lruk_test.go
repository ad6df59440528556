package replacer

import "testing"

// TestEvictPrefersLargestKDistance uses K=2, capacity 5 (frame ids 0..4),
// access sequence 1,2,3,4,1,2,1,2,1,2 (frames 1-4 evictable), and expects
// frame 3 to be the first victim: frames 3 and 4 each have a single access
// and so infinite k-distance, and frame 3's access came first.
func TestEvictPrefersLargestKDistance(t *testing.T) {
	r := NewLRUKReplacer(5, 2)

	for _, f := range []FrameID{1, 2, 3, 4, 1, 2, 1, 2, 1, 2} {
		if err := r.RecordAccess(f, AccessUnknown); err != nil {
			t.Fatalf("RecordAccess(%d): %v", f, err)
		}
	}
	for _, f := range []FrameID{1, 2, 3, 4} {
		if err := r.SetEvictable(f, true); err != nil {
			t.Fatalf("SetEvictable(%d): %v", f, err)
		}
	}

	victim, ok := r.Evict()
	if !ok {
		t.Fatalf("expected a victim")
	}
	if victim != 3 {
		t.Fatalf("expected frame 3 to be evicted, got %d", victim)
	}
}

func TestEvictSkipsUnevictableFrames(t *testing.T) {
	r := NewLRUKReplacer(3, 2)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, false)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 2 {
		t.Fatalf("expected frame 2, got %d ok=%v", victim, ok)
	}
}

func TestEvictReturnsFalseWhenEmpty(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	if _, ok := r.Evict(); ok {
		t.Fatalf("expected no victim on empty replacer")
	}
}

func TestSetEvictableTracksSize(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)

	if r.Size() != 0 {
		t.Fatalf("expected size 0, got %d", r.Size())
	}
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	if r.Size() != 2 {
		t.Fatalf("expected size 2, got %d", r.Size())
	}
	r.SetEvictable(1, false)
	if r.Size() != 1 {
		t.Fatalf("expected size 1, got %d", r.Size())
	}
}

func TestRemoveDropsFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	r.RecordAccess(1, AccessUnknown)
	r.SetEvictable(1, true)
	if err := r.Remove(1); err != nil {
		t.Fatalf("Remove(1): %v", err)
	}
	if r.Size() != 0 {
		t.Fatalf("expected size 0 after remove, got %d", r.Size())
	}
	if _, ok := r.Evict(); ok {
		t.Fatalf("expected no victim after remove")
	}
}

func TestRemoveFailsOnPinnedFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	r.RecordAccess(1, AccessUnknown)
	// Frame 1 is never marked evictable: it's still pinned.
	if err := r.Remove(1); err == nil {
		t.Fatalf("expected Remove to fail on a pinned frame")
	}
	if r.Size() != 0 {
		t.Fatalf("expected size unchanged, got %d", r.Size())
	}
}

func TestRecordAccessRejectsOutOfRangeFrame(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	if err := r.RecordAccess(4, AccessUnknown); err == nil {
		t.Fatalf("expected RecordAccess to reject frame 4 with capacity 4")
	}
	if err := r.RecordAccess(-1, AccessUnknown); err == nil {
		t.Fatalf("expected RecordAccess to reject a negative frame id")
	}
}

func TestSetEvictableRejectsOutOfRangeFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	if err := r.SetEvictable(2, true); err == nil {
		t.Fatalf("expected SetEvictable to reject frame 2 with capacity 2")
	}
}

func TestInfiniteDistanceBeatsFinite(t *testing.T) {
	r := NewLRUKReplacer(3, 2)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(1, AccessUnknown) // frame 1 has 2 accesses, finite k-distance
	r.RecordAccess(2, AccessUnknown) // frame 2 has 1 access, infinite k-distance
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 2 {
		t.Fatalf("expected frame 2 (infinite distance) to be evicted first, got %d", victim)
	}
}
