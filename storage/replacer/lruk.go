// Package replacer implements the LRU-K eviction policy the buffer pool
// manager uses to pick a victim frame: one mutex guarding a map from frame
// id to access history, preferring the frame with the largest backward
// k-distance.
package replacer

import (
	"fmt"
	"sync"
)

// FrameID identifies a buffer pool frame.
type FrameID int32

// AccessType distinguishes the kind of access recorded, mirroring the
// distinction the original replacer draws between a lookup and a scan so
// callers can extend the policy later without changing the signature.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
)

// entry is one frame's access history: the last K timestamps, oldest
// first; once K are held, each new access drops the oldest.
type entry struct {
	history   []int64
	evictable bool
}

// LRUKReplacer selects an eviction victim by k-distance: the backward
// distance from now to the k-th most recent access. A frame with fewer than
// k recorded accesses has infinite k-distance and is preferred for eviction
// over any frame with a full history; among infinite-distance frames, the
// one with the oldest single access loses first.
type LRUKReplacer struct {
	mu        sync.Mutex
	k         int
	clock     int64
	numFrames int
	entries   map[FrameID]*entry
	size      int // count of evictable frames
}

// NewLRUKReplacer constructs a replacer that tracks up to numFrames frames,
// computing k-distance over the last k accesses of each.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:         k,
		numFrames: numFrames,
		entries:   make(map[FrameID]*entry, numFrames),
	}
}

func (r *LRUKReplacer) inRange(frameID FrameID) bool {
	return frameID >= 0 && int(frameID) < r.numFrames
}

// RecordAccess logs an access to frameID at the replacer's internal logical
// clock, creating the frame's history if this is its first access. Fails if
// frameID falls outside [0, capacity).
func (r *LRUKReplacer) RecordAccess(frameID FrameID, _ AccessType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(frameID) {
		return fmt.Errorf("replacer: frame %d outside [0, %d)", frameID, r.numFrames)
	}

	r.clock++
	e, ok := r.entries[frameID]
	if !ok {
		e = &entry{}
		r.entries[frameID] = e
	}
	e.history = append(e.history, r.clock)
	if len(e.history) > r.k {
		e.history = e.history[len(e.history)-r.k:]
	}
	return nil
}

// SetEvictable marks frameID as a candidate (or not) for eviction. The
// buffer pool manager calls this with evictable=false while a page is
// pinned and evictable=true once its pin count drops to zero. Fails if
// frameID falls outside [0, capacity).
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(frameID) {
		return fmt.Errorf("replacer: frame %d outside [0, %d)", frameID, r.numFrames)
	}

	e, ok := r.entries[frameID]
	if !ok {
		return nil
	}
	if e.evictable == evictable {
		return nil
	}
	e.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
	return nil
}

// Evict removes and returns the replacer's current victim: the evictable
// frame with the largest k-distance; among frames with infinite
// k-distance, the one whose oldest recorded access is earliest. It reports
// false if no frame is evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		victim     FrameID
		found      bool
		bestInf    bool  // best-so-far has infinite k-distance
		bestDist   int64 // best-so-far finite k-distance (larger = more evictable)
		bestOldest int64 // best-so-far's oldest access, used to break infinite ties
	)

	for fid, e := range r.entries {
		if !e.evictable {
			continue
		}

		isInf := len(e.history) < r.k
		var dist int64
		var oldest int64
		if isInf {
			oldest = e.history[0]
		} else {
			kth := e.history[len(e.history)-r.k]
			dist = r.clock - kth
		}

		if !found {
			victim, found = fid, true
			bestInf, bestDist, bestOldest = isInf, dist, oldest
			continue
		}

		switch {
		case isInf && !bestInf:
			victim, bestInf, bestOldest = fid, true, oldest
		case isInf && bestInf:
			if oldest < bestOldest {
				victim, bestOldest = fid, oldest
			}
		case !isInf && bestInf:
			// current best has infinite distance, stays preferred.
		default: // both finite
			if dist > bestDist {
				victim, bestDist = fid, dist
			}
		}
	}

	if !found {
		return 0, false
	}

	delete(r.entries, victim)
	r.size--
	return victim, true
}

// Remove drops frameID from the replacer entirely, used by the buffer pool
// manager when a page is deleted outright rather than merely unpinned.
// Fails if frameID is currently pinned (non-evictable) rather than silently
// dropping a frame still in use.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[frameID]
	if !ok {
		return nil
	}
	if !e.evictable {
		return fmt.Errorf("replacer: frame %d is pinned, cannot remove", frameID)
	}
	r.size--
	delete(r.entries, frameID)
	return nil
}

// Size returns the number of frames currently evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
