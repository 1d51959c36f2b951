package buffer

import (
	"container/list"
	"math"
	"sync"

	"github.com/golang/glog"
)

// FrameID identifies one in-memory buffer slot. Valid ids for a replacer of
// capacity n are [0, n).
type FrameID int

// accessRecord is the per-frame state the replacer tracks: the up-to-k most
// recent access timestamps (oldest first), the evictable flag, and the
// frame's element in the recency list so removal stays O(1).
type accessRecord struct {
	timestamps []uint64
	evictable  bool
	recencyElm *list.Element
}

/*
LRUKReplacer approximates LRU-K replacement: the eviction victim is the
frame with the largest backward k-distance, the gap between its most recent
and k-th most recent access. Frames with fewer than k recorded accesses have
an infinite backward k-distance and are always preferred as victims; ties
fall to the frame with the oldest earliest access.

All methods are safe for concurrent use; a single mutex serializes every
operation.
*/
type LRUKReplacer struct {
	capacity       int
	k              int
	mu             sync.Mutex
	clock          uint64
	records        map[FrameID]*accessRecord
	recency        *list.List
	evictableCount int
}

// NewLRUKReplacer returns a replacer tracking up to capacity frames with
// k-history eviction. Non-positive capacity or k aborts.
func NewLRUKReplacer(capacity, k int) *LRUKReplacer {
	if capacity <= 0 {
		glog.Fatalf("invalid replacer capacity %d", capacity)
	}
	if k <= 0 {
		glog.Fatalf("invalid history depth %d", k)
	}
	return &LRUKReplacer{
		capacity: capacity,
		k:        k,
		records:  make(map[FrameID]*accessRecord, capacity),
		recency:  list.New(),
	}
}

// RecordAccess notes a logical touch of frame id at the current logical
// time. A frame seen for the first time starts out non-evictable. An id
// outside [0, capacity) is caller misuse and aborts.
func (r *LRUKReplacer) RecordAccess(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 0 || int(id) >= r.capacity {
		glog.Fatalf("frame id %d out of range [0, %d)", id, r.capacity)
	}

	if rec, ok := r.records[id]; ok {
		if len(rec.timestamps) >= r.k {
			rec.timestamps = rec.timestamps[1:]
		}
		rec.timestamps = append(rec.timestamps, r.tick())
		r.recency.MoveToFront(rec.recencyElm)
		return
	}

	r.records[id] = &accessRecord{
		timestamps: []uint64{r.tick()},
		recencyElm: r.recency.PushFront(id),
	}
}

// SetEvictable marks or unmarks frame id as an eviction candidate and keeps
// the evictable count in step. Untracked ids are ignored.
func (r *LRUKReplacer) SetEvictable(id FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return
	}
	if rec.evictable && !evictable {
		r.evictableCount--
	} else if !rec.evictable && evictable {
		r.evictableCount++
	}
	rec.evictable = evictable
}

// Evict picks the evictable frame with the largest backward k-distance,
// drops it from tracking, and returns it. The second return value is false
// when no frame is evictable. The scan is O(tracked frames); with pool-sized
// frame counts the simplicity beats a priority-queue design.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictableCount == 0 {
		return 0, false
	}

	var (
		victim       FrameID
		bestDist     uint64
		bestEarliest uint64 = math.MaxUint64
	)
	for id, rec := range r.records {
		if !rec.evictable {
			continue
		}
		dist := uint64(math.MaxUint64)
		if len(rec.timestamps) == r.k {
			dist = rec.timestamps[r.k-1] - rec.timestamps[0]
		}
		earliest := rec.timestamps[0]
		if dist > bestDist || (dist == bestDist && earliest < bestEarliest) {
			victim = id
			bestDist = dist
			bestEarliest = earliest
		}
	}

	r.recency.Remove(r.records[victim].recencyElm)
	delete(r.records, victim)
	r.evictableCount--
	return victim, true
}

// Remove drops frame id from tracking regardless of its eviction score.
// Only a tracked, currently evictable frame may be removed; anything else
// is caller misuse and aborts.
func (r *LRUKReplacer) Remove(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		glog.Fatalf("frame id %d is not tracked by the replacer", id)
	}
	if !rec.evictable {
		glog.Fatalf("frame id %d is not evictable", id)
	}
	r.recency.Remove(rec.recencyElm)
	delete(r.records, id)
	r.evictableCount--
}

// Size returns the number of frames currently evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.evictableCount
}

func (r *LRUKReplacer) tick() uint64 {
	ts := r.clock
	r.clock++
	return ts
}
