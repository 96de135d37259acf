// Package centralcache implements component E: the per-size-class span
// manager sitting between ThreadCache and PageCache. Each class owns a
// spinlock-guarded list of partially-free SpanTrackers, a reverse index
// from address to owning tracker, and a policy for handing whole spans
// back to PageCache once too many trackers in the class sit empty —
// the Go shape of the original CentralCache.cpp, one lock per class
// instead of one lock for the whole cache.
package centralcache

import (
	"sync"

	"github.com/nullptr-dev/gophercache/internal/alloclog"
	"github.com/nullptr-dev/gophercache/internal/pagecache"
	"github.com/nullptr-dev/gophercache/internal/sizeclass"
	"github.com/nullptr-dev/gophercache/internal/spantracker"
	"github.com/nullptr-dev/gophercache/internal/tuning"
)

const minLargeBlocksPerSpan = 8

// classState is one size class's slice of CentralCache state. It is
// heap-allocated individually (never packed into a contiguous array)
// so the runtime's allocator gives each one its own space, and its
// spinlock is itself cache-line padded — together these keep two
// classes from false-sharing under concurrent access, per spec.md §5.
type classState struct {
	lock       spinlock
	freeList   *spantracker.Tracker
	emptyCount int
	index      reverseIndex
	pool       *trackerPool

	blockSize    int64
	k            int
	pagesPerSpan int
	maxEmpty     int
}

// CentralCache holds one classState per size class.
type CentralCache struct {
	pc      *pagecache.PageCache
	classes []*classState
}

// New constructs a CentralCache backed by pc.
func New(pc *pagecache.PageCache) *CentralCache {
	classes := make([]*classState, sizeclass.N)
	for i := range classes {
		blockSize := sizeclass.Size(i)
		pages, k := spanGeometry(blockSize)
		classes[i] = &classState{
			pool:         newTrackerPool(),
			index:        newReverseIndex(blockSize),
			blockSize:    blockSize,
			k:            k,
			pagesPerSpan: pages,
			maxEmpty:     maxEmptyFor(blockSize, k),
		}
	}
	return &CentralCache{pc: pc, classes: classes}
}

var (
	defaultOnce sync.Once
	defaultCC   *CentralCache
)

// Default returns the process-wide CentralCache singleton, backed by
// pagecache.Default(), constructing it on first use.
func Default() *CentralCache {
	defaultOnce.Do(func() { defaultCC = New(pagecache.Default()) })
	return defaultCC
}

// spanGeometry decides page count and block count K for a class,
// per spec.md §4.D: small/medium classes fix K at tuning.BlockCount and
// derive the page count; large/x-large classes fix a minimum block
// count per span instead (large spans of a thousand-plus blocks would
// otherwise map hundreds of pages per class) and derive K from the
// resulting page count.
func spanGeometry(blockSize int64) (pages int, k int) {
	if blockSize <= tuning.MediumMax {
		k = tuning.BlockCount
		pages = int((blockSize*int64(k) + int64(tuning.PageSize) - 1) / int64(tuning.PageSize))
		if pages < 1 {
			pages = 1
		}
		return pages, k
	}
	pages = int((blockSize*minLargeBlocksPerSpan + int64(tuning.PageSize) - 1) / int64(tuning.PageSize))
	if pages < 1 {
		pages = 1
	}
	k = int(int64(pages) * int64(tuning.PageSize) / blockSize)
	if k < 1 {
		k = 1
	}
	return pages, k
}

// maxEmptyFor is spec.md §4.E's per-class empty-tracker eviction
// threshold: ceil(kMaxBytesPerIndex / spanBytes), floored at 1.
func maxEmptyFor(blockSize int64, k int) int {
	spanBytes := blockSize * int64(k)
	if spanBytes <= 0 {
		return 1
	}
	m := (tuning.KMaxBytesPerIndex + spanBytes - 1) / spanBytes
	if m < 1 {
		m = 1
	}
	return int(m)
}

// FetchRange takes up to maxBatch blocks from class index, pulling a
// fresh span from PageCache if the class's list is empty. It returns
// the batch (nil if PageCache is exhausted) in ascending address order.
func (c *CentralCache) FetchRange(index, maxBatch int) []uintptr {
	if index < 0 || index >= len(c.classes) || maxBatch <= 0 {
		return nil
	}
	cs := c.classes[index]
	cs.lock.Lock()
	defer cs.lock.Unlock()

	if cs.freeList == nil {
		if !c.fetchFromPageCache(cs) {
			return nil
		}
	}

	tracker := cs.freeList
	wasEmpty := tracker.AllFree()
	batch := tracker.AllocateBatch(maxBatch)
	if wasEmpty && len(batch) > 0 {
		cs.emptyCount--
	}
	if tracker.AllAllocated() {
		unlink(cs, tracker)
	}
	return batch
}

// ReturnRange returns a chain of blocks (not necessarily from the same
// span) to their owning trackers in class index.
func (c *CentralCache) ReturnRange(index int, blocks []uintptr) {
	if index < 0 || index >= len(c.classes) {
		return
	}
	cs := c.classes[index]
	cs.lock.Lock()
	defer cs.lock.Unlock()

	for _, addr := range blocks {
		tracker := cs.index.lookup(addr)
		if tracker == nil {
			alloclog.Fatal("centralcache: reverse index missing tracker for freed block",
				"class", index, "addr", addr)
			continue
		}
		blockIdx := tracker.BlockIndex(addr)
		wasFull := tracker.AllAllocated()
		tracker.SetFree(blockIdx)

		if wasFull {
			pushFront(cs, tracker)
		}
		if tracker.AllFree() {
			cs.emptyCount++
			if cs.emptyCount > cs.maxEmpty {
				c.returnToPageCache(cs, tracker)
			}
		}
	}
}

// fetchFromPageCache obtains one fresh span for cs from PageCache,
// initializes a tracker for it and registers it in the reverse index.
// Caller must hold cs.lock.
func (c *CentralCache) fetchFromPageCache(cs *classState) bool {
	start, ok := c.pc.AllocateSpan(cs.pagesPerSpan)
	if !ok {
		return false
	}
	tracker := cs.pool.get()
	tracker.Reset(start, cs.pagesPerSpan, cs.blockSize, cs.k)
	pushFront(cs, tracker)
	cs.emptyCount++
	cs.index.register(start, cs.pagesPerSpan, tracker)
	return true
}

// returnToPageCache evicts an all-free tracker: unlinks it, erases its
// reverse-index entries, recycles the record, and hands the span back
// to PageCache. Caller must hold cs.lock.
func (c *CentralCache) returnToPageCache(cs *classState, tracker *spantracker.Tracker) {
	cs.emptyCount--
	unlink(cs, tracker)
	cs.index.unregister(tracker.SpanStart, tracker.Pages)
	spanStart := tracker.SpanStart
	cs.pool.put(tracker)
	c.pc.DeallocateSpan(spanStart)
}

// GetSpanTracker exposes the reverse-index lookup for a class. Within
// this module only the tests call it.
func (c *CentralCache) GetSpanTracker(index int, addr uintptr) *spantracker.Tracker {
	if index < 0 || index >= len(c.classes) {
		return nil
	}
	return c.classes[index].index.lookup(addr)
}

// ClassStats is a point-in-time snapshot of one class's state, cheap
// enough to poll from an external benchmark harness without touching
// allocator internals (spec.md §1 treats the benchmark harness as an
// external collaborator).
type ClassStats struct {
	EmptyCount int
	MaxEmpty   int
	HasPartial bool
}

// Stats snapshots class index without taking its lock for the whole
// call — only long enough to copy the fields out.
func (c *CentralCache) Stats(index int) ClassStats {
	if index < 0 || index >= len(c.classes) {
		return ClassStats{}
	}
	cs := c.classes[index]
	cs.lock.Lock()
	defer cs.lock.Unlock()
	return ClassStats{EmptyCount: cs.emptyCount, MaxEmpty: cs.maxEmpty, HasPartial: cs.freeList != nil}
}

// pushFront head-inserts a detached tracker into cs's free list.
func pushFront(cs *classState, tracker *spantracker.Tracker) {
	tracker.Prev, tracker.Next = nil, cs.freeList
	if cs.freeList != nil {
		cs.freeList.Prev = tracker
	}
	cs.freeList = tracker
}

// unlink detaches tracker from cs's free list.
func unlink(cs *classState, tracker *spantracker.Tracker) {
	if tracker.Prev != nil {
		tracker.Prev.Next = tracker.Next
	} else if cs.freeList == tracker {
		cs.freeList = tracker.Next
	}
	if tracker.Next != nil {
		tracker.Next.Prev = tracker.Prev
	}
	tracker.Prev, tracker.Next = nil, nil
}
