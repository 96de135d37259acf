// Package threadcache implements component F: the per-thread front end
// of the allocator. Go has no user-addressable thread-local storage, so
// "per-thread" is realized as a sync.Pool of Cache instances that
// callers check out for the duration of one allocate/deallocate call
// and return afterward — architecturally the same trick the Go runtime
// itself uses for per-P caches (mcache), and it gives every Cache
// exclusive, lock-free access to its own freelists exactly as spec.md
// §5 requires, without needing real OS thread affinity.
package threadcache

import (
	"runtime"
	"sync"

	"github.com/nullptr-dev/gophercache/internal/centralcache"
	"github.com/nullptr-dev/gophercache/internal/pagecache"
	"github.com/nullptr-dev/gophercache/internal/sizeclass"
	"github.com/nullptr-dev/gophercache/internal/tuning"
)

// Cache is one thread's freelist array, one singly-linked list per
// size class, plus the central/page tiers it falls back to.
type Cache struct {
	cc    *centralcache.CentralCache
	pc    *pagecache.PageCache
	lists []list
}

// New constructs a Cache backed by cc and pc. A Cache checked into the
// package-level sync.Pool below is only ever reclaimed by the garbage
// collector, never explicitly closed, so New attaches a finalizer that
// drains any blocks still resident in the local freelists back to
// CentralCache before the Cache itself goes away — without this, a span
// backing those blocks could never go all-free and be handed back to
// PageCache.
func New(cc *centralcache.CentralCache, pc *pagecache.PageCache) *Cache {
	c := &Cache{cc: cc, pc: pc, lists: make([]list, sizeclass.N)}
	runtime.SetFinalizer(c, (*Cache).drain)
	return c
}

// drain returns every block still resident in c's local freelists to
// CentralCache. Safe to call more than once; a drained list is simply
// empty on the next call.
func (c *Cache) drain() {
	for index := range c.lists {
		l := &c.lists[index]
		if l.count == 0 {
			continue
		}
		c.cc.ReturnRange(index, l.splitOff(l.count))
	}
}

// Allocate services a request of size bytes, clamped up to ALIGNMENT.
// Requests over MAX_BYTES bypass the tiered path entirely and go
// straight to PageCache, page-aligned. It returns 0 on failure.
func (c *Cache) Allocate(size int64) uintptr {
	if size < tuning.Alignment {
		size = tuning.Alignment
	}
	if size > tuning.MaxBytes {
		pages := int((size + int64(tuning.PageSize) - 1) / int64(tuning.PageSize))
		addr, ok := c.pc.AllocateSpan(pages)
		if !ok {
			return 0
		}
		return addr
	}

	index := sizeclass.Index(size)
	if addr, ok := c.lists[index].popFront(); ok {
		return addr
	}
	addr, ok := c.fetchFromCentralCache(index)
	if !ok {
		return 0
	}
	return addr
}

// Deallocate returns ptr, originally requested at size bytes, to the
// tier that owns it. A nil ptr is a no-op.
func (c *Cache) Deallocate(ptr uintptr, size int64) {
	if ptr == 0 {
		return
	}
	if size < tuning.Alignment {
		size = tuning.Alignment
	}
	if size > tuning.MaxBytes {
		c.pc.DeallocateSpan(ptr)
		return
	}

	index := sizeclass.Index(size)
	c.lists[index].pushFront(ptr)

	blockSize := sizeclass.Size(index)
	if int64(c.lists[index].count)*blockSize > tuning.KPerIndexCap {
		c.returnToCentralCache(index)
	}
}

// fetchFromCentralCache pulls a tiered batch from CentralCache on a
// local miss, returns the first block to the caller and splices the
// remainder onto the local list.
func (c *Cache) fetchFromCentralCache(index int) (uintptr, bool) {
	blockSize := sizeclass.Size(index)
	batch := c.cc.FetchRange(index, tuning.BatchSize(blockSize))
	if len(batch) == 0 {
		return 0, false
	}
	head := batch[0]
	c.lists[index].pushBatch(batch[1:])
	return head, true
}

// returnToCentralCache keeps max(count/2, 1) blocks local and hands
// the rest back to CentralCache, damping oscillation between fetch and
// return phases.
func (c *Cache) returnToCentralCache(index int) {
	l := &c.lists[index]
	keep := l.count / 2
	if keep < 1 {
		keep = 1
	}
	toReturn := l.count - keep
	if toReturn <= 0 {
		return
	}
	blocks := l.splitOff(toReturn)
	c.cc.ReturnRange(index, blocks)
}

// Count exposes a class's local freelist length, for tests.
func (c *Cache) Count(index int) int { return c.lists[index].count }

// Stats snapshots every class's local freelist length, cheap enough
// for an external benchmark harness to poll (spec.md §1 treats the
// benchmark harness as an external collaborator).
func (c *Cache) Stats() []int {
	out := make([]int, len(c.lists))
	for i := range c.lists {
		out[i] = c.lists[i].count
	}
	return out
}

var pool = sync.Pool{
	New: func() any { return New(centralcache.Default(), pagecache.Default()) },
}

// Acquire checks out a Cache for the duration of one façade call.
func Acquire() *Cache { return pool.Get().(*Cache) }

// Release returns a Cache to the pool for reuse by any goroutine.
func Release(c *Cache) { pool.Put(c) }
