// Package pagecache implements component A: the process-wide owner of
// every page this allocator has ever mapped. It hands out and reclaims
// contiguous runs of pages ("spans"), splitting on allocation and
// coalescing adjacent free spans on return, the way the original
// PageCache.cpp does — a single mutex, two boundary-tag maps keyed by
// span start and one-past-end address, and a free list bucketed by page
// count.
//
// The free-by-page-count index needs "smallest bucket ≥ n", a ceiling
// search over a sparse, changing key set. A container/heap only exposes
// the global minimum, not a bounded predecessor/successor, so this
// package keeps the live page-count keys in a sorted slice and probes it
// with sort.Search — the same trick bnclabs/gostore's skiplist-adjacent
// code and the standard library itself use for ordered slice lookups.
package pagecache

import (
	"sort"
	"sync"

	"github.com/nullptr-dev/gophercache/internal/alloclog"
	"github.com/nullptr-dev/gophercache/internal/osmap"
	"github.com/nullptr-dev/gophercache/internal/spanpool"
	"github.com/nullptr-dev/gophercache/internal/tuning"
)

// Span is a contiguous, page-aligned run of pages. Prev/next thread it
// into whichever list currently owns it: a freeSpans bucket while free,
// nothing while handed out to a caller. free records which state that
// is, since the same fields serve both roles at different times.
type Span struct {
	start uintptr
	pages int
	free  bool
	prev  *Span
	next  *Span
}

// Start is the span's base address.
func (s *Span) Start() uintptr { return s.start }

// Pages is the span's length in pages.
func (s *Span) Pages() int { return s.pages }

func (s *Span) end() uintptr {
	return s.start + uintptr(s.pages)*uintptr(tuning.PageSize)
}

// directMapper backs PageCache's own Span-record slab pool. It cannot
// route through PageCache.AllocateSpan without deadlocking on the
// mutex it would need to reacquire, so it talks to osmap directly —
// mirroring the original PageCache's own metadata pool, which calls
// ::mmap itself rather than recursing through allocateSpan.
type directMapper struct{}

func (directMapper) MapPage() (uintptr, error) {
	return osmap.Map(1)
}

// PageCache owns every page this process has mapped.
type PageCache struct {
	mu sync.Mutex

	freeSpans map[int]*Span // page count -> head of free-span list
	freeKeys  []int         // sorted, mirrors keys of freeSpans

	spanStart map[uintptr]*Span // start address -> span
	spanEnd   map[uintptr]*Span // one-past-end address -> span

	records *spanpool.Pool[Span]
}

// New constructs an empty PageCache. Most callers want Default.
func New() *PageCache {
	pc := &PageCache{
		freeSpans: make(map[int]*Span),
		spanStart: make(map[uintptr]*Span),
		spanEnd:   make(map[uintptr]*Span),
	}
	pc.records = spanpool.New[Span](directMapper{})
	return pc
}

var (
	defaultOnce sync.Once
	defaultPC   *PageCache
)

// Default returns the process-wide PageCache singleton, constructing it
// on first use.
func Default() *PageCache {
	defaultOnce.Do(func() { defaultPC = New() })
	return defaultPC
}

// AllocateSpan hands out a span of exactly n pages, splitting a larger
// free span if necessary or mapping fresh pages from the OS on a miss.
// It reports false if n is 0 or the OS mapping failed.
func (pc *PageCache) AllocateSpan(n int) (uintptr, bool) {
	if n <= 0 {
		return 0, false
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()

	if span := pc.takeFreeAtLeast(n); span != nil {
		if span.pages > n {
			pc.split(span, n)
		}
		span.free = false
		return span.start, true
	}

	addr, err := osmap.Map(n)
	if err != nil {
		alloclog.Debug("pagecache: os mapping failed", "pages", n, "error", err)
		return 0, false
	}

	span := pc.records.Get()
	*span = Span{start: addr, pages: n}
	pc.spanStart[addr] = span
	pc.spanEnd[span.end()] = span
	return addr, true
}

// DeallocateSpan returns a span to the free pool, coalescing with any
// adjacent free neighbor. Deallocating an address PageCache never
// handed out is a silent no-op, per spec — the façade relies on this to
// recognize large-object pointers.
func (pc *PageCache) DeallocateSpan(p uintptr) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	span, ok := pc.spanStart[p]
	if !ok {
		return
	}

	if right, ok := pc.spanStart[span.end()]; ok && right.free {
		pc.removeFree(right)
		delete(pc.spanStart, right.start)
		delete(pc.spanEnd, right.end())
		delete(pc.spanEnd, span.end())
		span.pages += right.pages
		pc.spanEnd[span.end()] = span
		pc.records.Put(right)
	}

	if left, ok := pc.spanEnd[span.start]; ok && left.free {
		pc.removeFree(left)
		delete(pc.spanStart, span.start)
		delete(pc.spanEnd, span.end())
		delete(pc.spanEnd, left.end())
		left.pages += span.pages
		pc.spanEnd[left.end()] = left
		pc.records.Put(span)
		span = left
	}

	span.free = true
	pc.insertFree(span)
}

// split shrinks span to n pages and creates a tail span of the
// remainder, registering both in the boundary-tag maps and inserting
// the tail into the free list.
func (pc *PageCache) split(span *Span, n int) {
	oldEnd := span.end()
	tailPages := span.pages - n
	tailStart := span.start + uintptr(n)*uintptr(tuning.PageSize)

	span.pages = n
	delete(pc.spanEnd, oldEnd)
	pc.spanEnd[span.end()] = span

	tail := pc.records.Get()
	*tail = Span{start: tailStart, pages: tailPages, free: true}
	pc.spanStart[tailStart] = tail
	pc.spanEnd[oldEnd] = tail
	pc.insertFree(tail)
}

// takeFreeAtLeast detaches and returns the head of the smallest free
// bucket with page count >= n, or nil if none exists.
func (pc *PageCache) takeFreeAtLeast(n int) *Span {
	i := sort.Search(len(pc.freeKeys), func(i int) bool { return pc.freeKeys[i] >= n })
	if i == len(pc.freeKeys) {
		return nil
	}
	key := pc.freeKeys[i]
	head := pc.freeSpans[key]
	if head.next != nil {
		head.next.prev = nil
		pc.freeSpans[key] = head.next
	} else {
		delete(pc.freeSpans, key)
		pc.freeKeys = append(pc.freeKeys[:i], pc.freeKeys[i+1:]...)
	}
	head.prev, head.next = nil, nil
	return head
}

// insertFree head-inserts span into the free bucket for its page count,
// creating and sorting in the bucket key if it doesn't already exist.
func (pc *PageCache) insertFree(span *Span) {
	head, exists := pc.freeSpans[span.pages]
	span.prev, span.next = nil, head
	if exists {
		head.prev = span
	} else {
		i := sort.Search(len(pc.freeKeys), func(i int) bool { return pc.freeKeys[i] >= span.pages })
		pc.freeKeys = append(pc.freeKeys, 0)
		copy(pc.freeKeys[i+1:], pc.freeKeys[i:])
		pc.freeKeys[i] = span.pages
	}
	pc.freeSpans[span.pages] = span
}

// removeFree detaches span from whichever free bucket it currently
// occupies.
func (pc *PageCache) removeFree(span *Span) {
	if span.prev != nil {
		span.prev.next = span.next
	} else {
		if span.next != nil {
			pc.freeSpans[span.pages] = span.next
		} else {
			delete(pc.freeSpans, span.pages)
			i := sort.Search(len(pc.freeKeys), func(i int) bool { return pc.freeKeys[i] >= span.pages })
			if i < len(pc.freeKeys) && pc.freeKeys[i] == span.pages {
				pc.freeKeys = append(pc.freeKeys[:i], pc.freeKeys[i+1:]...)
			}
		}
	}
	if span.next != nil {
		span.next.prev = span.prev
	}
	span.prev, span.next = nil, nil
}

// FreeSpanCount reports how many spans currently sit in the free list,
// summed across every page-count bucket. Cheap enough for an external
// harness to poll, mirroring CentralCache.Stats and Cache.Stats.
func (pc *PageCache) FreeSpanCount() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	n := 0
	for _, head := range pc.freeSpans {
		for s := head; s != nil; s = s.next {
			n++
		}
	}
	return n
}

// Close unmaps every page this PageCache has ever obtained from the OS,
// tracked or free, plus its own metadata slab pages. Teardown is
// best-effort and not safe to call concurrently with any other
// PageCache operation — process-exit only, per spec's non-goal of
// thread-safe destruction.
func (pc *PageCache) Close() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	for addr, span := range pc.spanStart {
		_ = osmap.Unmap(addr, span.pages*tuning.PageSize)
	}
	for _, addr := range pc.records.Pages() {
		_ = osmap.Unmap(addr, tuning.PageSize)
	}
	pc.freeSpans = make(map[int]*Span)
	pc.freeKeys = nil
	pc.spanStart = make(map[uintptr]*Span)
	pc.spanEnd = make(map[uintptr]*Span)
}
