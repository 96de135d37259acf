// Package spanpool implements the internal slab allocator spec.md §4.B
// describes: fixed-size metadata records carved out of whole pages
// obtained from the page mapper, threaded into a
// singly-linked freelist through the first machine word of each free
// slot — the same intrusive-list trick warawara28/tlsf-go's
// FreeBlockHeader uses for user blocks, applied here to the allocator's
// own bookkeeping records. Slot arithmetic is address-plus-offset over a
// uintptr base, the way bnclabs/gostore's mempool carves fixed-size
// chunks out of one big backing buffer.
//
// Its only user in this module is PageCache, for its own Span records;
// SpanTracker records are not kept here (CentralCache recycles them
// through a per-class sync.Pool). Pool is not safe for concurrent use;
// PageCache's pool is used only while holding PageCache's mutex.
package spanpool

import (
	"unsafe"

	"github.com/nullptr-dev/gophercache/internal/alloclog"
	"github.com/nullptr-dev/gophercache/internal/tuning"
)

// pageHeaderSize reserves 64 bytes at the start of every slab page,
// keeping slot data 16-byte aligned — the same 64-byte header the
// original C++ SpanPool uses ahead of its packed Span/SpanTracker array.
// Nothing is written into it: slab pages are tracked in Pool.pages.
const pageHeaderSize = 64

// PageMapper is the minimal page-mapping capability spanpool needs.
// PageCache's implementation maps pages directly through osmap, since it
// cannot call back into PageCache without deadlocking on its own mutex.
type PageMapper interface {
	MapPage() (uintptr, error)
}

// Pool is a slab allocator for fixed-size records of type T.
type Pool[T any] struct {
	mapper   PageMapper
	slotSize uintptr
	free     uintptr // address of the head free slot, or 0
	pages    []uintptr
}

// New creates a Pool of T-sized records backed by pages from mapper.
func New[T any](mapper PageMapper) *Pool[T] {
	var zero T
	slotSize := unsafe.Sizeof(zero)
	if slotSize < unsafe.Sizeof(uintptr(0)) {
		// every slot must hold at least one machine word, to carry the
		// freelist's next-pointer when the slot itself is free.
		slotSize = unsafe.Sizeof(uintptr(0))
	}
	return &Pool[T]{mapper: mapper, slotSize: slotSize}
}

// Get pops a record off the freelist, growing the slab by one page first
// if it is empty. The returned record's fields are not zeroed; callers
// initialize whatever fields matter to them, matching the teacher's own
// slab pools (SpanPool::get, SpanTrackerPool::get) which never
// placement-construct their slots.
func (p *Pool[T]) Get() *T {
	if p.free == 0 {
		p.grow()
	}
	slot := p.free
	p.free = *(*uintptr)(unsafe.Pointer(slot))
	return (*T)(unsafe.Pointer(slot))
}

// Put pushes a record back onto the freelist for reuse. Records are
// never destructed individually; the memory is simply threaded back in.
func (p *Pool[T]) Put(t *T) {
	slot := uintptr(unsafe.Pointer(t))
	*(*uintptr)(unsafe.Pointer(slot)) = p.free
	p.free = slot
}

// grow obtains one fresh page and carves it into freelist-linked slots.
func (p *Pool[T]) grow() {
	page, err := p.mapper.MapPage()
	if err != nil {
		alloclog.Fatal("spanpool: metadata slab exhausted", "error", err)
	}
	p.pages = append(p.pages, page)

	base := page + pageHeaderSize
	slotSpace := uintptr(tuning.PageSize) - pageHeaderSize
	count := int(slotSpace / p.slotSize)
	for i := count - 1; i >= 0; i-- {
		slot := base + uintptr(i)*p.slotSize
		*(*uintptr)(unsafe.Pointer(slot)) = p.free
		p.free = slot
	}
}

// Pages returns the base addresses of every slab page this pool has
// mapped, for Teardown-time unmapping by the owner.
func (p *Pool[T]) Pages() []uintptr {
	return p.pages
}
