package centralcache

import (
	"sync"

	"github.com/nullptr-dev/gophercache/internal/spantracker"
)

// trackerPool recycles spantracker.Tracker records per class. Unlike
// PageCache's Span metadata, a Tracker embeds a bitset.Bitmap whose
// backing word slice is ordinary garbage-collected memory — putting
// that behind spanpool's raw-mmap slab would hide the only reference to
// it from the collector, since spanpool's pages are outside any arena
// the GC scans. sync.Pool is the idiomatic Go analogue for this kind of
// same-type, short-lived-record recycling; ThreadCache also uses a
// sync.Pool, to check out one Cache per façade call.
type trackerPool struct {
	pool sync.Pool
}

func newTrackerPool() *trackerPool {
	return &trackerPool{pool: sync.Pool{New: func() any { return new(spantracker.Tracker) }}}
}

func (p *trackerPool) get() *spantracker.Tracker {
	return p.pool.Get().(*spantracker.Tracker)
}

func (p *trackerPool) put(t *spantracker.Tracker) {
	p.pool.Put(t)
}
