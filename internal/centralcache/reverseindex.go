package centralcache

import (
	"sort"

	"github.com/nullptr-dev/gophercache/internal/spantracker"
	"github.com/nullptr-dev/gophercache/internal/tuning"
)

// reverseIndex maps a block or span address to the tracker owning it,
// per spec.md §3/§4.E. Small/medium classes (block size up to
// tuning.MediumMax) use a hash map keyed by page base, populated with one
// entry per page. Large/x-large classes instead use an ordered index
// keyed by span start
// and searched by predecessor — the same "smallest bucket that could
// contain this key" pattern PageCache's freeSpans uses in reverse, via
// sort.Search over a maintained sorted key slice rather than a
// container/heap (which only exposes the global minimum).
type reverseIndex interface {
	register(spanStart uintptr, pages int, tracker *spantracker.Tracker)
	unregister(spanStart uintptr, pages int)
	lookup(addr uintptr) *spantracker.Tracker
}

func newReverseIndex(blockSize int64) reverseIndex {
	if blockSize > tuning.MediumClassSpanPageThreshold {
		return &orderedIndex{byStart: make(map[uintptr]*spantracker.Tracker)}
	}
	return &hashIndex{byPage: make(map[uintptr]*spantracker.Tracker)}
}

// hashIndex holds one entry per page of every registered span.
type hashIndex struct {
	byPage map[uintptr]*spantracker.Tracker
}

func pageBase(addr uintptr) uintptr {
	return addr &^ uintptr(tuning.PageSize-1)
}

func (h *hashIndex) register(spanStart uintptr, pages int, tracker *spantracker.Tracker) {
	for i := 0; i < pages; i++ {
		h.byPage[spanStart+uintptr(i*tuning.PageSize)] = tracker
	}
}

func (h *hashIndex) unregister(spanStart uintptr, pages int) {
	for i := 0; i < pages; i++ {
		delete(h.byPage, spanStart+uintptr(i*tuning.PageSize))
	}
}

func (h *hashIndex) lookup(addr uintptr) *spantracker.Tracker {
	return h.byPage[pageBase(addr)]
}

// orderedIndex holds one entry per span, keyed by span start, and finds
// the owning span via predecessor search.
type orderedIndex struct {
	keys    []uintptr // sorted ascending
	byStart map[uintptr]*spantracker.Tracker
}

func (o *orderedIndex) register(spanStart uintptr, pages int, tracker *spantracker.Tracker) {
	i := sort.Search(len(o.keys), func(i int) bool { return o.keys[i] >= spanStart })
	o.keys = append(o.keys, 0)
	copy(o.keys[i+1:], o.keys[i:])
	o.keys[i] = spanStart
	o.byStart[spanStart] = tracker
}

func (o *orderedIndex) unregister(spanStart uintptr, pages int) {
	i := sort.Search(len(o.keys), func(i int) bool { return o.keys[i] >= spanStart })
	if i < len(o.keys) && o.keys[i] == spanStart {
		o.keys = append(o.keys[:i], o.keys[i+1:]...)
	}
	delete(o.byStart, spanStart)
}

func (o *orderedIndex) lookup(addr uintptr) *spantracker.Tracker {
	i := sort.Search(len(o.keys), func(i int) bool { return o.keys[i] > addr })
	if i == 0 {
		return nil
	}
	spanStart := o.keys[i-1]
	tracker := o.byStart[spanStart]
	if tracker == nil {
		return nil
	}
	end := spanStart + uintptr(tracker.Pages*tuning.PageSize)
	if addr < spanStart || addr >= end {
		return nil
	}
	return tracker
}
