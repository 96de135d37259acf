// Package spantracker implements component D: per-span block occupancy
// bookkeeping for one size class. A tracker owns a bitmap over K
// equal-sized blocks (0 = free, 1 = allocated per spec.md §3) plus a
// maintained free-count, and threads into its owning CentralCache list
// via prev/next — the Go shape of the original ThreadCache::SpanTracker
// struct, minus the C++ intrusive-list macros.
package spantracker

import (
	"github.com/nullptr-dev/gophercache/internal/bitset"
)

// Tracker is the allocation state for one span assigned to a size
// class. It does not know its class index; it records its own block
// size, which BlockAddr and BlockIndex use for address arithmetic.
type Tracker struct {
	SpanStart uintptr
	Pages     int
	BlockSize int64
	K         int

	bitmap    *bitset.Bitmap
	freeCount int

	Prev *Tracker
	Next *Tracker
}

// New creates a Tracker for a span of the given geometry, initially
// all-free, per spec.md §3's SpanTracker invariant.
func New(spanStart uintptr, pages int, blockSize int64, k int) *Tracker {
	t := &Tracker{
		SpanStart: spanStart,
		Pages:     pages,
		BlockSize: blockSize,
		K:         k,
		bitmap:    bitset.New(k),
		freeCount: k,
	}
	t.bitmap.ClearTrailingPadding()
	return t
}

// Reset reinitializes a recycled Tracker record in place for a new
// span, avoiding a fresh bitmap allocation on the CentralCache slab's
// hot path.
func (t *Tracker) Reset(spanStart uintptr, pages int, blockSize int64, k int) {
	t.SpanStart = spanStart
	t.Pages = pages
	t.BlockSize = blockSize
	t.K = k
	t.Prev, t.Next = nil, nil
	if t.bitmap == nil || t.bitmap.Len() != k {
		t.bitmap = bitset.New(k)
	} else {
		t.bitmap.ResetFree()
	}
	t.bitmap.ClearTrailingPadding()
	t.freeCount = k
}

// FreeCount is O(1), maintained incrementally rather than recomputed
// from the bitmap.
func (t *Tracker) FreeCount() int { return t.freeCount }

// AllFree reports whether every block in the span is unallocated.
func (t *Tracker) AllFree() bool { return t.freeCount == t.K }

// AllAllocated reports whether every block in the span is outstanding.
func (t *Tracker) AllAllocated() bool { return t.freeCount == 0 }

// IsFree reports whether block i is currently unallocated.
func (t *Tracker) IsFree(i int) bool { return !t.bitmap.Test(i) }

// SetAllocated marks block i allocated. Idempotent: only a 0->1
// transition decrements the free count.
func (t *Tracker) SetAllocated(i int) {
	if t.bitmap.Set(i) {
		t.freeCount--
	}
}

// SetFree marks block i unallocated. Idempotent: only a 1->0 transition
// increments the free count.
func (t *Tracker) SetFree(i int) {
	if t.bitmap.Clear(i) {
		t.freeCount++
	}
}

// BlockAddr returns the address of block i within this tracker's span.
func (t *Tracker) BlockAddr(i int) uintptr {
	return t.SpanStart + uintptr(i)*uintptr(t.BlockSize)
}

// BlockIndex is the inverse of BlockAddr.
func (t *Tracker) BlockIndex(addr uintptr) int {
	return int((addr - t.SpanStart) / uintptr(t.BlockSize))
}

// AllocateBatch returns up to min(maxBatch, freeCount) block addresses
// in ascending order, marking each one allocated, using the bitmap's
// word-at-a-time trailing-zero scan (spec.md §4.D). Returns the batch
// as a slice; an empty (non-nil, length-0) slice means the tracker had
// no free blocks left.
func (t *Tracker) AllocateBatch(maxBatch int) []uintptr {
	if maxBatch > t.freeCount {
		maxBatch = t.freeCount
	}
	indices := t.bitmap.TakeFree(maxBatch)
	t.freeCount -= len(indices)
	addrs := make([]uintptr, len(indices))
	for i, idx := range indices {
		addrs[i] = t.BlockAddr(idx)
	}
	return addrs
}
