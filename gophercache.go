// Package gophercache is a general-purpose, thread-caching memory
// allocator: a three-tier cache (per-goroutine → central per-size-class
// → page-level) backed by anonymous OS memory mappings, built for
// workloads issuing many small, short-lived allocations under
// concurrent load.
//
// Allocate and Free are the only public surface, matching the internal
// façade's contract: request dispatch by size, nothing else. Logging,
// tuning constants, and the tier implementations all live under
// internal/ since none of them are meant to be depended on directly.
package gophercache

import (
	"unsafe"

	"github.com/nullptr-dev/gophercache/internal/threadcache"
)

// Allocate returns a pointer to at least size bytes. Size 0 is promoted
// to the allocator's minimum alignment. Sizes within the tiered classes
// come back aligned to that alignment; sizes large enough to bypass the
// tiers come back page-aligned. It returns nil if the underlying OS
// mapping fails.
func Allocate(size uintptr) unsafe.Pointer {
	tc := threadcache.Acquire()
	defer threadcache.Release(tc)

	addr := tc.Allocate(int64(size))
	if addr == 0 {
		return nil
	}
	return unsafe.Pointer(addr)
}

// Free returns ptr, previously obtained from Allocate(size), to the
// tier that owns it. size must match the value originally passed to
// Allocate; passing a different size drives incorrect tier selection
// and block-index arithmetic without any way to detect it here. A nil
// ptr is a no-op.
func Free(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	tc := threadcache.Acquire()
	defer threadcache.Release(tc)
	tc.Deallocate(uintptr(ptr), int64(size))
}
