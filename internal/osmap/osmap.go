// Package osmap wraps the OS anonymous-mapping primitives PageCache needs:
// zero-filled, page-aligned, private memory on request, and unmap at
// teardown. It is the sole place in this module that talks to the kernel.
package osmap

import "github.com/nullptr-dev/gophercache/internal/tuning"

// PageSize is the fixed page size every mapping is sized in whole
// multiples of.
const PageSize = tuning.PageSize

// Map requests n pages (n*PageSize bytes) of anonymous, private,
// read-write, zero-filled memory from the OS. It returns the base address
// as a uintptr and an error if the mapping failed. n must be > 0.
//
// The returned region is not tracked by the Go garbage collector or by
// the race detector's shadow memory in the general case; callers are
// responsible for the entire lifetime of the pointer arithmetic performed
// on it.
func Map(n int) (uintptr, error) {
	return mmapPages(n)
}

// Unmap releases a mapping previously returned by Map. size must be the
// exact byte length that was mapped (a multiple of PageSize).
func Unmap(addr uintptr, size int) error {
	return munmapPages(addr, size)
}
