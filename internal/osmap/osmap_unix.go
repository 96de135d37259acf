//go:build linux || darwin || freebsd

package osmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapPages asks the kernel for n zero-filled pages via an anonymous,
// private mapping — the same call the original C++ implementation's
// PageCache::systemAlloc makes (mmap(nullptr, size, PROT_READ|PROT_WRITE,
// MAP_PRIVATE|MAP_ANONYMOUS, -1, 0)), ported to golang.org/x/sys/unix the
// way the teacher module maps files (internal/mmfile) and syncs them
// (hive/dirty/flush_unix.go).
func mmapPages(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("osmap: page count must be positive, got %d", n)
	}
	size := n * PageSize
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, fmt.Errorf("osmap: mmap %d bytes: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

func munmapPages(addr uintptr, size int) error {
	// Reconstruct the slice header mmap originally returned. Both length
	// and capacity must match what was mapped for munmap to release the
	// whole region.
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("osmap: munmap %d bytes at %#x: %w", size, addr, err)
	}
	return nil
}
