package gophercache

import (
	"math/rand"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateReturnsAlignedNonNilPointer(t *testing.T) {
	t.Parallel()
	p := Allocate(48)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%16)
	Free(p, 48)
}

func TestAllocateZeroSucceeds(t *testing.T) {
	t.Parallel()
	p := Allocate(0)
	require.NotNil(t, p)
	Free(p, 0)
}

func TestFreeNilIsNoOp(t *testing.T) {
	t.Parallel()
	Free(nil, 128) // must not panic
}

func TestOversizeAllocationIsPageAligned(t *testing.T) {
	t.Parallel()
	p := Allocate(1024 * 1024)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%4096)
	Free(p, 1024*1024)
}

// TestConcurrentBurnIn reproduces spec.md §8 scenario 3: many
// goroutines issuing random-sized allocate/deallocate pairs must never
// observe two live pointers overlapping.
func TestConcurrentBurnIn(t *testing.T) {
	sizes := []uintptr{16, 256, 4096, 65536}
	const goroutines = 8
	const opsPerGoroutine = 500

	var (
		mu   sync.Mutex
		live = make(map[uintptr]uintptr) // addr -> size
	)

	check := func(addr, size uintptr) {
		mu.Lock()
		defer mu.Unlock()
		for other, otherSize := range live {
			if addr < other+otherSize && other < addr+size {
				t.Errorf("overlapping live allocations: [%x,%x) and [%x,%x)", addr, addr+size, other, other+otherSize)
			}
		}
		live[addr] = size
	}
	release := func(addr uintptr) {
		mu.Lock()
		defer mu.Unlock()
		delete(live, addr)
	}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for i := 0; i < opsPerGoroutine; i++ {
				size := sizes[rnd.Intn(len(sizes))]
				p := Allocate(size)
				if p == nil {
					continue
				}
				addr := uintptr(p)
				check(addr, size)
				time.Sleep(10 * time.Microsecond)
				release(addr)
				Free(p, size)
			}
		}(int64(g) + 1)
	}
	wg.Wait()
}

func TestPointerRoundTripsThroughUnsafePointer(t *testing.T) {
	t.Parallel()
	p := Allocate(64)
	require.NotNil(t, p)
	*(*uint64)(unsafe.Pointer(p)) = 0x0123456789abcdef
	assert.Equal(t, uint64(0x0123456789abcdef), *(*uint64)(unsafe.Pointer(p)))
	Free(p, 64)
}
