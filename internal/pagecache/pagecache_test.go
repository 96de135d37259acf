package pagecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullptr-dev/gophercache/internal/tuning"
)

func TestAllocateSpanZeroPagesFails(t *testing.T) {
	t.Parallel()
	pc := New()
	_, ok := pc.AllocateSpan(0)
	assert.False(t, ok)
}

func TestAllocateSpanIsPageAligned(t *testing.T) {
	t.Parallel()
	pc := New()
	defer pc.Close()

	addr, ok := pc.AllocateSpan(3)
	require.True(t, ok)
	assert.Zero(t, addr%uintptr(tuning.PageSize))
}

func TestDeallocateUnknownPointerIsNoOp(t *testing.T) {
	t.Parallel()
	pc := New()
	defer pc.Close()
	pc.DeallocateSpan(0xdeadbeef) // must not panic
}

// TestSplitAndCoalesce reproduces spec.md §8's end-to-end scenario 2:
// splitting a 5-page span into 2+3 must be reversible by deallocating
// both pieces and reallocating 5 pages, landing back at the original
// address.
func TestSplitAndCoalesce(t *testing.T) {
	t.Parallel()
	pc := New()
	defer pc.Close()

	p1, ok := pc.AllocateSpan(5)
	require.True(t, ok)
	pc.DeallocateSpan(p1)

	p2, ok := pc.AllocateSpan(2)
	require.True(t, ok)
	p3, ok := pc.AllocateSpan(3)
	require.True(t, ok)

	assert.Equal(t, p1, p2, "the 2-page split should come from the head of the freed 5-page span")
	assert.Equal(t, p1+2*uintptr(tuning.PageSize), p3, "the 3-page tail should immediately follow the 2-page head")

	pc.DeallocateSpan(p2)
	pc.DeallocateSpan(p3)

	p4, ok := pc.AllocateSpan(5)
	require.True(t, ok)
	assert.Equal(t, p1, p4, "coalescing the two freed pieces must reproduce the original 5-page span")
}

func TestDisjointLiveSpans(t *testing.T) {
	t.Parallel()
	pc := New()
	defer pc.Close()

	a, ok := pc.AllocateSpan(2)
	require.True(t, ok)
	b, ok := pc.AllocateSpan(2)
	require.True(t, ok)
	assert.NotEqual(t, a, b)

	aEnd := a + 2*uintptr(tuning.PageSize)
	bEnd := b + 2*uintptr(tuning.PageSize)
	overlap := a < bEnd && b < aEnd
	assert.False(t, overlap, "concurrently live spans must never overlap")
}

func TestOversizeSpanCoalescesToOneRun(t *testing.T) {
	t.Parallel()
	pc := New()
	defer pc.Close()

	const pages = 256 // 1 MiB / 4 KiB
	p, ok := pc.AllocateSpan(pages)
	require.True(t, ok)
	assert.Zero(t, p%uintptr(tuning.PageSize))
	pc.DeallocateSpan(p)

	p2, ok := pc.AllocateSpan(pages)
	require.True(t, ok)
	assert.Equal(t, p, p2, "repeated oversize allocate/deallocate must fully coalesce back to one free run")
}
