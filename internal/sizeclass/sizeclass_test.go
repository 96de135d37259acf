package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexMonotonic(t *testing.T) {
	t.Parallel()
	prev := -1
	for b := int64(1); b <= 262144; b++ {
		idx := Index(b)
		assert.GreaterOrEqualf(t, idx, prev, "size class index must be non-decreasing at byte %d", b)
		prev = idx
	}
}

func TestIndexSizeRoundTrip(t *testing.T) {
	t.Parallel()
	for idx := 0; idx < N; idx++ {
		sz := Size(idx)
		assert.Equalf(t, idx, Index(sz), "Index(Size(%d)) must return %d, got Size=%d", idx, idx, sz)
	}
}

func TestSizeCoversRequestedBytes(t *testing.T) {
	t.Parallel()
	tests := []int64{1, 2, 15, 16, 17, 512, 513, 4096, 4097, 65536, 65537, 262144}
	for _, b := range tests {
		idx := Index(b)
		sz := Size(idx)
		assert.GreaterOrEqualf(t, sz, b, "class %d block size %d must cover requested %d bytes", idx, sz, b)
	}
}

func TestIndexClampsBelowOne(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Index(1), Index(0))
	assert.Equal(t, Index(1), Index(-5))
}

func TestSegmentBoundaries(t *testing.T) {
	t.Parallel()
	// Small segment ends at 512B in steps of 16; medium begins right after.
	lastSmall := Index(512)
	firstMedium := Index(513)
	assert.Equal(t, lastSmall+1, firstMedium)
	assert.LessOrEqual(t, Size(lastSmall), int64(512))
	assert.Greater(t, Size(firstMedium), int64(512))
}

func TestN(t *testing.T) {
	t.Parallel()
	assert.Greater(t, N, 0)
	// Every class index in [0, N) must be reachable from some byte size.
	seen := make(map[int]bool, N)
	for b := int64(1); b <= 262144; b++ {
		seen[Index(b)] = true
	}
	assert.Len(t, seen, N)
}
