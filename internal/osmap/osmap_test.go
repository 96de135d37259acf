package osmap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReturnsPageAlignedZeroedMemory(t *testing.T) {
	t.Parallel()
	addr, err := Map(2)
	require.NoError(t, err)
	require.NotZero(t, addr)
	defer Unmap(addr, 2*PageSize)

	assert.Zero(t, addr%uintptr(PageSize))

	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), 2*PageSize)
	for i, b := range buf {
		require.Zerof(t, b, "byte %d of freshly mapped memory must be zero-filled", i)
	}
	buf[0] = 0xff
	assert.Equal(t, byte(0xff), buf[0])
}

func TestMapDistinctRegionsDoNotOverlap(t *testing.T) {
	t.Parallel()
	a, err := Map(1)
	require.NoError(t, err)
	defer Unmap(a, PageSize)

	b, err := Map(1)
	require.NoError(t, err)
	defer Unmap(b, PageSize)

	assert.NotEqual(t, a, b)
}
