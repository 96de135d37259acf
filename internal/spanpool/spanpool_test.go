package spanpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullptr-dev/gophercache/internal/osmap"
)

type osMapper struct{}

func (osMapper) MapPage() (uintptr, error) { return osmap.Map(1) }

type record struct {
	a, b uintptr
}

func TestGetGrowsOnFirstUse(t *testing.T) {
	t.Parallel()
	p := New[record](osMapper{})
	r := p.Get()
	require.NotNil(t, r)
	assert.Len(t, p.Pages(), 1)
}

func TestPutRecyclesBeforeGrowingAgain(t *testing.T) {
	t.Parallel()
	p := New[record](osMapper{})
	r1 := p.Get()
	p.Put(r1)
	r2 := p.Get()
	assert.Same(t, r1, r2, "Put must make a record available for immediate reuse without a new page")
	assert.Len(t, p.Pages(), 1)
}

func TestGetProducesDistinctNonOverlappingSlots(t *testing.T) {
	t.Parallel()
	p := New[record](osMapper{})
	seen := make(map[*record]bool)
	for i := 0; i < 300; i++ { // forces at least one extra slab page
		r := p.Get()
		require.False(t, seen[r], "slot handed out twice without an intervening Put")
		seen[r] = true
		r.a, r.b = uintptr(i), uintptr(i)
	}
	assert.Greater(t, len(p.Pages()), 1, "300 records should have forced a second slab page")
	for r := range seen {
		assert.Equal(t, r.a, r.b, "writing into one slot must not corrupt another slot's fields")
	}
}
