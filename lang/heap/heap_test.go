package heap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/tether/lang/heap"
)

func TestAllocReturnsStablePointers(t *testing.T) {
	a := heap.NewArena[int](4)

	ptrs := make([]*int, 0, 20)
	for i := 0; i < 20; i++ {
		ptrs = append(ptrs, a.Alloc(i))
	}

	// Allocating past the first chunk must not invalidate earlier pointers
	// (this is what the upvalue registry depends on: an open cell's
	// identity never changes).
	for i, p := range ptrs {
		require.Equal(t, i, *p)
	}

	more := make([]*int, 0, 20)
	for i := 20; i < 40; i++ {
		more = append(more, a.Alloc(i))
	}
	for i, p := range ptrs {
		assert.Equal(t, i, *p, "earlier allocation was invalidated by later growth")
	}
	for i, p := range more {
		assert.Equal(t, i+20, *p)
	}
}

func TestAllocSliceIsContiguousAndIndependent(t *testing.T) {
	a := heap.NewArena[string](4)
	s := a.AllocSlice(3)
	require.Len(t, s, 3)
	s[0], s[1], s[2] = "a", "b", "c"

	other := a.Alloc("z")
	assert.Equal(t, "a", s[0])
	assert.Equal(t, "z", *other)
}
