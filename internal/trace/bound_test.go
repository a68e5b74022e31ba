package trace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lessInt(a, b int) bool { return a < b }

func TestBound_StartsUnbounded(t *testing.T) {
	t.Parallel()

	b := NewBound[int](lessInt)
	_, ok := b.Get()
	assert.False(t, ok)
}

func TestBound_SetIsMonotone(t *testing.T) {
	t.Parallel()

	b := NewBound[int](lessInt)
	b.Set(10)
	b.Set(5)

	v, ok := b.Get()
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	b.Set(20)
	v, ok = b.Get()
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestBound_MakeUnboundedPoisons(t *testing.T) {
	t.Parallel()

	b := NewBound[int](lessInt)
	b.Set(10)
	b.MakeUnbounded()

	_, ok := b.Get()
	assert.False(t, ok)

	b.Set(20)
	_, ok = b.Get()
	assert.False(t, ok, "MakeUnbounded must be irreversible")
}

func TestBound_CloneSharesState(t *testing.T) {
	t.Parallel()

	b := NewBound[int](lessInt)
	clone := b.Clone()

	b.Set(10)
	v, ok := clone.Get()
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	clone.Set(20)
	v, ok = b.Get()
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestBounds_EffectiveIsMinimumOfMembers(t *testing.T) {
	t.Parallel()

	bs := NewBounds[int](lessInt)

	a := NewBound[int](lessInt)
	b := NewBound[int](lessInt)
	a.Set(30)
	b.Set(10)

	bs.Add(a)
	bs.Add(b)

	v, ok := bs.Effective()
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestBounds_IgnoresUnsetMembers(t *testing.T) {
	t.Parallel()

	bs := NewBounds[int](lessInt)

	a := NewBound[int](lessInt)
	b := NewBound[int](lessInt)
	a.Set(30)
	// b left Unbounded.

	bs.Add(a)
	bs.Add(b)

	v, ok := bs.Effective()
	assert.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestBounds_EmptyOrAllUnboundedHasNoEffective(t *testing.T) {
	t.Parallel()

	bs := NewBounds[int](lessInt)
	_, ok := bs.Effective()
	assert.False(t, ok)

	b := NewBound[int](lessInt)
	bs.Add(b)
	_, ok = bs.Effective()
	assert.False(t, ok)
}

func TestBound_ConcurrentSetIsSafe(t *testing.T) {
	t.Parallel()

	b := NewBound[int](lessInt)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			b.Set(v)
		}(i)
	}
	wg.Wait()

	v, ok := b.Get()
	assert.True(t, ok)
	assert.Equal(t, 99, v)
}
