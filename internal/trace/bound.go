package trace

import "sync"

// Bound is a shared, mutable lower-bound cell on values of type T.
// Multiple readers (e.g. a trace's GC pass and a window operator) can hold
// a clone of the same Bound; each is free to raise its own floor, and the
// effective bound seen by a Bounds set is the minimum of all of them.
//
// A Bound starts Unbounded. Once set, it can only move forward: a later
// Set with a smaller value than the current one is ignored. Calling
// MakeUnbounded poisons the cell irreversibly back to Unbounded — used
// when an operator can no longer guarantee any lower bound at all.
type Bound[T any] struct {
	mu        *sync.Mutex
	value     *T
	set       *bool
	unbounded *bool
	less      func(a, b T) bool
}

// NewBound constructs an Unbounded cell. less must be a strict
// less-than over T; it is used to enforce monotonicity on Set.
func NewBound[T any](less func(a, b T) bool) *Bound[T] {
	var zero T

	return &Bound[T]{
		mu:        &sync.Mutex{},
		value:     &zero,
		set:       new(bool),
		unbounded: new(bool),
		less:      less,
	}
}

// Clone returns a handle sharing the same underlying cell: a Set through
// either handle is visible through the other.
func (b *Bound[T]) Clone() *Bound[T] {
	return &Bound[T]{
		mu:        b.mu,
		value:     b.value,
		set:       b.set,
		unbounded: b.unbounded,
		less:      b.less,
	}
}

// Set raises the bound to v, ignoring the call if v is not greater than
// the current value or if the cell has been made unbounded.
func (b *Bound[T]) Set(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if *b.unbounded {
		return
	}

	if !*b.set || b.less(*b.value, v) {
		*b.value = v
		*b.set = true
	}
}

// MakeUnbounded irreversibly poisons the cell: all future Get calls report
// Unbounded regardless of any prior or subsequent Set.
func (b *Bound[T]) MakeUnbounded() {
	b.mu.Lock()
	defer b.mu.Unlock()

	*b.unbounded = true
}

// Get returns the current bound and whether it is set (false means
// Unbounded, either because Set was never called or MakeUnbounded poisoned
// the cell).
func (b *Bound[T]) Get() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T

	if *b.unbounded || !*b.set {
		return zero, false
	}

	return *b.value, true
}

// Bounds tracks a set of independently-owned Bound cells over the same
// axis and exposes their effective combined bound: the minimum of every
// registered, currently-set bound. An empty set, or a set where every
// member is Unbounded, has no effective bound.
type Bounds[T any] struct {
	mu     sync.Mutex
	bounds []*Bound[T]
	less   func(a, b T) bool
}

// NewBounds constructs an empty Bounds set.
func NewBounds[T any](less func(a, b T) bool) *Bounds[T] {
	return &Bounds[T]{less: less}
}

// Add registers a Bound cell with the set.
func (bs *Bounds[T]) Add(b *Bound[T]) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.bounds = append(bs.bounds, b)
}

// Effective returns the minimum of all registered, currently-set bounds.
func (bs *Bounds[T]) Effective() (T, bool) {
	bs.mu.Lock()
	members := append([]*Bound[T](nil), bs.bounds...)
	bs.mu.Unlock()

	var (
		min    T
		minSet bool
	)

	for _, b := range members {
		v, ok := b.Get()
		if !ok {
			continue
		}

		if !minSet || bs.less(v, min) {
			min = v
			minSet = true
		}
	}

	return min, minSet
}
