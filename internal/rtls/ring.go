package rtls

// Ring is a fixed-capacity buffer that keeps the most recent entries.
// Index 0 is always the newest entry; pushing onto a full ring overwrites
// the oldest one.
type Ring[T any] struct {
	items    []T
	capacity int
	head     int // next write position
	size     int
}

// NewRing creates a ring with the given capacity. Capacities below one are
// raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push stores v as the newest entry.
func (r *Ring[T]) Push(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Fill overwrites every slot with v, leaving the ring full.
func (r *Ring[T]) Fill(v T) {
	for i := range r.items {
		r.items[i] = v
	}
	r.head = 0
	r.size = r.capacity
}

// At returns the entry i steps back from the newest (At(0) is the newest).
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.size {
		return zero, false
	}
	idx := (r.head - 1 - i + 2*r.capacity) % r.capacity
	return r.items[idx], true
}

// Front returns the newest entry.
func (r *Ring[T]) Front() (T, bool) {
	return r.At(0)
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the maximum number of entries.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Slice copies the entries newest first.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i], _ = r.At(i)
	}
	return out
}
