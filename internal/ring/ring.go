package ring

// #region buffer

// Buffer is a fixed-capacity FIFO backed by a wraparound slice.
// Pushing onto a full buffer evicts the oldest item.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest item
	size  int
}

// New returns an empty buffer holding at most capacity items (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Len returns the number of stored items.
func (b *Buffer[T]) Len() int { return b.size }

// #endregion buffer

// #region push

// Push appends v. When the buffer is full the oldest item is overwritten
// and returned with ok=true.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	if b.size == len(b.items) {
		evicted = b.items[b.head]
		b.items[b.head] = v
		b.head = (b.head + 1) % len(b.items)
		return evicted, true
	}
	b.items[(b.head+b.size)%len(b.items)] = v
	b.size++
	return evicted, false
}

// #endregion push

// #region access

func (b *Buffer[T]) index(i int) int {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return (b.head + i) % len(b.items)
}

// At returns the i-th oldest item.
func (b *Buffer[T]) At(i int) T { return b.items[b.index(i)] }

// Ptr returns a pointer to the i-th oldest item for in-place updates.
// The pointer is invalidated by the next Push, Filter or Reset.
func (b *Buffer[T]) Ptr(i int) *T { return &b.items[b.index(i)] }

// Items returns a copy of all items, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Last returns up to n of the most recent items, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	start := b.size - n
	for i := range out {
		out[i] = b.items[(b.head+start+i)%len(b.items)]
	}
	return out
}

// #endregion access

// #region mutate

// Filter drops every item for which keep returns false, preserving order.
// Returns the number of dropped items.
func (b *Buffer[T]) Filter(keep func(T) bool) int {
	kept := make([]T, 0, b.size)
	for _, v := range b.Items() {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	removed := b.size - len(kept)
	if removed == 0 {
		return 0
	}
	b.Reset()
	for _, v := range kept {
		b.Push(v)
	}
	return removed
}

// Reset empties the buffer without changing its capacity.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// #endregion mutate
