// Package ring provides a fixed-capacity circular buffer that overwrites
// the oldest entry when full.
//
// Buffer performs no locking. Owners that share it between goroutines
// serialize access themselves.
package ring

// Buffer is a fixed-capacity FIFO that never blocks and never grows.
// The backing array is allocated once at construction.
type Buffer[T any] struct {
	items []T
	read  int
	write int
	count int
}

// New creates a buffer holding at most capacity items (minimum 1)
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends an item. It returns false when the buffer was full and
// the oldest unread item was overwritten.
func (b *Buffer[T]) Push(item T) bool {
	b.items[b.write] = item
	b.write = (b.write + 1) % len(b.items)

	if b.count == len(b.items) {
		b.read = (b.read + 1) % len(b.items)
		return false
	}
	b.count++
	return true
}

// Drain removes and returns every held item, oldest first
func (b *Buffer[T]) Drain() []T {
	if b.count == 0 {
		return nil
	}

	var zero T
	out := make([]T, b.count)
	for i := range out {
		out[i] = b.items[b.read]
		b.items[b.read] = zero
		b.read = (b.read + 1) % len(b.items)
	}
	b.count = 0
	return out
}

// Items returns a copy of the held items, oldest first, without removing them
func (b *Buffer[T]) Items() []T {
	out := make([]T, b.count)
	for i := range out {
		out[i] = b.items[(b.read+i)%len(b.items)]
	}
	return out
}

// IsEmpty reports whether the buffer holds no items
func (b *Buffer[T]) IsEmpty() bool {
	return b.count == 0
}

// IsFull reports whether the next push will overwrite
func (b *Buffer[T]) IsFull() bool {
	return b.count == len(b.items)
}

// Size returns the number of held items
func (b *Buffer[T]) Size() int {
	return b.count
}

// Cap returns the fixed capacity
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Clear forgets every held item and zeroes their slots as Drain does
func (b *Buffer[T]) Clear() {
	var zero T
	for i := 0; i < b.count; i++ {
		b.items[(b.read+i)%len(b.items)] = zero
	}
	b.read = 0
	b.write = 0
	b.count = 0
}
