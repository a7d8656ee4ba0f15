package webui

import "sync"

// CircularBuffer keeps the most recent items up to a fixed capacity,
// overwriting the oldest once full. Safe for concurrent use.
type CircularBuffer[T any] struct {
	mu   sync.RWMutex
	data []T
	head int
	size int
}

// NewCircularBuffer panics if capacity is less than 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("webui: CircularBuffer capacity must be at least 1")
	}
	return &CircularBuffer[T]{data: make([]T, capacity)}
}

func (b *CircularBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = item
	b.head = (b.head + 1) % len(b.data)
	if b.size < len(b.data) {
		b.size++
	}
}

// Items returns a copy of the contents, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, b.size)
	start := (b.head - b.size + len(b.data)) % len(b.data)
	for i := 0; i < b.size; i++ {
		out = append(out, b.data[(start+i)%len(b.data)])
	}
	return out
}

func (b *CircularBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *CircularBuffer[T]) Cap() int { return len(b.data) }
