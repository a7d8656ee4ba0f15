package db

import (
	"context"
	"sync"
)

// DefaultQueueSize is the buffer of an AsyncWriter.
const DefaultQueueSize = 64

// AsyncWriter hands records to a single background goroutine so request
// handlers never wait on SQLite. When the queue is full Write drops the
// record and reports false.
type AsyncWriter[T any] struct {
	queue   chan T
	write   func(context.Context, T) error
	onError func(T, error)

	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

// NewAsyncWriter starts the writer. onError may be nil.
func NewAsyncWriter[T any](size int, write func(context.Context, T) error, onError func(T, error)) *AsyncWriter[T] {
	if size <= 0 {
		size = DefaultQueueSize
	}
	w := &AsyncWriter[T]{
		queue:   make(chan T, size),
		write:   write,
		onError: onError,
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter[T]) run() {
	defer close(w.stopped)
	for item := range w.queue {
		if err := w.write(context.Background(), item); err != nil && w.onError != nil {
			w.onError(item, err)
		}
	}
}

// Write queues item without blocking.
func (w *AsyncWriter[T]) Write(item T) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- item:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued records.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.queue)
}

// Close stops accepting records and waits until the queue drains or ctx
// ends.
func (w *AsyncWriter[T]) Close(ctx context.Context) error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
