package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrTrackerClosed is returned by Start once shutdown has begun.
var ErrTrackerClosed = errors.New("shutting down: no new operations accepted")

// OperationTracker counts in-flight operations so shutdown can wait for them.
type OperationTracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	active atomic.Int64
	closed bool
}

func NewOperationTracker() *OperationTracker {
	return &OperationTracker{}
}

// Start registers an operation. It fails once Close has been called.
func (t *OperationTracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTrackerClosed
	}
	t.wg.Add(1)
	t.active.Add(1)
	return nil
}

// Done marks an operation started with Start as finished.
func (t *OperationTracker) Done() {
	t.active.Add(-1)
	t.wg.Done()
}

// Close stops new operations from starting.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *OperationTracker) Active() int64 {
	return t.active.Load()
}

// Wait blocks until every started operation is done or ctx ends.
func (t *OperationTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
