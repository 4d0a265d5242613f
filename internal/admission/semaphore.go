package admission

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// tokenSemaphore wraps golang.org/x/sync/semaphore.Weighted, which
// documents FIFO-fair acquisition, and layers an in-use counter (kept in
// a single-slot channel) on top so tests can assert permits are fully released (spec §8's S5: "all
// CPU/IO tokens released (semaphore permit counts equal their initial
// values)") without reaching into the semaphore's private state.
type tokenSemaphore struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    chan int64 // single-slot mailbox holding the current in-use count
}

func newTokenSemaphore(capacity int64) *tokenSemaphore {
	if capacity < 1 {
		capacity = 1
	}
	t := &tokenSemaphore{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
		inUse:    make(chan int64, 1),
	}
	t.inUse <- 0
	return t
}

// acquire blocks (cooperatively, respecting ctx) until one token is free.
// The returned release func must be called exactly once.
func (t *tokenSemaphore) acquire(ctx context.Context) (func(), error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := <-t.inUse
	t.inUse <- n + 1

	var released bool
	return func() {
		if released {
			return
		}
		released = true
		n := <-t.inUse
		t.inUse <- n - 1
		t.sem.Release(1)
	}, nil
}

// inUseCount returns the number of currently held tokens, for tests and
// diagnostics.
func (t *tokenSemaphore) inUseCount() int64 {
	n := <-t.inUse
	t.inUse <- n
	return n
}

func (t *tokenSemaphore) capacityCount() int64 { return t.capacity }
