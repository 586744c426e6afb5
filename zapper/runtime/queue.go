package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const DefaultQueueCapacity = 1024

var ErrQueueFull = errors.New("outbound queue full")

// Queue is the bounded FIFO of promises waiting to be relayed.
type Queue struct {
	mu sync.Mutex
	ch chan Promise
}

// NewQueue creates a queue holding at most capacity promises.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Promise, capacity)}
}

// PushBatch enqueues all promises or none of them.
func (q *Queue) PushBatch(promises []Promise) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if free := cap(q.ch) - len(q.ch); len(promises) > free {
		return fmt.Errorf("%w: %d promises, %d free slots", ErrQueueFull, len(promises), free)
	}
	// Pushers are serialized by mu and consumers only drain, so these sends never block.
	for _, p := range promises {
		q.ch <- p
	}
	return nil
}

// Pop blocks until a promise is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Promise, error) {
	select {
	case <-ctx.Done():
		return Promise{}, ctx.Err()
	case p := <-q.ch:
		return p, nil
	}
}

// TryPop returns the next promise without blocking.
func (q *Queue) TryPop() (Promise, bool) {
	select {
	case p := <-q.ch:
		return p, true
	default:
		return Promise{}, false
	}
}

// Free is the number of promises a PushBatch would accept right now.
func (q *Queue) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return cap(q.ch) - len(q.ch)
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}
