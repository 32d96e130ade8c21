// Package queue provides an unbounded multi-producer FIFO whose consumers
// take turns: only one Pop waits on the queue at a time.
package queue

import (
	"context"
	"sync"

	"github.com/gammazero/deque"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// Queue is an unbounded FIFO. Push never blocks. Pop blocks until an item
// is available, the queue is closed and drained, or ctx ends.
type Queue[T any] struct {
	name string

	mu     sync.Mutex
	items  deque.Deque[T]
	closed bool

	// notify carries at most one pending wakeup for the active consumer.
	notify   chan struct{}
	closedCh chan struct{}

	// recv is the receive slot. Holding it grants the right to wait.
	recv chan struct{}
}

// New creates an empty queue. name is used in end-of-stream errors.
func New[T any](name string) *Queue[T] {
	return &Queue[T]{
		name:     name,
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
		recv:     make(chan struct{}, 1),
	}
}

// Push appends v. It fails only when the queue is closed.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.NewChannelClosedError(q.name)
	}
	q.items.PushBack(v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest item. Concurrent callers are served one at a time,
// each receiving a distinct item. After Close, remaining items are still
// returned; once drained Pop reports a ChannelClosedError. A cancelled ctx
// never consumes an item.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T

	select {
	case q.recv <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-q.recv }()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			v := q.items.PopFront()
			q.mu.Unlock()
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, errors.NewChannelClosedError(q.name)
		}

		select {
		case <-q.notify:
		case <-q.closedCh:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close stops further pushes and wakes a waiting consumer. It is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

// Closed reports whether Close was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
