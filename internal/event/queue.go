package event

import (
	"context"
	"fmt"
)

// Queue is the bounded FIFO buffer between event producers and the single
// processor. Multiple producers may enqueue concurrently; delivery order
// matches enqueue order.
type Queue struct {
	ch chan Event
}

// NewQueue creates a queue with the given capacity. A capacity of zero or
// less falls back to a small default so the queue is never unbuffered.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 16
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// Enqueue adds an event, blocking while the queue is full until space is
// available or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, e Event) error {
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event: enqueue %s: %w", e.ID, ctx.Err())
	}
}

// TryEnqueue adds an event without blocking. Returns ErrQueueFull when the
// queue is at capacity; producers decide whether to back off or drop.
func (q *Queue) TryEnqueue(e Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Events returns the receive side of the queue. Exactly one consumer must
// drain it; the ordering guarantee assumes a single receiver.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
