package event

import "errors"

var (
	// ErrInvalidEvent indicates a malformed event (missing id, type, or timestamp).
	ErrInvalidEvent = errors.New("event: invalid event")

	// ErrUnknownType indicates an event type outside the registered set.
	ErrUnknownType = errors.New("event: unknown event type")

	// ErrQueueFull indicates the bounded queue rejected a non-blocking enqueue.
	ErrQueueFull = errors.New("event: queue full")
)
