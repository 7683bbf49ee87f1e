// Package event defines the normalized event model and the bounded FIFO
// queue that serializes all producers into the single processing stream.
//
// Producers (the match-control connector, the HTTP API, the match scheduler)
// enqueue events concurrently; exactly one consumer drains the queue, which
// is what serializes canonical state mutation across all fields. Enqueue is
// available in blocking (context-bound) and non-blocking (backpressure)
// forms. The Deduper gives producers at-most-once semantics per event ID
// within a fixed retention window.
package event
