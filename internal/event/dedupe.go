package event

import "sync"

// Deduper remembers recently seen event IDs in a fixed-size ring so that
// re-submitted events (producer retries, duplicate deliveries) are processed
// at most once within the retention window.
type Deduper struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	next  int
}

// NewDeduper creates a deduper retaining the most recent window IDs.
// A window of zero or less falls back to a small default.
func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = 64
	}
	return &Deduper{
		seen:  make(map[string]struct{}, window),
		order: make([]string, window),
	}
}

// Seen records id and reports whether it was already present. The oldest
// retained ID is evicted once the window is full.
func (d *Deduper) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if old := d.order[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.order[d.next] = id
	d.next = (d.next + 1) % len(d.order)
	d.seen[id] = struct{}{}

	return false
}
