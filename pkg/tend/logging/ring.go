package logging

import "sync"

// DefaultRingSize is the number of retained entries.
const DefaultRingSize = 64

// Ring is a fixed-size buffer of log entries. When full, the oldest entry
// is overwritten.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
}

// NewRing creates a ring holding up to size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Add appends an entry.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[(r.start+r.count)%len(r.entries)] = e
	if r.count < len(r.entries) {
		r.count++
		return
	}
	r.start = (r.start + 1) % len(r.entries)
}

// Entries returns a copy of the entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, r.count)
	for i := range out {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// Len returns the number of entries held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Clear discards all entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start, r.count = 0, 0
}
