// Package history keeps bounded, newest-first histories of log and audit entries.
package history

// Ring is a fixed-capacity buffer that drops its oldest entry once full.
// It is not safe for concurrent use; callers hold their own lock.
type Ring[T any] struct {
	buf  []T
	head int // index of the next write
	n    int
}

// NewRing creates a ring holding at most capacity entries. A capacity below
// one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push adds v as the newest entry.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// Items returns a copy of all entries, newest first.
func (r *Ring[T]) Items() []T {
	return r.Latest(r.n)
}

// Latest returns up to n of the newest entries, newest first.
func (r *Ring[T]) Latest(n int) []T {
	if n > r.n {
		n = r.n
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the maximum number of entries.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.n = 0
}
