package usecase

import "TradeCore/internal/domain/models"

// barRing is a bounded, insertion-ordered buffer of bars. Oldest entries are
// evicted on overflow. It is a short backward cache for callers, not a source
// of truth.
type barRing struct {
	buf   []models.Bar
	head  int
	size  int
	count uint64 // bars ever accepted, monotonically increasing
}

func newBarRing(capacity int) *barRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &barRing{buf: make([]models.Bar, capacity)}
}

// Push appends a bar, evicting the oldest when full.
func (r *barRing) Push(b models.Bar) {
	idx := (r.head + r.size) % len(r.buf)
	r.buf[idx] = b
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
	r.count++
}

// Len returns the number of bars currently retained.
func (r *barRing) Len() int { return r.size }

// Accepted returns the total number of bars ever pushed.
func (r *barRing) Accepted() uint64 { return r.count }

// Snapshot returns retained bars oldest-first.
func (r *barRing) Snapshot() []models.Bar {
	out := make([]models.Bar, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n most recent bars, oldest-first.
func (r *barRing) Last(n int) []models.Bar {
	if n > r.size {
		n = r.size
	}
	out := make([]models.Bar, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+r.size-n+i)%len(r.buf)]
	}
	return out
}
