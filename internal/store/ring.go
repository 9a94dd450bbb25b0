package store

import (
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

// TickRing is a fixed-capacity ring of trade ticks ordered by timestamp
// non-decreasing. When full, the oldest tick is evicted on insert. A tick
// arriving out of order is placed back into position when it is within
// the reorder tolerance of the buffer tail, and dropped otherwise.
//
// The ring is not safe for concurrent use; the store's lock guards it.
type TickRing struct {
	buf  []model.Tick
	head int
	size int

	inserted  int64
	reordered int64
	dropped   int64
}

// NewTickRing creates a ring holding at most capacity ticks.
func NewTickRing(capacity int) *TickRing {
	if capacity < 1 {
		capacity = 1
	}
	return &TickRing{buf: make([]model.Tick, capacity)}
}

func (r *TickRing) idx(i int) int           { return (r.head + i) % len(r.buf) }
func (r *TickRing) at(i int) model.Tick     { return r.buf[r.idx(i)] }
func (r *TickRing) set(i int, t model.Tick) { r.buf[r.idx(i)] = t }

// Len is the number of buffered ticks.
func (r *TickRing) Len() int { return r.size }

// Cap is the fixed capacity.
func (r *TickRing) Cap() int { return len(r.buf) }

// Insert places t into the ring, evicting the oldest tick when full.
// Returns false when t is older than the tail by more than tolerance
// and is dropped.
func (r *TickRing) Insert(t model.Tick, tolerance time.Duration) bool {
	if r.size > 0 {
		tail := r.at(r.size - 1)
		if t.Timestamp < tail.Timestamp {
			if tail.Timestamp-t.Timestamp > tolerance.Milliseconds() {
				r.dropped++
				return false
			}
			r.insertSorted(t)
			return true
		}
	}

	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	r.set(r.size, t)
	r.size++
	r.inserted++
	return true
}

// insertSorted walks back from the tail to the first tick at or before
// t's timestamp and inserts after it, shifting newer ticks up.
func (r *TickRing) insertSorted(t model.Tick) {
	pos := r.size
	for pos > 0 && r.at(pos-1).Timestamp > t.Timestamp {
		pos--
	}

	if r.size == len(r.buf) {
		// Evict the oldest to make room; positions shift down by one.
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		if pos > 0 {
			pos--
		}
	}

	for i := r.size; i > pos; i-- {
		r.set(i, r.at(i-1))
	}
	r.set(pos, t)
	r.size++
	r.inserted++
	r.reordered++
}

// First returns the oldest buffered tick.
func (r *TickRing) First() (model.Tick, bool) {
	if r.size == 0 {
		return model.Tick{}, false
	}
	return r.at(0), true
}

// Last returns the newest buffered tick.
func (r *TickRing) Last() (model.Tick, bool) {
	if r.size == 0 {
		return model.Tick{}, false
	}
	return r.at(r.size - 1), true
}

// Snapshot copies the buffered ticks oldest first.
func (r *TickRing) Snapshot() []model.Tick {
	if r.size == 0 {
		return nil
	}
	out := make([]model.Tick, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.at(i)
	}
	return out
}

// RingStats summarizes ring activity for status output.
type RingStats struct {
	Len       int
	Cap       int
	Inserted  int64 // Ticks accepted over the ring lifetime
	Reordered int64 // Accepted out of order within tolerance
	Dropped   int64 // Rejected as older than the tolerance window
}

// Stats returns lifetime counters.
func (r *TickRing) Stats() RingStats {
	return RingStats{
		Len:       r.size,
		Cap:       len(r.buf),
		Inserted:  r.inserted,
		Reordered: r.reordered,
		Dropped:   r.dropped,
	}
}
