package news

import (
	"sync"
	"time"
)

// dedupIndex remembers which item fingerprints have been emitted and at
// what source priority, across refresh cycles. Entries age out after
// the retention window.
type dedupIndex struct {
	retention time.Duration

	mu      sync.Mutex
	entries map[string]dedupEntry
}

type dedupEntry struct {
	priority int // Source priority of the emitted copy, lower is better
	seenAt   time.Time
}

func newDedupIndex(retention time.Duration) *dedupIndex {
	return &dedupIndex{
		retention: retention,
		entries:   make(map[string]dedupEntry),
	}
}

// admit reports whether an item with this fingerprint and source
// priority should be emitted: unseen fingerprints pass, and a strictly
// higher-priority copy of a seen fingerprint passes (replacing the
// recorded winner). Everything else is a duplicate.
func (d *dedupIndex) admit(id string, priority int, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, seen := d.entries[id]
	if seen && priority >= entry.priority {
		return false
	}
	seenAt := now
	if seen {
		seenAt = entry.seenAt
	}
	d.entries[id] = dedupEntry{priority: priority, seenAt: seenAt}
	return true
}

// sweep evicts entries older than the retention window.
func (d *dedupIndex) sweep(now time.Time) {
	cutoff := now.Add(-d.retention)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, entry := range d.entries {
		if entry.seenAt.Before(cutoff) {
			delete(d.entries, id)
		}
	}
}

// size reports the number of live entries, for status output.
func (d *dedupIndex) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
