package metrics

import (
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

// Ages records the last write instant per data kind.
type Ages struct {
	mu    sync.Mutex
	marks map[model.DataKind]time.Time
}

// NewAges creates an empty tracker. Kinds never marked are absent from
// snapshots, which readers treat as "never written".
func NewAges() *Ages {
	return &Ages{marks: make(map[model.DataKind]time.Time)}
}

// Mark records a write of the given kind at the current instant.
func (a *Ages) Mark(kind model.DataKind) {
	a.MarkAt(kind, time.Now())
}

// MarkAt records a write of the given kind at t.
func (a *Ages) MarkAt(kind model.DataKind, t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.After(a.marks[kind]) {
		a.marks[kind] = t
	}
}

// Snapshot returns the age of every marked kind relative to now.
func (a *Ages) Snapshot(now time.Time) map[model.DataKind]time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[model.DataKind]time.Duration, len(a.marks))
	for kind, at := range a.marks {
		age := now.Sub(at)
		if age < 0 {
			age = 0
		}
		out[kind] = age
	}
	return out
}

// LastWrite returns the instant kind was last marked, or false if never.
func (a *Ages) LastWrite(kind model.DataKind) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.marks[kind]
	return at, ok
}
