package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketdesk/marketdesk/internal/config"
)

// DefaultBusName is the election bus schedulers join unless wired to
// a specific one.
const DefaultBusName = "scanner"

type busMember struct {
	startedAt time.Time
	lastSeen  time.Time
}

// ElectionBus is a named in-process broadcast channel that scheduler
// instances announce themselves on. The member with the oldest fresh
// announcement holds leadership; a member silent for longer than the
// election timeout is pruned, forcing re-election.
type ElectionBus struct {
	name string

	mu      sync.Mutex
	members map[string]*busMember
}

var (
	busesMu sync.Mutex
	buses   = make(map[string]*ElectionBus)
)

// Bus returns the process-wide election bus with the given name,
// creating it on first use.
func Bus(name string) *ElectionBus {
	busesMu.Lock()
	defer busesMu.Unlock()
	b, ok := buses[name]
	if !ok {
		b = &ElectionBus{name: name, members: make(map[string]*busMember)}
		buses[name] = b
	}
	return b
}

// announce registers id or refreshes its heartbeat. The original
// announcement time is kept so seniority survives heartbeats.
func (b *ElectionBus) announce(id string, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.members[id]; ok {
		m.lastSeen = now
		return
	}
	b.members[id] = &busMember{startedAt: now, lastSeen: now}
}

func (b *ElectionBus) withdraw(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, id)
}

// leader returns the oldest fresh member, pruning members silent for
// longer than timeout. Announcement ties break toward the smaller id.
func (b *ElectionBus) leader(now time.Time, timeout time.Duration) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		leaderID string
		oldest   time.Time
	)
	for id, m := range b.members {
		if now.Sub(m.lastSeen) > timeout {
			delete(b.members, id)
			continue
		}
		if leaderID == "" || m.startedAt.Before(oldest) ||
			(m.startedAt.Equal(oldest) && id < leaderID) {
			leaderID, oldest = id, m.startedAt
		}
	}
	return leaderID, leaderID != ""
}

// Election is one scheduler instance's membership on an election bus.
// It announces on Start, heartbeats at a quarter of the timeout, and
// withdraws on Stop.
type Election struct {
	bus     *ElectionBus
	id      string
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	leader bool
}

// NewElection creates an election member with a fresh id. If logger is
// nil, slog.Default() is used.
func NewElection(bus *ElectionBus, timeout time.Duration, logger *slog.Logger) *Election {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = config.DefaultLeaderTimeout
	}
	return &Election{
		bus:     bus,
		id:      uuid.NewString(),
		timeout: timeout,
		logger:  logger,
	}
}

// ID returns this member's id.
func (e *Election) ID() string { return e.id }

// Start announces presence and begins heartbeating.
func (e *Election) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.bus.announce(e.id, time.Now())

	e.wg.Add(1)
	go e.run()

	e.logger.Debug("election joined", "bus", e.bus.name, "id", e.id)
	return nil
}

// Stop withdraws from the bus.
func (e *Election) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.bus.withdraw(e.id)
		return nil
	case <-ctx.Done():
		e.bus.withdraw(e.id)
		return fmt.Errorf("election stop: %w", ctx.Err())
	}
}

// IsLeader reports whether this member currently holds leadership.
func (e *Election) IsLeader() bool {
	id, ok := e.bus.leader(time.Now(), e.timeout)
	leads := ok && id == e.id
	e.noteLeadership(leads)
	return leads
}

func (e *Election) noteLeadership(leads bool) {
	e.mu.Lock()
	changed := leads != e.leader
	e.leader = leads
	e.mu.Unlock()
	if !changed {
		return
	}
	if leads {
		e.logger.Info("scan leadership acquired", "bus", e.bus.name, "id", e.id)
	} else {
		e.logger.Info("scan leadership lost", "bus", e.bus.name, "id", e.id)
	}
}

func (e *Election) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.timeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.bus.announce(e.id, time.Now())
		}
	}
}
