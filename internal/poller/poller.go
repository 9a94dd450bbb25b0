package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// QuoteFetcher fetches current quote snapshots for a batch of symbols.
// *provider.Pool satisfies this interface.
type QuoteFetcher interface {
	Quotes(ctx context.Context, symbols []string) ([]model.Quote, error)
}

// SubscriptionSource exposes the set of symbols the dashboard is
// currently subscribed to. *stream.Session satisfies this interface.
type SubscriptionSource interface {
	Subscribed() []string
}

// Config holds poller configuration.
type Config struct {
	// Interval is how often to check session state and poll quotes.
	Interval time.Duration

	// Timeout bounds a single poll cycle's provider calls.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: config.DefaultPollInterval,
		Timeout:  10 * time.Second,
	}
}

// Stats is a point-in-time snapshot of poller counters.
type Stats struct {
	Active      bool  // currently synthesizing ticks
	Cycles      int64 // poll cycles that fetched quotes
	Synthesized int64 // ticks written to the store
	Failures    int64 // poll cycles that errored
}

// Poller keeps quote data flowing while the stream session is
// DEGRADED or OFFLINE. Each cycle writes one store batch containing
// the fetched quotes and the synthesized ticks.
type Poller struct {
	cfg    Config
	store  *store.Store
	subs   SubscriptionSource
	fetch  QuoteFetcher
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	active      bool
	lastVolumes map[string]int64
	cycles      int64
	synthesized int64
	failures    int64
}

// New creates a poller. If logger is nil, slog.Default() is used.
func New(cfg Config, st *store.Store, subs SubscriptionSource, fetch QuoteFetcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Poller{
		cfg:    cfg,
		store:  st,
		subs:   subs,
		fetch:  fetch,
		logger: logger,
	}
}

// Start begins the poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("quote poller started", "interval", p.cfg.Interval)
	return nil
}

// Stop halts the poll loop gracefully.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("quote poller stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("poller stop: %w", ctx.Err())
	}
}

// Stats returns current poller counters.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:      p.active,
		Cycles:      p.cycles,
		Synthesized: p.synthesized,
		Failures:    p.failures,
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			state := p.store.SessionStatus().State
			if state == model.StateDegraded || state == model.StateOffline {
				p.poll()
			} else {
				p.pause()
			}
		}
	}
}

// poll fetches quotes for the subscribed set and synthesizes one tick
// per symbol. The first cycle after activation only primes the volume
// baseline, so its ticks carry zero volume.
func (p *Poller) poll() {
	symbols := p.subs.Subscribed()
	if len(symbols) == 0 {
		return
	}

	p.mu.Lock()
	if !p.active {
		p.active = true
		p.lastVolumes = make(map[string]int64, len(symbols))
		p.logger.Info("quote polling activated", "symbols", len(symbols))
	}
	p.mu.Unlock()

	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	quotes, err := p.fetch.Quotes(ctx, symbols)
	cancel()
	if err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
		p.logger.Warn("quote poll failed", "symbols", len(symbols), "error", err)
		return
	}

	now := time.Now().UnixMilli()
	written := 0

	p.mu.Lock()
	baseline := p.lastVolumes
	p.store.Update(func(tx *store.Tx) {
		for _, q := range quotes {
			if q.Symbol == "" || q.Price <= 0 {
				continue
			}
			tx.PutQuote(q)

			// Counter regressions (provider corrections) reset the
			// baseline without emitting negative volume.
			var delta int64
			if prev, ok := baseline[q.Symbol]; ok && q.Volume >= prev {
				delta = q.Volume - prev
			}
			baseline[q.Symbol] = q.Volume

			tx.AppendTick(model.Tick{
				Symbol:    q.Symbol,
				Price:     q.Price,
				Volume:    delta,
				Timestamp: now,
				Source:    model.SourcePoll,
			})
			written++
		}
	})
	p.cycles++
	p.synthesized += int64(written)
	p.mu.Unlock()

	p.logger.Debug("quote poll cycle", "symbols", len(symbols), "ticks", written)
}

// pause drops the volume baseline so the next activation re-primes it
// instead of counting volume traded while the stream was healthy.
func (p *Poller) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.active = false
	p.lastVolumes = nil
	p.logger.Info("quote polling paused")
}
