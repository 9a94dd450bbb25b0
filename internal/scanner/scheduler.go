package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/calendar"
	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// seedTimeout bounds the top-gainers call made while building the
// scan universe.
const seedTimeout = 5 * time.Second

// WatchlistSource supplies the user watchlist, polled at scan time.
type WatchlistSource interface {
	Watchlist() []string
}

// WatchlistFunc adapts a plain function to WatchlistSource.
type WatchlistFunc func() []string

func (f WatchlistFunc) Watchlist() []string { return f() }

// MoverSource supplies the top-gainers seed for the scan universe.
// Provider adapters with a movers endpoint satisfy this interface.
type MoverSource interface {
	TopGainers(ctx context.Context) ([]string, error)
}

// SchedulerStats is a point-in-time snapshot of scheduler counters.
type SchedulerStats struct {
	Leader   bool
	Phase    model.MarketPhase
	Scans    int64
	Failures int64 // Seed fetch errors; a failure never skips the scan
	LastScan time.Time
}

// Scheduler drives the engine on a market-phase cadence while it holds
// leadership on its election bus. Followers stay idle and read scan
// results from the shared store.
type Scheduler struct {
	cfg    config.ScannerConfig
	engine *Engine
	store  *store.Store
	cal    *calendar.Calendar
	watch  WatchlistSource
	movers MoverSource
	elect  *Election
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	phase    model.MarketPhase
	scans    int64
	failures int64
	lastScan time.Time
}

// NewScheduler creates a scheduler. watch and movers may be nil when no
// watchlist or seed source is wired. A nil elect joins the default bus;
// a nil logger uses slog.Default().
func NewScheduler(cfg config.ScannerConfig, st *store.Store, cal *calendar.Calendar, watch WatchlistSource, movers MoverSource, elect *Election, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PhaseRecompute <= 0 {
		cfg.PhaseRecompute = config.DefaultPhaseRecompute
	}
	if elect == nil {
		elect = NewElection(Bus(DefaultBusName), cfg.LeaderTimeout, logger)
	}
	return &Scheduler{
		cfg:    cfg,
		engine: NewEngine(cfg, logger),
		store:  st,
		cal:    cal,
		watch:  watch,
		movers: movers,
		elect:  elect,
		logger: logger,
	}
}

// Start joins the election and begins the scan loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.elect.Start(s.ctx); err != nil {
		return fmt.Errorf("join election: %w", err)
	}

	phase := s.cal.Phase(time.Now())
	s.setPhase(phase)

	s.wg.Add(1)
	go s.run(phase)

	s.logger.Info("scan scheduler started",
		"phase", phase,
		"cadence", s.cadence(phase),
		"member", s.elect.ID())
	return nil
}

// Stop halts the scan loop and leaves the election.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}

	if err := s.elect.Stop(ctx); err != nil {
		return err
	}
	s.logger.Info("scan scheduler stopped")
	return nil
}

// Stats returns current scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	leader := s.elect.IsLeader()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		Leader:   leader,
		Phase:    s.phase,
		Scans:    s.scans,
		Failures: s.failures,
		LastScan: s.lastScan,
	}
}

func (s *Scheduler) run(phase model.MarketPhase) {
	defer s.wg.Done()

	phaseTicker := time.NewTicker(s.cfg.PhaseRecompute)
	defer phaseTicker.Stop()

	scan := time.NewTimer(s.cadence(phase))
	defer scan.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-phaseTicker.C:
			next := s.cal.Phase(time.Now())
			if next == phase {
				continue
			}
			phase = next
			s.setPhase(phase)
			if !scan.Stop() {
				select {
				case <-scan.C:
				default:
				}
			}
			scan.Reset(s.cadence(phase))
			s.logger.Info("market phase changed",
				"phase", phase, "cadence", s.cadence(phase))

		case <-scan.C:
			if s.elect.IsLeader() {
				s.scan(phase)
			}
			scan.Reset(s.cadence(phase))
		}
	}
}

// scan builds the universe, runs every preset over one consistent store
// view, and writes all results in a single batch.
func (s *Scheduler) scan(phase model.MarketPhase) {
	started := time.Now()
	universe := s.buildScanUniverse()
	views := s.store.ScanView(universe)
	results := s.engine.Run(views, started)

	s.store.Update(func(tx *store.Tx) {
		for _, r := range results {
			tx.PutScannerResult(r)
		}
	})

	var rows int
	for _, r := range results {
		rows += len(r.Rows)
	}

	s.mu.Lock()
	s.scans++
	s.lastScan = started
	s.mu.Unlock()

	s.logger.Debug("scan complete",
		"phase", phase,
		"universe", len(universe),
		"rows", rows,
		"elapsed", time.Since(started))
}

func (s *Scheduler) buildScanUniverse() []string {
	live := s.store.TickSymbols()

	var watch []string
	if s.watch != nil {
		watch = s.watch.Watchlist()
	}

	var seed []string
	if s.movers != nil {
		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, seedTimeout)
		list, err := s.movers.TopGainers(ctx)
		cancel()
		if err != nil {
			s.mu.Lock()
			s.failures++
			s.mu.Unlock()
			s.logger.Warn("top gainers seed failed", "error", err)
		} else {
			seed = list
		}
	}

	return buildUniverse(live, watch, seed, s.cfg.UniverseLimit)
}

func (s *Scheduler) setPhase(phase model.MarketPhase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()

	s.store.Update(func(tx *store.Tx) {
		tx.SetMarketPhase(phase)
	})
}

// cadence maps a market phase to its scan interval, preferring
// configured overrides keyed by phase name.
func (s *Scheduler) cadence(phase model.MarketPhase) time.Duration {
	if d, ok := s.cfg.CadenceOverrides[string(phase)]; ok && d > 0 {
		return d
	}
	switch phase {
	case model.PhaseRegular:
		return config.DefaultCadenceRegular
	case model.PhasePre:
		return config.DefaultCadencePre
	case model.PhasePost:
		return config.DefaultCadencePost
	default:
		return config.DefaultCadenceClosed
	}
}
