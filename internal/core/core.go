package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/calendar"
	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/news"
	"github.com/marketdesk/marketdesk/internal/poller"
	"github.com/marketdesk/marketdesk/internal/provider"
	"github.com/marketdesk/marketdesk/internal/resolve"
	"github.com/marketdesk/marketdesk/internal/scanner"
	"github.com/marketdesk/marketdesk/internal/store"
	"github.com/marketdesk/marketdesk/internal/stream"
	"github.com/marketdesk/marketdesk/internal/symbols"
)

// Core owns every component of the data plane and their lifecycles.
type Core struct {
	cfg    *config.DeskConfig
	logger *slog.Logger

	pool      *provider.Pool
	store     *store.Store
	master    symbols.Master
	resolver  *resolve.Resolver
	news      *news.Aggregator
	session   *stream.Session
	poller    *poller.Poller
	cal       *calendar.Calendar
	scheduler *scanner.Scheduler

	watchlist func() []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option adjusts core construction.
type Option func(*Core)

// WithWatchlist injects the user watchlist provider, polled at scan
// time and auto-subscribed on start. The default serves the static
// watchlist from configuration.
func WithWatchlist(fn func() []string) Option {
	return func(c *Core) { c.watchlist = fn }
}

// New wires a core from configuration. Nothing is started; call Start.
// If logger is nil, slog.Default() is used.
func New(cfg *config.DeskConfig, logger *slog.Logger, opts ...Option) (*Core, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool := provider.NewPool(cfg.Providers, logger)

	st := store.New(store.Config{
		TickCapacity:     cfg.Stream.TickBufferCapacity,
		ReorderTolerance: cfg.Stream.ReorderTolerance,
		NewsMaxItems:     cfg.News.MaxItems,
		NewsRetention:    cfg.News.Retention,
	}, logger)

	symbolSources := make([]symbols.Source, 0)
	for _, src := range pool.SymbolSources() {
		symbolSources = append(symbolSources, src)
	}
	master := symbols.NewMaster(cfg.Symbols, symbolSources, logger)

	resolver := resolve.New(cfg.Resolver, master, logger)
	master.OnSwap(func(*symbols.Snapshot) { resolver.FlushCache() })

	newsSources := make([]news.Source, 0)
	for _, src := range pool.NewsSources() {
		newsSources = append(newsSources, src)
	}
	aggregator := news.NewAggregator(cfg.News, newsSources, pool, logger)

	session := stream.NewSession(cfg.Stream, st, pool, logger)

	qp := poller.New(poller.Config{Interval: cfg.Stream.PollInterval}, st, session, pool, logger)

	cal, err := calendar.New()
	if err != nil {
		return nil, fmt.Errorf("market calendar: %w", err)
	}

	c := &Core{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		store:    st,
		master:   master,
		resolver: resolver,
		news:     aggregator,
		session:  session,
		poller:   qp,
		cal:      cal,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.watchlist == nil {
		static := append([]string(nil), cfg.Watchlist...)
		c.watchlist = func() []string { return static }
	}

	var movers scanner.MoverSource
	if ms, ok := pool.MoverSource(); ok {
		movers = ms
	}
	elect := scanner.NewElection(scanner.Bus(scanner.DefaultBusName), cfg.Scanner.LeaderTimeout, logger)
	c.scheduler = scanner.NewScheduler(cfg.Scanner, st, cal, scanner.WatchlistFunc(c.watchlist), movers, elect, logger)

	return c, nil
}

// Start brings the data plane up: symbol directory first (a failed
// initial load aborts startup), then the stream session, the poll
// fallback, the scan scheduler, and the news loop. The watchlist is
// subscribed once the session exists.
func (c *Core) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.master.Start(c.ctx); err != nil {
		return fmt.Errorf("symbol master: %w", err)
	}
	if err := c.session.Start(c.ctx); err != nil {
		return c.failStart("stream session", err)
	}
	if err := c.poller.Start(c.ctx); err != nil {
		return c.failStart("quote poller", err)
	}
	if err := c.scheduler.Start(c.ctx); err != nil {
		return c.failStart("scan scheduler", err)
	}

	for _, symbol := range c.watchlist() {
		c.session.Subscribe(symbol)
	}

	c.wg.Add(1)
	go c.newsLoop()

	c.logger.Info("core started",
		"instance", c.cfg.Instance.ID,
		"watchlist", len(c.watchlist()),
		"providers", len(c.pool.Adapters()))
	return nil
}

// failStart tears down whatever came up before the failing component.
func (c *Core) failStart(component string, err error) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Stop(stopCtx)
	return fmt.Errorf("%s: %w", component, err)
}

// Stop shuts the data plane down in reverse start order. It returns
// the joined errors of every component that failed to stop cleanly.
func (c *Core) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("core stop: %w", ctx.Err())
	}

	var errs []error
	for _, component := range []struct {
		name string
		stop func(context.Context) error
	}{
		{"scan scheduler", c.scheduler.Stop},
		{"quote poller", c.poller.Stop},
		{"stream session", c.session.Stop},
		{"symbol master", c.master.Stop},
	} {
		if err := component.stop(ctx); err != nil {
			c.logger.Error("component stop failed", "component", component.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", component.name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.logger.Info("core stopped")
	return nil
}

// newsLoop refreshes the feed immediately, then on the configured
// cadence until shutdown.
func (c *Core) newsLoop() {
	defer c.wg.Done()

	interval := c.cfg.News.RefreshInterval
	if interval <= 0 {
		interval = config.DefaultNewsRefreshInterval
	}

	c.refreshNews(c.ctx, 0)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.refreshNews(c.ctx, 0)
		}
	}
}

// refreshNews runs one fetch-resolve-store pass: new items and their
// verdicts land in a single store batch, then accepted tickers join
// the stream subscription set.
func (c *Core) refreshNews(ctx context.Context, limit int) news.Result {
	result := c.news.Refresh(ctx, limit)
	if len(result.Items) == 0 {
		return result
	}

	verdicts := make([]model.Verdict, 0, len(result.Items))
	var accepted []string
	for _, item := range result.Items {
		v := c.resolver.Resolve(item)
		verdicts = append(verdicts, v)
		if v.Ticker != "" {
			accepted = append(accepted, v.Ticker)
		}
	}

	c.store.Update(func(tx *store.Tx) {
		tx.UpsertNews(result.Items)
		for _, v := range verdicts {
			tx.PutVerdict(v)
		}
	})

	for _, symbol := range accepted {
		c.session.Subscribe(symbol)
	}

	c.logger.Debug("news pass complete",
		"items", len(result.Items),
		"resolved", len(accepted),
		"errors", len(result.Errors))
	return result
}
