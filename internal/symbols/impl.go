package symbols

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
)

// masterImpl implements the Master interface.
type masterImpl struct {
	cfg     config.SymbolsConfig
	sources []Source
	logger  *slog.Logger

	snap     atomic.Pointer[Snapshot]
	revision atomic.Uint64
	group    singleflight.Group

	mu     sync.Mutex
	onSwap []func(*Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaster creates a Symbol Master reading from sources in priority
// order: on duplicate tickers, the earlier source wins.
func NewMaster(cfg config.SymbolsConfig, sources []Source, logger *slog.Logger) Master {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = config.DefaultSymbolRefreshInterval
	}

	m := &masterImpl{
		cfg:     cfg,
		sources: sources,
		logger:  logger,
	}
	m.snap.Store(emptySnapshot())
	return m
}

// Start performs the initial load, then refreshes in the background.
func (m *masterImpl) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	// Initial load (blocking). Without a snapshot nothing downstream
	// can resolve or subscribe, so this failure is terminal.
	if err := m.Refresh(m.ctx); err != nil {
		m.cancel()
		return fmt.Errorf("initial symbol load: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(m.ctx)
	}()

	snap := m.Snapshot()
	m.logger.Info("symbol master started",
		"symbols", snap.Len(),
		"revision", snap.Revision(),
	)
	return nil
}

// Stop gracefully shuts down the refresh loop.
func (m *masterImpl) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("symbol master stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reloads the directory now; concurrent calls coalesce.
func (m *masterImpl) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

// refresh fetches every source, merges first-wins, and swaps the
// snapshot. Total failure or an empty merged directory keeps the
// previous snapshot and reports an error.
func (m *masterImpl) refresh(ctx context.Context) error {
	start := time.Now()

	var merged []model.Symbol
	var errs []error
	for _, src := range m.sources {
		listings, err := src.ListSymbols(ctx)
		if err != nil {
			m.logger.Warn("symbol source failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		m.logger.Debug("symbol source fetched", "source", src.Name(), "count", len(listings))
		merged = append(merged, listings...)
	}

	if len(merged) == 0 {
		if prev := m.Snapshot(); prev.Len() > 0 {
			m.logger.Error("symbol refresh failed, keeping previous snapshot",
				"symbols", prev.Len(),
				"revision", prev.Revision(),
			)
		}
		if len(errs) > 0 {
			return fmt.Errorf("symbol refresh: %w", errors.Join(errs...))
		}
		return errors.New("symbol refresh: every source returned an empty directory")
	}

	snap := buildSnapshot(m.revision.Add(1), merged, time.Now())
	m.snap.Store(snap)
	m.notifySwap(snap)

	m.logger.Info("symbol snapshot swapped",
		"symbols", snap.Len(),
		"revision", snap.Revision(),
		"sources_failed", len(errs),
		"duration", time.Since(start),
	)
	return nil
}

// refreshLoop refreshes on the configured interval.
func (m *masterImpl) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.Error("scheduled symbol refresh failed", "error", err)
			}
		}
	}
}

// notifySwap fires the swap callbacks synchronously.
func (m *masterImpl) notifySwap(snap *Snapshot) {
	m.mu.Lock()
	fns := append(([]func(*Snapshot))(nil), m.onSwap...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Snapshot returns the current immutable snapshot, never nil.
func (m *masterImpl) Snapshot() *Snapshot {
	return m.snap.Load()
}

// GetBySymbol returns the listing for an uppercased ticker.
func (m *masterImpl) GetBySymbol(ticker string) (model.Symbol, bool) {
	return m.Snapshot().Get(ticker)
}

// SearchByAlias returns the symbols holding text as an alias.
func (m *masterImpl) SearchByAlias(text string) []AliasHit {
	return m.Snapshot().ByAlias(text)
}

// Search returns ranked directory matches.
func (m *masterImpl) Search(query string, opts SearchOptions) []model.Symbol {
	return m.Snapshot().Search(query, opts)
}

// OnSwap registers a callback fired after every snapshot swap.
func (m *masterImpl) OnSwap(fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSwap = append(m.onSwap, fn)
}
