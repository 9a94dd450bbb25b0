package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
)

// ErrNoAdapters is returned when every adapter is disabled or a
// capability has no enabled implementation.
var ErrNoAdapters = errors.New("provider: no enabled adapters")

// Pool owns the enabled adapters and tracks per-adapter health. Adapters
// whose API key is missing are disabled for the process lifetime and
// reported once through Health.
type Pool struct {
	logger   *slog.Logger
	adapters []Adapter // Enabled adapters in quote failover order
	names    []string  // Every known adapter in display order

	mu     sync.RWMutex
	health map[string]*healthEntry
}

type healthEntry struct {
	enabled     bool
	healthy     bool
	lastError   string
	lastSuccess time.Time
}

// NewPool constructs the adapters enabled by the config. The failover
// order for quotes is finnhub, fmp, iex, alphavantage.
func NewPool(cfg config.ProvidersConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		logger: logger,
		health: make(map[string]*healthEntry),
	}

	register := func(name, apiKey string, build func() Adapter) {
		p.names = append(p.names, name)
		if apiKey == "" {
			p.health[name] = &healthEntry{enabled: false, lastError: "no API key configured"}
			logger.Warn("adapter disabled", "provider", name, "reason", "no API key configured")
			return
		}
		p.health[name] = &healthEntry{enabled: true, healthy: true}
		p.adapters = append(p.adapters, build())
		logger.Info("adapter enabled", "provider", name)
	}

	register("finnhub", cfg.Finnhub.APIKey, func() Adapter { return NewFinnhub(cfg, logger) })
	register("fmp", cfg.FMP.APIKey, func() Adapter { return NewFMP(cfg, logger) })
	register("iex", cfg.IEX.APIKey, func() Adapter { return NewIEX(cfg, logger) })
	register("alphavantage", cfg.Alphavantage.APIKey, func() Adapter { return NewAlphavantage(cfg, logger) })

	return p
}

// Adapters returns the enabled adapters in failover order.
func (p *Pool) Adapters() []Adapter {
	return p.adapters
}

// Enabled reports whether the named adapter is enabled.
func (p *Pool) Enabled(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.health[name]
	return ok && h.enabled
}

// NewsSources returns the enabled adapters that serve news.
func (p *Pool) NewsSources() []NewsSource {
	var sources []NewsSource
	for _, a := range p.adapters {
		if ns, ok := a.(NewsSource); ok {
			sources = append(sources, ns)
		}
	}
	return sources
}

// SymbolSources returns the enabled adapters that serve the symbol
// directory, preferred source first.
func (p *Pool) SymbolSources() []SymbolSource {
	var sources []SymbolSource
	for _, a := range p.adapters {
		if ss, ok := a.(SymbolSource); ok {
			sources = append(sources, ss)
		}
	}
	return sources
}

// CandleSource returns the first enabled adapter that serves candles.
func (p *Pool) CandleSource() (CandleSource, bool) {
	for _, a := range p.adapters {
		if cs, ok := a.(CandleSource); ok {
			return cs, true
		}
	}
	return nil, false
}

// MoverSource returns the first enabled adapter that serves top gainers.
func (p *Pool) MoverSource() (MoverSource, bool) {
	for _, a := range p.adapters {
		if ms, ok := a.(MoverSource); ok {
			return ms, true
		}
	}
	return nil, false
}

// Quotes fetches quotes with adapter failover: the first adapter to
// succeed wins, later adapters are only tried after a failure.
func (p *Pool) Quotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if len(p.adapters) == 0 {
		return nil, ErrNoAdapters
	}

	var lastErr error
	for _, a := range p.adapters {
		quotes, err := a.GetQuotes(ctx, symbols)
		p.Record(a.Name(), err)
		if err == nil {
			return quotes, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("quote fetch failed, trying next adapter", "provider", a.Name(), "error", err)
	}
	return nil, fmt.Errorf("all quote adapters failed: %w", lastErr)
}

// Record updates health bookkeeping after an adapter call. A nil err
// marks the adapter healthy.
func (p *Pool) Record(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.health[name]
	if !ok || !h.enabled {
		return
	}
	if err != nil {
		h.healthy = false
		h.lastError = err.Error()
		return
	}
	h.healthy = true
	h.lastError = ""
	h.lastSuccess = time.Now()
}

// Health returns the per-adapter health snapshot in display order,
// including disabled adapters.
func (p *Pool) Health() []model.ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]model.ProviderHealth, 0, len(p.names))
	for _, name := range p.names {
		h := p.health[name]
		out = append(out, model.ProviderHealth{
			Name:        name,
			Enabled:     h.enabled,
			Healthy:     h.enabled && h.healthy,
			LastError:   h.lastError,
			LastSuccess: h.lastSuccess,
		})
	}
	return out
}
