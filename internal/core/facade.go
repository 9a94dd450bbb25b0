package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/news"
	"github.com/marketdesk/marketdesk/internal/poller"
	"github.com/marketdesk/marketdesk/internal/resolve"
	"github.com/marketdesk/marketdesk/internal/scanner"
	"github.com/marketdesk/marketdesk/internal/store"
	"github.com/marketdesk/marketdesk/internal/stream"
	"github.com/marketdesk/marketdesk/internal/symbols"
)

// RefreshNews fetches news now instead of waiting for the auto-refresh
// loop. New items are stored, resolved, and auto-subscribed exactly as
// the loop would.
func (c *Core) RefreshNews(ctx context.Context, limit int) news.Result {
	return c.refreshNews(ctx, limit)
}

// Resolve maps one news item to at most one high-confidence ticker.
func (c *Core) Resolve(item model.NewsItem) model.Verdict {
	return c.resolver.Resolve(item)
}

// Subscribe adds symbol to the stream's desired set.
func (c *Core) Subscribe(symbol string) {
	c.session.Subscribe(symbol)
}

// Unsubscribe removes symbol from the stream's desired set.
func (c *Core) Unsubscribe(symbol string) {
	c.session.Unsubscribe(symbol)
}

// StreamStatus returns the stream session summary.
func (c *Core) StreamStatus() model.SessionStatus {
	return c.store.SessionStatus()
}

// Ticks returns a copy of the buffered ticks for symbol, oldest first.
func (c *Core) Ticks(symbol string) []model.Tick {
	return c.store.Ticks(normalizeSymbol(symbol))
}

// Quotes serves quotes store-first in input order and fetches the
// misses from the provider pool, storing whatever comes back. Symbols
// with no quote anywhere are omitted.
func (c *Core) Quotes(ctx context.Context, symbols []string) []model.Quote {
	wanted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if sym := normalizeSymbol(s); sym != "" {
			wanted = append(wanted, sym)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	known := c.store.Quotes(wanted)

	var missing []string
	for _, sym := range wanted {
		if _, ok := known[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		fetched, err := c.pool.Quotes(ctx, missing)
		if err != nil {
			c.logger.Warn("quote fill failed", "symbols", len(missing), "error", err)
		} else if len(fetched) > 0 {
			c.store.Update(func(tx *store.Tx) {
				for _, q := range fetched {
					tx.PutQuote(q)
				}
			})
			for _, q := range fetched {
				known[q.Symbol] = q
			}
		}
	}

	out := make([]model.Quote, 0, len(wanted))
	for _, sym := range wanted {
		if q, ok := known[sym]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Candles passes OHLCV history through from the first candle-capable
// provider.
func (c *Core) Candles(ctx context.Context, symbol, resolution string, limit int) ([]model.Candle, error) {
	src, ok := c.pool.CandleSource()
	if !ok {
		return nil, fmt.Errorf("no candle-capable provider enabled")
	}
	candles, err := src.GetCandles(ctx, normalizeSymbol(symbol), resolution, limit)
	c.pool.Record(src.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return candles, nil
}

// Scanner returns the latest stored result for preset. A positive
// limit caps the rows.
func (c *Core) Scanner(preset string, limit int) (model.ScannerResult, bool) {
	result, ok := c.store.ScannerResult(preset)
	if !ok {
		return model.ScannerResult{}, false
	}
	if limit > 0 && len(result.Rows) > limit {
		result.Rows = result.Rows[:limit]
	}
	return result, true
}

// News returns the most recent stored items, newest first.
func (c *Core) News(limit int) []model.NewsItem {
	return c.store.News(limit)
}

// Verdict returns the stored resolution for a news item ID.
func (c *Core) Verdict(newsID string) (model.Verdict, bool) {
	return c.store.Verdict(newsID)
}

// Status aggregates the session summary, provider health, and data
// freshness ages.
func (c *Core) Status() model.Status {
	return model.Status{
		Session:   c.store.SessionStatus(),
		Providers: c.pool.Health(),
		Ages:      c.store.Ages(),
	}
}

// SearchSymbols queries the symbol directory.
func (c *Core) SearchSymbols(query string, opts symbols.SearchOptions) []model.Symbol {
	return c.master.Search(query, opts)
}

// Observe registers a store observer that receives coalesced diffs.
func (c *Core) Observe() *store.Observer {
	return c.store.Observe()
}

// Unobserve releases an observer.
func (c *Core) Unobserve(o *store.Observer) {
	c.store.Unobserve(o)
}

// Stats aggregates component counters for the status probe.
type Stats struct {
	Session   stream.SessionStats
	Store     store.StoreStats
	Poller    poller.Stats
	Scheduler scanner.SchedulerStats
	Resolver  resolve.CacheStats
}

// Stats returns current component counters.
func (c *Core) Stats() Stats {
	return Stats{
		Session:   c.session.Stats(),
		Store:     c.store.Stats(),
		Poller:    c.poller.Stats(),
		Scheduler: c.scheduler.Stats(),
		Resolver:  c.resolver.Stats(),
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
