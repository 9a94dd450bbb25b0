package provider

import (
	"context"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

// NewsParams narrows a news fetch.
type NewsParams struct {
	Limit    int       // Max items to return, 0 means adapter default
	Category string    // Upstream-specific category, empty means general
	Since    time.Time // Only items published at or after this instant
}

// Adapter is the minimum surface every upstream client provides.
// Additional capabilities are discovered by interface assertion.
type Adapter interface {
	Name() string
	GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error)
}

// NewsSource is implemented by adapters that serve news articles.
type NewsSource interface {
	Adapter
	GetNews(ctx context.Context, params NewsParams) ([]model.NewsItem, error)
}

// CandleSource is implemented by adapters that serve OHLCV history.
type CandleSource interface {
	Adapter
	GetCandles(ctx context.Context, symbol, resolution string, limit int) ([]model.Candle, error)
}

// SymbolSource is implemented by adapters that serve the US symbol directory.
type SymbolSource interface {
	Adapter
	ListSymbols(ctx context.Context) ([]model.Symbol, error)
}

// MoverSource is implemented by adapters that surface a top-gainers list.
type MoverSource interface {
	Adapter
	TopGainers(ctx context.Context) ([]string, error)
}
