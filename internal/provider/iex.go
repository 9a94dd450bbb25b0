package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
)

const iexBaseURL = "https://cloud.iexapis.com/stable"

// IEX is the free web-quote provider: batch quotes only.
type IEX struct {
	client       *Client
	logger       *slog.Logger
	quoteTimeout time.Duration
}

// NewIEX builds the iex adapter from the providers config block.
func NewIEX(cfg config.ProvidersConfig, logger *slog.Logger, opts ...ClientOption) *IEX {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = config.DefaultQuoteTimeout
	}
	base := cfg.IEX.BaseURL
	if base == "" {
		base = iexBaseURL
	}

	clientOpts := []ClientOption{
		WithAuthQuery("token"),
		WithLimiter(NewLimiter("iex", cfg.IEX.RPM, cfg.IEX.Burst)),
		WithRetries(cfg.MaxRetries, 250*time.Millisecond),
		WithLogger(logger),
	}
	clientOpts = append(clientOpts, opts...)

	return &IEX{
		client:       NewClient("iex", base, cfg.IEX.APIKey, clientOpts...),
		logger:       logger,
		quoteTimeout: cfg.QuoteTimeout,
	}
}

// Name implements Adapter.
func (x *IEX) Name() string { return "iex" }

type iexEntry struct {
	Quote iexQuote `json:"quote"`
}

type iexQuote struct {
	Symbol        string  `json:"symbol"`
	LatestPrice   float64 `json:"latestPrice"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"` // Fraction, 0.0123 = 1.23%
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	LatestVolume  int64   `json:"latestVolume"`
	LatestUpdate  int64   `json:"latestUpdate"` // Milliseconds since epoch
}

// GetQuotes fetches a batch of quotes in one request.
func (x *IEX) GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, x.quoteTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("types", "quote")

	raw := map[string]iexEntry{}
	if err := x.client.get(ctx, "/stock/market/batch", query, &raw); err != nil {
		return nil, fmt.Errorf("iex quotes: %w", err)
	}

	quotes := make([]model.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		entry, ok := raw[symbol]
		if !ok {
			continue
		}
		q := entry.Quote
		ts := q.LatestUpdate
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		quotes = append(quotes, model.Quote{
			Symbol:        symbol,
			Price:         q.LatestPrice,
			Change:        q.Change,
			ChangePercent: q.ChangePercent * 100,
			High:          q.High,
			Low:           q.Low,
			Open:          q.Open,
			PrevClose:     q.PreviousClose,
			Volume:        q.LatestVolume,
			UpdatedAt:     ts,
		})
	}
	return quotes, nil
}
