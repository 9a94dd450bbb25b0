package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Finnhub is the realtime quote provider: quotes, general news, candles,
// and the US symbol directory.
type Finnhub struct {
	client        *Client
	logger        *slog.Logger
	newsTimeout   time.Duration
	quoteTimeout  time.Duration
	masterTimeout time.Duration
}

// NewFinnhub builds the finnhub adapter from the providers config block.
func NewFinnhub(cfg config.ProvidersConfig, logger *slog.Logger, opts ...ClientOption) *Finnhub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NewsTimeout <= 0 {
		cfg.NewsTimeout = config.DefaultNewsTimeout
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = config.DefaultQuoteTimeout
	}
	if cfg.MasterTimeout <= 0 {
		cfg.MasterTimeout = config.DefaultMasterTimeout
	}
	base := cfg.Finnhub.BaseURL
	if base == "" {
		base = finnhubBaseURL
	}

	clientOpts := []ClientOption{
		WithAuthHeader("X-Finnhub-Token"),
		WithLimiter(NewLimiter("finnhub", cfg.Finnhub.RPM, cfg.Finnhub.Burst)),
		WithRetries(cfg.MaxRetries, 250*time.Millisecond),
		WithLogger(logger),
	}
	clientOpts = append(clientOpts, opts...)

	return &Finnhub{
		client:        NewClient("finnhub", base, cfg.Finnhub.APIKey, clientOpts...),
		logger:        logger,
		newsTimeout:   cfg.NewsTimeout,
		quoteTimeout:  cfg.QuoteTimeout,
		masterTimeout: cfg.MasterTimeout,
	}
}

// Name implements Adapter.
func (f *Finnhub) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"` // Seconds since epoch
}

// GetQuotes fetches one quote per symbol. The upstream endpoint is
// single-symbol, so the batch is a sequence of requests; the first
// failure aborts the batch.
func (f *Finnhub) GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	quotes := make([]model.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		q, err := f.getQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (f *Finnhub) getQuote(ctx context.Context, symbol string) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, f.quoteTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("symbol", symbol)

	var raw finnhubQuote
	if err := f.client.get(ctx, "/quote", query, &raw); err != nil {
		return model.Quote{}, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}

	ts := raw.Timestamp * 1000
	if raw.Timestamp == 0 {
		ts = time.Now().UnixMilli()
	}
	return model.Quote{
		Symbol:        symbol,
		Price:         raw.Current,
		Change:        raw.Change,
		ChangePercent: raw.ChangePercent,
		High:          raw.High,
		Low:           raw.Low,
		Open:          raw.Open,
		PrevClose:     raw.PrevClose,
		UpdatedAt:     ts,
	}, nil
}

type finnhubNews struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // Seconds since epoch
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"` // Comma-separated tickers, may be empty
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// GetNews fetches general market news. Item-level parse problems are
// logged and skipped; only a bad root shape fails the call.
func (f *Finnhub) GetNews(ctx context.Context, params NewsParams) ([]model.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.newsTimeout)
	defer cancel()

	category := params.Category
	if category == "" {
		category = "general"
	}
	query := url.Values{}
	query.Set("category", category)

	var raw []finnhubNews
	if err := f.client.get(ctx, "/news", query, &raw); err != nil {
		return nil, fmt.Errorf("finnhub news: %w", err)
	}

	items := make([]model.NewsItem, 0, len(raw))
	for _, n := range raw {
		if n.Headline == "" || n.Datetime == 0 {
			f.logger.Debug("skipping malformed news item", "provider", "finnhub", "id", n.ID)
			continue
		}
		published := time.Unix(n.Datetime, 0).UTC()
		if !params.Since.IsZero() && published.Before(params.Since) {
			continue
		}
		items = append(items, model.NewsItem{
			Title:           n.Headline,
			Summary:         n.Summary,
			URL:             n.URL,
			Source:          "finnhub",
			PublishedAt:     published,
			ProviderSymbols: splitTickers(n.Related),
		})
		if params.Limit > 0 && len(items) >= params.Limit {
			break
		}
	}
	return items, nil
}

type finnhubSymbol struct {
	Currency      string `json:"currency"`
	Description   string `json:"description"`
	DisplaySymbol string `json:"displaySymbol"`
	MIC           string `json:"mic"`
	Symbol        string `json:"symbol"`
	Type          string `json:"type"`
}

// ListSymbols fetches the US symbol directory, keeping common stock and
// ETF listings with plain 1-5 letter tickers.
func (f *Finnhub) ListSymbols(ctx context.Context) ([]model.Symbol, error) {
	ctx, cancel := context.WithTimeout(ctx, f.masterTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("exchange", "US")

	var raw []finnhubSymbol
	if err := f.client.get(ctx, "/stock/symbol", query, &raw); err != nil {
		return nil, fmt.Errorf("finnhub symbols: %w", err)
	}

	symbols := make([]model.Symbol, 0, len(raw))
	for _, s := range raw {
		var typ model.SymbolType
		switch s.Type {
		case "Common Stock":
			typ = model.TypeStock
		case "ETP", "ETF":
			typ = model.TypeETF
		default:
			continue
		}
		if !plainTicker(s.Symbol) {
			continue
		}
		symbols = append(symbols, model.Symbol{
			Symbol:      s.Symbol,
			CompanyName: s.Description,
			Exchange:    micToExchange(s.MIC),
			Type:        typ,
			IsActive:    true,
		})
	}
	return symbols, nil
}

type finnhubCandles struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Status string    `json:"s"` // "ok" or "no_data"
	Time   []int64   `json:"t"` // Seconds since epoch
	Volume []int64   `json:"v"`
}

// GetCandles fetches up to limit OHLCV bars at the given resolution
// ("1", "5", "15", "30", "60", "D").
func (f *Finnhub) GetCandles(ctx context.Context, symbol, resolution string, limit int) ([]model.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.quoteTimeout)
	defer cancel()

	if limit < 1 {
		limit = 100
	}
	now := time.Now()
	from := now.Add(-time.Duration(limit) * resolutionSpan(resolution))

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("resolution", resolution)
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(now.Unix(), 10))

	var raw finnhubCandles
	if err := f.client.get(ctx, "/stock/candle", query, &raw); err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if raw.Status == "no_data" {
		return nil, nil
	}
	if len(raw.Time) != len(raw.Close) || len(raw.Time) != len(raw.Open) ||
		len(raw.Time) != len(raw.High) || len(raw.Time) != len(raw.Low) {
		return nil, &Error{Provider: "finnhub", Kind: KindMalformed, Message: "candle arrays disagree on length"}
	}

	candles := make([]model.Candle, 0, len(raw.Time))
	for i := range raw.Time {
		var vol int64
		if i < len(raw.Volume) {
			vol = raw.Volume[i]
		}
		candles = append(candles, model.Candle{
			Timestamp: raw.Time[i] * 1000,
			Open:      raw.Open[i],
			High:      raw.High[i],
			Low:       raw.Low[i],
			Close:     raw.Close[i],
			Volume:    vol,
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// resolutionSpan maps a candle resolution to its bar duration.
func resolutionSpan(resolution string) time.Duration {
	switch resolution {
	case "D":
		return 24 * time.Hour
	default:
		minutes, err := strconv.Atoi(resolution)
		if err != nil || minutes < 1 {
			return time.Minute
		}
		return time.Duration(minutes) * time.Minute
	}
}

// micToExchange maps an ISO market identifier code to the exchange enum.
func micToExchange(mic string) model.Exchange {
	switch mic {
	case "XNAS":
		return model.ExchangeNASDAQ
	case "XNYS":
		return model.ExchangeNYSE
	case "XASE":
		return model.ExchangeAMEX
	default:
		return model.ExchangeOther
	}
}

// plainTicker reports whether s is a 1-5 letter uppercase ticker.
func plainTicker(s string) bool {
	if len(s) < 1 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// splitTickers splits a comma-separated ticker list, dropping blanks.
func splitTickers(related string) []string {
	if related == "" {
		return nil
	}
	parts := strings.Split(related, ",")
	tickers := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			tickers = append(tickers, p)
		}
	}
	if len(tickers) == 0 {
		return nil
	}
	return tickers
}
