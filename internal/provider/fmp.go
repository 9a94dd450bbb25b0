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

const fmpBaseURL = "https://financialmodelingprep.com/api/v3"

// fmpTimeLayout is the publish timestamp format of the stock_news endpoint.
const fmpTimeLayout = "2006-01-02 15:04:05"

// FMP is the fundamentals-and-news provider: stock news, batch quotes,
// top gainers, and a symbol list fallback.
type FMP struct {
	client        *Client
	logger        *slog.Logger
	newsTimeout   time.Duration
	quoteTimeout  time.Duration
	masterTimeout time.Duration
}

// NewFMP builds the fmp adapter from the providers config block.
func NewFMP(cfg config.ProvidersConfig, logger *slog.Logger, opts ...ClientOption) *FMP {
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
	base := cfg.FMP.BaseURL
	if base == "" {
		base = fmpBaseURL
	}

	clientOpts := []ClientOption{
		WithAuthQuery("apikey"),
		WithLimiter(NewLimiter("fmp", cfg.FMP.RPM, cfg.FMP.Burst)),
		WithRetries(cfg.MaxRetries, 250*time.Millisecond),
		WithLogger(logger),
	}
	clientOpts = append(clientOpts, opts...)

	return &FMP{
		client:        NewClient("fmp", base, cfg.FMP.APIKey, clientOpts...),
		logger:        logger,
		newsTimeout:   cfg.NewsTimeout,
		quoteTimeout:  cfg.QuoteTimeout,
		masterTimeout: cfg.MasterTimeout,
	}
}

// Name implements Adapter.
func (f *FMP) Name() string { return "fmp" }

type fmpQuote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changesPercentage"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Volume        int64   `json:"volume"`
	Timestamp     int64   `json:"timestamp"` // Seconds since epoch
}

// GetQuotes fetches a batch of quotes in one request.
func (f *FMP) GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.quoteTimeout)
	defer cancel()

	var raw []fmpQuote
	if err := f.client.get(ctx, "/quote/"+strings.Join(symbols, ","), nil, &raw); err != nil {
		return nil, fmt.Errorf("fmp quotes: %w", err)
	}

	quotes := make([]model.Quote, 0, len(raw))
	for _, q := range raw {
		if q.Symbol == "" {
			continue
		}
		ts := q.Timestamp * 1000
		if q.Timestamp == 0 {
			ts = time.Now().UnixMilli()
		}
		quotes = append(quotes, model.Quote{
			Symbol:        q.Symbol,
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			High:          q.DayHigh,
			Low:           q.DayLow,
			Open:          q.Open,
			PrevClose:     q.PreviousClose,
			Volume:        q.Volume,
			UpdatedAt:     ts,
		})
	}
	return quotes, nil
}

type fmpNews struct {
	Symbol        string `json:"symbol"`
	PublishedDate string `json:"publishedDate"`
	Title         string `json:"title"`
	Site          string `json:"site"`
	Text          string `json:"text"`
	URL           string `json:"url"`
}

// GetNews fetches recent stock news. Item-level parse problems are
// logged and skipped.
func (f *FMP) GetNews(ctx context.Context, params NewsParams) ([]model.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.newsTimeout)
	defer cancel()

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var raw []fmpNews
	if err := f.client.get(ctx, "/stock_news", query, &raw); err != nil {
		return nil, fmt.Errorf("fmp news: %w", err)
	}

	items := make([]model.NewsItem, 0, len(raw))
	for _, n := range raw {
		published, err := time.ParseInLocation(fmpTimeLayout, n.PublishedDate, time.UTC)
		if err != nil || n.Title == "" {
			f.logger.Debug("skipping malformed news item", "provider", "fmp", "url", n.URL)
			continue
		}
		if !params.Since.IsZero() && published.Before(params.Since) {
			continue
		}
		var provided []string
		if s := strings.ToUpper(strings.TrimSpace(n.Symbol)); s != "" {
			provided = []string{s}
		}
		items = append(items, model.NewsItem{
			Title:           n.Title,
			Summary:         n.Text,
			URL:             n.URL,
			Source:          "fmp",
			PublishedAt:     published,
			ProviderSymbols: provided,
		})
	}
	return items, nil
}

type fmpMover struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Change        float64 `json:"change"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changesPercentage"`
}

// TopGainers fetches the day's top gaining symbols, strongest first.
func (f *FMP) TopGainers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.quoteTimeout)
	defer cancel()

	var raw []fmpMover
	if err := f.client.get(ctx, "/stock_market/gainers", nil, &raw); err != nil {
		return nil, fmt.Errorf("fmp gainers: %w", err)
	}

	symbols := make([]string, 0, len(raw))
	for _, m := range raw {
		if s := strings.ToUpper(strings.TrimSpace(m.Symbol)); plainTicker(s) {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}

type fmpListing struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Exchange          string `json:"exchange"`
	ExchangeShortName string `json:"exchangeShortName"`
	Type              string `json:"type"`
}

// ListSymbols fetches the full listing and keeps US stock and ETF entries.
func (f *FMP) ListSymbols(ctx context.Context) ([]model.Symbol, error) {
	ctx, cancel := context.WithTimeout(ctx, f.masterTimeout)
	defer cancel()

	var raw []fmpListing
	if err := f.client.get(ctx, "/stock/list", nil, &raw); err != nil {
		return nil, fmt.Errorf("fmp symbol list: %w", err)
	}

	symbols := make([]model.Symbol, 0, len(raw))
	for _, l := range raw {
		var typ model.SymbolType
		switch l.Type {
		case "stock":
			typ = model.TypeStock
		case "etf":
			typ = model.TypeETF
		default:
			continue
		}
		exchange := shortNameToExchange(l.ExchangeShortName)
		if exchange == model.ExchangeOther {
			continue
		}
		if !plainTicker(l.Symbol) {
			continue
		}
		symbols = append(symbols, model.Symbol{
			Symbol:      l.Symbol,
			CompanyName: l.Name,
			Exchange:    exchange,
			Type:        typ,
			IsActive:    true,
		})
	}
	return symbols, nil
}

func shortNameToExchange(short string) model.Exchange {
	switch short {
	case "NASDAQ":
		return model.ExchangeNASDAQ
	case "NYSE":
		return model.ExchangeNYSE
	case "AMEX":
		return model.ExchangeAMEX
	default:
		return model.ExchangeOther
	}
}
