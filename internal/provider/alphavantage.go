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

const alphavantageBaseURL = "https://www.alphavantage.co"

// avTimeLayout is the time_published format of the NEWS_SENTIMENT endpoint.
const avTimeLayout = "20060102T150405"

// avMinTickerRelevance drops sentiment tickers the upstream considers
// incidental; only strongly relevant tickers become provider symbols.
const avMinTickerRelevance = 0.5

// Alphavantage is the news-sentiment provider. The free tier allows five
// requests per minute, so the default limiter is tight.
type Alphavantage struct {
	client       *Client
	logger       *slog.Logger
	newsTimeout  time.Duration
	quoteTimeout time.Duration
}

// NewAlphavantage builds the alphavantage adapter from the providers config block.
func NewAlphavantage(cfg config.ProvidersConfig, logger *slog.Logger, opts ...ClientOption) *Alphavantage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NewsTimeout <= 0 {
		cfg.NewsTimeout = config.DefaultNewsTimeout
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = config.DefaultQuoteTimeout
	}
	base := cfg.Alphavantage.BaseURL
	if base == "" {
		base = alphavantageBaseURL
	}

	clientOpts := []ClientOption{
		WithAuthQuery("apikey"),
		WithLimiter(NewLimiter("alphavantage", cfg.Alphavantage.RPM, cfg.Alphavantage.Burst)),
		WithRetries(cfg.MaxRetries, 250*time.Millisecond),
		WithLogger(logger),
	}
	clientOpts = append(clientOpts, opts...)

	return &Alphavantage{
		client:       NewClient("alphavantage", base, cfg.Alphavantage.APIKey, clientOpts...),
		logger:       logger,
		newsTimeout:  cfg.NewsTimeout,
		quoteTimeout: cfg.QuoteTimeout,
	}
}

// Name implements Adapter.
func (a *Alphavantage) Name() string { return "alphavantage" }

type avNewsFeed struct {
	Feed []avNewsItem `json:"feed"`
	// The upstream reports throttling as a 200 with one of these set
	// and no feed.
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

type avNewsItem struct {
	Title           string        `json:"title"`
	URL             string        `json:"url"`
	TimePublished   string        `json:"time_published"`
	Summary         string        `json:"summary"`
	Source          string        `json:"source"`
	TickerSentiment []avSentiment `json:"ticker_sentiment"`
}

type avSentiment struct {
	Ticker         string `json:"ticker"`
	RelevanceScore string `json:"relevance_score"`
}

// GetNews fetches sentiment-annotated news. Tickers with a relevance
// score of at least 0.5 are attached as provider symbols.
func (a *Alphavantage) GetNews(ctx context.Context, params NewsParams) ([]model.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, a.newsTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("function", "NEWS_SENTIMENT")
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var raw avNewsFeed
	if err := a.client.get(ctx, "/query", query, &raw); err != nil {
		return nil, fmt.Errorf("alphavantage news: %w", err)
	}
	if len(raw.Feed) == 0 && (raw.Note != "" || raw.Information != "") {
		return nil, &Error{Provider: "alphavantage", Kind: KindRateLimited, Message: "upstream throttle note"}
	}

	items := make([]model.NewsItem, 0, len(raw.Feed))
	for _, n := range raw.Feed {
		published, err := time.ParseInLocation(avTimeLayout, n.TimePublished, time.UTC)
		if err != nil || n.Title == "" {
			a.logger.Debug("skipping malformed news item", "provider", "alphavantage", "url", n.URL)
			continue
		}
		if !params.Since.IsZero() && published.Before(params.Since) {
			continue
		}
		items = append(items, model.NewsItem{
			Title:           n.Title,
			Summary:         n.Summary,
			URL:             n.URL,
			Source:          "alphavantage",
			PublishedAt:     published,
			ProviderSymbols: relevantTickers(n.TickerSentiment),
		})
	}
	return items, nil
}

func relevantTickers(sentiments []avSentiment) []string {
	var tickers []string
	for _, s := range sentiments {
		score, err := strconv.ParseFloat(s.RelevanceScore, 64)
		if err != nil || score < avMinTickerRelevance {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(s.Ticker))
		if plainTicker(ticker) {
			tickers = append(tickers, ticker)
		}
	}
	return tickers
}

type avGlobalQuote struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"` // e.g. "1.2345%"
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// GetQuotes fetches one GLOBAL_QUOTE per symbol. With the free-tier rate
// this is a last-resort quote path.
func (a *Alphavantage) GetQuotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	quotes := make([]model.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		q, err := a.getQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (a *Alphavantage) getQuote(ctx context.Context, symbol string) (model.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.quoteTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)

	var raw avGlobalQuote
	if err := a.client.get(ctx, "/query", query, &raw); err != nil {
		return model.Quote{}, fmt.Errorf("alphavantage quote %s: %w", symbol, err)
	}
	if raw.Quote.Symbol == "" {
		if raw.Note != "" || raw.Information != "" {
			return model.Quote{}, &Error{Provider: "alphavantage", Kind: KindRateLimited, Message: "upstream throttle note"}
		}
		return model.Quote{}, &Error{Provider: "alphavantage", Kind: KindMalformed, Message: "empty global quote"}
	}

	volume, _ := strconv.ParseInt(raw.Quote.Volume, 10, 64)
	return model.Quote{
		Symbol:        symbol,
		Price:         parseFloat(raw.Quote.Price),
		Change:        parseFloat(raw.Quote.Change),
		ChangePercent: parseFloat(strings.TrimSuffix(raw.Quote.ChangePercent, "%")),
		High:          parseFloat(raw.Quote.High),
		Low:           parseFloat(raw.Quote.Low),
		Open:          parseFloat(raw.Quote.Open),
		PrevClose:     parseFloat(raw.Quote.PrevClose),
		Volume:        volume,
		UpdatedAt:     time.Now().UnixMilli(),
	}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
