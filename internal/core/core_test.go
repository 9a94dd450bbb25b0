package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/news"
	"github.com/marketdesk/marketdesk/internal/provider"
	"github.com/marketdesk/marketdesk/internal/resolve"
	"github.com/marketdesk/marketdesk/internal/store"
	"github.com/marketdesk/marketdesk/internal/symbols"
)

// staticDirectory is a symbols.Source serving a fixed listing.
type staticDirectory struct {
	listings []model.Symbol
}

func (d *staticDirectory) Name() string { return "static-directory" }

func (d *staticDirectory) ListSymbols(context.Context) ([]model.Symbol, error) {
	return d.listings, nil
}

// staticFeed is a news.Source serving a fixed batch.
type staticFeed struct {
	items []model.NewsItem
}

func (f *staticFeed) Name() string { return "static-feed" }

func (f *staticFeed) GetNews(context.Context, provider.NewsParams) ([]model.NewsItem, error) {
	return f.items, nil
}

func testListings() []model.Symbol {
	return []model.Symbol{
		{Symbol: "AAPL", CompanyName: "Apple Inc", Exchange: model.ExchangeNASDAQ, Type: model.TypeStock, IsActive: true},
		{Symbol: "NVDA", CompanyName: "NVIDIA Corp", Exchange: model.ExchangeNASDAQ, Type: model.TypeStock, IsActive: true},
		{Symbol: "JPM", CompanyName: "JPMorgan Chase & Co", Exchange: model.ExchangeNYSE, Type: model.TypeStock, IsActive: true},
	}
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	c, err := New(config.Defaults(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

// installDirectory rebinds the core's symbol master to one serving the
// given listings, leaving it unstarted so Core.Start owns its lifecycle.
func installDirectory(c *Core, listings []model.Symbol) {
	master := symbols.NewMaster(c.cfg.Symbols, []symbols.Source{&staticDirectory{listings: listings}}, nil)
	c.master = master
	c.resolver = resolve.New(c.cfg.Resolver, master, nil)
}

// swapDirectory installs a directory and starts the master, for tests
// that exercise the facade without starting the core.
func swapDirectory(t *testing.T, c *Core, listings []model.Symbol) {
	t.Helper()
	installDirectory(c, listings)
	if err := c.master.Start(context.Background()); err != nil {
		t.Fatalf("master start failed: %v", err)
	}
	master := c.master
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = master.Stop(ctx)
	})
}

func TestCore_NewStartsFromDefaults(t *testing.T) {
	c, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil, nil) failed: %v", err)
	}

	status := c.Status()
	if status.Session.State != model.StateDisconnected {
		t.Errorf("initial session state = %q, want %q", status.Session.State, model.StateDisconnected)
	}
	if len(status.Providers) != 0 {
		t.Errorf("providers without keys = %d, want 0", len(status.Providers))
	}
	if _, ok := c.Scanner("movers", 5); ok {
		t.Error("Scanner returned a result before any scan ran")
	}
	if got := c.Stats().Poller.Cycles; got != 0 {
		t.Errorf("poller cycles before start = %d, want 0", got)
	}
}

func TestCore_QuotesServesStoreFirst(t *testing.T) {
	c := newTestCore(t)

	c.store.Update(func(tx *store.Tx) {
		tx.PutQuote(model.Quote{Symbol: "AAPL", Price: 187.5, PrevClose: 185, Volume: 1200})
	})

	// No provider has an API key, so the MSFT miss cannot be filled.
	got := c.Quotes(context.Background(), []string{" aapl ", "MSFT"})
	if len(got) != 1 {
		t.Fatalf("len(quotes) = %d, want 1", len(got))
	}
	if got[0].Symbol != "AAPL" || got[0].Price != 187.5 {
		t.Errorf("quote = %+v, want stored AAPL at 187.5", got[0])
	}
}

func TestCore_QuotesFillsMissesFromProviders(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		if got := r.URL.Query().Get("symbol"); got != "MSFT" {
			t.Errorf("fetched symbol = %q, want %q", got, "MSFT")
		}
		w.Write([]byte(`{"c": 410.25, "d": 3.25, "dp": 0.8, "h": 411.0, "l": 405.5, "o": 406.0, "pc": 407.0, "t": 1700000000}`))
	}))
	defer server.Close()

	cfg := config.Defaults()
	cfg.Providers.Finnhub.APIKey = "test-key"
	cfg.Providers.Finnhub.BaseURL = server.URL
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.store.Update(func(tx *store.Tx) {
		tx.PutQuote(model.Quote{Symbol: "AAPL", Price: 187.5})
	})

	got := c.Quotes(context.Background(), []string{"AAPL", "MSFT"})
	if len(got) != 2 {
		t.Fatalf("len(quotes) = %d, want 2", len(got))
	}
	if got[0].Symbol != "AAPL" || got[1].Symbol != "MSFT" {
		t.Fatalf("order = [%s %s], want input order [AAPL MSFT]", got[0].Symbol, got[1].Symbol)
	}
	if got[1].Price != 410.25 {
		t.Errorf("fetched price = %v, want 410.25", got[1].Price)
	}

	// The fetched quote is stored, so repeating the call stays local.
	again := c.Quotes(context.Background(), []string{"MSFT"})
	if len(again) != 1 || again[0].Price != 410.25 {
		t.Fatalf("second call = %+v, want stored MSFT quote", again)
	}
	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Errorf("upstream requests = %d, want 1", requests)
	}
}

func TestCore_QuotesBlankInput(t *testing.T) {
	c := newTestCore(t)
	if got := c.Quotes(context.Background(), nil); got != nil {
		t.Errorf("Quotes(nil) = %v, want nil", got)
	}
	if got := c.Quotes(context.Background(), []string{"", "   "}); got != nil {
		t.Errorf("Quotes(blank) = %v, want nil", got)
	}
}

func TestCore_RefreshNewsResolvesAndSubscribes(t *testing.T) {
	c := newTestCore(t)
	swapDirectory(t, c, testListings())

	published := time.Now().UTC().Add(-10 * time.Minute)
	c.news = news.NewAggregator(c.cfg.News, []news.Source{&staticFeed{items: []model.NewsItem{
		{
			Title:       "Apple shares jump after earnings beat as $AAPL raises guidance",
			URL:         "https://example.com/apple-earnings",
			Source:      "static-feed",
			PublishedAt: published,
		},
		{
			Title:       "Markets drift lower into the close",
			URL:         "https://example.com/markets-drift",
			Source:      "static-feed",
			PublishedAt: published,
		},
	}}}, nil, nil)

	result := c.RefreshNews(context.Background(), 0)
	if len(result.Items) != 2 {
		t.Fatalf("refresh kept %d items, want 2", len(result.Items))
	}
	if len(result.Errors) != 0 {
		t.Fatalf("refresh errors = %v, want none", result.Errors)
	}

	if got := c.News(10); len(got) != 2 {
		t.Errorf("stored news = %d items, want 2", len(got))
	}

	var apple model.NewsItem
	for _, item := range result.Items {
		if strings.HasPrefix(item.Title, "Apple") {
			apple = item
		}
	}
	v, ok := c.Verdict(apple.ID)
	if !ok {
		t.Fatal("no verdict stored for the Apple item")
	}
	if v.Ticker != "AAPL" {
		t.Errorf("verdict ticker = %q, want %q (reason %s)", v.Ticker, "AAPL", v.Reason)
	}

	subscribed := c.session.Subscribed()
	if len(subscribed) != 1 || subscribed[0] != "AAPL" {
		t.Errorf("subscribed = %v, want [AAPL]", subscribed)
	}
}

func TestCore_ScannerCapsRows(t *testing.T) {
	c := newTestCore(t)

	c.store.Update(func(tx *store.Tx) {
		tx.PutScannerResult(model.ScannerResult{
			Preset:      "movers",
			GeneratedAt: time.Now(),
			Rows: []model.ScannerRow{
				{Symbol: "NVDA", Score: 5.2},
				{Symbol: "AAPL", Score: 3.1},
				{Symbol: "JPM", Score: 1.4},
			},
		})
	})

	capped, ok := c.Scanner("movers", 2)
	if !ok {
		t.Fatal("Scanner found no movers result")
	}
	if len(capped.Rows) != 2 {
		t.Fatalf("capped rows = %d, want 2", len(capped.Rows))
	}
	if capped.Rows[0].Symbol != "NVDA" {
		t.Errorf("top row = %q, want %q", capped.Rows[0].Symbol, "NVDA")
	}

	full, ok := c.Scanner("movers", 0)
	if !ok || len(full.Rows) != 3 {
		t.Fatalf("uncapped rows = %d, want 3", len(full.Rows))
	}

	if _, ok := c.Scanner("no-such-preset", 5); ok {
		t.Error("Scanner returned a result for an unknown preset")
	}
}

func TestCore_TicksNormalizesSymbol(t *testing.T) {
	c := newTestCore(t)

	c.store.Update(func(tx *store.Tx) {
		tx.AppendTick(model.Tick{Symbol: "AAPL", Price: 187.5, Volume: 100, Timestamp: time.Now().UnixMilli(), Source: model.SourceStream})
	})

	got := c.Ticks(" aapl ")
	if len(got) != 1 || got[0].Price != 187.5 {
		t.Fatalf("Ticks(\" aapl \") = %+v, want the stored AAPL tick", got)
	}
}

func TestCore_CandlesRequireCapableProvider(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.Candles(context.Background(), "AAPL", "5", 30); err == nil {
		t.Fatal("Candles succeeded with no candle-capable provider")
	}
}

func TestCore_StartFailsWithoutSymbolSources(t *testing.T) {
	c := newTestCore(t)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with no symbol sources")
	}
	if !strings.Contains(err.Error(), "symbol master") {
		t.Errorf("error = %v, want a symbol master failure", err)
	}
}

func TestCore_StartStopLifecycle(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stream.URL = "ws://127.0.0.1:1/ws" // nothing listens; the session retries in the background
	cfg.Watchlist = []string{"nvda"}

	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	installDirectory(c, testListings())
	c.news = news.NewAggregator(cfg.News, nil, nil, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := c.session.Subscribed(); len(got) != 1 || got[0] != "NVDA" {
		t.Errorf("subscribed after start = %v, want [NVDA]", got)
	}
	if got := c.SearchSymbols("nvidia", symbols.SearchOptions{}); len(got) == 0 {
		t.Error("SearchSymbols found nothing after the directory loaded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := c.StreamStatus().State; got != model.StateDisconnected {
		t.Errorf("session state after stop = %q, want %q", got, model.StateDisconnected)
	}
}

func TestCore_ObserverSeesCommittedBatches(t *testing.T) {
	c := newTestCore(t)

	o := c.Observe()
	defer c.Unobserve(o)

	c.store.Update(func(tx *store.Tx) {
		tx.PutQuote(model.Quote{Symbol: "AAPL", Price: 187.5})
	})

	select {
	case diff := <-o.C():
		if len(diff.Quotes) != 1 {
			t.Errorf("diff quotes = %d, want 1", len(diff.Quotes))
		}
	case <-time.After(time.Second):
		t.Fatal("no diff delivered")
	}
}
