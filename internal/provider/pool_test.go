package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/config"
)

// testProvidersConfig points every adapter at url with budgets loose
// enough that the limiter never interferes with a test.
func testProvidersConfig(url string) config.ProvidersConfig {
	adapter := config.AdapterConfig{APIKey: "test-key", BaseURL: url, RPM: 60000, Burst: 1000}
	return config.ProvidersConfig{
		Finnhub:       adapter,
		FMP:           adapter,
		Alphavantage:  adapter,
		IEX:           adapter,
		NewsTimeout:   2 * time.Second,
		QuoteTimeout:  2 * time.Second,
		MasterTimeout: 2 * time.Second,
		MaxRetries:    0,
	}
}

func TestNewPool(t *testing.T) {
	t.Run("all adapters enabled", func(t *testing.T) {
		p := NewPool(testProvidersConfig("http://unused.invalid"), nil)

		adapters := p.Adapters()
		if len(adapters) != 4 {
			t.Fatalf("len(adapters) = %d, want 4", len(adapters))
		}
		wantOrder := []string{"finnhub", "fmp", "iex", "alphavantage"}
		for i, want := range wantOrder {
			if got := adapters[i].Name(); got != want {
				t.Errorf("adapters[%d] = %q, want %q", i, got, want)
			}
		}
	})

	t.Run("missing key disables the adapter", func(t *testing.T) {
		cfg := testProvidersConfig("http://unused.invalid")
		cfg.FMP.APIKey = ""
		p := NewPool(cfg, nil)

		if len(p.Adapters()) != 3 {
			t.Fatalf("len(adapters) = %d, want 3", len(p.Adapters()))
		}
		if p.Enabled("fmp") {
			t.Error("Enabled(fmp) = true, want false")
		}
		if !p.Enabled("finnhub") {
			t.Error("Enabled(finnhub) = false, want true")
		}

		health := p.Health()
		if len(health) != 4 {
			t.Fatalf("len(health) = %d, want 4 (disabled adapters included)", len(health))
		}
		for _, h := range health {
			if h.Name != "fmp" {
				continue
			}
			if h.Enabled || h.Healthy {
				t.Errorf("fmp health = %+v, want disabled and unhealthy", h)
			}
			if h.LastError != "no API key configured" {
				t.Errorf("fmp LastError = %q, want %q", h.LastError, "no API key configured")
			}
		}
	})
}

func TestPoolCapabilities(t *testing.T) {
	p := NewPool(testProvidersConfig("http://unused.invalid"), nil)

	news := p.NewsSources()
	if len(news) != 3 {
		t.Fatalf("len(NewsSources) = %d, want 3", len(news))
	}
	for i, want := range []string{"finnhub", "fmp", "alphavantage"} {
		if got := news[i].Name(); got != want {
			t.Errorf("NewsSources[%d] = %q, want %q", i, got, want)
		}
	}

	syms := p.SymbolSources()
	if len(syms) != 2 {
		t.Fatalf("len(SymbolSources) = %d, want 2", len(syms))
	}
	if syms[0].Name() != "finnhub" || syms[1].Name() != "fmp" {
		t.Errorf("SymbolSources = [%s %s], want [finnhub fmp]", syms[0].Name(), syms[1].Name())
	}

	if cs, ok := p.CandleSource(); !ok || cs.Name() != "finnhub" {
		t.Errorf("CandleSource = %v, %v; want finnhub, true", cs, ok)
	}
	if ms, ok := p.MoverSource(); !ok || ms.Name() != "fmp" {
		t.Errorf("MoverSource = %v, %v; want fmp, true", ms, ok)
	}
}

func TestPoolQuotesFailover(t *testing.T) {
	// The finnhub adapter hits /quote and fails; the fmp adapter hits
	// /quote/AAPL and succeeds.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			w.WriteHeader(http.StatusInternalServerError)
		case "/quote/AAPL":
			w.Write([]byte(`[{"symbol": "AAPL", "price": 185.5, "previousClose": 183.0, "timestamp": 1700000000}]`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := NewPool(testProvidersConfig(server.URL), nil)
	quotes, err := p.Quotes(context.Background(), []string{"AAPL"})
	if err != nil {
		t.Fatalf("Quotes failed: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Symbol != "AAPL" || quotes[0].Price != 185.5 {
		t.Fatalf("quotes = %+v, want AAPL at 185.5", quotes)
	}

	var finnhub, fmp bool
	for _, h := range p.Health() {
		switch h.Name {
		case "finnhub":
			finnhub = true
			if h.Healthy {
				t.Error("finnhub healthy after failure, want unhealthy")
			}
			if h.LastError == "" {
				t.Error("finnhub LastError empty after failure")
			}
		case "fmp":
			fmp = true
			if !h.Healthy {
				t.Error("fmp unhealthy after success, want healthy")
			}
			if h.LastSuccess.IsZero() {
				t.Error("fmp LastSuccess is zero after success")
			}
		}
	}
	if !finnhub || !fmp {
		t.Error("health snapshot missing adapters")
	}
}

func TestPoolQuotesAllFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewPool(testProvidersConfig(server.URL), nil)
	_, err := p.Quotes(context.Background(), []string{"AAPL"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if KindOf(err) != KindUnavailable {
		t.Errorf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindUnavailable, err)
	}
}

func TestPoolQuotesNoAdapters(t *testing.T) {
	cfg := testProvidersConfig("http://unused.invalid")
	cfg.Finnhub.APIKey = ""
	cfg.FMP.APIKey = ""
	cfg.Alphavantage.APIKey = ""
	cfg.IEX.APIKey = ""

	p := NewPool(cfg, nil)
	_, err := p.Quotes(context.Background(), []string{"AAPL"})
	if !errors.Is(err, ErrNoAdapters) {
		t.Errorf("err = %v, want ErrNoAdapters", err)
	}
}

func TestPoolRecord(t *testing.T) {
	p := NewPool(testProvidersConfig("http://unused.invalid"), nil)

	p.Record("finnhub", &Error{Provider: "finnhub", Kind: KindUnavailable, Message: "down"})
	for _, h := range p.Health() {
		if h.Name == "finnhub" && h.Healthy {
			t.Error("finnhub healthy after recorded failure")
		}
	}

	p.Record("finnhub", nil)
	for _, h := range p.Health() {
		if h.Name != "finnhub" {
			continue
		}
		if !h.Healthy {
			t.Error("finnhub unhealthy after recorded success")
		}
		if h.LastError != "" {
			t.Errorf("LastError = %q, want empty after success", h.LastError)
		}
		if h.LastSuccess.IsZero() {
			t.Error("LastSuccess is zero after recorded success")
		}
	}

	// Recording against a disabled or unknown adapter is a no-op.
	p.Record("nope", nil)
}
