package provider

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIEXGetQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock/market/batch" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/stock/market/batch")
		}
		q := r.URL.Query()
		if got := q.Get("symbols"); got != "AAPL,MSFT" {
			t.Errorf("symbols = %q, want %q", got, "AAPL,MSFT")
		}
		if got := q.Get("types"); got != "quote" {
			t.Errorf("types = %q, want %q", got, "quote")
		}
		if got := q.Get("token"); got != "test-key" {
			t.Errorf("token = %q, want %q", got, "test-key")
		}
		w.Write([]byte(`{
			"AAPL": {"quote": {"symbol": "AAPL", "latestPrice": 185.5, "change": 2.5, "changePercent": 0.0137, "high": 186.0, "low": 183.2, "open": 183.5, "previousClose": 183.0, "latestVolume": 52000000, "latestUpdate": 1700000000000}}
		}`))
	}))
	defer server.Close()

	x := NewIEX(testProvidersConfig(server.URL), nil)
	quotes, err := x.GetQuotes(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("GetQuotes failed: %v", err)
	}
	// MSFT is absent from the batch response and silently dropped.
	if len(quotes) != 1 {
		t.Fatalf("len(quotes) = %d, want 1", len(quotes))
	}

	q := quotes[0]
	if q.Symbol != "AAPL" || q.Price != 185.5 {
		t.Errorf("quote = %+v, want AAPL at 185.5", q)
	}
	// IEX reports the change as a fraction.
	if math.Abs(q.ChangePercent-1.37) > 1e-9 {
		t.Errorf("ChangePercent = %v, want %v", q.ChangePercent, 1.37)
	}
	if q.UpdatedAt != 1700000000000 {
		t.Errorf("UpdatedAt = %d, want %d", q.UpdatedAt, int64(1700000000000))
	}
}
