package model

import (
	"testing"
	"time"
)

// TestModelTypes validates that model types can be instantiated correctly.
func TestModelTypes(t *testing.T) {
	t.Run("Symbol", func(t *testing.T) {
		s := Symbol{
			Symbol:      "NVDA",
			CompanyName: "NVIDIA Corp",
			Aliases:     []string{"nvda", "nvidia corp", "nvidia"},
			Exchange:    ExchangeNASDAQ,
			Type:        TypeStock,
			IsActive:    true,
			Sector:      "Technology",
		}

		if s.Symbol != "NVDA" {
			t.Errorf("Symbol = %q, want %q", s.Symbol, "NVDA")
		}
		if s.Exchange != ExchangeNASDAQ {
			t.Errorf("Exchange = %q, want %q", s.Exchange, ExchangeNASDAQ)
		}
		if len(s.Aliases) != 3 {
			t.Errorf("len(Aliases) = %d, want 3", len(s.Aliases))
		}
	})

	t.Run("NewsItem", func(t *testing.T) {
		pub := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
		n := NewsItem{
			ID:              "a1b2c3",
			Title:           "NVDA beats Q2",
			Summary:         "Data center revenue up.",
			URL:             "https://example.com/news/nvda-q2",
			Source:          "finnhub",
			PublishedAt:     pub,
			ProviderSymbols: []string{"NVDA"},
		}

		if n.ID != "a1b2c3" {
			t.Errorf("ID = %q, want %q", n.ID, "a1b2c3")
		}
		if !n.PublishedAt.Equal(pub) {
			t.Errorf("PublishedAt = %v, want %v", n.PublishedAt, pub)
		}
		if len(n.ProviderSymbols) != 1 || n.ProviderSymbols[0] != "NVDA" {
			t.Errorf("ProviderSymbols = %v, want [NVDA]", n.ProviderSymbols)
		}
	})

	t.Run("Verdict", func(t *testing.T) {
		v := Verdict{
			NewsID:        "a1b2c3",
			Ticker:        "NVDA",
			Confidence:    1.0,
			Score:         100,
			Reason:        ReasonResolved,
			MatchType:     MatchCashtag,
			MatchedPhrase: "$NVDA",
			Context:       ContextTitle,
		}

		if !v.Resolved() {
			t.Error("Resolved() = false, want true")
		}
		if v.MatchType != MatchCashtag {
			t.Errorf("MatchType = %q, want %q", v.MatchType, MatchCashtag)
		}
	})

	t.Run("Tick", func(t *testing.T) {
		tk := Tick{
			Symbol:    "TSLA",
			Price:     242.55,
			Volume:    100,
			Timestamp: 1705321845000,
			Source:    SourceStream,
		}

		if tk.Symbol != "TSLA" {
			t.Errorf("Symbol = %q, want %q", tk.Symbol, "TSLA")
		}
		if tk.Price != 242.55 {
			t.Errorf("Price = %v, want %v", tk.Price, 242.55)
		}
		if tk.Source != SourceStream {
			t.Errorf("Source = %q, want %q", tk.Source, SourceStream)
		}
	})

	t.Run("ScannerResult", func(t *testing.T) {
		r := ScannerResult{
			Preset: "movers",
			Rows: []ScannerRow{
				{Symbol: "TSLA", Score: 4.0, Metrics: map[string]float64{"changePercent": 4.0}},
			},
			GeneratedAt: time.Now(),
		}

		if r.Preset != "movers" {
			t.Errorf("Preset = %q, want %q", r.Preset, "movers")
		}
		if len(r.Rows) != 1 || r.Rows[0].Symbol != "TSLA" {
			t.Errorf("Rows = %v, want single TSLA row", r.Rows)
		}
	})

	t.Run("SessionStatus", func(t *testing.T) {
		s := SessionStatus{
			State:           StateLive,
			SubscribedCount: 3,
			MarketPhase:     PhaseRegular,
		}

		if s.State != StateLive {
			t.Errorf("State = %q, want %q", s.State, StateLive)
		}
		if s.SubscribedCount != 3 {
			t.Errorf("SubscribedCount = %d, want 3", s.SubscribedCount)
		}
	})
}

// TestVerdictResolved tests the accepted-ticker predicate.
func TestVerdictResolved(t *testing.T) {
	tests := []struct {
		name    string
		verdict Verdict
		want    bool
	}{
		{"accepted", Verdict{Ticker: "MSFT", Confidence: 1.0, Reason: ReasonResolved}, true},
		{"general", Verdict{IsGeneral: true, Reason: ReasonGeneral}, false},
		{"ambiguous", Verdict{Reason: ReasonAmbiguous}, false},
		{"zero value", Verdict{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.verdict.Resolved(); got != tt.want {
				t.Errorf("Resolved() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestQuoteStale tests staleness thresholds per market phase.
func TestQuoteStale(t *testing.T) {
	now := time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		age   time.Duration
		phase MarketPhase
		want  bool
	}{
		{"fresh regular", 1 * time.Minute, PhaseRegular, false},
		{"4m59s regular", 5*time.Minute - time.Second, PhaseRegular, false},
		{"6m regular", 6 * time.Minute, PhaseRegular, true},
		{"6m pre-market", 6 * time.Minute, PhasePre, false},
		{"14m post-market", 14 * time.Minute, PhasePost, false},
		{"16m closed", 16 * time.Minute, PhaseClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote{Symbol: "AAPL", Price: 190, UpdatedAt: now.Add(-tt.age).UnixMilli()}
			if got := q.Stale(now, tt.phase); got != tt.want {
				t.Errorf("Stale(%v old, %s) = %v, want %v", tt.age, tt.phase, got, tt.want)
			}
		})
	}

	t.Run("never updated", func(t *testing.T) {
		var q Quote
		if !q.Stale(now, PhaseRegular) {
			t.Error("Stale() = false for zero-value quote, want true")
		}
	})
}
