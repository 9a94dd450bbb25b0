package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

func newsItem(id string, publishedAt time.Time) model.NewsItem {
	return model.NewsItem{
		ID:          id,
		Title:       "headline " + id,
		URL:         "https://example.com/" + id,
		Source:      "finnhub",
		PublishedAt: publishedAt,
	}
}

func TestStore_UpdateDeliversOneDiffPerBatch(t *testing.T) {
	s := New(DefaultConfig(), nil)
	obs := s.Observe()
	defer s.Unobserve(obs)

	s.Update(func(tx *Tx) {
		tx.AppendTick(tickAt(1000))
		tx.QuoteFromTick(tickAt(1000))
		tx.PutQuote(model.Quote{Symbol: "AMD", Price: 120})
		tx.SetSessionState(model.StateLive, 0)
	})

	select {
	case d := <-obs.C():
		if len(d.Ticks) != 1 || d.Ticks[0] != "NVDA" {
			t.Errorf("Ticks = %v, want [NVDA]", d.Ticks)
		}
		if len(d.Quotes) != 2 {
			t.Errorf("Quotes = %v, want NVDA and AMD", d.Quotes)
		}
		if !d.Session {
			t.Error("Session = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("no diff delivered")
	}

	// One batch, one diff.
	select {
	case d := <-obs.C():
		t.Errorf("unexpected second diff: %+v", d)
	default:
	}
}

func TestStore_EmptyUpdateNotifiesNobody(t *testing.T) {
	s := New(DefaultConfig(), nil)
	obs := s.Observe()
	defer s.Unobserve(obs)

	diff := s.Update(func(tx *Tx) {})
	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty", diff)
	}

	select {
	case d := <-obs.C():
		t.Errorf("unexpected diff: %+v", d)
	default:
	}
}

func TestStore_SlowObserverCoalesces(t *testing.T) {
	s := New(DefaultConfig(), nil)
	obs := s.Observe()
	defer s.Unobserve(obs)

	// Three batches committed before the observer reads anything.
	s.Update(func(tx *Tx) { tx.PutQuote(model.Quote{Symbol: "NVDA", Price: 100}) })
	s.Update(func(tx *Tx) { tx.PutQuote(model.Quote{Symbol: "AMD", Price: 120}) })
	s.Update(func(tx *Tx) { tx.SetSessionState(model.StateLive, 0) })

	d := <-obs.C()
	if len(d.Quotes) != 2 {
		t.Errorf("Quotes = %v, want both symbols merged", d.Quotes)
	}
	if !d.Session {
		t.Error("Session = false, want true after merge")
	}

	select {
	case extra := <-obs.C():
		t.Errorf("unexpected extra diff: %+v", extra)
	default:
	}
}

func TestStore_UnobserveStopsDelivery(t *testing.T) {
	s := New(DefaultConfig(), nil)
	obs := s.Observe()
	s.Unobserve(obs)

	s.Update(func(tx *Tx) { tx.PutQuote(model.Quote{Symbol: "NVDA", Price: 100}) })

	select {
	case d := <-obs.C():
		t.Errorf("diff delivered after Unobserve: %+v", d)
	default:
	}
}

func TestStore_QuoteFromTick(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) {
		tx.PutQuote(model.Quote{Symbol: "NVDA", Price: 100, PrevClose: 100, UpdatedAt: 1})
	})
	s.Update(func(tx *Tx) {
		tk := model.Tick{Symbol: "NVDA", Price: 104, Volume: 500, Timestamp: 2000, Source: model.SourceStream}
		tx.AppendTick(tk)
		tx.QuoteFromTick(tk)
	})

	q, ok := s.Quote("NVDA")
	if !ok {
		t.Fatal("Quote(NVDA) not found")
	}
	if q.Price != 104 {
		t.Errorf("Price = %v, want 104", q.Price)
	}
	if q.Change != 4 {
		t.Errorf("Change = %v, want 4", q.Change)
	}
	if q.ChangePercent != 4 {
		t.Errorf("ChangePercent = %v, want 4", q.ChangePercent)
	}
	if q.High != 104 {
		t.Errorf("High = %v, want 104", q.High)
	}
	if q.Low != 104 {
		t.Errorf("Low = %v, want 104", q.Low)
	}
	if q.UpdatedAt != 2000 {
		t.Errorf("UpdatedAt = %v, want 2000", q.UpdatedAt)
	}
}

func TestStore_QuoteFromTickAccumulatesVolume(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) {
		for i := int64(1); i <= 3; i++ {
			tk := model.Tick{Symbol: "NVDA", Price: 100, Volume: 100, Timestamp: i * 1000}
			tx.QuoteFromTick(tk)
		}
	})

	q, _ := s.Quote("NVDA")
	if q.Volume != 300 {
		t.Errorf("Volume = %d, want 300", q.Volume)
	}
}

func TestStore_PutQuoteKeepsReferenceFields(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) {
		tx.PutQuote(model.Quote{Symbol: "NVDA", Price: 100, PrevClose: 98, Open: 99, High: 101, Low: 97, UpdatedAt: 1000})
	})
	// A poll refresh without reference fields must not erase them.
	s.Update(func(tx *Tx) {
		tx.PutQuote(model.Quote{Symbol: "NVDA", Price: 102, UpdatedAt: 2000})
	})

	q, _ := s.Quote("NVDA")
	if q.PrevClose != 98 {
		t.Errorf("PrevClose = %v, want 98", q.PrevClose)
	}
	if q.Open != 99 {
		t.Errorf("Open = %v, want 99", q.Open)
	}
	if q.High != 101 {
		t.Errorf("High = %v, want 101", q.High)
	}
	if q.Change != 4 {
		t.Errorf("Change = %v, want recomputed 4", q.Change)
	}
}

func TestStore_UpsertNewsDedupesByID(t *testing.T) {
	s := New(DefaultConfig(), nil)
	now := time.Now()

	var added []string
	s.Update(func(tx *Tx) {
		added = tx.UpsertNews([]model.NewsItem{
			newsItem("a", now),
			newsItem("a", now),
			newsItem("b", now.Add(-time.Minute)),
		})
	})

	if len(added) != 2 {
		t.Errorf("added = %v, want 2 new IDs", added)
	}
	if got := len(s.News(0)); got != 2 {
		t.Errorf("News count = %d, want 2", got)
	}

	s.Update(func(tx *Tx) {
		added = tx.UpsertNews([]model.NewsItem{newsItem("a", now)})
	})
	if len(added) != 0 {
		t.Errorf("re-upsert added = %v, want none", added)
	}
}

func TestStore_NewsNewestFirstWithLimit(t *testing.T) {
	s := New(DefaultConfig(), nil)
	base := time.Now()

	s.Update(func(tx *Tx) {
		tx.UpsertNews([]model.NewsItem{
			newsItem("old", base.Add(-2*time.Hour)),
			newsItem("new", base),
			newsItem("mid", base.Add(-time.Hour)),
		})
	})

	items := s.News(2)
	if len(items) != 2 {
		t.Fatalf("News(2) returned %d items", len(items))
	}
	if items[0].ID != "new" || items[1].ID != "mid" {
		t.Errorf("order = [%s %s], want [new mid]", items[0].ID, items[1].ID)
	}
}

func TestStore_NewsBoundEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NewsMaxItems = 3
	s := New(cfg, nil)
	base := time.Now()

	s.Update(func(tx *Tx) {
		var items []model.NewsItem
		for i := 0; i < 5; i++ {
			items = append(items, newsItem(fmt.Sprintf("n%d", i), base.Add(-time.Duration(i)*time.Minute)))
		}
		tx.UpsertNews(items)
		// Verdict on an item that will be evicted.
		tx.PutVerdict(model.Verdict{NewsID: "n4", Reason: model.ReasonNoMatch})
	})

	if got := len(s.News(0)); got != 3 {
		t.Fatalf("News count = %d, want 3", got)
	}
	if _, ok := s.NewsByID("n4"); ok {
		t.Error("oldest item n4 still present, want evicted")
	}
	if _, ok := s.Verdict("n4"); ok {
		t.Error("verdict for evicted item still present")
	}
	if _, ok := s.NewsByID("n0"); !ok {
		t.Error("newest item n0 missing")
	}
}

func TestStore_NewsRetentionEvicts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NewsRetention = time.Hour
	s := New(cfg, nil)

	s.Update(func(tx *Tx) {
		tx.UpsertNews([]model.NewsItem{
			newsItem("fresh", time.Now()),
			newsItem("stale", time.Now().Add(-2*time.Hour)),
		})
	})

	if _, ok := s.NewsByID("stale"); ok {
		t.Error("item beyond retention still present")
	}
	if _, ok := s.NewsByID("fresh"); !ok {
		t.Error("fresh item missing")
	}
}

func TestStore_VerdictAdvancesSymbolNewsMarker(t *testing.T) {
	s := New(DefaultConfig(), nil)
	published := time.Now().Add(-10 * time.Minute)

	s.Update(func(tx *Tx) {
		tx.UpsertNews([]model.NewsItem{newsItem("a", published)})
		tx.PutVerdict(model.Verdict{
			NewsID:     "a",
			Ticker:     "NVDA",
			Confidence: 0.95,
			Score:      95,
			Reason:     model.ReasonResolved,
			MatchType:  model.MatchCashtag,
		})
	})

	views := s.ScanView([]string{"NVDA", "AMD"})
	if !views[0].NewsAt.Equal(published) {
		t.Errorf("NVDA NewsAt = %v, want %v", views[0].NewsAt, published)
	}
	if !views[1].NewsAt.IsZero() {
		t.Errorf("AMD NewsAt = %v, want zero", views[1].NewsAt)
	}

	v, ok := s.Verdict("a")
	if !ok || v.Ticker != "NVDA" {
		t.Errorf("Verdict(a) = %+v, %v", v, ok)
	}
}

func TestStore_ScanViewIsolatedFromStore(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) {
		tx.AppendTick(tickAt(1000))
		tx.QuoteFromTick(tickAt(1000))
	})

	views := s.ScanView([]string{"NVDA"})
	if !views[0].HasQuote || len(views[0].Ticks) != 1 {
		t.Fatalf("view = %+v, want quote and one tick", views[0])
	}
	views[0].Ticks[0].Price = -1

	if ticks := s.Ticks("NVDA"); ticks[0].Price == -1 {
		t.Error("mutating a view leaked into the store")
	}
}

func TestStore_SessionSetters(t *testing.T) {
	s := New(DefaultConfig(), nil)

	hb := time.Now()
	s.Update(func(tx *Tx) {
		tx.SetSessionState(model.StateLive, 2)
		tx.SetHeartbeat(hb)
		tx.SetSubscribedCount(7)
		tx.SetMarketPhase(model.PhaseRegular)
	})

	st := s.SessionStatus()
	if st.State != model.StateLive {
		t.Errorf("State = %v, want LIVE", st.State)
	}
	if st.ReconnectAttempts != 2 {
		t.Errorf("ReconnectAttempts = %d, want 2", st.ReconnectAttempts)
	}
	if !st.LastHeartbeat.Equal(hb) {
		t.Errorf("LastHeartbeat = %v, want %v", st.LastHeartbeat, hb)
	}
	if st.SubscribedCount != 7 {
		t.Errorf("SubscribedCount = %d, want 7", st.SubscribedCount)
	}
	if st.MarketPhase != model.PhaseRegular {
		t.Errorf("MarketPhase = %v, want REGULAR", st.MarketPhase)
	}

	// Re-applying the same phase is not a change.
	diff := s.Update(func(tx *Tx) { tx.SetMarketPhase(model.PhaseRegular) })
	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty for unchanged phase", diff)
	}
}

func TestStore_DroppedTickNotInDiff(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) { tx.AppendTick(tickAt(10000)) })
	diff := s.Update(func(tx *Tx) {
		if tx.AppendTick(tickAt(1000)) {
			t.Error("AppendTick accepted a tick 9s behind the tail")
		}
	})

	if !diff.Empty() {
		t.Errorf("diff = %+v, want empty when the only tick was dropped", diff)
	}
	stats := s.Stats()
	if stats.TicksDropped != 1 {
		t.Errorf("TicksDropped = %d, want 1", stats.TicksDropped)
	}
}

func TestStore_AgesTrackWrites(t *testing.T) {
	s := New(DefaultConfig(), nil)

	ages := s.Ages()
	if _, ok := ages[model.KindTicks]; ok {
		t.Error("KindTicks age present before any write")
	}

	s.Update(func(tx *Tx) { tx.AppendTick(tickAt(1000)) })

	ages = s.Ages()
	age, ok := ages[model.KindTicks]
	if !ok {
		t.Fatal("KindTicks age missing after tick write")
	}
	if age > time.Minute {
		t.Errorf("KindTicks age = %v, want recent", age)
	}
	if _, ok := ages[model.KindScanners]; ok {
		t.Error("KindScanners age present without scanner writes")
	}
}

func TestStore_TickSymbolsSorted(t *testing.T) {
	s := New(DefaultConfig(), nil)

	s.Update(func(tx *Tx) {
		for _, sym := range []string{"TSLA", "AMD", "NVDA"} {
			tx.AppendTick(model.Tick{Symbol: sym, Price: 1, Timestamp: 1000})
		}
	})

	got := s.TickSymbols()
	want := []string{"AMD", "NVDA", "TSLA"}
	if len(got) != 3 {
		t.Fatalf("TickSymbols() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TickSymbols()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
