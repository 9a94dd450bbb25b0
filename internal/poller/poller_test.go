package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

// fakeFetcher serves quotes from an in-memory table.
type fakeFetcher struct {
	mu     sync.Mutex
	quotes map[string]model.Quote
	err    error
	calls  int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{quotes: make(map[string]model.Quote)}
}

func (f *fakeFetcher) Quotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Quote, 0, len(symbols))
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeFetcher) set(q model.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[q.Symbol] = q
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSubs returns a fixed subscription set.
type fakeSubs struct {
	symbols []string
}

func (f fakeSubs) Subscribed() []string {
	return f.symbols
}

func newTestStore() *store.Store {
	return store.New(store.Config{}, nil)
}

func setSessionState(st *store.Store, state model.SessionState) {
	st.Update(func(tx *store.Tx) {
		tx.SetSessionState(state, 0)
	})
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPoller_SynthesizesTicksWithDeltaVolume(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateDegraded)

	fetcher := newFakeFetcher()
	fetcher.set(model.Quote{Symbol: "NVDA", Price: 105.0, Volume: 1000})

	p := New(DefaultConfig(), st, fakeSubs{[]string{"NVDA"}}, fetcher, nil)

	p.poll()

	ticks := st.Ticks("NVDA")
	if len(ticks) != 1 {
		t.Fatalf("tick count after first poll = %d, want 1", len(ticks))
	}
	if ticks[0].Volume != 0 {
		t.Errorf("priming tick volume = %d, want 0", ticks[0].Volume)
	}
	if ticks[0].Source != model.SourcePoll {
		t.Errorf("tick source = %q, want %q", ticks[0].Source, model.SourcePoll)
	}
	if ticks[0].Price != 105.0 {
		t.Errorf("tick price = %v, want 105.0", ticks[0].Price)
	}

	fetcher.set(model.Quote{Symbol: "NVDA", Price: 106.5, Volume: 1600})
	p.poll()

	ticks = st.Ticks("NVDA")
	if len(ticks) != 2 {
		t.Fatalf("tick count after second poll = %d, want 2", len(ticks))
	}
	if ticks[1].Volume != 600 {
		t.Errorf("delta tick volume = %d, want 600", ticks[1].Volume)
	}
	if ticks[1].Price != 106.5 {
		t.Errorf("delta tick price = %v, want 106.5", ticks[1].Price)
	}

	q, ok := st.Quote("NVDA")
	if !ok {
		t.Fatal("quote not stored")
	}
	if q.Price != 106.5 || q.Volume != 1600 {
		t.Errorf("stored quote = %+v, want price 106.5 volume 1600", q)
	}

	stats := p.Stats()
	if !stats.Active {
		t.Error("poller should be active")
	}
	if stats.Cycles != 2 || stats.Synthesized != 2 {
		t.Errorf("stats = %+v, want 2 cycles and 2 ticks", stats)
	}
}

func TestPoller_VolumeRegressionResetsBaseline(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateOffline)

	fetcher := newFakeFetcher()
	fetcher.set(model.Quote{Symbol: "AAPL", Price: 190.0, Volume: 5000})

	p := New(DefaultConfig(), st, fakeSubs{[]string{"AAPL"}}, fetcher, nil)

	p.poll()

	// Provider correction: cumulative volume goes backwards.
	fetcher.set(model.Quote{Symbol: "AAPL", Price: 190.2, Volume: 900})
	p.poll()

	ticks := st.Ticks("AAPL")
	if len(ticks) != 2 {
		t.Fatalf("tick count = %d, want 2", len(ticks))
	}
	if ticks[1].Volume != 0 {
		t.Errorf("tick volume after regression = %d, want 0", ticks[1].Volume)
	}

	// Baseline rebased to 900, so the next delta counts from there.
	fetcher.set(model.Quote{Symbol: "AAPL", Price: 190.4, Volume: 1100})
	p.poll()

	ticks = st.Ticks("AAPL")
	if got := ticks[2].Volume; got != 200 {
		t.Errorf("tick volume after rebase = %d, want 200", got)
	}
}

func TestPoller_PauseDropsVolumeBaseline(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateDegraded)

	fetcher := newFakeFetcher()
	fetcher.set(model.Quote{Symbol: "TSLA", Price: 240.0, Volume: 1000})

	p := New(DefaultConfig(), st, fakeSubs{[]string{"TSLA"}}, fetcher, nil)

	p.poll()
	p.pause()

	if p.Stats().Active {
		t.Error("poller should be inactive after pause")
	}

	// Volume traded while the stream was healthy must not be
	// attributed to the first tick after reactivation.
	fetcher.set(model.Quote{Symbol: "TSLA", Price: 244.0, Volume: 50000})
	p.poll()

	ticks := st.Ticks("TSLA")
	if len(ticks) != 2 {
		t.Fatalf("tick count = %d, want 2", len(ticks))
	}
	if ticks[1].Volume != 0 {
		t.Errorf("tick volume after reactivation = %d, want 0", ticks[1].Volume)
	}
}

func TestPoller_FetchErrorCountsFailure(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateDegraded)

	fetcher := newFakeFetcher()
	fetcher.err = errors.New("provider down")

	p := New(DefaultConfig(), st, fakeSubs{[]string{"NVDA"}}, fetcher, nil)

	p.poll()

	if ticks := st.Ticks("NVDA"); len(ticks) != 0 {
		t.Errorf("tick count after failed poll = %d, want 0", len(ticks))
	}
	stats := p.Stats()
	if stats.Failures != 1 {
		t.Errorf("failures = %d, want 1", stats.Failures)
	}
	if stats.Cycles != 0 {
		t.Errorf("cycles = %d, want 0", stats.Cycles)
	}
}

func TestPoller_SkipsJunkQuotes(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateDegraded)

	fetcher := newFakeFetcher()
	fetcher.set(model.Quote{Symbol: "NVDA", Price: 0, Volume: 100})

	p := New(DefaultConfig(), st, fakeSubs{[]string{"NVDA"}}, fetcher, nil)

	p.poll()

	if ticks := st.Ticks("NVDA"); len(ticks) != 0 {
		t.Errorf("tick count = %d, want 0", len(ticks))
	}
	if _, ok := st.Quote("NVDA"); ok {
		t.Error("zero-price quote should not be stored")
	}
}

func TestPoller_NoSubscriptionsNoFetch(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateDegraded)

	fetcher := newFakeFetcher()
	p := New(DefaultConfig(), st, fakeSubs{nil}, fetcher, nil)

	p.poll()

	if got := fetcher.callCount(); got != 0 {
		t.Errorf("fetch calls = %d, want 0", got)
	}
}

func TestPoller_ActivatesOnlyWhileImpaired(t *testing.T) {
	st := newTestStore()
	setSessionState(st, model.StateLive)

	fetcher := newFakeFetcher()
	fetcher.set(model.Quote{Symbol: "NVDA", Price: 100.0, Volume: 10})

	cfg := Config{Interval: 10 * time.Millisecond, Timeout: time.Second}
	p := New(cfg, st, fakeSubs{[]string{"NVDA"}}, fetcher, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := p.Stop(ctx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	// While LIVE the poller must not touch the provider.
	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("fetch calls while LIVE = %d, want 0", got)
	}

	setSessionState(st, model.StateDegraded)
	waitFor(t, 2*time.Second, func() bool {
		return fetcher.callCount() >= 2
	})
	if !p.Stats().Active {
		t.Error("poller should be active while DEGRADED")
	}

	setSessionState(st, model.StateLive)
	waitFor(t, 2*time.Second, func() bool {
		return !p.Stats().Active
	})

	calls := fetcher.callCount()
	time.Sleep(50 * time.Millisecond)
	if got := fetcher.callCount(); got != calls {
		t.Errorf("fetch calls grew after recovery: %d -> %d", calls, got)
	}
}
