package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marketdesk/marketdesk/internal/calendar"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/store"
)

type fakeMovers struct {
	mu    sync.Mutex
	list  []string
	err   error
	calls int
}

func (f *fakeMovers) TopGainers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeMovers) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New()
	if err != nil {
		t.Fatalf("calendar.New() error = %v", err)
	}
	return cal
}

func seedStoreTicks(st *store.Store, symbol string, prices []float64) {
	st.Update(func(tx *store.Tx) {
		for i, p := range prices {
			tx.AppendTick(model.Tick{
				Symbol:    symbol,
				Price:     p,
				Volume:    100,
				Timestamp: int64(1000 + i*1000),
				Source:    model.SourceStream,
			})
		}
	})
}

func waitForCond(t *testing.T, timeout time.Duration, cond func() bool) {
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

func TestScheduler_ScanWritesEveryPreset(t *testing.T) {
	st := store.New(store.Config{}, nil)
	seedStoreTicks(st, "TSLA", []float64{100, 102, 104})

	movers := &fakeMovers{list: []string{"NVDA"}}
	watch := WatchlistFunc(func() []string { return []string{"TSLA"} })
	elect := NewElection(Bus("test-sched-scan"), time.Minute, nil)

	s := NewScheduler(testScanConfig(), st, testCalendar(t), watch, movers, elect, nil)
	s.scan(model.PhaseRegular)

	result, ok := st.ScannerResult(PresetMovers)
	if !ok {
		t.Fatal("movers result missing after scan")
	}
	if len(result.Rows) != 1 || result.Rows[0].Symbol != "TSLA" {
		t.Fatalf("movers rows = %v, want TSLA", result.Rows)
	}
	if !approx(result.Rows[0].Score, 4.0) {
		t.Errorf("movers score = %v, want 4.0", result.Rows[0].Score)
	}

	for _, preset := range Presets() {
		if _, ok := st.ScannerResult(preset); !ok {
			t.Errorf("preset %q missing from store after scan", preset)
		}
	}

	if got := movers.callCount(); got != 1 {
		t.Errorf("seed fetches = %d, want 1", got)
	}
	if stats := s.Stats(); stats.Scans != 1 || stats.LastScan.IsZero() {
		t.Errorf("stats = %+v, want one recorded scan", stats)
	}
}

func TestScheduler_SeedFailureDoesNotSkipScan(t *testing.T) {
	st := store.New(store.Config{}, nil)
	seedStoreTicks(st, "TSLA", []float64{100, 104})

	movers := &fakeMovers{err: errors.New("gainers endpoint down")}
	elect := NewElection(Bus("test-sched-seedfail"), time.Minute, nil)

	s := NewScheduler(testScanConfig(), st, testCalendar(t), nil, movers, elect, nil)
	s.scan(model.PhaseRegular)

	result, ok := st.ScannerResult(PresetMovers)
	if !ok || len(result.Rows) != 1 {
		t.Fatalf("movers result = %v, %v, want one row from live buffer", result, ok)
	}
	if stats := s.Stats(); stats.Failures != 1 || stats.Scans != 1 {
		t.Errorf("stats = %+v, want 1 failure and 1 scan", stats)
	}
}

func TestScheduler_FollowerIdlesUntilLeaderStops(t *testing.T) {
	st := store.New(store.Config{}, nil)
	seedStoreTicks(st, "TSLA", []float64{100, 104})

	cfg := testScanConfig()
	cfg.PhaseRecompute = time.Hour
	cfg.CadenceOverrides = map[string]time.Duration{
		"PRE": 10 * time.Millisecond, "REGULAR": 10 * time.Millisecond,
		"POST": 10 * time.Millisecond, "CLOSED": 10 * time.Millisecond,
	}

	bus := Bus("test-sched-follow")
	cal := testCalendar(t)
	leader := NewScheduler(cfg, st, cal, nil, nil, NewElection(bus, time.Minute, nil), nil)
	follower := NewScheduler(cfg, st, cal, nil, nil, NewElection(bus, time.Minute, nil), nil)

	ctx := context.Background()
	if err := leader.Start(ctx); err != nil {
		t.Fatalf("leader.Start() error = %v", err)
	}
	if err := follower.Start(ctx); err != nil {
		t.Fatalf("follower.Start() error = %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := follower.Stop(stopCtx); err != nil {
			t.Errorf("follower.Stop() error = %v", err)
		}
	}()

	waitForCond(t, 2*time.Second, func() bool {
		return leader.Stats().Scans >= 2
	})
	if got := follower.Stats().Scans; got != 0 {
		t.Errorf("follower scans = %d, want 0 while the leader runs", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := leader.Stop(stopCtx); err != nil {
		t.Fatalf("leader.Stop() error = %v", err)
	}

	waitForCond(t, 2*time.Second, func() bool {
		return follower.Stats().Scans >= 1
	})
}

func TestScheduler_PublishesPhaseOnStart(t *testing.T) {
	st := store.New(store.Config{}, nil)

	cfg := testScanConfig()
	cfg.PhaseRecompute = time.Hour
	cfg.CadenceOverrides = map[string]time.Duration{
		"PRE": time.Hour, "REGULAR": time.Hour, "POST": time.Hour, "CLOSED": time.Hour,
	}

	elect := NewElection(Bus("test-sched-phase"), time.Minute, nil)
	s := NewScheduler(cfg, st, testCalendar(t), nil, nil, elect, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.Stop(stopCtx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	phase := st.SessionStatus().MarketPhase
	if phase == "" {
		t.Fatal("market phase not published on start")
	}
	if got := s.Stats().Phase; got != phase {
		t.Errorf("stats phase = %v, store phase = %v, want equal", got, phase)
	}
}
