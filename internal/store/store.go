package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marketdesk/marketdesk/internal/metrics"
	"github.com/marketdesk/marketdesk/internal/model"
)

// Config controls store bounds.
type Config struct {
	TickCapacity     int           // Ring size per symbol
	ReorderTolerance time.Duration // Late ticks within this window are re-sorted, older ones dropped
	NewsMaxItems     int           // News items kept, oldest evicted beyond this
	NewsRetention    time.Duration // News older than this is evicted on insert
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickCapacity:     300,
		ReorderTolerance: 2 * time.Second,
		NewsMaxItems:     10000,
		NewsRetention:    14 * 24 * time.Hour,
	}
}

// Store is the single source of truth for market state. All mutation goes
// through Update, which applies a batch atomically and emits one Diff to
// every observer. Readers always receive copies.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu           sync.RWMutex
	quotes       map[string]model.Quote
	rings        map[string]*TickRing
	news         map[string]model.NewsItem
	newsOrder    []string // IDs sorted by PublishedAt descending
	verdicts     map[string]model.Verdict
	newsBySymbol map[string]time.Time // Latest resolved news publish time per symbol
	scans        map[string]model.ScannerResult
	session      model.SessionStatus

	obsMu     sync.Mutex
	observers map[uuid.UUID]*Observer

	ages *metrics.Ages
}

// New creates an empty store. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TickCapacity <= 0 {
		cfg.TickCapacity = def.TickCapacity
	}
	if cfg.ReorderTolerance <= 0 {
		cfg.ReorderTolerance = def.ReorderTolerance
	}
	if cfg.NewsMaxItems <= 0 {
		cfg.NewsMaxItems = def.NewsMaxItems
	}
	if cfg.NewsRetention <= 0 {
		cfg.NewsRetention = def.NewsRetention
	}

	return &Store{
		cfg:          cfg,
		logger:       logger,
		quotes:       make(map[string]model.Quote),
		rings:        make(map[string]*TickRing),
		news:         make(map[string]model.NewsItem),
		verdicts:     make(map[string]model.Verdict),
		newsBySymbol: make(map[string]time.Time),
		scans:        make(map[string]model.ScannerResult),
		session:      model.SessionStatus{State: model.StateDisconnected, MarketPhase: model.PhaseClosed},
		observers:    make(map[uuid.UUID]*Observer),
		ages:         metrics.NewAges(),
	}
}

// -----------------------------------------------------------------------------
// Mutation
// -----------------------------------------------------------------------------

// Tx is the handle passed to an Update function. Its methods mutate the
// store under the write lock and record what changed.
type Tx struct {
	s   *Store
	rec *diffRecorder
	now time.Time
}

// Update applies fn as one atomic batch and notifies observers with a
// single Diff covering everything the batch touched. Returns the Diff.
func (s *Store) Update(fn func(*Tx)) Diff {
	s.mu.Lock()
	tx := &Tx{s: s, rec: newDiffRecorder(), now: time.Now()}
	fn(tx)
	diff := tx.rec.diff
	s.mu.Unlock()

	if diff.Empty() {
		return diff
	}
	s.markAges(diff)
	s.notify(diff)
	return diff
}

// AppendTick inserts a tick into the symbol's ring. Returns false when the
// tick is older than the reorder tolerance and was dropped.
func (tx *Tx) AppendTick(t model.Tick) bool {
	ring, ok := tx.s.rings[t.Symbol]
	if !ok {
		ring = NewTickRing(tx.s.cfg.TickCapacity)
		tx.s.rings[t.Symbol] = ring
	}
	if !ring.Insert(t, tx.s.cfg.ReorderTolerance) {
		tx.s.logger.Debug("tick dropped outside reorder tolerance",
			"symbol", t.Symbol, "timestamp", t.Timestamp)
		return false
	}
	tx.rec.tick(t.Symbol)
	return true
}

// QuoteFromTick folds a tick into the symbol's quote: last price, running
// volume, change versus previous close when known, and session high/low.
func (tx *Tx) QuoteFromTick(t model.Tick) {
	q, ok := tx.s.quotes[t.Symbol]
	if !ok {
		q = model.Quote{Symbol: t.Symbol}
	}
	q.Price = t.Price
	q.Volume += t.Volume
	if q.PrevClose > 0 {
		q.Change = t.Price - q.PrevClose
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	if q.High == 0 || t.Price > q.High {
		q.High = t.Price
	}
	if q.Low == 0 || t.Price < q.Low {
		q.Low = t.Price
	}
	if t.Timestamp > q.UpdatedAt {
		q.UpdatedAt = t.Timestamp
	}
	tx.s.quotes[t.Symbol] = q
	tx.rec.quote(t.Symbol)
}

// PutQuote stores a full quote, keeping existing reference fields
// (previous close, open, high, low) when the incoming quote lacks them.
func (tx *Tx) PutQuote(q model.Quote) {
	if old, ok := tx.s.quotes[q.Symbol]; ok {
		if q.PrevClose == 0 {
			q.PrevClose = old.PrevClose
		}
		if q.Open == 0 {
			q.Open = old.Open
		}
		if q.High == 0 {
			q.High = old.High
		}
		if q.Low == 0 {
			q.Low = old.Low
		}
		if q.UpdatedAt < old.UpdatedAt {
			q.UpdatedAt = old.UpdatedAt
		}
	}
	if q.Change == 0 && q.PrevClose > 0 && q.Price > 0 {
		q.Change = q.Price - q.PrevClose
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	tx.s.quotes[q.Symbol] = q
	tx.rec.quote(q.Symbol)
}

// UpsertNews inserts items not already present, evicts anything beyond
// the retention window or the item bound, and returns the IDs that were
// actually new.
func (tx *Tx) UpsertNews(items []model.NewsItem) []string {
	var added []string
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, ok := tx.s.news[item.ID]; ok {
			continue
		}
		tx.s.news[item.ID] = item
		tx.s.newsOrder = append(tx.s.newsOrder, item.ID)
		added = append(added, item.ID)
		tx.rec.news(item.ID)
	}
	if len(added) > 0 {
		s := tx.s
		sort.SliceStable(s.newsOrder, func(i, j int) bool {
			return s.news[s.newsOrder[i]].PublishedAt.After(s.news[s.newsOrder[j]].PublishedAt)
		})
		tx.evictNews()
	}
	return added
}

// evictNews trims the news set to the retention window and the item bound,
// removing verdicts of evicted items with them.
func (tx *Tx) evictNews() {
	s := tx.s
	cutoff := tx.now.Add(-s.cfg.NewsRetention)
	keep := s.newsOrder[:0]
	for i, id := range s.newsOrder {
		item := s.news[id]
		if i >= s.cfg.NewsMaxItems || item.PublishedAt.Before(cutoff) {
			delete(s.news, id)
			delete(s.verdicts, id)
			continue
		}
		keep = append(keep, id)
	}
	s.newsOrder = keep
}

// PutVerdict stores a resolution verdict and, when it carries a ticker,
// advances that symbol's latest-news marker.
func (tx *Tx) PutVerdict(v model.Verdict) {
	tx.s.verdicts[v.NewsID] = v
	if v.Resolved() {
		if item, ok := tx.s.news[v.NewsID]; ok {
			if item.PublishedAt.After(tx.s.newsBySymbol[v.Ticker]) {
				tx.s.newsBySymbol[v.Ticker] = item.PublishedAt
			}
		}
	}
	tx.rec.verdict(v.NewsID)
}

// PutScannerResult replaces the stored result for the preset.
func (tx *Tx) PutScannerResult(res model.ScannerResult) {
	tx.s.scans[res.Preset] = res
	tx.rec.scan(res.Preset)
}

// SetSessionState updates the stream connection state and attempt counter.
func (tx *Tx) SetSessionState(state model.SessionState, attempts int) {
	if tx.s.session.State == state && tx.s.session.ReconnectAttempts == attempts {
		return
	}
	tx.s.session.State = state
	tx.s.session.ReconnectAttempts = attempts
	tx.rec.session()
}

// SetHeartbeat records the last inbound stream traffic instant.
func (tx *Tx) SetHeartbeat(t time.Time) {
	if !t.After(tx.s.session.LastHeartbeat) {
		return
	}
	tx.s.session.LastHeartbeat = t
	tx.rec.session()
}

// SetSubscribedCount updates the desired subscription set size.
func (tx *Tx) SetSubscribedCount(n int) {
	if tx.s.session.SubscribedCount == n {
		return
	}
	tx.s.session.SubscribedCount = n
	tx.rec.session()
}

// SetMarketPhase updates the current trading phase.
func (tx *Tx) SetMarketPhase(p model.MarketPhase) {
	if tx.s.session.MarketPhase == p {
		return
	}
	tx.s.session.MarketPhase = p
	tx.rec.session()
}

// markAges records freshness marks for the data kinds the diff touched.
func (s *Store) markAges(d Diff) {
	if len(d.Ticks) > 0 {
		s.ages.Mark(model.KindTicks)
	}
	if len(d.Quotes) > 0 {
		s.ages.Mark(model.KindQuotes)
	}
	if len(d.News) > 0 || len(d.Verdicts) > 0 {
		s.ages.Mark(model.KindNews)
	}
	if len(d.Scans) > 0 {
		s.ages.Mark(model.KindScanners)
	}
}

// -----------------------------------------------------------------------------
// Observation
// -----------------------------------------------------------------------------

// Observer receives one Diff per committed batch on C. A slow observer
// never blocks writers: pending diffs are merged in place, so the channel
// holds at most one entry describing everything missed.
type Observer struct {
	id uuid.UUID
	ch chan Diff
}

// C is the notification channel. It is never closed; after Unobserve it
// simply stops receiving.
func (o *Observer) C() <-chan Diff { return o.ch }

// Observe registers a new observer.
func (s *Store) Observe() *Observer {
	o := &Observer{id: uuid.New(), ch: make(chan Diff, 1)}
	s.obsMu.Lock()
	s.observers[o.id] = o
	s.obsMu.Unlock()
	return o
}

// Unobserve removes the observer. Safe to call more than once.
func (s *Store) Unobserve(o *Observer) {
	if o == nil {
		return
	}
	s.obsMu.Lock()
	delete(s.observers, o.id)
	s.obsMu.Unlock()
}

// notify delivers the diff to every observer, coalescing if one lags.
func (s *Store) notify(d Diff) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for _, o := range s.observers {
		o.push(d)
	}
}

// push sends d, merging with an undelivered diff when the channel is full.
func (o *Observer) push(d Diff) {
	for {
		select {
		case o.ch <- d:
			return
		default:
		}
		select {
		case old := <-o.ch:
			old.merge(d)
			d = old
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Ticks returns a copy of the symbol's buffered ticks, oldest first.
func (s *Store) Ticks(symbol string) []model.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.rings[symbol]
	if !ok {
		return nil
	}
	return ring.Snapshot()
}

// LastTick returns the newest buffered tick for the symbol.
func (s *Store) LastTick(symbol string) (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.rings[symbol]
	if !ok {
		return model.Tick{}, false
	}
	return ring.Last()
}

// TickSymbols lists symbols with at least one buffered tick, sorted.
func (s *Store) TickSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rings))
	for sym, ring := range s.rings {
		if ring.Len() > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Quote returns the symbol's quote.
func (s *Store) Quote(symbol string) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q, ok
}

// Quotes returns the quotes present for the given symbols.
func (s *Store) Quotes(symbols []string) map[string]model.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Quote, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			out[sym] = q
		}
	}
	return out
}

// News returns up to limit items, newest first. limit <= 0 returns all.
func (s *Store) News(limit int) []model.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.newsOrder)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.NewsItem, 0, n)
	for _, id := range s.newsOrder[:n] {
		out = append(out, s.news[id])
	}
	return out
}

// NewsByID returns one news item.
func (s *Store) NewsByID(id string) (model.NewsItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.news[id]
	return item, ok
}

// Verdict returns the resolution verdict for a news item.
func (s *Store) Verdict(newsID string) (model.Verdict, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verdicts[newsID]
	return v, ok
}

// ScannerResult returns a copy of the preset's latest result.
func (s *Store) ScannerResult(preset string) (model.ScannerResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.scans[preset]
	if !ok {
		return model.ScannerResult{}, false
	}
	res.Rows = append([]model.ScannerRow(nil), res.Rows...)
	return res, true
}

// SessionStatus returns the stream session summary.
func (s *Store) SessionStatus() model.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SymbolView is one symbol's consistent slice of store state, taken under
// a single read lock for scanner passes.
type SymbolView struct {
	Symbol   string
	Ticks    []model.Tick
	Quote    model.Quote
	HasQuote bool
	NewsAt   time.Time // Latest resolved news publish time, zero if none
}

// ScanView snapshots the given symbols in one locked pass so every preset
// scores the same state.
func (s *Store) ScanView(symbols []string) []SymbolView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SymbolView, 0, len(symbols))
	for _, sym := range symbols {
		view := SymbolView{Symbol: sym}
		if ring, ok := s.rings[sym]; ok {
			view.Ticks = ring.Snapshot()
		}
		if q, ok := s.quotes[sym]; ok {
			view.Quote = q
			view.HasQuote = true
		}
		view.NewsAt = s.newsBySymbol[sym]
		out = append(out, view)
	}
	return out
}

// Ages returns time since the last write per data kind.
func (s *Store) Ages() map[model.DataKind]time.Duration {
	return s.ages.Snapshot(time.Now())
}

// StoreStats summarizes store contents for status output.
type StoreStats struct {
	TickSymbols   int
	Quotes        int
	NewsItems     int
	Verdicts      int
	Observers     int
	TicksInserted int64
	TicksReorder  int64
	TicksDropped  int64
}

// Stats returns current counts and lifetime tick totals.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	st := StoreStats{
		TickSymbols: len(s.rings),
		Quotes:      len(s.quotes),
		NewsItems:   len(s.news),
		Verdicts:    len(s.verdicts),
	}
	for _, ring := range s.rings {
		rs := ring.Stats()
		st.TicksInserted += rs.Inserted
		st.TicksReorder += rs.Reordered
		st.TicksDropped += rs.Dropped
	}
	s.mu.RUnlock()

	s.obsMu.Lock()
	st.Observers = len(s.observers)
	s.obsMu.Unlock()
	return st
}
