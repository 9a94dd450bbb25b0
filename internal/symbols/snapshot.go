package symbols

import (
	"sort"
	"strings"
	"time"

	"github.com/marketdesk/marketdesk/internal/model"
)

// NameEntry pairs a ticker with its normalized company name forms, for
// callers that scan the whole directory (fuzzy matching, name search).
type NameEntry struct {
	Ticker   string
	Full     string // Normalized company name
	Stripped string // Name with article and corporate suffixes removed
}

type aliasRef struct {
	ticker string
	exact  bool // The alias is the company name itself
}

// Snapshot is one immutable published view of the directory. Readers
// share it without locking; the master swaps in a new one on refresh.
type Snapshot struct {
	revision uint64
	loadedAt time.Time
	bySymbol map[string]model.Symbol
	byAlias  map[string][]aliasRef
	ordered  []string    // Tickers ascending
	names    []NameEntry // Ticker order, listings with a usable name only
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		bySymbol: map[string]model.Symbol{},
		byAlias:  map[string][]aliasRef{},
	}
}

// buildSnapshot folds merged source listings into one snapshot.
// Duplicate tickers keep the first occurrence, so source order is the
// priority order.
func buildSnapshot(revision uint64, listings []model.Symbol, loadedAt time.Time) *Snapshot {
	snap := &Snapshot{
		revision: revision,
		loadedAt: loadedAt,
		bySymbol: make(map[string]model.Symbol, len(listings)),
		byAlias:  make(map[string][]aliasRef, 3*len(listings)),
	}

	for _, listing := range listings {
		ticker := strings.ToUpper(strings.TrimSpace(listing.Symbol))
		if ticker == "" {
			continue
		}
		if _, dup := snap.bySymbol[ticker]; dup {
			continue
		}
		listing.Symbol = ticker
		listing.Aliases = aliasSet(ticker, listing.CompanyName)
		snap.bySymbol[ticker] = listing
		snap.ordered = append(snap.ordered, ticker)
	}
	sort.Strings(snap.ordered)

	for _, ticker := range snap.ordered {
		listing := snap.bySymbol[ticker]
		full := Normalize(listing.CompanyName)
		stripped := stripName(full)
		if len(full) >= 3 {
			snap.names = append(snap.names, NameEntry{Ticker: ticker, Full: full, Stripped: stripped})
		}
		for _, alias := range listing.Aliases {
			snap.byAlias[alias] = append(snap.byAlias[alias], aliasRef{
				ticker: ticker,
				exact:  alias == full || alias == stripped,
			})
		}
	}
	return snap
}

// Revision is the monotonically increasing swap counter; 0 means the
// directory has never loaded.
func (s *Snapshot) Revision() uint64 { return s.revision }

// LoadedAt is the wall-clock instant this snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Len is the number of listings.
func (s *Snapshot) Len() int { return len(s.ordered) }

// Get returns the listing for a ticker, case-insensitively.
func (s *Snapshot) Get(ticker string) (model.Symbol, bool) {
	sym, ok := s.bySymbol[strings.ToUpper(strings.TrimSpace(ticker))]
	return sym, ok
}

// ByAlias returns the symbols whose alias dictionary contains text as
// an exact normalized entry.
func (s *Snapshot) ByAlias(text string) []AliasHit {
	refs := s.byAlias[Normalize(text)]
	if len(refs) == 0 {
		return nil
	}
	hits := make([]AliasHit, 0, len(refs))
	for _, ref := range refs {
		if sym, ok := s.bySymbol[ref.ticker]; ok {
			hits = append(hits, AliasHit{Symbol: sym, Exact: ref.exact})
		}
	}
	return hits
}

// Names returns the normalized name entries in ticker order. The slice
// is shared with the snapshot; callers must not mutate it.
func (s *Snapshot) Names() []NameEntry { return s.names }

// All returns a copy of every listing, tickers ascending.
func (s *Snapshot) All() []model.Symbol {
	out := make([]model.Symbol, 0, len(s.ordered))
	for _, ticker := range s.ordered {
		out = append(out, s.bySymbol[ticker])
	}
	return out
}

// Search ranks matches exact ticker first, then ticker prefix, then
// company name substring, alphabetical within each rank.
func (s *Snapshot) Search(query string, opts SearchOptions) []model.Symbol {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	match := func(sym model.Symbol) bool {
		if opts.ActiveOnly && !sym.IsActive {
			return false
		}
		if opts.Exchange != "" && sym.Exchange != opts.Exchange {
			return false
		}
		if opts.Sector != "" && !strings.EqualFold(sym.Sector, opts.Sector) {
			return false
		}
		return true
	}

	out := make([]model.Symbol, 0, limit)
	taken := make(map[string]struct{}, limit)
	take := func(ticker string) {
		if _, dup := taken[ticker]; dup {
			return
		}
		sym := s.bySymbol[ticker]
		if !match(sym) {
			return
		}
		taken[ticker] = struct{}{}
		out = append(out, sym)
	}

	upper := strings.ToUpper(strings.TrimSpace(query))
	if upper == "" {
		for _, ticker := range s.ordered {
			if len(out) >= limit {
				break
			}
			take(ticker)
		}
		return out
	}

	if _, ok := s.bySymbol[upper]; ok {
		take(upper)
	}
	for _, ticker := range s.ordered {
		if len(out) >= limit {
			break
		}
		if strings.HasPrefix(ticker, upper) {
			take(ticker)
		}
	}
	if normalized := Normalize(query); normalized != "" {
		for _, entry := range s.names {
			if len(out) >= limit {
				break
			}
			if strings.Contains(entry.Full, normalized) {
				take(entry.Ticker)
			}
		}
	}
	return out
}
