package symbols

import (
	"context"

	"github.com/marketdesk/marketdesk/internal/model"
)

// DefaultSearchLimit caps Search results when the caller gives no limit.
const DefaultSearchLimit = 10

// Source lists the symbol directory of one upstream provider.
type Source interface {
	Name() string
	ListSymbols(ctx context.Context) ([]model.Symbol, error)
}

// SearchOptions narrows a directory search.
type SearchOptions struct {
	Limit      int            // Max results, DefaultSearchLimit when <= 0
	Exchange   model.Exchange // Only this exchange, empty for all
	Sector     string         // Only this sector, empty for all
	ActiveOnly bool           // Drop inactive listings
}

// AliasHit is one symbol reached through the alias dictionary. Exact is
// true when the matched alias is the company name itself (full or with
// corporate suffixes stripped) rather than a derived form.
type AliasHit struct {
	Symbol model.Symbol
	Exact  bool
}

// Master manages the symbol directory lifecycle.
type Master interface {
	// Start performs the initial load, then refreshes in the background.
	// It fails only if the initial load leaves no usable snapshot.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the refresh loop.
	Stop(ctx context.Context) error

	// Refresh reloads the directory now. Concurrent calls coalesce into
	// one upstream fetch. On failure the previous snapshot is retained.
	Refresh(ctx context.Context) error

	// Snapshot returns the current immutable snapshot, never nil.
	Snapshot() *Snapshot

	// GetBySymbol returns the listing for an uppercased ticker.
	GetBySymbol(ticker string) (model.Symbol, bool)

	// SearchByAlias returns the symbols whose alias dictionary contains
	// text as an exact normalized entry.
	SearchByAlias(text string) []AliasHit

	// Search returns directory matches ranked exact ticker first, then
	// ticker prefix, then company name, alphabetical within each rank.
	Search(query string, opts SearchOptions) []model.Symbol

	// OnSwap registers a callback fired after every snapshot swap.
	// Register before Start.
	OnSwap(fn func(*Snapshot))
}
