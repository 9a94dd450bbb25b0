package model

import "time"

// -----------------------------------------------------------------------------
// Symbol Master Types
// -----------------------------------------------------------------------------

// Exchange identifies the listing venue of a symbol.
type Exchange string

const (
	ExchangeNASDAQ Exchange = "NASDAQ"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeAMEX   Exchange = "AMEX"
	ExchangeOther  Exchange = "OTHER"
)

// SymbolType distinguishes common stock from exchange-traded funds.
type SymbolType string

const (
	TypeStock SymbolType = "stock"
	TypeETF   SymbolType = "etf"
)

// Symbol is one entry of the refreshable symbol master.
type Symbol struct {
	Symbol      string     // Uppercased ticker, 1-5 letters (e.g., "NVDA")
	CompanyName string     // Display name (e.g., "NVIDIA Corp")
	Aliases     []string   // Normalized alias set; always contains the symbol and normalized name
	Exchange    Exchange   // Listing venue
	Type        SymbolType // stock or etf
	IsActive    bool       // Tradeable today
	Sector      string     // Optional sector classification
	MarketCap   float64    // Optional market cap in dollars, 0 if unknown
}

// -----------------------------------------------------------------------------
// News Types
// -----------------------------------------------------------------------------

// NewsItem is a normalized article produced by the news aggregator.
//
// ID is a stable fingerprint of (normalized title, normalized URL
// host+path, publishedAt bucketed to 5 minutes); identical derivations
// collide intentionally so duplicates across providers merge.
type NewsItem struct {
	ID              string    // Content fingerprint
	Title           string    // Headline
	Summary         string    // Body excerpt, may be empty
	URL             string    // Canonical article URL
	Source          string    // Provider name that supplied this copy
	PublishedAt     time.Time // UTC publication instant
	ProviderSymbols []string  // Tickers attached by the upstream, may be empty
}

// -----------------------------------------------------------------------------
// Resolution Types
// -----------------------------------------------------------------------------

// MatchType records which signal produced a resolution candidate.
type MatchType string

const (
	MatchProvider    MatchType = "provider"     // Upstream attached the symbol
	MatchCashtag     MatchType = "cashtag"      // $SYM token in text
	MatchSymbolToken MatchType = "symbol_token" // (SYM), SYM:, or bare uppercase token
	MatchURLHint     MatchType = "url_hint"     // /quote/SYM or ?symbol=SYM in the URL
	MatchCompanyName MatchType = "company_name" // Exact company name at a word boundary
	MatchAlias       MatchType = "alias"        // Master-derived alias match
	MatchFuzzy       MatchType = "fuzzy"        // Token-set or Jaro-Winkler similarity
)

// MatchContext records where in the item the matched phrase appeared.
type MatchContext string

const (
	ContextTitle    MatchContext = "title"
	ContextSummary  MatchContext = "summary"
	ContextURL      MatchContext = "url"
	ContextProvided MatchContext = "provided"
)

// VerdictReason explains a resolution outcome.
type VerdictReason string

const (
	ReasonResolved  VerdictReason = "resolved"  // Top candidate accepted
	ReasonGeneral   VerdictReason = "general"   // Market-general article, no company focus
	ReasonAmbiguous VerdictReason = "ambiguous" // Below score floor or insufficient margin
	ReasonNoMatch   VerdictReason = "no_match"  // No candidate produced by any stage
)

// Verdict is the resolver output for one news item.
//
// Ticker is empty when no symbol was accepted. IsGeneral implies an
// empty Ticker. A non-empty Ticker implies Confidence >= 0.60 and a
// raw-score margin of at least 15 over the runner-up.
type Verdict struct {
	NewsID        string        // NewsItem.ID this verdict covers
	Ticker        string        // Accepted symbol, empty if none
	Confidence    float64       // min(1, score/100) when accepted, else 0
	Score         float64       // Net raw score of the winning candidate
	IsGeneral     bool          // Market-general article
	Reason        VerdictReason // Outcome explanation
	MatchType     MatchType     // Winning signal, empty if no ticker
	MatchedPhrase string        // Text fragment that matched, empty if no ticker
	Context       MatchContext  // Where the phrase appeared
	ResolvedAt    time.Time     // When the verdict was computed
}

// Resolved reports whether the verdict carries an accepted ticker.
func (v Verdict) Resolved() bool { return v.Ticker != "" }

// -----------------------------------------------------------------------------
// Tick & Quote Types
// -----------------------------------------------------------------------------

// TickSource distinguishes streamed trade prints from polling-synthesized ones.
type TickSource string

const (
	SourceStream TickSource = "stream"
	SourcePoll   TickSource = "poll"
)

// Tick is one trade print.
type Tick struct {
	Symbol    string     // Ticker
	Price     float64    // Trade price in dollars, positive
	Volume    int64      // Shares traded, non-negative
	Timestamp int64      // Milliseconds since epoch
	Source    TickSource // stream or poll
}

// Quote is the latest derived price snapshot for one symbol.
type Quote struct {
	Symbol        string  // Ticker
	Price         float64 // Last price in dollars
	Change        float64 // Dollar change vs previous close
	ChangePercent float64 // Percent change vs previous close
	High          float64 // Session high, 0 if unknown
	Low           float64 // Session low, 0 if unknown
	Open          float64 // Session open, 0 if unknown
	PrevClose     float64 // Previous close reference, 0 if unknown
	Volume        int64   // Cumulative day volume when sourced from REST, else running tick sum
	UpdatedAt     int64   // Milliseconds since epoch of last update
}

// Stale reports whether the quote is older than the staleness threshold
// for the given market phase: 5 minutes during REGULAR, 15 minutes otherwise.
func (q Quote) Stale(now time.Time, phase MarketPhase) bool {
	if q.UpdatedAt == 0 {
		return true
	}
	threshold := 15 * time.Minute
	if phase == PhaseRegular {
		threshold = 5 * time.Minute
	}
	age := now.Sub(time.UnixMilli(q.UpdatedAt))
	return age > threshold
}

// Candle is one OHLCV bar from a provider candle endpoint.
type Candle struct {
	Timestamp int64   // Bar open time, milliseconds since epoch
	Open      float64 // Open price
	High      float64 // High price
	Low       float64 // Low price
	Close     float64 // Close price
	Volume    int64   // Bar volume
}

// -----------------------------------------------------------------------------
// Scanner Types
// -----------------------------------------------------------------------------

// ScannerRow is one ranked entry of a scanner result.
type ScannerRow struct {
	Symbol  string             // Ticker
	Score   float64            // Preset-specific score, higher is stronger
	Metrics map[string]float64 // Supporting fields (e.g., "changePercent", "volumeRatio")
}

// ScannerResult is the full output of one preset for one scan tick.
//
// Rows are sorted by score descending with a stable tie-break by
// symbol ascending, capped at the configured limit.
type ScannerResult struct {
	Preset      string       // Preset identifier (e.g., "movers", "rvol")
	Rows        []ScannerRow // Ranked rows
	GeneratedAt time.Time    // When the scan ran
}

// -----------------------------------------------------------------------------
// Session & Status Types
// -----------------------------------------------------------------------------

// SessionState is the tick stream connection state.
type SessionState string

const (
	StateDisconnected SessionState = "DISCONNECTED"
	StateConnecting   SessionState = "CONNECTING"
	StateLive         SessionState = "LIVE"
	StateDegraded     SessionState = "DEGRADED"
	StateOffline      SessionState = "OFFLINE" // Reconnect budget exhausted
)

// MarketPhase is the current US equity trading phase in America/New_York.
type MarketPhase string

const (
	PhasePre     MarketPhase = "PRE"     // 04:00-09:30 ET
	PhaseRegular MarketPhase = "REGULAR" // 09:30-16:00 ET
	PhasePost    MarketPhase = "POST"    // 16:00-20:00 ET
	PhaseClosed  MarketPhase = "CLOSED"  // Overnight, weekends, holidays
)

// SessionStatus summarizes the tick stream session for observers.
type SessionStatus struct {
	State             SessionState // Connection state
	LastHeartbeat     time.Time    // Last pong or inbound traffic
	SubscribedCount   int          // Size of the desired subscription set
	MarketPhase       MarketPhase  // Current phase
	ReconnectAttempts int          // Attempts since last LIVE
}

// ProviderHealth is the per-adapter slice of Status.
type ProviderHealth struct {
	Name        string    // Adapter name (e.g., "finnhub")
	Enabled     bool      // False when the API key is missing
	Healthy     bool      // Last call succeeded
	LastError   string    // Most recent error string, empty if none
	LastSuccess time.Time // Most recent successful call
}

// DataKind labels a freshness age in Status.
type DataKind string

const (
	KindQuotes   DataKind = "quotes"
	KindNews     DataKind = "news"
	KindTicks    DataKind = "ticks"
	KindScanners DataKind = "scanners"
)

// Status is the aggregate health view exposed to collaborators.
type Status struct {
	Session   SessionStatus              // Stream session summary
	Providers []ProviderHealth           // Per-adapter health
	Ages      map[DataKind]time.Duration // Time since last write per data type
}
