package config

import "time"

// DeskConfig is the root configuration for a marketdesk instance.
type DeskConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Providers ProvidersConfig `yaml:"providers"`
	Symbols   SymbolsConfig   `yaml:"symbols"`
	News      NewsConfig      `yaml:"news"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Stream    StreamConfig    `yaml:"stream"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Watchlist []string        `yaml:"watchlist"`
	Health    HealthConfig    `yaml:"health"`
}

// InstanceConfig identifies this desk in logs and status output.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ProvidersConfig holds per-upstream adapter settings plus the shared
// request timeouts. A missing api_key disables that adapter.
type ProvidersConfig struct {
	Finnhub      AdapterConfig `yaml:"finnhub"`
	FMP          AdapterConfig `yaml:"fmp"`
	Alphavantage AdapterConfig `yaml:"alphavantage"`
	IEX          AdapterConfig `yaml:"iex"`

	NewsTimeout   time.Duration `yaml:"news_timeout"`
	QuoteTimeout  time.Duration `yaml:"quote_timeout"`
	MasterTimeout time.Duration `yaml:"master_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

// AdapterConfig holds one upstream adapter's credentials and rate budget.
type AdapterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Override for testing; empty uses the adapter default
	RPM     int    `yaml:"rpm"`      // Token bucket refill rate, requests per minute
	Burst   int    `yaml:"burst"`    // Token bucket capacity
}

// SymbolsConfig holds symbol master settings.
type SymbolsConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// NewsConfig holds news aggregation settings.
type NewsConfig struct {
	Limit           int           `yaml:"limit"`            // Max items per refresh
	RefreshInterval time.Duration `yaml:"refresh_interval"` // Auto-refresh cadence
	Retention       time.Duration `yaml:"retention"`        // Dedup index and item retention window
	MaxItems        int           `yaml:"max_items"`        // Store bound, LRU-evicted beyond this
	SourcePriority  []string      `yaml:"source_priority"`  // Dedup winner order, highest first
}

// ResolverConfig holds ticker resolution settings. Stopwords and
// general_vocabulary extend the built-in defaults rather than replace them.
type ResolverConfig struct {
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries   int           `yaml:"cache_max_entries"`
	Stopwords         []string      `yaml:"stopwords"`
	GeneralVocabulary []string      `yaml:"general_vocabulary"`
}

// StreamConfig holds tick stream session settings. An empty token dials
// unauthenticated; auth.ApplyStream fills it from the environment.
type StreamConfig struct {
	URL                  string        `yaml:"url"`
	Token                string        `yaml:"token"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	TickBufferCapacity   int           `yaml:"tick_buffer_capacity"`
	ReorderTolerance     time.Duration `yaml:"reorder_tolerance"`
	PollInterval         time.Duration `yaml:"poll_interval"` // Quote poll cadence while DEGRADED/OFFLINE
}

// ScannerConfig holds scanner engine and scheduler settings.
type ScannerConfig struct {
	ResultLimit      int                      `yaml:"result_limit"`      // Row cap per preset
	UniverseLimit    int                      `yaml:"universe_limit"`    // Symbol cap per scan
	CadenceOverrides map[string]time.Duration `yaml:"cadence_overrides"` // Keyed by market phase name
	LeaderTimeout    time.Duration            `yaml:"leader_timeout"`    // Re-elect after this much leader silence
	PhaseRecompute   time.Duration            `yaml:"phase_recompute"`   // Market phase refresh cadence

	// Preset thresholds.
	MoversMinPct      float64       `yaml:"movers_min_pct"`
	MoversMaxPct      float64       `yaml:"movers_max_pct"`
	RvolMinRatio      float64       `yaml:"rvol_min_ratio"`
	UnusualVolRatio   float64       `yaml:"unusual_vol_ratio"`
	RangeBreakMinPct  float64       `yaml:"range_break_min_pct"`
	GapMinPct         float64       `yaml:"gap_min_pct"`
	NewsMomentumFloor float64       `yaml:"news_momentum_floor"`
	NewsMaxAge        time.Duration `yaml:"news_max_age"` // News older than this never scores
}

// HealthConfig holds the health/status HTTP probe settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
