package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID    = "marketdesk"
	DefaultNewsTimeout   = 5 * time.Second
	DefaultQuoteTimeout  = 3 * time.Second
	DefaultMasterTimeout = 10 * time.Second
	DefaultMaxRetries    = 3

	// Token bucket rates, requests per minute.
	DefaultFinnhubRPM      = 60
	DefaultFMPRPM          = 300
	DefaultAlphavantageRPM = 5
	DefaultIEXRPM          = 100
	DefaultBurst           = 5

	DefaultSymbolRefreshInterval = 24 * time.Hour

	DefaultNewsLimit           = 50
	DefaultNewsRefreshInterval = 2 * time.Minute
	DefaultNewsRetention       = 14 * 24 * time.Hour
	DefaultNewsMaxItems        = 10000

	DefaultResolverCacheTTL     = 24 * time.Hour
	DefaultResolverCacheEntries = 4096

	DefaultStreamURL            = "wss://stream.marketdesk.io/v1"
	DefaultHeartbeatInterval    = 25 * time.Second
	DefaultReconnectBaseDelay   = 500 * time.Millisecond
	DefaultReconnectMaxDelay    = 10 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultTickBufferCapacity   = 300
	DefaultReorderTolerance     = 2 * time.Second
	DefaultPollInterval         = 5 * time.Second

	DefaultScannerResultLimit = 25
	DefaultUniverseLimit      = 500
	DefaultLeaderTimeout      = 120 * time.Second
	DefaultPhaseRecompute     = 60 * time.Second
	DefaultCadenceRegular     = 20 * time.Second
	DefaultCadencePre         = 90 * time.Second
	DefaultCadencePost        = 90 * time.Second
	DefaultCadenceClosed      = 300 * time.Second

	DefaultMoversMinPct      = 2.0
	DefaultMoversMaxPct      = 50.0
	DefaultRvolMinRatio      = 1.5
	DefaultUnusualVolRatio   = 2.0
	DefaultRangeBreakMinPct  = 2.0
	DefaultGapMinPct         = 2.0
	DefaultNewsMomentumFloor = 30.0
	DefaultNewsMaxAge        = 30 * time.Minute

	DefaultHealthPort = 8900
)

// DefaultSourcePriority orders providers for dedup conflict resolution,
// highest priority first.
var DefaultSourcePriority = []string{"finnhub", "fmp", "alphavantage"}

func (c *DeskConfig) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Provider defaults
	if c.Providers.NewsTimeout == 0 {
		c.Providers.NewsTimeout = DefaultNewsTimeout
	}
	if c.Providers.QuoteTimeout == 0 {
		c.Providers.QuoteTimeout = DefaultQuoteTimeout
	}
	if c.Providers.MasterTimeout == 0 {
		c.Providers.MasterTimeout = DefaultMasterTimeout
	}
	if c.Providers.MaxRetries == 0 {
		c.Providers.MaxRetries = DefaultMaxRetries
	}
	applyAdapterDefaults(&c.Providers.Finnhub, DefaultFinnhubRPM)
	applyAdapterDefaults(&c.Providers.FMP, DefaultFMPRPM)
	applyAdapterDefaults(&c.Providers.Alphavantage, DefaultAlphavantageRPM)
	applyAdapterDefaults(&c.Providers.IEX, DefaultIEXRPM)

	// Symbols defaults
	if c.Symbols.RefreshInterval == 0 {
		c.Symbols.RefreshInterval = DefaultSymbolRefreshInterval
	}

	// News defaults
	if c.News.Limit == 0 {
		c.News.Limit = DefaultNewsLimit
	}
	if c.News.RefreshInterval == 0 {
		c.News.RefreshInterval = DefaultNewsRefreshInterval
	}
	if c.News.Retention == 0 {
		c.News.Retention = DefaultNewsRetention
	}
	if c.News.MaxItems == 0 {
		c.News.MaxItems = DefaultNewsMaxItems
	}
	if len(c.News.SourcePriority) == 0 {
		c.News.SourcePriority = append([]string(nil), DefaultSourcePriority...)
	}

	// Resolver defaults
	if c.Resolver.CacheTTL == 0 {
		c.Resolver.CacheTTL = DefaultResolverCacheTTL
	}
	if c.Resolver.CacheMaxEntries == 0 {
		c.Resolver.CacheMaxEntries = DefaultResolverCacheEntries
	}

	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.TickBufferCapacity == 0 {
		c.Stream.TickBufferCapacity = DefaultTickBufferCapacity
	}
	if c.Stream.ReorderTolerance == 0 {
		c.Stream.ReorderTolerance = DefaultReorderTolerance
	}
	if c.Stream.PollInterval == 0 {
		c.Stream.PollInterval = DefaultPollInterval
	}

	// Scanner defaults
	if c.Scanner.ResultLimit == 0 {
		c.Scanner.ResultLimit = DefaultScannerResultLimit
	}
	if c.Scanner.UniverseLimit == 0 {
		c.Scanner.UniverseLimit = DefaultUniverseLimit
	}
	if c.Scanner.LeaderTimeout == 0 {
		c.Scanner.LeaderTimeout = DefaultLeaderTimeout
	}
	if c.Scanner.PhaseRecompute == 0 {
		c.Scanner.PhaseRecompute = DefaultPhaseRecompute
	}
	if c.Scanner.CadenceOverrides == nil {
		c.Scanner.CadenceOverrides = map[string]time.Duration{}
	}
	applyCadence(c.Scanner.CadenceOverrides, "REGULAR", DefaultCadenceRegular)
	applyCadence(c.Scanner.CadenceOverrides, "PRE", DefaultCadencePre)
	applyCadence(c.Scanner.CadenceOverrides, "POST", DefaultCadencePost)
	applyCadence(c.Scanner.CadenceOverrides, "CLOSED", DefaultCadenceClosed)
	if c.Scanner.MoversMinPct == 0 {
		c.Scanner.MoversMinPct = DefaultMoversMinPct
	}
	if c.Scanner.MoversMaxPct == 0 {
		c.Scanner.MoversMaxPct = DefaultMoversMaxPct
	}
	if c.Scanner.RvolMinRatio == 0 {
		c.Scanner.RvolMinRatio = DefaultRvolMinRatio
	}
	if c.Scanner.UnusualVolRatio == 0 {
		c.Scanner.UnusualVolRatio = DefaultUnusualVolRatio
	}
	if c.Scanner.RangeBreakMinPct == 0 {
		c.Scanner.RangeBreakMinPct = DefaultRangeBreakMinPct
	}
	if c.Scanner.GapMinPct == 0 {
		c.Scanner.GapMinPct = DefaultGapMinPct
	}
	if c.Scanner.NewsMomentumFloor == 0 {
		c.Scanner.NewsMomentumFloor = DefaultNewsMomentumFloor
	}
	if c.Scanner.NewsMaxAge == 0 {
		c.Scanner.NewsMaxAge = DefaultNewsMaxAge
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyAdapterDefaults(a *AdapterConfig, rpm int) {
	if a.RPM == 0 {
		a.RPM = rpm
	}
	if a.Burst == 0 {
		a.Burst = DefaultBurst
	}
}

func applyCadence(m map[string]time.Duration, phase string, d time.Duration) {
	if m[phase] == 0 {
		m[phase] = d
	}
}
