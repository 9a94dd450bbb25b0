package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variables.
// Duration fields accept time.ParseDuration strings ("500ms", "2m").
func Load(path string) (*DeskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var raw fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return raw.toConfig()
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*DeskConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*DeskConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a config with every default applied and no file read.
// Callers that configure entirely from the environment start here.
func Defaults() *DeskConfig {
	cfg := &DeskConfig{}
	cfg.applyDefaults()
	return cfg
}

// fileConfig mirrors DeskConfig for decoding. yaml.v3 cannot unmarshal
// "25s" into a time.Duration field, so durations arrive as strings and
// toConfig parses them.
type fileConfig struct {
	Instance  InstanceConfig `yaml:"instance"`
	Providers fileProviders  `yaml:"providers"`
	Symbols   fileSymbols    `yaml:"symbols"`
	News      fileNews       `yaml:"news"`
	Resolver  fileResolver   `yaml:"resolver"`
	Stream    fileStream     `yaml:"stream"`
	Scanner   fileScanner    `yaml:"scanner"`
	Watchlist []string       `yaml:"watchlist"`
	Health    HealthConfig   `yaml:"health"`
}

type fileProviders struct {
	Finnhub      AdapterConfig `yaml:"finnhub"`
	FMP          AdapterConfig `yaml:"fmp"`
	Alphavantage AdapterConfig `yaml:"alphavantage"`
	IEX          AdapterConfig `yaml:"iex"`

	NewsTimeout   string `yaml:"news_timeout"`
	QuoteTimeout  string `yaml:"quote_timeout"`
	MasterTimeout string `yaml:"master_timeout"`
	MaxRetries    int    `yaml:"max_retries"`
}

type fileSymbols struct {
	RefreshInterval string `yaml:"refresh_interval"`
}

type fileNews struct {
	Limit           int      `yaml:"limit"`
	RefreshInterval string   `yaml:"refresh_interval"`
	Retention       string   `yaml:"retention"`
	MaxItems        int      `yaml:"max_items"`
	SourcePriority  []string `yaml:"source_priority"`
}

type fileResolver struct {
	CacheTTL          string   `yaml:"cache_ttl"`
	CacheMaxEntries   int      `yaml:"cache_max_entries"`
	Stopwords         []string `yaml:"stopwords"`
	GeneralVocabulary []string `yaml:"general_vocabulary"`
}

type fileStream struct {
	URL                  string `yaml:"url"`
	Token                string `yaml:"token"`
	HeartbeatInterval    string `yaml:"heartbeat_interval"`
	ReconnectBaseDelay   string `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    string `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	TickBufferCapacity   int    `yaml:"tick_buffer_capacity"`
	ReorderTolerance     string `yaml:"reorder_tolerance"`
	PollInterval         string `yaml:"poll_interval"`
}

type fileScanner struct {
	ResultLimit      int               `yaml:"result_limit"`
	UniverseLimit    int               `yaml:"universe_limit"`
	CadenceOverrides map[string]string `yaml:"cadence_overrides"`
	LeaderTimeout    string            `yaml:"leader_timeout"`
	PhaseRecompute   string            `yaml:"phase_recompute"`

	MoversMinPct      float64 `yaml:"movers_min_pct"`
	MoversMaxPct      float64 `yaml:"movers_max_pct"`
	RvolMinRatio      float64 `yaml:"rvol_min_ratio"`
	UnusualVolRatio   float64 `yaml:"unusual_vol_ratio"`
	RangeBreakMinPct  float64 `yaml:"range_break_min_pct"`
	GapMinPct         float64 `yaml:"gap_min_pct"`
	NewsMomentumFloor float64 `yaml:"news_momentum_floor"`
	NewsMaxAge        string  `yaml:"news_max_age"`
}

// durationParser accumulates the first duration parse failure so a
// conversion can run start to finish and report one error.
type durationParser struct {
	err error
}

// parse converts a duration string, treating empty as zero (unset).
func (p *durationParser) parse(field, s string) time.Duration {
	if p.err != nil || s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid duration %q", field, s)
		return 0
	}
	return d
}

func (f *fileConfig) toConfig() (*DeskConfig, error) {
	p := &durationParser{}

	cfg := &DeskConfig{
		Instance: f.Instance,
		Providers: ProvidersConfig{
			Finnhub:       f.Providers.Finnhub,
			FMP:           f.Providers.FMP,
			Alphavantage:  f.Providers.Alphavantage,
			IEX:           f.Providers.IEX,
			NewsTimeout:   p.parse("providers.news_timeout", f.Providers.NewsTimeout),
			QuoteTimeout:  p.parse("providers.quote_timeout", f.Providers.QuoteTimeout),
			MasterTimeout: p.parse("providers.master_timeout", f.Providers.MasterTimeout),
			MaxRetries:    f.Providers.MaxRetries,
		},
		Symbols: SymbolsConfig{
			RefreshInterval: p.parse("symbols.refresh_interval", f.Symbols.RefreshInterval),
		},
		News: NewsConfig{
			Limit:           f.News.Limit,
			RefreshInterval: p.parse("news.refresh_interval", f.News.RefreshInterval),
			Retention:       p.parse("news.retention", f.News.Retention),
			MaxItems:        f.News.MaxItems,
			SourcePriority:  f.News.SourcePriority,
		},
		Resolver: ResolverConfig{
			CacheTTL:          p.parse("resolver.cache_ttl", f.Resolver.CacheTTL),
			CacheMaxEntries:   f.Resolver.CacheMaxEntries,
			Stopwords:         f.Resolver.Stopwords,
			GeneralVocabulary: f.Resolver.GeneralVocabulary,
		},
		Stream: StreamConfig{
			URL:                  f.Stream.URL,
			Token:                f.Stream.Token,
			HeartbeatInterval:    p.parse("stream.heartbeat_interval", f.Stream.HeartbeatInterval),
			ReconnectBaseDelay:   p.parse("stream.reconnect_base_delay", f.Stream.ReconnectBaseDelay),
			ReconnectMaxDelay:    p.parse("stream.reconnect_max_delay", f.Stream.ReconnectMaxDelay),
			MaxReconnectAttempts: f.Stream.MaxReconnectAttempts,
			TickBufferCapacity:   f.Stream.TickBufferCapacity,
			ReorderTolerance:     p.parse("stream.reorder_tolerance", f.Stream.ReorderTolerance),
			PollInterval:         p.parse("stream.poll_interval", f.Stream.PollInterval),
		},
		Scanner: ScannerConfig{
			ResultLimit:       f.Scanner.ResultLimit,
			UniverseLimit:     f.Scanner.UniverseLimit,
			LeaderTimeout:     p.parse("scanner.leader_timeout", f.Scanner.LeaderTimeout),
			PhaseRecompute:    p.parse("scanner.phase_recompute", f.Scanner.PhaseRecompute),
			MoversMinPct:      f.Scanner.MoversMinPct,
			MoversMaxPct:      f.Scanner.MoversMaxPct,
			RvolMinRatio:      f.Scanner.RvolMinRatio,
			UnusualVolRatio:   f.Scanner.UnusualVolRatio,
			RangeBreakMinPct:  f.Scanner.RangeBreakMinPct,
			GapMinPct:         f.Scanner.GapMinPct,
			NewsMomentumFloor: f.Scanner.NewsMomentumFloor,
			NewsMaxAge:        p.parse("scanner.news_max_age", f.Scanner.NewsMaxAge),
		},
		Watchlist: f.Watchlist,
		Health:    f.Health,
	}

	if len(f.Scanner.CadenceOverrides) > 0 {
		cfg.Scanner.CadenceOverrides = make(map[string]time.Duration, len(f.Scanner.CadenceOverrides))
		for phase, raw := range f.Scanner.CadenceOverrides {
			cfg.Scanner.CadenceOverrides[phase] = p.parse("scanner.cadence_overrides."+phase, raw)
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}
