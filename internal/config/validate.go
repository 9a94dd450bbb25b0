package config

import (
	"errors"
	"fmt"
)

var validPhases = map[string]bool{
	"PRE": true, "REGULAR": true, "POST": true, "CLOSED": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *DeskConfig) Validate() error {
	if err := c.Providers.Finnhub.validate("providers.finnhub"); err != nil {
		return err
	}
	if err := c.Providers.FMP.validate("providers.fmp"); err != nil {
		return err
	}
	if err := c.Providers.Alphavantage.validate("providers.alphavantage"); err != nil {
		return err
	}
	if err := c.Providers.IEX.validate("providers.iex"); err != nil {
		return err
	}

	if c.Symbols.RefreshInterval <= 0 {
		return errors.New("symbols.refresh_interval must be > 0")
	}

	if c.News.Limit < 1 {
		return errors.New("news.limit must be >= 1")
	}
	if c.News.MaxItems < 1 {
		return errors.New("news.max_items must be >= 1")
	}

	if c.Resolver.CacheMaxEntries < 1 {
		return errors.New("resolver.cache_max_entries must be >= 1")
	}

	if c.Stream.TickBufferCapacity < 1 {
		return errors.New("stream.tick_buffer_capacity must be >= 1")
	}
	if c.Stream.ReorderTolerance < 0 {
		return errors.New("stream.reorder_tolerance must be >= 0")
	}
	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}
	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}

	if c.Scanner.ResultLimit < 1 {
		return errors.New("scanner.result_limit must be >= 1")
	}
	if c.Scanner.UniverseLimit < 1 {
		return errors.New("scanner.universe_limit must be >= 1")
	}
	for phase, d := range c.Scanner.CadenceOverrides {
		if !validPhases[phase] {
			return fmt.Errorf("scanner.cadence_overrides: unknown market phase %q", phase)
		}
		if d <= 0 {
			return fmt.Errorf("scanner.cadence_overrides.%s must be > 0", phase)
		}
	}
	if c.Scanner.MoversMinPct >= c.Scanner.MoversMaxPct {
		return fmt.Errorf("scanner.movers_min_pct (%v) must be below movers_max_pct (%v)",
			c.Scanner.MoversMinPct, c.Scanner.MoversMaxPct)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (a *AdapterConfig) validate(prefix string) error {
	if a.RPM < 1 {
		return fmt.Errorf("%s.rpm must be >= 1", prefix)
	}
	if a.Burst < 1 {
		return fmt.Errorf("%s.burst must be >= 1", prefix)
	}
	return nil
}
