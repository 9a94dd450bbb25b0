// Package auth loads upstream provider API credentials from the environment.
package auth

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/marketdesk/marketdesk/internal/config"
)

// Credentials holds the per-provider API keys. Any key may be empty;
// an empty key disables the corresponding adapter for the process lifetime.
type Credentials struct {
	FinnhubKey      string `envconfig:"FINNHUB_API_KEY"`
	FMPKey          string `envconfig:"FMP_API_KEY"`
	AlphavantageKey string `envconfig:"ALPHAVANTAGE_API_KEY"`
	IEXKey          string `envconfig:"IEX_API_KEY"`
	StreamToken     string `envconfig:"STREAM_TOKEN"`
}

// LoadCredentials reads provider keys from the environment. A .env file in
// the working directory is applied first when present; missing files are
// not an error so production deployments can rely on real environment
// variables alone.
func LoadCredentials() (*Credentials, error) {
	_ = godotenv.Load()

	var creds Credentials
	if err := envconfig.Process("", &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// ApplyTo copies environment-sourced keys into the config for any adapter
// whose YAML key is unset. YAML values always win.
func (c *Credentials) ApplyTo(cfg *config.ProvidersConfig) {
	if cfg.Finnhub.APIKey == "" {
		cfg.Finnhub.APIKey = c.FinnhubKey
	}
	if cfg.FMP.APIKey == "" {
		cfg.FMP.APIKey = c.FMPKey
	}
	if cfg.Alphavantage.APIKey == "" {
		cfg.Alphavantage.APIKey = c.AlphavantageKey
	}
	if cfg.IEX.APIKey == "" {
		cfg.IEX.APIKey = c.IEXKey
	}
}

// ApplyStream fills the stream bearer token when the YAML left it unset.
// STREAM_TOKEN wins; the finnhub key is the fallback since the realtime
// trade feed authenticates against the same upstream account.
func (c *Credentials) ApplyStream(cfg *config.StreamConfig) {
	if cfg.Token != "" {
		return
	}
	if c.StreamToken != "" {
		cfg.Token = c.StreamToken
		return
	}
	cfg.Token = c.FinnhubKey
}

// Mask redacts a key for log output, keeping only the last four characters.
func Mask(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
