// Package provider implements the rate-limited client pool over the upstream
// market data providers.
//
// Adapters:
//   - finnhub: realtime quotes, general news, candles, US symbol directory
//   - fmp: fundamentals news, batch quotes, top gainers, symbol list
//   - alphavantage: news with sentiment-attached tickers, single quotes
//   - iex: free batch web quotes
//
// Every adapter normalizes its native payloads into the canonical model
// shapes before returning. Retries for transient failures happen once,
// inside the shared REST client, never at call sites.
package provider
