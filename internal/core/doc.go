// Package core assembles the market data plane and exposes its facade.
//
// The Core:
//   - Wires providers, store, symbol master, resolver, news aggregator,
//     stream session, quote poller, and scan scheduler from one config
//   - Starts components in dependency order; a failed initial symbol
//     load aborts startup
//   - Runs the news auto-refresh loop: fetch, store, resolve each new
//     item, auto-subscribe accepted tickers
//   - Serves collaborators through facade methods (quotes, ticks,
//     candles, scans, search, status) backed by the store and the pool
package core
