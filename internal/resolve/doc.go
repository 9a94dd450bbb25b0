// Package resolve implements the Ticker Resolver, mapping a news item
// to at most one high-confidence stock symbol.
//
// The Ticker Resolver:
//   - Runs a staged candidate pipeline: provider-attached symbols,
//     cashtags, symbol tokens, URL hints, company names, aliases, and a
//     fuzzy name fallback
//   - Scores every candidate, subtracts penalties for stopword phrases,
//     ticker-list-only mentions, and embedded tokens
//   - Accepts the top candidate only above a score floor and with a
//     clear margin over the runner-up
//   - Classifies market-general articles instead of forcing a symbol
//   - Caches verdicts by content fingerprint, flushed on every symbol
//     directory swap
package resolve
