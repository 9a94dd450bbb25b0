// Package symbols implements the Symbol Master component.
//
// The Symbol Master:
//   - Loads the US stock and ETF directory from the provider pool on startup
//   - Refreshes it on a fixed interval, keeping the last good snapshot on failure
//   - Publishes immutable snapshots swapped in atomically
//   - Derives a stopword-safe alias dictionary from company names
//   - Serves exact lookups, alias lookups, and ranked search
package symbols
