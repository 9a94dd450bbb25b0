// Package scanner implements the preset scan engine and its scheduler.
//
// The Engine:
//   - Evaluates every preset over a consistent store view, in parallel
//   - Scores momentum, relative volume, volume surges, range breaks,
//     gaps against previous close, and news-driven momentum
//   - Sorts each preset's rows by score descending, symbol ascending,
//     capped at the configured limit
//
// The Scheduler:
//   - Fires scans on a market-phase cadence (REGULAR 20s, PRE and POST
//     90s, CLOSED 300s by default) and recomputes the phase once a
//     minute
//   - Builds the scan universe from live tick buffers, the user
//     watchlist, and a top-gainers seed list
//   - Elects a single leader per election bus so only one instance
//     drives scans; followers stay idle and read results from the store
//   - Writes all preset results in one store batch per scan
package scanner
