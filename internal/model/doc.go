// Package model defines shared data types used across the marketdesk data plane.
//
// Conventions:
//   - Prices: float64 dollars, as delivered by upstream quote providers
//   - Tick and quote timestamps: int64 milliseconds since Unix epoch
//     (matches the realtime trade frame wire format)
//   - News and verdict timestamps: time.Time in UTC
//   - IDs: string tickers for symbols, content fingerprints for news items
package model
