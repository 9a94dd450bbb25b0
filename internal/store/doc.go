// Package store implements the in-memory State Store, the single source
// of truth for the live data plane.
//
// The State Store:
//   - Owns quotes, per-symbol tick rings, news, verdicts, scanner results,
//     and the stream session status
//   - Serializes mutation through Update batches: one batch commits as one
//     coalesced observer notification
//   - Hands readers copies, never internal references
//   - Bounds everything: tick rings at a fixed capacity, news by item count
//     and retention window
//   - Drops observer diffs under backpressure by coalescing to the latest,
//     never blocking producers
package store
