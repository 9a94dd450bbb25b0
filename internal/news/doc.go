// Package news implements the News Aggregator component.
//
// The News Aggregator:
//   - Fans out one fetch per enabled news source in parallel
//   - Tolerates partial failure, reporting errors alongside results
//   - Deduplicates by (normalized title, normalized URL, 5-minute bucket)
//   - Keeps the highest-priority source's copy on collision
//   - Assigns every item its stable content fingerprint as the ID
package news
