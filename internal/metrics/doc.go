// Package metrics tracks per-data-type freshness for status reporting.
//
// Every state store commit marks the data kinds it touched (quotes, news,
// ticks, scanners); Status exposes the time since each kind was last
// written so operators can see which feeds have gone quiet.
package metrics
