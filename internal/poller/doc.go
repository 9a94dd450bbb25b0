// Package poller implements the quote polling fallback.
//
// The Poller:
//   - Wakes on a fixed interval and checks the stream session state
//   - Activates only while the session is DEGRADED or OFFLINE
//   - Fetches REST quotes for the subscribed set on each cycle
//   - Synthesizes one tick per symbol with the snapshot price and the
//     volume traded since the previous poll, tagged source="poll"
//   - Pauses and drops its volume baseline when the stream recovers
package poller
