// Package stream implements the realtime tick stream session.
//
// The stream session:
//   - Maintains one long-lived WebSocket to the trade feed
//   - Runs the DISCONNECTED/CONNECTING/LIVE/DEGRADED/OFFLINE state machine
//   - Reconnects with exponential backoff, base 500ms, cap 10s, 10 attempts
//   - Sends application-level pings and degrades on 2x heartbeat silence
//   - Keeps an idempotent desired subscription set, resubscribed on LIVE
//   - Parses trade frames and appends ticks to the store's ring buffers
package stream
