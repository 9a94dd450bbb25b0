// Package calendar computes the US equity market phase from the wall clock.
//
// Phases in America/New_York:
//   - PRE      04:00-09:30
//   - REGULAR  09:30-16:00
//   - POST     16:00-20:00
//   - CLOSED   overnight, weekends, and listed holidays
//
// Early-close days trade REGULAR until 13:00 and are CLOSED after.
package calendar
