package calendar

import (
	"fmt"
	"time"

	// Embeds the IANA database so America/New_York resolves even when the
	// host has no system tzdata.
	_ "time/tzdata"

	"github.com/marketdesk/marketdesk/internal/model"
)

// DayKind classifies a calendar exception.
type DayKind int

const (
	// FullClose means the market does not open at all.
	FullClose DayKind = iota
	// EarlyClose means REGULAR trading ends at 13:00 ET.
	EarlyClose
)

// dateKey is the holiday map key layout.
const dateKey = "2006-01-02"

// usHolidays lists NYSE full closures and early closes. Extend annually.
var usHolidays = map[string]DayKind{
	// 2025
	"2025-01-01": FullClose, // New Year's Day
	"2025-01-20": FullClose, // Martin Luther King Jr. Day
	"2025-02-17": FullClose, // Washington's Birthday
	"2025-04-18": FullClose, // Good Friday
	"2025-05-26": FullClose, // Memorial Day
	"2025-06-19": FullClose, // Juneteenth
	"2025-07-03": EarlyClose,
	"2025-07-04": FullClose, // Independence Day
	"2025-09-01": FullClose, // Labor Day
	"2025-11-27": FullClose, // Thanksgiving
	"2025-11-28": EarlyClose,
	"2025-12-24": EarlyClose,
	"2025-12-25": FullClose, // Christmas

	// 2026
	"2026-01-01": FullClose,
	"2026-01-19": FullClose,
	"2026-02-16": FullClose,
	"2026-04-03": FullClose,
	"2026-05-25": FullClose,
	"2026-06-19": FullClose,
	"2026-07-03": FullClose, // Independence Day observed
	"2026-09-07": FullClose,
	"2026-11-26": FullClose,
	"2026-11-27": EarlyClose,
	"2026-12-24": EarlyClose,
	"2026-12-25": FullClose,

	// 2027
	"2027-01-01": FullClose,
	"2027-01-18": FullClose,
	"2027-02-15": FullClose,
	"2027-03-26": FullClose,
	"2027-05-31": FullClose,
	"2027-06-18": FullClose, // Juneteenth observed
	"2027-07-05": FullClose, // Independence Day observed
	"2027-09-06": FullClose,
	"2027-11-25": FullClose,
	"2027-11-26": EarlyClose,
	"2027-12-24": FullClose, // Christmas observed
}

// Calendar answers market-phase questions for arbitrary instants.
type Calendar struct {
	loc      *time.Location
	holidays map[string]DayKind
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithHolidays replaces the built-in holiday table.
func WithHolidays(holidays map[string]DayKind) Option {
	return func(c *Calendar) {
		c.holidays = holidays
	}
}

// New creates a calendar pinned to America/New_York.
func New(opts ...Option) (*Calendar, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("load market timezone: %w", err)
	}
	c := &Calendar{loc: loc, holidays: usHolidays}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Phase returns the market phase at instant t.
func (c *Calendar) Phase(t time.Time) model.MarketPhase {
	et := t.In(c.loc)

	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return model.PhaseClosed
	}

	kind, isHoliday := c.holidays[et.Format(dateKey)]
	if isHoliday && kind == FullClose {
		return model.PhaseClosed
	}

	minute := et.Hour()*60 + et.Minute()
	if isHoliday && kind == EarlyClose {
		switch {
		case minute >= 4*60 && minute < 9*60+30:
			return model.PhasePre
		case minute >= 9*60+30 && minute < 13*60:
			return model.PhaseRegular
		default:
			return model.PhaseClosed
		}
	}

	switch {
	case minute >= 4*60 && minute < 9*60+30:
		return model.PhasePre
	case minute >= 9*60+30 && minute < 16*60:
		return model.PhaseRegular
	case minute >= 16*60 && minute < 20*60:
		return model.PhasePost
	default:
		return model.PhaseClosed
	}
}

// IsTradingDay reports whether the market opens at all on the day of t.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	et := t.In(c.loc)
	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	kind, isHoliday := c.holidays[et.Format(dateKey)]
	return !isHoliday || kind != FullClose
}
