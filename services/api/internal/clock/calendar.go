package clock

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a festival day.
const DateLayout = "2006-01-02"

// Calendar answers day-of questions in the festival's fixed timezone, never the
// server's local one.
type Calendar struct {
	clock    Clock
	location *time.Location
	start    time.Time
}

// NewCalendar builds a calendar for the given IANA zone. startDate is the first
// festival day (2006-01-02); an empty value makes every day number 1.
func NewCalendar(clk Clock, zone, startDate string) (*Calendar, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load festival timezone %q: %w", zone, err)
	}
	cal := &Calendar{clock: clk, location: loc}
	if startDate != "" {
		start, err := time.ParseInLocation(DateLayout, startDate, loc)
		if err != nil {
			return nil, fmt.Errorf("parse festival start date %q: %w", startDate, err)
		}
		cal.start = start
	}
	return cal, nil
}

func (c *Calendar) Location() *time.Location { return c.location }

// Now is the current instant in the festival timezone.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().In(c.location)
}

// Today is the current festival date.
func (c *Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// IsToday reports whether date (2006-01-02) is today in the festival timezone.
func (c *Calendar) IsToday(date string) bool {
	return date != "" && date == c.Today()
}

// DayNumber is the 1-based festival day of t.
func (c *Calendar) DayNumber(t time.Time) int {
	if c.start.IsZero() {
		return 1
	}
	n := civilDays(t.In(c.location)) - civilDays(c.start) + 1
	if n < 1 {
		return 1
	}
	return n
}

// civilDays counts calendar days to t's local date. Dates are compared in UTC
// so a 23 or 25 hour day in the festival zone still counts as one.
func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
