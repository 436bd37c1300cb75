package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
	Holiday DayType = "holiday"
)

// Calendar designates which start dates carry a weekend or holiday multiplier.
type Calendar struct {
	WeekendDays []time.Weekday `json:"weekend_days"`
	Holidays    []string       `json:"holidays"` // YYYY-MM-DD
}

func DefaultCalendar() Calendar {
	return Calendar{WeekendDays: []time.Weekday{time.Saturday, time.Sunday}}
}

func (c Calendar) IsWeekend(t time.Time) bool {
	day := Day(t).Weekday()
	for _, w := range c.WeekendDays {
		if w == day {
			return true
		}
	}
	return false
}

func (c Calendar) IsHoliday(t time.Time) bool {
	key := Day(t).Format(dateLayout)
	for _, h := range c.Holidays {
		if h == key {
			return true
		}
	}
	return false
}

// Classify reports the day type of a single date. A holiday that falls on a
// weekend is a holiday.
func (c Calendar) Classify(t time.Time) DayType {
	switch {
	case c.IsHoliday(t):
		return Holiday
	case c.IsWeekend(t):
		return Weekend
	default:
		return Weekday
	}
}

// AddHoliday returns a copy of the calendar with date designated as a holiday.
func (c Calendar) AddHoliday(date time.Time) Calendar {
	key := Day(date).Format(dateLayout)
	if c.IsHoliday(date) {
		return c
	}
	out := c.clone()
	out.Holidays = append(out.Holidays, key)
	sort.Strings(out.Holidays)
	return out
}

func (c Calendar) RemoveHoliday(date time.Time) (Calendar, bool) {
	key := Day(date).Format(dateLayout)
	out := c.clone()
	out.Holidays = out.Holidays[:0]
	removed := false
	for _, h := range c.Holidays {
		if h == key {
			removed = true
			continue
		}
		out.Holidays = append(out.Holidays, h)
	}
	return out, removed
}

func (c Calendar) Validate() error {
	for _, h := range c.Holidays {
		if _, err := time.Parse(dateLayout, h); err != nil {
			return fmt.Errorf("invalid holiday %q (expected YYYY-MM-DD)", h)
		}
	}
	return nil
}

func (c Calendar) clone() Calendar {
	return Calendar{
		WeekendDays: append([]time.Weekday(nil), c.WeekendDays...),
		Holidays:    append([]string(nil), c.Holidays...),
	}
}

// ParseWeekdays parses a comma separated list such as "sat,sun".
func ParseWeekdays(input string) ([]time.Weekday, error) {
	names := map[string]time.Weekday{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		names[full] = d
		names[full[:3]] = d
	}
	days := []time.Weekday{}
	for _, part := range strings.Split(input, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		day, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}
	return days, nil
}

const secondsPerDay = 24 * 60 * 60

// Day truncates t to its calendar date at UTC midnight, keeping the year,
// month and day t has in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b. It is negative when b is
// before a. Counting from the epoch keeps ranges beyond time.Duration's
// reach exact.
func DaysBetween(a, b time.Time) int {
	return int(epochDay(b) - epochDay(a))
}

func epochDay(t time.Time) int64 {
	return Day(t).Unix() / secondsPerDay
}

// ParseDate parses YYYY-MM-DD into a calendar date.
func ParseDate(input string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", input)
	}
	return parsed, nil
}

func FormatDate(t time.Time) string {
	return Day(t).Format(dateLayout)
}
