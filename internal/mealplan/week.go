package mealplan

import (
	"fmt"
	"time"
)

// WeekLayout is the date format used for week keys in URLs and storage.
const WeekLayout = "2006-01-02"

// WeekStart returns the Monday (00:00 UTC) of the week containing t's
// calendar date. Weeks run Monday to Sunday everywhere in the system.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}

// NextWeekStart returns the Monday after the week containing t.
func NextWeekStart(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// IsWeekStart reports whether t is already a canonical week start.
func IsWeekStart(t time.Time) bool {
	u := t.UTC()
	return u.Equal(WeekStart(u))
}

// ParseWeek parses a YYYY-MM-DD date and normalizes it to its week start.
func ParseWeek(s string) (time.Time, error) {
	t, err := time.Parse(WeekLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q: %w", s, err)
	}
	return WeekStart(t), nil
}

// FormatWeek renders a week start as YYYY-MM-DD.
func FormatWeek(t time.Time) string {
	return t.UTC().Format(WeekLayout)
}

// DayDate returns the calendar date of day within the week starting at weekStart.
func DayDate(weekStart time.Time, day Day) time.Time {
	for i, d := range Days {
		if d == day {
			return weekStart.AddDate(0, 0, i)
		}
	}
	return weekStart
}
