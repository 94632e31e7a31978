package statistics

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the width of a sales bucket.
type Interval string

const (
	Day   Interval = "day"
	Week  Interval = "week"
	Month Interval = "month"
)

const dateLayout = "2006-01-02"

// ParseInterval accepts day, week or month; empty means day.
func ParseInterval(raw string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Day:
		return Day, nil
	case Week:
		return Week, nil
	case Month:
		return Month, nil
	}
	return "", fmt.Errorf("unknown interval %q", raw)
}

// BucketKey returns the date label of the bucket holding t, in t's location.
// Weeks start on Monday and months are labelled by their first day.
func BucketKey(t time.Time, interval Interval) string {
	switch interval {
	case Week:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return t.AddDate(0, 0, 1-weekday).Format(dateLayout)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).Format(dateLayout)
	default:
		return t.Format(dateLayout)
	}
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// InRange reports whether t lies in [start, end]. A zero bound is open.
func InRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
