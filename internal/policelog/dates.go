package policelog

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DayLayout is the ISO calendar-date layout used by the CLI and API.
const DayLayout = "2006-01-02"

const tokenLayout = "01-02-06"

var dateTokenPattern = regexp.MustCompile(`(?i)^(\d{1,2})-(\d{1,2})-(\d{2})(?:-7am)?$`)

// Day truncates t to its calendar date at midnight UTC. Dates in this package are naive:
// the UTC location only carries the wall-clock values printed in the source.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDay builds a calendar date.
func NewDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DatesBetween returns every date from start to end inclusive.
func DatesBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// DatesCovered expands a discovered log into the dates it covers. The range is half-open
// because each file runs 7am to 7am and the end date belongs to the next file.
func DatesCovered(log DiscoveredLog) []time.Time {
	start, end := Day(log.StartDate), Day(log.EndDate)
	if !end.After(start) {
		return []time.Time{start}
	}
	var out []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// ParseDateToken parses a filename token of the form MM-DD-YY or MM-DD-YY-7am.
func ParseDateToken(token string) (time.Time, error) {
	m := dateTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, token)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t := NewDay(2000+year, time.Month(month), day)
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrDateParse, token)
	}
	return t, nil
}

// FormatDateToken renders the MM-DD-YY token used in log filenames.
func FormatDateToken(t time.Time) string {
	return t.Format(tokenLayout)
}
