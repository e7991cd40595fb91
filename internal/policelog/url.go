package policelog

import (
	"fmt"
	"strings"
	"time"
)

// Resolver computes the canonical PDF URL for a date's log file.
type Resolver struct {
	baseURL string
}

// NewResolver builds a Resolver rooted at the source site, e.g. https://www.revere.org.
func NewResolver(baseURL string) Resolver {
	return Resolver{baseURL: strings.TrimRight(baseURL, "/")}
}

// BuildPDFURL returns the URL of the file covering date. Weekends have no dedicated file
// because Friday's file runs through Monday morning, so ok is false for them.
func (r Resolver) BuildPDFURL(date time.Time) (string, bool) {
	start := Day(date)
	if IsWeekend(start) {
		return "", false
	}
	end := start.AddDate(0, 0, 1)
	if start.Weekday() == time.Friday {
		end = start.AddDate(0, 0, 3)
	}
	return r.RangeURL(start, end), true
}

// RangeURL renders the upload path for an arbitrary file range. The folder uses the
// year and month of the range start.
func (r Resolver) RangeURL(start, end time.Time) string {
	return fmt.Sprintf("%s/wp-content/uploads/%04d/%02d/Public-Log-Redacted-%s-7am-to-%s-7am.pdf",
		r.baseURL,
		start.Year(),
		int(start.Month()),
		FormatDateToken(start),
		FormatDateToken(end),
	)
}
