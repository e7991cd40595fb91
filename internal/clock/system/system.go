// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

// Clock implements policelog.Clock. Timestamps are UTC; Today uses the configured zone
// because log dates follow the department's local calendar.
type Clock struct {
	loc *time.Location
}

// New creates a Clock for the given zone; nil means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in UTC.
func (c *Clock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the current local calendar date as a naive date.
func (c *Clock) Today() time.Time {
	return policelog.Day(time.Now().In(c.loc))
}
