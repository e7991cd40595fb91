// Package storage holds the persistence-boundary checks shared by the store providers.
package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

var (
	callNumberPattern = regexp.MustCompile(`^\d{2}-\d{5}$`)
	time24hPattern    = regexp.MustCompile(`^\d{4}$`)
)

// ValidateEntry rejects rows that would violate the entries table contract.
func ValidateEntry(e policelog.LogEntry) error {
	if !callNumberPattern.MatchString(e.CallNumber) {
		return fmt.Errorf("%w: invalid call number %q", policelog.ErrPersistence, e.CallNumber)
	}
	if e.LogDate.IsZero() {
		return fmt.Errorf("%w: entry %s has no log date", policelog.ErrPersistence, e.CallNumber)
	}
	if !time24hPattern.MatchString(e.Time24h) {
		return fmt.Errorf("%w: entry %s has invalid time %q", policelog.ErrPersistence, e.CallNumber, e.Time24h)
	}
	return nil
}

// ValidateStatus rejects malformed ledger rows.
func ValidateStatus(rec policelog.SyncStatusRecord) error {
	if rec.SyncDate.IsZero() {
		return fmt.Errorf("%w: sync status has no date", policelog.ErrPersistence)
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: unknown sync status %q", policelog.ErrPersistence, rec.Status)
	}
	if rec.RecordsAdded < 0 {
		return fmt.Errorf("%w: negative record count %d", policelog.ErrPersistence, rec.RecordsAdded)
	}
	return nil
}

// DedupeEntries keeps the last occurrence of each call number, preserving first-seen order.
// A single upsert statement cannot touch the same conflict key twice.
func DedupeEntries(entries []policelog.LogEntry) []policelog.LogEntry {
	index := make(map[string]int, len(entries))
	out := make([]policelog.LogEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.CallNumber]; ok {
			out[i] = e
			continue
		}
		index[e.CallNumber] = len(out)
		out = append(out, e)
	}
	return out
}

// ArchiveKey builds the object path for a fetched document: <prefix>/<YYYY>/<MM>/<digest>.md.
func ArchiveKey(prefix string, date time.Time, digest string) string {
	return path.Join(strings.Trim(prefix, "/"), date.Format("2006"), date.Format("01"), digest+".md")
}
