package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

// ErrorKind classifies a failed unit so callers can branch without matching strings.
type ErrorKind string

// Error kinds reported by Result.Kind.
const (
	KindNone        ErrorKind = "none"
	KindNoURL       ErrorKind = "no_url"
	KindRetrieval   ErrorKind = "retrieval"
	KindPersistence ErrorKind = "persistence"
	KindInProgress  ErrorKind = "in_progress"
	KindCanceled    ErrorKind = "canceled"
)

// KindOf maps an error onto the sync error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, policelog.ErrSyncInProgress):
		return KindInProgress
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, policelog.ErrNoURLAvailable):
		return KindNoURL
	case errors.Is(err, policelog.ErrPersistence):
		return KindPersistence
	default:
		return KindRetrieval
	}
}

// Result is the outcome of syncing one date or one discovered log. Failures are carried
// in Err rather than returned, so batch callers keep going.
type Result struct {
	Date         time.Time
	Success      bool
	RecordsAdded int
	SourceURL    string
	Note         string
	Err          error
}

// Kind classifies Err.
func (r Result) Kind() ErrorKind {
	return KindOf(r.Err)
}

// ErrorMessage returns Err's text, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// BackfillResult is a Result plus whether the date was skipped as already synced.
type BackfillResult struct {
	Result
	Skipped bool
}

// BatchSummary tallies a list of backfill results.
type BatchSummary struct {
	Succeeded    int
	Skipped      int
	Failed       int
	RecordsAdded int
	FailedDates  []time.Time
}

// Summarize counts results by outcome.
func Summarize(results []BackfillResult) BatchSummary {
	var s BatchSummary
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Success:
			s.Succeeded++
			s.RecordsAdded += r.RecordsAdded
		default:
			s.Failed++
			s.FailedDates = append(s.FailedDates, r.Date)
		}
	}
	return s
}

// LogResult is the outcome for one discovered log.
type LogResult struct {
	Log policelog.DiscoveredLog
	Result
}

// DiscoveredSummary reports a discovered-logs run. Success is false when the run did not
// execute (already in progress, ledger unavailable or wipe failed); per-log failures are
// counted in Results.
type DiscoveredSummary struct {
	RunID   string
	Success bool
	Results []LogResult
	Err     error
}

// Kind classifies Err.
func (s DiscoveredSummary) Kind() ErrorKind {
	return KindOf(s.Err)
}

// Succeeded counts logs synced successfully.
func (s DiscoveredSummary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failed counts logs that failed.
func (s DiscoveredSummary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// RecordsAdded sums entries written across successful logs.
func (s DiscoveredSummary) RecordsAdded() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n += r.RecordsAdded
		}
	}
	return n
}
