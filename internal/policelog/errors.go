package policelog

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the ingestion subsystems.
var (
	ErrNoURLAvailable   = errors.New("no log url available for date")
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrDiscoveryFetch   = errors.New("discovery fetch failed")
	ErrDateParse        = errors.New("date token parse failed")
	ErrRetrieval        = errors.New("retrieval failed")
	ErrPersistence      = errors.New("persistence failed")
)

// FetchError reports a non-success HTTP status from the retrieval proxy.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap lets errors.Is match ErrRetrieval.
func (e *FetchError) Unwrap() error {
	return ErrRetrieval
}

// Retryable reports whether the status is worth another attempt.
func (e *FetchError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
