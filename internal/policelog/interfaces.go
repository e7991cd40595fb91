package policelog

import (
	"context"
	"io"
	"time"
)

// TextFetcher retrieves a URL through the text-extraction proxy and returns its markdown.
type TextFetcher interface {
	FetchText(ctx context.Context, targetURL string) (string, error)
}

// EntryStore persists parsed entries keyed by call number.
type EntryStore interface {
	UpsertEntries(ctx context.Context, entries []LogEntry) (int, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]LogEntry, error)
}

// StatusStore persists the per-date sync ledger keyed by sync date.
type StatusStore interface {
	UpsertStatus(ctx context.Context, rec SyncStatusRecord) error
	GetStatus(ctx context.Context, date time.Time) (SyncStatusRecord, bool, error)
	ListStatuses(ctx context.Context, from, to time.Time) ([]SyncStatusRecord, error)
}

// Store combines both tables plus maintenance operations.
type Store interface {
	EntryStore
	StatusStore
	Wipe(ctx context.Context) error
	Close() error
}

// Archive keeps a copy of every fetched document.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes sync completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests of extracted text used as archive keys.
type Hasher interface {
	HashText(text string) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
