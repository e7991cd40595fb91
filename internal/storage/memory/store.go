// Package memory provides in-process stores for tests and dry runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/storage"
)

// Store implements policelog.Store with maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]policelog.LogEntry
	statuses map[time.Time]policelog.SyncStatusRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]policelog.LogEntry),
		statuses: make(map[time.Time]policelog.SyncStatusRecord),
	}
}

// UpsertEntries stores entries keyed by call number.
func (s *Store) UpsertEntries(_ context.Context, entries []policelog.LogEntry) (int, error) {
	entries = storage.DedupeEntries(entries)
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.LogDate = policelog.Day(e.LogDate)
		e.RawEntry = slices.Clone(e.RawEntry)
		s.entries[e.CallNumber] = e
	}
	return len(entries), nil
}

// ListEntries returns matching entries ordered by timestamp then call number.
func (s *Store) ListEntries(_ context.Context, q policelog.EntryQuery) ([]policelog.LogEntry, error) {
	s.mu.RLock()
	out := make([]policelog.LogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !q.From.IsZero() && e.LogDate.Before(policelog.Day(q.From)) {
			continue
		}
		if !q.To.IsZero() && e.LogDate.After(policelog.Day(q.To)) {
			continue
		}
		if q.Category != "" && e.CallTypeCategory != q.Category {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].CallNumber < out[j].CallNumber
	})
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []policelog.LogEntry{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// EntryCount reports how many distinct call numbers are stored.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// UpsertStatus stores the ledger row for rec.SyncDate.
func (s *Store) UpsertStatus(_ context.Context, rec policelog.SyncStatusRecord) error {
	if err := storage.ValidateStatus(rec); err != nil {
		return err
	}
	rec.SyncDate = policelog.Day(rec.SyncDate)
	s.mu.Lock()
	s.statuses[rec.SyncDate] = rec
	s.mu.Unlock()
	return nil
}

// GetStatus returns the ledger row for date, if any.
func (s *Store) GetStatus(_ context.Context, date time.Time) (policelog.SyncStatusRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.statuses[policelog.Day(date)]
	return rec, ok, nil
}

// ListStatuses returns rows between from and to inclusive, ordered by date.
func (s *Store) ListStatuses(_ context.Context, from, to time.Time) ([]policelog.SyncStatusRecord, error) {
	from, to = policelog.Day(from), policelog.Day(to)
	s.mu.RLock()
	out := make([]policelog.SyncStatusRecord, 0)
	for day, rec := range s.statuses {
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SyncDate.Before(out[j].SyncDate) })
	return out, nil
}

// Wipe clears both tables.
func (s *Store) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	clear(s.statuses)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
