package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the entries and sync-status tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	call_number        TEXT PRIMARY KEY,
	log_date           DATE NOT NULL,
	time_24h           CHAR(4) NOT NULL,
	"timestamp"        TIMESTAMP NOT NULL,
	call_reason        TEXT NOT NULL DEFAULT '',
	call_type_category TEXT NOT NULL,
	action             TEXT NOT NULL DEFAULT '',
	action_category    TEXT NOT NULL,
	location_code      TEXT,
	location_address   TEXT,
	location_street    TEXT,
	raw_entry          TEXT[] NOT NULL DEFAULT '{}',
	source_url         TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.entries),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_log_date_idx ON %s (log_date)`, s.entries, s.entries),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	sync_date     DATE PRIMARY KEY,
	status        TEXT NOT NULL CHECK (status IN ('pending', 'success', 'failed')),
	records_added INTEGER NOT NULL DEFAULT 0,
	source_url    TEXT,
	error_message TEXT,
	synced_at     TIMESTAMPTZ NOT NULL
)`, s.status),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
