// Package postgres provides the Postgres-backed entry and sync-status store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultEntriesTable = "police_log_entries"
	defaultStatusTable  = "police_log_sync_status"
)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	EntriesTable    string
	StatusTable     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements policelog.Store on Postgres.
type Store struct {
	pool    pool
	entries string
	status  string
}

// New connects to Postgres using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.EntriesTable, cfg.StatusTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, entriesTable, statusTable string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if entriesTable == "" {
		entriesTable = defaultEntriesTable
	}
	if statusTable == "" {
		statusTable = defaultStatusTable
	}
	for _, table := range []string{entriesTable, statusTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: p, entries: entriesTable, status: statusTable}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

const entryColumns = `call_number, log_date, time_24h, "timestamp", call_reason, call_type_category,
	action, action_category, location_code, location_address, location_street, raw_entry, source_url`

// UpsertEntries writes entries in one transaction, replacing rows with the same call number.
func (s *Store) UpsertEntries(ctx context.Context, entries []policelog.LogEntry) (int, error) {
	entries = storage.DedupeEntries(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return 0, err
		}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
ON CONFLICT (call_number) DO UPDATE SET
	log_date = EXCLUDED.log_date,
	time_24h = EXCLUDED.time_24h,
	"timestamp" = EXCLUDED."timestamp",
	call_reason = EXCLUDED.call_reason,
	call_type_category = EXCLUDED.call_type_category,
	action = EXCLUDED.action,
	action_category = EXCLUDED.action_category,
	location_code = EXCLUDED.location_code,
	location_address = EXCLUDED.location_address,
	location_street = EXCLUDED.location_street,
	raw_entry = EXCLUDED.raw_entry,
	source_url = EXCLUDED.source_url,
	updated_at = now()`, s.entries, entryColumns)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin upsert entries: %w", policelog.ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, e := range entries {
		raw := e.RawEntry
		if raw == nil {
			raw = []string{}
		}
		if _, err := tx.Exec(ctx, query,
			e.CallNumber,
			policelog.Day(e.LogDate),
			e.Time24h,
			e.Timestamp,
			e.CallReason,
			string(e.CallTypeCategory),
			e.Action,
			string(e.ActionCategory),
			e.LocationCode,
			e.LocationAddress,
			e.LocationStreet,
			raw,
			e.SourceURL,
		); err != nil {
			return 0, fmt.Errorf("%w: upsert entry %s: %w", policelog.ErrPersistence, e.CallNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit upsert entries: %w", policelog.ErrPersistence, err)
	}
	return len(entries), nil
}

// ListEntries returns entries ordered by timestamp, filtered by q.
func (s *Store) ListEntries(ctx context.Context, q policelog.EntryQuery) ([]policelog.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		args = append(args, policelog.Day(q.From))
		where = append(where, fmt.Sprintf("log_date >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, policelog.Day(q.To))
		where = append(where, fmt.Sprintf("log_date <= $%d", len(args)))
	}
	if q.Category != "" {
		args = append(args, string(q.Category))
		where = append(where, fmt.Sprintf("call_type_category = $%d", len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", entryColumns, s.entries)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY "timestamp", call_number`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", policelog.ErrPersistence, err)
	}
	defer rows.Close()

	out := make([]policelog.LogEntry, 0)
	for rows.Next() {
		var (
			e                     policelog.LogEntry
			callType, actionCat   string
			code, address, street *string
		)
		if err := rows.Scan(
			&e.CallNumber,
			&e.LogDate,
			&e.Time24h,
			&e.Timestamp,
			&e.CallReason,
			&callType,
			&e.Action,
			&actionCat,
			&code,
			&address,
			&street,
			&e.RawEntry,
			&e.SourceURL,
		); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", policelog.ErrPersistence, err)
		}
		e.CallTypeCategory = policelog.CallTypeCategory(callType)
		e.ActionCategory = policelog.ActionCategory(actionCat)
		e.LocationCode, e.LocationAddress, e.LocationStreet = code, address, street
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", policelog.ErrPersistence, err)
	}
	return out, nil
}

// UpsertStatus writes the ledger row for rec.SyncDate, replacing any previous row.
func (s *Store) UpsertStatus(ctx context.Context, rec policelog.SyncStatusRecord) error {
	if err := storage.ValidateStatus(rec); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (sync_date, status, records_added, source_url, error_message, synced_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (sync_date) DO UPDATE SET
	status = EXCLUDED.status,
	records_added = EXCLUDED.records_added,
	source_url = EXCLUDED.source_url,
	error_message = EXCLUDED.error_message,
	synced_at = EXCLUDED.synced_at`, s.status)

	if _, err := s.pool.Exec(ctx, query,
		policelog.Day(rec.SyncDate),
		string(rec.Status),
		rec.RecordsAdded,
		rec.SourceURL,
		rec.ErrorMessage,
		rec.SyncedAt,
	); err != nil {
		return fmt.Errorf("%w: upsert sync status %s: %w",
			policelog.ErrPersistence, rec.SyncDate.Format(policelog.DayLayout), err)
	}
	return nil
}

const statusColumns = "sync_date, status, records_added, source_url, error_message, synced_at"

// GetStatus returns the ledger row for date, if any.
func (s *Store) GetStatus(ctx context.Context, date time.Time) (policelog.SyncStatusRecord, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE sync_date = $1", statusColumns, s.status)
	rec, err := scanStatus(s.pool.QueryRow(ctx, query, policelog.Day(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return policelog.SyncStatusRecord{}, false, nil
	}
	if err != nil {
		return policelog.SyncStatusRecord{}, false, fmt.Errorf("%w: get sync status: %w", policelog.ErrPersistence, err)
	}
	return rec, true, nil
}

// ListStatuses returns ledger rows between from and to inclusive, ordered by date.
func (s *Store) ListStatuses(ctx context.Context, from, to time.Time) ([]policelog.SyncStatusRecord, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE sync_date >= $1 AND sync_date <= $2 ORDER BY sync_date",
		statusColumns, s.status,
	)
	rows, err := s.pool.Query(ctx, query, policelog.Day(from), policelog.Day(to))
	if err != nil {
		return nil, fmt.Errorf("%w: list sync statuses: %w", policelog.ErrPersistence, err)
	}
	defer rows.Close()

	out := make([]policelog.SyncStatusRecord, 0)
	for rows.Next() {
		rec, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan sync status: %w", policelog.ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sync statuses: %w", policelog.ErrPersistence, err)
	}
	return out, nil
}

// Wipe deletes every entry and ledger row.
func (s *Store) Wipe(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s, %s", s.entries, s.status)); err != nil {
		return fmt.Errorf("%w: wipe tables: %w", policelog.ErrPersistence, err)
	}
	return nil
}

func scanStatus(row pgx.Row) (policelog.SyncStatusRecord, error) {
	var (
		rec       policelog.SyncStatusRecord
		status    string
		sourceURL *string
		errMsg    *string
	)
	if err := row.Scan(&rec.SyncDate, &status, &rec.RecordsAdded, &sourceURL, &errMsg, &rec.SyncedAt); err != nil {
		return policelog.SyncStatusRecord{}, err
	}
	rec.Status = policelog.SyncStatus(status)
	rec.SourceURL, rec.ErrorMessage = sourceURL, errMsg
	return rec, nil
}
