package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "", "")
	require.NoError(t, err)
	return store, mock
}

func sampleEntry(callNumber string) policelog.LogEntry {
	return policelog.LogEntry{
		CallNumber:       callNumber,
		LogDate:          policelog.NewDay(2025, time.October, 2),
		Time24h:          "0012",
		Timestamp:        time.Date(2025, time.October, 2, 0, 12, 0, 0, time.UTC),
		CallReason:       "MOTOR VEHICLE STOP",
		CallTypeCategory: policelog.CallTypeTraffic,
		Action:           "VERBAL WARNING",
		ActionCategory:   policelog.ActionWarning,
		LocationStreet:   policelog.StringPtr("REVERE BEACH PKWY"),
		RawEntry:         []string{"25-48123  0012  MOTOR VEHICLE STOP  VERBAL WARNING"},
		SourceURL:        "https://example/test.pdf",
	}
}

func TestNewWithPoolValidatesTableNames(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "entries; DROP TABLE x", "")
	require.Error(t, err)

	_, err = NewWithPool(nil, "", "")
	require.Error(t, err)
}

func TestUpsertEntriesUsesCallNumberConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO police_log_entries.*ON CONFLICT \(call_number\) DO UPDATE`).
		WithArgs(
			"25-48123",
			policelog.NewDay(2025, time.October, 2),
			"0012",
			pgxmock.AnyArg(),
			"MOTOR VEHICLE STOP",
			"TRAFFIC",
			"VERBAL WARNING",
			"WARNING",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			"https://example/test.pdf",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO police_log_entries`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := store.UpsertEntries(context.Background(), []policelog.LogEntry{
		sampleEntry("25-48123"),
		sampleEntry("25-48124"),
		sampleEntry("25-48123"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEntriesRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO police_log_entries`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.UpsertEntries(context.Background(), []policelog.LogEntry{sampleEntry("25-48123")})
	require.Error(t, err)
	assert.ErrorIs(t, err, policelog.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEntriesRejectsInvalidRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	bad := sampleEntry("not-a-number")

	_, err := store.UpsertEntries(context.Background(), []policelog.LogEntry{bad})
	require.ErrorIs(t, err, policelog.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEntriesEmptyIsNoop(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	n, err := store.UpsertEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatusUsesSyncDateConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	syncedAt := time.Date(2025, time.October, 3, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO police_log_sync_status.*ON CONFLICT \(sync_date\) DO UPDATE`).
		WithArgs(
			policelog.NewDay(2025, time.October, 2),
			"success",
			12,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			syncedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertStatus(context.Background(), policelog.SyncStatusRecord{
		SyncDate:     time.Date(2025, time.October, 2, 13, 0, 0, 0, time.UTC),
		Status:       policelog.SyncStatusSuccess,
		RecordsAdded: 12,
		SourceURL:    policelog.StringPtr("https://example/test.pdf"),
		SyncedAt:     syncedAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertStatusRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	err := store.UpsertStatus(context.Background(), policelog.SyncStatusRecord{
		SyncDate: policelog.NewDay(2025, time.October, 2),
		Status:   "done",
	})
	require.ErrorIs(t, err, policelog.ErrPersistence)
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	day := policelog.NewDay(2025, time.October, 2)
	syncedAt := time.Date(2025, time.October, 3, 8, 0, 0, 0, time.UTC)
	rows := mock.NewRows([]string{"sync_date", "status", "records_added", "source_url", "error_message", "synced_at"}).
		AddRow(day, "failed", 0, policelog.StringPtr("https://example/test.pdf"), policelog.StringPtr("boom"), syncedAt)
	mock.ExpectQuery(`SELECT .* FROM police_log_sync_status WHERE sync_date = \$1`).
		WithArgs(day).
		WillReturnRows(rows)

	rec, ok, err := store.GetStatus(context.Background(), day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, policelog.SyncStatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "boom", *rec.ErrorMessage)
	assert.Equal(t, syncedAt, rec.SyncedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatusMissing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`FROM police_log_sync_status`).WillReturnError(pgx.ErrNoRows)

	_, ok, err := store.GetStatus(context.Background(), policelog.NewDay(2025, time.October, 4))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListStatuses(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	from := policelog.NewDay(2025, time.October, 1)
	to := policelog.NewDay(2025, time.October, 3)
	var noText *string
	rows := mock.NewRows([]string{"sync_date", "status", "records_added", "source_url", "error_message", "synced_at"}).
		AddRow(from, "success", 4, noText, noText, from).
		AddRow(to, "pending", 0, noText, noText, to)
	mock.ExpectQuery(`FROM police_log_sync_status WHERE sync_date >= \$1 AND sync_date <= \$2 ORDER BY sync_date`).
		WithArgs(from, to).
		WillReturnRows(rows)

	got, err := store.ListStatuses(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, policelog.SyncStatusSuccess, got[0].Status)
	assert.Equal(t, 4, got[0].RecordsAdded)
	assert.Equal(t, policelog.SyncStatusPending, got[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEntriesBuildsFilters(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	e := sampleEntry("25-48123")
	var noText *string
	rows := mock.NewRows([]string{
		"call_number", "log_date", "time_24h", "timestamp", "call_reason", "call_type_category",
		"action", "action_category", "location_code", "location_address", "location_street", "raw_entry", "source_url",
	}).AddRow(
		e.CallNumber, e.LogDate, e.Time24h, e.Timestamp, e.CallReason, "TRAFFIC",
		e.Action, "WARNING", noText, noText, e.LocationStreet, e.RawEntry, e.SourceURL,
	)
	mock.ExpectQuery(`FROM police_log_entries WHERE log_date >= \$1 AND log_date <= \$2 AND call_type_category = \$3 ORDER BY "timestamp", call_number LIMIT \$4 OFFSET \$5`).
		WithArgs(e.LogDate, e.LogDate, "TRAFFIC", 10, 20).
		WillReturnRows(rows)

	got, err := store.ListEntries(context.Background(), policelog.EntryQuery{
		From:     e.LogDate,
		To:       e.LogDate,
		Category: policelog.CallTypeTraffic,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, policelog.CallTypeTraffic, got[0].CallTypeCategory)
	assert.Equal(t, policelog.ActionWarning, got[0].ActionCategory)
	require.NotNil(t, got[0].LocationStreet)
	assert.Equal(t, "REVERE BEACH PKWY", *got[0].LocationStreet)
	assert.Nil(t, got[0].LocationCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWipeTruncatesBothTables(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`TRUNCATE police_log_entries, police_log_sync_status`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	require.NoError(t, store.Wipe(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS police_log_entries`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS police_log_entries_log_date_idx`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS police_log_sync_status`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
