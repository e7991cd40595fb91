// Package sqlite provides a single-file store for local runs, built on gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/storage"
)

const upsertBatchSize = 200

type entryModel struct {
	CallNumber       string    `gorm:"primaryKey;size:8"`
	LogDate          time.Time `gorm:"index;not null"`
	Time24h          string    `gorm:"column:time_24h;size:4;not null"`
	Timestamp        time.Time `gorm:"column:timestamp;not null"`
	CallReason       string
	CallTypeCategory string `gorm:"index"`
	Action           string
	ActionCategory   string
	LocationCode     *string
	LocationAddress  *string
	LocationStreet   *string
	RawEntry         string `gorm:"type:text"`
	SourceURL        string `gorm:"column:source_url"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (entryModel) TableName() string { return "police_log_entries" }

type statusModel struct {
	SyncDate     time.Time `gorm:"primaryKey"`
	Status       string    `gorm:"not null"`
	RecordsAdded int
	SourceURL    *string `gorm:"column:source_url"`
	ErrorMessage *string
	SyncedAt     time.Time
}

func (statusModel) TableName() string { return "police_log_sync_status" }

// Store implements policelog.Store on SQLite.
type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the database file and migrates the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store.sqlite.path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&entryModel{}, &statusModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// UpsertEntries writes entries, replacing rows with the same call number.
func (s *Store) UpsertEntries(ctx context.Context, entries []policelog.LogEntry) (int, error) {
	entries = storage.DedupeEntries(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	models := make([]entryModel, 0, len(entries))
	for _, e := range entries {
		if err := storage.ValidateEntry(e); err != nil {
			return 0, err
		}
		m, err := toEntryModel(e)
		if err != nil {
			return 0, err
		}
		models = append(models, m)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_number"}},
			UpdateAll: true,
		}).CreateInBatches(&models, upsertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: upsert entries: %w", policelog.ErrPersistence, err)
	}
	return len(models), nil
}

// ListEntries returns entries ordered by timestamp, filtered by q.
func (s *Store) ListEntries(ctx context.Context, q policelog.EntryQuery) ([]policelog.LogEntry, error) {
	tx := s.db.WithContext(ctx).Model(&entryModel{})
	if !q.From.IsZero() {
		tx = tx.Where("log_date >= ?", policelog.Day(q.From))
	}
	if !q.To.IsZero() {
		tx = tx.Where("log_date <= ?", policelog.Day(q.To))
	}
	if q.Category != "" {
		tx = tx.Where("call_type_category = ?", string(q.Category))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var rows []entryModel
	if err := tx.Order("timestamp, call_number").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", policelog.ErrPersistence, err)
	}
	out := make([]policelog.LogEntry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertStatus writes the ledger row for rec.SyncDate.
func (s *Store) UpsertStatus(ctx context.Context, rec policelog.SyncStatusRecord) error {
	if err := storage.ValidateStatus(rec); err != nil {
		return err
	}
	m := statusModel{
		SyncDate:     policelog.Day(rec.SyncDate),
		Status:       string(rec.Status),
		RecordsAdded: rec.RecordsAdded,
		SourceURL:    rec.SourceURL,
		ErrorMessage: rec.ErrorMessage,
		SyncedAt:     rec.SyncedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sync_date"}},
		UpdateAll: true,
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("%w: upsert sync status %s: %w",
			policelog.ErrPersistence, rec.SyncDate.Format(policelog.DayLayout), err)
	}
	return nil
}

// GetStatus returns the ledger row for date, if any.
func (s *Store) GetStatus(ctx context.Context, date time.Time) (policelog.SyncStatusRecord, bool, error) {
	var m statusModel
	err := s.db.WithContext(ctx).Where("sync_date = ?", policelog.Day(date)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policelog.SyncStatusRecord{}, false, nil
	}
	if err != nil {
		return policelog.SyncStatusRecord{}, false, fmt.Errorf("%w: get sync status: %w", policelog.ErrPersistence, err)
	}
	return m.toRecord(), true, nil
}

// ListStatuses returns ledger rows between from and to inclusive, ordered by date.
func (s *Store) ListStatuses(ctx context.Context, from, to time.Time) ([]policelog.SyncStatusRecord, error) {
	var rows []statusModel
	err := s.db.WithContext(ctx).
		Where("sync_date >= ? AND sync_date <= ?", policelog.Day(from), policelog.Day(to)).
		Order("sync_date").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list sync statuses: %w", policelog.ErrPersistence, err)
	}
	out := make([]policelog.SyncStatusRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// Wipe deletes every entry and ledger row.
func (s *Store) Wipe(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entryModel{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&statusModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("%w: wipe tables: %w", policelog.ErrPersistence, err)
	}
	return nil
}

func toEntryModel(e policelog.LogEntry) (entryModel, error) {
	raw := e.RawEntry
	if raw == nil {
		raw = []string{}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return entryModel{}, fmt.Errorf("%w: encode raw entry %s: %w", policelog.ErrPersistence, e.CallNumber, err)
	}
	return entryModel{
		CallNumber:       e.CallNumber,
		LogDate:          policelog.Day(e.LogDate),
		Time24h:          e.Time24h,
		Timestamp:        e.Timestamp.UTC(),
		CallReason:       e.CallReason,
		CallTypeCategory: string(e.CallTypeCategory),
		Action:           e.Action,
		ActionCategory:   string(e.ActionCategory),
		LocationCode:     e.LocationCode,
		LocationAddress:  e.LocationAddress,
		LocationStreet:   e.LocationStreet,
		RawEntry:         string(encoded),
		SourceURL:        e.SourceURL,
	}, nil
}

func (m entryModel) toEntry() (policelog.LogEntry, error) {
	var raw []string
	if m.RawEntry != "" {
		if err := json.Unmarshal([]byte(m.RawEntry), &raw); err != nil {
			return policelog.LogEntry{}, fmt.Errorf("%w: decode raw entry %s: %w", policelog.ErrPersistence, m.CallNumber, err)
		}
	}
	return policelog.LogEntry{
		CallNumber:       m.CallNumber,
		LogDate:          policelog.Day(m.LogDate),
		Time24h:          m.Time24h,
		Timestamp:        m.Timestamp.UTC(),
		CallReason:       m.CallReason,
		CallTypeCategory: policelog.CallTypeCategory(m.CallTypeCategory),
		Action:           m.Action,
		ActionCategory:   policelog.ActionCategory(m.ActionCategory),
		LocationCode:     m.LocationCode,
		LocationAddress:  m.LocationAddress,
		LocationStreet:   m.LocationStreet,
		RawEntry:         raw,
		SourceURL:        m.SourceURL,
	}, nil
}

func (m statusModel) toRecord() policelog.SyncStatusRecord {
	return policelog.SyncStatusRecord{
		SyncDate:     policelog.Day(m.SyncDate),
		Status:       policelog.SyncStatus(m.Status),
		RecordsAdded: m.RecordsAdded,
		SourceURL:    m.SourceURL,
		ErrorMessage: m.ErrorMessage,
		SyncedAt:     m.SyncedAt.UTC(),
	}
}
