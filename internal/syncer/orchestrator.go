// Package syncer coordinates discovery, retrieval, parsing and persistence of police logs
// and maintains the per-date sync-status ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/parser"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/storage"
)

const (
	weekendNote = "covered by Friday's log"
	// EventSyncCompleted is the event name attached to published run summaries.
	EventSyncCompleted = "sync.completed"

	tracerName = "github.com/JakeFAU/revere-police-logs/internal/syncer"
)

// Discoverer supplies the unsynced worklist.
type Discoverer interface {
	FindUnsyncedLogs(ctx context.Context) ([]policelog.DiscoveredLog, error)
	Invalidate()
}

// Config tunes batch pacing and optional side outputs.
type Config struct {
	// Delay separates consecutive fetches in a batch.
	Delay time.Duration
	// ArchivePrefix is prepended to archived document keys.
	ArchivePrefix string
	// EventTopic labels published run summaries; defaults to EventSyncCompleted.
	EventTopic string
}

// Orchestrator runs sync operations. Batch entry points are strictly sequential.
type Orchestrator struct {
	cfg       Config
	resolver  policelog.Resolver
	discovery Discoverer
	fetcher   policelog.TextFetcher
	store     policelog.Store
	parser    *parser.Parser
	archive   policelog.Archive
	hasher    policelog.Hasher
	publisher policelog.Publisher
	clock     policelog.Clock
	ids       policelog.IDGenerator
	logger    *zap.Logger
	tracer    trace.Tracer
	running   atomic.Bool
	wait      func(ctx context.Context, d time.Duration) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithArchive stores every fetched document under a digest-derived key.
func WithArchive(archive policelog.Archive, hasher policelog.Hasher) Option {
	return func(o *Orchestrator) {
		o.archive = archive
		o.hasher = hasher
	}
}

// WithPublisher publishes a summary event after each batch run.
func WithPublisher(p policelog.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock overrides the clock used for ledger timestamps.
func WithClock(c policelog.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithTracerProvider traces each sync unit with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

// WithIDGenerator overrides the run ID source.
func WithIDGenerator(g policelog.IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// New builds an Orchestrator.
func New(
	cfg Config,
	resolver policelog.Resolver,
	discovery Discoverer,
	fetcher policelog.TextFetcher,
	store policelog.Store,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = EventSyncCompleted
	}
	o := &Orchestrator{
		cfg:       cfg,
		resolver:  resolver,
		discovery: discovery,
		fetcher:   fetcher,
		store:     store,
		parser:    parser.New(logger.Named("parser")),
		clock:     utcClock{},
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		wait:      sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a guarded discovered-logs run is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// SyncDate ingests the log file for one calendar date. Weekends are covered by Friday's
// file and are marked successful without fetching.
func (o *Orchestrator) SyncDate(ctx context.Context, date time.Time) Result {
	return o.syncDate(ctx, o.logger, policelog.Day(date))
}

func (o *Orchestrator) syncDate(ctx context.Context, log *zap.Logger, date time.Time) Result {
	log = log.With(zap.String("date", date.Format(policelog.DayLayout)))
	ctx, span := o.tracer.Start(ctx, "syncer.SyncDate",
		trace.WithAttributes(attribute.String("sync.date", date.Format(policelog.DayLayout))))
	defer span.End()

	if policelog.IsWeekend(date) {
		if err := o.writeStatus(ctx, date, policelog.SyncStatusSuccess, 0, "", nil); err != nil {
			return o.finish(span, log, Result{Date: date, Err: err})
		}
		log.Debug("weekend date covered by friday's log")
		return o.finish(span, log, Result{Date: date, Success: true, Note: weekendNote})
	}

	url, ok := o.resolver.BuildPDFURL(date)
	if !ok {
		err := fmt.Errorf("%w: %s", policelog.ErrNoURLAvailable, date.Format(policelog.DayLayout))
		o.markFailed(ctx, log, date, "", err)
		return o.finish(span, log, Result{Date: date, Err: err})
	}

	if err := o.writeStatus(ctx, date, policelog.SyncStatusPending, 0, url, nil); err != nil {
		return o.finish(span, log, Result{Date: date, SourceURL: url, Err: err})
	}

	count, err := o.ingest(ctx, log, url, date)
	if err != nil {
		o.markFailed(ctx, log, date, url, err)
		return o.finish(span, log, Result{Date: date, SourceURL: url, Err: err})
	}

	if err := o.writeStatus(ctx, date, policelog.SyncStatusSuccess, count, url, nil); err != nil {
		return o.finish(span, log, Result{Date: date, SourceURL: url, Err: err})
	}
	return o.finish(span, log, Result{Date: date, Success: true, RecordsAdded: count, SourceURL: url})
}

// SyncDiscoveredLog ingests one discovered PDF and marks every date it covers as synced.
// On failure only the start date is marked failed.
func (o *Orchestrator) SyncDiscoveredLog(ctx context.Context, dl policelog.DiscoveredLog) Result {
	return o.syncDiscoveredLog(ctx, o.logger, dl)
}

func (o *Orchestrator) syncDiscoveredLog(ctx context.Context, log *zap.Logger, dl policelog.DiscoveredLog) Result {
	start := policelog.Day(dl.StartDate)
	log = log.With(zap.String("date_range", dl.DateRangeStr), zap.String("url", dl.PDFURL))
	ctx, span := o.tracer.Start(ctx, "syncer.SyncDiscoveredLog", trace.WithAttributes(
		attribute.String("sync.date", start.Format(policelog.DayLayout)),
		attribute.String("sync.source_url", dl.PDFURL),
	))
	defer span.End()

	if err := o.writeStatus(ctx, start, policelog.SyncStatusPending, 0, dl.PDFURL, nil); err != nil {
		return o.finish(span, log, Result{Date: start, SourceURL: dl.PDFURL, Err: err})
	}

	count, err := o.ingest(ctx, log, dl.PDFURL, start)
	if err != nil {
		o.markFailed(ctx, log, start, dl.PDFURL, err)
		return o.finish(span, log, Result{Date: start, SourceURL: dl.PDFURL, Err: err})
	}

	for _, d := range policelog.DatesCovered(dl) {
		if err := o.writeStatus(ctx, d, policelog.SyncStatusSuccess, count, dl.PDFURL, nil); err != nil {
			return o.finish(span, log, Result{Date: start, SourceURL: dl.PDFURL, Err: err})
		}
	}
	return o.finish(span, log, Result{Date: start, Success: true, RecordsAdded: count, SourceURL: dl.PDFURL})
}

// ingest fetches, archives, parses and upserts one document, returning the entry count.
func (o *Orchestrator) ingest(ctx context.Context, log *zap.Logger, url string, fallback time.Time) (int, error) {
	text, err := o.fetcher.FetchText(ctx, url)
	if err != nil {
		return 0, ensureKind(err, policelog.ErrRetrieval)
	}
	o.archiveText(ctx, log, fallback, text)

	entries := o.parser.Parse(text, fallback, url)
	if len(entries) == 0 {
		log.Warn("no entries parsed from document", zap.Int("bytes", len(text)))
	}

	n, err := o.store.UpsertEntries(ctx, entries)
	if err != nil {
		return 0, ensureKind(err, policelog.ErrPersistence)
	}
	metrics.AddEntriesUpserted(n)
	return n, nil
}

func (o *Orchestrator) archiveText(ctx context.Context, log *zap.Logger, date time.Time, text string) {
	if o.archive == nil || o.hasher == nil {
		return
	}
	key := storage.ArchiveKey(o.cfg.ArchivePrefix, date, o.hasher.HashText(text))
	uri, err := o.archive.PutObject(ctx, key, "text/markdown; charset=utf-8", strings.NewReader(text))
	if err != nil {
		log.Warn("archive document failed", zap.String("key", key), zap.Error(err))
		return
	}
	log.Debug("archived document", zap.String("uri", uri))
}

func (o *Orchestrator) writeStatus(
	ctx context.Context,
	date time.Time,
	status policelog.SyncStatus,
	count int,
	sourceURL string,
	errMsg *string,
) error {
	err := o.store.UpsertStatus(ctx, policelog.SyncStatusRecord{
		SyncDate:     date,
		Status:       status,
		RecordsAdded: count,
		SourceURL:    policelog.StringPtr(sourceURL),
		ErrorMessage: errMsg,
		SyncedAt:     o.clock.Now(),
	})
	if err != nil {
		return ensureKind(err, policelog.ErrPersistence)
	}
	return nil
}

// markFailed records a failure even when ctx is already canceled.
func (o *Orchestrator) markFailed(ctx context.Context, log *zap.Logger, date time.Time, url string, cause error) {
	msg := cause.Error()
	if err := o.writeStatus(context.WithoutCancel(ctx), date, policelog.SyncStatusFailed, 0, url, &msg); err != nil {
		log.Error("record failed status", zap.Error(err), zap.NamedError("cause", cause))
	}
}

func (o *Orchestrator) finish(span trace.Span, log *zap.Logger, r Result) Result {
	span.SetAttributes(attribute.Int("sync.records", r.RecordsAdded))
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, string(r.Kind()))
		metrics.ObserveSyncUnit(string(r.Kind()))
		log.Warn("sync failed", zap.String("kind", string(r.Kind())), zap.Error(r.Err))
		return r
	}
	metrics.ObserveSyncUnit("success")
	log.Info("sync succeeded", zap.Int("records", r.RecordsAdded))
	return r
}

func (o *Orchestrator) newRunID() string {
	if o.ids == nil {
		return ""
	}
	id, err := o.ids.NewID()
	if err != nil {
		o.logger.Warn("generate run id", zap.Error(err))
		return ""
	}
	return id
}

// ensureKind wraps err with kind unless it already carries a sync error kind.
func ensureKind(err, kind error) error {
	for _, known := range []error{
		policelog.ErrRetrieval,
		policelog.ErrPersistence,
		policelog.ErrNoURLAvailable,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
