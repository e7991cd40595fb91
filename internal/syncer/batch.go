package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

// SyncCompleted is published after every batch run.
type SyncCompleted struct {
	RunID        string    `json:"run_id"`
	Operation    string    `json:"operation"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Succeeded    int       `json:"succeeded"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	RecordsAdded int       `json:"records_added"`
	Error        string    `json:"error,omitempty"`
}

// BackfillRange syncs every date in [start, end], skipping dates already marked success.
func (o *Orchestrator) BackfillRange(ctx context.Context, start, end time.Time) ([]BackfillResult, error) {
	start, end = policelog.Day(start), policelog.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", policelog.ErrInvalidDateRange,
			end.Format(policelog.DayLayout), start.Format(policelog.DayLayout))
	}

	runID := o.newRunID()
	log := o.logger.With(zap.String("run_id", runID), zap.String("operation", "backfill"))
	startedAt := o.clock.Now()
	log.Info("backfill started",
		zap.String("start", start.Format(policelog.DayLayout)),
		zap.String("end", end.Format(policelog.DayLayout)),
	)

	results := o.runDates(ctx, log, policelog.DatesBetween(start, end), func(d time.Time) (BackfillResult, bool) {
		rec, found, err := o.store.GetStatus(ctx, d)
		if err != nil {
			log.Warn("status lookup failed; syncing anyway",
				zap.String("date", d.Format(policelog.DayLayout)), zap.Error(err))
			return BackfillResult{}, false
		}
		if found && rec.Status == policelog.SyncStatusSuccess {
			return BackfillResult{
				Result:  Result{Date: d, Success: true, RecordsAdded: rec.RecordsAdded, SourceURL: deref(rec.SourceURL)},
				Skipped: true,
			}, true
		}
		return BackfillResult{}, false
	})

	o.publishBatch(ctx, log, runID, "backfill", startedAt, results)
	return results, nil
}

// SyncDates force-syncs the given dates in order, ignoring the ledger.
func (o *Orchestrator) SyncDates(ctx context.Context, dates []time.Time) []BackfillResult {
	runID := o.newRunID()
	log := o.logger.With(zap.String("run_id", runID), zap.String("operation", "sync_dates"))
	startedAt := o.clock.Now()

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, policelog.Day(d))
	}
	results := o.runDates(ctx, log, days, nil)

	o.publishBatch(ctx, log, runID, "sync_dates", startedAt, results)
	return results
}

// FillGaps syncs dates in [start, end] whose ledger row is missing or not success.
func (o *Orchestrator) FillGaps(ctx context.Context, start, end time.Time) ([]BackfillResult, error) {
	start, end = policelog.Day(start), policelog.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", policelog.ErrInvalidDateRange,
			end.Format(policelog.DayLayout), start.Format(policelog.DayLayout))
	}
	rows, err := o.store.ListStatuses(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list sync statuses: %w", err)
	}
	done := make(map[time.Time]bool, len(rows))
	for _, r := range rows {
		if r.Status == policelog.SyncStatusSuccess {
			done[policelog.Day(r.SyncDate)] = true
		}
	}
	var gaps []time.Time
	for _, d := range policelog.DatesBetween(start, end) {
		if !done[d] {
			gaps = append(gaps, d)
		}
	}

	runID := o.newRunID()
	log := o.logger.With(zap.String("run_id", runID), zap.String("operation", "fill_gaps"))
	startedAt := o.clock.Now()
	log.Info("filling gaps", zap.Int("dates", len(gaps)))

	results := o.runDates(ctx, log, gaps, nil)
	o.publishBatch(ctx, log, runID, "fill_gaps", startedAt, results)
	return results, nil
}

// runDates syncs dates sequentially. skip may short-circuit a date. The configured delay
// is applied before a fetching unit once an earlier unit has fetched. A canceled context
// stops the batch between units.
func (o *Orchestrator) runDates(
	ctx context.Context,
	log *zap.Logger,
	dates []time.Time,
	skip func(time.Time) (BackfillResult, bool),
) []BackfillResult {
	results := make([]BackfillResult, 0, len(dates))
	fetched := false
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			log.Warn("batch canceled", zap.Int("remaining", len(dates)-len(results)), zap.Error(err))
			break
		}
		if skip != nil {
			if r, ok := skip(d); ok {
				results = append(results, r)
				continue
			}
		}
		fetches := !policelog.IsWeekend(d)
		if fetches && fetched {
			if err := o.wait(ctx, o.cfg.Delay); err != nil {
				log.Warn("batch canceled during delay", zap.Error(err))
				break
			}
		}
		results = append(results, BackfillResult{Result: o.syncDate(ctx, log, d)})
		fetched = fetched || fetches
	}
	return results
}

// SyncFromDiscoveredLogs syncs every unsynced log found on the index page. Only one run
// may execute at a time.
func (o *Orchestrator) SyncFromDiscoveredLogs(ctx context.Context) DiscoveredSummary {
	if !o.running.CompareAndSwap(false, true) {
		return DiscoveredSummary{Err: policelog.ErrSyncInProgress}
	}
	defer o.running.Store(false)
	metrics.SetSyncInProgress(true)
	defer metrics.SetSyncInProgress(false)

	return o.syncDiscovered(ctx, "sync_discovered")
}

// ForceResync wipes all entries and ledger rows, drops the discovery cache and re-runs
// the discovered-logs sync. It shares the guard with SyncFromDiscoveredLogs.
func (o *Orchestrator) ForceResync(ctx context.Context) DiscoveredSummary {
	if !o.running.CompareAndSwap(false, true) {
		return DiscoveredSummary{Err: policelog.ErrSyncInProgress}
	}
	defer o.running.Store(false)
	metrics.SetSyncInProgress(true)
	defer metrics.SetSyncInProgress(false)

	o.logger.Warn("wiping entries and sync status for resync")
	if err := o.store.Wipe(ctx); err != nil {
		return DiscoveredSummary{Err: ensureKind(err, policelog.ErrPersistence)}
	}
	o.discovery.Invalidate()
	return o.syncDiscovered(ctx, "resync")
}

func (o *Orchestrator) syncDiscovered(ctx context.Context, operation string) DiscoveredSummary {
	runID := o.newRunID()
	log := o.logger.With(zap.String("run_id", runID), zap.String("operation", operation))
	startedAt := o.clock.Now()

	logs, err := o.discovery.FindUnsyncedLogs(ctx)
	if err != nil {
		summary := DiscoveredSummary{RunID: runID, Err: ensureKind(err, policelog.ErrPersistence)}
		o.publishDiscovered(ctx, log, operation, startedAt, summary)
		return summary
	}
	log.Info("syncing discovered logs", zap.Int("unsynced", len(logs)))

	summary := DiscoveredSummary{RunID: runID, Success: true}
	for i, dl := range logs {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled", zap.Int("remaining", len(logs)-i), zap.Error(err))
			break
		}
		if i > 0 {
			if err := o.wait(ctx, o.cfg.Delay); err != nil {
				log.Warn("run canceled during delay", zap.Error(err))
				break
			}
		}
		summary.Results = append(summary.Results, LogResult{Log: dl, Result: o.syncDiscoveredLog(ctx, log, dl)})
	}

	log.Info("discovered-logs sync finished",
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()),
		zap.Int("records", summary.RecordsAdded()),
	)
	o.publishDiscovered(ctx, log, operation, startedAt, summary)
	return summary
}

func (o *Orchestrator) publishBatch(
	ctx context.Context,
	log *zap.Logger,
	runID, operation string,
	startedAt time.Time,
	results []BackfillResult,
) {
	s := Summarize(results)
	log.Info("batch finished",
		zap.Int("succeeded", s.Succeeded),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("records", s.RecordsAdded),
	)
	o.publish(ctx, log, SyncCompleted{
		RunID:        runID,
		Operation:    operation,
		StartedAt:    startedAt,
		FinishedAt:   o.clock.Now(),
		Succeeded:    s.Succeeded,
		Skipped:      s.Skipped,
		Failed:       s.Failed,
		RecordsAdded: s.RecordsAdded,
	})
}

func (o *Orchestrator) publishDiscovered(
	ctx context.Context,
	log *zap.Logger,
	operation string,
	startedAt time.Time,
	s DiscoveredSummary,
) {
	o.publish(ctx, log, SyncCompleted{
		RunID:        s.RunID,
		Operation:    operation,
		StartedAt:    startedAt,
		FinishedAt:   o.clock.Now(),
		Succeeded:    s.Succeeded(),
		Failed:       s.Failed(),
		RecordsAdded: s.RecordsAdded(),
		Error:        errString(s.Err),
	})
}

func (o *Orchestrator) publish(ctx context.Context, log *zap.Logger, event SyncCompleted) {
	if o.publisher == nil {
		return
	}
	msgID, err := o.publisher.Publish(context.WithoutCancel(ctx), o.cfg.EventTopic, event)
	if err != nil {
		log.Warn("publish sync event failed", zap.Error(err))
		return
	}
	log.Debug("published sync event", zap.String("message_id", msgID))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
