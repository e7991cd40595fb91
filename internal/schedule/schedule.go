// Package schedule triggers discovered-log syncs on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/syncer"
)

// Runner executes one discovered-logs sync.
type Runner interface {
	SyncFromDiscoveredLogs(ctx context.Context) syncer.DiscoveredSummary
}

// Scheduler wraps a cron instance with a single sync entry.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	entry  cron.EntryID
	runner Runner
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (five-field cron or a descriptor such as "@daily") evaluated in loc.
func New(spec string, loc *time.Location, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("schedule runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:   spec,
		runner: runner,
		logger: logger,
	}
	id, err := s.cron.AddFunc(spec, s.trigger)
	if err != nil {
		return nil, fmt.Errorf("add cron entry: %w", err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing. Runs inherit ctx; Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("sync schedule started", zap.String("cron", s.spec), zap.Time("next_run", s.Next()))
}

// Stop halts the schedule and waits for a running sync to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sync schedule stopped")
}

// Next reports the next fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) trigger() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.Info("scheduled sync triggered")
	summary := s.runner.SyncFromDiscoveredLogs(ctx)
	switch {
	case errors.Is(summary.Err, policelog.ErrSyncInProgress):
		s.logger.Info("scheduled sync skipped; a run is already in progress")
	case summary.Err != nil:
		s.logger.Error("scheduled sync failed", zap.String("run_id", summary.RunID), zap.Error(summary.Err))
	default:
		s.logger.Info("scheduled sync finished",
			zap.String("run_id", summary.RunID),
			zap.Int("succeeded", summary.Succeeded()),
			zap.Int("failed", summary.Failed()),
			zap.Int("records", summary.RecordsAdded()),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
