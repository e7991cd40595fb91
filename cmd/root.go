// Package cmd defines and implements the CLI commands for the revere-logs executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/config"
	"github.com/JakeFAU/revere-police-logs/internal/logging"
	"github.com/JakeFAU/revere-police-logs/internal/server"
	"github.com/JakeFAU/revere-police-logs/internal/syncer"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Runner is the orchestrator surface the commands drive.
type Runner interface {
	BackfillRange(ctx context.Context, start, end time.Time) ([]syncer.BackfillResult, error)
	SyncDates(ctx context.Context, dates []time.Time) []syncer.BackfillResult
	FillGaps(ctx context.Context, start, end time.Time) ([]syncer.BackfillResult, error)
	SyncFromDiscoveredLogs(ctx context.Context) syncer.DiscoveredSummary
	ForceResync(ctx context.Context) syncer.DiscoveredSummary
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Runner() Runner
	Today() time.Time
	Serve(ctx context.Context) error
}

type serverApp struct {
	*server.App
}

func (a serverApp) Runner() Runner                  { return a.Orchestrator() }
func (a serverApp) Today() time.Time                { return a.Clock().Today() }
func (a serverApp) Serve(ctx context.Context) error { return a.Run(ctx) }

// newApp is the application factory. It's a variable so tests can swap in a fake.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	app, err := server.Build(ctx, &cfg, logger)
	if err != nil {
		return nil, err
	}
	return serverApp{App: app}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "revere-logs",
		Short: "Ingests Revere police daily logs into a queryable store.",
		Long: `revere-logs discovers the police department's published daily log PDFs,
converts them to text through an extraction proxy, parses and categorizes every
call entry, and records per-date sync status so backfills can resume.`,
		SilenceUsage: true,

		// Builds the application once flags are parsed and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env REVERE_* overrides)")

	cmd.AddCommand(
		newBackfillYearCmd(),
		newBackfillMonthCmd(),
		newFillGapsCmd(),
		newResyncCmd(),
		newSyncDiscoveredCmd(),
		newSyncDatesCmd(),
		newServeCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
