package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

const monthLayout = "2006-01"

func newBackfillYearCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "backfill-year",
		Short: "Sync every date of a year up to today, skipping dates already synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			today := app.Today()
			if year == 0 {
				year = today.Year()
			}
			start := policelog.NewDay(year, time.January, 1)
			end := capAtToday(policelog.NewDay(year, time.December, 31), today)
			return runBackfill(cmd, app, fmt.Sprintf("Backfill %d", year), start, end)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year to backfill (default current year)")
	return cmd
}

func newBackfillMonthCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "backfill-month",
		Short: "Sync every date of one month, skipping dates already synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			m, err := time.Parse(monthLayout, month)
			if err != nil {
				return fmt.Errorf("parse --month %q (want YYYY-MM): %w", month, err)
			}
			start := policelog.NewDay(m.Year(), m.Month(), 1)
			end := capAtToday(start.AddDate(0, 1, -1), app.Today())
			return runBackfill(cmd, app, "Backfill "+start.Format("January 2006"), start, end)
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to backfill as YYYY-MM")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newFillGapsCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "fill-gaps",
		Short: "Sync dates in a range whose status is missing or failed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			start, err := policelog.ParseDay(from)
			if err != nil {
				return err
			}
			end := app.Today()
			if to != "" {
				if end, err = policelog.ParseDay(to); err != nil {
					return err
				}
			}
			results, err := app.Runner().FillGaps(cmd.Context(), start, end)
			if err != nil {
				return fmt.Errorf("fill gaps: %w", err)
			}
			printBatch(cmd.OutOrStdout(), "Fill gaps", results)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newResyncCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Wipe all entries and sync status, then re-sync every discovered log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("resync deletes all stored entries; pass --yes to confirm")
			}
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			app.Logger().Warn("force resync requested")
			summary := app.Runner().ForceResync(cmd.Context())
			printDiscovered(cmd.OutOrStdout(), "Force resync", summary)
			if summary.Err != nil {
				return fmt.Errorf("resync: %w", summary.Err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

func newSyncDiscoveredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-discovered",
		Short: "Sync every published log not yet marked synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary := app.Runner().SyncFromDiscoveredLogs(cmd.Context())
			printDiscovered(cmd.OutOrStdout(), "Discovered logs", summary)
			if summary.Err != nil {
				return fmt.Errorf("sync discovered logs: %w", summary.Err)
			}
			return nil
		},
	}
}

func newSyncDatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-dates DATE...",
		Short: "Force-sync specific dates (YYYY-MM-DD), ignoring prior status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dates := make([]time.Time, 0, len(args))
			for _, arg := range args {
				d, err := policelog.ParseDay(arg)
				if err != nil {
					return err
				}
				dates = append(dates, d)
			}
			results := app.Runner().SyncDates(cmd.Context(), dates)
			printBatch(cmd.OutOrStdout(), "Sync dates", results)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and optional sync schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context())
		},
	}
}

func runBackfill(cmd *cobra.Command, app App, title string, start, end time.Time) error {
	app.Logger().Info("backfill requested",
		zap.String("start", start.Format(policelog.DayLayout)),
		zap.String("end", end.Format(policelog.DayLayout)),
	)
	results, err := app.Runner().BackfillRange(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	printBatch(cmd.OutOrStdout(), title, results)
	return nil
}

func capAtToday(end, today time.Time) time.Time {
	today = policelog.Day(today)
	if end.After(today) {
		return today
	}
	return end
}
