package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/revere-police-logs/internal/policelog"
	"github.com/JakeFAU/revere-police-logs/internal/syncer"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func printBatch(w io.Writer, title string, results []syncer.BackfillResult) {
	t := newTable(w, title)
	t.AppendHeader(table.Row{"Date", "Outcome", "Records", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 80},
	})
	for _, r := range results {
		outcome, detail := "success", r.Note
		switch {
		case r.Skipped:
			outcome, detail = "skipped", "already synced"
		case !r.Success:
			outcome, detail = "failed", fmt.Sprintf("[%s] %s", r.Kind(), r.ErrorMessage())
		}
		t.AppendRow(table.Row{r.Date.Format(policelog.DayLayout), outcome, r.RecordsAdded, detail})
	}

	s := syncer.Summarize(results)
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d ok / %d skipped / %d failed", s.Succeeded, s.Skipped, s.Failed),
		s.RecordsAdded,
		"",
	})
	t.Render()

	if len(s.FailedDates) > 0 {
		fmt.Fprintln(w, "Failed dates:")
		for _, d := range s.FailedDates {
			fmt.Fprintf(w, "  %s\n", d.Format(policelog.DayLayout))
		}
	}
}

func printDiscovered(w io.Writer, title string, s syncer.DiscoveredSummary) {
	if s.Err != nil {
		fmt.Fprintf(w, "%s did not run: [%s] %v\n", title, s.Kind(), s.Err)
		return
	}
	if len(s.Results) == 0 {
		fmt.Fprintf(w, "%s: nothing to sync\n", title)
		return
	}
	t := newTable(w, fmt.Sprintf("%s (run %s)", title, s.RunID))
	t.AppendHeader(table.Row{"Date range", "Outcome", "Records", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, WidthMax: 80},
	})
	for _, r := range s.Results {
		span := fmt.Sprintf("%s → %s", r.Log.StartDate.Format(policelog.DayLayout), r.Log.EndDate.Format(policelog.DayLayout))
		outcome, detail := "success", r.Log.PDFURL
		if !r.Success {
			outcome, detail = "failed", fmt.Sprintf("[%s] %s", r.Kind(), r.ErrorMessage())
		}
		t.AppendRow(table.Row{span, outcome, r.RecordsAdded, detail})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d ok / %d failed", s.Succeeded(), s.Failed()),
		s.RecordsAdded(),
		"",
	})
	t.Render()
}
