// Package report presents a finished run: as a table for the terminal, as
// metrics pushed to a Prometheus Pushgateway and as an email when venues
// failed.
package report

import (
	"io"
	"time"

	"whatson/internal/ingest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders one row per venue followed by the run totals.
func Table(w io.Writer, summary ingest.RunSummary) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(w)
	t.SetTitle("run %s", summary.RunID)
	t.AppendHeader(table.Row{
		"Venue", "Status", "Stage", "Pages", "Fetched",
		"Inserted", "Updated", "Unchanged", "Rejected", "Duration", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Error", WidthMax: 60},
		{Name: "Duration", Align: text.AlignRight},
	})

	var total ingest.RunResult
	for _, r := range summary.Results {
		t.AppendRow(table.Row{
			r.VenueID, r.Status, r.Stage, r.Pages, r.Fetched,
			r.Inserted, r.Updated, r.Unchanged, r.Rejected,
			r.Duration.Round(time.Millisecond), r.Error,
		})
		total.Pages += r.Pages
		total.Fetched += r.Fetched
		total.Inserted += r.Inserted
		total.Updated += r.Updated
		total.Unchanged += r.Unchanged
		total.Rejected += r.Rejected
	}

	status := "ok"
	if !summary.OK() {
		status = "failed"
	}
	if summary.Cancelled {
		status = "cancelled"
	}
	t.AppendFooter(table.Row{
		"total", status, "", total.Pages, total.Fetched,
		total.Inserted, total.Updated, total.Unchanged, total.Rejected,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond), "",
	})
	t.Render()
}
