package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"whatson/internal/components/chrono"
	"whatson/internal/components/serviceutil"
	"whatson/internal/components/telemetry"
	"whatson/internal/config"
	"whatson/internal/ingest"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	extractVenue *string
	extractFile  *string
)

func init() {
	extractVenue = extractCmd.Flags().String("venue", "", "The venue id whose adapter should be used.")
	extractFile = extractCmd.Flags().String("file", "", "A saved listing page, the venue's url is fetched when empty.")
	extractCmd.MarkFlagRequired("venue")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract --venue <id> [--file <path/to/page.html>]",
	Short: "Runs a venue's adapter over one page and prints what it would ingest without storing anything.",
	Run: func(cmd *cobra.Command, args []string) {
		entry, venue, cfg := findVenue(*extractVenue)

		clock, err := chrono.NewStandardImpl(cfg.Run.Timezone)
		if err != nil {
			serviceutil.Fatal("invalid timezone", err)
		}

		var html string
		if *extractFile != "" {
			data, err := os.ReadFile(*extractFile)
			if err != nil {
				serviceutil.Fatal("failed to read page", err)
			}
			html = string(data)
		} else {
			html, err = fetchPage(cmd.Context(), cfg, entry, venue)
			if err != nil {
				serviceutil.Fatal("failed to fetch page", err)
			}
		}

		err = extract(os.Stdout, venue, html, clock, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("failed to extract listings", err)
		}
	},
}

// findVenue prefers the venue from the config and falls back to the
// adapter's preset.
func findVenue(id string) (config.Venue, ingest.Venue, config.Config) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Config{}
	}
	entry := config.Venue{ID: id}
	for _, v := range cfg.Venues {
		if v.ID == id {
			entry = v
		}
	}
	venue, err := config.ResolveVenue(entry)
	if err != nil {
		serviceutil.Fatal("unknown venue", err)
	}
	return entry, venue, cfg
}

func fetchPage(ctx context.Context, cfg config.Config, entry config.Venue, venue ingest.Venue) (string, error) {
	entry.Active = nil
	cfg.Venues = []config.Venue{entry}
	if cfg.Store.File == "" && cfg.Store.URL == "" && cfg.Store.DSN == "" {
		cfg.Store.File = ":memory:"
	}
	resolved, err := cfg.Resolve()
	if err != nil {
		return "", err
	}

	fetcher, err := newFetcher(cfg, resolved, telemetry.SlogAPI{})
	if err != nil {
		return "", err
	}
	return fetcher.Fetch(ctx, ingest.FetchRequest{
		URL:           venue.URL,
		Strategy:      venue.Strategy,
		ReadySelector: venue.ReadySelector,
		SettleDelay:   venue.SettleDelay,
	})
}

// extract prints one row per listing on the page, rejected listings show
// the reason instead of dates.
func extract(w io.Writer, venue ingest.Venue, html string, clock chrono.TimeAPI, tel telemetry.API) error {
	raws, err := venue.Adapter.Extract(html)
	if err != nil {
		return err
	}
	normalizer := ingest.NormalizerFor(venue, clock, tel)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("%s: %d listings", venue.ID, len(raws))
	t.AppendHeader(table.Row{"Title", "Date text", "Start", "End", "Price", "Source id"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: 40},
		{Name: "Source id", WidthMax: 50},
	})

	for _, raw := range raws {
		raw.VenueID = venue.ID
		show, err := normalizer.Normalize(raw)
		if err != nil {
			t.AppendRow(table.Row{raw.Title, raw.DateText, "rejected", "", "", err.Error()})
			continue
		}
		price := ""
		if show.Price != nil {
			price = fmt.Sprintf("£%d.%02d", *show.Price/100, *show.Price%100)
		}
		t.AppendRow(table.Row{
			show.Title, raw.DateText,
			show.Start.Format(time.DateTime), show.End.Format(time.DateTime),
			price, show.SourceID,
		})
	}
	t.Render()
	return nil
}
