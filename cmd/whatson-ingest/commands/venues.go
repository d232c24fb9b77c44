package commands

import (
	"io"
	"log/slog"
	"os"

	"whatson/internal/config"
	"whatson/internal/venues"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(venuesCmd)
}

var venuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "Lists the configured venues, or every known adapter without a config.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			slog.Debug("no usable config, listing adapters", "err", err)
			cfg = config.Config{}
			for _, name := range venues.Names() {
				cfg.Venues = append(cfg.Venues, config.Venue{ID: name})
			}
		}
		venuesTable(os.Stdout, cfg.Venues)
	},
}

func venuesTable(w io.Writer, configured []config.Venue) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Name", "Strategy", "Active", "URL", "Problem"})
	for _, v := range configured {
		venue, err := config.ResolveVenue(v)
		if err != nil {
			t.AppendRow(table.Row{v.ID, v.Name, v.Strategy, "", v.URL, err.Error()})
			continue
		}
		t.AppendRow(table.Row{venue.ID, venue.Name, venue.Strategy, venue.Active, venue.URL, ""})
	}
	t.Render()
}
