package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"whatson/internal/components/serviceutil"
	"whatson/internal/components/telemetry"
	"whatson/internal/config"
	"whatson/internal/fetch"
	"whatson/internal/ingest"
	"whatson/internal/report"
	"whatson/internal/store"

	"github.com/spf13/cobra"
)

var (
	runReset  *bool
	runVenues *[]string
)

func init() {
	runReset = runCmd.Flags().Bool("reset", false, "Delete every stored show before ingesting.")
	runVenues = runCmd.Flags().StringSlice("venue", nil, "Only ingest the given venue ids.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--reset] [--venue <id>]",
	Short: "Ingests every active venue once and reports the outcome.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		resolved, err := cfg.Resolve()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}
		resolved.Venues, err = filterVenues(resolved.Venues, *runVenues)
		if err != nil {
			serviceutil.Fatal("invalid --venue", err)
		}

		summary, err := runIngest(cmd.Context(), cfg, resolved, *runReset, os.Stdout)
		if err != nil {
			serviceutil.Fatal("ingest failed", err)
		}
		if !summary.OK() {
			os.Exit(1)
		}
	},
}

// filterVenues keeps only the venues named in ids, an empty ids keeps all.
func filterVenues(venues []ingest.Venue, ids []string) ([]ingest.Venue, error) {
	if len(ids) == 0 {
		return venues, nil
	}
	byID := map[string]ingest.Venue{}
	for _, v := range venues {
		byID[v.ID] = v
	}
	var out []ingest.Venue
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("venue '%s' is not configured", id)
		}
		v.Active = true
		out = append(out, v)
	}
	return out, nil
}

func runIngest(ctx context.Context, cfg config.Config, resolved config.Resolved, reset bool, out io.Writer) (ingest.RunSummary, error) {
	providers, err := telemetry.Setup(ctx, "whatson-ingest", cfg.Telemetry)
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("setup telemetry: %w", err)
	}
	defer providers.Shutdown(context.Background())

	tel := telemetry.NewMeteredAPI(telemetry.SlogAPI{})
	telemetry.InstrumentPerfStats(ctx, tel)

	st, err := store.Open(ctx, cfg.Store, resolved.Options.Workers, resolved.Clock)
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if reset {
		err = st.Reset(ctx)
		if err != nil {
			return ingest.RunSummary{}, fmt.Errorf("reset store: %w", err)
		}
		slog.InfoContext(ctx, "store reset")
	}

	fetcher, err := newFetcher(cfg, resolved, tel)
	if err != nil {
		return ingest.RunSummary{}, err
	}

	summary := ingest.RunIngest(ctx, ingest.Config{
		Venues:    resolved.Venues,
		Fetcher:   fetcher,
		Sink:      st,
		Clock:     resolved.Clock,
		Telemetry: tel,
		Options:   resolved.Options,
	})
	report.Table(out, summary)
	publish(ctx, cfg.Report, summary)
	return summary, nil
}

func newFetcher(cfg config.Config, resolved config.Resolved, tel telemetry.API) (fetch.Dispatcher, error) {
	static, err := fetch.NewStaticFetcher(resolved.Static, tel)
	if err != nil {
		return fetch.Dispatcher{}, fmt.Errorf("create static fetcher: %w", err)
	}
	dispatcher := fetch.Dispatcher{Static: static}
	if !resolved.NeedsBrowser() {
		return dispatcher, nil
	}
	if cfg.Browser.Install {
		err = fetch.InstallBrowser()
		if err != nil {
			return fetch.Dispatcher{}, fmt.Errorf("install browser: %w", err)
		}
	}
	dispatcher.Rendered = fetch.NewRenderedFetcher(resolved.Rendered, tel)
	return dispatcher, nil
}

// publish sends the summary to the pushgateway and the mail recipients. A
// failure here is logged but never changes the outcome of the run.
func publish(ctx context.Context, cfg config.Report, summary ingest.RunSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if cfg.PushGateway != "" {
		err := report.Push(ctx, cfg.PushGateway, cfg.Job, summary)
		if err != nil {
			slog.WarnContext(ctx, "failed to push metrics", "err", err)
		}
	}

	mail := report.MailConfig{
		Server:   cfg.Email.Server,
		Port:     cfg.Email.Port,
		From:     cfg.Email.From,
		Password: cfg.Email.Password,
		To:       cfg.Email.To,
	}
	if mail.Enabled() {
		err := report.Mail(mail, summary)
		if err != nil {
			slog.WarnContext(ctx, "failed to send report mail", "err", err)
		}
	}
}
