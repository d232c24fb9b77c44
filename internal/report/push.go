package report

import (
	"context"
	"fmt"

	"whatson/internal/ingest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const defaultJob = "whatson_ingest"

type runMetrics struct {
	registry  *prometheus.Registry
	listings  *prometheus.GaugeVec
	status    *prometheus.GaugeVec
	duration  *prometheus.GaugeVec
	failed    prometheus.Gauge
	finished  prometheus.Gauge
	cancelled prometheus.Gauge
}

func newRunMetrics() runMetrics {
	m := runMetrics{
		registry: prometheus.NewRegistry(),
		listings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "whatson_ingest_listings",
			Help: "Listings handled in the last run by venue and outcome.",
		}, []string{"venue", "outcome"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "whatson_ingest_venue_status",
			Help: "1 for the status each venue ended the last run with.",
		}, []string{"venue", "status"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "whatson_ingest_venue_duration_seconds",
			Help: "Time spent on each venue in the last run.",
		}, []string{"venue"}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whatson_ingest_failed_venues",
			Help: "Venues that failed in the last run.",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whatson_ingest_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		cancelled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whatson_ingest_cancelled",
			Help: "1 if the last run was cancelled before finishing.",
		}),
	}
	m.registry.MustRegister(m.listings, m.status, m.duration, m.failed, m.finished, m.cancelled)
	return m
}

func (m runMetrics) record(summary ingest.RunSummary) {
	for _, r := range summary.Results {
		m.listings.WithLabelValues(r.VenueID, "fetched").Set(float64(r.Fetched))
		m.listings.WithLabelValues(r.VenueID, "inserted").Set(float64(r.Inserted))
		m.listings.WithLabelValues(r.VenueID, "updated").Set(float64(r.Updated))
		m.listings.WithLabelValues(r.VenueID, "unchanged").Set(float64(r.Unchanged))
		m.listings.WithLabelValues(r.VenueID, "rejected").Set(float64(r.Rejected))

		for _, s := range []ingest.Status{ingest.StatusSuccess, ingest.StatusPartial, ingest.StatusFailed} {
			value := 0.0
			if r.Status == s {
				value = 1
			}
			m.status.WithLabelValues(r.VenueID, string(s)).Set(value)
		}
		m.duration.WithLabelValues(r.VenueID).Set(r.Duration.Seconds())
	}
	m.failed.Set(float64(len(summary.Failed())))
	m.finished.Set(float64(summary.FinishedAt.Unix()))
	if summary.Cancelled {
		m.cancelled.Set(1)
	}
}

// Push replaces the job's metric group on the gateway with the outcome of
// summary.
func Push(ctx context.Context, gatewayURL, job string, summary ingest.RunSummary) error {
	if job == "" {
		job = defaultJob
	}
	m := newRunMetrics()
	m.record(summary)

	err := push.New(gatewayURL, job).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
