package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("whatson")

// MeteredAPI forwards every report to an inner API and additionally
// records counts and breakages as otel metrics.
type MeteredAPI struct {
	inner    API
	counts   metric.Int64Counter
	breakage metric.Int64Counter
}

func NewMeteredAPI(inner API) MeteredAPI {
	counts, err := meter.Int64Counter("whatson.events")
	if err != nil {
		inner.ReportBroken("metered.counter", err)
	}
	breakage, err := meter.Int64Counter("whatson.broken")
	if err != nil {
		inner.ReportBroken("metered.counter", err)
	}
	return MeteredAPI{inner: inner, counts: counts, breakage: breakage}
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	if m.breakage != nil {
		m.breakage.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
	}
	m.inner.ReportBroken(id, params...)
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.inner.ReportWarning(id, params...)
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	if m.counts != nil {
		m.counts.Add(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
	}
	m.inner.ReportCount(id, count)
}
