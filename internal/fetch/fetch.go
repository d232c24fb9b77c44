// Package fetch retrieves venue listing pages, either as served or after
// rendering them in a headless browser.
package fetch

import (
	"context"
	"fmt"

	"whatson/internal/ingest"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("whatson/fetch")

// Dispatcher routes a fetch to the fetcher matching the venue's strategy.
type Dispatcher struct {
	Static   ingest.Fetcher
	Rendered ingest.Fetcher
}

func (d Dispatcher) Fetch(ctx context.Context, req ingest.FetchRequest) (string, error) {
	switch req.Strategy {
	case ingest.StrategyStatic, "":
		if d.Static == nil {
			return "", ingest.Errorf(ingest.KindTransient, "no static fetcher configured")
		}
		return d.Static.Fetch(ctx, req)
	case ingest.StrategyRendered:
		if d.Rendered == nil {
			return "", ingest.Errorf(ingest.KindBrowserCrash, "no browser configured")
		}
		return d.Rendered.Fetch(ctx, req)
	}
	return "", fmt.Errorf("unknown fetch strategy %q", req.Strategy)
}
