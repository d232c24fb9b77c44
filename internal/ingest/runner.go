package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"whatson/internal/components/assert"
	"whatson/internal/components/chrono"
	"whatson/internal/components/telemetry"

	random "github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("whatson/ingest")

const (
	report_runner_run     = "runner.run"
	report_runner_venue   = "runner.venue"
	report_runner_listing = "runner.listing"
	report_runner_stage   = "runner.stage"
)

// Options are the tunables of a run.
type Options struct {
	// Workers bounds the number of venues processed concurrently.
	Workers int
	// VenueTimeout bounds the total time spent on a single venue.
	VenueTimeout time.Duration
	// RunDeadline bounds the whole run, zero means no deadline.
	RunDeadline time.Duration
	// AcquireTimeout bounds every individual store call.
	AcquireTimeout time.Duration
	// MaxPages is the pagination cap for venues that do not set their own.
	MaxPages int
}

func DefaultOptions() Options {
	return Options{
		Workers:        4,
		VenueTimeout:   2 * time.Minute,
		RunDeadline:    15 * time.Minute,
		AcquireTimeout: 10 * time.Second,
		MaxPages:       10,
	}
}

// Config is everything a run needs.
type Config struct {
	Venues    []Venue
	Fetcher   Fetcher
	Sink      Sink
	Clock     chrono.TimeAPI
	Telemetry telemetry.API
	Options   Options
}

// Runner orchestrates one ingest run over a set of venues.
type Runner struct {
	venues  []Venue
	fetcher Fetcher
	sink    Sink
	clock   chrono.TimeAPI
	tel     telemetry.API
	opts    Options
}

func NewRunner(cfg Config) Runner {
	assert.NotNil(cfg.Fetcher)
	assert.NotNil(cfg.Sink)
	assert.NotNil(cfg.Clock)
	assert.NotNil(cfg.Telemetry)
	assert.Positive("workers", cfg.Options.Workers)
	assert.Positive("venue timeout", cfg.Options.VenueTimeout)
	assert.Positive("acquire timeout", cfg.Options.AcquireTimeout)

	return Runner{
		venues:  cfg.Venues,
		fetcher: cfg.Fetcher,
		sink:    cfg.Sink,
		clock:   cfg.Clock,
		tel:     telemetry.NewScopedAPI("ingest", cfg.Telemetry),
		opts:    cfg.Options,
	}
}

// RunIngest performs a single synchronous run and returns its summary.
func RunIngest(ctx context.Context, cfg Config) RunSummary {
	return NewRunner(cfg).Run(ctx)
}

// accumulator collects venue results from concurrent workers.
type accumulator struct {
	mutex   sync.Mutex
	results []RunResult
}

func (a *accumulator) add(r RunResult) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.results = append(a.results, r)
}

func (a *accumulator) sorted() []RunResult {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	out := make([]RunResult, len(a.results))
	copy(out, a.results)
	sort.Slice(out, func(i, j int) bool {
		return out[i].VenueID < out[j].VenueID
	})
	return out
}

func newRunID() string {
	id, err := random.String(12)
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}

// Run processes every active venue and returns once all of them reached a
// terminal stage. A failing venue never affects the others.
func (r Runner) Run(ctx context.Context) RunSummary {
	summary := RunSummary{
		RunID:     newRunID(),
		StartedAt: r.clock.Now(),
	}

	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", summary.RunID))

	runCtx := ctx
	if r.opts.RunDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.opts.RunDeadline)
		defer cancel()
	}

	acc := &accumulator{}
	group := errgroup.Group{}
	group.SetLimit(r.opts.Workers)

	for _, venue := range r.venues {
		if !venue.Active {
			continue
		}
		group.Go(func() error {
			acc.add(r.processVenue(runCtx, venue))
			return nil
		})
	}
	// venue failures are recorded in their results, workers never return an error
	group.Wait()

	summary.Results = acc.sorted()
	summary.FinishedAt = r.clock.Now()
	summary.Cancelled = runCtx.Err() != nil

	failed := len(summary.Failed())
	r.tel.ReportCount(report_runner_run, int64(len(summary.Results)))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d venues failed", failed))
		r.tel.ReportWarning(report_runner_run, summary.RunID, fmt.Sprintf("%d/%d venues failed", failed, len(summary.Results)))
	}
	return summary
}

// classify turns whatever a stage returned into a taxonomy error. A
// cancelled run takes precedence over the error the stage reported, and an
// exhausted venue budget over everything but a render timeout.
func classify(runCtx, venueCtx context.Context, err error) *Error {
	if runCtx.Err() != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return NewError(KindCancelled, "run deadline exceeded", err)
		}
		return NewError(KindCancelled, "run cancelled", err)
	}
	var e *Error
	hasKind := errors.As(err, &e)
	if hasKind && e.Kind == KindRenderTimeout {
		return e
	}
	if errors.Is(venueCtx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, "venue time budget exceeded", err)
	}
	if hasKind {
		return e
	}
	return NewError(KindTransient, "", err)
}

type venueRun struct {
	runner   Runner
	venue    Venue
	runCtx   context.Context
	ctx      context.Context
	progress progress
	result   RunResult
}

func (v *venueRun) advance(to Stage) {
	err := v.progress.advance(to)
	if err != nil {
		v.runner.tel.ReportBroken(report_runner_stage, v.venue.ID, err)
	}
}

func (v *venueRun) fail(err error) RunResult {
	e := classify(v.runCtx, v.ctx, err)
	v.progress.fail()
	v.result.Status = StatusFailed
	v.result.ErrorKind = e.Kind
	v.result.Error = e.Error()
	v.runner.tel.ReportWarning(report_runner_venue, v.venue.ID, v.progress.reported().String(), e)
	return v.result
}

// checkpoint fails the venue if its context ended between stages.
func (v *venueRun) checkpoint() error {
	if err := v.ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (r Runner) processVenue(runCtx context.Context, venue Venue) RunResult {
	started := time.Now()

	ctx, span := tracer.Start(runCtx, "processVenue")
	defer span.End()
	span.SetAttributes(attribute.String("venue", venue.ID))

	ctx, cancel := context.WithTimeout(ctx, r.opts.VenueTimeout)
	defer cancel()

	v := &venueRun{
		runner: r,
		venue:  venue,
		runCtx: runCtx,
		ctx:    ctx,
		result: RunResult{VenueID: venue.ID},
	}
	result := r.runStages(v)
	result.Stage = v.progress.reported()
	result.Duration = time.Since(started)
	result.Skipped = result.Rejected + result.Unchanged

	if result.Status == StatusFailed {
		span.SetStatus(codes.Error, result.Error)
	}
	span.SetAttributes(
		attribute.String("status", string(result.Status)),
		attribute.Int("fetched", result.Fetched),
		attribute.Int("inserted", result.Inserted),
		attribute.Int("updated", result.Updated),
	)
	r.tel.ReportDebug(
		"venue finished",
		venue.ID, string(result.Status),
		result.Fetched, result.Inserted, result.Updated, result.Skipped,
	)
	return result
}

func (r Runner) runStages(v *venueRun) RunResult {
	if err := v.checkpoint(); err != nil {
		return v.fail(err)
	}

	v.advance(StageFetching)
	pages, err := r.fetchPages(v)
	v.result.Pages = len(pages)
	if err != nil {
		return v.fail(err)
	}

	v.advance(StageParsing)
	var raws []RawListing
	for _, page := range pages {
		listings, err := v.venue.Adapter.Extract(page)
		if err != nil {
			if _, ok := KindOf(err); !ok {
				err = NewError(KindMalformedDocument, "extract", err)
			}
			return v.fail(err)
		}
		raws = append(raws, listings...)
	}
	v.result.Fetched = len(raws)
	if err := v.checkpoint(); err != nil {
		return v.fail(err)
	}

	v.advance(StageNormalizing)
	normalizer := NormalizerFor(v.venue, r.clock, r.tel)
	var shows []Show
	for _, raw := range raws {
		raw.VenueID = v.venue.ID
		show, err := normalizer.Normalize(raw)
		if err != nil {
			v.result.Rejected++
			r.tel.ReportWarning(report_runner_listing, v.venue.ID, raw.Title, err)
			continue
		}
		shows = append(shows, show)
	}
	v.result.Normalized = len(shows)
	if err := v.checkpoint(); err != nil {
		return v.fail(err)
	}

	v.advance(StageReconciling)
	for _, show := range shows {
		err := r.reconcileOne(v, show)
		if err != nil {
			return v.fail(err)
		}
	}

	v.advance(StageDone)
	v.result.Status = StatusSuccess
	if v.result.Rejected > 0 {
		v.result.Status = StatusPartial
	}
	return v.result
}

// NormalizerFor tries the venue's own layouts, then its adapter's.
func NormalizerFor(venue Venue, clock chrono.TimeAPI, tel telemetry.API) Normalizer {
	var adapterLayouts []string
	if hinter, ok := venue.Adapter.(DateHinter); ok {
		adapterLayouts = hinter.DateLayouts()
	}
	return NewNormalizer(clock, tel, venue.DateLayouts, adapterLayouts)
}

func (r Runner) fetchPages(v *venueRun) ([]string, error) {
	maxPages := v.venue.MaxPages
	if maxPages <= 0 {
		maxPages = r.opts.MaxPages
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	paginator, paginated := v.venue.Adapter.(Paginator)

	var pages []string
	seen := map[string]bool{}
	url := v.venue.URL
	for page := 1; page <= maxPages; page++ {
		seen[url] = true
		html, err := r.fetcher.Fetch(v.ctx, FetchRequest{
			URL:           url,
			Strategy:      v.venue.Strategy,
			ReadySelector: v.venue.ReadySelector,
			SettleDelay:   v.venue.SettleDelay,
		})
		if err != nil {
			return pages, err
		}
		pages = append(pages, html)

		if !paginated {
			break
		}
		next, ok := paginator.NextPage(html, url, page)
		if !ok || next == "" || seen[next] {
			break
		}
		url = next
	}
	return pages, nil
}

func (r Runner) reconcileOne(v *venueRun, show Show) error {
	ctx, cancel := context.WithTimeout(v.ctx, r.opts.AcquireTimeout)
	defer cancel()

	action, err := Reconcile(ctx, show, r.sink)
	if err != nil {
		return err
	}
	err = Apply(ctx, r.sink, show, action)
	if err != nil {
		return err
	}

	switch action {
	case ActionInsert:
		v.result.Inserted++
	case ActionUpdate:
		v.result.Updated++
	case ActionSkip:
		v.result.Unchanged++
	}
	return nil
}
