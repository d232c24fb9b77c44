package ingest

import (
	"context"
	"time"
)

// Strategy selects how a venue's listing pages are fetched.
type Strategy string

const (
	StrategyStatic   Strategy = "static"
	StrategyRendered Strategy = "rendered"
)

func (s Strategy) Valid() bool {
	return s == StrategyStatic || s == StrategyRendered
}

// Venue is a configured listing source.
type Venue struct {
	ID       string
	Name     string
	URL      string
	RootURL  string
	Strategy Strategy
	Adapter  Adapter
	Active   bool

	// ReadySelector and SettleDelay only apply to rendered venues.
	ReadySelector string
	SettleDelay   time.Duration
	// DateLayouts are tried before the adapter's own layouts and the defaults.
	DateLayouts []string
	MaxPages    int
}

// RawListing is what an adapter extracts from a single listing block,
// every field is text exactly as it appeared on the page.
type RawListing struct {
	VenueID   string
	Title     string
	DateText  string
	TimeText  string
	URL       string
	ImageURL  string
	PriceText string
	// NativeID is the venue's own identifier for the listing, if it has one.
	NativeID string
}

// Show is the canonical normalized form of a listing.
type Show struct {
	VenueID  string
	SourceID string
	Title    string
	Start    time.Time
	End      time.Time
	// Price is the lowest advertised price in minor units, nil when unknown.
	Price      *int64
	BookingURL string
	ImageURL   string
}

func (s Show) Equal(o Show) bool {
	if (s.Price == nil) != (o.Price == nil) {
		return false
	}
	if s.Price != nil && *s.Price != *o.Price {
		return false
	}
	return s.VenueID == o.VenueID &&
		s.SourceID == o.SourceID &&
		s.Title == o.Title &&
		s.Start.Equal(o.Start) &&
		s.End.Equal(o.End) &&
		s.BookingURL == o.BookingURL &&
		s.ImageURL == o.ImageURL
}

// FetchRequest describes a single page fetch.
type FetchRequest struct {
	URL           string
	Strategy      Strategy
	ReadySelector string
	SettleDelay   time.Duration
}

// Fetcher retrieves the HTML of a page. Failures are returned as *Error with
// a fetch class kind.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (string, error)
}

// Adapter turns a page of venue HTML into raw listings. It must be pure:
// the same html always yields the same listings.
type Adapter interface {
	Extract(html string) ([]RawListing, error)
}

// Paginator is implemented by adapters whose listings span several pages.
// page is the 1-based number of the page html was fetched from.
type Paginator interface {
	NextPage(html, currentURL string, page int) (string, bool)
}

// DateHinter is implemented by adapters that know the date layouts their
// venue prints.
type DateHinter interface {
	DateLayouts() []string
}

// Lookup finds a previously stored show by its identity.
type Lookup interface {
	Lookup(ctx context.Context, venueID, sourceID string) (Show, bool, error)
}

// Sink is the persistent show store.
type Sink interface {
	Lookup
	Upsert(ctx context.Context, show Show) error
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// RunResult is the outcome of ingesting a single venue.
type RunResult struct {
	VenueID string
	Status  Status
	// Stage is the stage the venue failed in, or StageDone.
	Stage      Stage
	Fetched    int
	Normalized int
	Inserted   int
	Updated    int
	// Skipped counts rejected listings plus listings that were unchanged.
	Skipped   int
	Rejected  int
	Unchanged int
	Pages     int
	Duration  time.Duration
	ErrorKind Kind
	Error     string
}

// RunSummary is the outcome of a whole run, Results is sorted by venue id.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []RunResult
	Cancelled  bool
}

// Failed returns the results of every venue whose status is failed.
func (s RunSummary) Failed() []RunResult {
	var out []RunResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether every venue succeeded, possibly with rejected listings.
func (s RunSummary) OK() bool {
	return len(s.Failed()) == 0
}
