package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type memorySink struct {
	mutex  sync.Mutex
	shows  map[string]Show
	writes int

	lookupErr error
	upsertErr error
	// failAfter makes Upsert fail once this many writes succeeded, zero disables it.
	failAfter int
	// blockLookup makes Lookup wait until its context ends.
	blockLookup bool
}

func newMemorySink() *memorySink {
	return &memorySink{shows: map[string]Show{}}
}

func (m *memorySink) Lookup(ctx context.Context, venueID, sourceID string) (Show, bool, error) {
	if m.blockLookup {
		<-ctx.Done()
		return Show{}, false, ctx.Err()
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.lookupErr != nil {
		return Show{}, false, m.lookupErr
	}
	show, ok := m.shows[venueID+"/"+sourceID]
	return show, ok, nil
}

func (m *memorySink) Upsert(ctx context.Context, show Show) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.failAfter > 0 && m.writes >= m.failAfter {
		return errors.New("database is locked")
	}
	m.shows[show.VenueID+"/"+show.SourceID] = show
	m.writes++
	return nil
}

func (m *memorySink) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.shows)
}

// fakeFetcher serves pages from a map. Urls listed in block wait until the
// context ends.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	block map[string]bool
	delay time.Duration

	inflight    atomic.Int32
	maxInflight atomic.Int32
	calls       atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		current := f.maxInflight.Load()
		if n <= current || f.maxInflight.CompareAndSwap(current, n) {
			break
		}
	}

	if f.block[req.URL] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.errs[req.URL]; ok {
		return "", err
	}
	page, ok := f.pages[req.URL]
	if !ok {
		return "", Errorf(KindNotFound, "%s returned 404", req.URL)
	}
	return page, nil
}

// lineAdapter reads one listing per line in the form
// "title|date|url", a line "next:<url>" names the following page and a
// page that is exactly "garbage" is malformed.
type lineAdapter struct{}

func (lineAdapter) Extract(html string) ([]RawListing, error) {
	if html == "garbage" {
		return nil, Errorf(KindMalformedDocument, "no listing container")
	}
	var out []RawListing
	for _, line := range strings.Split(html, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "next:") {
			continue
		}
		fields := strings.Split(line, "|")
		for len(fields) < 3 {
			fields = append(fields, "")
		}
		out = append(out, RawListing{Title: fields[0], DateText: fields[1], URL: fields[2]})
	}
	return out, nil
}

type pagedLineAdapter struct {
	lineAdapter
}

func (pagedLineAdapter) NextPage(html, currentURL string, page int) (string, bool) {
	for _, line := range strings.Split(html, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "next:") {
			return strings.TrimPrefix(line, "next:"), true
		}
	}
	return "", false
}
