package venues

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

func parseDocument(venueID, html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, ingest.NewError(ingest.KindMalformedDocument, venueID, err)
	}
	return doc, nil
}

func malformed(venueID, format string, args ...any) error {
	return ingest.Errorf(ingest.KindMalformedDocument, "%s: %s", venueID, fmt.Sprintf(format, args...))
}

// findContainer returns the listing container or a MalformedDocument error
// when the page no longer has the expected layout.
func findContainer(venueID string, doc *goquery.Document, selector string) (*goquery.Selection, error) {
	container := doc.Find(selector).First()
	if container.Length() == 0 {
		return nil, malformed(venueID, "listing container %q not found", selector)
	}
	return container, nil
}

// site carries what every adapter shares.
type site struct {
	venueID string
	root    *url.URL
}

func newSite(opts Options) site {
	return site{venueID: opts.VenueID, root: opts.RootURL}
}

func (s site) resolve(href string) string {
	return htmlutil.ResolveURL(s.root, href)
}

// resolveFrom resolves href against the page it was found on.
func resolveFrom(current, href string) string {
	base, err := url.Parse(current)
	if err != nil {
		return ""
	}
	return htmlutil.ResolveURL(base, href)
}

func (s site) listing(title, date, link, image string) ingest.RawListing {
	return ingest.RawListing{
		VenueID:  s.venueID,
		Title:    title,
		DateText: date,
		URL:      s.resolve(link),
		ImageURL: s.resolve(image),
	}
}

// withQuery returns current with key set to value.
func withQuery(current, key, value string) (string, bool) {
	parsed, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	query := parsed.Query()
	query.Set(key, value)
	parsed.RawQuery = query.Encode()
	return parsed.String(), true
}

const imageSimilarityThreshold = 0.9

// imageIndex maps event names to thumbnails. Arena sites ship the mapping as
// JSON in a hidden input and the names there do not always match the card
// titles exactly.
type imageIndex struct {
	exact map[string]string
	names []string
}

type arenaEvents struct {
	Events []struct {
		EventName    string `json:"eventName"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"events"`
}

func newImageIndex(payload string) imageIndex {
	index := imageIndex{exact: map[string]string{}}
	if strings.TrimSpace(payload) == "" {
		return index
	}
	var events arenaEvents
	err := json.Unmarshal([]byte(payload), &events)
	if err != nil {
		return index
	}
	for _, e := range events.Events {
		key := strings.ToLower(htmlutil.CleanText(e.EventName))
		if key == "" || e.ThumbnailURL == "" {
			continue
		}
		if _, exists := index.exact[key]; !exists {
			index.names = append(index.names, key)
		}
		index.exact[key] = e.ThumbnailURL
	}
	return index
}

func (i imageIndex) lookup(title string) string {
	key := strings.ToLower(htmlutil.CleanText(title))
	if key == "" {
		return ""
	}
	if image, ok := i.exact[key]; ok {
		return image
	}

	best := ""
	bestScore := 0.0
	for _, name := range i.names {
		score := matchr.JaroWinkler(key, name, false)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	if bestScore < imageSimilarityThreshold {
		return ""
	}
	return i.exact[best]
}
