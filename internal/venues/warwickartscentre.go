package venues

import (
	"regexp"
	"strconv"
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

const (
	warwickEvents   = "div.area-production-list article.unit-production-entry"
	warwickPageSize = 10
)

var (
	warwickClock     = regexp.MustCompile(`(?i)\b\d{1,2}(?:[.:]\d{2})?\s*(?:am|pm)\b`)
	warwickNoise     = regexp.MustCompile(`(?i)\b(?:from|mondays|tuesdays|wednesdays|thursdays|fridays|saturdays|sundays)\b`)
	warwickTrailings = " -–&"
)

// warwickArtsCentre pages with ?start=N in steps of ten.
type warwickArtsCentre struct {
	site
}

func newWarwickArtsCentre(opts Options) ingest.Adapter {
	return warwickArtsCentre{site: newSite(opts)}
}

func (w warwickArtsCentre) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(w.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(w.venueID, doc, "div.area-production-list")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Find("article.unit-production-entry").Each(func(_ int, block *goquery.Selection) {
		media := block.Find("a.media").First()
		date, clock := splitWarwickDate(htmlutil.Text(block.Find("p.date")))

		listing := w.listing(
			htmlutil.Text(block.Find("div.body h2")),
			date,
			htmlutil.Attr(media, "href"),
			htmlutil.Attr(media.Find("img"), "src"),
		)
		listing.TimeText = clock
		listings = append(listings, listing)
	})
	return listings, nil
}

// splitWarwickDate separates "Thursdays from Thu 5 Mar - Thu 26 Mar 2020,
// 7.30pm (no show on 12 Mar)" into its date range and time of day.
func splitWarwickDate(text string) (string, string) {
	clock := warwickClock.FindString(text)
	text, _, _ = strings.Cut(text, "(")
	text, _, _ = strings.Cut(text, ",")
	text = warwickClock.ReplaceAllString(text, "")
	text = warwickNoise.ReplaceAllString(text, "")
	text = strings.Trim(htmlutil.CleanText(text), warwickTrailings)
	return strings.TrimSpace(text), clock
}

func (w warwickArtsCentre) NextPage(html, currentURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil || doc.Find(warwickEvents).Length() == 0 {
		return "", false
	}
	return withQuery(currentURL, "start", strconv.Itoa(page*warwickPageSize))
}
