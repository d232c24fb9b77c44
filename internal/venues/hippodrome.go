package venues

import (
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

type hippodrome struct {
	site
}

func newHippodrome(opts Options) ingest.Adapter {
	return hippodrome{site: newSite(opts)}
}

func (h hippodrome) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(h.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(h.venueID, doc, "ul.main-events-list")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Find("li.events-list-item").Each(func(_ int, block *goquery.Selection) {
		item := block.Find("div.performance-listing").First()
		details := item.Find("div.event-details")
		listings = append(listings, h.listing(
			htmlutil.Text(details.Find("h5.performance-listing-title")),
			htmlutil.Text(details.Find("p.performance-listing-date")),
			htmlutil.Attr(item.Find("a.block"), "href"),
			htmlutil.Attr(block.Find("a.block img"), "src"),
		))
	})
	return listings, nil
}

func (h hippodrome) NextPage(html, currentURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	next := doc.Find("a.next").First()
	if next.Length() == 0 {
		return "", false
	}
	link := resolveFrom(currentURL, htmlutil.Attr(next, "href"))
	return link, link != ""
}
