package venues

import (
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

// globe publishes event ids, separate times and prices, and writes numeric
// dates day first.
type globe struct {
	site
}

func newGlobe(opts Options) ingest.Adapter {
	return globe{site: newSite(opts)}
}

func (g globe) DateLayouts() []string {
	return []string{"02/01/2006", "2/1/2006"}
}

func (g globe) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(g.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(g.venueID, doc, "div.whats-on")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Find("article.event").Each(func(_ int, block *goquery.Selection) {
		link := block.Find(".event-title a").First()
		listing := g.listing(
			htmlutil.Text(link),
			htmlutil.Text(block.Find(".event-date")),
			htmlutil.Attr(link, "href"),
			htmlutil.Attr(block.Find("img"), "src"),
		)
		listing.TimeText = htmlutil.Text(block.Find(".event-time"))
		listing.PriceText = htmlutil.Text(block.Find(".event-price"))
		listing.NativeID = htmlutil.Attr(block, "data-event-id")
		listings = append(listings, listing)
	})
	return listings, nil
}

func (g globe) NextPage(html, currentURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	next := doc.Find("a[rel='next']").First()
	if next.Length() == 0 {
		return "", false
	}
	link := resolveFrom(currentURL, htmlutil.Attr(next, "href"))
	return link, link != ""
}
