package venues

import (
	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

// arena covers the two NEC group arenas. Both render their listings with
// javascript and ship event thumbnails separately as JSON.
type arena struct {
	site
	container string
	title     string
	date      string
}

func newResortsWorld(opts Options) ingest.Adapter {
	return arena{
		site:      newSite(opts),
		container: "div#home-results",
		title:     "a.eventhref span.title",
		date:      "span.date",
	}
}

func newArenaBirmingham(opts Options) ingest.Adapter {
	return arena{
		site:      newSite(opts),
		container: "div.content-area div.events-wrap",
		title:     "span.title",
		date:      "div.information span.date",
	}
}

func (a arena) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(a.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(a.venueID, doc, a.container)
	if err != nil {
		return nil, err
	}
	cards := container.Find("div.event-card")
	if cards.Length() == 0 {
		return nil, malformed(a.venueID, "no event cards")
	}

	images := newImageIndex(htmlutil.Attr(doc.Find("input#all-events"), "value"))

	var listings []ingest.RawListing
	cards.Each(func(_ int, card *goquery.Selection) {
		title := htmlutil.Text(card.Find(a.title))
		listings = append(listings, a.listing(
			title,
			htmlutil.Text(card.Find(a.date)),
			htmlutil.Attr(card.Find("a.eventhref"), "href"),
			images.lookup(title),
		))
	})
	return listings, nil
}
