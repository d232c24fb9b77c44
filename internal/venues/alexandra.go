package venues

import (
	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

// alexandra is listed on the ATG ticketing site, whose class names carry
// build hashes like "ShowCard_image__x7Yz".
type alexandra struct {
	site
}

func newAlexandra(opts Options) ingest.Adapter {
	return alexandra{site: newSite(opts)}
}

func (a alexandra) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(a.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(a.venueID, doc, "section[class^='WhatsOnPanel']")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Children().Each(func(_ int, event *goquery.Selection) {
		card := event.Find("div[class*='ShowCard_']").First()
		details := event.Find("div[class*='WhatsOnPanel']").First()
		listings = append(listings, a.listing(
			htmlutil.Text(details.Find("h3 a")),
			htmlutil.Text(details.Find("div")),
			htmlutil.Attr(card.Find("a"), "href"),
			htmlutil.Attr(card.Find("img"), "src"),
		))
	})
	return listings, nil
}
