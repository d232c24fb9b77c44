package venues

import (
	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

type albany struct {
	site
}

func newAlbany(opts Options) ingest.Adapter {
	return albany{site: newSite(opts)}
}

func (a albany) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(a.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(a.venueID, doc, "div.query_block_content")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Children().Each(func(_ int, block *goquery.Selection) {
		date := block.Find(".show-date")
		heading := block.Find("h4 a")
		// spacers and promo tiles carry neither
		if date.Length() == 0 && heading.Length() == 0 {
			return
		}
		listings = append(listings, a.listing(
			htmlutil.Text(heading),
			htmlutil.Text(date),
			htmlutil.Attr(heading, "href"),
			htmlutil.Attr(block.Find("img"), "src"),
		))
	})
	return listings, nil
}
