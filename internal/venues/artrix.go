package venues

import (
	"strconv"
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

const artrixEvents = "ul#gridview-new li.Exhib"

// artrix pages with ?page=N until a page has no events.
type artrix struct {
	site
}

func newArtrix(opts Options) ingest.Adapter {
	return artrix{site: newSite(opts)}
}

func (a artrix) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(a.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(a.venueID, doc, "ul#gridview-new")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.Find("li.Exhib").Each(func(_ int, block *goquery.Selection) {
		link := block.Find("div.imgBox_Intrment a").First()
		listings = append(listings, a.listing(
			htmlutil.Text(block.Find("div.intrment_info a")),
			htmlutil.Text(block.Find("div.postDate_l")),
			htmlutil.Attr(link, "href"),
			htmlutil.Attr(link.Find("img"), "src"),
		))
	})
	return listings, nil
}

func (a artrix) NextPage(html, currentURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil || doc.Find(artrixEvents).Length() == 0 {
		return "", false
	}
	return withQuery(currentURL, "page", strconv.Itoa(page+1))
}
