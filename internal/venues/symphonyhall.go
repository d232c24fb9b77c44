package venues

import (
	"strings"
	"unicode"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

type symphonyHall struct {
	site
}

func newSymphonyHall(opts Options) ingest.Adapter {
	return symphonyHall{site: newSite(opts)}
}

func (s symphonyHall) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(s.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(s.venueID, doc, "ul.grid.cf")
	if err != nil {
		return nil, err
	}

	var listings []ingest.RawListing
	container.ChildrenFiltered("li").Each(func(_ int, block *goquery.Selection) {
		var dates []string
		block.Find("span.event-block__time time").Each(func(_ int, t *goquery.Selection) {
			if value := htmlutil.Attr(t, "datetime"); value != "" {
				dates = append(dates, value)
			}
		})
		// a third time element is not a layout we understand
		if len(dates) > 2 {
			dates = nil
		}

		image := ""
		srcset := strings.Fields(htmlutil.Attr(block.Find("img.o-image__full"), "data-srcset"))
		if len(srcset) > 0 {
			image = srcset[0]
		}

		listings = append(listings, s.listing(
			capitalizeWords(htmlutil.Text(block.Find("h3"))),
			strings.Join(dates, " to "),
			htmlutil.Attr(block.Find("a.event-block"), "href"),
			image,
		))
	})
	return listings, nil
}

func (s symphonyHall) NextPage(html, currentURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	next := doc.Find("a.pagination__link--next").First()
	if next.Length() == 0 || next.HasClass("disabled") {
		return "", false
	}
	link := resolveFrom(currentURL, htmlutil.Attr(next, "href"))
	return link, link != ""
}

// capitalizeWords turns "WE'RE GOING ON A BEAR HUNT" into
// "We're Going On A Bear Hunt".
func capitalizeWords(title string) string {
	words := strings.Fields(title)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
