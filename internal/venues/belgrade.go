package venues

import (
	"regexp"
	"strings"

	"whatson/internal/components/htmlutil"
	"whatson/internal/ingest"

	"github.com/PuerkitoBio/goquery"
)

var (
	yearRegex       = regexp.MustCompile(`\b\d{4}\b`)
	monthPanelRegex = regexp.MustCompile(`(?i)^[a-z]+\s+(\d{4})$`)
)

// belgrade groups productions under "November 2019" style headings and
// leaves the year out of the production dates.
type belgrade struct {
	site
}

func newBelgrade(opts Options) ingest.Adapter {
	return belgrade{site: newSite(opts)}
}

func (b belgrade) Extract(html string) ([]ingest.RawListing, error) {
	doc, err := parseDocument(b.venueID, html)
	if err != nil {
		return nil, err
	}
	container, err := findContainer(b.venueID, doc, "div#secondary-content.list-productions")
	if err != nil {
		return nil, err
	}

	year := ""
	var listings []ingest.RawListing
	container.Children().Each(func(_ int, block *goquery.Selection) {
		if goquery.NodeName(block) == "h2" {
			m := monthPanelRegex.FindStringSubmatch(htmlutil.Text(block))
			if m != nil {
				year = m[1]
			}
			return
		}
		if !block.HasClass("production-list-item") {
			return
		}

		link := block.Find("a.production-link").First()
		listings = append(listings, b.listing(
			htmlutil.Text(block.Find("h3")),
			withPanelYear(htmlutil.Text(block.Find("p.date")), year),
			htmlutil.Attr(link, "href"),
			htmlutil.Attr(link.Find("img"), "src"),
		))
	})
	return listings, nil
}

// withPanelYear gives the start of a date range the year of the panel it is
// listed under. The end inherits it and rolls into the next year when the
// run crosses new year.
func withPanelYear(date, year string) string {
	if date == "" || year == "" || yearRegex.MatchString(date) {
		return date
	}
	normalized := strings.NewReplacer("–", "-", "—", "-").Replace(date)
	start, end, isRange := strings.Cut(normalized, "-")
	start = strings.TrimSpace(start) + " " + year
	if !isRange {
		return start
	}
	return start + " - " + strings.TrimSpace(end)
}
