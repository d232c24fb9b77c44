package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"whatson/internal/components/assert"
	"whatson/internal/components/chrono"
	"whatson/internal/components/htmlutil"
	"whatson/internal/components/telemetry"
)

const (
	report_normalizer_time = "normalizer.time"
)

// Normalizer turns raw listings into shows. It holds no state between calls.
type Normalizer struct {
	clock   chrono.TimeAPI
	tel     telemetry.API
	layouts []string
}

// NewNormalizer creates a normalizer that tries each group of layout hints
// in order before DefaultDateLayouts.
func NewNormalizer(clock chrono.TimeAPI, tel telemetry.API, hints ...[]string) Normalizer {
	assert.NotNil(clock)
	assert.NotNil(tel)

	var layouts []string
	for _, h := range hints {
		layouts = append(layouts, h...)
	}
	layouts = append(layouts, DefaultDateLayouts...)

	return Normalizer{
		clock:   clock,
		tel:     telemetry.NewScopedAPI("normalizer", tel),
		layouts: layouts,
	}
}

// NormalizeTitle strips non-printable characters and collapses whitespace.
func NormalizeTitle(title string) string {
	return htmlutil.CleanText(title)
}

func (n Normalizer) Normalize(raw RawListing) (Show, error) {
	title := NormalizeTitle(raw.Title)
	if title == "" {
		return Show{}, Errorf(KindMissingTitle, "listing %q has no title", raw.URL)
	}

	loc := n.clock.Location()
	dates, err := parseDateRange(raw.DateText, n.layouts, n.clock.Now().In(loc), loc)
	if err != nil {
		return Show{}, err
	}

	start := dates.start
	end := dates.end
	if dates.clock == nil && strings.TrimSpace(raw.TimeText) != "" {
		clock, ok := parseClock(raw.TimeText)
		if ok {
			y, m, d := start.Date()
			start = time.Date(y, m, d, clock.hour, clock.minute, 0, 0, loc)
			if end.Before(start) {
				end = start
			}
		} else {
			n.tel.ReportWarning(report_normalizer_time, raw.VenueID, title, raw.TimeText)
		}
	}

	bookingURL := absoluteURL(raw.URL)
	show := Show{
		VenueID:    raw.VenueID,
		Title:      title,
		Start:      start,
		End:        end,
		Price:      ParsePrice(raw.PriceText),
		BookingURL: bookingURL,
		ImageURL:   absoluteURL(raw.ImageURL),
	}
	show.SourceID = SourceID(raw.NativeID, CanonicalURL(bookingURL), title, start)
	return show, nil
}

// absoluteURL returns the trimmed url if it is an absolute http(s) url.
func absoluteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

// CanonicalURL reduces a url to scheme, lowercase host and path so that
// tracking parameters do not change a show's identity.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	path := parsed.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host) + path
}

// SourceID derives the stable identity of a show within its venue.
func SourceID(nativeID, canonicalURL, title string, start time.Time) string {
	if id := strings.TrimSpace(nativeID); id != "" {
		return "id:" + id
	}
	if canonicalURL != "" {
		return "url:" + canonicalURL
	}
	key := strings.ToLower(NormalizeTitle(title)) + "|" + start.UTC().Format(time.RFC3339)
	sum := sha256.Sum256([]byte(key))
	return "th:" + hex.EncodeToString(sum[:])[:16]
}

var (
	poundRegex = regexp.MustCompile(`£\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?`)
	bareRegex  = regexp.MustCompile(`^\s*(\d+)(?:\.(\d{1,2}))?\s*$`)
	freeRegex  = regexp.MustCompile(`(?i)\bfree\b`)
)

func minorUnits(whole, fraction string) (int64, bool) {
	units, err := strconv.ParseInt(strings.ReplaceAll(whole, ",", ""), 10, 64)
	if err != nil || units > math.MaxInt64/100 {
		return 0, false
	}
	pence := int64(0)
	if fraction != "" {
		if len(fraction) == 1 {
			fraction += "0"
		}
		pence, _ = strconv.ParseInt(fraction, 10, 64)
	}
	return units*100 + pence, true
}

// ParsePrice returns the lowest price in text in minor units, or nil when
// text holds no recognisable price. "Free" is a price of zero.
func ParsePrice(text string) *int64 {
	var lowest *int64
	consider := func(v int64) {
		if lowest == nil || v < *lowest {
			lowest = &v
		}
	}

	for _, m := range poundRegex.FindAllStringSubmatch(text, -1) {
		if v, ok := minorUnits(m[1], m[2]); ok {
			consider(v)
		}
	}
	if freeRegex.MatchString(text) {
		consider(0)
	}
	if lowest == nil {
		if m := bareRegex.FindStringSubmatch(text); m != nil {
			if v, ok := minorUnits(m[1], m[2]); ok {
				consider(v)
			}
		}
	}
	return lowest
}
