package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayouts are tried after any venue or adapter specific layouts.
// Layouts without a year or month are completed from the other end of a
// range or from the clock.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",

	"Monday 2 January 2006",
	"Mon 2 January 2006",
	"Monday 2 Jan 2006",
	"Mon 2 Jan 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday January 2 2006",
	"Mon Jan 2 2006",
	"January 2 2006",
	"Jan 2 2006",

	"Monday 2 January",
	"Mon 2 January",
	"Monday 2 Jan",
	"Mon 2 Jan",
	"2 January",
	"2 Jan",
	"Monday January 2",
	"Mon Jan 2",
	"January 2",
	"Jan 2",

	"Monday 2",
	"Mon 2",
	"2",
}

var (
	dashReplacer       = strings.NewReplacer("–", "-", "—", "-", "‒", "-", "−", "-")
	ordinalRegex       = regexp.MustCompile(`(?i)\b([0-3]?[0-9])(st|nd|rd|th)\b`)
	spellingRegex      = regexp.MustCompile(`(?i)\b(thurs|thur|tues|weds|sept)\b\.?`)
	leadingWordRegex   = regexp.MustCompile(`(?i)^(from|until|till|on)\s+`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	rangeSeparator     = regexp.MustCompile(`(?i)\s+(?:-|&|to|until|and)\s+`)
	bareRangeSeparator = regexp.MustCompile(`\s*[-&]\s*`)
	isoPrefix          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	isolatedOne        = regexp.MustCompile(`(^|[^0-9])1([^0-9]|$)`)

	clockRegex = regexp.MustCompile(`(?i)\b([01]?\d|2[0-3])(?:[:.]([0-5]\d))?\s*(am|pm)\b|\b([01]?\d|2[0-3]):([0-5]\d)\b`)
)

var spellings = map[string]string{
	"thurs": "Thu",
	"thur":  "Thu",
	"tues":  "Tue",
	"weds":  "Wed",
	"sept":  "Sep",
}

// cleanDateText removes the decorations venues add around dates so that the
// result can be matched against Go layouts.
func cleanDateText(text string) string {
	text = dashReplacer.Replace(text)
	text = strings.ReplaceAll(text, ",", " ")
	text = ordinalRegex.ReplaceAllString(text, "$1")
	text = spellingRegex.ReplaceAllStringFunc(text, func(s string) string {
		key := strings.ToLower(strings.TrimSuffix(s, "."))
		return spellings[key]
	})
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = leadingWordRegex.ReplaceAllString(text, "")
	return strings.Trim(text, " -&.")
}

type clockTime struct {
	hour   int
	minute int
}

// parseClock reads times like "7:30pm", "7.30 pm", "7pm" and "19:30".
func parseClock(text string) (clockTime, bool) {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return clockTime{}, false
	}
	if m[3] != "" {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return clockTime{}, false
		}
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		hour = hour % 12
		if strings.EqualFold(m[3], "pm") {
			hour += 12
		}
		return clockTime{hour: hour, minute: minute}, true
	}
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	return clockTime{hour: hour, minute: minute}, true
}

// extractClock removes the first time of day found in text and returns it.
func extractClock(text string) (string, *clockTime) {
	if isoPrefix.MatchString(text) {
		return text, nil
	}
	loc := clockRegex.FindStringIndex(text)
	if loc == nil {
		return text, nil
	}
	c, ok := parseClock(text[loc[0]:loc[1]])
	if !ok {
		return text, nil
	}
	rest := text[:loc[0]] + " " + text[loc[1]:]
	rest = strings.Trim(whitespaceRegex.ReplaceAllString(rest, " "), " -&.")
	return rest, &c
}

func splitRange(text string) []string {
	if parts := rangeSeparator.Split(text, 2); len(parts) == 2 {
		return parts
	}
	if isoPrefix.MatchString(text) {
		return []string{text}
	}
	parts := bareRangeSeparator.Split(text, 2)
	if len(parts) == 2 && (strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "") {
		return []string{strings.Trim(text, " -&")}
	}
	return parts
}

type layoutInfo struct {
	layout   string
	hasYear  bool
	hasMonth bool
	hasClock bool
}

func describeLayout(layout string) layoutInfo {
	return layoutInfo{
		layout:   layout,
		hasYear:  strings.Contains(layout, "2006") || strings.Contains(layout, "06"),
		hasMonth: strings.Contains(layout, "Jan") || strings.Contains(layout, "01") || isolatedOne.MatchString(layout),
		hasClock: strings.Contains(layout, "15") || strings.Contains(layout, "3:04") || strings.Contains(layout, "PM"),
	}
}

// partialDate is a date where the year and month may still be unknown.
type partialDate struct {
	year  int
	month time.Month
	day   int
	clock *clockTime
}

func parsePartial(text string, layouts []layoutInfo, loc *time.Location) (partialDate, bool) {
	text = strings.Trim(text, " -&.")
	if text == "" {
		return partialDate{}, false
	}
	for _, l := range layouts {
		t, err := time.ParseInLocation(l.layout, text, loc)
		if err != nil {
			continue
		}
		t = t.In(loc)
		p := partialDate{day: t.Day()}
		if l.hasYear {
			p.year = t.Year()
		}
		if l.hasMonth {
			p.month = t.Month()
		}
		if l.hasClock {
			p.clock = &clockTime{hour: t.Hour(), minute: t.Minute()}
		}
		return p, true
	}
	return partialDate{}, false
}

// buildDate rejects dates that time.Date would silently normalize, like the
// 29th of February in a non leap year.
func buildDate(year int, month time.Month, day int, clock *clockTime, loc *time.Location) (time.Time, bool) {
	hour, minute := 0, 0
	if clock != nil {
		hour, minute = clock.hour, clock.minute
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// inferYear picks the first year in which month/day falls no earlier than
// six months before now, so shows that are already running keep their year.
// The 29th of February always lands in a leap year.
func inferYear(month time.Month, day int, now time.Time) int {
	floor := now.AddDate(0, -6, 0)
	year := now.Year() - 1
	for time.Date(year, month, day, 0, 0, 0, 0, now.Location()).Before(floor) {
		year++
	}
	if month == time.February && day == 29 {
		for !isLeap(year) {
			year++
		}
	}
	return year
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

type dateRange struct {
	start time.Time
	end   time.Time
	// clock is set when the text carried an explicit time for the start.
	clock *clockTime
}

func unparseable(text, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return Errorf(KindUnparseableDate, "%q: %s", text, msg)
}

// parseDateRange turns venue date text like "Thurs 5th - Sat 7th March 2020"
// into a start and end date.
func parseDateRange(raw string, layouts []string, now time.Time, loc *time.Location) (dateRange, error) {
	text := cleanDateText(raw)
	if text == "" {
		return dateRange{}, unparseable(raw, "empty date")
	}
	text, clock := extractClock(text)

	infos := make([]layoutInfo, len(layouts))
	for i, l := range layouts {
		infos[i] = describeLayout(l)
	}

	parts := splitRange(text)
	first, ok := parsePartial(parts[0], infos, loc)
	if !ok {
		return dateRange{}, unparseable(raw, "no layout matches %q", parts[0])
	}

	if len(parts) == 1 {
		if first.month == 0 {
			return dateRange{}, unparseable(raw, "date has no month")
		}
		if first.year == 0 {
			first.year = inferYear(first.month, first.day, now)
		}
		if first.clock != nil {
			clock = first.clock
		}
		start, ok := buildDate(first.year, first.month, first.day, clock, loc)
		if !ok {
			return dateRange{}, unparseable(raw, "invalid calendar date")
		}
		return dateRange{start: start, end: start, clock: clock}, nil
	}

	last, ok := parsePartial(parts[1], infos, loc)
	if !ok {
		return dateRange{}, unparseable(raw, "no layout matches %q", parts[1])
	}
	if last.month == 0 {
		last.month = first.month
	}
	if first.month == 0 {
		first.month = last.month
	}
	if first.month == 0 {
		return dateRange{}, unparseable(raw, "range has no month")
	}

	startInherited, endInherited := false, false
	switch {
	case first.year == 0 && last.year == 0:
		first.year = inferYear(first.month, first.day, now)
		last.year = first.year
		endInherited = true
	case first.year == 0:
		first.year = last.year
		startInherited = true
	case last.year == 0:
		last.year = first.year
		endInherited = true
	}

	if first.clock != nil {
		clock = first.clock
	}
	start, ok := buildDate(first.year, first.month, first.day, clock, loc)
	if !ok {
		return dateRange{}, unparseable(raw, "invalid start date")
	}
	end, ok := buildDate(last.year, last.month, last.day, last.clock, loc)
	if !ok {
		return dateRange{}, unparseable(raw, "invalid end date")
	}

	if dayBefore(end, start) {
		switch {
		case endInherited:
			end, ok = buildDate(last.year+1, last.month, last.day, last.clock, loc)
		case startInherited:
			start, ok = buildDate(first.year-1, first.month, first.day, clock, loc)
		default:
			return dateRange{}, unparseable(raw, "range ends before it starts")
		}
		if !ok {
			return dateRange{}, unparseable(raw, "invalid calendar date")
		}
	}
	// a same day range where the start carries a time of day
	if end.Before(start) {
		end = start
	}

	return dateRange{start: start, end: end, clock: clock}, nil
}

func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
