package ingest

import (
	"testing"
	"time"

	"whatson/internal/components/chrono"
	"whatson/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func fixedClock(t *testing.T, year int, month time.Month, day int) chrono.FixedImpl {
	return chrono.NewFixedImpl(time.Date(year, month, day, 12, 0, 0, 0, london(t)))
}

func TestParseDateRange(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ingest")
	defer cleanup()

	loc := london(t)
	now := time.Date(2020, time.January, 10, 12, 0, 0, 0, loc)
	date := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, loc)
	}

	cases := []struct {
		text  string
		start time.Time
		end   time.Time
	}{
		{"Thurs 5th March 2020", date(2020, 3, 5, 0, 0), date(2020, 3, 5, 0, 0)},
		{"Fri 7th - Sun 9th Feb 2020", date(2020, 2, 7, 0, 0), date(2020, 2, 9, 0, 0)},
		{"27th Nov 2019 - 11th Jan", date(2019, 11, 27, 0, 0), date(2020, 1, 11, 0, 0)},
		{"Fri 27 Dec – Sun 5 Jan 2020", date(2019, 12, 27, 0, 0), date(2020, 1, 5, 0, 0)},
		{"Tues 3rd Dec & Wed 4th Dec 2019", date(2019, 12, 3, 0, 0), date(2019, 12, 4, 0, 0)},
		{"Sat 8 Feb 2020, 7:30pm", date(2020, 2, 8, 19, 30), date(2020, 2, 8, 19, 30)},
		{"2020-01-05T19:30:00Z", date(2020, 1, 5, 19, 30), date(2020, 1, 5, 19, 30)},
		{"2020-06-05T19:30:00+01:00 to 2020-06-12", date(2020, 6, 5, 19, 30), date(2020, 6, 12, 0, 0)},
		{"5 Jan", date(2020, 1, 5, 0, 0), date(2020, 1, 5, 0, 0)},
		{"Sept 12", date(2019, 9, 12, 0, 0), date(2019, 9, 12, 0, 0)},
		{"Weds 12th Sept 2020", date(2020, 9, 12, 0, 0), date(2020, 9, 12, 0, 0)},
		{"from 14 March 2020", date(2020, 3, 14, 0, 0), date(2020, 3, 14, 0, 0)},
		{"27 Nov-11 Jan", date(2019, 11, 27, 0, 0), date(2020, 1, 11, 0, 0)},
	}

	for _, c := range cases {
		got, err := parseDateRange(c.text, DefaultDateLayouts, now, loc)
		require.NoError(t, err, c.text)
		require.True(t, c.start.Equal(got.start), "%s: start %v, expected %v", c.text, got.start, c.start)
		require.True(t, c.end.Equal(got.end), "%s: end %v, expected %v", c.text, got.end, c.end)
	}
}

func TestParseDateRangeLookBack(t *testing.T) {
	loc := london(t)
	now := time.Date(2020, time.December, 20, 12, 0, 0, 0, loc)

	got, err := parseDateRange("1 Jun", DefaultDateLayouts, now, loc)
	require.NoError(t, err)
	require.Equal(t, 2021, got.start.Year())

	got, err = parseDateRange("1 Aug", DefaultDateLayouts, now, loc)
	require.NoError(t, err)
	require.Equal(t, 2020, got.start.Year())
}

func TestParseDateRangeLeapDay(t *testing.T) {
	loc := london(t)

	now := time.Date(2021, time.January, 10, 12, 0, 0, 0, loc)
	got, err := parseDateRange("Sat 29 Feb", DefaultDateLayouts, now, loc)
	require.NoError(t, err)
	require.True(t, time.Date(2024, 2, 29, 0, 0, 0, 0, loc).Equal(got.start), got.start)

	now = time.Date(2020, time.January, 10, 12, 0, 0, 0, loc)
	got, err = parseDateRange("29 Feb", DefaultDateLayouts, now, loc)
	require.NoError(t, err)
	require.True(t, time.Date(2020, 2, 29, 0, 0, 0, 0, loc).Equal(got.start), got.start)

	require.Equal(t, 2024, inferYear(time.February, 29, time.Date(2022, time.June, 1, 0, 0, 0, 0, loc)))
	require.Equal(t, 2022, inferYear(time.March, 1, time.Date(2022, time.June, 1, 0, 0, 0, 0, loc)))
}

func TestParseDateRangeRejects(t *testing.T) {
	loc := london(t)
	now := time.Date(2020, time.January, 10, 12, 0, 0, 0, loc)

	for _, text := range []string{
		"",
		"TBD",
		"Coming soon",
		"29 Feb 2021",
		"05/01/2020",
		"5 Jan 2020 - 3 Jan 2020",
		"Fri 7",
	} {
		_, err := parseDateRange(text, DefaultDateLayouts, now, loc)
		require.ErrorIs(t, err, KindUnparseableDate, text)
	}
}

func TestParseDateRangeWithHint(t *testing.T) {
	loc := london(t)
	now := time.Date(2020, time.January, 10, 12, 0, 0, 0, loc)

	layouts := append([]string{"02/01/2006"}, DefaultDateLayouts...)
	got, err := parseDateRange("05/01/2020", layouts, now, loc)
	require.NoError(t, err)
	require.True(t, time.Date(2020, 1, 5, 0, 0, 0, 0, loc).Equal(got.start))
}

func TestParseClock(t *testing.T) {
	cases := map[string]clockTime{
		"7:30pm":  {19, 30},
		"7.30 PM": {19, 30},
		"7pm":     {19, 0},
		"12pm":    {12, 0},
		"12am":    {0, 0},
		"19:30":   {19, 30},
		"11:05am": {11, 5},
	}
	for text, expected := range cases {
		got, ok := parseClock(text)
		require.True(t, ok, text)
		require.Equal(t, expected, got, text)
	}

	for _, text := range []string{"", "evening", "25:00", "13pm"} {
		_, ok := parseClock(text)
		require.False(t, ok, text)
	}
}

func TestNormalize(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:ingest")
	defer cleanup()

	loc := london(t)
	n := NewNormalizer(fixedClock(t, 2020, time.January, 10), telemetry.SlogAPI{})

	show, err := n.Normalize(RawListing{
		VenueID:   "globe",
		Title:     "  Hamlet \n",
		DateText:  "Sat 8 Feb 2020",
		TimeText:  "7:30pm",
		URL:       "https://Globe.example.org/shows/hamlet/?utm_source=x#book",
		ImageURL:  "https://globe.example.org/img/hamlet.jpg",
		PriceText: "From £12.50",
	})
	require.NoError(t, err)

	price := int64(1250)
	expected := Show{
		VenueID:    "globe",
		SourceID:   "url:https://globe.example.org/shows/hamlet",
		Title:      "Hamlet",
		Start:      time.Date(2020, 2, 8, 19, 30, 0, 0, loc),
		End:        time.Date(2020, 2, 8, 19, 30, 0, 0, loc),
		Price:      &price,
		BookingURL: "https://Globe.example.org/shows/hamlet/?utm_source=x#book",
		ImageURL:   "https://globe.example.org/img/hamlet.jpg",
	}
	diff := cmp.Diff(expected, show, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer(fixedClock(t, 2020, time.January, 10), telemetry.SlogAPI{})
	raw := RawListing{VenueID: "albany", Title: "Macbeth", DateText: "12 Feb 2020"}

	a, err := n.Normalize(raw)
	require.NoError(t, err)
	b, err := n.Normalize(raw)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.Regexp(t, `^th:[0-9a-f]{16}$`, a.SourceID)
}

func TestNormalizeMissingFields(t *testing.T) {
	n := NewNormalizer(fixedClock(t, 2020, time.January, 10), telemetry.SlogAPI{})

	_, err := n.Normalize(RawListing{VenueID: "globe", Title: " \t ", DateText: "12 Feb 2020"})
	require.ErrorIs(t, err, KindMissingTitle)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ClassNormalization, kind.Class())

	_, err = n.Normalize(RawListing{VenueID: "globe", Title: "Othello", DateText: "TBD"})
	require.ErrorIs(t, err, KindUnparseableDate)
}

func TestNormalizeBadTimeIsOnlyAWarning(t *testing.T) {
	recorder := telemetry.NewRecorder()
	n := NewNormalizer(fixedClock(t, 2020, time.January, 10), recorder)

	show, err := n.Normalize(RawListing{
		VenueID:  "globe",
		Title:    "Othello",
		DateText: "12 Feb 2020",
		TimeText: "matinee",
	})
	require.NoError(t, err)
	require.Equal(t, 0, show.Start.Hour())
	require.Len(t, recorder.Find(telemetry.LevelWarning, report_normalizer_time), 1)
}

func TestNormalizeUsesNativeID(t *testing.T) {
	n := NewNormalizer(fixedClock(t, 2020, time.January, 10), telemetry.SlogAPI{})
	show, err := n.Normalize(RawListing{
		VenueID:  "globe",
		Title:    "Othello",
		DateText: "12 Feb 2020",
		URL:      "https://globe.example.org/othello",
		NativeID: "evt-42",
	})
	require.NoError(t, err)
	require.Equal(t, "id:evt-42", show.SourceID)
}

func TestSourceIDIgnoresTitleCase(t *testing.T) {
	start := time.Date(2020, 2, 12, 0, 0, 0, 0, time.UTC)
	require.Equal(t, SourceID("", "", "Macbeth", start), SourceID("", "", "  MACBETH ", start))
	require.NotEqual(t, SourceID("", "", "Macbeth", start), SourceID("", "", "Macbeth", start.AddDate(0, 0, 1)))
}

func TestCanonicalURL(t *testing.T) {
	require.Equal(t, "https://example.org/a/b", CanonicalURL("https://EXAMPLE.org/a/b/?x=1#y"))
	require.Equal(t, "https://example.org/", CanonicalURL("https://example.org/"))
	require.Equal(t, "", CanonicalURL("/relative/path"))
}

func TestParsePrice(t *testing.T) {
	value := func(v int64) *int64 { return &v }
	cases := []struct {
		text     string
		expected *int64
	}{
		{"£12.50", value(1250)},
		{"From £10", value(1000)},
		{"£10 - £20", value(1000)},
		{"£22.5 / £18 concessions", value(1800)},
		{"£1,250.00", value(125000)},
		{"Free", value(0)},
		{"FREE entry", value(0)},
		{"15", value(1500)},
		{"Tickets TBC", nil},
		{"", nil},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, ParsePrice(c.text), c.text)
	}
}
