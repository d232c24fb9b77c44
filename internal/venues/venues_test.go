package venues

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"whatson/internal/components/chrono"
	"whatson/internal/components/telemetry"
	"whatson/internal/ingest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(content)
}

func adapterFor(t *testing.T, id string) ingest.Adapter {
	t.Helper()
	def, err := Lookup(id)
	require.NoError(t, err)
	root, err := url.Parse(def.Preset.RootURL)
	require.NoError(t, err)
	return def.New(Options{VenueID: id, RootURL: root})
}

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

type dates struct {
	title string
	start string
	end   string
}

// normalizeAll runs listings through the normalizer as the runner would and
// returns the surviving shows' dates plus the number rejected.
func normalizeAll(t *testing.T, adapter ingest.Adapter, listings []ingest.RawListing) ([]dates, int) {
	t.Helper()
	clock := chrono.NewFixedImpl(time.Date(2020, time.January, 10, 12, 0, 0, 0, london(t)))
	var hints []string
	if hinter, ok := adapter.(ingest.DateHinter); ok {
		hints = hinter.DateLayouts()
	}
	normalizer := ingest.NewNormalizer(clock, telemetry.SlogAPI{}, hints)

	var out []dates
	rejected := 0
	for _, raw := range listings {
		show, err := normalizer.Normalize(raw)
		if err != nil {
			rejected++
			continue
		}
		out = append(out, dates{
			title: show.Title,
			start: show.Start.Format("2006-01-02 15:04"),
			end:   show.End.Format("2006-01-02 15:04"),
		})
	}
	return out, rejected
}

func requireNoDiff(t *testing.T, expected, actual any) {
	t.Helper()
	diff := cmp.Diff(expected, actual, cmp.AllowUnexported(dates{}))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{
		"albany", "alexandra", "arenabirmingham", "artrix", "belgrade",
		"globe", "hippodrome", "resortsworld", "symphonyhall", "warwickartscentre",
	}, Names())

	for _, name := range Names() {
		def, err := Lookup(name)
		require.NoError(t, err)
		require.True(t, def.Preset.Strategy.Valid(), name)
		require.NotEmpty(t, def.Preset.URL, name)
		require.NotNil(t, def.New(Options{VenueID: name}), name)
	}

	_, err := Lookup("odeon")
	require.ErrorContains(t, err, "unknown adapter 'odeon'")
}

func TestMissingContainerIsMalformed(t *testing.T) {
	for _, name := range Names() {
		_, err := adapterFor(t, name).Extract("<html><body><p>We are closed for refurbishment</p></body></html>")
		require.ErrorIs(t, err, ingest.KindMalformedDocument, name)
	}
}

func TestAlbany(t *testing.T) {
	adapter := adapterFor(t, "albany")
	listings, err := adapter.Extract(fixture(t, "albany.html"))
	require.NoError(t, err)
	require.Len(t, listings, 4)

	requireNoDiff(t, ingest.RawListing{
		VenueID:  "albany",
		Title:    "Aladdin",
		DateText: "1 January 2020",
		URL:      "https://albanytheatre.co.uk/shows/aladdin/",
		ImageURL: "https://albanytheatre.co.uk/wp-content/uploads/aladdin.jpg",
	}, listings[0])

	// a block without a date is kept for the normalizer to reject
	require.Equal(t, "Comedy Night", listings[2].Title)
	require.Equal(t, "", listings[2].DateText)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 1, rejected)
	requireNoDiff(t, []dates{
		{"Aladdin", "2020-01-01 00:00", "2020-01-01 00:00"},
		{"The Snowman", "2019-11-27 00:00", "2020-01-11 00:00"},
		{"The Mersey Beatles 2020", "2020-03-05 00:00", "2020-03-06 00:00"},
	}, shows)
}

func TestBelgrade(t *testing.T) {
	adapter := adapterFor(t, "belgrade")
	listings, err := adapter.Extract(fixture(t, "belgrade.html"))
	require.NoError(t, err)
	require.Len(t, listings, 3)

	require.Equal(t, "27th November 2019 - 11th January", listings[0].DateText)
	require.Equal(t, "http://www.belgrade.co.uk/whats-on/puss-in-boots/", listings[0].URL)
	require.Equal(t, "http://www.belgrade.co.uk/media/puss.jpg", listings[0].ImageURL)
	require.Equal(t, "Abigail's Party", listings[1].Title)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{
		{"Puss In Boots", "2019-11-27 00:00", "2020-01-11 00:00"},
		{"Abigail's Party", "2020-02-29 00:00", "2020-02-29 00:00"},
		{"Beauty and the Beast", "2020-11-25 00:00", "2021-01-09 00:00"},
	}, shows)
}

func TestWithPanelYear(t *testing.T) {
	require.Equal(t, "5 December 2019", withPanelYear("5 December", "2019"))
	require.Equal(t, "5 December 2019 - 2 January", withPanelYear("5 December – 2 January", "2019"))
	require.Equal(t, "5 December 2020", withPanelYear("5 December 2020", "2019"))
	require.Equal(t, "5 December", withPanelYear("5 December", ""))
}

func TestSymphonyHall(t *testing.T) {
	adapter := adapterFor(t, "symphonyhall")
	first := fixture(t, "symphonyhall_1.html")

	listings, err := adapter.Extract(first)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	requireNoDiff(t, ingest.RawListing{
		VenueID:  "symphonyhall",
		Title:    "We're Going On A Bear Hunt",
		DateText: "2020-01-05 to 2020-01-12",
		URL:      "https://www.thsh.co.uk/event/bear-hunt",
		ImageURL: "https://www.thsh.co.uk/media/bear-hunt-400.jpg",
	}, listings[0])

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{
		{"We're Going On A Bear Hunt", "2020-01-05 00:00", "2020-01-12 00:00"},
		{"Cbso Plays Mahler", "2020-01-08 19:30", "2020-01-08 19:30"},
	}, shows)

	paginator, ok := adapter.(ingest.Paginator)
	require.True(t, ok)
	next, ok := paginator.NextPage(first, "https://www.thsh.co.uk/whats-on/", 1)
	require.True(t, ok)
	require.Equal(t, "https://www.thsh.co.uk/whats-on/?page=2", next)

	last := fixture(t, "symphonyhall_2.html")
	_, ok = paginator.NextPage(last, next, 2)
	require.False(t, ok)

	listings, err = adapter.Extract(last)
	require.NoError(t, err)
	require.Equal(t, "Echo Eternal Youth Arts Festival 2020: Horizons", listings[0].Title)
}

func TestCapitalizeWords(t *testing.T) {
	require.Equal(t, "We're Going On A Bear Hunt", capitalizeWords("WE'RE  GOING ON A BEAR HUNT"))
	require.Equal(t, "", capitalizeWords("  "))
}

func TestHippodrome(t *testing.T) {
	adapter := adapterFor(t, "hippodrome")
	page := fixture(t, "hippodrome.html")

	listings, err := adapter.Extract(page)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	require.Equal(t, "https://www.birminghamhippodrome.com/media/snow-white.jpg", listings[0].ImageURL)
	require.Equal(t, "", listings[1].ImageURL)
	require.Equal(t, "https://www.birminghamhippodrome.com/calendar/dx-mariposa/", listings[1].URL)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{
		{"Snow White & the Seven Dwarfs", "2020-01-05 00:00", "2020-02-02 00:00"},
		{"DX - Mariposa", "2020-03-27 00:00", "2020-03-28 00:00"},
	}, shows)

	next, ok := adapter.(ingest.Paginator).NextPage(page, "https://www.birminghamhippodrome.com/whats-on/", 1)
	require.True(t, ok)
	require.Equal(t, "https://www.birminghamhippodrome.com/whats-on/page/2/", next)
}

func TestResortsWorld(t *testing.T) {
	adapter := adapterFor(t, "resortsworld")
	listings, err := adapter.Extract(fixture(t, "resortsworld.html"))
	require.NoError(t, err)
	require.Len(t, listings, 3)

	require.Equal(t, "https://www.resortsworldarena.co.uk/events/disney-on-ice", listings[0].URL)
	require.Equal(t, "https://cdn.example.org/disney.jpg", listings[0].ImageURL)
	// the json spells the title differently
	require.Equal(t, "https://cdn.example.org/mcintyre.jpg", listings[1].ImageURL)
	require.Equal(t, "", listings[2].ImageURL)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 1, rejected)
	requireNoDiff(t, []dates{
		{"Disney On Ice", "2020-03-27 00:00", "2020-03-29 00:00"},
		{"Michael McIntyre - Showman", "2020-04-03 00:00", "2020-04-03 00:00"},
	}, shows)

	_, err = adapter.Extract(`<div id="home-results"><p>Loading...</p></div>`)
	require.ErrorIs(t, err, ingest.KindMalformedDocument)
}

func TestArenaBirmingham(t *testing.T) {
	adapter := adapterFor(t, "arenabirmingham")
	listings, err := adapter.Extract(fixture(t, "arenabirmingham.html"))
	require.NoError(t, err)
	requireNoDiff(t, []ingest.RawListing{{
		VenueID:  "arenabirmingham",
		Title:    "Strictly Come Dancing The Live Tour",
		DateText: "17 January - 19 January 2020",
		URL:      "https://www.arenabham.co.uk/events/strictly",
		ImageURL: "https://cdn.example.org/strictly.jpg",
	}}, listings)
}

func TestImageIndex(t *testing.T) {
	index := newImageIndex(`{"events":[
		{"eventName":"Disney On Ice","thumbnailUrl":"disney.jpg"},
		{"eventName":"Gladiators Live","thumbnailUrl":"gladiators.jpg"}
	]}`)
	require.Equal(t, "disney.jpg", index.lookup("DISNEY ON ICE"))
	require.Equal(t, "gladiators.jpg", index.lookup("Gladiators: Live"))
	require.Equal(t, "", index.lookup("Peppa Pig"))
	require.Equal(t, "", index.lookup(""))

	require.Equal(t, "", newImageIndex("{not json").lookup("Disney On Ice"))
}

func TestArtrix(t *testing.T) {
	adapter := adapterFor(t, "artrix")
	page := fixture(t, "artrix_1.html")

	listings, err := adapter.Extract(page)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	require.Equal(t, "https://www.artrix.co.uk/whats-on/the-gruffalo", listings[0].URL)
	require.Equal(t, "https://www.artrix.co.uk/images/gruffalo.jpg", listings[0].ImageURL)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{
		{"The Gruffalo", "2020-03-05 00:00", "2020-03-07 00:00"},
		{"Folk Club", "2020-01-14 00:00", "2020-01-14 00:00"},
	}, shows)

	paginator := adapter.(ingest.Paginator)
	next, ok := paginator.NextPage(page, "https://www.artrix.co.uk/whats-on/", 1)
	require.True(t, ok)
	require.Equal(t, "https://www.artrix.co.uk/whats-on/?page=2", next)

	next, ok = paginator.NextPage(page, next, 2)
	require.True(t, ok)
	require.Equal(t, "https://www.artrix.co.uk/whats-on/?page=3", next)

	empty := fixture(t, "artrix_empty.html")
	listings, err = adapter.Extract(empty)
	require.NoError(t, err)
	require.Empty(t, listings)
	_, ok = paginator.NextPage(empty, next, 3)
	require.False(t, ok)
}

func TestAlexandra(t *testing.T) {
	adapter := adapterFor(t, "alexandra")
	listings, err := adapter.Extract(fixture(t, "alexandra.html"))
	require.NoError(t, err)
	requireNoDiff(t, []ingest.RawListing{
		{
			VenueID:  "alexandra",
			Title:    "SIX",
			DateText: "Tue 4 Feb - Sat 8 Feb 2020",
			URL:      "https://www.atgtickets.com/shows/six/the-alexandra-theatre-birmingham/",
			ImageURL: "https://cdn.atgtickets.com/six.jpg",
		},
		{
			VenueID:  "alexandra",
			Title:    "The Mousetrap",
			DateText: "Mon 16 Mar 2020",
			URL:      "https://www.atgtickets.com/shows/the-mousetrap/",
			ImageURL: "https://cdn.atgtickets.com/mousetrap.jpg",
		},
	}, listings)
}

func TestWarwickArtsCentre(t *testing.T) {
	adapter := adapterFor(t, "warwickartscentre")
	page := fixture(t, "warwickartscentre.html")

	listings, err := adapter.Extract(page)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	require.Equal(t, "Thu 5 Mar – Thu 26 Mar 2020", listings[0].DateText)
	require.Equal(t, "7.30pm", listings[0].TimeText)
	require.Equal(t, "https://www.warwickartscentre.co.uk/whats-on/2020/swan-lake/", listings[0].URL)
	require.Equal(t, "Sat 18 Jan 2020", listings[1].DateText)
	require.Equal(t, "2pm", listings[1].TimeText)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{
		{"Swan Lake", "2020-03-05 19:30", "2020-03-26 00:00"},
		{"Jam Session", "2020-01-18 14:00", "2020-01-18 14:00"},
	}, shows)

	paginator := adapter.(ingest.Paginator)
	next, ok := paginator.NextPage(page, "https://www.warwickartscentre.co.uk/whats-on/list", 1)
	require.True(t, ok)
	require.Equal(t, "https://www.warwickartscentre.co.uk/whats-on/list?start=10", next)

	next, ok = paginator.NextPage(page, next, 2)
	require.True(t, ok)
	require.Equal(t, "https://www.warwickartscentre.co.uk/whats-on/list?start=20", next)
}

func TestSplitWarwickDate(t *testing.T) {
	cases := []struct {
		text  string
		date  string
		clock string
	}{
		{"Fri 7 Feb 2020", "Fri 7 Feb 2020", ""},
		{"Sundays from Sun 2 Feb - Sun 23 Feb 2020 11am", "Sun 2 Feb - Sun 23 Feb 2020", "11am"},
		{"Wed 12 Feb 2020 (relaxed performance) -", "Wed 12 Feb 2020", ""},
	}
	for _, c := range cases {
		date, clock := splitWarwickDate(c.text)
		require.Equal(t, c.date, date, c.text)
		require.Equal(t, c.clock, clock, c.text)
	}
}

func TestGlobe(t *testing.T) {
	adapter := adapterFor(t, "globe")
	listings, err := adapter.Extract(fixture(t, "globe.html"))
	require.NoError(t, err)
	requireNoDiff(t, []ingest.RawListing{
		{
			VenueID:   "globe",
			Title:     "Hamlet",
			DateText:  "Sat 8th Feb 2020",
			TimeText:  "7:30pm",
			URL:       "https://globe.example.org/shows/hamlet/",
			ImageURL:  "https://globe.example.org/img/hamlet.jpg",
			PriceText: "From £12.50",
			NativeID:  "hamlet-2020",
		},
		{
			VenueID:  "globe",
			Title:    "The Tempest",
			DateText: "TBD",
			URL:      "https://globe.example.org/shows/tempest/",
		},
	}, listings)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 1, rejected)
	requireNoDiff(t, []dates{{"Hamlet", "2020-02-08 19:30", "2020-02-08 19:30"}}, shows)
}

func TestGlobeNumericDates(t *testing.T) {
	adapter := adapterFor(t, "globe")
	page := fixture(t, "globe_numeric.html")

	listings, err := adapter.Extract(page)
	require.NoError(t, err)

	shows, rejected := normalizeAll(t, adapter, listings)
	require.Equal(t, 0, rejected)
	requireNoDiff(t, []dates{{"King Lear", "2020-03-05 00:00", "2020-03-05 00:00"}}, shows)

	next, ok := adapter.(ingest.Paginator).NextPage(page, "https://globe.example.org/whats-on/", 1)
	require.True(t, ok)
	require.Equal(t, "https://globe.example.org/whats-on/?page=2", next)
}
