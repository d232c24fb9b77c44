// Package venues holds one adapter per supported venue. An adapter knows the
// markup of its venue's listing page and turns it into raw listings, it never
// performs I/O itself.
package venues

import (
	"fmt"
	"net/url"
	"sort"

	"whatson/internal/ingest"
)

// Options are what an adapter needs from its venue definition.
type Options struct {
	VenueID string
	// RootURL resolves relative links and images.
	RootURL *url.URL
}

type Factory func(Options) ingest.Adapter

// Preset is the known location of a venue's listing, used when the
// configuration does not override it.
type Preset struct {
	Name          string
	URL           string
	RootURL       string
	Strategy      ingest.Strategy
	ReadySelector string
}

type Definition struct {
	ID     string
	Preset Preset
	New    Factory
}

var registry = map[string]Definition{}

func register(id string, preset Preset, factory Factory) {
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("adapter '%s' registered twice", id))
	}
	registry[id] = Definition{ID: id, Preset: preset, New: factory}
}

func init() {
	register("albany", Preset{
		Name:     "Albany Theatre",
		URL:      "https://albanytheatre.co.uk/whats-on/",
		RootURL:  "https://albanytheatre.co.uk/",
		Strategy: ingest.StrategyStatic,
	}, newAlbany)
	register("belgrade", Preset{
		Name:     "Belgrade Theatre",
		URL:      "http://www.belgrade.co.uk/whats-on/",
		RootURL:  "http://www.belgrade.co.uk/",
		Strategy: ingest.StrategyStatic,
	}, newBelgrade)
	register("symphonyhall", Preset{
		Name:     "Symphony Hall",
		URL:      "https://www.thsh.co.uk/whats-on/",
		RootURL:  "https://www.thsh.co.uk/",
		Strategy: ingest.StrategyStatic,
	}, newSymphonyHall)
	register("hippodrome", Preset{
		Name:     "Birmingham Hippodrome",
		URL:      "https://www.birminghamhippodrome.com/whats-on/",
		RootURL:  "https://www.birminghamhippodrome.com/",
		Strategy: ingest.StrategyStatic,
	}, newHippodrome)
	register("resortsworld", Preset{
		Name:          "Resorts World Arena",
		URL:           "https://www.resortsworldarena.co.uk/whats-on/",
		RootURL:       "https://www.resortsworldarena.co.uk/",
		Strategy:      ingest.StrategyRendered,
		ReadySelector: "#home-results .event-card",
	}, newResortsWorld)
	register("arenabirmingham", Preset{
		Name:          "Arena Birmingham",
		URL:           "https://www.arenabham.co.uk/whats-on/",
		RootURL:       "https://www.arenabham.co.uk/",
		Strategy:      ingest.StrategyRendered,
		ReadySelector: ".events-wrap .event-card",
	}, newArenaBirmingham)
	register("artrix", Preset{
		Name:     "Artrix",
		URL:      "https://www.artrix.co.uk/whats-on/",
		RootURL:  "https://www.artrix.co.uk/",
		Strategy: ingest.StrategyStatic,
	}, newArtrix)
	register("alexandra", Preset{
		Name:     "New Alexandra Theatre",
		URL:      "https://www.atgtickets.com/venues/the-alexandra-theatre-birmingham/",
		RootURL:  "https://www.atgtickets.com/",
		Strategy: ingest.StrategyStatic,
	}, newAlexandra)
	register("warwickartscentre", Preset{
		Name:     "Warwick Arts Centre",
		URL:      "https://www.warwickartscentre.co.uk/whats-on/list",
		RootURL:  "https://www.warwickartscentre.co.uk/",
		Strategy: ingest.StrategyStatic,
	}, newWarwickArtsCentre)
	register("globe", Preset{
		Name:     "Globe Playhouse",
		URL:      "https://globe.example.org/whats-on/",
		RootURL:  "https://globe.example.org/",
		Strategy: ingest.StrategyStatic,
	}, newGlobe)
}

// Lookup resolves an adapter reference from the configuration.
func Lookup(ref string) (Definition, error) {
	def, ok := registry[ref]
	if !ok {
		return Definition{}, fmt.Errorf("unknown adapter '%s' (known: %v)", ref, Names())
	}
	return def, nil
}

// Names lists every registered adapter id in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
