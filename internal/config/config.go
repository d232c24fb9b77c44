// Package config loads the ingest configuration and resolves it into the
// venues and tunables a run needs.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"whatson/internal/components/chrono"
	"whatson/internal/components/configutil"
	"whatson/internal/components/telemetry"
	"whatson/internal/fetch"
	"whatson/internal/ingest"
	"whatson/internal/store"
	"whatson/internal/venues"
)

type Venue struct {
	ID string `json:"id" yaml:"id"`
	// Adapter defaults to ID.
	Adapter  string `json:"adapter" yaml:"adapter"`
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	RootURL  string `json:"root_url" yaml:"root_url"`
	Strategy string `json:"strategy" yaml:"strategy"`
	// Active defaults to true.
	Active        *bool    `json:"active" yaml:"active"`
	ReadySelector string   `json:"ready_selector" yaml:"ready_selector"`
	SettleDelay   string   `json:"settle_delay" yaml:"settle_delay"`
	DateLayouts   []string `json:"date_layouts" yaml:"date_layouts"`
	MaxPages      int      `json:"max_pages" yaml:"max_pages"`
}

type Run struct {
	Workers        int    `json:"workers" yaml:"workers"`
	VenueTimeout   string `json:"venue_timeout" yaml:"venue_timeout"`
	RunDeadline    string `json:"run_deadline" yaml:"run_deadline"`
	AcquireTimeout string `json:"acquire_timeout" yaml:"acquire_timeout"`
	MaxPages       int    `json:"max_pages" yaml:"max_pages"`
	Timezone       string `json:"timezone" yaml:"timezone"`
}

type Fetch struct {
	Timeout           string  `json:"timeout" yaml:"timeout"`
	Retries           int     `json:"retries" yaml:"retries"`
	RetryWait         string  `json:"retry_wait" yaml:"retry_wait"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	UserAgent         string  `json:"user_agent" yaml:"user_agent"`
}

type Browser struct {
	Timeout        string `json:"timeout" yaml:"timeout"`
	ExecutablePath string `json:"executable_path" yaml:"executable_path"`
	// Install downloads the driver and chromium before the first rendered
	// fetch.
	Install bool `json:"install" yaml:"install"`
}

type Email struct {
	Server   string   `json:"server" yaml:"server"`
	Port     int      `json:"port" yaml:"port"`
	From     string   `json:"from" yaml:"from"`
	Password string   `json:"password" yaml:"password"`
	To       []string `json:"to" yaml:"to"`
}

type Report struct {
	PushGateway string `json:"push_gateway" yaml:"push_gateway"`
	Job         string `json:"job" yaml:"job"`
	Email       Email  `json:"email" yaml:"email"`
}

type Config struct {
	Venues    []Venue          `json:"venues" yaml:"venues"`
	Run       Run              `json:"run" yaml:"run"`
	Fetch     Fetch            `json:"fetch" yaml:"fetch"`
	Browser   Browser          `json:"browser" yaml:"browser"`
	Store     store.Options    `json:"store" yaml:"store"`
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`
	Report    Report           `json:"report" yaml:"report"`
}

// Load reads path and its ".local." override.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolved is a validated configuration.
type Resolved struct {
	Venues   []ingest.Venue
	Options  ingest.Options
	Clock    chrono.StandardImpl
	Static   fetch.StaticOptions
	Rendered fetch.RenderedOptions
}

// NeedsBrowser reports whether any active venue needs a browser.
func (r Resolved) NeedsBrowser() bool {
	for _, v := range r.Venues {
		if v.Active && v.Strategy == ingest.StrategyRendered {
			return true
		}
	}
	return false
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", field, value)
	}
	return d, nil
}

// Resolve validates every section and reports all problems at once.
func (c Config) Resolve() (Resolved, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error

	out := Resolved{Options: ingest.DefaultOptions()}

	out.Clock, err = chrono.NewStandardImpl(c.Run.Timezone)
	collect(err)

	if c.Run.Workers < 0 {
		collect(fmt.Errorf("run.workers: must not be negative"))
	}
	if c.Run.Workers > 0 {
		out.Options.Workers = c.Run.Workers
	}
	if c.Run.MaxPages > 0 {
		out.Options.MaxPages = c.Run.MaxPages
	}
	out.Options.VenueTimeout, err = parseDuration("run.venue_timeout", c.Run.VenueTimeout, out.Options.VenueTimeout)
	collect(err)
	out.Options.RunDeadline, err = parseDuration("run.run_deadline", c.Run.RunDeadline, out.Options.RunDeadline)
	collect(err)
	out.Options.AcquireTimeout, err = parseDuration("run.acquire_timeout", c.Run.AcquireTimeout, out.Options.AcquireTimeout)
	collect(err)

	out.Static = fetch.StaticOptions{
		Retries:           c.Fetch.Retries,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		UserAgent:         c.Fetch.UserAgent,
	}
	if c.Fetch.Retries < 0 {
		collect(fmt.Errorf("fetch.retries: must not be negative"))
	}
	out.Static.Timeout, err = parseDuration("fetch.timeout", c.Fetch.Timeout, 30*time.Second)
	collect(err)
	out.Static.RetryWait, err = parseDuration("fetch.retry_wait", c.Fetch.RetryWait, time.Second)
	collect(err)

	out.Rendered = fetch.RenderedOptions{
		ExecutablePath: c.Browser.ExecutablePath,
		UserAgent:      c.Fetch.UserAgent,
	}
	out.Rendered.Timeout, err = parseDuration("browser.timeout", c.Browser.Timeout, 45*time.Second)
	collect(err)

	collect(c.Store.Validate())

	if len(c.Venues) == 0 {
		collect(fmt.Errorf("venues: at least one venue is required"))
	}
	seen := map[string]bool{}
	for i, v := range c.Venues {
		venue, err := ResolveVenue(v)
		if err != nil {
			collect(fmt.Errorf("venues[%d]: %w", i, err))
			continue
		}
		if seen[venue.ID] {
			collect(fmt.Errorf("venues[%d]: duplicate id '%s'", i, venue.ID))
			continue
		}
		seen[venue.ID] = true
		out.Venues = append(out.Venues, venue)
	}

	if len(errs) > 0 {
		return Resolved{}, errors.Join(errs...)
	}
	return out, nil
}

// ResolveVenue completes v from its adapter's preset and builds the adapter.
func ResolveVenue(v Venue) (ingest.Venue, error) {
	if v.ID == "" {
		return ingest.Venue{}, fmt.Errorf("id is required")
	}
	ref := v.Adapter
	if ref == "" {
		ref = v.ID
	}
	def, err := venues.Lookup(ref)
	if err != nil {
		return ingest.Venue{}, fmt.Errorf("%s: %w", v.ID, err)
	}

	venue := ingest.Venue{
		ID:            v.ID,
		Name:          firstNonEmpty(v.Name, def.Preset.Name, v.ID),
		URL:           firstNonEmpty(v.URL, def.Preset.URL),
		RootURL:       firstNonEmpty(v.RootURL, def.Preset.RootURL),
		Strategy:      ingest.Strategy(firstNonEmpty(v.Strategy, string(def.Preset.Strategy))),
		ReadySelector: firstNonEmpty(v.ReadySelector, def.Preset.ReadySelector),
		DateLayouts:   v.DateLayouts,
		MaxPages:      v.MaxPages,
		Active:        v.Active == nil || *v.Active,
	}
	if !venue.Strategy.Valid() {
		return ingest.Venue{}, fmt.Errorf("%s: unknown strategy '%s'", v.ID, venue.Strategy)
	}
	venue.SettleDelay, err = parseDuration("settle_delay", v.SettleDelay, 0)
	if err != nil {
		return ingest.Venue{}, fmt.Errorf("%s: %w", v.ID, err)
	}

	link, err := url.Parse(venue.URL)
	if err != nil || link.Host == "" {
		return ingest.Venue{}, fmt.Errorf("%s: invalid url '%s'", v.ID, venue.URL)
	}
	root := link
	if venue.RootURL != "" {
		root, err = url.Parse(venue.RootURL)
		if err != nil || root.Host == "" {
			return ingest.Venue{}, fmt.Errorf("%s: invalid root_url '%s'", v.ID, venue.RootURL)
		}
	}
	venue.RootURL = root.String()
	venue.Adapter = def.New(venues.Options{VenueID: v.ID, RootURL: root})
	return venue, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
