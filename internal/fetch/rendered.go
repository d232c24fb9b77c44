package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"whatson/internal/components/assert"
	"whatson/internal/components/telemetry"
	"whatson/internal/ingest"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_rendered_fetch = "rendered.fetch"
	report_rendered_close = "rendered.close"
)

type RenderedOptions struct {
	// Timeout bounds navigation and waiting for the ready selector.
	Timeout        time.Duration
	ExecutablePath string
	UserAgent      string
}

// session is a single browser page, it owns every process it started.
type session interface {
	Navigate(url string, timeout time.Duration) error
	WaitForSelector(selector string, timeout time.Duration) error
	Content() (string, error)
	Close() error
}

type launcher func(ctx context.Context) (session, error)

// RenderedFetcher loads pages in headless chromium so that client side
// rendered listings are present in the returned html. Every fetch runs in
// its own browser which is torn down before Fetch returns.
type RenderedFetcher struct {
	opts   RenderedOptions
	launch launcher
	tel    telemetry.API
}

func NewRenderedFetcher(opts RenderedOptions, tel telemetry.API) *RenderedFetcher {
	assert.NotNil(tel)
	assert.Positive("render timeout", opts.Timeout)
	return &RenderedFetcher{
		opts:   opts,
		launch: playwrightLauncher(opts),
		tel:    telemetry.NewScopedAPI("fetch", tel),
	}
}

// InstallBrowser downloads the playwright driver and chromium.
func InstallBrowser() error {
	return playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	})
}

// onceSession makes Close safe to call from both the cancellation watcher
// and the normal return path.
type onceSession struct {
	session
	once sync.Once
	err  error
}

func (s *onceSession) Close() error {
	s.once.Do(func() {
		s.err = s.session.Close()
	})
	return s.err
}

func (f *RenderedFetcher) timeout(ctx context.Context) time.Duration {
	timeout := f.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

func (f *RenderedFetcher) Fetch(ctx context.Context, req ingest.FetchRequest) (html string, err error) {
	ctx, span := tracer.Start(ctx, "RenderedFetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", req.URL))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
		}
	}()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("render %s: %w", req.URL, err)
	}

	inner, err := f.launch(ctx)
	if err != nil {
		return "", ingest.NewError(ingest.KindBrowserCrash, "launch browser", err)
	}
	sess := &onceSession{session: inner}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			f.tel.ReportWarning(report_rendered_close, req.URL, closeErr)
		}
	}()

	// the browser is killed as soon as the context ends so a hung page
	// cannot outlive the venue's time budget
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-done:
		}
	}()

	err = sess.Navigate(req.URL, f.timeout(ctx))
	if err != nil {
		return "", f.classify(ctx, "navigate "+req.URL, err)
	}

	if req.ReadySelector != "" {
		err = sess.WaitForSelector(req.ReadySelector, f.timeout(ctx))
		if err != nil {
			return "", f.classify(ctx, "wait for "+req.ReadySelector, err)
		}
	}

	if req.SettleDelay > 0 {
		timer := time.NewTimer(req.SettleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", f.classify(ctx, "settle", ctx.Err())
		}
	}

	html, err = sess.Content()
	if err != nil {
		return "", f.classify(ctx, "read content", err)
	}
	return html, nil
}

func (f *RenderedFetcher) classify(ctx context.Context, msg string, err error) error {
	f.tel.ReportWarning(report_rendered_fetch, msg, err)
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w", msg, ctx.Err())
	case ctx.Err() != nil, errors.Is(err, playwright.ErrTimeout):
		return ingest.NewError(ingest.KindRenderTimeout, msg, err)
	default:
		return ingest.NewError(ingest.KindBrowserCrash, msg, err)
	}
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func playwrightLauncher(opts RenderedOptions) launcher {
	return func(ctx context.Context) (session, error) {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("start playwright: %w", err)
		}

		launchOpts := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
			Args:     []string{"--no-sandbox", "--disable-gpu", "--disable-dev-shm-usage"},
		}
		if opts.ExecutablePath != "" {
			launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
		}
		browser, err := pw.Chromium.Launch(launchOpts)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("launch chromium: %w", err), pw.Stop())
		}

		pageOpts := playwright.BrowserNewPageOptions{}
		if opts.UserAgent != "" {
			pageOpts.UserAgent = playwright.String(opts.UserAgent)
		}
		page, err := browser.NewPage(pageOpts)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("open page: %w", err), browser.Close(), pw.Stop())
		}

		return &playwrightSession{pw: pw, browser: browser, page: page}, nil
	}
}

func milliseconds(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (s *playwrightSession) Navigate(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   milliseconds(timeout),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (s *playwrightSession) WaitForSelector(selector string, timeout time.Duration) error {
	return s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: milliseconds(timeout),
	})
}

func (s *playwrightSession) Content() (string, error) {
	return s.page.Content()
}

func (s *playwrightSession) Close() error {
	return errors.Join(
		s.page.Close(),
		s.browser.Close(),
		s.pw.Stop(),
	)
}
