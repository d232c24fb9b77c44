package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"syscall"
	"time"

	"whatson/internal/components/assert"
	"whatson/internal/components/telemetry"
	"whatson/internal/ingest"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	report_static_fetch = "static.fetch"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type StaticOptions struct {
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	// RequestsPerSecond is the politeness limit applied per host, zero
	// disables it.
	RequestsPerSecond float64
	UserAgent         string
}

// StaticFetcher fetches pages with plain HTTP GET requests.
type StaticFetcher struct {
	http    *resty.Client
	limiter *hostLimiter
	tel     telemetry.API
}

func NewStaticFetcher(opts StaticOptions, tel telemetry.API) (*StaticFetcher, error) {
	assert.NotNil(tel)
	assert.Positive("fetch timeout", opts.Timeout)

	tel = telemetry.NewScopedAPI("fetch", tel)

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(opts.Timeout)

	client.SetRetryCount(opts.Retries)
	if opts.RetryWait > 0 {
		client.SetRetryWaitTime(opts.RetryWait)
		client.SetRetryMaxWaitTime(opts.RetryWait * 4)
	}
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err == nil {
			return false
		}
		if res != nil && res.Request != nil && res.Request.Context().Err() != nil {
			return false
		}
		return isTransientNetError(err)
	})

	f := &StaticFetcher{
		http:    client,
		limiter: newHostLimiter(opts.RequestsPerSecond),
		tel:     tel,
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		parsed, err := url.Parse(req.URL)
		if err != nil {
			return err
		}
		return f.limiter.wait(req.Context(), parsed.Host)
	})
	telemetry.InstrumentResty(client, tel)

	return f, nil
}

// isTransientNetError reports whether err is worth retrying: resets,
// refused connections, timeouts and truncated responses.
func isTransientNetError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func (f *StaticFetcher) Fetch(ctx context.Context, req ingest.FetchRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "StaticFetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", req.URL))

	res, err := f.http.R().SetContext(ctx).Get(req.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		if ctx.Err() != nil {
			return "", fmt.Errorf("fetch %s: %w", req.URL, ctx.Err())
		}
		f.tel.ReportWarning(report_static_fetch, req.URL, err)
		return "", ingest.NewError(ingest.KindTransient, "fetch "+req.URL, err)
	}

	status := res.StatusCode()
	span.SetAttributes(attribute.Int("status", status))
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		span.SetStatus(codes.Error, res.Status())
		return "", ingest.Errorf(ingest.KindNotFound, "%s returned %d", req.URL, status)
	case !res.IsSuccess():
		span.SetStatus(codes.Error, res.Status())
		return "", ingest.Errorf(ingest.KindTransient, "%s returned %d", req.URL, status)
	}
	return string(res.Body()), nil
}

// hostLimiter keeps one token bucket per host.
type hostLimiter struct {
	mutex    sync.Mutex
	limit    rate.Limit
	limiters map[string]*rate.Limiter
}

func newHostLimiter(rps float64) *hostLimiter {
	return &hostLimiter{
		limit:    rate.Limit(rps),
		limiters: map[string]*rate.Limiter{},
	}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	if h.limit <= 0 {
		return nil
	}
	h.mutex.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		// burst >= 1 means no request is ever dropped, only delayed
		burst := int(h.limit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(h.limit, burst)
		h.limiters[host] = limiter
	}
	h.mutex.Unlock()
	return limiter.Wait(ctx)
}
