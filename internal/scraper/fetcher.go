// Package scraper fetches public search pages the way a browser would and
// classifies the response before any extraction runs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/appraise/internal/audit"
	"github.com/FranksOps/appraise/internal/bypass"
	"github.com/FranksOps/appraise/internal/fingerprint"
	"github.com/FranksOps/appraise/internal/metrics"
	"github.com/FranksOps/appraise/internal/storage"
	"github.com/FranksOps/appraise/pkg/httpclient"
	"github.com/FranksOps/appraise/pkg/proxy"
	"github.com/FranksOps/appraise/pkg/ratelimit"
	"github.com/FranksOps/appraise/pkg/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrBlocked is matched by every BlockedError.
var ErrBlocked = errors.New("blocked by bot protection")

// BlockedError reports a challenge page from a bot-protection vendor.
type BlockedError struct {
	Detector   string
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by %s (HTTP %d)", e.Detector, e.StatusCode)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// StatusError is a non-2xx response that is not a known bot wall.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}

type contextKey string

const proxyKey contextKey = "proxy_url"

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool

	UAPool    *useragent.Pool
	ProxyPool *proxy.Pool
	Limiter   *ratelimit.Limiter
	Walls     []bypass.Wall
	Recorder  *audit.Recorder
	Logger    *slog.Logger
}

// Page is a successfully fetched search page.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs single page fetches. One Fetcher is shared by every
// adapter; it holds connection pools but no per-request state.
type Fetcher struct {
	config Config
	client *httpclient.Client
	logger *slog.Logger
}

// New initializes a Fetcher. The transport is built once so connections
// are pooled per host across requests.
func New(cfg Config) (*Fetcher, error) {
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Walls == nil {
		cfg.Walls = bypass.DefaultWalls()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Proxies rotate per request, so the transport reads the chosen one
	// from the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(fingerprint.Options{
		Profile:            cfg.Fingerprint,
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Transport:    transport,
	})

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Fetch GETs target on behalf of source. A challenge page yields a
// *BlockedError, any other non-2xx a *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, source, target string) (*Page, error) {
	ctx, span := otel.Tracer("github.com/FranksOps/appraise/internal/scraper").Start(ctx, "scraper.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("source", source), attribute.String("url", target))

	page, err := f.fetch(ctx, source, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, source, target string) (*Page, error) {
	rec := &storage.FetchRecord{Source: source, URL: target}
	start := time.Now()
	defer func() {
		rec.Duration = time.Since(start)
		f.config.Recorder.Record(ctx, rec)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		rec.Error = err.Error()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := f.config.Limiter.Wait(ctx, req.URL.Host); err != nil {
		rec.Error = err.Error()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	f.config.UAPool.Next().Apply(req.Header)

	resp, err := f.client.Do(ctx, req)
	if activeProxy != nil {
		if rerr := f.config.ProxyPool.Report(activeProxy, err); rerr != nil {
			f.logger.Debug("proxy report failed", "proxy", activeProxy.Redacted(), "err", rerr)
		}
		if err != nil {
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
	}
	if err != nil {
		rec.Error = err.Error()
		return nil, err
	}

	rec.StatusCode = resp.StatusCode
	rec.Bytes = int64(len(resp.Body))
	if resp.Truncated {
		f.logger.Debug("response body truncated", "source", source, "url", target, "bytes", rec.Bytes)
	}

	if wall := bypass.Detect(resp.StatusCode, resp.Header, resp.Body, f.config.Walls); wall != "" {
		rec.BlockedBy = wall
		err := &BlockedError{Detector: wall, StatusCode: resp.StatusCode}
		rec.Error = err.Error()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Code: resp.StatusCode}
		rec.Error = err.Error()
		return nil, err
	}

	return &Page{
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
