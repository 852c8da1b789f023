package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 4 << 20
)

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero uses the default, a negative
	// value disables following entirely.
	MaxRedirects int
	// MaxBodyBytes caps how much of a response body is read. Search pages
	// are large but never need more than a few megabytes.
	MaxBodyBytes int64
	// Provide a custom Transport, e.g. for proxies or uTLS fingerprinting
	Transport http.RoundTripper
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Truncated is set when the body was cut at MaxBodyBytes.
	Truncated bool
}

// Client wraps http.Client with a redirect policy and bounded body reads.
// It holds no cookie jar so requests never share session state.
type Client struct {
	hc      *http.Client
	maxBody int64
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.MaxRedirects > 0 {
		limit := cfg.MaxRedirects
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	if cfg.Transport != nil {
		hc.Transport = cfg.Transport
	}

	return &Client{hc: hc, maxBody: cfg.MaxBodyBytes}
}

// Do executes req under ctx and reads the body up to the configured limit.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.hc.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if int64(len(body)) > c.maxBody {
		out.Body = body[:c.maxBody]
		out.Truncated = true
	}
	return out, nil
}
