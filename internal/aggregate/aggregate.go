// Package aggregate fans a query out to every configured source, replaces
// failed sources with link-only results and validates the merged list.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/metrics"
	"github.com/FranksOps/appraise/internal/scraper"
	"github.com/FranksOps/appraise/internal/source"
	"github.com/FranksOps/appraise/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSourceTimeout = 10 * time.Second
	tracerName           = "github.com/FranksOps/appraise/internal/aggregate"
)

// Options configures an Aggregator. Zero values get defaults.
type Options struct {
	// SourceTimeout bounds each adapter call.
	SourceTimeout time.Duration
	Logger        *slog.Logger
	Tracer        trace.Tracer
	// Validate post-processes the merged results. Defaults to
	// validate.Prices.
	Validate func([]market.SourceResult) []market.SourceResult
}

// Aggregator is safe for concurrent use; it keeps no per-request state.
type Aggregator struct {
	sources  []source.Source
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	validate func([]market.SourceResult) []market.SourceResult
}

// New builds an Aggregator over sources, which are reported in the given
// order.
func New(sources []source.Source, opts Options) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Validate == nil {
		opts.Validate = validate.Prices
	}
	return &Aggregator{
		sources:  sources,
		timeout:  opts.SourceTimeout,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		validate: opts.Validate,
	}
}

// Sources returns the configured adapters in report order.
func (a *Aggregator) Sources() []source.Source {
	return a.sources
}

// Run queries every source concurrently. Adapter failures never fail the
// run; an error means the merge itself broke.
func (a *Aggregator) Run(ctx context.Context, query string) (resp market.Response, err error) {
	query = market.NormalizeQuery(query)

	ctx, span := a.tracer.Start(ctx, "aggregate.Run", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregate panic: %v", r)
			a.logger.Error("aggregation panicked", "query", query, "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	results := make([]market.SourceResult, len(a.sources))

	// Tasks never return an error, so the group only provides the wait.
	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("source panicked", "index", i, "panic", r, "stack", string(debug.Stack()))
					results[i] = a.panicked(src, i, query, r)
				}
			}()
			results[i] = a.query(ctx, src, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return market.Response{}, err
	}

	return market.Response{Query: query, Platforms: a.validate(results)}, nil
}

// query calls one adapter under its own deadline and converts any failure
// into a link-only result.
func (a *Aggregator) query(ctx context.Context, src source.Source, query string) market.SourceResult {
	name := src.Name()

	ctx, span := a.tracer.Start(ctx, "source.Fetch", trace.WithAttributes(attribute.String("source", name)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := safeFetch(ctx, src, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordSource(name, metrics.OutcomeFailed)
		a.logger.Warn("source failed", "source", name, "query", query, "err", err)
		return market.LinkOnly(name, a.describe(err), src.Link(query))
	}

	if res.Samples == nil {
		res.Samples = []market.Sample{}
	}
	if res.Status.IsLinkOnly() {
		metrics.RecordSource(name, metrics.OutcomeLinkOnly)
	} else {
		metrics.RecordSource(name, metrics.OutcomeOK)
	}
	return res
}

// panicked builds the link-only result for a source whose Name or Link
// panicked outside Fetch.
func (a *Aggregator) panicked(src source.Source, i int, query string, r any) market.SourceResult {
	name := guard(src.Name)
	if name == "" {
		name = fmt.Sprintf("source %d", i+1)
	}
	link := guard(func() string { return src.Link(query) })
	metrics.RecordSource(name, metrics.OutcomeFailed)
	return market.LinkOnly(name, a.describe(fmt.Errorf("source panic: %v", r)), link)
}

func guard(fn func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	return fn()
}

func safeFetch(ctx context.Context, src source.Source, query string) (res market.SourceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panic: %v", r)
		}
	}()
	return src.Fetch(ctx, query)
}

// describe turns an adapter error into the user-facing explanation shown
// in place of live data.
func (a *Aggregator) describe(err error) string {
	var blocked *scraper.BlockedError
	var status *scraper.StatusError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Timed out after %s; search manually.", a.timeout)
	case errors.As(err, &blocked):
		return fmt.Sprintf("Blocked by %s bot protection; search manually.", blocked.Detector)
	case errors.As(err, &status):
		return fmt.Sprintf("Search returned HTTP %d; search manually.", status.Code)
	case errors.Is(err, context.Canceled):
		return "Request canceled."
	default:
		return "Could not parse (login or layout-protected)."
	}
}

// Fallback is the response used when aggregation as a whole fails: every
// configured source as a link-only entry.
func Fallback(sources []source.Source, query string) market.Response {
	query = market.NormalizeQuery(query)
	platforms := make([]market.SourceResult, 0, len(sources))
	for _, src := range sources {
		platforms = append(platforms, market.LinkOnly(src.Name(), "Fallback", src.Link(query)))
	}
	return market.Response{Query: query, Platforms: platforms, Degraded: true}
}

// Respond runs the aggregation and falls back to link-only results on
// failure. It always returns a usable response.
func (a *Aggregator) Respond(ctx context.Context, query string) market.Response {
	start := time.Now()
	defer func() {
		metrics.AggregateDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := a.Run(ctx, query)
	if err != nil {
		a.logger.Error("aggregation failed, returning fallback", "query", query, "err", err)
		metrics.DegradedResponsesTotal.Inc()
		return Fallback(a.sources, query)
	}
	return resp
}
