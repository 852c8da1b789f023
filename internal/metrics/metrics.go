package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/appraise/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraise_fetch_requests_total",
			Help: "Total number of upstream fetches made by source adapters",
		},
		[]string{"source", "status", "blocked_by"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appraise_fetch_duration_seconds",
			Help:    "Duration of upstream fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraise_fetch_bytes_total",
			Help: "Total bytes downloaded from upstream sources",
		},
		[]string{"source"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraise_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	SourceResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraise_source_results_total",
			Help: "Per-source outcomes of aggregation requests",
		},
		[]string{"source", "outcome"},
	)

	AggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appraise_aggregate_duration_seconds",
			Help:    "End-to-end duration of market aggregation requests",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)

	DegradedResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appraise_degraded_responses_total",
			Help: "Aggregation requests answered with the link-only fallback",
		},
	)
)

// Source outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	// OutcomeLinkOnly counts adapters that chose not to fetch, such as an
	// API adapter without credentials.
	OutcomeLinkOnly = "link_only"
)

// RecordFetch updates the fetch metrics from an audit record.
func RecordFetch(rec *storage.FetchRecord) {
	if rec == nil {
		return
	}

	statusStr := strconv.Itoa(rec.StatusCode)
	if rec.Error != "" && rec.StatusCode == 0 {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(rec.Source, statusStr, rec.BlockedBy).Inc()
	FetchDuration.WithLabelValues(rec.Source).Observe(rec.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(rec.Source).Add(float64(rec.Bytes))
}

// RecordSource counts one adapter outcome.
func RecordSource(source, outcome string) {
	SourceResultsTotal.WithLabelValues(source, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server is a standalone HTTP server for Prometheus metrics, used when
// metrics are published on a different address than the API.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
