// Package audit records upstream fetches into an optional storage backend.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/appraise/internal/metrics"
	"github.com/FranksOps/appraise/internal/storage"
	"github.com/FranksOps/appraise/internal/storage/jsonbackend"
	"github.com/FranksOps/appraise/internal/storage/postgres"
	"github.com/FranksOps/appraise/internal/storage/sqlite"
	"github.com/google/uuid"
)

// Supported store drivers.
const (
	DriverNone     = ""
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverJSON     = "json"
)

// Open returns the backend for driver, or nil when driver is empty.
func Open(ctx context.Context, driver, dsn string) (storage.Backend, error) {
	switch strings.ToLower(driver) {
	case DriverNone, "none":
		return nil, nil
	case DriverSQLite:
		return sqlite.New(dsn)
	case DriverPostgres, "pg":
		return postgres.New(ctx, dsn)
	case DriverJSON, "ndjson", "jsonl":
		return jsonbackend.New(dsn)
	default:
		return nil, fmt.Errorf("unknown audit driver %q", driver)
	}
}

// Recorder stamps fetch records, counts them in metrics and persists them
// when a backend is configured. A nil *Recorder is valid and only drops
// records.
type Recorder struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder wraps backend, which may be nil.
func NewRecorder(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{backend: backend, logger: logger, now: time.Now}
}

// Record saves rec. Store failures are logged, never returned: the audit
// trail must not fail a price lookup.
func (r *Recorder) Record(ctx context.Context, rec *storage.FetchRecord) {
	if r == nil || rec == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	metrics.RecordFetch(rec)

	if r.backend == nil {
		return
	}
	// The caller's deadline may already be spent by a slow upstream.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.backend.Save(saveCtx, rec); err != nil {
		r.logger.Warn("failed to save fetch record", "source", rec.Source, "url", rec.URL, "err", err)
	}
}

// Close closes the underlying backend.
func (r *Recorder) Close() error {
	if r == nil || r.backend == nil {
		return nil
	}
	return r.backend.Close()
}
