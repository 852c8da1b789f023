// Package storage defines the fetch audit trail. Records describe how an
// upstream page fetch went; they never hold page bodies or prices.
package storage

import (
	"context"
	"time"
)

// FetchRecord is one upstream HTTP fetch made on behalf of a source adapter.
type FetchRecord struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	URL        string        `json:"url"`
	StatusCode int           `json:"statusCode"`
	Duration   time.Duration `json:"duration"`
	Bytes      int64         `json:"bytes"`
	BlockedBy  string        `json:"blockedBy,omitempty"` // e.g. "Cloudflare", "DataDome"
	Error      string        `json:"error,omitempty"`     // non-empty if the fetch failed before a usable response
	CreatedAt  time.Time     `json:"createdAt"`
}

// Blocked reports whether a bot wall answered the fetch.
func (r *FetchRecord) Blocked() bool { return r.BlockedBy != "" }

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	Source  string
	Blocked *bool
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match applies the filter's predicates to a single record. Limit and
// Offset are not considered.
func (f Filter) Match(r *FetchRecord) bool {
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if f.Blocked != nil && r.Blocked() != *f.Blocked {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend persists and queries fetch records. Query returns newest first.
type Backend interface {
	Save(ctx context.Context, record *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
