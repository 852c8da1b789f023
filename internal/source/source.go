// Package source implements the marketplace adapters queried for every
// aggregation request. Each adapter turns a free-text query into one
// normalized market.SourceResult.
package source

import (
	"context"

	"github.com/FranksOps/appraise/internal/market"
)

// Source is one marketplace adapter. Implementations must be safe for
// concurrent use and must honor ctx cancellation.
type Source interface {
	// Name is the display name used in results and fallbacks.
	Name() string
	// Link returns the public, browsable search page for query. It never
	// fails and needs no network access.
	Link(query string) string
	// Fetch queries the marketplace. Any returned error is turned into a
	// link-only result by the caller.
	Fetch(ctx context.Context, query string) (market.SourceResult, error)
}
