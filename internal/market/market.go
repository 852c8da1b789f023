// Package market holds the normalized price comparison types returned to
// callers regardless of which sources answered.
package market

import (
	"strings"
)

// DefaultQuery is used when the caller does not provide a search term.
const DefaultQuery = "antique"

// Status describes how a SourceResult was obtained.
type Status string

const (
	StatusAPI            Status = "API"
	StatusParsed         Status = "parsed"
	StatusAuctionData    Status = "auction-data"
	StatusLiveAuctions   Status = "live-auctions"
	StatusSoldPrices     Status = "sold-prices"
	StatusPriceGuide     Status = "price-guide"
	StatusEnhancedScrape Status = "enhanced-scrape"
	StatusLinkOnly       Status = "link-only"

	verifiedSuffix = "-verified"
)

// Verified marks the status as independently confirmed by another source
// reporting the identical range. Calling it twice is a no-op.
func (s Status) Verified() Status {
	if strings.HasSuffix(string(s), verifiedSuffix) {
		return s
	}
	return s + verifiedSuffix
}

// IsVerified reports whether the status carries the verified suffix.
func (s Status) IsVerified() bool {
	return strings.HasSuffix(string(s), verifiedSuffix)
}

// IsLinkOnly reports whether the result carries no extracted data.
func (s Status) IsLinkOnly() bool {
	return s == StatusLinkOnly
}

// Sample is one listing, lot or sold record used as evidence.
type Sample struct {
	Title  string   `json:"title"`
	Price  *float64 `json:"price"`
	Source string   `json:"source,omitempty"`
	URL    string   `json:"url,omitempty"`
}

// SourceResult is the normalized answer of one source for one request.
type SourceResult struct {
	Name        string   `json:"name"`
	Status      Status   `json:"status"`
	Count       *int     `json:"count"`
	MinPrice    *float64 `json:"minPrice"`
	MaxPrice    *float64 `json:"maxPrice"`
	Samples     []Sample `json:"samples"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
}

// Response is the aggregate payload handed to the browser client.
type Response struct {
	Query     string         `json:"query"`
	Platforms []SourceResult `json:"platforms"`
	Degraded  bool           `json:"degraded,omitempty"`
}

// LinkOnly builds a result with no live data, only a link the user can
// follow to verify prices manually.
func LinkOnly(name, description, link string) SourceResult {
	return SourceResult{
		Name:        name,
		Status:      StatusLinkOnly,
		Samples:     []Sample{},
		Description: description,
		Link:        link,
	}
}

// NormalizeQuery trims the query and substitutes DefaultQuery when empty.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return DefaultQuery
	}
	return q
}

// Bounds returns the lowest and highest value of prices, or nil, nil for
// an empty set.
func Bounds(prices []float64) (*float64, *float64) {
	if len(prices) == 0 {
		return nil, nil
	}
	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return &lo, &hi
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Clone returns a deep copy so validators can rewrite results without
// touching the caller's slice.
func (r SourceResult) Clone() SourceResult {
	out := r
	if r.Count != nil {
		out.Count = Int(*r.Count)
	}
	if r.MinPrice != nil {
		out.MinPrice = Float(*r.MinPrice)
	}
	if r.MaxPrice != nil {
		out.MaxPrice = Float(*r.MaxPrice)
	}
	out.Samples = make([]Sample, len(r.Samples))
	for i, s := range r.Samples {
		if s.Price != nil {
			s.Price = Float(*s.Price)
		}
		out.Samples[i] = s
	}
	return out
}
