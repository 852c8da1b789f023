package source

import (
	"context"
	"fmt"

	"github.com/FranksOps/appraise/internal/extract"
	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/scraper"
)

// Fetcher retrieves one page for a named source. *scraper.Fetcher
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, source, target string) (*scraper.Page, error)
}

var _ Fetcher = (*scraper.Fetcher)(nil)

// PageSpec parameterizes a heuristic page adapter.
type PageSpec struct {
	Name        string
	Status      market.Status
	Description string
	// SampleSource labels each extracted sample.
	SampleSource string

	// SearchURL is the page actually fetched; BrowseURL is the link shown
	// when no live data is available. BrowseURL defaults to SearchURL.
	SearchURL func(query string) string
	BrowseURL func(query string) string

	Tiers     []extract.Tier
	Plausible extract.Range

	TitleSelector string
	TitleWindow   extract.Window
	TitleLimit    int
}

// Page is a heuristic adapter over a public search page.
type Page struct {
	spec    PageSpec
	fetcher Fetcher
}

var _ Source = (*Page)(nil)

// NewPage builds an adapter from spec.
func NewPage(spec PageSpec, fetcher Fetcher) *Page {
	if spec.BrowseURL == nil {
		spec.BrowseURL = spec.SearchURL
	}
	if spec.SampleSource == "" {
		spec.SampleSource = spec.Name
	}
	return &Page{spec: spec, fetcher: fetcher}
}

func (p *Page) Name() string { return p.spec.Name }

func (p *Page) Link(query string) string { return p.spec.BrowseURL(query) }

// Fetch downloads the search page and extracts count, prices and titles.
// Fetch and parse errors are returned unchanged.
func (p *Page) Fetch(ctx context.Context, query string) (market.SourceResult, error) {
	target := p.spec.SearchURL(query)

	page, err := p.fetcher.Fetch(ctx, p.spec.Name, target)
	if err != nil {
		return market.SourceResult{}, err
	}
	html := string(page.Body)

	prices := extract.Prices(html, p.spec.Tiers, p.spec.Plausible)
	titles, err := extract.Titles(html, p.spec.TitleSelector, p.spec.TitleWindow, p.spec.TitleLimit)
	if err != nil {
		return market.SourceResult{}, fmt.Errorf("parse %s page: %w", p.spec.Name, err)
	}

	lo, hi := market.Bounds(prices)
	return market.SourceResult{
		Name:        p.spec.Name,
		Status:      p.spec.Status,
		Count:       extract.Count(html),
		MinPrice:    lo,
		MaxPrice:    hi,
		Samples:     extract.Pair(titles, prices, p.spec.SampleSource),
		Description: p.spec.Description,
		Link:        target,
	}, nil
}
