package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/FranksOps/appraise/internal/extract"
	"github.com/FranksOps/appraise/internal/market"
)

const (
	// amount matches $1,234.56 style figures with optional cents.
	amount = `([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`
	// wholeAmount matches $1,234 style figures without cents.
	wholeAmount = `([0-9]{1,3}(?:,[0-9]{3})*)`
)

var (
	barePrice      = regexp.MustCompile(`\$` + amount)
	bareWholePrice = regexp.MustCompile(`\$` + wholeAmount)
	loosePrice     = regexp.MustCompile(`\$\s*` + amount)

	hammerPhrase    = regexp.MustCompile(`(?i)(?:sold for|hammer price|final price|winning bid)[\s:]*\$` + amount)
	bidPhrase       = regexp.MustCompile(`(?i)(?:current bid|high bid|leading bid)[\s:]*\$` + wholeAmount)
	estimatePhrase  = regexp.MustCompile(`(?i)(?:estimate|est\.)[\s:]*\$` + wholeAmount)
	soldPhrase      = regexp.MustCompile(`(?i)(?:sold for|final price|sale price)[\s:]*\$` + amount)
	soldSuffix      = regexp.MustCompile(`(?i)\$` + amount + `\s*(?:sold|final)`)
	valuationPhrase = regexp.MustCompile(`(?i)(?:value|worth|priced at|valued at)[\s:]*\$` + wholeAmount)
	guideRange      = regexp.MustCompile(`\$` + wholeAmount + `\s*-\s*\$` + wholeAmount)
)

// SiteOptions overrides a site adapter's defaults.
type SiteOptions struct {
	// BaseURL replaces the scheme and host of the fetched search page.
	BaseURL string
	// Plausible replaces the adapter's plausible price range when non-zero.
	Plausible extract.Range
}

func (o SiteOptions) base(def string) string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return def
}

func (o SiteOptions) plausible(def extract.Range) extract.Range {
	if o.Plausible != (extract.Range{}) {
		return o.Plausible
	}
	return def
}

func searchURL(base, path string, params ...string) func(string) string {
	return func(q string) string {
		s := base + path + url.QueryEscape(q)
		for _, p := range params {
			s += "&" + p
		}
		return s
	}
}

// Heritage is the Heritage Auctions adapter. Hammer-price phrases win over
// bare currency amounts.
func Heritage(f Fetcher, opts SiteOptions) *Page {
	const host = "https://www.ha.com"
	return NewPage(PageSpec{
		Name:         "Heritage Auctions",
		Status:       market.StatusAuctionData,
		Description:  "Real auction house hammer prices",
		SampleSource: "Heritage Auctions",
		SearchURL:    searchURL(opts.base(host), "/search?query=", "sort=date_desc"),
		BrowseURL:    searchURL(host, "/search?query="),
		Tiers: []extract.Tier{
			{Patterns: []*regexp.Regexp{hammerPhrase}},
			{Patterns: []*regexp.Regexp{barePrice}, Bounded: true, Limit: 20},
		},
		Plausible:     opts.plausible(extract.Range{Min: 10, Max: 1_000_000}),
		TitleSelector: `a[href*="lot"]`,
		TitleWindow:   extract.Window{Min: 15, Max: 100},
		TitleLimit:    5,
	}, f)
}

// LiveAuctioneers prefers live bids, then estimates, then bare amounts.
func LiveAuctioneers(f Fetcher, opts SiteOptions) *Page {
	const host = "https://www.liveauctioneers.com"
	return NewPage(PageSpec{
		Name:         "LiveAuctioneers",
		Status:       market.StatusLiveAuctions,
		Description:  "Live auction platform with current bidding",
		SampleSource: "LiveAuctioneers",
		SearchURL:    searchURL(opts.base(host), "/search/?q=", "sort=date"),
		BrowseURL:    searchURL(host, "/search/?q="),
		Tiers: []extract.Tier{
			{Patterns: []*regexp.Regexp{bidPhrase}},
			{Patterns: []*regexp.Regexp{estimatePhrase}},
			{Patterns: []*regexp.Regexp{bareWholePrice}, Bounded: true, Limit: 15},
		},
		Plausible:     opts.plausible(extract.Range{Min: 5, Max: 500_000}),
		TitleSelector: "h3",
		TitleWindow:   extract.Window{Min: 10, Max: 80},
		TitleLimit:    4,
	}, f)
}

// WorthPoint only trusts amounts tied to a sale.
func WorthPoint(f Fetcher, opts SiteOptions) *Page {
	const host = "https://www.worthpoint.com"
	return NewPage(PageSpec{
		Name:         "WorthPoint",
		Status:       market.StatusSoldPrices,
		Description:  "Database of actual sold prices",
		SampleSource: "WorthPoint",
		SearchURL:    searchURL(opts.base(host), "/search?query=", "category=all", "sort=date"),
		BrowseURL:    searchURL(host, "/search?query="),
		Tiers: []extract.Tier{
			{Patterns: []*regexp.Regexp{soldPhrase, soldSuffix}, Bounded: true},
		},
		Plausible:     opts.plausible(extract.Range{Min: 1, Max: 100_000}),
		TitleSelector: `a[class*="title"]`,
		TitleWindow:   extract.Window{Min: 10, Max: 90},
		TitleLimit:    5,
	}, f)
}

// Kovels reads valuations, then low-high guide ranges, then bare amounts.
func Kovels(f Fetcher, opts SiteOptions) *Page {
	const host = "https://www.kovels.com"
	return NewPage(PageSpec{
		Name:         "Kovels",
		Status:       market.StatusPriceGuide,
		Description:  "Professional antique price guide",
		SampleSource: "Kovels Price Guide",
		SearchURL:    searchURL(opts.base(host), "/search?q="),
		BrowseURL:    searchURL(host, "/search?q="),
		Tiers: []extract.Tier{
			{Patterns: []*regexp.Regexp{valuationPhrase}},
			{Patterns: []*regexp.Regexp{guideRange}},
			{Patterns: []*regexp.Regexp{bareWholePrice}, Bounded: true, Limit: 10},
		},
		Plausible:     opts.plausible(extract.Range{Min: 5, Max: 200_000}),
		TitleSelector: `div[class*="description"]`,
		TitleWindow:   extract.Window{Min: 15, Max: 100},
		TitleLimit:    3,
	}, f)
}

// QueryPlaceholder is substituted with the escaped query in generic
// source URL templates.
const QueryPlaceholder = "{query}"

// GenericSpec describes an arbitrary public search page.
type GenericSpec struct {
	Name string
	// URL is a template containing QueryPlaceholder, for example
	// "https://example.com/search?q={query}".
	URL       string
	Plausible extract.Range
}

// Generic is the best-effort adapter for configured extra sites.
func Generic(f Fetcher, spec GenericSpec) *Page {
	build := func(q string) string {
		return strings.ReplaceAll(spec.URL, QueryPlaceholder, url.QueryEscape(q))
	}
	return NewPage(PageSpec{
		Name:        spec.Name,
		Status:      market.StatusParsed,
		Description: "Parsed from public search page (best-effort)",
		SearchURL:   build,
		Tiers: []extract.Tier{
			{Patterns: []*regexp.Regexp{loosePrice}, Bounded: true, Limit: 10},
		},
		Plausible:     spec.Plausible,
		TitleSelector: "a",
		TitleWindow:   extract.Window{Min: 10, Max: 120},
		TitleLimit:    3,
	}, f)
}
