package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/scraper"
	"github.com/go-resty/resty/v2"
)

const (
	ebayName         = "eBay"
	ebayDefaultBase  = "https://api.ebay.com"
	ebaySearchPath   = "/buy/browse/v1/item_summary/search"
	ebaySearchLimit  = 20
	ebaySampleLimit  = 5
	ebayMarketplace  = "EBAY_US"
	ebayEndUserCtx   = "contextualLocation=country=US,zip=00000"
	ebayBrowseSearch = "https://www.ebay.com/sch/i.html?_nkw="
)

// EbayConfig configures the eBay Browse API adapter.
type EbayConfig struct {
	// Token is an application OAuth token. Empty disables live lookups.
	Token         string
	MarketplaceID string
	BaseURL       string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// Ebay queries the eBay Browse API.
type Ebay struct {
	cfg    EbayConfig
	client *resty.Client
	logger *slog.Logger
}

var _ Source = (*Ebay)(nil)

// NewEbay creates the adapter. client may be nil; a shared client lets
// callers attach tracing hooks.
func NewEbay(cfg EbayConfig, client *resty.Client) *Ebay {
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = ebayMarketplace
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ebayDefaultBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = resty.New()
	}
	client.SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout)

	return &Ebay{cfg: cfg, client: client, logger: logger}
}

func (e *Ebay) Name() string { return ebayName }

func (e *Ebay) Link(query string) string {
	return ebayBrowseSearch + url.QueryEscape(query)
}

type ebayAmount struct {
	Value flexNumber `json:"value"`
}

type ebayItem struct {
	Title          string      `json:"title"`
	Price          *ebayAmount `json:"price"`
	PricingSummary *struct {
		Price *ebayAmount `json:"price"`
	} `json:"pricingSummary"`
	ItemWebURL string `json:"itemWebUrl"`
	ItemHref   string `json:"itemHref"`
}

func (it ebayItem) price() *float64 {
	if it.Price != nil {
		return it.Price.Value.ptr()
	}
	if it.PricingSummary != nil && it.PricingSummary.Price != nil {
		return it.PricingSummary.Price.Value.ptr()
	}
	return nil
}

type ebaySearchResponse struct {
	ItemSummaries []ebayItem `json:"itemSummaries"`
}

// Fetch runs one item summary search. Without a token it answers with a
// link-only result and no error.
func (e *Ebay) Fetch(ctx context.Context, query string) (market.SourceResult, error) {
	if e.cfg.Token == "" {
		e.logger.Debug("ebay token not configured, returning link-only result")
		return market.LinkOnly(ebayName, "No eBay OAuth token configured.", e.Link(query)), nil
	}

	var out ebaySearchResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(e.cfg.Token).
		SetHeader("X-EBAY-C-MARKETPLACE-ID", e.cfg.MarketplaceID).
		SetHeader("X-EBAY-C-ENDUSERCTX", ebayEndUserCtx).
		SetQueryParams(map[string]string{
			"q":     query,
			"limit": strconv.Itoa(ebaySearchLimit),
		}).
		SetResult(&out).
		Get(ebaySearchPath)
	if err != nil {
		return market.SourceResult{}, fmt.Errorf("ebay browse: %w", err)
	}
	if resp.IsError() {
		return market.SourceResult{}, fmt.Errorf("ebay browse: %w", &scraper.StatusError{Code: resp.StatusCode()})
	}

	var prices []float64
	for _, it := range out.ItemSummaries {
		if p := it.price(); p != nil {
			prices = append(prices, *p)
		}
	}

	samples := make([]market.Sample, 0, ebaySampleLimit)
	for _, it := range out.ItemSummaries {
		if len(samples) == ebaySampleLimit {
			break
		}
		link := it.ItemWebURL
		if link == "" {
			link = it.ItemHref
		}
		samples = append(samples, market.Sample{Title: it.Title, Price: it.price(), URL: link})
	}

	lo, hi := market.Bounds(prices)
	return market.SourceResult{
		Name:        ebayName,
		Status:      market.StatusAPI,
		Count:       market.Int(len(out.ItemSummaries)),
		MinPrice:    lo,
		MaxPrice:    hi,
		Samples:     samples,
		Description: "Live eBay Browse results (sampled)",
		Link:        e.Link(query),
	}, nil
}

// flexNumber decodes a JSON number or numeric string. Anything else,
// including an empty string, decodes as absent rather than failing the
// whole response.
type flexNumber struct {
	v     float64
	valid bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n.v, n.valid = f, true
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.valid {
		return nil
	}
	return market.Float(n.v)
}
