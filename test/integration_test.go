//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/appraise/internal/aggregate"
	"github.com/FranksOps/appraise/internal/api"
	"github.com/FranksOps/appraise/internal/audit"
	"github.com/FranksOps/appraise/internal/fingerprint"
	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/scraper"
	"github.com/FranksOps/appraise/internal/source"
	"github.com/FranksOps/appraise/internal/storage"
	"github.com/FranksOps/appraise/internal/storage/jsonbackend"
	"github.com/FranksOps/appraise/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtures = "../internal/source/testdata"

func fixtureServer(t *testing.T, file, contentType string) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join(fixtures, file))
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIntegration_MarketAggregate(t *testing.T) {
	heritage := fixtureServer(t, "heritage.html", "text/html")
	kovels := fixtureServer(t, "kovels.html", "text/html")

	// Never answers within the source deadline.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	walled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><head><title>Just a moment...</title></head><body>cf-browser-verification</body></html>`)
	}))
	t.Cleanup(walled.Close)

	ebayBody, err := os.ReadFile(filepath.Join(fixtures, "ebay_search.json"))
	require.NoError(t, err)
	ebayAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(ebayBody)
	}))
	t.Cleanup(ebayAPI.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditPath := filepath.Join(t.TempDir(), "audit.ndjson")
	backend, err := jsonbackend.New(auditPath)
	require.NoError(t, err)
	recorder := audit.NewRecorder(backend, logger)
	t.Cleanup(func() { _ = recorder.Close() })

	fetcher, err := scraper.New(scraper.Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Limiter:     ratelimit.NewLimiter(0, 0, 0),
		Recorder:    recorder,
		Logger:      logger,
	})
	require.NoError(t, err)

	ebayClient := resty.New()
	recorder.InstrumentResty(ebayClient, "eBay")
	sources := []source.Source{
		source.NewEbay(source.EbayConfig{Token: "test-token", BaseURL: ebayAPI.URL, Logger: logger}, ebayClient),
		source.Heritage(fetcher, source.SiteOptions{BaseURL: heritage.URL}),
		source.LiveAuctioneers(fetcher, source.SiteOptions{BaseURL: slow.URL}),
		source.WorthPoint(fetcher, source.SiteOptions{BaseURL: walled.URL}),
		source.Kovels(fetcher, source.SiteOptions{BaseURL: kovels.URL}),
	}
	agg := aggregate.New(sources, aggregate.Options{SourceTimeout: 500 * time.Millisecond, Logger: logger})

	srv := httptest.NewServer(api.New(api.Options{Aggregator: agg, Logger: logger}).Handler())
	t.Cleanup(srv.Close)

	start := time.Now()
	res, err := http.Get(srv.URL + "/.netlify/functions/market-aggregate?query=tea+set")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Less(t, time.Since(start), 3*time.Second, "the slow source must not hold the response")

	var resp market.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, "tea set", resp.Query)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Platforms, 5)

	byName := make(map[string]market.SourceResult)
	var order []string
	for _, p := range resp.Platforms {
		order = append(order, p.Name)
		byName[p.Name] = p
	}
	assert.Equal(t, []string{"eBay", "Heritage Auctions", "LiveAuctioneers", "WorthPoint", "Kovels"}, order)

	ebay := byName["eBay"]
	assert.Equal(t, market.StatusAPI, ebay.Status)
	require.NotNil(t, ebay.MinPrice)
	assert.Equal(t, 45.0, *ebay.MinPrice)
	assert.Equal(t, 120.5, *ebay.MaxPrice)

	ha := byName["Heritage Auctions"]
	assert.Equal(t, market.StatusAuctionData, ha.Status)
	require.NotNil(t, ha.MinPrice)
	assert.Equal(t, 480.0, *ha.MinPrice)
	assert.Equal(t, 1250.0, *ha.MaxPrice)

	la := byName["LiveAuctioneers"]
	assert.Equal(t, market.StatusLinkOnly, la.Status)
	assert.Equal(t, "Timed out after 500ms; search manually.", la.Description)
	assert.Equal(t, "https://www.liveauctioneers.com/search/?q=tea+set", la.Link)

	wp := byName["WorthPoint"]
	assert.Equal(t, market.StatusLinkOnly, wp.Status)
	assert.Equal(t, "Blocked by Cloudflare bot protection; search manually.", wp.Description)
	assert.Empty(t, wp.Samples)

	kv := byName["Kovels"]
	assert.Equal(t, market.StatusPriceGuide, kv.Status)
	assert.Equal(t, 400.0, *kv.MinPrice)
	assert.Equal(t, 1500.0, *kv.MaxPrice)

	records, err := backend.Query(context.Background(), storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 5)

	blocked := true
	walls, err := backend.Query(context.Background(), storage.Filter{Blocked: &blocked})
	require.NoError(t, err)
	require.Len(t, walls, 1)
	assert.Equal(t, "WorthPoint", walls[0].Source)
	assert.Equal(t, "Cloudflare", walls[0].BlockedBy)
}

func TestIntegration_EbayWithoutToken(t *testing.T) {
	agg := aggregate.New([]source.Source{source.NewEbay(source.EbayConfig{}, nil)}, aggregate.Options{})
	srv := httptest.NewServer(api.New(api.Options{Aggregator: agg}).Handler())
	t.Cleanup(srv.Close)

	res, err := http.Get(srv.URL + "/api/market-aggregate")
	require.NoError(t, err)
	defer res.Body.Close()

	var resp market.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Equal(t, "antique", resp.Query)
	require.Len(t, resp.Platforms, 1)
	assert.Equal(t, market.StatusLinkOnly, resp.Platforms[0].Status)
	assert.Equal(t, "https://www.ebay.com/sch/i.html?_nkw=antique", resp.Platforms[0].Link)
}
