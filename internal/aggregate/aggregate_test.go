package aggregate

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/scraper"
	"github.com/FranksOps/appraise/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name  string
	fetch func(ctx context.Context, query string) (market.SourceResult, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Link(query string) string {
	return "https://" + strings.ToLower(f.name) + ".example/search?q=" + url.QueryEscape(query)
}

func (f *fakeSource) Fetch(ctx context.Context, query string) (market.SourceResult, error) {
	return f.fetch(ctx, query)
}

func priced(name string, lo, hi float64) *fakeSource {
	return &fakeSource{name: name, fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		return market.SourceResult{
			Name:     name,
			Status:   market.StatusParsed,
			Count:    market.Int(2),
			MinPrice: market.Float(lo),
			MaxPrice: market.Float(hi),
			Samples: []market.Sample{
				{Title: q + " one", Price: market.Float(lo)},
				{Title: q + " two", Price: market.Float(hi)},
			},
			Description: "fake",
			Link:        "https://" + name + ".example",
		}, nil
	}}
}

func failing(name string, err error) *fakeSource {
	return &fakeSource{name: name, fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		return market.SourceResult{}, err
	}}
}

func hanging(name string) *fakeSource {
	return &fakeSource{name: name, fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		<-ctx.Done()
		return market.SourceResult{}, ctx.Err()
	}}
}

func panicking(name string) *fakeSource {
	return &fakeSource{name: name, fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		panic("layout changed")
	}}
}

func names(rs []market.SourceResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestRun_OrderAndIsolation(t *testing.T) {
	slow := &fakeSource{name: "Slow", fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		time.Sleep(30 * time.Millisecond)
		return priced("Slow", 1, 2).fetch(ctx, q)
	}}
	agg := New([]source.Source{
		slow,
		failing("Broken", errors.New("boom")),
		priced("Fast", 10, 20),
		panicking("Panicky"),
	}, Options{})

	resp, err := agg.Run(context.Background(), "  lamp ")
	require.NoError(t, err)

	assert.Equal(t, "lamp", resp.Query)
	assert.False(t, resp.Degraded)
	assert.Equal(t, []string{"Slow", "Broken", "Fast", "Panicky"}, names(resp.Platforms))

	assert.Equal(t, market.StatusParsed, resp.Platforms[0].Status)
	assert.Equal(t, market.StatusParsed, resp.Platforms[2].Status)
	assert.Equal(t, 10.0, *resp.Platforms[2].MinPrice)

	for _, i := range []int{1, 3} {
		p := resp.Platforms[i]
		assert.Equal(t, market.StatusLinkOnly, p.Status, p.Name)
		assert.Nil(t, p.Count)
		assert.Nil(t, p.MinPrice)
		assert.Nil(t, p.MaxPrice)
		assert.NotNil(t, p.Samples)
		assert.Empty(t, p.Samples)
		assert.Contains(t, p.Link, "q=lamp")
		assert.NotEmpty(t, p.Description)
	}
}

type brokenLink struct{ *fakeSource }

func (brokenLink) Link(string) string { panic("no browse url") }

type brokenName struct{ *fakeSource }

func (brokenName) Name() string { panic("no name") }

func TestRun_PanicOutsideFetch(t *testing.T) {
	agg := New([]source.Source{
		brokenLink{failing("Linkless", errors.New("boom"))},
		priced("Fast", 10, 20),
		brokenName{priced("Nameless", 1, 2)},
	}, Options{})

	resp, err := agg.Run(context.Background(), "lamp")
	require.NoError(t, err)
	require.Len(t, resp.Platforms, 3)

	assert.Equal(t, "Linkless", resp.Platforms[0].Name)
	assert.Equal(t, market.StatusLinkOnly, resp.Platforms[0].Status)
	assert.Empty(t, resp.Platforms[0].Link)

	assert.Equal(t, market.StatusParsed, resp.Platforms[1].Status)

	assert.Equal(t, "source 3", resp.Platforms[2].Name)
	assert.Equal(t, market.StatusLinkOnly, resp.Platforms[2].Status)
	assert.Contains(t, resp.Platforms[2].Link, "q=lamp")
}

func TestRun_DefaultQuery(t *testing.T) {
	var got string
	src := &fakeSource{name: "Echo", fetch: func(ctx context.Context, q string) (market.SourceResult, error) {
		got = q
		return market.LinkOnly("Echo", "", ""), nil
	}}

	resp, err := New([]source.Source{src}, Options{}).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, market.DefaultQuery, resp.Query)
	assert.Equal(t, market.DefaultQuery, got)
}

func TestRun_SourceTimeout(t *testing.T) {
	agg := New([]source.Source{hanging("Hangs"), priced("Quick", 5, 6)}, Options{SourceTimeout: 50 * time.Millisecond})

	start := time.Now()
	resp, err := agg.Run(context.Background(), "clock")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, market.StatusLinkOnly, resp.Platforms[0].Status)
	assert.Contains(t, resp.Platforms[0].Description, "Timed out")
	assert.Equal(t, market.StatusParsed, resp.Platforms[1].Status)
}

func TestRun_FailureDescriptions(t *testing.T) {
	agg := New([]source.Source{
		failing("Walled", &scraper.BlockedError{Detector: "DataDome", StatusCode: 403}),
		failing("Missing", &scraper.StatusError{Code: 404}),
		failing("Odd", errors.New("unexpected markup")),
	}, Options{})

	resp, err := agg.Run(context.Background(), "vase")
	require.NoError(t, err)

	assert.Contains(t, resp.Platforms[0].Description, "DataDome")
	assert.Contains(t, resp.Platforms[1].Description, "404")
	assert.Equal(t, "Could not parse (login or layout-protected).", resp.Platforms[2].Description)
}

func TestRun_ValidatesMergedList(t *testing.T) {
	agg := New([]source.Source{priced("A", 100, 200), priced("B", 100.2, 199.8), priced("C", 300, 400)}, Options{})

	resp, err := agg.Run(context.Background(), "chair")
	require.NoError(t, err)

	assert.Equal(t, market.StatusParsed, resp.Platforms[0].Status)
	assert.Equal(t, market.StatusParsed.Verified(), resp.Platforms[1].Status)
	assert.Equal(t, market.StatusParsed, resp.Platforms[2].Status)
}

func TestRun_ValidatorPanicIsError(t *testing.T) {
	agg := New([]source.Source{priced("A", 1, 2)}, Options{
		Validate: func([]market.SourceResult) []market.SourceResult { panic("validator bug") },
	})

	_, err := agg.Run(context.Background(), "desk")
	require.Error(t, err)
}

func TestRespond_Degraded(t *testing.T) {
	agg := New([]source.Source{priced("eBay", 1, 2), priced("Kovels", 3, 4)}, Options{
		Validate: func([]market.SourceResult) []market.SourceResult { panic("validator bug") },
	})

	resp := agg.Respond(context.Background(), "teapot")

	assert.True(t, resp.Degraded)
	assert.Equal(t, "teapot", resp.Query)
	require.Len(t, resp.Platforms, 2)
	for _, p := range resp.Platforms {
		assert.Equal(t, market.StatusLinkOnly, p.Status)
		assert.Equal(t, "Fallback", p.Description)
		assert.Contains(t, p.Link, "teapot")
	}
}

func TestRespond_EbayWithoutToken(t *testing.T) {
	agg := New([]source.Source{source.NewEbay(source.EbayConfig{}, nil), priced("Kovels", 3, 4)}, Options{})

	resp := agg.Respond(context.Background(), "teapot")

	require.NotEmpty(t, resp.Platforms)
	first := resp.Platforms[0]
	assert.Equal(t, "eBay", first.Name)
	assert.Equal(t, market.StatusLinkOnly, first.Status)
	assert.Nil(t, first.Count)
	assert.Nil(t, first.MinPrice)
	assert.Nil(t, first.MaxPrice)
	assert.Contains(t, first.Link, "teapot")
	assert.False(t, resp.Degraded)
}

func TestRun_CanceledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := New([]source.Source{hanging("Hangs")}, Options{}).Run(ctx, "mirror")
	require.NoError(t, err)
	assert.Equal(t, market.StatusLinkOnly, resp.Platforms[0].Status)
	assert.Equal(t, "Request canceled.", resp.Platforms[0].Description)
}

func TestFallback(t *testing.T) {
	resp := Fallback([]source.Source{priced("A", 1, 2), priced("B", 1, 2)}, "")
	assert.True(t, resp.Degraded)
	assert.Equal(t, market.DefaultQuery, resp.Query)
	assert.Equal(t, []string{"A", "B"}, names(resp.Platforms))
}
