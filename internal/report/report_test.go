package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/storage"
)

func sampleRecords(now time.Time) []*storage.FetchRecord {
	return []*storage.FetchRecord{
		{Source: "WorthPoint", StatusCode: 200, Bytes: 300, Duration: 100 * time.Millisecond, CreatedAt: now},
		{Source: "WorthPoint", StatusCode: 403, Bytes: 40, Duration: 300 * time.Millisecond, BlockedBy: "Cloudflare", Error: "blocked by Cloudflare", CreatedAt: now.Add(1 * time.Second)},
		{Source: "Kovels", StatusCode: 0, Duration: 10 * time.Second, Error: "context deadline exceeded", CreatedAt: now.Add(2 * time.Second)},
	}
}

func TestGenerateSummary(t *testing.T) {
	now := time.Now()
	summary := GenerateSummary(sampleRecords(now))

	if summary.TotalRequests != 3 {
		t.Errorf("expected 3 total requests, got %d", summary.TotalRequests)
	}
	if summary.TotalErrors != 2 {
		t.Errorf("expected 2 errors, got %d", summary.TotalErrors)
	}
	if summary.TotalBlocked != 1 {
		t.Errorf("expected 1 blocked, got %d", summary.TotalBlocked)
	}
	if summary.StatusCodes[200] != 1 || summary.StatusCodes[403] != 1 {
		t.Errorf("unexpected status codes %v", summary.StatusCodes)
	}
	if _, ok := summary.StatusCodes[0]; ok {
		t.Errorf("status 0 should not be counted")
	}
	if summary.TotalBytes != 340 {
		t.Errorf("expected 340 total bytes, got %d", summary.TotalBytes)
	}
	if summary.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", summary.Duration)
	}

	if len(summary.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(summary.Sources))
	}
	if summary.Sources[0].Source != "Kovels" || summary.Sources[1].Source != "WorthPoint" {
		t.Errorf("sources not sorted: %s, %s", summary.Sources[0].Source, summary.Sources[1].Source)
	}
	wp := summary.Sources[1]
	if wp.Requests != 2 || wp.Blocked != 1 || wp.BlockedBy["Cloudflare"] != 1 {
		t.Errorf("unexpected WorthPoint summary %+v", wp)
	}
	if wp.AvgDuration != 200*time.Millisecond {
		t.Errorf("expected 200ms average, got %v", wp.AvgDuration)
	}
	if got := wp.SuccessRate(); got != 0.5 {
		t.Errorf("expected 0.5 success rate, got %v", got)
	}
}

func TestGenerateSummaryEmpty(t *testing.T) {
	summary := GenerateSummary(nil)
	if summary.TotalRequests != 0 || summary.Sources == nil || summary.StatusCodes == nil {
		t.Errorf("unexpected empty summary %+v", summary)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Summary{TotalRequests: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"totalRequests": 5`) {
		t.Errorf("expected JSON to contain totalRequests: 5, got %s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	summary := GenerateSummary(sampleRecords(time.Now()))
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Fetch audit", "WorthPoint", "Cloudflare×1", "50%", "403"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q:\n%s", want, out)
		}
	}
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, GenerateSummary(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "No fetches recorded.\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWriteHTML(t *testing.T) {
	summary := GenerateSummary(sampleRecords(time.Now()))
	summary.Sources[0].Source = "<script>"
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>appraise fetch audit</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "Cloudflare") {
		t.Errorf("expected HTML to contain Cloudflare")
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("source names must be escaped")
	}
}

func TestWriteMarket(t *testing.T) {
	resp := market.Response{
		Query: "brass lamp",
		Platforms: []market.SourceResult{
			{
				Name:     "Heritage Auctions",
				Status:   market.StatusAuctionData,
				Count:    market.Int(12),
				MinPrice: market.Float(480),
				MaxPrice: market.Float(1250),
				Samples: []market.Sample{
					{Title: "Brass lamp", Price: market.Float(480)},
					{Title: "Tiffany style lamp", Price: market.Float(1250)},
				},
				Description: "Auction results",
			},
			market.LinkOnly("Kovels", "Timed out after 10s; search manually.", "https://www.kovels.com/search?q=brass+lamp"),
		},
	}

	var buf bytes.Buffer
	if err := WriteMarket(&buf, resp, FormatTable, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Market prices for brass lamp", "$480.00 - $1250.00", "Brass lamp", "link-only", "kovels.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected table to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Tiffany") {
		t.Errorf("sample limit not applied:\n%s", out)
	}

	buf.Reset()
	if err := WriteMarket(&buf, resp, FormatJSON, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"Tiffany style lamp"`) {
		t.Errorf("JSON output must carry every sample")
	}

	buf.Reset()
	if err := WriteMarket(&buf, resp, FormatHTML, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "<table") {
		t.Errorf("expected an HTML table, got %s", buf.String())
	}

	if err := WriteMarket(&buf, resp, "xml", 3); err == nil {
		t.Errorf("expected an error for an unknown format")
	}
}
