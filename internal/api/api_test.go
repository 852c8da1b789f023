package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/appraise/internal/appraisal"
	"github.com/FranksOps/appraise/internal/llm"
	"github.com/FranksOps/appraise/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAggregator struct{ queries []string }

func (f *fakeAggregator) Respond(_ context.Context, query string) market.Response {
	f.queries = append(f.queries, query)
	return market.Response{
		Query:     query,
		Platforms: []market.SourceResult{market.LinkOnly("eBay", "No eBay OAuth token configured.", "https://www.ebay.com/sch/i.html?_nkw="+query)},
	}
}

type fakeEstimator struct {
	est appraisal.Estimate
	err error
}

func (f fakeEstimator) Estimate(context.Context, appraisal.EstimateRequest) (appraisal.Estimate, error) {
	return f.est, f.err
}

type fakeIdentifier struct {
	id  appraisal.Identification
	err error
}

func (f fakeIdentifier) Identify(context.Context, string) (appraisal.Identification, error) {
	return f.id, f.err
}

func newTestServer(opts Options) (*Server, http.Handler) {
	if opts.Aggregator == nil {
		opts.Aggregator = &fakeAggregator{}
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(opts)
	return s, s.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestMarketAggregateDefaultsQuery(t *testing.T) {
	agg := &fakeAggregator{}
	_, h := newTestServer(Options{Aggregator: agg})

	for _, path := range []string{"/api/market-aggregate", "/.netlify/functions/market-aggregate?query=%20%20"} {
		rec := do(h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

		var resp market.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "antique", resp.Query)
		require.Len(t, resp.Platforms, 1)
		assert.Equal(t, market.StatusLinkOnly, resp.Platforms[0].Status)
	}
	assert.Equal(t, []string{"antique", "antique"}, agg.queries)
}

func TestMarketAggregatePassesQuery(t *testing.T) {
	agg := &fakeAggregator{}
	_, h := newTestServer(Options{Aggregator: agg})

	rec := do(h, http.MethodGet, "/api/market-aggregate?query=art+deco+lamp", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"art deco lamp"}, agg.queries)
}

func TestPreflight(t *testing.T) {
	_, h := newTestServer(Options{})

	for _, tc := range []struct{ path, methods string }{
		{"/api/market-aggregate", "GET, OPTIONS"},
		{"/api/ai-pricing", "POST, OPTIONS"},
		{"/.netlify/functions/vision", "POST, OPTIONS"},
	} {
		rec := do(h, http.MethodOptions, tc.path, "")
		assert.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Empty(t, rec.Body.String(), tc.path)
		assert.Equal(t, tc.methods, rec.Header().Get("Access-Control-Allow-Methods"), tc.path)
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"), tc.path)
	}
}

func TestHealth(t *testing.T) {
	s, h := newTestServer(Options{})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	rec := do(h, http.MethodGet, "/.netlify/functions/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"message":"Functions are running","time":"2024-05-01T12:00:00Z"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, h := newTestServer(Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestAIPricing(t *testing.T) {
	placeholder := appraisal.Placeholder("Lamp")

	tests := []struct {
		name       string
		est        Estimator
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing item", fakeEstimator{}, `{"description":"brass"}`, http.StatusBadRequest, "itemName missing"},
		{"empty body", fakeEstimator{}, ``, http.StatusBadRequest, "itemName missing"},
		{"bad json", fakeEstimator{}, `{itemName:`, http.StatusBadRequest, "invalid JSON body"},
		{"no estimator", nil, `{"itemName":"Lamp"}`, http.StatusServiceUnavailable, "OPENAI_API_KEY not configured"},
		{"no key", fakeEstimator{err: llm.ErrNotConfigured}, `{"itemName":"Lamp"}`, http.StatusServiceUnavailable, "OPENAI_API_KEY not configured"},
		{"upstream status", fakeEstimator{err: fmt.Errorf("complete: %w", &llm.StatusError{Code: 429})}, `{"itemName":"Lamp"}`, http.StatusTooManyRequests, "OpenAI failed: 429"},
		{"transport", fakeEstimator{err: io.ErrUnexpectedEOF}, `{"itemName":"Lamp"}`, http.StatusInternalServerError, "OpenAI failed: unexpected EOF"},
		{"ok", fakeEstimator{est: placeholder}, `{"itemName":"Lamp"}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(Options{Estimator: tt.est})
			rec := do(h, http.MethodPost, "/api/ai-pricing", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rec))
				return
			}
			var got appraisal.Estimate
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Len(t, got.Platforms, 2)
			assert.Equal(t, "eBay", got.Platforms[0].Name)
		})
	}
}

func TestVision(t *testing.T) {
	price := 45.0
	ident := appraisal.Identification{ItemName: "Brass lamp", VisiblePrice: &price, SearchTerms: []string{"brass lamp"}}

	tests := []struct {
		name       string
		id         Identifier
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing image", fakeIdentifier{}, `{}`, http.StatusBadRequest, "imageData missing"},
		{"no identifier", nil, `{"imageData":"aGVsbG8="}`, http.StatusServiceUnavailable, "VISION_API_KEY not configured"},
		{"invalid image", fakeIdentifier{err: appraisal.ErrInvalidImage}, `{"imageData":"!!"}`, http.StatusBadRequest, appraisal.ErrInvalidImage.Error()},
		{"upstream status", fakeIdentifier{err: &llm.StatusError{Code: 401}}, `{"imageData":"aGVsbG8="}`, http.StatusUnauthorized, "Vision failed: 401"},
		{"deadline", fakeIdentifier{err: context.DeadlineExceeded}, `{"imageData":"aGVsbG8="}`, http.StatusGatewayTimeout, "Vision failed: timed out"},
		{"ok", fakeIdentifier{id: ident}, `{"imageData":"data:image/png;base64,aGVsbG8="}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{}
			if tt.id != nil {
				opts.Identifier = tt.id
			}
			_, h := newTestServer(opts)
			rec := do(h, http.MethodPost, "/.netlify/functions/vision", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rec))
				return
			}
			var got appraisal.Identification
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, "Brass lamp", got.ItemName)
			require.NotNil(t, got.VisiblePrice)
			assert.Equal(t, 45.0, *got.VisiblePrice)
		})
	}
}

func TestWrongMethod(t *testing.T) {
	_, h := newTestServer(Options{})
	rec := do(h, http.MethodGet, "/api/ai-pricing", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsAndSwagger(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	_, h := newTestServer(Options{Metrics: metrics, Swagger: true})

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())

	rec = do(h, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/market-aggregate")

	_, bare := newTestServer(Options{})
	assert.Equal(t, http.StatusNotFound, do(bare, http.MethodGet, "/metrics", "").Code)
}
