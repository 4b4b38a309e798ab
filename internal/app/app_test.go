package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ga-insights/core/internal/config"
	"github.com/ga-insights/core/internal/middleware"
	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubFetcher) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	return s.err
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubFetcher) FetchSummary(_ context.Context, dr daterange.Spec) (*report.SummaryResult, error) {
	if err := s.record("summary"); err != nil {
		return nil, err
	}
	return &report.SummaryResult{DateRange: dr, Metrics: report.SummaryMetrics{Sessions: 120, ActiveUsers: 80}}, nil
}

func (s *stubFetcher) FetchTopPages(_ context.Context, dr daterange.Spec, limit int) (*report.PagesResult, error) {
	if err := s.record("pages"); err != nil {
		return nil, err
	}
	pages := []report.PageRow{
		{Path: "/", Title: "Home", Views: 300},
		{Path: "/pricing", Title: "Pricing", Views: 120},
		{Path: "/blog", Title: "Blog", Views: 90},
		{Path: "/about", Title: "About", Views: 10},
	}
	if limit < len(pages) {
		pages = pages[:limit]
	}
	return &report.PagesResult{DateRange: dr, Pages: pages}, nil
}

func (s *stubFetcher) FetchTrafficSources(_ context.Context, dr daterange.Spec, _ int) (*report.TrafficResult, error) {
	if err := s.record("traffic"); err != nil {
		return nil, err
	}
	return &report.TrafficResult{DateRange: dr}, nil
}

func (s *stubFetcher) FetchDeviceBreakdown(_ context.Context, dr daterange.Spec) (*report.DevicesResult, error) {
	if err := s.record("devices"); err != nil {
		return nil, err
	}
	return &report.DevicesResult{DateRange: dr}, nil
}

func (s *stubFetcher) FetchRealtimeUsers(context.Context) (*report.RealtimeResult, error) {
	if err := s.record("realtime"); err != nil {
		return nil, err
	}
	return &report.RealtimeResult{TotalActiveUsers: 4}, nil
}

func (s *stubFetcher) FetchCustom(_ context.Context, q report.CustomQuery) (*report.CustomResult, error) {
	if err := s.record("custom"); err != nil {
		return nil, err
	}
	return &report.CustomResult{DateRange: q.DateRange, Dimensions: q.Dimensions, Metrics: q.Metrics}, nil
}

// fakeModel answers the interpreter with intent and the synthesizer with narrative.
type fakeModel struct {
	mu        sync.Mutex
	intent    string
	narrative string
	calls     int
}

func (m *fakeModel) Complete(_ context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if req.JSON {
		return m.intent, nil
	}
	return m.narrative, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Port:      8080,
		Env:       "test",
		RateLimit: config.RateLimitConfig{RPS: 100, Burst: 100},
		Proxy: config.ProxyConfig{
			Port:     8787,
			CacheTTL: 5 * time.Minute,
			Timeout:  5 * time.Second,
		},
	}
}

func newTestServer(t *testing.T, fetcher *stubFetcher, model *fakeModel) *App {
	t.Helper()
	a, err := NewServerWith(nil, testConfig(), ServerDeps{
		Reports:   fetcher,
		Property:  "properties/123",
		Completer: model,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return a
}

func serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServerAnswersTopPagesQuestion(t *testing.T) {
	fetcher := &stubFetcher{}
	model := &fakeModel{
		intent:    `{"dataType":"pages","dateRange":"7days","limit":3}`,
		narrative: "Your homepage leads with 300 views.",
	}
	a := newTestServer(t, fetcher, model)

	w := serve(a.Router(), http.MethodPost, "/api/query", `{"question":"What are my top 3 pages this week?"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var body struct {
		Interpretation struct {
			DataType  string `json:"dataType"`
			DateRange string `json:"dateRange"`
			Limit     int    `json:"limit"`
		} `json:"interpretation"`
		Data struct {
			DateRange daterange.Spec   `json:"dateRange"`
			Pages     []report.PageRow `json:"pages"`
		} `json:"data"`
		Narrative       string `json:"narrative"`
		NarrativeSource string `json:"narrativeSource"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "pages", body.Interpretation.DataType)
	assert.Equal(t, "7days", body.Interpretation.DateRange)
	assert.Len(t, body.Data.Pages, 3)
	assert.Equal(t, "Your homepage leads with 300 views.", body.Narrative)
	assert.Equal(t, "model", body.NarrativeSource)
	assert.Equal(t, []string{"pages"}, fetcher.calls)
}

func TestServerRejectsEmptyQuestion(t *testing.T) {
	fetcher := &stubFetcher{}
	model := &fakeModel{}
	a := newTestServer(t, fetcher, model)

	w := serve(a.Router(), http.MethodPost, "/api/query", `{"question":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
	assert.Zero(t, fetcher.callCount())
	assert.Zero(t, model.callCount())
}

func TestServerBackendUnavailable(t *testing.T) {
	fetcher := &stubFetcher{err: report.ErrUpstreamUnavailable}
	model := &fakeModel{intent: `{"dataType":"summary","dateRange":"30days"}`, narrative: "unused"}
	a := newTestServer(t, fetcher, model)

	w := serve(a.Router(), http.MethodPost, "/api/query", `{"question":"how am I doing?"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, model.callCount())
}

func TestServerRoutes(t *testing.T) {
	fetcher := &stubFetcher{}
	a := newTestServer(t, fetcher, &fakeModel{})
	r := a.Router()

	w := serve(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","property":"properties/123","timestamp":"2024-03-15T09:30:00Z"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/summary?dateRange=7days", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessions":120`)

	w = serve(r, http.MethodGet, "/api/pages?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/api/summary?dateRange=fortnight", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/api/custom?dimensions=country&metrics=sessions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dimensions":["country"]`)

	w = serve(r, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Not found"`)

	w = serve(r, http.MethodDelete, "/api/query", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServerCORS(t *testing.T) {
	a := newTestServer(t, &stubFetcher{}, &fakeModel{})
	w := serve(a.Router(), http.MethodOptions, "/api/query", "", map[string]string{
		"Origin":                        "https://dash.example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	cfg := testConfig()
	cfg.AllowedOrigins = []string{"*.example.com"}
	restricted, err := NewServerWith(nil, cfg, ServerDeps{Reports: &stubFetcher{}, Completer: &fakeModel{}})
	require.NoError(t, err)

	w = serve(restricted.Router(), http.MethodGet, "/health", "", map[string]string{"Origin": "https://dash.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(restricted.Router(), http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.test"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServerJobs(t *testing.T) {
	a := newTestServer(t, &stubFetcher{}, &fakeModel{})
	jobs := a.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "ratelimit-gc", jobs[0].Name)
	assert.Equal(t, ":8080", a.Addr())
	assert.Equal(t, "server", a.Name())

	a.Start()
	assert.NoError(t, a.Shutdown())
}

func TestNewServerValidates(t *testing.T) {
	_, err := NewServer(context.Background(), nil, testConfig())
	assert.ErrorContains(t, err, "property_id")

	_, err = NewServerWith(nil, testConfig(), ServerDeps{})
	assert.Error(t, err)
}

func newBackedProxy(t *testing.T, store middleware.CacheStore) (*App, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{}
	server := newTestServer(t, fetcher, &fakeModel{intent: `{"dataType":"realtime"}`, narrative: "4 people are here."})
	backend := httptest.NewServer(server.Router())
	t.Cleanup(backend.Close)

	cfg := testConfig()
	cfg.Proxy.BackendURL = backend.URL
	p, err := NewProxyWith(nil, cfg, store)
	require.NoError(t, err)
	return p, fetcher
}

func TestProxyServesSecondGetFromCache(t *testing.T) {
	p, fetcher := newBackedProxy(t, middleware.NewMemoryCacheStore(nil))
	r := p.Router()

	first := serve(r, http.MethodGet, "/api/summary?dateRange=7days", "", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, middleware.CacheMiss, first.Header().Get(middleware.CacheStatusHeader))

	var second *httptest.ResponseRecorder
	require.Eventually(t, func() bool {
		second = serve(r, http.MethodGet, "/api/summary?dateRange=7days", "", nil)
		return second.Header().Get(middleware.CacheStatusHeader) == middleware.CacheHit
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "public, max-age=300", second.Header().Get("Cache-Control"))

	calls := fetcher.callCount()
	serve(r, http.MethodGet, "/api/summary?dateRange=7days", "", nil)
	assert.Equal(t, calls, fetcher.callCount())
}

func TestProxyForwardsQueries(t *testing.T) {
	p, _ := newBackedProxy(t, middleware.NewMemoryCacheStore(nil))
	r := p.Router()

	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/api/query", `{"question":"who is online?"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(middleware.CacheStatusHeader))
		assert.Contains(t, w.Body.String(), "4 people are here.")
	}

	w := serve(r, http.MethodPost, "/api/query", `{"question":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProxySurface(t *testing.T) {
	p, _ := newBackedProxy(t, middleware.NewMemoryCacheStore(nil))
	r := p.Router()

	w := serve(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"proxy":"edge-proxy"`)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = serve(r, http.MethodGet, "/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Available endpoints: /health, /api/*")

	w = serve(r, http.MethodOptions, "/api/summary", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/api/summary", "", map[string]string{"Origin": "https://dash.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), middleware.CacheStatusHeader)

	jobs := p.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "cache-sweep", jobs[0].Name)
	assert.Equal(t, ":8787", p.Addr())
}

func TestNewProxyWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	fetcher := &stubFetcher{}
	server := newTestServer(t, fetcher, &fakeModel{})
	backend := httptest.NewServer(server.Router())
	t.Cleanup(backend.Close)

	cfg := testConfig()
	cfg.Proxy.BackendURL = backend.URL
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"
	p, err := NewProxy(context.Background(), nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, p.Jobs())

	w := serve(p.Router(), http.MethodGet, "/api/realtime", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Eventually(t, func() bool {
		return len(mr.Keys()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], middleware.APICachePrefix))

	var health map[string]any
	w = serve(p.Router(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["cache"])

	mr.Close()
	w = serve(p.Router(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "unavailable", health["cache"])
	assert.Equal(t, "healthy", health["status"])
	assert.NoError(t, p.Shutdown())
}

func TestNewProxyValidates(t *testing.T) {
	_, err := NewProxy(context.Background(), nil, testConfig())
	assert.ErrorContains(t, err, "backend_url")

	cfg := testConfig()
	cfg.Proxy.BackendURL = "http://localhost:1"
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	_, err = NewProxy(context.Background(), nil, cfg)
	assert.Error(t, err)

	_, err = NewProxyWith(nil, cfg, nil)
	assert.Error(t, err)
}

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"https://example.com", "example.com", true},
		{"*.example.com", "dash.example.com", true},
		{"*.example.com", "example.org", false},
		{"localhost:*", "localhost:5173", true},
		{"localhost:*", "127.0.0.1:5173", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOriginPattern(tc.pattern, tc.host), tc.pattern+" "+tc.host)
	}
	assert.Equal(t, "dash.example.com:8443", extractOriginHost("https://dash.example.com:8443"))
}
