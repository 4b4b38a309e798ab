package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	*httptest.Server
	queries   atomic.Int32
	failPaths map[string]int
}

func newFakeServer(t *testing.T, failPaths map[string]int) *fakeServer {
	t.Helper()
	fs := &fakeServer{failPaths: failPaths}
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, r *http.Request, body any) {
		if status, ok := fs.failPaths[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"Failed to fetch","message":"analytics backend rejected the request: property 123 not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, report.SummaryResult{Metrics: report.SummaryMetrics{Sessions: 42}})
	})
	mux.HandleFunc("/api/pages", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, report.PagesResult{Pages: []report.PageRow{{Path: "/", Views: 9}, {Path: r.URL.Query().Get("limit"), Views: 1}}})
	})
	mux.HandleFunc("/api/traffic", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, report.TrafficResult{Sources: []report.SourceRow{{Source: "google", Sessions: 5}}})
	})
	mux.HandleFunc("/api/devices", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, report.DevicesResult{Devices: []report.DeviceRow{{DeviceCategory: "mobile"}}})
	})
	mux.HandleFunc("/api/realtime", func(w http.ResponseWriter, r *http.Request) {
		write(w, r, report.RealtimeResult{TotalActiveUsers: 3})
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		fs.queries.Add(1)
		var body struct {
			Question string `json:"question"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		write(w, r, map[string]any{
			"question":             body.Question,
			"interpretation":       map[string]any{"dataType": "pages", "dateRange": "30days", "limit": 10},
			"interpretationSource": "model",
			"data":                 map[string]any{"pages": []any{}},
			"narrative":            "Your homepage leads.",
			"narrativeSource":      "model",
			"timestamp":            "2024-03-15T09:30:00Z",
		})
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestCheckHealth(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := newTestClient(t, srv.URL)
	assert.Equal(t, Unavailable, c.State())
	assert.True(t, c.CheckHealth(context.Background()))
	assert.Equal(t, Connected, c.State())

	failing := newFakeServer(t, map[string]int{"/health": http.StatusServiceUnavailable})
	c = newTestClient(t, failing.URL)
	assert.False(t, c.CheckHealth(context.Background()))

	url := srv.URL
	srv.Close()
	c = newTestClient(t, url)
	assert.False(t, c.CheckHealth(context.Background()))
	assert.Equal(t, Unavailable, c.State())
}

func TestAsk(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := newTestClient(t, srv.URL)

	narrative, err := c.Ask(context.Background(), "  top pages?  ")
	require.NoError(t, err)
	assert.Equal(t, "Your homepage leads.", narrative)

	answer, err := c.Query(context.Background(), "top pages?")
	require.NoError(t, err)
	assert.Equal(t, report.Pages, answer.Interpretation.DataType)
	assert.Equal(t, 10, answer.Interpretation.Limit)
	assert.JSONEq(t, `{"pages":[]}`, string(answer.Data))

	_, err = c.Ask(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, int32(2), srv.queries.Load())
}

func TestAskErrors(t *testing.T) {
	srv := newFakeServer(t, map[string]int{"/api/query": http.StatusServiceUnavailable})
	c := newTestClient(t, srv.URL)

	_, err := c.Ask(context.Background(), "top pages?")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "Failed to fetch", statusErr.ErrorText)
	assert.Equal(t, msgProperty, UserMessage(err))

	url := srv.URL
	srv.Close()
	c = newTestClient(t, url)
	_, err = c.Ask(context.Background(), "top pages?")
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestRespond(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := newTestClient(t, srv.URL)

	reply := c.Respond(context.Background(), "top pages?")
	assert.Equal(t, Reply{Text: "Your homepage leads."}, reply)
	assert.Equal(t, Connected, c.State())

	down := newFakeServer(t, map[string]int{"/health": http.StatusServiceUnavailable})
	c = newTestClient(t, down.URL)
	reply = c.Respond(context.Background(), "how many people are on my site live?")
	assert.True(t, reply.Canned)
	assert.True(t, strings.HasPrefix(reply.Text, CannedPrefix))
	assert.Contains(t, reply.Text, "23 active users")
	assert.Zero(t, down.queries.Load())
	assert.Equal(t, Unavailable, c.State())

	broken := newFakeServer(t, map[string]int{"/api/query": http.StatusBadGateway})
	c = newTestClient(t, broken.URL)
	reply = c.Respond(context.Background(), "top pages?")
	assert.False(t, reply.Canned)
	assert.Error(t, reply.Err)
	assert.Contains(t, reply.Text, msgUnreachable)
	assert.Equal(t, Degraded, c.State())

	reply = c.Respond(context.Background(), "")
	assert.ErrorIs(t, reply.Err, ErrEmptyQuestion)
}

func TestTypedGetters(t *testing.T) {
	srv := newFakeServer(t, nil)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	summary, err := c.Summary(ctx, "7days")
	require.NoError(t, err)
	assert.Equal(t, int64(42), summary.Metrics.Sessions)

	pages, err := c.Pages(ctx, "7days", 25)
	require.NoError(t, err)
	assert.Equal(t, "25", pages.Pages[1].Path)

	traffic, err := c.Traffic(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "google", traffic.Sources[0].Source)

	devices, err := c.Devices(ctx, "30days")
	require.NoError(t, err)
	assert.Equal(t, "mobile", devices.Devices[0].DeviceCategory)

	realtime, err := c.Realtime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), realtime.TotalActiveUsers)
}

func TestOverviewJoinsAll(t *testing.T) {
	srv := newFakeServer(t, map[string]int{"/api/devices": http.StatusInternalServerError})
	c := newTestClient(t, srv.URL)
	require.True(t, c.CheckHealth(context.Background()))

	o := c.Overview(context.Background(), "7days")
	assert.Equal(t, 1, o.Failed())
	assert.NotNil(t, o.Summary.Data)
	assert.NotNil(t, o.Pages.Data)
	assert.NotNil(t, o.Traffic.Data)
	assert.NotNil(t, o.Realtime.Data)
	assert.Nil(t, o.Devices.Data)
	assert.Error(t, o.Devices.Err)
	assert.NotEmpty(t, o.Devices.Error)
	assert.Equal(t, Degraded, c.State())

	raw, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"devices":{"error":`)
}

func TestCannedNarrative(t *testing.T) {
	cases := map[string]string{
		"How much traffic did I get?": "24,567 users",
		"mobile share?":               "desktop devices (52.3%)",
		"what's my bounce rate":       "32.4%",
		"conversion goals":            "3.2%",
		"top content":                 "Homepage (15,234 views)",
		"referral channels":           "Organic Search (45.2%)",
		"anyone here in real-time?":   "23 active users",
		"tell me a joke":              "Could you be more specific",
	}
	for question, want := range cases {
		t.Run(question, func(t *testing.T) {
			got := CannedNarrative(question)
			assert.True(t, strings.HasPrefix(got, CannedPrefix))
			assert.Contains(t, got, want)
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, msgUnreachable, UserMessage(fmt.Errorf("%w: dial tcp", ErrBackendUnreachable)))
	assert.Equal(t, msgAuth, UserMessage(&StatusError{StatusCode: http.StatusUnauthorized}))
	assert.Equal(t, msgAuth, UserMessage(errors.New("invalid credentials")))
	assert.Equal(t, msgProperty, UserMessage(errors.New("property not found")))
	assert.Equal(t, msgGeneric, UserMessage(errors.New("boom")))
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:3000", "ftp://x"} {
		_, err := New(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}
