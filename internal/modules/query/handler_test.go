package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, question string) (*Response, error)

func (f runnerFunc) Run(ctx context.Context, question string) (*Response, error) {
	return f(ctx, question)
}

func newQueryEngine(runner Runner, limitMW gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(runner, nil).RegisterRoutes(r.Group("/api"), limitMW)
	return r
}

func postQuery(r http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQueryHandlerSuccess(t *testing.T) {
	var asked string
	r := newQueryEngine(runnerFunc(func(_ context.Context, q string) (*Response, error) {
		asked = q
		return &Response{
			Question:             q,
			Interpretation:       Intent{DataType: report.Pages, DateRange: daterange.Last30Days, Limit: 10},
			InterpretationSource: SourceModel,
			Data:                 &report.PagesResult{Pages: []report.PageRow{{Path: "/", Views: 3}}},
			Narrative:            "**Great** news",
			NarrativeSource:      SourceModel,
			Timestamp:            fixedNow,
		}, nil
	}), nil)

	w := postQuery(r, "/api/query", `{"question":"top pages?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "top pages?", asked)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "top pages?", body["question"])
	assert.Equal(t, map[string]any{"dataType": "pages", "dateRange": "30days", "limit": float64(10)}, body["interpretation"])
	assert.Equal(t, "**Great** news", body["narrative"])
	assert.Equal(t, "2024-03-15T09:30:00Z", body["timestamp"])
	assert.NotContains(t, body, "narrativeHtml")
	data := body["data"].(map[string]any)
	assert.Len(t, data["pages"], 1)

	w = postQuery(r, "/api/query?format=html", `{"question":"top pages?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["narrativeHtml"], "<strong>Great</strong>")
	assert.Equal(t, "**Great** news", body["narrative"])
}

func TestQueryHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		errMsg string
	}{
		{"invalid input", fmt.Errorf("%w: question is required", ErrInvalidInput), http.StatusBadRequest, "Question is required"},
		{"unavailable", fmt.Errorf("%w: %w", ErrBackendUnavailable, report.ErrUpstreamUnavailable), http.StatusBadGateway, "Analytics backend unavailable"},
		{"rejected", fmt.Errorf("%w: %w", ErrBackendUnavailable, report.ErrUpstreamRejected), http.StatusServiceUnavailable, "Analytics backend rejected the request"},
		{"other", context.Canceled, http.StatusInternalServerError, "Failed to process query"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newQueryEngine(runnerFunc(func(context.Context, string) (*Response, error) {
				return nil, tc.err
			}), nil)
			w := postQuery(r, "/api/query", `{"question":"x"}`)
			assert.Equal(t, tc.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.errMsg, body["error"])
		})
	}
}

func TestQueryHandlerRejectsMalformedBody(t *testing.T) {
	called := false
	r := newQueryEngine(runnerFunc(func(context.Context, string) (*Response, error) {
		called = true
		return nil, nil
	}), nil)

	w := postQuery(r, "/api/query", `{"question":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}

func TestQueryHandlerRunsLimitMiddleware(t *testing.T) {
	r := newQueryEngine(runnerFunc(func(context.Context, string) (*Response, error) {
		t.Fatal("runner must not be reached")
		return nil, nil
	}), func(c *gin.Context) {
		c.AbortWithStatus(http.StatusTooManyRequests)
	})

	w := postQuery(r, "/api/query", `{"question":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestQueryEndToEndWithEmptyQuestion(t *testing.T) {
	model := &recorder{reply: keywordModel("unused")}
	reports := &stubReports{}
	o := newTestOrchestrator(t, model, reports, nil)

	w := postQuery(newQueryEngine(o, nil), "/api/query", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, reports.callNames())
}
