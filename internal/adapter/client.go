package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/ga-insights/core/internal/modules/query"
	"go.uber.org/zap"
)

const (
	defaultTimeout       = 90 * time.Second
	defaultHealthTimeout = 5 * time.Second
	maxResponseBytes     = 10 << 20
)

// ConnectionState tells the UI how much to trust what it shows.
type ConnectionState string

const (
	Connected   ConnectionState = "connected"
	Degraded    ConnectionState = "degraded"
	Unavailable ConnectionState = "unavailable"
)

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the analytics server (or the edge proxy in front of it).
type Client struct {
	base          *neturl.URL
	http          *http.Client
	healthTimeout time.Duration
	logger        *zap.Logger

	mu         sync.Mutex
	healthy    bool
	lastCallOK bool
}

func New(opts Options) (*Client, error) {
	base, err := neturl.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid analytics server url %q", opts.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:          base,
		http:          httpClient,
		healthTimeout: healthTimeout,
		logger:        logger,
		lastCallOK:    true,
	}, nil
}

// State derives the connection state from the last health check and the last call.
// A client that has never reached the server is Unavailable.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.healthy:
		return Unavailable
	case c.lastCallOK:
		return Connected
	default:
		return Degraded
	}
}

func (c *Client) setHealth(ok bool) {
	c.mu.Lock()
	c.healthy = ok
	c.mu.Unlock()
}

func (c *Client) recordCall(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCallOK = err == nil
	switch {
	case err == nil:
		c.healthy = true
	case errors.Is(err, ErrBackendUnreachable):
		c.healthy = false
	}
}

// CheckHealth reports whether GET /health answers 2xx. It never returns an error.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/health", nil), nil)
	if err != nil {
		c.setHealth(false)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("health check failed", zap.Error(err))
		c.setHealth(false)
		return false
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.setHealth(ok)
	return ok
}

// Answer is the decoded POST /api/query response. Data stays raw because its shape
// depends on Interpretation.DataType.
type Answer struct {
	Question             string          `json:"question"`
	Interpretation       query.Intent    `json:"interpretation"`
	InterpretationSource string          `json:"interpretationSource"`
	Data                 json.RawMessage `json:"data"`
	Narrative            string          `json:"narrative"`
	NarrativeSource      string          `json:"narrativeSource"`
	NarrativeHTML        string          `json:"narrativeHtml,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
}

// Query posts question and returns the full answer.
func (c *Client) Query(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return nil, err
	}
	var out Answer
	err = c.do(ctx, http.MethodPost, "/api/query", nil, body, &out)
	c.recordCall(err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask returns only the narrative for question.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	answer, err := c.Query(ctx, question)
	if err != nil {
		return "", err
	}
	return answer.Narrative, nil
}

// Reply is what a chat surface shows for one message.
type Reply struct {
	Text string
	// Canned is true when Text is sample data because the server was down.
	Canned bool
	// Err is the request failure behind an apology Text, if any.
	Err error
}

// Respond checks health first, asks when healthy, and falls back to a canned narrative
// when not. Failures after a healthy check become an apology naming the cause.
func (c *Client) Respond(ctx context.Context, question string) Reply {
	if strings.TrimSpace(question) == "" {
		return Reply{Text: "Message is required and must be a non-empty string", Err: ErrEmptyQuestion}
	}
	if !c.CheckHealth(ctx) {
		c.logger.Warn("analytics server is not healthy, answering with sample data")
		return Reply{Text: CannedNarrative(question), Canned: true}
	}

	narrative, err := c.Ask(ctx, question)
	if err != nil {
		c.logger.Warn("analytics query failed", zap.Error(err))
		return Reply{
			Text: fmt.Sprintf("I'm sorry, I encountered an issue accessing your Google Analytics data: %s\n\n"+
				"Please try again in a moment, or ask me about specific aspects of your analytics like traffic, pages, devices, or user behavior and I'll do my best to help with the available data.",
				UserMessage(err)),
			Err: err,
		}
	}
	return Reply{Text: narrative}
}

func (c *Client) Summary(ctx context.Context, dateRange string) (*report.SummaryResult, error) {
	var out report.SummaryResult
	if err := c.get(ctx, "/api/summary", rangeQuery(dateRange, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Pages(ctx context.Context, dateRange string, limit int) (*report.PagesResult, error) {
	var out report.PagesResult
	if err := c.get(ctx, "/api/pages", rangeQuery(dateRange, limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Traffic(ctx context.Context, dateRange string, limit int) (*report.TrafficResult, error) {
	var out report.TrafficResult
	if err := c.get(ctx, "/api/traffic", rangeQuery(dateRange, limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Devices(ctx context.Context, dateRange string) (*report.DevicesResult, error) {
	var out report.DevicesResult
	if err := c.get(ctx, "/api/devices", rangeQuery(dateRange, 0), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Realtime(ctx context.Context) (*report.RealtimeResult, error) {
	var out report.RealtimeResult
	if err := c.get(ctx, "/api/realtime", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, q neturl.Values, out any) error {
	err := c.do(ctx, http.MethodGet, path, q, nil, out)
	c.recordCall(err)
	return err
}

func rangeQuery(dateRange string, limit int) neturl.Values {
	q := neturl.Values{}
	if dr := strings.TrimSpace(dateRange); dr != "" {
		q.Set("dateRange", dr)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func (c *Client) url(path string, q neturl.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, q neturl.Values, body []byte, out any) error {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, q), payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &errBody) == nil {
			statusErr.ErrorText = errBody.Error
			statusErr.Message = errBody.Message
		}
		return statusErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
