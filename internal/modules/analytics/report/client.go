package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultLimit   = 10
	MaxLimit       = 1000
	defaultTimeout = 10 * time.Second
)

var (
	// ErrUpstreamUnavailable covers transport failures, timeouts and 5xx/429 answers.
	ErrUpstreamUnavailable = errors.New("analytics backend unavailable")
	// ErrUpstreamRejected covers 4xx answers such as bad credentials or an unknown property.
	ErrUpstreamRejected = errors.New("analytics backend rejected the request")
	ErrInvalidLimit     = errors.New("invalid limit")
)

// Fetcher is the report surface served over HTTP.
type Fetcher interface {
	FetchSummary(ctx context.Context, dr daterange.Spec) (*SummaryResult, error)
	FetchTopPages(ctx context.Context, dr daterange.Spec, limit int) (*PagesResult, error)
	FetchTrafficSources(ctx context.Context, dr daterange.Spec, limit int) (*TrafficResult, error)
	FetchDeviceBreakdown(ctx context.Context, dr daterange.Spec) (*DevicesResult, error)
	FetchRealtimeUsers(ctx context.Context) (*RealtimeResult, error)
	FetchCustom(ctx context.Context, q CustomQuery) (*CustomResult, error)
}

// Options configures a GA4 backed Client.
type Options struct {
	PropertyID      string
	CredentialsFile string
	CredentialsJSON string
	Timeout         time.Duration
	// ClientOptions are appended after the credential options.
	ClientOptions []option.ClientOption
}

// Client issues GA4 Data API reports for one property.
type Client struct {
	svc      *analyticsdata.Service
	property string
	timeout  time.Duration
}

var _ Fetcher = (*Client)(nil)

// New builds the GA4 service from credentials and wraps it.
func New(ctx context.Context, opts Options) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithScopes(analyticsdata.AnalyticsReadonlyScope)}
	if raw := strings.TrimSpace(opts.CredentialsJSON); raw != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(raw)))
	} else if path := strings.TrimSpace(opts.CredentialsFile); path != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := analyticsdata.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("analytics data service: %w", err)
	}
	return NewWithService(svc, opts.PropertyID, opts.Timeout)
}

// NewWithService wraps an existing service.
func NewWithService(svc *analyticsdata.Service, propertyID string, timeout time.Duration) (*Client, error) {
	if svc == nil {
		return nil, errors.New("analytics data service is nil")
	}
	id := strings.TrimPrefix(strings.TrimSpace(propertyID), "properties/")
	if id == "" {
		return nil, errors.New("analytics property id is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{svc: svc, property: "properties/" + id, timeout: timeout}, nil
}

// Property returns the "properties/<id>" resource name.
func (c *Client) Property() string { return c.property }

// NormalizeLimit maps non-positive values to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (c *Client) FetchSummary(ctx context.Context, dr daterange.Spec) (*SummaryResult, error) {
	resp, err := c.runReport(ctx, "summary", &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(dr),
		Metrics: metrics(
			"sessions", "activeUsers", "newUsers", "screenPageViews",
			"averageSessionDuration", "bounceRate", "engagementRate",
		),
	})
	if err != nil {
		return nil, err
	}

	var row *analyticsdata.Row
	if len(resp.Rows) > 0 {
		row = resp.Rows[0]
	}
	return &SummaryResult{
		DateRange: dr,
		Metrics: SummaryMetrics{
			Sessions:           parseCount(metricValue(row, 0)),
			ActiveUsers:        parseCount(metricValue(row, 1)),
			NewUsers:           parseCount(metricValue(row, 2)),
			PageViews:          parseCount(metricValue(row, 3)),
			AvgSessionDuration: parseFloat(metricValue(row, 4)),
			BounceRate:         parseRate(metricValue(row, 5)),
			EngagementRate:     parseRate(metricValue(row, 6)),
		},
	}, nil
}

func (c *Client) FetchTopPages(ctx context.Context, dr daterange.Spec, limit int) (*PagesResult, error) {
	limit = NormalizeLimit(limit)
	resp, err := c.runReport(ctx, "pages", &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(dr),
		Dimensions: dimensions("pagePath", "pageTitle"),
		Metrics:    metrics("screenPageViews", "activeUsers", "averageSessionDuration", "bounceRate"),
		OrderBys:   orderByMetricDesc("screenPageViews"),
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, err
	}

	pages := make([]PageRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row == nil {
			continue
		}
		pages = append(pages, PageRow{
			Path:        dimensionValue(row, 0),
			Title:       dimensionValue(row, 1),
			Views:       parseCount(metricValue(row, 0)),
			Users:       parseCount(metricValue(row, 1)),
			AvgDuration: parseFloat(metricValue(row, 2)),
			BounceRate:  parseRate(metricValue(row, 3)),
		})
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Views > pages[j].Views })
	if len(pages) > limit {
		pages = pages[:limit]
	}
	return &PagesResult{DateRange: dr, Pages: pages}, nil
}

func (c *Client) FetchTrafficSources(ctx context.Context, dr daterange.Spec, limit int) (*TrafficResult, error) {
	limit = NormalizeLimit(limit)
	resp, err := c.runReport(ctx, "traffic", &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(dr),
		Dimensions: dimensions("sessionSource", "sessionMedium"),
		Metrics:    metrics("sessions", "activeUsers", "newUsers", "bounceRate"),
		OrderBys:   orderByMetricDesc("sessions"),
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, err
	}

	sources := make([]SourceRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row == nil {
			continue
		}
		sources = append(sources, SourceRow{
			Source:     dimensionValue(row, 0),
			Medium:     dimensionValue(row, 1),
			Sessions:   parseCount(metricValue(row, 0)),
			Users:      parseCount(metricValue(row, 1)),
			NewUsers:   parseCount(metricValue(row, 2)),
			BounceRate: parseRate(metricValue(row, 3)),
		})
	}
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Sessions > sources[j].Sessions })
	if len(sources) > limit {
		sources = sources[:limit]
	}
	return &TrafficResult{DateRange: dr, Sources: sources}, nil
}

func (c *Client) FetchDeviceBreakdown(ctx context.Context, dr daterange.Spec) (*DevicesResult, error) {
	resp, err := c.runReport(ctx, "devices", &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(dr),
		Dimensions: dimensions("deviceCategory", "operatingSystem", "browser"),
		Metrics:    metrics("sessions", "activeUsers", "bounceRate"),
		OrderBys:   orderByMetricDesc("sessions"),
	})
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row == nil {
			continue
		}
		devices = append(devices, DeviceRow{
			DeviceCategory:  dimensionValue(row, 0),
			OperatingSystem: dimensionValue(row, 1),
			Browser:         dimensionValue(row, 2),
			Sessions:        parseCount(metricValue(row, 0)),
			Users:           parseCount(metricValue(row, 1)),
			BounceRate:      parseRate(metricValue(row, 2)),
		})
	}
	sort.SliceStable(devices, func(i, j int) bool { return devices[i].Sessions > devices[j].Sessions })
	return &DevicesResult{DateRange: dr, Devices: devices}, nil
}

func (c *Client) FetchRealtimeUsers(ctx context.Context) (*RealtimeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Properties.RunRealtimeReport(c.property, &analyticsdata.RunRealtimeReportRequest{
		Dimensions: dimensions("country", "city", "deviceCategory"),
		Metrics:    metrics("activeUsers"),
	}).Context(ctx).Do()
	if err != nil {
		return nil, classifyError("realtime", err)
	}

	result := &RealtimeResult{ByLocation: make([]LocationRow, 0, len(resp.Rows))}
	for _, row := range resp.Rows {
		if row == nil {
			continue
		}
		users := parseCount(metricValue(row, 0))
		result.TotalActiveUsers += users
		result.ByLocation = append(result.ByLocation, LocationRow{
			Country: dimensionOrUnknown(row, 0),
			City:    dimensionOrUnknown(row, 1),
			Device:  dimensionOrUnknown(row, 2),
			Users:   users,
		})
	}
	sort.SliceStable(result.ByLocation, func(i, j int) bool {
		return result.ByLocation[i].Users > result.ByLocation[j].Users
	})
	return result, nil
}

func (c *Client) FetchCustom(ctx context.Context, q CustomQuery) (*CustomResult, error) {
	dims := normalizeNames(q.Dimensions, defaultCustomDimensions)
	mets := normalizeNames(q.Metrics, defaultCustomMetrics)
	limit := NormalizeLimit(q.Limit)

	resp, err := c.runReport(ctx, "custom", &analyticsdata.RunReportRequest{
		DateRanges: dateRanges(q.DateRange),
		Dimensions: dimensions(dims...),
		Metrics:    metrics(mets...),
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, err
	}

	rows := make([]CustomRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if row == nil {
			continue
		}
		out := CustomRow{
			Dimensions: make(map[string]string, len(dims)),
			Metrics:    make(map[string]float64, len(mets)),
		}
		for i, name := range dims {
			out.Dimensions[name] = dimensionValue(row, i)
		}
		for i, name := range mets {
			out.Metrics[name] = parseFloat(metricValue(row, i))
		}
		rows = append(rows, out)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	rowCount := resp.RowCount
	if rowCount < int64(len(rows)) {
		rowCount = int64(len(rows))
	}
	return &CustomResult{
		DateRange:  q.DateRange,
		Dimensions: dims,
		Metrics:    mets,
		Rows:       rows,
		RowCount:   rowCount,
	}, nil
}

func (c *Client) runReport(ctx context.Context, op string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Properties.RunReport(c.property, req).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(op, err)
	}
	return resp, nil
}

// classifyError maps transport and API failures onto the two upstream sentinels.
func classifyError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return fmt.Errorf("%s report: %w: %w", op, ErrUpstreamRejected, err)
		}
		return fmt.Errorf("%s report: %w: %w", op, ErrUpstreamUnavailable, err)
	}
	// Timeouts and transport errors land here.
	return fmt.Errorf("%s report: %w: %w", op, ErrUpstreamUnavailable, err)
}

func dateRanges(dr daterange.Spec) []*analyticsdata.DateRange {
	return []*analyticsdata.DateRange{{StartDate: dr.StartDate, EndDate: dr.EndDate}}
}

func dimensions(names ...string) []*analyticsdata.Dimension {
	out := make([]*analyticsdata.Dimension, 0, len(names))
	for _, name := range names {
		out = append(out, &analyticsdata.Dimension{Name: name})
	}
	return out
}

func metrics(names ...string) []*analyticsdata.Metric {
	out := make([]*analyticsdata.Metric, 0, len(names))
	for _, name := range names {
		out = append(out, &analyticsdata.Metric{Name: name})
	}
	return out
}

func orderByMetricDesc(name string) []*analyticsdata.OrderBy {
	return []*analyticsdata.OrderBy{{Metric: &analyticsdata.MetricOrderBy{MetricName: name}, Desc: true}}
}
