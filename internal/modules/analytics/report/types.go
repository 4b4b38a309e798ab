package report

import (
	"strings"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
)

// DataType names one of the fixed report shapes.
type DataType string

const (
	Summary  DataType = "summary"
	Pages    DataType = "pages"
	Traffic  DataType = "traffic"
	Devices  DataType = "devices"
	Realtime DataType = "realtime"
)

var dataTypes = []DataType{Summary, Pages, Traffic, Devices, Realtime}

// ParseDataType normalizes raw input; ok is false outside the vocabulary.
func ParseDataType(raw string) (DataType, bool) {
	t := DataType(strings.ToLower(strings.TrimSpace(raw)))
	for _, d := range dataTypes {
		if d == t {
			return t, true
		}
	}
	return "", false
}

// Result is implemented by every report shape.
type Result interface {
	DataType() DataType
}

type SummaryMetrics struct {
	Sessions           int64   `json:"sessions"`
	ActiveUsers        int64   `json:"activeUsers"`
	NewUsers           int64   `json:"newUsers"`
	PageViews          int64   `json:"pageViews"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	BounceRate         float64 `json:"bounceRate"`
	EngagementRate     float64 `json:"engagementRate"`
}

type SummaryResult struct {
	DateRange daterange.Spec `json:"dateRange"`
	Metrics   SummaryMetrics `json:"metrics"`
}

func (*SummaryResult) DataType() DataType { return Summary }

type PageRow struct {
	Path        string  `json:"path"`
	Title       string  `json:"title"`
	Views       int64   `json:"views"`
	Users       int64   `json:"users"`
	AvgDuration float64 `json:"avgDuration"`
	BounceRate  float64 `json:"bounceRate"`
}

// PagesResult rows are ordered by Views, descending.
type PagesResult struct {
	DateRange daterange.Spec `json:"dateRange"`
	Pages     []PageRow      `json:"pages"`
}

func (*PagesResult) DataType() DataType { return Pages }

type SourceRow struct {
	Source     string  `json:"source"`
	Medium     string  `json:"medium"`
	Sessions   int64   `json:"sessions"`
	Users      int64   `json:"users"`
	NewUsers   int64   `json:"newUsers"`
	BounceRate float64 `json:"bounceRate"`
}

// TrafficResult rows are ordered by Sessions, descending.
type TrafficResult struct {
	DateRange daterange.Spec `json:"dateRange"`
	Sources   []SourceRow    `json:"sources"`
}

func (*TrafficResult) DataType() DataType { return Traffic }

type DeviceRow struct {
	DeviceCategory  string  `json:"deviceCategory"`
	OperatingSystem string  `json:"operatingSystem"`
	Browser         string  `json:"browser"`
	Sessions        int64   `json:"sessions"`
	Users           int64   `json:"users"`
	BounceRate      float64 `json:"bounceRate"`
}

type DevicesResult struct {
	DateRange daterange.Spec `json:"dateRange"`
	Devices   []DeviceRow    `json:"devices"`
}

func (*DevicesResult) DataType() DataType { return Devices }

type LocationRow struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Device  string `json:"device"`
	Users   int64  `json:"users"`
}

// RealtimeResult has no date range; TotalActiveUsers is the sum over ByLocation.
type RealtimeResult struct {
	TotalActiveUsers int64         `json:"totalActiveUsers"`
	ByLocation       []LocationRow `json:"byLocation"`
}

func (*RealtimeResult) DataType() DataType { return Realtime }

// CustomQuery describes an arbitrary dimensions x metrics report.
type CustomQuery struct {
	DateRange  daterange.Spec
	Dimensions []string
	Metrics    []string
	Limit      int
}

type CustomRow struct {
	Dimensions map[string]string  `json:"dimensions"`
	Metrics    map[string]float64 `json:"metrics"`
}

type CustomResult struct {
	DateRange  daterange.Spec `json:"dateRange"`
	Dimensions []string       `json:"dimensions"`
	Metrics    []string       `json:"metrics"`
	Rows       []CustomRow    `json:"rows"`
	RowCount   int64          `json:"rowCount"`
}

var (
	defaultCustomDimensions = []string{"date"}
	defaultCustomMetrics    = []string{"activeUsers", "sessions"}
)
