package report

import (
	"math"
	"strconv"
	"strings"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

const unknownValue = "Unknown"

// parseCount never fails: missing, malformed or negative values become 0.
func parseCount(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0
		}
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return int64(f)
}

// parseFloat is parseCount for non-integral measures such as durations.
func parseFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// parseRate clamps into [0,1].
func parseRate(raw string) float64 {
	f := parseFloat(raw)
	if f > 1 {
		return 1
	}
	return f
}

func dimensionValue(row *analyticsdata.Row, i int) string {
	if row == nil || i >= len(row.DimensionValues) || row.DimensionValues[i] == nil {
		return ""
	}
	return row.DimensionValues[i].Value
}

func dimensionOrUnknown(row *analyticsdata.Row, i int) string {
	if v := dimensionValue(row, i); v != "" {
		return v
	}
	return unknownValue
}

func metricValue(row *analyticsdata.Row, i int) string {
	if row == nil || i >= len(row.MetricValues) || row.MetricValues[i] == nil {
		return ""
	}
	return row.MetricValues[i].Value
}

func normalizeNames(names []string, fallback []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		n := strings.TrimSpace(name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		out = append(out, fallback...)
	}
	return out
}
