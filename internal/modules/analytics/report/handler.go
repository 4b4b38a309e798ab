package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	fetcher  Fetcher
	resolver *daterange.Resolver
	logger   *zap.Logger
}

func NewHandler(fetcher Fetcher, resolver *daterange.Resolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{fetcher: fetcher, resolver: resolver, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/summary", h.getSummary)
	rg.GET("/pages", h.getPages)
	rg.GET("/traffic", h.getTraffic)
	rg.GET("/devices", h.getDevices)
	rg.GET("/realtime", h.getRealtime)
	rg.GET("/custom", h.getCustom)
}

// GET /api/summary?dateRange=
func (h *Handler) getSummary(c *gin.Context) {
	dr, ok := h.bindDateRange(c)
	if !ok {
		return
	}
	result, err := h.fetcher.FetchSummary(c.Request.Context(), dr)
	if err != nil {
		h.fail(c, "Failed to fetch analytics summary", err)
		return
	}
	response.OK(c, result)
}

// GET /api/pages?dateRange=&limit=
func (h *Handler) getPages(c *gin.Context) {
	dr, ok := h.bindDateRange(c)
	if !ok {
		return
	}
	limit, ok := bindLimit(c)
	if !ok {
		return
	}
	result, err := h.fetcher.FetchTopPages(c.Request.Context(), dr, limit)
	if err != nil {
		h.fail(c, "Failed to fetch top pages", err)
		return
	}
	response.OK(c, result)
}

// GET /api/traffic?dateRange=&limit=
func (h *Handler) getTraffic(c *gin.Context) {
	dr, ok := h.bindDateRange(c)
	if !ok {
		return
	}
	limit, ok := bindLimit(c)
	if !ok {
		return
	}
	result, err := h.fetcher.FetchTrafficSources(c.Request.Context(), dr, limit)
	if err != nil {
		h.fail(c, "Failed to fetch traffic sources", err)
		return
	}
	response.OK(c, result)
}

// GET /api/devices?dateRange=
func (h *Handler) getDevices(c *gin.Context) {
	dr, ok := h.bindDateRange(c)
	if !ok {
		return
	}
	result, err := h.fetcher.FetchDeviceBreakdown(c.Request.Context(), dr)
	if err != nil {
		h.fail(c, "Failed to fetch device data", err)
		return
	}
	response.OK(c, result)
}

// GET /api/realtime
func (h *Handler) getRealtime(c *gin.Context) {
	result, err := h.fetcher.FetchRealtimeUsers(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to fetch realtime data", err)
		return
	}
	response.OK(c, result)
}

// GET /api/custom?dimensions=a,b&metrics=x,y&dateRange=&limit=
func (h *Handler) getCustom(c *gin.Context) {
	dr, ok := h.bindDateRange(c)
	if !ok {
		return
	}
	limit, ok := bindLimit(c)
	if !ok {
		return
	}
	result, err := h.fetcher.FetchCustom(c.Request.Context(), CustomQuery{
		DateRange:  dr,
		Dimensions: splitList(c.QueryArray("dimensions")),
		Metrics:    splitList(c.QueryArray("metrics")),
		Limit:      limit,
	})
	if err != nil {
		h.fail(c, "Failed to fetch custom report", err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) bindDateRange(c *gin.Context) (daterange.Spec, bool) {
	dr, err := ResolveParams(h.resolver, c.Query("dateRange"), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		response.BadRequest(c, "Invalid date range", err.Error())
		return daterange.Spec{}, false
	}
	return dr, true
}

func bindLimit(c *gin.Context) (int, bool) {
	limit, err := ParseLimit(c.Query("limit"))
	if err != nil {
		response.BadRequest(c, "Invalid limit", err.Error())
		return 0, false
	}
	return limit, true
}

func (h *Handler) fail(c *gin.Context, errText string, err error) {
	h.logger.Warn("report fetch failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	switch {
	case errors.Is(err, ErrUpstreamRejected):
		response.ServiceUnavailable(c, errText, err)
	case errors.Is(err, ErrUpstreamUnavailable):
		response.BadGateway(c, errText, err)
	default:
		response.InternalError(c, errText, err)
	}
}

// ResolveParams resolves query string style range parameters. Empty keyword means daterange.Default.
func ResolveParams(resolver *daterange.Resolver, rawKeyword, startDate, endDate string) (daterange.Spec, error) {
	keyword := daterange.Default
	if strings.TrimSpace(rawKeyword) != "" {
		k, ok := daterange.ParseKeyword(rawKeyword)
		if !ok {
			return daterange.Spec{}, fmt.Errorf("%w: %q, want one of %s or custom", daterange.ErrUnknownKeyword, rawKeyword, keywordList())
		}
		keyword = k
	}
	var explicit *daterange.Explicit
	if keyword == daterange.Custom {
		explicit = &daterange.Explicit{StartDate: startDate, EndDate: endDate}
	}
	return resolver.Resolve(keyword, explicit)
}

// ParseLimit accepts an empty value (DefaultLimit) or an integer in [1, MaxLimit].
func ParseLimit(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidLimit, s)
	}
	if n < 1 || n > MaxLimit {
		return 0, fmt.Errorf("%w: %d is outside 1-%d", ErrInvalidLimit, n, MaxLimit)
	}
	return n, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func keywordList() string {
	keywords := daterange.Symbolic()
	names := make([]string, len(keywords))
	for i, k := range keywords {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
