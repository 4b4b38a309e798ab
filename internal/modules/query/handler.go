package query

import (
	"context"
	"errors"
	"strings"

	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/ga-insights/core/internal/pkg/markdown"
	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runner answers one question.
type Runner interface {
	Run(ctx context.Context, question string) (*Response, error)
}

type Handler struct {
	runner Runner
	logger *zap.Logger
}

func NewHandler(runner Runner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, logger: logger}
}

// RegisterRoutes mounts POST /query behind limitMW, which may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limitMW gin.HandlerFunc) {
	if limitMW != nil {
		rg.POST("/query", limitMW, h.ask)
		return
	}
	rg.POST("/query", h.ask)
}

type askRequest struct {
	Question string `json:"question"`
}

// POST /api/query?format=html
func (h *Handler) ask(c *gin.Context) {
	var body askRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.runner.Run(c.Request.Context(), body.Question)
	if err != nil {
		h.fail(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "html") {
		out := *resp
		out.NarrativeHTML = markdown.Render(resp.Narrative)
		resp = &out
	}
	response.OK(c, resp)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(c, "Question is required", "")
	case errors.Is(err, ErrBackendUnavailable) && errors.Is(err, report.ErrUpstreamRejected):
		h.logger.Error("query rejected by analytics backend", zap.Error(err))
		response.ServiceUnavailable(c, "Analytics backend rejected the request", err)
	case errors.Is(err, ErrBackendUnavailable):
		h.logger.Warn("query failed, analytics backend unavailable", zap.Error(err))
		response.BadGateway(c, "Analytics backend unavailable", err)
	default:
		h.logger.Error("query failed", zap.Error(err))
		response.InternalError(c, "Failed to process query", err)
	}
}
