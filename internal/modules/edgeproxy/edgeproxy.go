package edgeproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/middleware"
	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	Name = "edge-proxy"

	APIKeyHeader   = "X-API-Key"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 10 << 20
)

// CORS values shared by the preflight handler and the engine's cors middleware.
var (
	AllowMethods  = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	AllowHeaders  = []string{"Content-Type", "Authorization"}
	ExposeHeaders = []string{middleware.CacheStatusHeader, middleware.RequestIDHeader}
)

type Options struct {
	BackendURL string
	APIKey     string
	Timeout    time.Duration
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
	// CacheCheck reports on a shared cache backend in /health. Nil omits the cache field.
	CacheCheck func(ctx context.Context) error
	Logger     *zap.Logger
}

// Handler forwards /health and /api/* to the orchestrator backend.
type Handler struct {
	backend    *neturl.URL
	apiKey     string
	client     *http.Client
	cacheCheck func(ctx context.Context) error
	logger     *zap.Logger
}

func NewHandler(opts Options) (*Handler, error) {
	backend, err := ParseBackendURL(opts.BackendURL)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		backend:    backend,
		apiKey:     strings.TrimSpace(opts.APIKey),
		client:     client,
		cacheCheck: opts.CacheCheck,
		logger:     logger,
	}, nil
}

// ParseBackendURL accepts absolute http(s) URLs only.
func ParseBackendURL(raw string) (*neturl.URL, error) {
	u, err := neturl.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: must be an absolute http(s) URL", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

// RegisterRoutes mounts the proxy surface on r. cacheMW wraps /api/* and may be nil.
func (h *Handler) RegisterRoutes(r *gin.Engine, cacheMW gin.HandlerFunc) {
	r.OPTIONS("/*path", Preflight)
	r.GET("/health", h.health)

	api := r.Group("/api")
	if cacheMW != nil {
		api.Use(cacheMW)
	}
	api.GET("/*path", h.forward)
	api.POST("/*path", h.forward)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "This endpoint does not exist. Available endpoints: /health, /api/*")
	})
}

// Preflight answers OPTIONS requests that the cors middleware let through (no Origin header).
func Preflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", strings.Join(AllowMethods, ", "))
	c.Header("Access-Control-Allow-Headers", strings.Join(AllowHeaders, ", "))
	c.AbortWithStatus(http.StatusNoContent)
}

// Backend returns the configured backend base URL.
func (h *Handler) Backend() string { return h.backend.String() }

// GET /health
func (h *Handler) health(c *gin.Context) {
	body, err := h.fetchHealth(c.Request.Context(), c.GetHeader(middleware.RequestIDHeader))
	if err != nil {
		h.logger.Warn("backend health check failed", zap.String("backend", h.Backend()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "Backend unreachable",
			"proxy":  Name,
		})
		return
	}
	body["proxy"] = Name
	body["backend"] = h.Backend()
	if h.cacheCheck != nil {
		body["cache"] = "ok"
		if err := h.cacheCheck(c.Request.Context()); err != nil {
			// responses are still forwarded, only uncached
			h.logger.Warn("cache backend check failed", zap.Error(err))
			body["cache"] = "unavailable"
		}
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) fetchHealth(ctx context.Context, requestID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.target("/health", ""), nil)
	if err != nil {
		return nil, err
	}
	h.decorate(req, requestID)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend health returned %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode backend health: %w", err)
	}
	if body == nil {
		return nil, errors.New("backend health body is empty")
	}
	return body, nil
}

// GET|POST /api/*path
func (h *Handler) forward(c *gin.Context) {
	var payload io.Reader
	if c.Request.Body != nil && c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			response.BadRequest(c, "Invalid request body", err.Error())
			return
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, h.target(c.Request.URL.Path, c.Request.URL.RawQuery), payload)
	if err != nil {
		response.InternalError(c, "Failed to build backend request", err)
		return
	}
	h.decorate(req, c.GetHeader(middleware.RequestIDHeader))

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("backend unreachable", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.BadGateway(c, "Failed to reach backend", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		response.BadGateway(c, "Failed to reach backend", err)
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	if retry := resp.Header.Get("Retry-After"); retry != "" {
		c.Header("Retry-After", retry)
	}
	c.Data(resp.StatusCode, contentType, body)
}

func (h *Handler) target(path, rawQuery string) string {
	u := *h.backend
	u.Path = h.backend.Path + path
	u.RawPath = ""
	u.RawQuery = rawQuery
	return u.String()
}

func (h *Handler) decorate(req *http.Request, requestID string) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.apiKey != "" {
		req.Header.Set(APIKeyHeader, h.apiKey)
	}
	if requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}
}
