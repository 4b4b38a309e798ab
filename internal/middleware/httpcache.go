package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CacheStatusHeader = "X-Cache-Status"
	CacheHit          = "HIT"
	CacheMiss         = "MISS"

	DefaultHTTPCacheTTL     = 300 * time.Second
	defaultHTTPCacheMaxBody = 1 << 20 // 1 MiB
	cacheWriteTimeout       = 5 * time.Second
)

// CacheStore keeps serialized responses. Implementations must be safe for concurrent use.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Purge(ctx context.Context) (int64, error)
}

type HTTPCacheOptions struct {
	TTL          time.Duration
	MaxBodyBytes int
	Logger       *zap.Logger
	// OnStored, when set, runs after each background cache write.
	OnStored func(key string, err error)
}

type cachedHTTPResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
	Body        []byte `json:"-"`
}

// cacheBodyWriter copies the body aside and stamps cache headers just before they are flushed.
type cacheBodyWriter struct {
	gin.ResponseWriter
	body         []byte
	maxBodyBytes int
	overflow     bool
	cacheControl string
	decorated    bool
}

func (w *cacheBodyWriter) Write(data []byte) (int, error) {
	w.decorate()
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *cacheBodyWriter) WriteString(s string) (int, error) {
	w.decorate()
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *cacheBodyWriter) WriteHeaderNow() {
	w.decorate()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *cacheBodyWriter) decorate() {
	if w.decorated || w.ResponseWriter.Written() {
		return
	}
	w.decorated = true
	w.Header().Set(CacheStatusHeader, CacheMiss)
	if isCacheableStatus(w.ResponseWriter.Status()) && w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", w.cacheControl)
	}
}

func (w *cacheBodyWriter) capture(data []byte) {
	if w.maxBodyBytes <= 0 || w.overflow || len(data) == 0 {
		return
	}
	remaining := w.maxBodyBytes - len(w.body)
	if remaining <= 0 {
		w.overflow = true
		return
	}
	if len(data) > remaining {
		w.body = append(w.body, data[:remaining]...)
		w.overflow = true
		return
	}
	w.body = append(w.body, data...)
}

func normalizeHTTPCacheOptions(opts HTTPCacheOptions) HTTPCacheOptions {
	if opts.TTL <= 0 {
		opts.TTL = DefaultHTTPCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultHTTPCacheMaxBody
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// HTTPCache serves repeated GET requests from store, keyed by method and request URI.
// Only 2xx responses are stored, and the write happens after the response is sent.
func HTTPCache(store CacheStore, opts HTTPCacheOptions) gin.HandlerFunc {
	options := normalizeHTTPCacheOptions(opts)
	cacheControl := "public, max-age=" + strconv.Itoa(int(options.TTL/time.Second))

	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		cacheKey := CacheKey(c.Request)
		if payload, ok := readCachedResponse(c.Request.Context(), store, cacheKey); ok {
			c.Header(CacheStatusHeader, CacheHit)
			c.Header("Cache-Control", cacheControl)
			c.Data(payload.Status, payload.ContentType, payload.Body)
			c.Abort()
			return
		}

		buffer := &cacheBodyWriter{
			ResponseWriter: c.Writer,
			maxBodyBytes:   options.MaxBodyBytes,
			cacheControl:   cacheControl,
		}
		c.Writer = buffer
		c.Next()

		status := buffer.Status()
		if !isCacheableStatus(status) || buffer.overflow || len(buffer.body) == 0 {
			return
		}

		raw, err := json.Marshal(cachedHTTPResponse{
			Status:      status,
			ContentType: buffer.Header().Get("Content-Type"),
			BodyBase64:  base64.StdEncoding.EncodeToString(buffer.body),
		})
		if err != nil {
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			err := store.Set(ctx, cacheKey, raw, options.TTL)
			if err != nil {
				options.Logger.Warn("cache write failed", zap.String("key", cacheKey), zap.Error(err))
			}
			if options.OnStored != nil {
				options.OnStored(cacheKey, err)
			}
		}()
	}
}

// CacheKey is the store key for r: method plus path and query string.
func CacheKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

func readCachedResponse(ctx context.Context, store CacheStore, cacheKey string) (cachedHTTPResponse, bool) {
	raw, ok, err := store.Get(ctx, cacheKey)
	if err != nil || !ok || len(raw) == 0 {
		return cachedHTTPResponse{}, false
	}
	var payload cachedHTTPResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return cachedHTTPResponse{}, false
	}
	if payload.Status <= 0 {
		payload.Status = http.StatusOK
	}
	if payload.ContentType == "" {
		payload.ContentType = "application/json; charset=utf-8"
	}
	body, err := base64.StdEncoding.DecodeString(payload.BodyBase64)
	if err != nil {
		return cachedHTTPResponse{}, false
	}
	payload.Body = body
	return payload, true
}

func isCacheableStatus(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
