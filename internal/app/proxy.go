package app

import (
	"context"
	"errors"
	"time"

	"github.com/ga-insights/core/internal/config"
	"github.com/ga-insights/core/internal/middleware"
	"github.com/ga-insights/core/internal/modules/edgeproxy"
	"github.com/ga-insights/core/internal/pkg/cron"
	pkgredis "github.com/ga-insights/core/internal/pkg/redis"
	"github.com/gin-contrib/cors"
	"go.uber.org/zap"
)

const cacheSweepInterval = time.Minute

// NewProxy wires the edge proxy with a Redis cache when redis.url is set and an
// in-process cache otherwise.
func NewProxy(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.ValidateProxy(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Redis.URL == "" {
		logger.Info("redis.url is empty, using in-process proxy cache")
		return newProxy(logger, cfg, middleware.NewMemoryCacheStore(nil), nil)
	}
	rc, err := pkgredis.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a, err := newProxy(logger, cfg, middleware.NewRedisCacheStore(rc.Raw()), rc.Ping)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	a.closers = append(a.closers, rc.Close)
	return a, nil
}

// NewProxyWith builds the edge proxy engine around store.
func NewProxyWith(logger *zap.Logger, cfg *config.AppConfig, store middleware.CacheStore) (*App, error) {
	return newProxy(logger, cfg, store, nil)
}

func newProxy(logger *zap.Logger, cfg *config.AppConfig, store middleware.CacheStore, cacheCheck func(context.Context) error) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("proxy requires a cache store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	handler, err := edgeproxy.NewHandler(edgeproxy.Options{
		BackendURL: cfg.Proxy.BackendURL,
		APIKey:     cfg.Proxy.APIKey,
		Timeout:    cfg.Proxy.Timeout,
		CacheCheck: cacheCheck,
		Logger:     logger.Named(edgeproxy.Name),
	})
	if err != nil {
		return nil, err
	}

	// No HandleMethodNotAllowed here: the OPTIONS catch-all would turn every unknown GET into a 405.
	router := newEngine(cfg, logger)
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins, edgeproxy.AllowMethods, edgeproxy.AllowHeaders, edgeproxy.ExposeHeaders)))
	handler.RegisterRoutes(router, middleware.HTTPCache(store, middleware.HTTPCacheOptions{
		TTL:    cfg.Proxy.CacheTTL,
		Logger: logger.Named("cache"),
	}))

	sched := cron.New(logger.Named("cron"))
	if mem, ok := store.(*middleware.MemoryCacheStore); ok {
		sched.Register(cron.Job{
			Name:     "cache-sweep",
			Interval: cacheSweepInterval,
			Fn: func(context.Context) error {
				if n := mem.Sweep(); n > 0 {
					logger.Debug("swept expired cache entries", zap.Int("count", n), zap.Int("remaining", mem.Len()))
				}
				return nil
			},
		})
	}

	logger.Info("edge proxy configured", zap.String("backend", handler.Backend()), zap.Duration("cache_ttl", cfg.Proxy.CacheTTL))
	return &App{
		name:   "proxy",
		port:   cfg.Proxy.Port,
		router: router,
		logger: logger,
		sched:  sched,
	}, nil
}
