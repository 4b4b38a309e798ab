package app

import (
	"context"
	"errors"
	"time"

	"github.com/ga-insights/core/internal/config"
	"github.com/ga-insights/core/internal/middleware"
	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
	"github.com/ga-insights/core/internal/modules/health"
	"github.com/ga-insights/core/internal/modules/query"
	"github.com/ga-insights/core/internal/pkg/cron"
	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-contrib/cors"
	"go.uber.org/zap"
)

const limiterGCInterval = 5 * time.Minute

// ServerDeps are the external collaborators of the orchestrator API.
type ServerDeps struct {
	Reports   report.Fetcher
	Property  string
	Completer ai.Completer
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewServer wires the GA4 client and the model provider from cfg.
func NewServer(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.ValidateServe(); err != nil {
		return nil, err
	}

	reports, err := report.New(ctx, report.Options{
		PropertyID:      cfg.Analytics.PropertyID,
		CredentialsFile: cfg.Analytics.CredentialsFile,
		CredentialsJSON: cfg.Analytics.CredentialsJSON,
		Timeout:         cfg.Analytics.Timeout,
	})
	if err != nil {
		return nil, err
	}
	completer, err := ai.New(cfg.AI.ProviderConfig(""))
	if err != nil {
		return nil, err
	}
	return NewServerWith(logger, cfg, ServerDeps{
		Reports:   reports,
		Property:  reports.Property(),
		Completer: completer,
	})
}

// NewServerWith builds the orchestrator API around the given collaborators.
func NewServerWith(logger *zap.Logger, cfg *config.AppConfig, deps ServerDeps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Reports == nil || deps.Completer == nil {
		return nil, errors.New("server requires a report client and a model provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	resolver := daterange.NewResolver(now, cfg.Location())
	orchestrator, err := query.New(query.Options{
		Interpreter: query.NewInterpreter(deps.Completer, cfg.AI.InterpretModel),
		Synthesizer: query.NewSynthesizer(deps.Completer, cfg.AI.SynthModel),
		Reports:     deps.Reports,
		Resolver:    resolver,
		Now:         now,
		Logger:      logger.Named("query"),
	})
	if err != nil {
		return nil, err
	}

	router := newEngine(cfg, logger)
	router.HandleMethodNotAllowed = true
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins, serverMethods, serverHeaders, []string{middleware.RequestIDHeader})))

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	health.RegisterRoutes(router, deps.Property, now)
	api := router.Group("/api")
	report.NewHandler(deps.Reports, resolver, logger.Named("report")).RegisterRoutes(api)
	query.NewHandler(orchestrator, logger.Named("query")).RegisterRoutes(api, middleware.RateLimit(limiter))
	router.NoRoute(notFound("This endpoint does not exist"))
	router.NoMethod(response.MethodNotAllowed)

	sched := cron.New(logger.Named("cron"))
	sched.Register(cron.Job{
		Name:     "ratelimit-gc",
		Interval: limiterGCInterval,
		Fn: func(context.Context) error {
			if n := limiter.GC(); n > 0 {
				logger.Debug("dropped idle rate limit buckets", zap.Int("count", n))
			}
			return nil
		},
	})

	return &App{
		name:   "server",
		port:   cfg.Port,
		router: router,
		logger: logger,
		sched:  sched,
	}, nil
}
