package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ga-insights/core/internal/config"
	"github.com/ga-insights/core/internal/middleware"
	"github.com/ga-insights/core/internal/pkg/cron"
	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App is one runnable HTTP surface: the orchestrator API or the edge proxy.
type App struct {
	name    string
	port    int
	router  *gin.Engine
	logger  *zap.Logger
	sched   *cron.Scheduler
	cancel  context.CancelFunc
	closers []func() error
}

// Name is "server" or "proxy".
func (a *App) Name() string { return a.name }

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Jobs lists the maintenance jobs and their last outcome.
func (a *App) Jobs() []cron.Snapshot { return a.sched.List() }

// Start launches the maintenance jobs; they stop on Shutdown.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sched.Start(ctx)
}

// Shutdown stops background jobs and closes owned connections.
func (a *App) Shutdown() error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newEngine(cfg *config.AppConfig, logger *zap.Logger) *gin.Engine {
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	return router
}

func notFound(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.NotFound(c, message)
	}
}
