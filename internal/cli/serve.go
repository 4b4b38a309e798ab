package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ga-insights/core/internal/app"
	"github.com/ga-insights/core/internal/pkg/proctitle"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analytics API (GET /api/*, POST /api/query)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewServer(cmd.Context(), st.logger, st.cfg)
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), st.logger, a)
		},
	}
}

func newProxyCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Run the caching edge proxy in front of the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewProxy(cmd.Context(), st.logger, st.cfg)
			if err != nil {
				return err
			}
			return runApp(cmd.Context(), st.logger, a)
		},
	}
}

// runApp serves a until SIGINT/SIGTERM, then drains in-flight requests.
func runApp(ctx context.Context, logger *zap.Logger, a *app.App) error {
	if err := proctitle.Set(proctitle.ForCommand(a.Name())); err != nil {
		logger.Debug("set process title failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              a.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("app", a.Name()), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-errCh:
		if ok {
			_ = a.Shutdown()
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if closeErr := a.Shutdown(); closeErr != nil {
		logger.Warn("closing resources failed", zap.Error(closeErr))
	}
	if err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
