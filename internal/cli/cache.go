package cli

import (
	"errors"
	"fmt"

	"github.com/ga-insights/core/internal/middleware"
	pkgredis "github.com/ga-insights/core/internal/pkg/redis"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCacheCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the edge proxy response cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every cached proxy response from Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.cfg.Redis.URL == "" {
				return errors.New("redis.url (REDIS_URL) is not configured; the in-process cache is cleared by restarting the proxy")
			}
			rc, err := pkgredis.Connect(cmd.Context(), st.cfg.Redis.URL)
			if err != nil {
				return err
			}
			defer rc.Close()

			n, err := middleware.NewRedisCacheStore(rc.Raw()).Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge cache: %w", err)
			}
			st.logger.Info("proxy cache purged", zap.Int64("keys", n))
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d cached responses\n", n)
			return nil
		},
	})
	return cmd
}
