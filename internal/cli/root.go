package cli

import (
	"fmt"

	"github.com/ga-insights/core/internal/config"
	"github.com/ga-insights/core/internal/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// state is shared by every subcommand once the root pre-run has loaded it.
type state struct {
	configPath string
	cfg        *config.AppConfig
	logger     *zap.Logger
}

// NewRootCmd builds the gainsights command tree.
func NewRootCmd() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "gainsights",
		Short: "Ask Google Analytics questions in plain English",
		Long: `gainsights turns natural-language questions into GA4 reports and
narrates the results with a language model.

Run the API with "serve", put the caching edge proxy in front of it with
"proxy", and talk to a running server with "ask" and "overview".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Env:  cfg.Env,
				Dir:  cfg.LogDir(),
				Name: cmd.Name(),
			})
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			st.cfg = cfg
			st.logger = logger
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "config file (default is ./"+config.DefaultConfigPath+", optional)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCmd(st))
	root.AddCommand(newProxyCmd(st))
	root.AddCommand(newAskCmd(st))
	root.AddCommand(newOverviewCmd(st))
	root.AddCommand(newCacheCmd(st))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
