package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ga-insights/core/internal/adapter"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	server  string
	timeout time.Duration
}

func (f *clientFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "", "analytics server or edge proxy URL (default http://localhost:<port>)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 90*time.Second, "request timeout")
}

func (f *clientFlags) client(st *state) (*adapter.Client, error) {
	server := strings.TrimSpace(f.server)
	if server == "" {
		server = fmt.Sprintf("http://localhost:%d", st.cfg.Port)
	}
	return adapter.New(adapter.Options{
		BaseURL: server,
		Timeout: f.timeout,
		Logger:  st.logger.Named("adapter"),
	})
}

func newAskCmd(st *state) *cobra.Command {
	flags := &clientFlags{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a running server a question and print the narrative",
		Example: `  gainsights ask "What were my top pages last week?"
  gainsights ask --server https://edge.example.com "How many users are online?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client(st)
			if err != nil {
				return err
			}
			reply := client.Respond(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return reply.Err
		},
	}
	flags.bind(cmd)
	return cmd
}

func newOverviewCmd(st *state) *cobra.Command {
	flags := &clientFlags{}
	var dateRange string
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Fetch every dashboard section concurrently and print them as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client(st)
			if err != nil {
				return err
			}
			return printOverview(cmd, client, dateRange)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&dateRange, "date-range", "30days", "today, yesterday, 7days, 30days, 90days or 12months")
	return cmd
}

const overviewSections = 5

func printOverview(cmd *cobra.Command, client *adapter.Client, dateRange string) error {
	ctx := cmd.Context()
	client.CheckHealth(ctx)
	overview := client.Overview(ctx, dateRange)

	out := struct {
		State adapter.ConnectionState `json:"state"`
		*adapter.Overview
	}{State: client.State(), Overview: overview}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))

	if overview.Failed() == overviewSections {
		return fmt.Errorf("every overview section failed: %s", overview.Summary.Error)
	}
	return nil
}
