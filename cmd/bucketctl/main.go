package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andrew920528/vibe-30/client"
	"github.com/Andrew920528/vibe-30/internal/auth"
)

type globals struct {
	api     string
	token   string
	timeout time.Duration
	retries int
	debug   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "bucketctl",
		Short:         "CLI client for the vibe30 bucket API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.api, "api", "a", envOr("VIBE30_API", "http://localhost:11600"), "Bucket service base URL")
	root.PersistentFlags().StringVarP(&g.token, "token", "t", envOr("VIBE30_TOKEN", auth.LocalDevAPIKey), "Bearer token")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 15*time.Second, "Per-request timeout")
	root.PersistentFlags().IntVar(&g.retries, "retries", 0, "Retries for failed writes")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Log HTTP traffic")

	root.AddCommand(
		bucketsCmd(g),
		activitiesCmd(g),
		drawCmd(g),
		timerCmd(g),
		checkCmd(g),
		tokenCmd(),
		healthCmd(g),
	)
	return root
}

// withClient builds a client for one command invocation and closes it after.
func (g *globals) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.New(g.api, g.token,
		client.WithHTTPTimeout(g.timeout),
		client.WithRetries(g.retries),
		client.WithDebugLogging(g.debug),
	)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return fn(cmd.Context(), c)
}

func healthCmd(g *globals) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if wait > 0 {
					if err := c.WaitHealthy(ctx, wait); err != nil {
						return err
					}
				}
				h, err := c.Health(ctx)
				if err != nil {
					return err
				}
				printHealth(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the service to become healthy")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
