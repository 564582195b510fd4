package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Andrew920528/vibe-30/client"
	"github.com/Andrew920528/vibe-30/internal/invariants"
)

func checkCmd(g *globals) *cobra.Command {
	var (
		probe      bool
		otherToken string
	)
	cmd := &cobra.Command{
		Use:   "check [BUCKET_ID]",
		Short: "Check buckets against the service's ordering and ownership rules",
		Long: "Without arguments every bucket you own is inspected. --probe also runs a\n" +
			"scratch bucket through every write; --other-token adds an isolation check\n" +
			"against a second user.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				ch := invariants.NewChecker(c)
				var found []invariants.Violation
				collect := func(v []invariants.Violation, err error) error {
					found = append(found, v...)
					return err
				}

				if len(args) == 1 {
					if err := collect(ch.CheckBucket(ctx, args[0])); err != nil {
						return err
					}
				} else if err := collect(ch.CheckAll(ctx)); err != nil {
					return err
				}
				if probe {
					if err := collect(ch.Probe(ctx)); err != nil {
						return err
					}
				}
				if otherToken != "" {
					other, err := client.New(g.api, otherToken, client.WithHTTPTimeout(g.timeout))
					if err != nil {
						return err
					}
					defer func() { _ = other.Close() }()
					if err := collect(ch.CheckIsolation(ctx, other)); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if len(found) == 0 {
					_, _ = fmt.Fprintln(out, color.New(color.FgHiGreen).Sprint("ok"))
					return nil
				}
				for _, v := range found {
					_, _ = fmt.Fprintln(out, color.New(color.FgRed).Sprint(v.String()))
				}
				return fmt.Errorf("%d violation(s)", len(found))
			})
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Exercise writes on a scratch bucket")
	cmd.Flags().StringVar(&otherToken, "other-token", "", "Token of a second user for the isolation check")
	return cmd
}
