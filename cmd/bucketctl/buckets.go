package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Andrew920528/vibe-30/client"
)

func bucketsCmd(g *globals) *cobra.Command {
	bucketsCmd := &cobra.Command{Use: "buckets", Short: "Bucket operations"}

	// list
	bucketsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your buckets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				bs, err := c.ListBuckets(ctx)
				if err != nil {
					return err
				}
				printBucketList(cmd.OutOrStdout(), bs)
				return nil
			})
		},
	})

	// create
	var activities []string
	createCmd := &cobra.Command{
		Use:     "create NAME",
		Short:   "Create a bucket",
		Example: `  bucketctl buckets create "Rainy day" -A "Puzzle" -A "Bake bread"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.CreateBucketRequest{Name: args[0]}
			for _, text := range activities {
				req.Activities = append(req.Activities, client.NewActivity{Text: text})
			}
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				b, err := c.CreateBucket(ctx, req)
				if err != nil {
					return err
				}
				printBucket(cmd.OutOrStdout(), b)
				return nil
			})
		},
	}
	createCmd.Flags().StringArrayVarP(&activities, "activity", "A", nil, "Activity text (repeatable)")
	bucketsCmd.AddCommand(createCmd)

	// get
	bucketsCmd.AddCommand(&cobra.Command{
		Use:   "get BUCKET_ID",
		Short: "Show a bucket and its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				b, err := c.GetBucket(ctx, args[0])
				if err != nil {
					return err
				}
				printBucket(cmd.OutOrStdout(), b)
				return nil
			})
		},
	})

	// rename
	bucketsCmd.AddCommand(&cobra.Command{
		Use:   "rename BUCKET_ID NAME",
		Short: "Rename a bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				b, err := c.RenameBucket(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				printBucket(cmd.OutOrStdout(), b)
				return nil
			})
		},
	})

	// delete
	bucketsCmd.AddCommand(&cobra.Command{
		Use:   "delete BUCKET_ID",
		Short: "Delete a bucket and all of its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.DeleteBucket(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	return bucketsCmd
}
