package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Andrew920528/vibe-30/client"
)

func activitiesCmd(g *globals) *cobra.Command {
	activitiesCmd := &cobra.Command{Use: "activities", Short: "Activity operations"}

	// add
	var description string
	addCmd := &cobra.Command{
		Use:   "add BUCKET_ID TEXT",
		Short: "Append an activity to a bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				a, err := c.AddActivity(ctx, args[0], args[1], desc)
				if err != nil {
					return err
				}
				printActivity(cmd.OutOrStdout(), *a)
				return nil
			})
		},
	}
	addCmd.Flags().StringVarP(&description, "description", "d", "", "Optional description")
	activitiesCmd.AddCommand(addCmd)

	// remove
	var bucketID string
	removeCmd := &cobra.Command{
		Use:   "remove ACTIVITY_ID",
		Short: "Remove an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.RemoveActivity(ctx, bucketID, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
	removeCmd.Flags().StringVarP(&bucketID, "bucket", "b", "", "Bucket the activity belongs to")
	activitiesCmd.AddCommand(removeCmd)

	// reorder
	activitiesCmd.AddCommand(&cobra.Command{
		Use:   "reorder BUCKET_ID ACTIVITY_ID...",
		Short: "Move the listed activities to the front, in order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withClient(cmd, func(ctx context.Context, c *client.Client) error {
				b, err := c.ReorderActivities(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				printBucket(cmd.OutOrStdout(), b)
				return nil
			})
		},
	})

	return activitiesCmd
}
