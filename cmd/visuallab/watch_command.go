package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"visuallab/internal/api"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var pollTimeout time.Duration
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow workflow state changes",
		Long: "Follow workflow state changes.\n\n" +
			"Prints the current state, then a new report each time the daemon publishes a\n" +
			"snapshot. Stops on interrupt or after --count reports.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pollTimeout < 0 {
				return fmt.Errorf("--poll-timeout must not be negative")
			}
			return ctx.withClient(func(client *api.Client) error {
				return watchState(cmd, client, pollTimeout, count)
			})
		},
	}
	cmd.Flags().DurationVar(&pollTimeout, "poll-timeout", 30*time.Second, "Long-poll duration per request")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many reports (0 follows until interrupted)")
	return cmd
}

func watchState(cmd *cobra.Command, client *api.Client, pollTimeout time.Duration, count int) error {
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	resp, err := client.State(runCtx)
	if err != nil {
		return err
	}
	printed := 0
	for {
		fmt.Fprintf(out, "-- snapshot %d --\n", resp.Version)
		fmt.Fprint(out, renderStateReport(resp, colorize))
		printed++
		if count > 0 && printed >= count {
			return nil
		}

		// A lower version than the cursor means the daemon restarted with a
		// fresh hub; report that snapshot and follow the new sequence.
		since := resp.Version
		for resp.Version == since {
			next, err := client.Wait(runCtx, since, pollTimeout)
			if err != nil {
				if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
					return nil
				}
				return err
			}
			resp = next
		}
		if resp.Version < since {
			fmt.Fprintln(out, "-- daemon restarted; following new session --")
		}
	}
}
