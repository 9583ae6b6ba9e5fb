package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"visuallab/internal/api"
	"visuallab/internal/workflow"
)

func newWorkflowCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newUploadCommand(ctx),
		newTrainCommand(ctx),
		newDownloadCommand(ctx),
		newNavigateCommand(ctx),
		newStatusCommand(ctx),
	}
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a CSV dataset for profiling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, ctx, workflow.OperationUpload, jsonOutput, func(c context.Context, client *api.Client) (api.StateResponse, error) {
				return client.Upload(c, args[0])
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the resulting state as JSON")
	return cmd
}

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on the uploaded dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, ctx, workflow.OperationTrain, jsonOutput, func(c context.Context, client *api.Client) (api.StateResponse, error) {
				return client.Train(c)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the resulting state as JSON")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the trained model artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(cmd, ctx, workflow.OperationDownload, jsonOutput, func(c context.Context, client *api.Client) (api.StateResponse, error) {
				return client.Download(c)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the resulting state as JSON")
	return cmd
}

func newNavigateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "navigate STAGE",
		Short:     "Select the active workflow stage",
		Long:      "Select the active workflow stage: upload, profiling, modeling or download.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Navigate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active stage: %s\n", stageTrail(resp.State.ActiveStage))
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the workflow state held by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.State(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderStateReport(resp, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the state as JSON")
	return cmd
}

type intentCall func(context.Context, *api.Client) (api.StateResponse, error)

func runIntent(cmd *cobra.Command, ctx *commandContext, kind workflow.OperationKind, jsonOutput bool, call intentCall) error {
	return ctx.withClient(func(client *api.Client) error {
		started := time.Now()
		resp, err := call(cmd.Context(), client)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := writeJSON(cmd, resp); err != nil {
				return err
			}
			return intentFailure(resp.State, kind, started)
		}
		return reportIntent(cmd.OutOrStdout(), resp.State, kind, started)
	})
}

// intentFailure returns the error recorded by the operation the command just
// issued, if any.
func intentFailure(state workflow.State, kind workflow.OperationKind, started time.Time) error {
	le := state.LastError
	if le == nil || le.Operation != kind || le.At.Before(started) {
		return nil
	}
	if le.StatusCode > 0 {
		return fmt.Errorf("%s failed (%s, status %d): %s", kind, le.Kind, le.StatusCode, le.Message)
	}
	return fmt.Errorf("%s failed (%s): %s", kind, le.Kind, le.Message)
}

func reportIntent(out io.Writer, state workflow.State, kind workflow.OperationKind, started time.Time) error {
	if err := intentFailure(state, kind, started); err != nil {
		return err
	}
	colorize := shouldColorize(out)
	switch kind {
	case workflow.OperationUpload:
		ds := state.Dataset
		if ds == nil {
			return nil
		}
		fmt.Fprintln(out, renderStatusLine("Dataset", statusOK,
			fmt.Sprintf("%d rows, %d columns, %d missing values", ds.RowCount, ds.ColumnCount, ds.MissingValueCount), colorize))
		if preview := renderPreview(*ds); preview != "" {
			fmt.Fprintln(out, preview)
		}
	case workflow.OperationTrain:
		if state.Metrics == nil {
			return nil
		}
		fmt.Fprintln(out, renderMetrics(*state.Metrics))
	case workflow.OperationDownload:
		if art := state.LastArtifact; art != nil {
			fmt.Fprintln(out, renderStatusLine("Artifact", statusOK,
				fmt.Sprintf("saved %s (%d bytes)", art.Path, art.Bytes), colorize))
		}
	}
	return nil
}

func stageNames() []string {
	stages := workflow.Stages()
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = string(stage)
	}
	return names
}
