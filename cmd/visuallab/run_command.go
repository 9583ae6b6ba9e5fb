package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"visuallab/internal/journal"
	"visuallab/internal/logging"
	"visuallab/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var train bool
	var download bool

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run the workflow once without a daemon",
		Long: "Run the workflow once in this process: upload FILE, then optionally train and\n" +
			"download the model. Operations are recorded in the journal. Fails when a daemon\n" +
			"already owns the session.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if download {
				train = true
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lock, err := acquireSessionLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Unlock()

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			orchestrator, err := buildOrchestrator(cfg, store, logger)
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open dataset: %w", err)
			}
			defer file.Close()

			steps := []runStep{{
				kind: workflow.OperationUpload,
				next: workflow.StageProfiling,
				run: func() (workflow.State, error) {
					return orchestrator.Upload(cmd.Context(), file)
				},
			}}
			if train {
				steps = append(steps, runStep{
					kind: workflow.OperationTrain,
					next: workflow.StageModeling,
					run: func() (workflow.State, error) {
						return orchestrator.StartTraining(cmd.Context())
					},
				})
			}
			if download {
				steps = append(steps, runStep{
					kind: workflow.OperationDownload,
					next: workflow.StageDownload,
					run: func() (workflow.State, error) {
						return orchestrator.DownloadArtifact(cmd.Context())
					},
				})
			}

			out := cmd.OutOrStdout()
			for _, step := range steps {
				started := time.Now()
				state, err := step.run()
				if err != nil {
					return err
				}
				if err := reportIntent(out, state, step.kind, started); err != nil {
					return err
				}
				if _, err := orchestrator.Navigate(step.next); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&train, "train", false, "Train a model after the upload")
	cmd.Flags().BoolVar(&download, "download", false, "Download the model after training (implies --train)")
	return cmd
}

// runStep is one intent of a one-shot session and the stage shown after it
// succeeds.
type runStep struct {
	kind workflow.OperationKind
	next workflow.Stage
	run  func() (workflow.State, error)
}
