package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"visuallab/internal/daemon"
	"visuallab/internal/journal"
	"visuallab/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow daemon in the foreground",
		Long: "Run the workflow daemon in the foreground.\n\n" +
			"The daemon owns the workflow session, records every operation in the journal,\n" +
			"and exposes the control API used by upload, train, download, status and watch.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "visuallab daemon listening on %s\n", addr)
			})
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, ready func(addr string)) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if bind := ctx.bindAddress(); bind != "" {
		cfg.Control.Bind = bind
	}

	logger, err := logging.NewDaemonLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal", logging.Error(err))
		return err
	}

	orchestrator, err := buildOrchestrator(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	d, err := daemon.New(cfg, store, orchestrator, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if ready != nil {
		ready(d.Address())
	}

	<-signalCtx.Done()
	logger.Info("visuallab daemon shutting down")
	return nil
}
