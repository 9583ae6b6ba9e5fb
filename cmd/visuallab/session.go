package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"

	"visuallab/internal/backend"
	"visuallab/internal/config"
	"visuallab/internal/workflow"
)

// buildOrchestrator wires the backend client, artifact sink and optional
// journal recorder into one workflow session.
func buildOrchestrator(cfg *config.Config, recorder workflow.Recorder, logger *slog.Logger) (*workflow.Orchestrator, error) {
	client, err := backend.New(backend.Config{
		BaseURL:          cfg.Service.BaseURL,
		Timeout:          cfg.RequestTimeout(),
		MaxResponseBytes: cfg.MaxResponseBytes(),
		PreviewLimit:     cfg.Workflow.PreviewLimit,
		UserAgent:        cfg.Service.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	sink := workflow.NewFileSink(cfg.Paths.ArtifactDir, cfg.Artifact.FileName, cfg.Artifact.OverwriteExisting)
	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithOperationTimeout(cfg.OperationTimeout()),
	}
	if recorder != nil {
		opts = append(opts, workflow.WithRecorder(recorder))
	}
	return workflow.New(client, sink, opts...), nil
}

// acquireSessionLock takes the same lock the daemon holds so a one-shot run
// never competes with a running session.
func acquireSessionLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("a visuallab daemon owns the session; use upload/train/download instead of run")
	}
	return lock, nil
}
