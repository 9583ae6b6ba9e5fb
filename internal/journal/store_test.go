package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"visuallab/internal/journal"
	"visuallab/internal/services"
	"visuallab/internal/testsupport"
	"visuallab/internal/workflow"
)

func TestBeginFinishRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := workflow.Operation{
		ID:        "op-1",
		Kind:      workflow.OperationUpload,
		Stage:     workflow.StageUpload,
		Detail:    "iris.csv",
		Outcome:   workflow.OutcomePending,
		StartedAt: started,
	}
	if err := store.BeginOperation(ctx, op); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}

	pending, err := store.Get(ctx, "op-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pending.Outcome != workflow.OutcomePending || !pending.FinishedAt.IsZero() {
		t.Fatalf("unexpected pending entry %+v", pending)
	}

	op.Outcome = workflow.OutcomeFailed
	op.ErrorKind = services.KindServer
	op.ErrorMessage = "boom: status 500"
	op.FinishedAt = started.Add(2 * time.Second)
	if err := store.FinishOperation(ctx, op); err != nil {
		t.Fatalf("FinishOperation: %v", err)
	}

	got, err := store.Get(ctx, "op-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != workflow.OutcomeFailed || got.ErrorKind != services.KindServer || got.ErrorMessage != "boom: status 500" {
		t.Fatalf("unexpected finished entry %+v", got)
	}
	if !got.StartedAt.Equal(started) || !got.FinishedAt.Equal(op.FinishedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
	if got.Detail != "iris.csv" || got.Kind != workflow.OperationUpload {
		t.Fatalf("fields not preserved: %+v", got)
	}
}

func TestFinishUnknownOperation(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	err := store.FinishOperation(context.Background(), workflow.Operation{ID: "missing", Outcome: workflow.OutcomeSucceeded})
	if !errors.Is(err, journal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, journal.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.BeginOperation(ctx, workflow.Operation{ID: id, Kind: workflow.OperationTrain, Stage: workflow.StageModeling, StartedAt: time.Now()}); err != nil {
			t.Fatalf("BeginOperation(%s): %v", id, err)
		}
	}
	ops, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ops) != 2 || ops[0].ID != "c" || ops[1].ID != "b" {
		t.Fatalf("unexpected order %+v", ops)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List default = %d, %v", len(all), err)
	}
}

func TestReconcilePendingAndStats(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Now()
	_ = store.BeginOperation(ctx, workflow.Operation{ID: "p1", Kind: workflow.OperationUpload, Stage: workflow.StageUpload, StartedAt: now})
	_ = store.BeginOperation(ctx, workflow.Operation{ID: "p2", Kind: workflow.OperationTrain, Stage: workflow.StageModeling, StartedAt: now})
	_ = store.BeginOperation(ctx, workflow.Operation{ID: "done", Kind: workflow.OperationTrain, Stage: workflow.StageModeling, StartedAt: now})
	if err := store.FinishOperation(ctx, workflow.Operation{ID: "done", Kind: workflow.OperationTrain, Outcome: workflow.OutcomeSucceeded, FinishedAt: now}); err != nil {
		t.Fatalf("FinishOperation: %v", err)
	}

	n, err := store.ReconcilePending(ctx, now)
	if err != nil || n != 2 {
		t.Fatalf("ReconcilePending = %d, %v", n, err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[workflow.OutcomeFailed] != 2 || stats[workflow.OutcomeSucceeded] != 1 || stats[workflow.OutcomePending] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}

	cleared, err := store.Clear(ctx)
	if err != nil || cleared != 3 {
		t.Fatalf("Clear = %d, %v", cleared, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.BeginOperation(context.Background(), workflow.Operation{ID: "persist", Kind: workflow.OperationDownload, Stage: workflow.StageDownload, StartedAt: time.Now()}); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}
	first.Close()

	second := testsupport.MustOpenJournal(t, cfg)
	if _, err := second.Get(context.Background(), "persist"); err != nil {
		t.Fatalf("entry lost across reopen: %v", err)
	}
	if second.Path() != cfg.JournalPath() {
		t.Fatalf("path = %s", second.Path())
	}
}

func TestStoreRecordsOrchestratorOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	fb := testsupport.NewFakeBackend(t)

	client := newClient(t, fb.URL)
	o := workflow.New(client, workflow.NewFileSink(cfg.Paths.ArtifactDir, cfg.Artifact.FileName, false), workflow.WithRecorder(store))
	if _, err := o.Upload(context.Background(), testsupport.OpenCSV(t, "iris.csv", "sepal,label\n5.1,setosa\n")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := o.StartTraining(context.Background()); err != nil {
		t.Fatalf("StartTraining: %v", err)
	}

	ops, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(ops))
	}
	if ops[0].Kind != workflow.OperationTrain || ops[0].Outcome != workflow.OutcomeSucceeded || ops[0].Epoch != 1 {
		t.Fatalf("unexpected train entry %+v", ops[0])
	}
	if ops[1].Kind != workflow.OperationUpload || ops[1].Detail == "" {
		t.Fatalf("unexpected upload entry %+v", ops[1])
	}
}
