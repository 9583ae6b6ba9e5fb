package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"visuallab/internal/workflow"
)

func TestHubWaitReturnsNewerSnapshot(t *testing.T) {
	hub := workflow.NewHub()
	first := hub.Publish(workflow.NewState())

	result := make(chan workflow.State, 1)
	go func() {
		state, err := hub.Wait(context.Background(), first)
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		result <- state
	}()

	time.Sleep(10 * time.Millisecond)
	next := workflow.NewState()
	next.ActiveStage = workflow.StageModeling
	version := hub.Publish(next)

	select {
	case state := <-result:
		if state.Version != version || state.ActiveStage != workflow.StageModeling {
			t.Fatalf("unexpected snapshot %+v", state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestHubWaitReturnsImmediatelyWhenBehind(t *testing.T) {
	hub := workflow.NewHub()
	hub.Publish(workflow.NewState())
	hub.Publish(workflow.NewState())
	state, err := hub.Wait(context.Background(), 1)
	if err != nil || state.Version != 2 {
		t.Fatalf("Wait = %d, %v", state.Version, err)
	}
}

func TestHubWaitHonoursContext(t *testing.T) {
	hub := workflow.NewHub()
	v := hub.Publish(workflow.NewState())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := hub.Wait(ctx, v)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if state.Version != v {
		t.Fatalf("expected latest snapshot on timeout, got %d", state.Version)
	}
}

func TestHubSubscribeDeliversLatest(t *testing.T) {
	hub := workflow.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	updates := hub.Subscribe(ctx, 0)

	hub.Publish(workflow.NewState())
	select {
	case state := <-updates:
		if state.Version < 1 {
			t.Fatalf("version = %d", state.Version)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	for range updates {
	}
}

func TestHubPublishIsolatesSnapshot(t *testing.T) {
	hub := workflow.NewHub()
	state := workflow.NewState()
	state.LastError = &workflow.ErrorRecord{Message: "original"}
	hub.Publish(state)
	state.LastError.Message = "changed"
	if got := hub.Latest().LastError.Message; got != "original" {
		t.Fatalf("hub snapshot aliased caller state: %q", got)
	}
}
