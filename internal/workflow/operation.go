package workflow

import (
	"context"
	"time"

	"visuallab/internal/services"
)

// Outcome is the terminal result of a journaled operation.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeStale     Outcome = "stale"
)

// Operation is one accepted backend call as seen by the journal.
type Operation struct {
	ID           string        `json:"id"`
	Kind         OperationKind `json:"kind"`
	Epoch        uint64        `json:"epoch"`
	Stage        Stage         `json:"stage"`
	Detail       string        `json:"detail,omitempty"`
	Outcome      Outcome       `json:"outcome"`
	ErrorKind    services.Kind `json:"errorKind,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt,omitzero"`
}

// Recorder persists accepted operations. Failures are logged and never
// affect workflow state.
type Recorder interface {
	BeginOperation(ctx context.Context, op Operation) error
	FinishOperation(ctx context.Context, op Operation) error
}
