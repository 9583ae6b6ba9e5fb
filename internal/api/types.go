package api

import (
	"visuallab/internal/workflow"
)

// StateResponse is returned by every state-bearing endpoint.
type StateResponse struct {
	Version   uint64             `json:"version"`
	State     workflow.State     `json:"state"`
	Permitted workflow.ActionSet `json:"permitted"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NavigateRequest selects the active stage.
type NavigateRequest struct {
	Stage string `json:"stage"`
}

// HistoryResponse lists journal entries newest first.
type HistoryResponse struct {
	Operations []workflow.Operation `json:"operations"`
	Stats      map[string]int       `json:"stats,omitempty"`
}

// ClearResponse reports how many journal entries were removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// DaemonStatus describes the running session owner.
type DaemonStatus struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid"`
	BackendURL  string `json:"backendUrl"`
	JournalPath string `json:"journalPath"`
	LockPath    string `json:"lockPath"`
	ArtifactDir string `json:"artifactDir"`
	Version     uint64 `json:"version"`
}

// NewStateResponse wraps a snapshot with its gate verdict.
func NewStateResponse(state workflow.State) StateResponse {
	permitted := workflow.PermittedActions(state)
	if permitted == nil {
		permitted = workflow.ActionSet{}
	}
	return StateResponse{Version: state.Version, State: state, Permitted: permitted}
}
