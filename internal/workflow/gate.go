package workflow

import (
	"visuallab/internal/services"
)

// Action is a user-triggerable operation subject to gating.
type Action string

const (
	ActionUpload           Action = "upload"
	ActionStartTraining    Action = "start_training"
	ActionDownloadArtifact Action = "download_artifact"
)

var actionOrder = []Action{ActionUpload, ActionStartTraining, ActionDownloadArtifact}

// ActionSet lists permitted actions in canonical order.
type ActionSet []Action

// Has reports whether action is in the set.
func (s ActionSet) Has(action Action) bool {
	for _, a := range s {
		if a == action {
			return true
		}
	}
	return false
}

// PermittedActions returns the actions the given state allows. Navigation is
// always allowed and is not part of the set.
func PermittedActions(state State) ActionSet {
	out := make(ActionSet, 0, len(actionOrder))
	for _, action := range actionOrder {
		if denial(state, action) == "" {
			out = append(out, action)
		}
	}
	return out
}

// Check returns a precondition error when state forbids action.
func Check(state State, action Action) error {
	if reason := denial(state, action); reason != "" {
		return services.Wrap(services.KindPrecondition, string(action), reason, nil)
	}
	return nil
}

func denial(state State, action Action) string {
	switch action {
	case ActionUpload:
		return ""
	case ActionStartTraining:
		if state.Dataset == nil {
			return "no dataset uploaded"
		}
		if state.TrainingInFlight {
			return "training already in progress"
		}
		return ""
	case ActionDownloadArtifact:
		if state.Metrics == nil {
			return "no trained model available"
		}
		return ""
	default:
		return "unknown action"
	}
}
