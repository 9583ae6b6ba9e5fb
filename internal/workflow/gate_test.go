package workflow_test

import (
	"errors"
	"reflect"
	"testing"

	"visuallab/internal/services"
	"visuallab/internal/summary"
	"visuallab/internal/workflow"
)

func TestPermittedActions(t *testing.T) {
	dataset := scenarioDataset()
	metrics := scenarioMetrics()
	cases := []struct {
		name  string
		state workflow.State
		want  workflow.ActionSet
	}{
		{"initial", workflow.NewState(), workflow.ActionSet{workflow.ActionUpload}},
		{"dataset", workflow.State{Dataset: &dataset}, workflow.ActionSet{workflow.ActionUpload, workflow.ActionStartTraining}},
		{"training", workflow.State{Dataset: &dataset, TrainingInFlight: true}, workflow.ActionSet{workflow.ActionUpload}},
		{"trained", workflow.State{Dataset: &dataset, Metrics: &metrics}, workflow.ActionSet{workflow.ActionUpload, workflow.ActionStartTraining, workflow.ActionDownloadArtifact}},
		{"retraining", workflow.State{Dataset: &dataset, Metrics: &metrics, TrainingInFlight: true}, workflow.ActionSet{workflow.ActionUpload, workflow.ActionDownloadArtifact}},
		{"uploading", workflow.State{UploadInFlight: true}, workflow.ActionSet{workflow.ActionUpload}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := workflow.PermittedActions(tc.state)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("PermittedActions = %v, want %v", got, tc.want)
			}
			if again := workflow.PermittedActions(tc.state); !reflect.DeepEqual(got, again) {
				t.Fatalf("gate is not pure: %v vs %v", got, again)
			}
		})
	}
}

func TestCheckReportsPrecondition(t *testing.T) {
	err := workflow.Check(workflow.NewState(), workflow.ActionDownloadArtifact)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if services.MessageOf(err) != "no trained model available" {
		t.Fatalf("message = %q", services.MessageOf(err))
	}
	dataset := summary.Dataset{}
	if err := workflow.Check(workflow.State{Dataset: &dataset}, workflow.ActionStartTraining); err != nil {
		t.Fatalf("training should pass with a dataset: %v", err)
	}
}

func TestParseStage(t *testing.T) {
	stage, err := workflow.ParseStage(" Modeling ")
	if err != nil || stage != workflow.StageModeling {
		t.Fatalf("ParseStage = %q, %v", stage, err)
	}
	if _, err := workflow.ParseStage("deploy"); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}
