package workflow

import (
	"fmt"
	"strings"
	"time"

	"visuallab/internal/services"
	"visuallab/internal/summary"
)

// Stage is one of the four workflow phases a user can navigate between.
type Stage string

const (
	StageUpload    Stage = "upload"
	StageProfiling Stage = "profiling"
	StageModeling  Stage = "modeling"
	StageDownload  Stage = "download"
)

var stageOrder = []Stage{StageUpload, StageProfiling, StageModeling, StageDownload}

// Stages lists every stage in display order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage converts user input into a Stage.
func ParseStage(value string) (Stage, error) {
	candidate := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == candidate {
			return stage, nil
		}
	}
	return "", services.Wrap(services.KindPrecondition, "navigate", fmt.Sprintf("unknown stage %q", value), nil)
}

func (s Stage) String() string { return string(s) }

// OperationKind names a backend operation tracked by the orchestrator.
type OperationKind string

const (
	OperationUpload   OperationKind = "upload"
	OperationTrain    OperationKind = "train"
	OperationDownload OperationKind = "download"
)

// ErrorRecord describes the most recent failure surfaced to the user.
type ErrorRecord struct {
	Kind       services.Kind `json:"kind"`
	Message    string        `json:"message"`
	Stage      Stage         `json:"stage"`
	Operation  OperationKind `json:"operation"`
	StatusCode int           `json:"statusCode,omitempty"`
	At         time.Time     `json:"at"`
}

// ArtifactRecord describes the most recently persisted model artifact.
type ArtifactRecord struct {
	Path  string    `json:"path"`
	Bytes int64     `json:"bytes"`
	At    time.Time `json:"at"`
}

// State is the workflow aggregate. Values handed out by the orchestrator are
// deep copies and may be retained or modified freely.
type State struct {
	ActiveStage      Stage            `json:"activeStage"`
	Dataset          *summary.Dataset `json:"dataset"`
	Metrics          *summary.Metrics `json:"metrics"`
	TrainingInFlight bool             `json:"trainingInFlight"`
	UploadInFlight   bool             `json:"uploadInFlight"`
	DownloadInFlight bool             `json:"downloadInFlight"`
	LastError        *ErrorRecord     `json:"lastError"`
	LastArtifact     *ArtifactRecord  `json:"lastArtifact"`
	// Epoch counts successful uploads; metrics always belong to the current epoch.
	Epoch uint64 `json:"epoch"`
	// Version is the snapshot sequence assigned on publication.
	Version uint64 `json:"version"`
}

// NewState returns the session start state.
func NewState() State {
	return State{ActiveStage: StageUpload}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.Dataset != nil {
		ds := s.Dataset.Clone()
		out.Dataset = &ds
	}
	if s.Metrics != nil {
		m := *s.Metrics
		out.Metrics = &m
	}
	if s.LastError != nil {
		rec := *s.LastError
		out.LastError = &rec
	}
	if s.LastArtifact != nil {
		rec := *s.LastArtifact
		out.LastArtifact = &rec
	}
	return out
}

// InFlight reports whether an operation of kind is outstanding.
func (s State) InFlight(kind OperationKind) bool {
	switch kind {
	case OperationUpload:
		return s.UploadInFlight
	case OperationTrain:
		return s.TrainingInFlight
	case OperationDownload:
		return s.DownloadInFlight
	default:
		return false
	}
}

// Busy reports whether any operation is outstanding.
func (s State) Busy() bool {
	return s.UploadInFlight || s.TrainingInFlight || s.DownloadInFlight
}

func (s *State) setInFlight(kind OperationKind, value bool) {
	switch kind {
	case OperationUpload:
		s.UploadInFlight = value
	case OperationTrain:
		s.TrainingInFlight = value
	case OperationDownload:
		s.DownloadInFlight = value
	}
}
