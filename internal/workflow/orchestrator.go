package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"visuallab/internal/backend"
	"visuallab/internal/logging"
	"visuallab/internal/services"
	"visuallab/internal/summary"
)

// Orchestrator owns the workflow state and serializes every mutation.
// Backend calls run on the calling goroutine without holding the lock.
type Orchestrator struct {
	transport backend.Service
	sink      ArtifactSink
	recorder  Recorder
	hub       *Hub
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	mu    sync.Mutex
	state State
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder journals accepted operations.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithHub publishes snapshots to an externally owned hub.
func WithHub(hub *Hub) Option {
	return func(o *Orchestrator) {
		if hub != nil {
			o.hub = hub
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOperationTimeout bounds each backend call; zero leaves calls unbounded.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = timeout }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an orchestrator at the session start state.
func New(transport backend.Service, sink ArtifactSink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: transport,
		sink:      sink,
		hub:       NewHub(),
		logger:    logging.NewNop(),
		now:       time.Now,
		state:     NewState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "orchestrator")
	o.mu.Lock()
	o.publishLocked()
	o.mu.Unlock()
	return o
}

// Hub exposes the snapshot hub for subscribers.
func (o *Orchestrator) Hub() *Hub {
	return o.hub
}

// Snapshot returns a deep copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Permitted returns the gate's verdict for the current state.
func (o *Orchestrator) Permitted() ActionSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return PermittedActions(o.state)
}

// Navigate changes the active stage. It never touches data or in-flight flags.
func (o *Orchestrator) Navigate(stage Stage) (State, error) {
	stage, err := ParseStage(string(stage))
	if err != nil {
		return o.Snapshot(), err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.ActiveStage != stage {
		o.state.ActiveStage = stage
		o.publishLocked()
	}
	return o.state.Clone(), nil
}

// Upload ingests file as the new dataset. Transport failures are recorded in
// LastError; only precondition and concurrency rejections are returned.
func (o *Orchestrator) Upload(ctx context.Context, file backend.FileHandle) (State, error) {
	if backend.IsNilHandle(file) {
		return o.Snapshot(), services.Wrap(services.KindPrecondition, string(OperationUpload), "no file provided", nil)
	}
	op, err := o.accept(OperationUpload, ActionUpload, filepath.Base(file.Name()))
	if err != nil {
		return o.Snapshot(), err
	}
	ctx, cancel := o.operationContext(ctx, op)
	defer cancel()

	dataset, callErr := o.transport.IngestDataset(ctx, file)

	o.mu.Lock()
	if callErr == nil {
		o.state.Dataset = &dataset
		o.state.Metrics = nil
		o.state.LastError = nil
		o.state.Epoch++
		op.Epoch = o.state.Epoch
	}
	return o.complete(ctx, op, callErr, func(log *slog.Logger) {
		log.Info("dataset ingested",
			logging.Int("rows", dataset.RowCount),
			logging.Int("columns", dataset.ColumnCount),
			logging.Int("missing_values", dataset.MissingValueCount),
			logging.Uint64("epoch", op.Epoch),
		)
	})
}

// StartTraining trains a model on the current dataset. A result that arrives
// after a newer upload is discarded and reported as stale.
func (o *Orchestrator) StartTraining(ctx context.Context) (State, error) {
	op, err := o.accept(OperationTrain, ActionStartTraining, "")
	if err != nil {
		return o.Snapshot(), err
	}
	ctx, cancel := o.operationContext(ctx, op)
	defer cancel()

	metrics, callErr := o.transport.StartTraining(ctx)

	o.mu.Lock()
	if o.state.Epoch != op.Epoch {
		callErr = services.Wrap(services.KindStaleResult, string(OperationTrain),
			fmt.Sprintf("training result for epoch %d discarded; dataset replaced (epoch %d)", op.Epoch, o.state.Epoch), callErr)
	} else if callErr == nil {
		o.state.Metrics = &metrics
	}
	return o.complete(ctx, op, callErr, func(log *slog.Logger) {
		log.Info("training completed",
			logging.String("accuracy", summary.FormatMetric(metrics.Accuracy)),
			logging.String("precision", summary.FormatMetric(metrics.Precision)),
			logging.String("recall", summary.FormatMetric(metrics.Recall)),
			logging.String("f1_score", summary.FormatMetric(metrics.F1Score)),
		)
	})
}

// DownloadArtifact fetches the trained model and hands it to the sink. It
// never changes the dataset or metrics.
func (o *Orchestrator) DownloadArtifact(ctx context.Context) (State, error) {
	op, err := o.accept(OperationDownload, ActionDownloadArtifact, "")
	if err != nil {
		return o.Snapshot(), err
	}
	ctx, cancel := o.operationContext(ctx, op)
	defer cancel()

	var record ArtifactRecord
	blob, callErr := o.transport.FetchArtifact(ctx)
	if callErr == nil {
		if o.sink == nil {
			callErr = services.Wrap(services.KindStorage, string(OperationDownload), "no artifact sink configured", nil)
		} else if record, err = o.sink.Persist(ctx, blob); err != nil {
			callErr = services.Wrap(services.KindStorage, string(OperationDownload), "persist artifact", err)
		}
	}

	o.mu.Lock()
	if callErr == nil {
		o.state.LastArtifact = &record
		op.Detail = record.Path
	}
	return o.complete(ctx, op, callErr, func(log *slog.Logger) {
		log.Info("artifact saved", logging.String("path", record.Path), logging.Int64("bytes", record.Bytes))
	})
}

// accept validates an intent under the lock, marks it in flight, publishes,
// and journals it. Rejections leave state untouched.
func (o *Orchestrator) accept(kind OperationKind, action Action, detail string) (Operation, error) {
	o.mu.Lock()
	if o.state.InFlight(kind) {
		o.mu.Unlock()
		return Operation{}, services.Wrap(services.KindConcurrentOperation, string(kind),
			fmt.Sprintf("%s already in progress", kind), nil)
	}
	if err := Check(o.state, action); err != nil {
		o.mu.Unlock()
		return Operation{}, err
	}
	op := Operation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Epoch:     o.state.Epoch,
		Stage:     o.state.ActiveStage,
		Detail:    detail,
		Outcome:   OutcomePending,
		StartedAt: o.now().UTC(),
	}
	o.state.setInFlight(kind, true)
	o.publishLocked()
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.BeginOperation(context.Background(), op); err != nil {
			logging.WarnWithContext(o.logger, "journal begin failed", "journal_write_failed",
				logging.String(logging.FieldOperationID, op.ID), logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"))
		}
	}
	return op, nil
}

// complete applies the failure (if any), clears the in-flight flag, publishes,
// and journals the outcome. It must be called with o.mu held and releases it.
func (o *Orchestrator) complete(ctx context.Context, op Operation, callErr error, logSuccess func(*slog.Logger)) (State, error) {
	log := logging.WithContext(ctx, o.logger)
	op.FinishedAt = o.now().UTC()
	op.Outcome = OutcomeSucceeded
	if callErr != nil {
		record := o.errorRecord(op.Kind, callErr)
		o.state.LastError = &record
		op.Outcome = OutcomeFailed
		if record.Kind == services.KindStaleResult {
			op.Outcome = OutcomeStale
		}
		op.ErrorKind = record.Kind
		op.ErrorMessage = record.Message
	}
	o.state.setInFlight(op.Kind, false)
	o.publishLocked()
	snapshot := o.state.Clone()
	o.mu.Unlock()

	if callErr != nil {
		logging.WarnWithContext(log, fmt.Sprintf("%s failed", op.Kind), string(op.Kind)+"_failed",
			logging.String(logging.FieldErrorKind, string(op.ErrorKind)),
			logging.String(logging.FieldErrorHint, errorHint(op.ErrorKind)),
			logging.Error(callErr),
		)
	} else if logSuccess != nil {
		logSuccess(log)
	}

	if o.recorder != nil {
		if err := o.recorder.FinishOperation(context.WithoutCancel(ctx), op); err != nil {
			logging.WarnWithContext(log, "journal finish failed", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"))
		}
	}
	return snapshot, nil
}

func (o *Orchestrator) errorRecord(kind OperationKind, err error) ErrorRecord {
	errKind, ok := services.KindOf(err)
	if !ok {
		errKind = services.KindNetwork
	}
	return ErrorRecord{
		Kind:       errKind,
		Message:    services.MessageOf(err),
		Stage:      o.state.ActiveStage,
		Operation:  kind,
		StatusCode: services.StatusCodeOf(err),
		At:         o.now().UTC(),
	}
}

func (o *Orchestrator) operationContext(ctx context.Context, op Operation) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithOperationID(ctx, op.ID)
	ctx = services.WithOperation(ctx, string(op.Kind))
	ctx = services.WithStage(ctx, string(op.Stage))
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) publishLocked() {
	o.state.Version = o.hub.Publish(o.state)
}

func errorHint(kind services.Kind) string {
	switch kind {
	case services.KindNetwork:
		return "check that the processing service is running at service.base_url"
	case services.KindServer:
		return "inspect the processing service logs for the rejected request"
	case services.KindMalformedResponse:
		return "processing service reply did not match the expected contract"
	case services.KindPrecondition:
		return "processing service is missing the dataset or model this step needs"
	case services.KindStaleResult:
		return "retrain against the current dataset"
	case services.KindStorage:
		return "check paths.artifact_dir permissions and free space"
	default:
		return "check logs for details"
	}
}
