package workflow_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"visuallab/internal/backend"
	"visuallab/internal/services"
	"visuallab/internal/summary"
	"visuallab/internal/workflow"
)

// gatedService parks each upload and training call until the test releases
// it, so the test decides the completion order.
type gatedService struct {
	started chan workflow.OperationKind

	mu      sync.Mutex
	release map[workflow.OperationKind]chan bool
	trains  int
}

func newGatedService() *gatedService {
	return &gatedService{
		started: make(chan workflow.OperationKind, 1),
		release: make(map[workflow.OperationKind]chan bool),
	}
}

func (g *gatedService) park(kind workflow.OperationKind) bool {
	ch := make(chan bool, 1)
	g.mu.Lock()
	g.release[kind] = ch
	g.mu.Unlock()
	g.started <- kind
	return <-ch
}

func (g *gatedService) finish(kind workflow.OperationKind, fail bool) {
	g.mu.Lock()
	ch := g.release[kind]
	delete(g.release, kind)
	g.mu.Unlock()
	ch <- fail
}

func (g *gatedService) IngestDataset(context.Context, backend.FileHandle) (summary.Dataset, error) {
	if g.park(workflow.OperationUpload) {
		return summary.Dataset{}, services.Wrap(services.KindNetwork, "upload", "connection reset", nil)
	}
	return scenarioDataset(), nil
}

func (g *gatedService) StartTraining(context.Context) (summary.Metrics, error) {
	g.mu.Lock()
	g.trains++
	call := g.trains
	g.mu.Unlock()
	if g.park(workflow.OperationTrain) {
		return summary.Metrics{}, services.ServerError("train", 500, "training failed")
	}
	return trainingMetrics(call), nil
}

func (g *gatedService) FetchArtifact(context.Context) ([]byte, error) {
	return []byte("pickle"), nil
}

// trainingMetrics tags each training call's result so a snapshot shows which
// call produced its metrics.
func trainingMetrics(call int) summary.Metrics {
	v := float64(call) / 1000
	return summary.Metrics{Accuracy: v, Precision: v, Recall: v, F1Score: v}
}

type inFlightCall struct {
	done  chan struct{}
	epoch uint64
	call  int
}

// sequenceModel is the reference the orchestrator is checked against after
// every step.
type sequenceModel struct {
	epoch          uint64
	metricsCall    int // 0 when no metrics are expected
	uploadsDone    int
	lastUploadSeq  int
	metricsDoneSeq int
	seq            int
}

func TestRandomIntentSequencesKeepMetricsConsistent(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			runIntentSequence(t, rand.New(rand.NewPCG(seed, seed*7919)), 80)
		})
	}
}

func runIntentSequence(t *testing.T, rng *rand.Rand, steps int) {
	svc := newGatedService()
	o := workflow.New(svc, &memorySink{})
	ctx := context.Background()

	var model sequenceModel
	var upload, train *inFlightCall
	trainCalls := 0

	for step := 0; step < steps; step++ {
		before := o.Snapshot()
		var action string

		switch rng.IntN(7) {
		case 0, 1:
			action = "upload"
			if upload != nil {
				_, err := o.Upload(ctx, csv("again.csv"))
				requireRejected(t, o, before, err, services.KindConcurrentOperation)
				break
			}
			upload = &inFlightCall{done: make(chan struct{})}
			go func(done chan struct{}) {
				defer close(done)
				if _, err := o.Upload(ctx, csv("data.csv")); err != nil {
					t.Errorf("upload rejected: %v", err)
				}
			}(upload.done)
			<-svc.started
		case 2, 3:
			action = "train"
			if !workflow.PermittedActions(before).Has(workflow.ActionStartTraining) {
				_, err := o.StartTraining(ctx)
				want := services.KindPrecondition
				if before.TrainingInFlight {
					want = services.KindConcurrentOperation
				}
				requireRejected(t, o, before, err, want)
				break
			}
			trainCalls++
			train = &inFlightCall{done: make(chan struct{}), epoch: before.Epoch, call: trainCalls}
			go func(done chan struct{}) {
				defer close(done)
				if _, err := o.StartTraining(ctx); err != nil {
					t.Errorf("training rejected: %v", err)
				}
			}(train.done)
			<-svc.started
		case 4:
			if upload == nil {
				action = "navigate"
				if _, err := o.Navigate(workflow.Stages()[rng.IntN(len(workflow.Stages()))]); err != nil {
					t.Fatalf("navigate: %v", err)
				}
				break
			}
			fail := rng.IntN(3) == 0
			action = fmt.Sprintf("finish upload (fail=%v)", fail)
			svc.finish(workflow.OperationUpload, fail)
			<-upload.done
			upload = nil
			model.seq++
			if !fail {
				model.epoch++
				model.uploadsDone++
				model.lastUploadSeq = model.seq
				model.metricsCall = 0
			}
		case 5:
			if train == nil {
				action = "download"
				if _, err := o.DownloadArtifact(ctx); err != nil && before.Metrics != nil {
					t.Fatalf("download rejected with metrics present: %v", err)
				}
				break
			}
			fail := rng.IntN(3) == 0
			action = fmt.Sprintf("finish train #%d (fail=%v)", train.call, fail)
			svc.finish(workflow.OperationTrain, fail)
			<-train.done
			model.seq++
			if !fail && train.epoch == model.epoch {
				model.metricsCall = train.call
				model.metricsDoneSeq = model.seq
			}
			train = nil
		default:
			action = "snapshot"
		}

		checkSequenceInvariants(t, step, action, o.Snapshot(), model)
	}

	// Drain whatever is still parked so no goroutine outlives the test.
	if upload != nil {
		svc.finish(workflow.OperationUpload, true)
		<-upload.done
	}
	if train != nil {
		svc.finish(workflow.OperationTrain, true)
		<-train.done
	}
}

func requireRejected(t *testing.T, o *workflow.Orchestrator, before workflow.State, err error, want services.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s rejection", want)
	}
	kind, _ := services.KindOf(err)
	if kind != want {
		t.Fatalf("rejection kind = %s, want %s: %v", kind, want, err)
	}
	if after := o.Snapshot(); after.Version != before.Version {
		t.Fatalf("rejection published a snapshot: version %d -> %d", before.Version, after.Version)
	}
}

func checkSequenceInvariants(t *testing.T, step int, action string, state workflow.State, model sequenceModel) {
	t.Helper()
	fail := func(format string, args ...any) {
		t.Helper()
		t.Fatalf("step %d (%s): %s", step, action, fmt.Sprintf(format, args...))
	}

	if state.Epoch != model.epoch || int(state.Epoch) != model.uploadsDone {
		fail("epoch = %d, want %d successful uploads", state.Epoch, model.uploadsDone)
	}
	if state.TrainingInFlight && state.Dataset == nil {
		fail("training in flight without a dataset")
	}
	if model.metricsCall == 0 {
		if state.Metrics != nil {
			fail("unexpected metrics %+v", *state.Metrics)
		}
		return
	}
	if state.Metrics == nil {
		fail("metrics from training #%d missing", model.metricsCall)
	}
	if state.Dataset == nil {
		fail("metrics present without a dataset")
	}
	if *state.Metrics != trainingMetrics(model.metricsCall) {
		fail("metrics %+v, want training #%d", *state.Metrics, model.metricsCall)
	}
	if model.lastUploadSeq > model.metricsDoneSeq {
		fail("an upload completed after the training that produced the metrics")
	}
	if le := state.LastError; le != nil && le.Kind == services.KindStaleResult && le.Operation != workflow.OperationTrain {
		fail("stale result recorded for %s", state.LastError.Operation)
	}
}
