package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeBackend is an in-process stand-in for the processing service. It keeps
// the same server-side state as the real service: a dataset after /upload and
// a model after /train.
type FakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	dataset     []byte
	trained     bool
	calls       map[string]int
	Summary     string
	Metrics     string
	Artifact    []byte
	TrainStatus int
	// TrainGate, when set, blocks /train until it is closed.
	TrainGate chan struct{}
}

// NewFakeBackend starts a fake service and registers cleanup.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		calls:    make(map[string]int),
		Summary:  `{"rows":3,"columns":2,"missingValues":1,"preview":[{"sepal":5.1,"label":"setosa"},{"label":"virginica","sepal":6.3}]}`,
		Metrics:  `{"accuracy":0.91,"precision":0.88,"recall":0.85,"f1Score":0.86}`,
		Artifact: []byte("\x80\x04model-bytes"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", fb.handleUpload)
	mux.HandleFunc("POST /train", fb.handleTrain)
	mux.HandleFunc("GET /download", fb.handleDownload)
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

// Calls returns how many times an endpoint ("upload", "train", "download") was hit.
func (fb *FakeBackend) Calls(endpoint string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[endpoint]
}

// Dataset returns the bytes of the last uploaded file.
func (fb *FakeBackend) Dataset() []byte {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]byte(nil), fb.dataset...)
}

func (fb *FakeBackend) record(endpoint string) {
	fb.mu.Lock()
	fb.calls[endpoint]++
	fb.mu.Unlock()
}

func (fb *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	fb.record("upload")
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"detail":"file field required"}`, http.StatusUnprocessableEntity)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	fb.mu.Lock()
	fb.dataset = data
	fb.trained = false
	body := fb.Summary
	fb.mu.Unlock()
	writeJSON(w, body)
}

func (fb *FakeBackend) handleTrain(w http.ResponseWriter, r *http.Request) {
	fb.record("train")
	if gate := fb.TrainGate; gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	fb.mu.Lock()
	hasData := fb.dataset != nil
	status := fb.TrainStatus
	body := fb.Metrics
	if hasData && status == 0 {
		fb.trained = true
	}
	fb.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"detail":"training failed"}`)
		return
	}
	if !hasData {
		writeJSON(w, errorBody("No dataset uploaded"))
		return
	}
	writeJSON(w, body)
}

func (fb *FakeBackend) handleDownload(w http.ResponseWriter, r *http.Request) {
	fb.record("download")
	fb.mu.Lock()
	trained := fb.trained
	blob := append([]byte(nil), fb.Artifact...)
	fb.mu.Unlock()
	if !trained {
		writeJSON(w, errorBody("No trained model available"))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(blob)
}

func errorBody(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}
