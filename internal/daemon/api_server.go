package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"visuallab/internal/api"
	"visuallab/internal/config"
	"visuallab/internal/journal"
	"visuallab/internal/logging"
	"visuallab/internal/services"
	"visuallab/internal/workflow"
)

const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
	maxUploadMemory    = 32 << 20
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Control.Bind),
		token:  cfg.Control.Token,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/state/wait", s.handleWait)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/download", s.handleDownload)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	return requestIDMiddleware(authMiddleware(s.token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.NewStateResponse(s.daemon.orchestrator.Snapshot()))
}

func (s *apiServer) handleWait(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var since uint64
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid since value", "")
			return
		}
		since = parsed
	}
	timeout := defaultWaitTimeout
	if raw := strings.TrimSpace(query.Get("timeout")); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid timeout value", "")
			return
		}
		timeout = time.Duration(secs) * time.Second
		if timeout > maxWaitTimeout {
			timeout = maxWaitTimeout
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	state, err := s.daemon.orchestrator.Hub().Wait(ctx, since)
	if err != nil && r.Context().Err() != nil {
		return
	}
	// A timed-out wait answers with the unchanged snapshot.
	s.writeJSON(w, http.StatusOK, api.NewStateResponse(state))
}

type uploadedFile struct {
	multipart.File
	name string
}

func (f uploadedFile) Name() string { return f.name }

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error(), "")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, `multipart field "file" required`, string(services.KindPrecondition))
		return
	}
	defer file.Close()

	state, err := s.daemon.orchestrator.Upload(intentContext(r), uploadedFile{File: file, name: header.Filename})
	s.writeIntent(w, state, err)
}

func (s *apiServer) handleTrain(w http.ResponseWriter, r *http.Request) {
	state, err := s.daemon.orchestrator.StartTraining(intentContext(r))
	s.writeIntent(w, state, err)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	state, err := s.daemon.orchestrator.DownloadArtifact(intentContext(r))
	s.writeIntent(w, state, err)
}

func (s *apiServer) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req api.NavigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid navigate body", "")
		return
	}
	state, err := s.daemon.orchestrator.Navigate(workflow.Stage(req.Stage))
	s.writeIntent(w, state, err)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit value", "")
			return
		}
		limit = parsed
	}
	ops, err := s.daemon.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), string(services.KindStorage))
		return
	}
	stats, err := s.daemon.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), string(services.KindStorage))
		return
	}
	resp := api.HistoryResponse{Operations: ops, Stats: make(map[string]int, len(stats))}
	if resp.Operations == nil {
		resp.Operations = []workflow.Operation{}
	}
	for outcome, count := range stats {
		resp.Stats[string(outcome)] = count
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.store.Clear(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), string(services.KindStorage))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

// intentContext keeps request values but not its cancellation: once accepted,
// an operation runs to completion even if the caller disconnects.
func intentContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *apiServer) writeIntent(w http.ResponseWriter, state workflow.State, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, api.NewStateResponse(state))
		return
	}
	kind, _ := services.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case services.KindPrecondition, services.KindConcurrentOperation:
		status = http.StatusConflict
	}
	s.writeError(w, status, services.MessageOf(err), string(kind))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
