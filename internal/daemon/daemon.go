package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"visuallab/internal/api"
	"visuallab/internal/config"
	"visuallab/internal/journal"
	"visuallab/internal/logging"
	"visuallab/internal/workflow"
)

// Daemon owns one workflow session and enforces single-instance execution
// per state directory.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *journal.Store
	orchestrator *workflow.Orchestrator

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon around an orchestrator and journal.
func New(cfg *config.Config, store *journal.Store, orchestrator *workflow.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orchestrator == nil {
		return nil, errors.New("daemon requires config, journal, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		orchestrator: orchestrator,
		lockPath:     cfg.LockPath(),
		lock:         flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the session lock, reconciles the journal, and starts the
// control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another visuallab daemon instance is already running")
	}

	if n, err := d.store.ReconcilePending(ctx, time.Now()); err != nil {
		logging.WarnWithContext(d.logger, "journal reconcile failed", "journal_reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "history may show stale pending entries"))
	} else if n > 0 {
		d.logger.Info("marked interrupted operations", logging.Int64("count", n))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("visuallab daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.cfg.Service.BaseURL),
		logging.String("control", d.api.address()),
	)
	return nil
}

// Stop shuts down the control API and releases the session lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("visuallab daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the control API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status reports daemon runtime information.
func (d *Daemon) Status() api.DaemonStatus {
	return api.DaemonStatus{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		BackendURL:  d.cfg.Service.BaseURL,
		JournalPath: d.store.Path(),
		LockPath:    d.lockPath,
		ArtifactDir: d.cfg.Paths.ArtifactDir,
		Version:     d.orchestrator.Hub().Latest().Version,
	}
}
