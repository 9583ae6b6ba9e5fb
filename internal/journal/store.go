package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"visuallab/internal/config"
	"visuallab/internal/services"
	"visuallab/internal/workflow"
)

// Store records accepted workflow operations in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultListLimit bounds history queries without an explicit limit.
	DefaultListLimit = 20
	maxListLimit     = 1000

	interruptedMessage = "interrupted before completion"
)

// ErrNotFound reports an unknown operation identifier.
var ErrNotFound = errors.New("operation not found")

// Open initializes or connects to the journal database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens the journal at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginOperation inserts a pending entry.
func (s *Store) BeginOperation(ctx context.Context, op workflow.Operation) error {
	if strings.TrimSpace(op.ID) == "" {
		return errors.New("operation id required")
	}
	outcome := op.Outcome
	if outcome == "" {
		outcome = workflow.OutcomePending
	}
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO operations (id, kind, epoch, stage, detail, outcome, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Kind), int64(op.Epoch), string(op.Stage), op.Detail, string(outcome), formatTime(op.StartedAt),
	)
}

// FinishOperation records the terminal outcome of a previously begun entry.
func (s *Store) FinishOperation(ctx context.Context, op workflow.Operation) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE operations
		 SET epoch = ?, detail = ?, outcome = ?, error_kind = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		int64(op.Epoch), op.Detail, string(op.Outcome), string(op.ErrorKind), op.ErrorMessage, formatTime(op.FinishedAt), op.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, op.ID)
	}
	return nil
}

// Get returns one entry by identifier.
func (s *Store) Get(ctx context.Context, id string) (workflow.Operation, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Operation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return op, err
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]workflow.Operation, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var ops []workflow.Operation
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY seq DESC LIMIT ?", limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		ops = ops[:0]
		for rows.Next() {
			op, err := scanOperation(rows)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

// Stats counts entries per outcome.
func (s *Store) Stats(ctx context.Context) (map[workflow.Outcome]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM operations GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("operation stats: %w", err)
	}
	defer rows.Close()
	stats := make(map[workflow.Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[workflow.Outcome(outcome)] = count
	}
	return stats, rows.Err()
}

// ReconcilePending marks entries left pending by a previous process as
// failed. It returns the number of entries updated.
func (s *Store) ReconcilePending(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE operations SET outcome = ?, error_kind = ?, error_message = ?, finished_at = ? WHERE outcome = ?`,
		string(workflow.OutcomeFailed), string(services.KindNetwork), interruptedMessage, formatTime(at), string(workflow.OutcomePending),
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reconcile pending: %w", err)
	}
	return n, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM operations")
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return n, nil
}

const selectColumns = `SELECT id, kind, epoch, stage, detail, outcome, error_kind, error_message, started_at, finished_at FROM operations`

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (workflow.Operation, error) {
	var (
		op                    workflow.Operation
		kind, stage, outcome  string
		errKind               string
		epoch                 int64
		startedAt, finishedAt string
	)
	if err := row.Scan(&op.ID, &kind, &epoch, &stage, &op.Detail, &outcome, &errKind, &op.ErrorMessage, &startedAt, &finishedAt); err != nil {
		return workflow.Operation{}, err
	}
	op.Kind = workflow.OperationKind(kind)
	op.Stage = workflow.Stage(stage)
	op.Outcome = workflow.Outcome(outcome)
	op.ErrorKind = services.Kind(errKind)
	if epoch > 0 {
		op.Epoch = uint64(epoch)
	}
	op.StartedAt = parseTime(startedAt)
	op.FinishedAt = parseTime(finishedAt)
	return op, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
