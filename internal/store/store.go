// Package store persists execution runs between CLI turns. It is the
// embedding-side collaborator the engine itself never touches: the engine
// hands back a new ExecutionState and the caller decides when to save it.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"canopy/internal/engine"
	"canopy/internal/logging"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// RunSummary is the light listing row for a stored run.
type RunSummary struct {
	RunID     string
	ProgramID string
	Status    engine.RunStatus
	StartedAt time.Time
	UpdatedAt time.Time
}

// Store is a sqlite-backed run store. The full ExecutionState lives in a
// JSON column; id, program, and status are broken out for listing and
// filtering.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the run database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run store schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		state_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_program ON runs(program_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces a run's full state.
func (s *Store) SaveRun(state *engine.ExecutionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, program_id, status, started_at, updated_at, state_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at,
			state_json = excluded.state_json`,
		state.RunID, state.ProgramID, string(state.Status),
		state.StartedAt.UTC(), time.Now().UTC(), string(blob))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", state.RunID, err)
	}

	logging.L(logging.CategoryStore).Debug("run_saved",
		zap.String("run", state.RunID), zap.String("status", string(state.Status)))
	return nil
}

// LoadRun fetches a run's full state by id.
func (s *Store) LoadRun(runID string) (*engine.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRow(`SELECT state_json FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var state engine.ExecutionState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &state, nil
}

// ListRuns returns summaries of every stored run, most recently updated
// first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, program_id, status, started_at, updated_at
		FROM runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var status string
		if err := rows.Scan(&r.RunID, &r.ProgramID, &status, &r.StartedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Status = engine.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run. Deleting a missing run is ErrNotFound.
func (s *Store) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}
