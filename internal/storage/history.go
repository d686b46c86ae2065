package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS runs(
	run_id      TEXT PRIMARY KEY,
	baseline_id TEXT NOT NULL,
	report_id   TEXT NOT NULL,
	directive   TEXT NOT NULL,
	fixes       INTEGER NOT NULL,
	conflicts   INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	restarts    INTEGER NOT NULL,
	aborted     INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_baseline ON runs(baseline_id);`

// RunRecord summarizes one reconciliation run
type RunRecord struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	BaselineID string    `json:"baseline_id" yaml:"baseline_id"`
	ReportID   string    `json:"report_id" yaml:"report_id"`
	Directive  string    `json:"directive" yaml:"directive"`
	Fixes      int       `json:"fixes" yaml:"fixes"`
	Conflicts  int       `json:"conflicts" yaml:"conflicts"`
	Failures   int       `json:"failures" yaml:"failures"`
	Restarts   int       `json:"restarts" yaml:"restarts"`
	Aborted    bool      `json:"aborted" yaml:"aborted"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Duration returns how long the run took
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// History is the sqlite index of past runs
type History struct {
	db *sql.DB
}

// OpenHistory opens or creates the run history database at path
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &History{db: db}, nil
}

// Record stores a run, replacing an earlier record with the same run id
func (h *History) Record(ctx context.Context, run RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	_, err := h.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs(
		run_id, baseline_id, report_id, directive, fixes, conflicts, failures,
		restarts, aborted, started_at, finished_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		run.RunID, run.BaselineID, run.ReportID, run.Directive,
		run.Fixes, run.Conflicts, run.Failures, run.Restarts, boolToInt(run.Aborted),
		run.StartedAt.UTC().UnixNano(), run.FinishedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 returns every run.
func (h *History) List(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, baseline_id, report_id, directive, fixes, conflicts,
		failures, restarts, aborted, started_at, finished_at
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run               RunRecord
			aborted           int
			started, finished int64
		)
		if err := rows.Scan(&run.RunID, &run.BaselineID, &run.ReportID, &run.Directive,
			&run.Fixes, &run.Conflicts, &run.Failures, &run.Restarts, &aborted,
			&started, &finished); err != nil {
			return nil, fmt.Errorf("failed to read run history: %w", err)
		}
		run.Aborted = aborted != 0
		run.StartedAt = time.Unix(0, started).UTC()
		run.FinishedAt = time.Unix(0, finished).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
