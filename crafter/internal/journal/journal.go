// Package journal keeps an SQLite log of every pair attempted by the
// explorer, one row per attempt, grouped by run. It answers "what did this
// run try and how did it go" without touching the ledger.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/infcraft/explore"
)

// Schema for the journal tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	target_url  TEXT NOT NULL DEFAULT '',
	selection   TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE TABLE IF NOT EXISTS attempts (
	run_id      TEXT NOT NULL REFERENCES runs(run_id),
	seq         INTEGER NOT NULL,
	a_name      TEXT NOT NULL,
	b_name      TEXT NOT NULL,
	result_name TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	at          INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(run_id, outcome);
`

// RunInfo describes a run when it begins.
type RunInfo struct {
	TargetURL string
	Selection string
}

// RunSummary aggregates one run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Discovered int
	None       int
	Skipped    int
}

// Total is the number of recorded attempts.
func (s RunSummary) Total() int { return s.Discovered + s.None + s.Skipped }

// Journal records attempts for the current run.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	newID  func() string

	mu    sync.Mutex
	runID string
	seq   int
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// Open opens (or creates) the journal database at path.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return newJournal(db, opts...), nil
}

// OpenMemory opens an in-memory journal for tests and closes it on cleanup.
func OpenMemory(t testing.TB, opts ...Option) *Journal {
	t.Helper()
	db, err := openDB(":memory:")
	if err != nil {
		t.Fatalf("journal.OpenMemory: %v", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	j := newJournal(db, opts...)
	t.Cleanup(func() { j.Close() })
	return j
}

func newJournal(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:     db,
		logger: slog.Default(),
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// BeginRun starts a new run and returns its id. Attempts recorded afterwards
// belong to it.
func (j *Journal) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := j.newID()
	if _, err := execRetry(ctx, j.db,
		`INSERT INTO runs (run_id, target_url, selection, started_at) VALUES (?, ?, ?, ?)`,
		id, info.TargetURL, info.Selection, time.Now().UnixMilli()); err != nil {
		return "", fmt.Errorf("journal: begin run: %w", err)
	}

	j.mu.Lock()
	j.runID = id
	j.seq = 0
	j.mu.Unlock()
	return id, nil
}

// RecordAttempt appends an attempt to the current run. Failures are logged
// and dropped: the journal never stops an exploration.
func (j *Journal) RecordAttempt(ctx context.Context, a explore.Attempt) {
	j.mu.Lock()
	runID := j.runID
	j.seq++
	seq := j.seq
	j.mu.Unlock()

	if runID == "" {
		j.logger.Warn("journal: attempt recorded outside a run", "a", a.A.Name, "b", a.B.Name)
		return
	}

	var result string
	if a.Result != nil {
		result = a.Result.Name
	}
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}

	// The row describes something that already happened on the page, so it
	// is written even when the run is being cancelled.
	_, err := execRetry(context.WithoutCancel(ctx), j.db,
		`INSERT INTO attempts (run_id, seq, a_name, b_name, result_name, outcome, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, a.A.Name, a.B.Name, result, string(a.Outcome), at.UnixMilli())
	if err != nil {
		j.logger.Error("journal: record attempt failed", "run_id", runID, "seq", seq, "error", err)
	}
}

// FinishRun stamps the current run as finished and returns its id.
func (j *Journal) FinishRun(ctx context.Context) (string, error) {
	j.mu.Lock()
	runID := j.runID
	j.mu.Unlock()
	if runID == "" {
		return "", fmt.Errorf("journal: no run in progress")
	}

	if _, err := execRetry(ctx, j.db,
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		time.Now().UnixMilli(), runID); err != nil {
		return "", fmt.Errorf("journal: finish run: %w", err)
	}
	return runID, nil
}

// Summary aggregates the attempts of one run.
func (j *Journal) Summary(ctx context.Context, runID string) (RunSummary, error) {
	s := RunSummary{RunID: runID}

	var started int64
	var finished sql.NullInt64
	err := j.db.QueryRowContext(ctx,
		`SELECT started_at, finished_at FROM runs WHERE run_id = ?`, runID).Scan(&started, &finished)
	if err == sql.ErrNoRows {
		return s, fmt.Errorf("journal: unknown run %s", runID)
	}
	if err != nil {
		return s, fmt.Errorf("journal: summary: %w", err)
	}
	s.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		s.FinishedAt = time.UnixMilli(finished.Int64)
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM attempts WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return s, fmt.Errorf("journal: summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return s, fmt.Errorf("journal: summary scan: %w", err)
		}
		switch explore.Outcome(outcome) {
		case explore.OutcomeDiscovered:
			s.Discovered = n
		case explore.OutcomeNone:
			s.None = n
		case explore.OutcomeSkipped:
			s.Skipped = n
		}
	}
	return s, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
