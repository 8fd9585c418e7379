// Package history keeps a queryable SQLite record of evaluation runs.
//
// The audit log is the tamper-evident record; history is the index used to
// answer "how did this agent's calls do last week" without scanning JSONL.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/termwatch/internal/model"
)

// Run is one stored evaluation.
type Run struct {
	ID             string            `json:"id"`
	Transcript     string            `json:"transcript"`
	TranscriptHash string            `json:"transcript_hash"`
	Status         model.Status      `json:"status"`
	Score          int               `json:"score"`
	Mode           string            `json:"mode"`
	Disclosed      []string          `json:"disclosed"`
	Violations     []model.Violation `json:"violations"`
	Diagnostics    int               `json:"diagnostics"`
	TaxonomyHash   string            `json:"taxonomy_hash"`
	CreatedAt      time.Time         `json:"created_at"`
}

// RunFromResult builds a Run for an evaluated transcript.
func RunFromResult(transcript, transcriptHash string, r *model.Result) Run {
	return Run{
		Transcript:     transcript,
		TranscriptHash: transcriptHash,
		Status:         r.Status,
		Score:          r.Score,
		Mode:           r.Mode,
		Disclosed:      r.Disclosed,
		Violations:     r.Violations,
		Diagnostics:    len(r.Diagnostics),
		TaxonomyHash:   r.TaxonomyHash,
	}
}

// Stats aggregates stored runs.
type Stats struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Violations int `json:"violations"`
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// One writer at a time; the daemon records from several workers.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("history: initialize schema: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("history: initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		transcript TEXT NOT NULL,
		transcript_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		score INTEGER NOT NULL,
		mode TEXT NOT NULL,
		disclosed TEXT NOT NULL,
		violations TEXT NOT NULL,
		violation_count INTEGER NOT NULL,
		diagnostics INTEGER NOT NULL,
		taxonomy_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Record stores run and returns its ID. ID and CreatedAt are assigned when
// empty.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = "run_" + uuid.New().String()[:12]
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Disclosed == nil {
		run.Disclosed = []string{}
	}
	if run.Violations == nil {
		run.Violations = []model.Violation{}
	}

	disclosed, err := json.Marshal(run.Disclosed)
	if err != nil {
		return "", fmt.Errorf("history: marshal disclosed: %w", err)
	}
	violations, err := json.Marshal(run.Violations)
	if err != nil {
		return "", fmt.Errorf("history: marshal violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, transcript, transcript_hash, status, score, mode,
			disclosed, violations, violation_count, diagnostics, taxonomy_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Transcript, run.TranscriptHash, string(run.Status), run.Score, run.Mode,
		string(disclosed), string(violations), len(run.Violations), run.Diagnostics,
		run.TaxonomyHash, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("history: insert run: %w", err)
	}
	return run.ID, nil
}

// Query selects runs. Zero fields match everything.
type Query struct {
	Status model.Status
	Since  time.Time
	Limit  int
}

// List returns matching runs, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Run, error) {
	stmt := `SELECT id, transcript, transcript_hash, status, score, mode,
		disclosed, violations, diagnostics, taxonomy_hash, created_at
		FROM runs WHERE 1=1`
	var args []any
	if q.Status != "" {
		stmt += " AND status = ?"
		args = append(args, string(q.Status))
	}
	if !q.Since.IsZero() {
		stmt += " AND created_at >= ?"
		args = append(args, q.Since.UnixMilli())
	}
	stmt += " ORDER BY created_at DESC, rowid DESC"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run                   Run
			status                string
			disclosed, violations string
			created               int64
		)
		if err := rows.Scan(&run.ID, &run.Transcript, &run.TranscriptHash, &status, &run.Score,
			&run.Mode, &disclosed, &violations, &run.Diagnostics, &run.TaxonomyHash, &created); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		run.Status = model.Status(status)
		run.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(disclosed), &run.Disclosed); err != nil {
			return nil, fmt.Errorf("history: decode disclosed for %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(violations), &run.Violations); err != nil {
			return nil, fmt.Errorf("history: decode violations for %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return runs, nil
}

// Stats returns totals across all stored runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'PASS' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'FAIL' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(violation_count), 0)
		FROM runs`)
	if err := row.Scan(&st.Total, &st.Passed, &st.Failed, &st.Violations); err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
