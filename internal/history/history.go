// Package history keeps a per-workspace SQLite ledger of runs and provider
// invocations, read back by the stats and history commands.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the ledger database connection.
type DB struct {
	conn *sql.DB
	Path string
}

// Open opens (or creates) the ledger with WAL mode enabled and the schema
// applied.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	phase       TEXT NOT NULL,
	goal        TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE TABLE IF NOT EXISTS invocations (
	id                TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL,
	call_id           TEXT NOT NULL,
	agent_id          TEXT NOT NULL,
	model_id          TEXT NOT NULL,
	provider          TEXT NOT NULL,
	latency_ms        INTEGER NOT NULL,
	prompt_tokens     INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens      INTEGER NOT NULL,
	error             TEXT NOT NULL,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_run ON invocations(run_id);
`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying ledger schema: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the ledger connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// RecordRunStart upserts the run row at pipeline start.
func (d *DB) RecordRunStart(runID, phase, goal string) error {
	_, err := d.conn.Exec(
		`INSERT INTO runs (run_id, phase, goal, started_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET phase=excluded.phase, goal=excluded.goal`,
		runID, phase, goal, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// RecordRunFinish stamps the run's completion time.
func (d *DB) RecordRunFinish(runID string) error {
	_, err := d.conn.Exec(`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		time.Now().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return nil
}

// Invocation is one provider call as recorded in the ledger.
type Invocation struct {
	RunID            string
	CallID           string
	AgentID          string
	ModelID          string
	Provider         string
	LatencyMS        int64
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Error            string
}

// RecordInvocation appends one provider call to the ledger.
func (d *DB) RecordInvocation(inv Invocation) error {
	_, err := d.conn.Exec(
		`INSERT INTO invocations
		 (id, run_id, call_id, agent_id, model_id, provider, latency_ms,
		  prompt_tokens, completion_tokens, total_tokens, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), inv.RunID, inv.CallID, inv.AgentID, inv.ModelID,
		inv.Provider, inv.LatencyMS, inv.PromptTokens, inv.CompletionTokens,
		inv.TotalTokens, inv.Error, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("recording invocation: %w", err)
	}
	return nil
}

// RunSummary aggregates a run's ledger rows.
type RunSummary struct {
	RunID       string
	Phase       string
	Goal        string
	Invocations int
	TotalTokens int
	Errors      int
	LatencyMS   int64
}

// RunSummaries returns the most recent runs with invocation aggregates,
// newest first.
func (d *DB) RunSummaries(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(
		`SELECT r.run_id, r.phase, r.goal,
		        COUNT(i.id),
		        COALESCE(SUM(i.total_tokens), 0),
		        COALESCE(SUM(CASE WHEN i.error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(i.latency_ms), 0)
		 FROM runs r LEFT JOIN invocations i ON i.run_id = r.run_id
		 GROUP BY r.run_id
		 ORDER BY r.started_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run summaries: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.Phase, &s.Goal, &s.Invocations,
			&s.TotalTokens, &s.Errors, &s.LatencyMS); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
