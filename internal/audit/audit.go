// Package audit persists a durable record of every tool invocation to an
// embedded SQLite database, independent of the in-memory wire envelope the
// executor returns to the controller.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Invocation is one row of the audit trail.
type Invocation struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Args       string    `json:"args"` // JSON-encoded argument map
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
    id          TEXT PRIMARY KEY,
    tool        TEXT NOT NULL,
    args        TEXT NOT NULL,
    success     BOOLEAN NOT NULL,
    error       TEXT,
    duration_ms INTEGER NOT NULL,
    remote_addr TEXT,
    started_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool);
`

// Store is a SQLite-backed audit trail. Safe for concurrent use; database/sql
// pools its own connections.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at dbPath and ensures the
// schema exists. WAL mode lets writers and the occasional reader (a status
// command, say) proceed without blocking each other.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open database %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: initialize schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one invocation row. Best-effort: a write failure is logged
// and swallowed rather than propagated, since a tool call's result must
// never depend on whether its audit row landed.
func (s *Store) Record(ctx context.Context, toolName string, args map[string]any, success bool, errMsg string, durationMs int64, remoteAddr string) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, tool, args, success, error, duration_ms, remote_addr, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), toolName, string(argsJSON), success, errMsg, durationMs, remoteAddr, time.Now().UTC())
	if err != nil {
		s.logger.Warn("audit: failed to persist invocation", "tool", toolName, "error", err)
	}
}

// Recent returns the most recent invocations, newest first, for a status
// command or diagnostics endpoint. limit<=0 defaults to 100.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, args, success, error, duration_ms, remote_addr, started_at
		 FROM invocations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var errMsg sql.NullString
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.Args, &inv.Success, &errMsg, &inv.DurationMs, &inv.RemoteAddr, &inv.StartedAt); err != nil {
			return nil, fmt.Errorf("audit: scan recent: %w", err)
		}
		inv.Error = errMsg.String
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CountSince reports how many invocations were recorded at or after since.
// The heartbeat does not use it; nothing in the agent outside the tests
// calls it.
func (s *Store) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invocations WHERE started_at >= ?`, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count since: %w", err)
	}
	return count, nil
}
