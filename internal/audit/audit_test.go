package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "audit.db")
	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, func() { s.Close() }
}

func TestOpenCreatesDBUnderMissingDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "logs", "audit.db")

	s, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("expected database file to be created")
	}
}

func TestRecordThenRecent(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	s.Record(ctx, "read_file", map[string]any{"path": "a.txt"}, true, "", 12, "127.0.0.1:5555")
	s.Record(ctx, "write_file", map[string]any{"path": "b.txt"}, false, "read-only mode denies this operation", 3, "127.0.0.1:5555")

	rows, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// newest first
	if rows[0].Tool != "write_file" {
		t.Errorf("expected most recent row to be write_file, got %q", rows[0].Tool)
	}
	if rows[0].Success {
		t.Error("expected write_file row to be recorded as failed")
	}
	if rows[1].Tool != "read_file" || !rows[1].Success {
		t.Errorf("unexpected read_file row: %+v", rows[1])
	}
}

func TestRecordMarshalsArgsAsJSON(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	s.Record(ctx, "run_command", map[string]any{"command": "ls", "args": []string{"-la"}}, true, "", 5, "")

	rows, err := s.Recent(ctx, 1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("Recent: %v, rows=%+v", err, rows)
	}
	if rows[0].Args == "" || rows[0].Args == "{}" {
		t.Fatalf("expected args to be marshaled, got %q", rows[0].Args)
	}
}

func TestRecentDefaultsLimitWhenNonPositive(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Record(ctx, "ping", nil, true, "", 1, "")
	}

	rows, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}

func TestCountSinceExcludesOlderRows(t *testing.T) {
	s, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	s.Record(ctx, "dns_lookup", nil, true, "", 2, "")

	count, err := s.CountSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invocation since cutoff, got %d", count)
	}

	future := time.Now().UTC().Add(time.Hour)
	count, err = s.CountSince(ctx, future)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 invocations since a future cutoff, got %d", count)
	}
}

func TestRecordSwallowsErrorAfterClose(t *testing.T) {
	s, cleanup := testStore(t)
	cleanup()

	// Record against a closed store must not panic; it logs and returns.
	s.Record(context.Background(), "noop", nil, true, "", 0, "")
}
