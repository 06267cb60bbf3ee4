package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fsTestContext(t *testing.T, sb *Sandbox, readOnly bool) Context {
	t.Helper()
	return Context{
		Context:    context.Background(),
		SandboxDir: sb.Root(),
		ReadOnly:   readOnly,
		Timeout:    time.Second,
		Sandbox:    sb,
	}
}

func TestWriteThenReadFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)

	res, err := writeFileHandler(ctx, map[string]any{"file_path": "note.txt", "content": "hello\nworld\n"})
	if err != nil || !res.Success {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}

	res, err = readFileHandler(ctx, map[string]any{"file_path": "note.txt"})
	if err != nil || !res.Success {
		t.Fatalf("read failed: err=%v res=%+v", err, res)
	}
	if res.Data != "hello\nworld\n" {
		t.Fatalf("got %q", res.Data)
	}
}

func TestReadFile_LineRange(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	content := "one\ntwo\nthree\nfour\n"
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "lines.txt", "content": content}); err != nil {
		t.Fatal(err)
	}

	res, err := readFileHandler(ctx, map[string]any{"file_path": "lines.txt", "start_line": 2, "end_line": 3})
	if err != nil || !res.Success {
		t.Fatalf("read failed: err=%v res=%+v", err, res)
	}
	if res.Data != "two\nthree\n" {
		t.Fatalf("got %q", res.Data)
	}
}

func TestWriteFile_DeniedUnderReadOnly(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, true)

	res, err := writeFileHandler(ctx, map[string]any{"file_path": "blocked.txt", "content": "x"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected write to be denied under read-only mode")
	}
}

func TestWriteFile_RejectsSandboxEscape(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)

	res, err := writeFileHandler(ctx, map[string]any{"file_path": "../escape.txt", "content": "x"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected escape attempt to fail")
	}
}

func TestAppendFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "a.txt", "content": "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := appendFileHandler(ctx, map[string]any{"file_path": "a.txt", "content": "b"}); err != nil {
		t.Fatal(err)
	}
	res, err := readFileHandler(ctx, map[string]any{"file_path": "a.txt"})
	if err != nil || !res.Success {
		t.Fatalf("read failed: err=%v res=%+v", err, res)
	}
	if res.Data != "ab" {
		t.Fatalf("got %q", res.Data)
	}
}

func TestDeleteFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "gone.txt", "content": "x"}); err != nil {
		t.Fatal(err)
	}
	res, err := deleteFileHandler(ctx, map[string]any{"file_path": "gone.txt"})
	if err != nil || !res.Success {
		t.Fatalf("delete failed: err=%v res=%+v", err, res)
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "gone.txt")); !os.IsNotExist(statErr) {
		t.Fatal("expected file to be removed")
	}
}

func TestMoveFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "src.txt", "content": "payload"}); err != nil {
		t.Fatal(err)
	}
	res, err := moveFileHandler(ctx, map[string]any{"source": "src.txt", "destination": "dst.txt"})
	if err != nil || !res.Success {
		t.Fatalf("move failed: err=%v res=%+v", err, res)
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "src.txt")); !os.IsNotExist(statErr) {
		t.Fatal("expected source to be gone")
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "dst.txt")); statErr != nil {
		t.Fatal("expected destination to exist")
	}
}

func TestCopyFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "orig.txt", "content": "payload"}); err != nil {
		t.Fatal(err)
	}
	res, err := copyFileHandler(ctx, map[string]any{"source": "orig.txt", "destination": "copy.txt"})
	if err != nil || !res.Success {
		t.Fatalf("copy failed: err=%v res=%+v", err, res)
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "orig.txt")); statErr != nil {
		t.Fatal("expected source to still exist")
	}
	if _, statErr := os.Stat(filepath.Join(sb.Root(), "copy.txt")); statErr != nil {
		t.Fatal("expected copy to exist")
	}
}

func TestMkdirAndStat(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := mkdirHandler(ctx, map[string]any{"path": "nested/dir"}); err != nil {
		t.Fatal(err)
	}
	res, err := statHandler(ctx, map[string]any{"path": "nested/dir"})
	if err != nil || !res.Success {
		t.Fatalf("stat failed: err=%v res=%+v", err, res)
	}
	data, ok := res.Data.(map[string]any)
	if !ok || data["is_dir"] != true {
		t.Fatalf("expected is_dir=true, got %+v", res.Data)
	}
}

func TestListHandler_RecursesToDepth(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := mkdirHandler(ctx, map[string]any{"path": "top/nested"}); err != nil {
		t.Fatal(err)
	}
	if res, err := writeFileHandler(ctx, map[string]any{"file_path": "top/file.txt", "content": "x"}); err != nil || !res.Success {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}
	if res, err := writeFileHandler(ctx, map[string]any{"file_path": "top/nested/deep.txt", "content": "x"}); err != nil || !res.Success {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}

	res, err := listHandler(ctx, map[string]any{"path": "top", "depth": 2})
	if err != nil || !res.Success {
		t.Fatalf("list failed: err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	entries := data["entries"].([]string)
	found := false
	for _, e := range entries {
		if e == "nested/deep.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected nested/deep.txt among entries, got %v", entries)
	}
}

func TestListHandler_SkipsNoiseDirs(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := mkdirHandler(ctx, map[string]any{"path": "node_modules"}); err != nil {
		t.Fatal(err)
	}
	if res, err := writeFileHandler(ctx, map[string]any{"file_path": "node_modules/pkg.js", "content": "x"}); err != nil || !res.Success {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}

	res, err := listHandler(ctx, map[string]any{"depth": 3})
	if err != nil || !res.Success {
		t.Fatalf("list failed: err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	entries := data["entries"].([]string)
	for _, e := range entries {
		if e == "node_modules/" || e == "node_modules/pkg.js" {
			t.Fatalf("expected node_modules to be skipped, got %v", entries)
		}
	}
}

func TestGrepInFiles_FindsMatches(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := writeFileHandler(ctx, map[string]any{"file_path": "code.go", "content": "package main\n\nfunc Target() {}\n"}); err != nil {
		t.Fatal(err)
	}

	res, err := grepInFilesHandler(ctx, map[string]any{"pattern": "func Target"})
	if err != nil || !res.Success {
		t.Fatalf("grep failed: err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["count"].(int) != 1 {
		t.Fatalf("expected 1 match, got %+v", data)
	}
}

func TestGrepInFiles_RejectsBadPattern(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	res, err := grepInFilesHandler(ctx, map[string]any{"pattern": "("})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for invalid regex")
	}
}

func TestGlobFind_MatchesRecursive(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := fsTestContext(t, sb, false)
	if _, err := mkdirHandler(ctx, map[string]any{"path": "a/b"}); err != nil {
		t.Fatal(err)
	}
	if res, err := writeFileHandler(ctx, map[string]any{"file_path": "a/b/c.go", "content": "x"}); err != nil || !res.Success {
		t.Fatalf("write failed: err=%v res=%+v", err, res)
	}

	res, err := globFindHandler(ctx, map[string]any{"pattern": "**/*.go"})
	if err != nil || !res.Success {
		t.Fatalf("glob failed: err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	files := data["files"].([]string)
	if len(files) != 1 || files[0] != "a/b/c.go" {
		t.Fatalf("got %v", files)
	}
}
