package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	shelladapter "github.com/marcosnunesmbs/smith/internal/shell"
)

func shellTestContext(t *testing.T, sb *Sandbox, allowed []string) Context {
	t.Helper()
	return Context{
		Context:     context.Background(),
		SandboxDir:  sb.Root(),
		Timeout:     2 * time.Second,
		AllowedCmds: allowed,
		Sandbox:     sb,
		Shell:       shelladapter.NewAdapter(),
	}
}

func TestRunCommand_AllowedBinary(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, []string{"echo"})

	res, err := runCommandHandler(ctx, map[string]any{"command": "echo", "args": []any{"hi"}})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["exit_code"] != 0 {
		t.Fatalf("expected exit_code 0, got %+v", data)
	}
}

func TestRunCommand_RejectsDisallowedBinary(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, []string{"echo"})

	res, err := runCommandHandler(ctx, map[string]any{"command": "rm", "args": []any{"-rf", "/"}})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected disallowed binary to be rejected")
	}
}

func TestRunCommand_EmptyAllowlistPermitsAnything(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, nil)

	res, err := runCommandHandler(ctx, map[string]any{"command": "echo", "args": []any{"ok"}})
	if err != nil || !res.Success {
		t.Fatalf("expected success with empty allowlist, got err=%v res=%+v", err, res)
	}
}

func TestRunCommand_CwdMustStayInSandbox(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, []string{"echo"})

	res, err := runCommandHandler(ctx, map[string]any{"command": "echo", "args": []any{"hi"}, "cwd": "../../.."})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected cwd escape to be rejected")
	}
}

func TestRunScript_WritesExecutesAndRemovesTempFile(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, []string{"bash"})

	res, err := runScriptHandler(ctx, map[string]any{"content": "echo scripted", "runtime": "bash"})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}

	entries, err := os.ReadDir(sb.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sh" {
			t.Fatalf("expected temp script to be removed, found %s", e.Name())
		}
	}
}

func TestRunScript_RejectsDisallowedRuntime(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, []string{"bash"})

	res, err := runScriptHandler(ctx, map[string]any{"content": "print('hi')", "runtime": "python3"})
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected disallowed runtime to be rejected")
	}
}

func TestScriptExtension(t *testing.T) {
	cases := map[string]string{
		"node":      ".js",
		"python3":   ".py",
		"python":    ".py",
		"bash":      ".sh",
		"/bin/bash": ".sh",
	}
	for runtime, want := range cases {
		if got := scriptExtension(runtime); got != want {
			t.Errorf("scriptExtension(%q) = %q, want %q", runtime, got, want)
		}
	}
}

func TestWhichHandler_FindsKnownBinary(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, nil)

	res, err := whichHandler(ctx, map[string]any{"binary": "echo"})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["found"] != true {
		t.Fatalf("expected echo to be found on PATH, got %+v", data)
	}
}

func TestWhichHandler_MissingBinary(t *testing.T) {
	sb := newTestSandbox(t)
	ctx := shellTestContext(t, sb, nil)

	res, err := whichHandler(ctx, map[string]any{"binary": "definitely-not-a-real-binary-xyz"})
	if err != nil || !res.Success {
		t.Fatalf("expected success, got err=%v res=%+v", err, res)
	}
	data := res.Data.(map[string]any)
	if data["found"] != false {
		t.Fatalf("expected not found, got %+v", data)
	}
}
